package handlers

import (
	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/iban"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

type TransactionHandler struct {
	service *services.TransactionService
}

func NewTransactionHandler(service *services.TransactionService) *TransactionHandler {
	utils.LogSuccess("TransactionHandler", "Инициализирован обработчик транзакций")
	return &TransactionHandler{service: service}
}

// Transfer обрабатывает POST /transfers
func (h *TransactionHandler) Transfer(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "TransactionHandler")
	if !ok {
		return
	}

	var req models.TransferRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "TransactionHandler", err)
		return
	}

	res, err := h.service.Transfer(ctx, actor, req)
	if err != nil {
		writeError(ctx, "TransactionHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, models.TransferResponse{
		FromAccountID:  res.From.ID,
		ToAccountID:    res.To.ID,
		Amount:         res.Out.Amount.StringFixed(2),
		FromBalance:    res.From.Balance.StringFixed(2),
		ToBalance:      res.To.Balance.StringFixed(2),
		OutTransaction: res.Out.ID,
		InTransaction:  res.In.ID,
	})
}

// ValidateIBAN обрабатывает GET /iban/validate?iban=
func (h *TransactionHandler) ValidateIBAN(ctx *fasthttp.RequestCtx) {
	raw := string(ctx.QueryArgs().Peek("iban"))
	if raw == "" {
		writeJSON(ctx, fasthttp.StatusBadRequest, errorResponse{Error: "Параметр iban обязателен"})
		return
	}

	code := iban.Normalize(raw)
	valid := iban.Validate(code)
	resp := map[string]interface{}{
		"iban":  code,
		"valid": valid,
	}
	if valid {
		resp["formatted"] = iban.Format(code)
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}
