package handlers

import (
	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

type AccountHandler struct {
	accountService *services.AccountService
}

func NewAccountHandler(accountService *services.AccountService) *AccountHandler {
	return &AccountHandler{
		accountService: accountService,
	}
}

// CreateAccount обрабатывает POST /accounts - открытие счёта
func (h *AccountHandler) CreateAccount(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	var req models.CreateAccountRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	account, err := h.accountService.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, models.NewAccountResponse(account))
	utils.LogSuccess("AccountHandler", "Счёт успешно создан: %s", account.ID)
}

// GetAccounts обрабатывает GET /accounts - свои счета клиента или все для сотрудников
func (h *AccountHandler) GetAccounts(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	accounts, err := h.accountService.List(ctx, actor)
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	resp := models.AccountListResponse{
		Accounts: make([]models.AccountResponse, 0, len(accounts)),
		Total:    len(accounts),
	}
	for _, acc := range accounts {
		resp.Accounts = append(resp.Accounts, models.NewAccountResponse(acc))
		if acc.IsClosed {
			resp.ClosedCount++
		} else {
			resp.OpenCount++
		}
	}

	writeJSON(ctx, fasthttp.StatusOK, resp)
}

// GetAccount обрабатывает GET /accounts/{id}
func (h *AccountHandler) GetAccount(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	account, err := h.accountService.Get(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, models.NewAccountResponse(account))
}

// RenameAccount обрабатывает PATCH /accounts/{id}
func (h *AccountHandler) RenameAccount(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	var req models.RenameAccountRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	account, err := h.accountService.Rename(ctx, actor, pathParam(ctx, "id"), req.Name)
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, models.NewAccountResponse(account))
}

// CloseAccount обрабатывает DELETE /accounts/{id} - закрытие счёта с нулевым балансом
func (h *AccountHandler) CloseAccount(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	account, err := h.accountService.Close(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"message": "Счёт успешно закрыт",
		"account": models.NewAccountResponse(account),
	})
	utils.LogSuccess("AccountHandler", "Счёт закрыт: %s", account.ID)
}

// GetAccountTransactions обрабатывает GET /accounts/{id}/transactions
func (h *AccountHandler) GetAccountTransactions(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AccountHandler")
	if !ok {
		return
	}

	accountID := pathParam(ctx, "id")
	txs, err := h.accountService.Transactions(ctx, actor, accountID)
	if err != nil {
		writeError(ctx, "AccountHandler", err)
		return
	}

	resp := models.TransactionListResponse{
		Transactions: make([]models.TransactionResponse, 0, len(txs)),
		Total:        len(txs),
		AccountID:    accountID,
	}
	for _, t := range txs {
		resp.Transactions = append(resp.Transactions, models.NewTransactionResponse(t))
	}
	writeJSON(ctx, fasthttp.StatusOK, resp)
}
