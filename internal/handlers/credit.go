package handlers

import (
	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/credit"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

const dateLayout = "2006-01-02"

type CreditHandler struct {
	service *services.CreditService
}

func NewCreditHandler(service *services.CreditService) *CreditHandler {
	utils.LogSuccess("CreditHandler", "Инициализирован обработчик кредитов")
	return &CreditHandler{service: service}
}

func newCreditResponse(c models.Credit) models.CreditResponse {
	resp := models.CreditResponse{
		ID:                     c.ID,
		ClientID:               c.ClientID,
		AdvisorID:              c.AdvisorID,
		AccountID:              c.AccountID,
		Amount:                 c.Amount.StringFixed(2),
		AnnualInterestRate:     c.AnnualInterestRate.String(),
		InsuranceRate:          c.InsuranceRate.String(),
		DurationMonths:         c.DurationMonths,
		MonthlyPayment:         c.MonthlyPayment.StringFixed(2),
		InsuranceMonthlyAmount: c.InsuranceMonthlyAmount.StringFixed(2),
		RemainingCapital:       c.RemainingCapital.StringFixed(2),
		PaidMonths:             c.PaidMonths,
		Status:                 c.Status,
		TotalInterest:          credit.TotalInterest(c).StringFixed(2),
		TotalInsurance:         credit.TotalInsurance(c).StringFixed(2),
		TotalCost:              credit.TotalCost(c).StringFixed(2),
		CreatedAt:              c.CreatedAt.Format("2006-01-02 15:04:05"),
	}
	if c.StartDate != nil {
		resp.StartDate = c.StartDate.Format(dateLayout)
	}
	if c.NextPaymentDate != nil {
		resp.NextPaymentDate = c.NextPaymentDate.Format(dateLayout)
	}
	return resp
}

// CreateCredit обрабатывает POST /credits - оформление кредита консультантом
func (h *CreditHandler) CreateCredit(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	var req models.CreateCreditRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}

	c, err := h.service.Create(ctx, actor, req)
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusCreated, newCreditResponse(c))
}

// ListCredits обрабатывает GET /credits
func (h *CreditHandler) ListCredits(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	credits, err := h.service.List(ctx, actor)
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}

	out := make([]models.CreditResponse, 0, len(credits))
	for _, c := range credits {
		out = append(out, newCreditResponse(c))
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"credits": out,
		"total":   len(out),
	})
}

// GetCredit обрабатывает GET /credits/{id}
func (h *CreditHandler) GetCredit(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	c, err := h.service.Get(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, newCreditResponse(c))
}

// GetSchedule обрабатывает GET /credits/{id}/schedule - график платежей
func (h *CreditHandler) GetSchedule(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	creditID := pathParam(ctx, "id")
	rows, err := h.service.Schedule(ctx, actor, creditID)
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}

	out := make([]models.ScheduleRowResponse, 0, len(rows))
	for _, r := range rows {
		out = append(out, models.ScheduleRowResponse{
			Month:            r.Month,
			DueDate:          r.DueDate.Format(dateLayout),
			Interest:         r.Interest.StringFixed(2),
			Capital:          r.Capital.StringFixed(2),
			Insurance:        r.Insurance.StringFixed(2),
			Total:            r.Total.StringFixed(2),
			RemainingCapital: r.RemainingCapital.StringFixed(2),
		})
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"credit_id": creditID,
		"schedule":  out,
	})
}

// ActivateCredit обрабатывает POST /credits/{id}/activate
func (h *CreditHandler) ActivateCredit(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	c, err := h.service.Activate(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, newCreditResponse(c))
}

// RecordPayment обрабатывает POST /credits/{id}/payments - ежемесячный платёж
func (h *CreditHandler) RecordPayment(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	res, err := h.service.RecordPayment(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, models.PaymentResponse{
		CreditID:         res.Credit.ID,
		Interest:         res.Payment.Interest.StringFixed(2),
		Capital:          res.Payment.Capital.StringFixed(2),
		Insurance:        res.Payment.Insurance.StringFixed(2),
		Total:            res.Payment.Total.StringFixed(2),
		RemainingCapital: res.Credit.RemainingCapital.StringFixed(2),
		PaidMonths:       res.Credit.PaidMonths,
		Status:           res.Credit.Status,
		AccountBalance:   res.Account.Balance.StringFixed(2),
	})
}

// CancelCredit обрабатывает POST /credits/{id}/cancel
func (h *CreditHandler) CancelCredit(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "CreditHandler")
	if !ok {
		return
	}

	c, err := h.service.Cancel(ctx, actor, pathParam(ctx, "id"))
	if err != nil {
		writeError(ctx, "CreditHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, newCreditResponse(c))
}
