package handlers

import (
	"context"
	"strconv"
	"time"

	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
)

// AdminHandler - настройки банка и ручной запуск начисления процентов.
type AdminHandler struct {
	settings *services.SettingsService
	interest *services.InterestService
}

func NewAdminHandler(settings *services.SettingsService, interest *services.InterestService) *AdminHandler {
	return &AdminHandler{settings: settings, interest: interest}
}

// GetSavingsRate обрабатывает GET /admin/settings/savings-rate
func (h *AdminHandler) GetSavingsRate(ctx *fasthttp.RequestCtx) {
	rate, err := h.settings.GetSavingsRate(ctx)
	if err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"savings_rate": rate.String()})
}

// SetSavingsRate обрабатывает PUT /admin/settings/savings-rate
func (h *AdminHandler) SetSavingsRate(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AdminHandler")
	if !ok {
		return
	}

	var req models.SavingsRateRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	if err := h.settings.SetSavingsRate(ctx, actor, req.SavingsRate); err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]string{"savings_rate": req.SavingsRate.String()})
}

// RunDailyInterest обрабатывает POST /admin/interest/daily
func (h *AdminHandler) RunDailyInterest(ctx *fasthttp.RequestCtx) {
	if ctx.QueryArgs().GetBool("async") {
		h.enqueueRun(ctx, models.InterestRunDaily)
		return
	}
	run, err := h.interest.RunDaily(ctx)
	h.respondRun(ctx, run, err)
}

// RunMissingInterest обрабатывает POST /admin/interest/missing
func (h *AdminHandler) RunMissingInterest(ctx *fasthttp.RequestCtx) {
	if ctx.QueryArgs().GetBool("async") {
		h.enqueueRun(ctx, models.InterestRunMissing)
		return
	}
	run, err := h.interest.RunMissing(ctx)
	h.respondRun(ctx, run, err)
}

// ListInterestRuns обрабатывает GET /admin/interest/runs?limit=
func (h *AdminHandler) ListInterestRuns(ctx *fasthttp.RequestCtx) {
	limit, _ := strconv.Atoi(string(ctx.QueryArgs().Peek("limit")))
	runs, err := h.interest.ListRuns(ctx, limit)
	if err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"runs":  runs,
		"total": len(runs),
	})
}

// InterestStatus обрабатывает GET /admin/interest/status
func (h *AdminHandler) InterestStatus(ctx *fasthttp.RequestCtx) {
	status, err := h.interest.Status(ctx)
	if err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, status)
}

// Сколько ждать места в очереди воркеров, прежде чем ответить 503.
const enqueueWait = 2 * time.Second

// enqueueRun ставит проход в пул воркеров и отвечает 202.
func (h *AdminHandler) enqueueRun(ctx *fasthttp.RequestCtx, kind models.InterestRunKind) {
	waitCtx, cancel := context.WithTimeout(ctx, enqueueWait)
	defer cancel()

	jobID, err := h.interest.RunAsync(waitCtx, kind)
	if err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusAccepted, map[string]string{
		"status": "accepted",
		"job_id": jobID,
	})
}

func (h *AdminHandler) respondRun(ctx *fasthttp.RequestCtx, run models.InterestRun, err error) {
	if err != nil {
		writeError(ctx, "AdminHandler", err)
		return
	}
	writeJSON(ctx, fasthttp.StatusOK, models.InterestRunResponse{
		Kind:              run.Kind,
		SavingsRate:       run.SavingsRate.String(),
		AccountsProcessed: run.AccountsProcessed,
		TotalInterest:     run.TotalInterest.StringFixed(2),
	})
}
