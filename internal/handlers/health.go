package handlers

import (
	"context"
	"time"

	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/worker"
)

// HealthCheck проверяет одну зависимость (база, Redis).
type HealthCheck func(ctx context.Context) error

type HealthHandler struct {
	checks map[string]HealthCheck
	pool   *worker.WorkerPool
}

// pool может быть nil: тогда статистика воркеров не выводится.
func NewHealthHandler(checks map[string]HealthCheck, pool *worker.WorkerPool) *HealthHandler {
	return &HealthHandler{checks: checks, pool: pool}
}

// Health обрабатывает GET /health. Недоступная зависимость даёт 503.
func (h *HealthHandler) Health(ctx *fasthttp.RequestCtx) {
	checkCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	status := fasthttp.StatusOK
	deps := make(map[string]string, len(h.checks))
	for name, check := range h.checks {
		if err := check(checkCtx); err != nil {
			deps[name] = err.Error()
			status = fasthttp.StatusServiceUnavailable
			continue
		}
		deps[name] = "ok"
	}

	state := "ok"
	if status != fasthttp.StatusOK {
		state = "degraded"
	}
	body := map[string]interface{}{
		"status":       state,
		"message":      "Bank back office is running",
		"time":         time.Now().Format(time.RFC3339),
		"dependencies": deps,
	}
	if h.pool != nil {
		body["workers"] = h.pool.GetStats()
	}
	writeJSON(ctx, status, body)
}
