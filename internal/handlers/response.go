package handlers

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/credit"
	"bank-backoffice/internal/interest"
	"bank-backoffice/internal/ledger"
	"bank-backoffice/internal/middleware"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

var validate = validator.New()

var errInvalidBody = errors.New("неверный формат данных")

type errorResponse struct {
	Error  string            `json:"error"`
	Fields map[string]string `json:"fields,omitempty"`
}

// Соответствие доменных ошибок HTTP-статусам. Порядок важен: первая подходящая.
var errorStatuses = []struct {
	err    error
	status int
}{
	{ledger.ErrInvalidAmount, fasthttp.StatusBadRequest},
	{ledger.ErrInvalidName, fasthttp.StatusBadRequest},
	{ledger.ErrSameAccount, fasthttp.StatusBadRequest},
	{credit.ErrInvalidPrincipal, fasthttp.StatusBadRequest},
	{credit.ErrInvalidRate, fasthttp.StatusBadRequest},
	{credit.ErrInvalidDuration, fasthttp.StatusBadRequest},
	{interest.ErrInvalidRate, fasthttp.StatusBadRequest},
	{services.ErrInvalidIBAN, fasthttp.StatusBadRequest},
	{services.ErrInvalidAccountType, fasthttp.StatusBadRequest},
	{services.ErrAccountOwnerMismatch, fasthttp.StatusBadRequest},
	{services.ErrInvalidRole, fasthttp.StatusBadRequest},
	{errInvalidBody, fasthttp.StatusBadRequest},

	{services.ErrInvalidCredentials, fasthttp.StatusUnauthorized},
	{services.ErrInvalidToken, fasthttp.StatusUnauthorized},
	{services.ErrUnauthorizedAccess, fasthttp.StatusForbidden},
	{services.ErrForbiddenRole, fasthttp.StatusForbidden},

	{ledger.ErrAccountNotFound, fasthttp.StatusNotFound},
	{credit.ErrCreditNotFound, fasthttp.StatusNotFound},
	{repository.ErrUserNotFound, fasthttp.StatusNotFound},

	{ledger.ErrAccountClosed, fasthttp.StatusConflict},
	{ledger.ErrAlreadyClosed, fasthttp.StatusConflict},
	{ledger.ErrNonZeroBalance, fasthttp.StatusConflict},
	{ledger.ErrInsufficientFunds, fasthttp.StatusConflict},
	{credit.ErrNotPending, fasthttp.StatusConflict},
	{credit.ErrNotActive, fasthttp.StatusConflict},
	{credit.ErrAlreadyPaidOff, fasthttp.StatusConflict},
	{services.ErrAccrualInProgress, fasthttp.StatusConflict},
	{services.ErrAlreadyAccrued, fasthttp.StatusConflict},
	{repository.ErrUserExists, fasthttp.StatusConflict},
	{repository.ErrIBANTaken, fasthttp.StatusConflict},

	{services.ErrAsyncUnavailable, fasthttp.StatusServiceUnavailable},
	{worker.ErrQueueFull, fasthttp.StatusServiceUnavailable},
	{worker.ErrPoolClosed, fasthttp.StatusServiceUnavailable},
}

// StatusFor переводит ошибку сервиса в HTTP-статус. Неизвестные ошибки дают 500.
func StatusFor(err error) int {
	var verr validator.ValidationErrors
	if errors.As(err, &verr) {
		return fasthttp.StatusBadRequest
	}
	for _, e := range errorStatuses {
		if errors.Is(err, e.err) {
			return e.status
		}
	}
	return fasthttp.StatusInternalServerError
}

func writeJSON(ctx *fasthttp.RequestCtx, status int, body interface{}) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	if err := json.NewEncoder(ctx).Encode(body); err != nil {
		utils.LogError("Handlers", "Ошибка сериализации ответа", err)
	}
}

// writeError отвечает статусом по ошибке. Текст внутренних ошибок наружу не уходит.
func writeError(ctx *fasthttp.RequestCtx, component string, err error) {
	status := StatusFor(err)
	resp := errorResponse{Error: err.Error()}

	var verr validator.ValidationErrors
	switch {
	case errors.As(err, &verr):
		resp.Error = "Ошибка валидации"
		resp.Fields = make(map[string]string, len(verr))
		for _, fe := range verr {
			resp.Fields[strings.ToLower(fe.Field())] = fmt.Sprintf("не проходит правило %s", fe.Tag())
		}
		utils.LogWarning(component, "Запрос не прошёл валидацию: %v", err)
	case status == fasthttp.StatusInternalServerError:
		utils.LogError(component, "Внутренняя ошибка", err)
		resp.Error = "Внутренняя ошибка сервера"
	default:
		utils.LogWarning(component, "Запрос отклонён (%d): %v", status, err)
	}
	writeJSON(ctx, status, resp)
}

// decode разбирает JSON тела запроса и проверяет теги validate.
func decode(ctx *fasthttp.RequestCtx, dst interface{}) error {
	if err := json.Unmarshal(ctx.PostBody(), dst); err != nil {
		return fmt.Errorf("%w: %v", errInvalidBody, err)
	}
	return validate.Struct(dst)
}

// actorOrDeny достаёт пользователя из запроса или сразу отвечает 401.
func actorOrDeny(ctx *fasthttp.RequestCtx, component string) (services.Actor, bool) {
	actor, ok := middleware.ActorFrom(ctx)
	if !ok {
		utils.LogError(component, "Пользователь не найден в контексте запроса", nil)
		writeJSON(ctx, fasthttp.StatusUnauthorized, errorResponse{Error: "Требуется авторизация"})
		return services.Actor{}, false
	}
	return actor, true
}

func pathParam(ctx *fasthttp.RequestCtx, name string) string {
	v, _ := ctx.UserValue(name).(string)
	return v
}
