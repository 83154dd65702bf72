package middleware

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

// Ключи значений запроса, которые выставляет RequireAuth.
const (
	actorKey  = "actor"
	userIDKey = "user_id"
)

type AuthMiddleware struct {
	authService *services.AuthService
}

func NewAuthMiddleware(authService *services.AuthService) *AuthMiddleware {
	utils.LogSuccess("Middleware", "Инициализирован middleware авторизации")
	return &AuthMiddleware{
		authService: authService,
	}
}

// RequireAuth проверяет JWT и кладёт в запрос аутентифицированного пользователя.
func (m *AuthMiddleware) RequireAuth(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		startTime := time.Now()
		path := string(ctx.Path())

		authHeader := string(ctx.Request.Header.Peek("Authorization"))
		if authHeader == "" {
			utils.LogWarning("Middleware", "Отсутствует заголовок Authorization")
			deny(ctx, fasthttp.StatusUnauthorized, "Требуется авторизация")
			utils.LogResponse(path, fasthttp.StatusUnauthorized, time.Since(startTime))
			return
		}

		parts := strings.Fields(authHeader)
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
			utils.LogWarning("Middleware", "Неверный формат заголовка Authorization")
			deny(ctx, fasthttp.StatusUnauthorized, "Неверный формат токена")
			utils.LogResponse(path, fasthttp.StatusUnauthorized, time.Since(startTime))
			return
		}

		claims, err := m.authService.ValidateToken(parts[1])
		if err != nil {
			utils.LogWarning("Middleware", "Невалидный токен: %v", err)
			deny(ctx, fasthttp.StatusUnauthorized, "Невалидный или истёкший токен")
			utils.LogResponse(path, fasthttp.StatusUnauthorized, time.Since(startTime))
			return
		}

		actor := claims.Actor()
		ctx.SetUserValue(actorKey, actor)
		ctx.SetUserValue(userIDKey, actor.UserID)
		utils.LogDebug("Middleware", "Аутентифицирован пользователь: %s (%s)", actor.UserID, actor.Role)

		next(ctx)
	}
}

// RequireRole пропускает только перечисленные роли. Ставится после RequireAuth.
func RequireRole(next fasthttp.RequestHandler, roles ...models.Role) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		actor, ok := ActorFrom(ctx)
		if !ok {
			deny(ctx, fasthttp.StatusUnauthorized, "Требуется авторизация")
			return
		}
		for _, role := range roles {
			if actor.Role == role {
				next(ctx)
				return
			}
		}
		utils.LogWarning("Middleware", "Роль %s не допущена к %s", actor.Role, ctx.Path())
		deny(ctx, fasthttp.StatusForbidden, "Недостаточно прав")
	}
}

// ActorFrom достаёт пользователя, выставленного RequireAuth.
func ActorFrom(ctx *fasthttp.RequestCtx) (services.Actor, bool) {
	actor, ok := ctx.UserValue(actorKey).(services.Actor)
	if !ok || actor.UserID == "" {
		return services.Actor{}, false
	}
	return actor, true
}

// WithActor выставляет пользователя напрямую, минуя проверку токена.
func WithActor(ctx *fasthttp.RequestCtx, actor services.Actor) {
	ctx.SetUserValue(actorKey, actor)
	ctx.SetUserValue(userIDKey, actor.UserID)
}

// RequestLogger пишет входящий запрос и итоговый статус.
func RequestLogger(next fasthttp.RequestHandler) fasthttp.RequestHandler {
	return func(ctx *fasthttp.RequestCtx) {
		startTime := time.Now()
		next(ctx)

		userID, _ := ctx.UserValue(userIDKey).(string)
		if userID == "" {
			userID = "anonymous"
		}
		utils.LogRequest(string(ctx.Method()), string(ctx.Path()), userID)
		utils.LogResponse(string(ctx.Path()), ctx.Response.StatusCode(), time.Since(startTime))
	}
}

func deny(ctx *fasthttp.RequestCtx, status int, message string) {
	ctx.SetStatusCode(status)
	ctx.SetContentType("application/json")
	_ = json.NewEncoder(ctx).Encode(map[string]string{"error": message})
}
