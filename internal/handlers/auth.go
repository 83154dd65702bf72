package handlers

import (
	"time"

	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/models"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
)

type AuthHandler struct {
	authService *services.AuthService
	tokenTTL    time.Duration
}

func NewAuthHandler(authService *services.AuthService, tokenTTL time.Duration) *AuthHandler {
	utils.LogSuccess("AuthHandler", "Инициализирован обработчик аутентификации")
	return &AuthHandler{
		authService: authService,
		tokenTTL:    tokenTTL,
	}
}

// RegisterHandler - регистрация клиента
func (h *AuthHandler) RegisterHandler(ctx *fasthttp.RequestCtx) {
	var req models.RegisterRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	utils.LogInfo("AuthHandler", "Регистрация пользователя: %s", req.Name)

	user, err := h.authService.Register(ctx, req)
	if err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, map[string]interface{}{
		"message": "Пользователь успешно зарегистрирован",
		"user":    models.NewUserResponse(*user),
	})
}

// LoginHandler - вход пользователя
func (h *AuthHandler) LoginHandler(ctx *fasthttp.RequestCtx) {
	var req models.LoginRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	utils.LogInfo("AuthHandler", "Попытка входа пользователя: %s", req.Name)

	token, user, err := h.authService.Login(ctx, req)
	if err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	utils.LogSuccess("AuthHandler", "Пользователь вошёл: %s (ID: %s)", user.Name, user.ID)
	writeJSON(ctx, fasthttp.StatusOK, map[string]interface{}{
		"message":    "Вход выполнен успешно",
		"token":      token,
		"user_id":    user.ID,
		"name":       user.Name,
		"role":       user.Role,
		"expires_in": h.tokenTTL.String(),
	})
}

// CreateUserHandler - администратор заводит сотрудника или клиента с заданной ролью
func (h *AuthHandler) CreateUserHandler(ctx *fasthttp.RequestCtx) {
	actor, ok := actorOrDeny(ctx, "AuthHandler")
	if !ok {
		return
	}

	var req models.CreateUserRequest
	if err := decode(ctx, &req); err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	user, err := h.authService.CreateUser(ctx, actor, req)
	if err != nil {
		writeError(ctx, "AuthHandler", err)
		return
	}

	writeJSON(ctx, fasthttp.StatusCreated, models.NewUserResponse(*user))
}
