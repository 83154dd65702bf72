package handlers

import (
	"github.com/fasthttp/router"
	"github.com/valyala/fasthttp"

	"bank-backoffice/internal/middleware"
	"bank-backoffice/internal/models"
)

// Handlers собирает все обработчики API для регистрации маршрутов.
type Handlers struct {
	Auth        *AuthHandler
	Account     *AccountHandler
	Transaction *TransactionHandler
	Credit      *CreditHandler
	Admin       *AdminHandler
	Health      *HealthHandler
	Metrics     fasthttp.RequestHandler
}

func NewRouter(h Handlers, auth *middleware.AuthMiddleware) *router.Router {
	r := router.New()

	authed := auth.RequireAuth
	staff := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth.RequireAuth(middleware.RequireRole(next, models.RoleAdvisor, models.RoleAdmin))
	}
	admin := func(next fasthttp.RequestHandler) fasthttp.RequestHandler {
		return auth.RequireAuth(middleware.RequireRole(next, models.RoleAdmin))
	}

	r.GET("/health", h.Health.Health)
	if h.Metrics != nil {
		r.GET("/metrics", h.Metrics)
	}

	r.POST("/register", h.Auth.RegisterHandler)
	r.POST("/login", h.Auth.LoginHandler)

	r.POST("/accounts", authed(h.Account.CreateAccount))
	r.GET("/accounts", authed(h.Account.GetAccounts))
	r.GET("/accounts/{id}", authed(h.Account.GetAccount))
	r.PATCH("/accounts/{id}", authed(h.Account.RenameAccount))
	r.DELETE("/accounts/{id}", authed(h.Account.CloseAccount))
	r.GET("/accounts/{id}/transactions", authed(h.Account.GetAccountTransactions))

	r.POST("/transfers", authed(h.Transaction.Transfer))
	r.GET("/iban/validate", authed(h.Transaction.ValidateIBAN))

	r.POST("/credits", staff(h.Credit.CreateCredit))
	r.GET("/credits", authed(h.Credit.ListCredits))
	r.GET("/credits/{id}", authed(h.Credit.GetCredit))
	r.GET("/credits/{id}/schedule", authed(h.Credit.GetSchedule))
	r.POST("/credits/{id}/activate", staff(h.Credit.ActivateCredit))
	r.POST("/credits/{id}/payments", authed(h.Credit.RecordPayment))
	r.POST("/credits/{id}/cancel", staff(h.Credit.CancelCredit))

	r.GET("/admin/settings/savings-rate", admin(h.Admin.GetSavingsRate))
	r.PUT("/admin/settings/savings-rate", admin(h.Admin.SetSavingsRate))
	r.POST("/admin/interest/daily", admin(h.Admin.RunDailyInterest))
	r.POST("/admin/interest/missing", admin(h.Admin.RunMissingInterest))
	r.GET("/admin/interest/runs", admin(h.Admin.ListInterestRuns))
	r.GET("/admin/interest/status", admin(h.Admin.InterestStatus))
	r.POST("/admin/users", admin(h.Auth.CreateUserHandler))

	return r
}
