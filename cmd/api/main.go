package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"

	"bank-backoffice/internal/cache"
	"bank-backoffice/internal/config"
	"bank-backoffice/internal/handlers"
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/middleware"
	"bank-backoffice/internal/models"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("Ошибка конфигурации", err)
	}
	utils.SetupLogger(cfg.LogFormat, cfg.LogLevel)

	ctx := context.Background()

	if err := repository.Migrate(cfg.MigrationsPath, cfg.DBURL); err != nil {
		fatal("Миграции не применены", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		fatal("Не удалось подключиться к базе", err)
	}
	defer dbPool.Close()
	if err := dbPool.Ping(ctx); err != nil {
		fatal("База недоступна", err)
	}
	utils.LogSuccess("Main", "Подключение к базе установлено")

	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	if err := redisCache.Ping(ctx); err != nil {
		if cfg.IsProduction() {
			fatal("Redis недоступен", err)
		}
		utils.LogWarning("Main", "Redis недоступен (%v), работа без кеша и распределённой блокировки", err)
		_ = redisCache.Close()
		redisCache = nil
	} else {
		defer redisCache.Close()
	}

	pool := worker.NewWorkerPool(cfg.WorkerCount, cfg.WorkerQueueSize, cfg.WorkerMaxRetries)
	pool.SetBackoff(cfg.WorkerBackoff)
	pool.Start()

	loc, _ := cfg.Location()
	policy, _ := cfg.Overdraft()
	clock := services.SystemClock(loc)
	m := metrics.New(nil)
	store := repository.NewStore(dbPool)

	authService := services.NewAuthService(store, cfg.JWTSecret, cfg.JWTExpiration)
	accountService := services.NewAccountService(store, cfg.IBANParams(), redisCache, pool)
	transactionService := services.NewTransactionService(store, policy, m, clock, redisCache, pool)
	creditService := services.NewCreditService(store, policy, m, clock, redisCache, pool)
	settingsService := services.NewSettingsService(store)
	interestService := services.NewInterestService(store, m, clock, cfg.AccrualLockTTL, redisCache, pool)

	if cfg.BootstrapAdminName != "" {
		if err := authService.EnsureUser(ctx, cfg.BootstrapAdminName, cfg.BootstrapAdminPassword, models.RoleAdmin); err != nil {
			fatal("Не удалось создать администратора", err)
		}
	}

	checks := map[string]handlers.HealthCheck{"postgres": dbPool.Ping}
	if redisCache != nil {
		checks["redis"] = redisCache.Ping
	}

	router := handlers.NewRouter(handlers.Handlers{
		Auth:        handlers.NewAuthHandler(authService, cfg.JWTExpiration),
		Account:     handlers.NewAccountHandler(accountService),
		Transaction: handlers.NewTransactionHandler(transactionService),
		Credit:      handlers.NewCreditHandler(creditService),
		Admin:       handlers.NewAdminHandler(settingsService, interestService),
		Health:      handlers.NewHealthHandler(checks, pool),
		Metrics:     fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
	}, middleware.NewAuthMiddleware(authService))

	server := &fasthttp.Server{
		Handler:      middleware.RequestLogger(router.Handler),
		Name:         "bank-backoffice",
		ReadTimeout:  cfg.HTTPReadTimeout,
		WriteTimeout: cfg.HTTPWriteTimeout,
	}

	go func() {
		utils.LogInfo("Main", "Сервер запускается на %s", cfg.HTTPAddr)
		if err := server.ListenAndServe(cfg.HTTPAddr); err != nil {
			fatal("Сервер остановлен с ошибкой", err)
		}
	}()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChannel

	utils.LogInfo("Main", "Остановка сервера...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.ShutdownWithContext(shutdownCtx); err != nil {
		utils.LogError("Main", "Сервер остановлен принудительно", err)
	}
	if err := pool.Shutdown(cfg.ShutdownTimeout); err != nil {
		utils.LogError("Main", "Пул воркеров остановлен принудительно", err)
	}
	utils.LogSuccess("Main", "Сервер остановлен")
}

func fatal(message string, err error) {
	utils.LogError("Main", message, err)
	os.Exit(1)
}
