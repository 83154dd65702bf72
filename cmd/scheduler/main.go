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
	"bank-backoffice/internal/metrics"
	"bank-backoffice/internal/repository"
	"bank-backoffice/internal/scheduler"
	"bank-backoffice/internal/services"
	"bank-backoffice/internal/utils"
	"bank-backoffice/internal/worker"
)

// Отдельный процесс начисления процентов. Несколько реплик безопасны:
// проход защищён блокировкой в Redis.
func main() {
	cfg, err := config.Load()
	if err != nil {
		fatal("Ошибка конфигурации", err)
	}
	utils.SetupLogger(cfg.LogFormat, cfg.LogLevel)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := repository.Migrate(cfg.MigrationsPath, cfg.DBURL); err != nil {
		fatal("Миграции не применены", err)
	}

	dbPool, err := pgxpool.New(ctx, cfg.DBURL)
	if err != nil {
		fatal("Не удалось подключиться к базе", err)
	}
	defer dbPool.Close()

	// Без Redis нет защиты от параллельных проходов на разных репликах.
	redisCache := cache.NewRedisCache(cfg.RedisAddr)
	if err := redisCache.Ping(ctx); err != nil {
		fatal("Redis недоступен", err)
	}
	defer redisCache.Close()

	pool := worker.NewWorkerPool(1, cfg.WorkerQueueSize, cfg.WorkerMaxRetries)
	pool.SetBackoff(cfg.WorkerBackoff)
	pool.Start()

	loc, _ := cfg.Location()
	interestService := services.NewInterestService(
		repository.NewStore(dbPool),
		metrics.New(nil),
		services.SystemClock(loc),
		cfg.AccrualLockTTL,
		redisCache,
		pool,
	)

	sched, err := scheduler.New(interestService, scheduler.Options{
		DailyAt:    cfg.DailyInterestAt,
		Location:   loc,
		CatchUp:    cfg.CatchUpOnStartup,
		RunTimeout: cfg.AccrualLockTTL,
	})
	if err != nil {
		fatal("Ошибка настройки планировщика", err)
	}
	if err := sched.Start(ctx); err != nil {
		fatal("Планировщик не запущен", err)
	}

	metricsServer := &fasthttp.Server{
		Handler: fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler()),
		Name:    "bank-backoffice-scheduler",
	}
	go func() {
		utils.LogInfo("Main", "Метрики планировщика на %s", cfg.SchedulerMetricsAddr)
		if err := metricsServer.ListenAndServe(cfg.SchedulerMetricsAddr); err != nil {
			utils.LogError("Main", "Сервер метрик остановлен", err)
		}
	}()

	shutdownChannel := make(chan os.Signal, 1)
	signal.Notify(shutdownChannel, syscall.SIGINT, syscall.SIGTERM)
	<-shutdownChannel

	utils.LogInfo("Main", "Остановка планировщика...")
	sched.Stop()
	_ = metricsServer.Shutdown()
	if err := pool.Shutdown(cfg.ShutdownTimeout); err != nil {
		utils.LogError("Main", "Пул воркеров остановлен принудительно", err)
	}
	utils.LogSuccess("Main", "Планировщик остановлен")
}

func fatal(message string, err error) {
	utils.LogError("Main", message, err)
	os.Exit(1)
}
