package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hibiken/asynq"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/app"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/observability"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/cache"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping worker startup")
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := app.LoadConfig()
	if err != nil {
		slog.Default().Error("load config", slog.Any("error", err))
		os.Exit(1)
	}

	logger := app.NewLogger(cfg)
	redisOpts := asynq.RedisClientOpt{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB}

	pool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect database", slog.Any("error", err))
		os.Exit(1)
	}
	defer pool.Close()

	redisClient, err := cache.New(ctx, cache.Options{Addr: cfg.RedisAddr, Password: cfg.RedisPassword, DB: cfg.RedisDB})
	if err != nil {
		logger.Error("connect redis", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logger.Warn("redis close", slog.Any("error", err))
		}
	}()

	jobClient, err := jobs.NewClient(redisOpts)
	if err != nil {
		logger.Error("init job client", slog.Any("error", err))
		os.Exit(1)
	}
	defer func() {
		if err := jobClient.Close(); err != nil {
			logger.Warn("job client close", slog.Any("error", err))
		}
	}()

	metrics := observability.NewMetrics()
	emitter := notify.Multi{notify.Logger{Log: logger}, notify.NewQueueEmitter(jobClient)}
	idempotencyStore := shared.NewIdempotencyStore(pool)

	rentalService := rentals.NewService(rentals.NewRepository(pool), artifacts.NewRepository(pool), authz.NewGate(metrics), rentals.Options{
		Locker:  shared.NewLocker(redisClient, cfg.LockTTL),
		Emitter: emitter,
		Metrics: metrics,
		Logger:  logger,
	})

	publisher := notify.NewPublisher(redisClient, cfg.EventsChannel)
	rentalJobs := &jobs.RentalJobs{
		Rentals:   rentalService,
		Queue:     jobClient,
		Logger:    logger,
		Metrics:   metrics.Jobs(),
		BatchSize: cfg.RentalSweepBatch,
	}
	cleanupJob := &jobs.CleanupJob{
		Store:     idempotencyStore,
		Retention: cfg.IdempotencyRetention,
		Logger:    logger,
		Metrics:   metrics.Jobs(),
	}

	sweepTask, err := jobs.NewSweepTask(cfg.RentalSweepBatch)
	if err != nil {
		logger.Error("build sweep task", slog.Any("error", err))
		os.Exit(1)
	}
	cleanupTask, err := jobs.NewCleanupTask(cfg.IdempotencyRetention)
	if err != nil {
		logger.Error("build cleanup task", slog.Any("error", err))
		os.Exit(1)
	}

	handlers := append(rentalJobs.Handlers(),
		jobs.TaskHandler{Type: notify.TaskDeliver, Handler: publisher.HandleDeliverTask},
		jobs.TaskHandler{Type: jobs.TaskIdempotencyCleanup, Handler: cleanupJob.Handle},
	)

	worker, err := jobs.NewWorker(jobs.WorkerConfig{
		RedisOpts:   redisOpts,
		Logger:      logger,
		Concurrency: cfg.WorkerConcurrency,
		Handlers:    handlers,
		Cron: []jobs.CronRegistration{
			{Spec: cfg.RentalSweepCron, Task: sweepTask},
			{Spec: "30 3 * * *", Task: cleanupTask},
		},
	})
	if err != nil {
		logger.Error("init worker", slog.Any("error", err))
		os.Exit(1)
	}

	metricsServer := &http.Server{Addr: cfg.WorkerMetricsAddr, Handler: metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Warn("worker metrics server", slog.Any("error", err))
		}
	}()
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = metricsServer.Shutdown(shutdownCtx)
	}()

	if err := worker.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logger.Error("worker run", slog.Any("error", err))
		os.Exit(1)
	}
}
