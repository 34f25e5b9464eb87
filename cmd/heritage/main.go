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

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/cmd/heritage/cli"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/app"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	audithttp "github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit/http"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/auth"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/museums"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/notify"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/observability"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/cache"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/db"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/users"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/jobs"
)

func main() {
	if app.InTestMode() {
		slog.Default().Info("test mode detected, skipping runtime startup")
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

	if len(os.Args) > 1 && os.Args[1] == "jobs" {
		os.Exit(runJobs(ctx, logger, redisOpts, os.Args[2:]))
	}

	dbpool, err := db.New(ctx, cfg.PGDSN, db.Options{})
	if err != nil {
		logger.Error("connect postgres", slog.Any("error", err))
		os.Exit(1)
	}
	defer dbpool.Close()

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
	gate := authz.NewGate(metrics)
	emitter := notify.Multi{notify.Logger{Log: logger}, notify.NewQueueEmitter(jobClient)}
	locker := shared.NewLocker(redisClient, cfg.LockTTL)

	sessionManager := shared.NewSessionManager(redisClient, "heritage_session", cfg.SessionTTL, cfg.IsProduction())
	csrfManager := shared.NewCSRFManager(cfg.CSRFSecret)

	identityRepo := identity.NewRepository(dbpool)
	actorStore := identity.NewCachedStore(identityRepo, redisClient, cfg.ActorCacheTTL, logger)
	rbacMiddleware := authz.Middleware{Logger: logger}

	authService := auth.NewService(identityRepo)
	authHandler := auth.NewHandler(logger, authService, sessionManager, csrfManager)

	usersService := users.NewService(users.NewRepository(dbpool), gate, actorStore, emitter, logger)
	usersHandler := users.NewHandler(logger, usersService, rbacMiddleware)

	artifactRepo := artifacts.NewRepository(dbpool)
	artifactService := artifacts.NewService(artifactRepo, gate, locker, emitter, metrics, logger)
	artifactHandler := artifacts.NewHandler(logger, artifactService)

	rentalService := rentals.NewService(rentals.NewRepository(dbpool), artifactRepo, gate, rentals.Options{
		Locker:  locker,
		Emitter: emitter,
		Metrics: metrics,
		Logger:  logger,
	})
	rentalHandler := rentals.NewHandler(logger, rentalService)

	museumService := museums.NewService(museums.NewRepository(dbpool), gate, emitter, logger)
	museumHandler := museums.NewHandler(logger, museumService)

	auditService := audit.NewService(audit.NewStore(dbpool), gate)
	auditHandler := audithttp.NewHandler(logger, auditService)

	inspector := asynq.NewInspector(redisOpts)
	defer func() {
		if err := inspector.Close(); err != nil {
			logger.Warn("inspector close", slog.Any("error", err))
		}
	}()
	jobHandler := jobs.NewHandler(inspector, logger)

	router := app.NewRouter(app.RouterParams{
		Logger:          logger,
		Config:          cfg,
		SessionManager:  sessionManager,
		CSRFManager:     csrfManager,
		Actors:          actorStore,
		AuthHandler:     authHandler,
		UsersHandler:    usersHandler,
		ArtifactHandler: artifactHandler,
		RentalHandler:   rentalHandler,
		MuseumHandler:   museumHandler,
		AuditHandler:    auditHandler,
		JobHandler:      jobHandler,
		RBACMiddleware:  rbacMiddleware,
		Metrics:         metrics,
	})

	server := &http.Server{
		Addr:         cfg.AppAddr,
		Handler:      router,
		ReadTimeout:  cfg.AppReadTimeout,
		WriteTimeout: cfg.AppWriteTimeout,
	}

	go func() {
		logger.Info("starting http server", slog.String("addr", cfg.AppAddr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("graceful shutdown", slog.Any("error", err))
	}
}

func runJobs(ctx context.Context, logger *slog.Logger, opts asynq.RedisClientOpt, args []string) int {
	jobsCLI, err := cli.NewJobsCLI(opts)
	if err != nil {
		logger.Error("init jobs cli", slog.Any("error", err))
		return 1
	}
	defer func() {
		if err := jobsCLI.Close(); err != nil {
			logger.Warn("jobs cli close", slog.Any("error", err))
		}
	}()
	if err := cli.Run(ctx, jobsCLI, args, os.Stdout); err != nil {
		if errors.Is(err, cli.ErrUsage) {
			os.Stderr.WriteString(err.Error() + "\n")
			return 2
		}
		logger.Error("jobs command", slog.Any("error", err))
		return 1
	}
	return 0
}
