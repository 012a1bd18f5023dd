package main

import (
	"context"
	"errors"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	httptransport "github.com/spec-kit/account-service/internal/api/http"
	"github.com/spec-kit/account-service/internal/api/http/handlers"
	"github.com/spec-kit/account-service/internal/api/validation"
	"github.com/spec-kit/account-service/internal/auth"
	"github.com/spec-kit/account-service/internal/config"
	"github.com/spec-kit/account-service/internal/events"
	"github.com/spec-kit/account-service/internal/observability"
	"github.com/spec-kit/account-service/internal/persistence"
	"github.com/spec-kit/account-service/internal/ratelimit"
	"github.com/spec-kit/account-service/internal/repository"
	"github.com/spec-kit/account-service/internal/service"
	"github.com/spec-kit/account-service/internal/worker"
)

const (
	auditQueueSize  = 256
	shutdownTimeout = 10 * time.Second
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		if errors.Is(err, config.ErrMissingSecret) {
			log.Fatal("JWT_SECRET must be set; refusing to start without a signing key")
		}
		log.Fatalf("failed to load config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logger, cfg.App.IsProduction())
	if err != nil {
		log.Fatalf("failed to init logger: %v", err)
	}
	defer logger.Sync() //nolint:errcheck
	logger = logger.With(zap.String("service", cfg.App.Name), zap.String("version", cfg.App.Version))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	checks := map[string]handlers.Pinger{}

	// credential store
	var userRepo repository.UserRepository
	switch cfg.Mongo.Driver {
	case "memory":
		logger.Warn("using in-memory user store; accounts are lost on restart")
		userRepo = repository.NewMemoryUserRepository()
	default:
		mg, err := persistence.NewMongo(ctx, cfg.Mongo, cfg.App.Name, logger)
		if err != nil {
			logger.Fatal("failed to connect mongo", zap.Error(err))
		}
		defer mg.Close(context.Background())
		userRepo = repository.NewMongoUserRepository(mg.DB)
		checks["mongo"] = userRepo
	}
	if err := userRepo.EnsureIndexes(ctx); err != nil {
		logger.Fatal("failed to ensure user indexes", zap.Error(err))
	}

	// audit store
	pg, err := persistence.NewPostgres(ctx, cfg.Postgres, logger)
	if err != nil {
		logger.Fatal("failed to connect postgres", zap.Error(err))
	}
	defer pg.Close()

	var auditRepo repository.AuditRepository
	if pg.Enabled() {
		if cfg.Postgres.RunMigrations {
			if err := persistence.RunMigrations(ctx, pg.Pool, os.DirFS(cfg.Postgres.MigrationsDir), logger); err != nil {
				logger.Fatal("failed to run migrations", zap.Error(err))
			}
		}
		auditRepo = repository.NewAuditRepository(pg.Pool)
		checks["postgres"] = pg
	}

	// redis backs the shared limiter and the token denylist
	var rds *persistence.Redis
	if cfg.RateLimit.Backend == "redis" || cfg.Auth.DenylistEnabled {
		rds, err = persistence.NewRedis(ctx, cfg.Redis, true, logger)
		if err != nil {
			logger.Fatal("failed to connect redis", zap.Error(err))
		}
		defer rds.Close()
		checks["redis"] = rds
	}

	var tokenOpts []auth.TokenOption
	if cfg.Auth.DenylistEnabled {
		tokenOpts = append(tokenOpts, auth.WithDenylist(auth.NewRedisDenylist(rds.Client)))
	}
	tokens := auth.NewTokenManager(cfg.Auth.JWTSecret, cfg.Auth.RegisterTokenTTL, cfg.Auth.LoginTokenTTL, tokenOpts...)

	var limiter ratelimit.Limiter
	if cfg.RateLimit.Backend == "redis" {
		limiter = ratelimit.NewRedisLimiter(rds.Client)
	} else {
		mem := ratelimit.NewMemoryLimiter(
			ratelimit.WithSweepInterval(cfg.RateLimit.SweepInterval),
			ratelimit.WithLogger(logger),
		)
		mem.Start(ctx)
		defer mem.Stop()
		limiter = mem
	}

	dispatcher := events.NewInMemoryDispatcher(logger)
	auditService := service.NewAuditService(dispatcher, auditRepo, logger, auditQueueSize)
	auditWorker := worker.StartAuditWorker(ctx, auditService)

	authService := service.NewAuthService(cfg.Auth, service.AuthDependencies{
		UserRepo:   userRepo,
		Tokens:     tokens,
		Dispatcher: dispatcher,
		Logger:     logger,
	})
	userService := service.NewUserService(cfg.Auth, service.UserDependencies{
		UserRepo:   userRepo,
		Dispatcher: dispatcher,
		Audit:      auditService,
		Logger:     logger,
	})

	metrics := observability.NewMetrics()
	app := fiber.New(fiber.Config{
		AppName:               cfg.App.Name,
		ProxyHeader:           cfg.App.ProxyHeader,
		DisableStartupMessage: cfg.App.IsProduction(),
	})
	httptransport.RegisterMiddlewares(app, logger, metrics, cfg.App.RequestTimeout(), cfg.App.IsProduction())
	httptransport.RegisterRoutes(app, httptransport.RouteConfig{
		Health:         handlers.NewHealthHandler(cfg.App.Name, cfg.App.Version, metrics, checks),
		Users:          handlers.NewUsersHandler(authService, userService, validation.New()),
		Auth:           handlers.NewAuthHandler(authService),
		AuthMiddleware: auth.NewAuthMiddleware(tokens, logger),
		Limiter:        limiter,
		ResetRule: ratelimit.Rule{
			Prefix:      "reset_password",
			MaxAttempts: cfg.RateLimit.ResetPasswordMaxAttempts,
			Window:      cfg.RateLimit.ResetPasswordWindow,
		},
		Metrics: metrics,
		Logger:  logger,
	})

	go func() {
		if err := app.Listen(cfg.App.Addr()); err != nil {
			logger.Fatal("fiber listen", zap.Error(err))
		}
	}()

	waitForShutdown(logger)

	if err := app.ShutdownWithTimeout(shutdownTimeout); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	auditWorker.Stop()
}

func waitForShutdown(logger *zap.Logger) {
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	sig := <-sigCh
	logger.Info("shutting down", zap.String("signal", sig.String()))
}
