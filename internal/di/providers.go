package di

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
	sdklog "go.opentelemetry.io/otel/sdk/log"
	"gorm.io/gorm"

	"github.com/sandeepkv93/session-console/internal/app"
	"github.com/sandeepkv93/session-console/internal/config"
	"github.com/sandeepkv93/session-console/internal/health"
	"github.com/sandeepkv93/session-console/internal/http/handler"
	"github.com/sandeepkv93/session-console/internal/http/middleware"
	"github.com/sandeepkv93/session-console/internal/http/router"
	"github.com/sandeepkv93/session-console/internal/observability"
	"github.com/sandeepkv93/session-console/internal/repository"
	"github.com/sandeepkv93/session-console/internal/security"
	"github.com/sandeepkv93/session-console/internal/service"
)

var ProviderSet = wire.NewSet(
	provideDB,
	provideRedis,
	repository.NewSessionRepository,
	provideSessionService,
	wire.Bind(new(middleware.SessionResolver), new(*service.SessionService)),
	wire.Bind(new(app.ExpiredSessionCleaner), new(*service.SessionService)),
	provideJWTManager,
	handler.NewSessionHandler,
	provideReadiness,
	provideRouterDependencies,
	router.NewRouter,
	provideHTTPServer,
	provideRuntime,
	app.New,
)

func provideDB(cfg *config.Config) (*gorm.DB, func(), error) {
	db, err := repository.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if sqlDB, err := db.DB(); err == nil {
			_ = sqlDB.Close()
		}
	}
	if err := repository.Migrate(db); err != nil {
		cleanup()
		return nil, nil, err
	}
	return db, cleanup, nil
}

// provideRedis returns nil when REDIS_ADDR is unset; sessiond only uses Redis
// for its readiness probe.
func provideRedis(cfg *config.Config) (redis.UniversalClient, func()) {
	if cfg.RedisAddr == "" {
		return nil, func() {}
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return client, func() { _ = client.Close() }
}

func provideSessionService(repo repository.SessionRepository, cfg *config.Config, logger *slog.Logger) *service.SessionService {
	return service.NewSessionService(repo, cfg.SessionTTL, logger)
}

func provideJWTManager(cfg *config.Config) *security.JWTManager {
	return security.NewJWTManager(cfg.JWTIssuer, cfg.JWTAudience, cfg.JWTAccessSecret)
}

func provideReadiness(db *gorm.DB, rdb redis.UniversalClient) *health.ProbeRunner {
	checkers := []health.Checker{health.DBChecker{DB: db}}
	if rdb != nil {
		checkers = append(checkers, health.RedisChecker{Client: rdb})
	}
	return health.NewProbeRunner(2*time.Second, 5*time.Second, checkers...)
}

func provideRouterDependencies(
	cfg *config.Config,
	h *handler.SessionHandler,
	jwtMgr *security.JWTManager,
	resolver middleware.SessionResolver,
	readiness *health.ProbeRunner,
) router.Dependencies {
	return router.Dependencies{
		SessionHandler:  h,
		JWTManager:      jwtMgr,
		SessionResolver: resolver,
		APIRateLimitRPM: cfg.APIRateLimitPerMin,
		Readiness:       readiness,
		EnableOTelHTTP:  cfg.OTELTracingEnabled || cfg.OTELMetricsEnabled,
	}
}

func provideHTTPServer(cfg *config.Config, h http.Handler) *http.Server {
	return &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           h,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}
}

// provideRuntime hands the OTLP log provider built with the logger to the
// runtime, which shuts it down with the meter and tracer providers.
func provideRuntime(ctx context.Context, cfg *config.Config, logger *slog.Logger, lp *sdklog.LoggerProvider) (*observability.Runtime, error) {
	return observability.InitRuntime(ctx, cfg, logger, lp)
}
