package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/sandeepkv93/session-console/internal/config"
	"github.com/sandeepkv93/session-console/internal/health"
	"github.com/sandeepkv93/session-console/internal/observability"
)

const defaultCleanupInterval = time.Hour

// ExpiredSessionCleaner removes sessions past their expiry.
type ExpiredSessionCleaner interface {
	CleanupExpired(ctx context.Context) (int64, error)
}

type App struct {
	Config        *config.Config
	Logger        *slog.Logger
	Server        *http.Server
	Observability *observability.Runtime
	Readiness     *health.ProbeRunner
	Cleaner       ExpiredSessionCleaner

	ShutdownTimeout time.Duration
	CleanupInterval time.Duration
}

func New(cfg *config.Config, logger *slog.Logger, server *http.Server, runtime *observability.Runtime, readiness *health.ProbeRunner, cleaner ExpiredSessionCleaner) *App {
	return &App{
		Config:          cfg,
		Logger:          logger,
		Server:          server,
		Observability:   runtime,
		Readiness:       readiness,
		Cleaner:         cleaner,
		ShutdownTimeout: cfg.ShutdownTimeout,
		CleanupInterval: defaultCleanupInterval,
	}
}

// Run serves until ctx is cancelled or the listener fails, then drains the
// server and flushes telemetry.
func (a *App) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.Logger.Info("http server listening", "addr", a.Server.Addr)
		if err := a.Server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		a.cleanupLoop(gctx)
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return a.Shutdown(context.Background())
	})
	return g.Wait()
}

func (a *App) Shutdown(ctx context.Context) error {
	timeout := a.ShutdownTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	a.Logger.Info("shutting down")
	var errs []error
	if err := a.Server.Shutdown(ctx); err != nil {
		errs = append(errs, fmt.Errorf("shutdown http server: %w", err))
	}
	if a.Observability != nil {
		if err := a.Observability.Shutdown(ctx); err != nil {
			errs = append(errs, fmt.Errorf("shutdown observability: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (a *App) cleanupLoop(ctx context.Context) {
	if a.Cleaner == nil || a.CleanupInterval <= 0 {
		return
	}
	ticker := time.NewTicker(a.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := a.Cleaner.CleanupExpired(ctx)
			if err != nil {
				a.Logger.Warn("expired session cleanup failed", "error", err)
				continue
			}
			if n > 0 {
				a.Logger.Info("expired sessions removed", "count", n)
			}
		}
	}
}
