package sessionctl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/redis/go-redis/v9"

	"github.com/sandeepkv93/session-console/internal/authclient"
	"github.com/sandeepkv93/session-console/internal/config"
	"github.com/sandeepkv93/session-console/internal/geo"
	"github.com/sandeepkv93/session-console/internal/observability"
	"github.com/sandeepkv93/session-console/internal/panel"
)

// console is everything one sessionctl invocation works with.
type console struct {
	cfg     *config.Config
	logger  *slog.Logger
	co      *panel.Coordinator
	closers []func(context.Context) error
}

func (c *console) Close(ctx context.Context) error {
	var errs []error
	for i := len(c.closers) - 1; i >= 0; i-- {
		errs = append(errs, c.closers[i](ctx))
	}
	return errors.Join(errs...)
}

func buildConsole(ctx context.Context, opts *options, logOut io.Writer) (*console, error) {
	cfg, err := config.LoadFile(opts.envFile)
	if err != nil {
		return nil, err
	}
	if opts.baseURL != "" {
		cfg.AuthBaseURL = opts.baseURL
	}
	if opts.token != "" {
		cfg.AuthToken = opts.token
	}

	logCfg := *cfg
	if logCfg.LogLevel == "info" {
		logCfg.LogLevel = "warn"
	}
	logger, lp, err := observability.NewLogger(ctx, &logCfg, logOut)
	if err != nil {
		return nil, err
	}
	c := &console{cfg: cfg, logger: logger}
	if lp != nil {
		c.closers = append(c.closers, lp.Shutdown)
	}

	auth, err := authclient.New(cfg.AuthBaseURL, cfg.AuthToken,
		authclient.WithTimeout(cfg.AuthTimeout),
		authclient.WithLogger(logger),
	)
	if err != nil {
		_ = c.Close(ctx)
		return nil, fmt.Errorf("auth client: %w (set AUTH_TOKEN or --token)", err)
	}

	store, closeStore := geoCacheStore(cfg)
	if closeStore != nil {
		c.closers = append(c.closers, closeStore)
	}
	lookup := geo.NewCachedClient(
		geo.NewClient(cfg.GeoBaseURL,
			geo.WithTimeout(cfg.GeoTimeout),
			geo.WithRateLimit(cfg.GeoRateLimitRPS, 1),
			geo.WithLogger(logger),
		),
		store, cfg.GeoCacheTTL, logger,
	)

	sessions := panel.NewSessionListController(auth,
		panel.WithClassifier(panel.NewUAClassifier()),
		panel.WithBulkConcurrency(cfg.BulkRevokeConcurrency),
	)
	widget := panel.NewIPLookupWidget(lookup,
		panel.WithMapLinker(geo.MapLinker{BaseURL: cfg.MapBaseURL}),
		panel.WithWidgetLogger(logger),
	)
	c.co = panel.NewCoordinator(auth, sessions, widget, logger)
	return c, nil
}

// geoCacheStore shares lookups through Redis when REDIS_ADDR is set and
// keeps them in process otherwise.
func geoCacheStore(cfg *config.Config) (geo.CacheStore, func(context.Context) error) {
	if cfg.RedisAddr == "" {
		return geo.NewInMemoryCacheStore(), nil
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	})
	return geo.NewRedisCacheStore(rdb, "sessionctl:geo"), func(context.Context) error { return rdb.Close() }
}
