package observability

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/sandeepkv93/session-console/internal/config"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/exporters/otlp/otlpmetric/otlpmetricgrpc"
	"go.opentelemetry.io/otel/metric"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

const meterName = "session-console"

type AppMetrics struct {
	sessionRevokeCounter metric.Int64Counter
	sessionListCounter   metric.Int64Counter
	geoLookupCounter     metric.Int64Counter
	geoCacheCounter      metric.Int64Counter
	rateLimitCounter     metric.Int64Counter
	repositoryCounter    metric.Int64Counter
}

var (
	metricsMu  sync.RWMutex
	appMetrics *AppMetrics
)

func InitMetrics(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*sdkmetric.MeterProvider, error) {
	if !cfg.OTELMetricsEnabled {
		mp := sdkmetric.NewMeterProvider()
		otel.SetMeterProvider(mp)
		logger.Info("otel metrics disabled")
		return mp, nil
	}

	opts := []otlpmetricgrpc.Option{otlpmetricgrpc.WithEndpoint(cfg.OTELExporterOTLPEndpoint)}
	if cfg.OTELExporterOTLPInsecure {
		opts = append(opts, otlpmetricgrpc.WithInsecure())
	}
	exporter, err := otlpmetricgrpc.New(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("create otlp metric exporter: %w", err)
	}

	res, err := newResource(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("create metric resource: %w", err)
	}

	reader := sdkmetric.NewPeriodicReader(exporter, sdkmetric.WithInterval(cfg.OTELMetricsExportInterval))
	mp := sdkmetric.NewMeterProvider(
		sdkmetric.WithResource(res),
		sdkmetric.WithReader(reader),
	)
	otel.SetMeterProvider(mp)

	m, err := newAppMetrics(mp.Meter(meterName))
	if err != nil {
		return nil, err
	}
	setAppMetrics(m)

	logger.Info("otel metrics initialized", "endpoint", cfg.OTELExporterOTLPEndpoint)
	return mp, nil
}

func newAppMetrics(meter metric.Meter) (*AppMetrics, error) {
	revoke, err := meter.Int64Counter("session.revoke.attempts")
	if err != nil {
		return nil, err
	}
	list, err := meter.Int64Counter("session.list.requests")
	if err != nil {
		return nil, err
	}
	lookup, err := meter.Int64Counter("geo.lookup.requests")
	if err != nil {
		return nil, err
	}
	cache, err := meter.Int64Counter("geo.cache.events")
	if err != nil {
		return nil, err
	}
	limited, err := meter.Int64Counter("http.rate_limit.decisions")
	if err != nil {
		return nil, err
	}
	repo, err := meter.Int64Counter("repository.operations")
	if err != nil {
		return nil, err
	}
	return &AppMetrics{
		repositoryCounter:    repo,
		sessionRevokeCounter: revoke,
		sessionListCounter:   list,
		geoLookupCounter:     lookup,
		geoCacheCounter:      cache,
		rateLimitCounter:     limited,
	}, nil
}

func setAppMetrics(m *AppMetrics) {
	metricsMu.Lock()
	appMetrics = m
	metricsMu.Unlock()
}

func currentMetrics() *AppMetrics {
	metricsMu.RLock()
	defer metricsMu.RUnlock()
	return appMetrics
}

// RecordSessionRevoke counts a revoke attempt. kind is one, others or bulk.
func RecordSessionRevoke(ctx context.Context, kind, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionRevokeCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("kind", kind),
			attribute.String("status", status),
		),
	)
}

func RecordSessionList(ctx context.Context, scope, status string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.sessionListCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("status", status),
		),
	)
}

func RecordGeoLookup(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.geoLookupCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordGeoCache(ctx context.Context, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.geoCacheCounter.Add(ctx, 1, metric.WithAttributes(attribute.String("outcome", outcome)))
}

func RecordRateLimitDecision(ctx context.Context, scope, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.rateLimitCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("scope", scope),
			attribute.String("outcome", outcome),
		),
	)
}

func RecordRepositoryOperation(ctx context.Context, repo, op, outcome string) {
	m := currentMetrics()
	if m == nil {
		return
	}
	m.repositoryCounter.Add(ctx, 1,
		metric.WithAttributes(
			attribute.String("repository", repo),
			attribute.String("operation", op),
			attribute.String("outcome", outcome),
		),
	)
}
