package config

import (
	"context"
	"errors"
	"strings"
	"sync"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Validation scopes. sessionctl stops after the shared checks in LoadFile,
// sessiond runs ValidateServer on top of them.
const (
	scopeShared = "shared"
	scopeServer = "server"
)

var (
	validationOnce    sync.Once
	validationMu      sync.RWMutex
	validationCounter metric.Int64Counter
)

func currentValidationCounter() metric.Int64Counter {
	validationOnce.Do(func() {
		c, err := otel.Meter("session-console/config").Int64Counter(
			"config.validation.events",
			metric.WithDescription("Configuration checks by scope and outcome"),
		)
		if err == nil {
			setValidationCounter(c)
		}
	})
	validationMu.RLock()
	defer validationMu.RUnlock()
	return validationCounter
}

func setValidationCounter(c metric.Int64Counter) {
	validationMu.Lock()
	validationCounter = c
	validationMu.Unlock()
}

func recordValidation(ctx context.Context, scope, appEnv string, err error) {
	c := currentValidationCounter()
	if c == nil {
		return
	}
	outcome := "success"
	if err != nil {
		outcome = "failure"
	}
	attrs := []attribute.KeyValue{
		attribute.String("scope", scope),
		attribute.String("app_env", normalizeAppEnv(appEnv)),
		attribute.String("outcome", outcome),
		attribute.String("error_class", classifyValidationError(err)),
	}
	var pe *ParseError
	if errors.As(err, &pe) {
		attrs = append(attrs, attribute.String("key", pe.Key))
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}

func normalizeAppEnv(env string) string {
	v := strings.TrimSpace(strings.ToLower(env))
	if v == "" {
		return "unknown"
	}
	return v
}

func classifyValidationError(err error) string {
	var pe *ParseError
	switch {
	case err == nil:
		return "none"
	case errors.As(err, &pe):
		return "parse"
	case errors.Is(err, ErrInvalidConfig):
		return "validation"
	default:
		return "load"
	}
}
