package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/sandeepkv93/session-console/internal/health"
	"github.com/sandeepkv93/session-console/internal/http/handler"
	"github.com/sandeepkv93/session-console/internal/http/middleware"
	"github.com/sandeepkv93/session-console/internal/http/response"
	"github.com/sandeepkv93/session-console/internal/security"
)

type Dependencies struct {
	SessionHandler  *handler.SessionHandler
	JWTManager      *security.JWTManager
	SessionResolver middleware.SessionResolver
	APIRateLimitRPM int
	APIRateLimiter  APIRateLimiterFunc
	Readiness       *health.ProbeRunner
	EnableOTelHTTP  bool
}

type APIRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.BodyLimit(1 << 20))

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "dependencies are not ready", map[string]any{"checks": results})
	})

	apiLimiter := dep.APIRateLimiter
	if apiLimiter == nil && dep.APIRateLimitRPM > 0 {
		apiLimiter = middleware.NewRateLimiterWithKey(
			middleware.NewTokenBucketLimiter(dep.APIRateLimitRPM, time.Minute),
			dep.APIRateLimitRPM,
			middleware.FailClosed,
			"api",
			middleware.PrincipalOrIPKey,
		).Middleware()
	}

	r.Route("/api/v1/me", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(dep.JWTManager, dep.SessionResolver))
		if apiLimiter != nil {
			r.Use(apiLimiter)
		}
		r.Get("/session", dep.SessionHandler.Current)
		r.Get("/sessions", dep.SessionHandler.List)
		r.Get("/device-sessions", dep.SessionHandler.ListDevice)
		r.Post("/sessions/revoke", dep.SessionHandler.Revoke)
		r.Post("/sessions/revoke-others", dep.SessionHandler.RevokeOthers)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
