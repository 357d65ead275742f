package observability

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
)

// Audit writes one audit line for a session mutation made through r.
func Audit(r *http.Request, event string, attrs ...any) {
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", middleware.GetReqID(r.Context()),
		"remote_ip", r.RemoteAddr,
	}
	base = append(base, TraceAttrs(r.Context())...)
	base = append(base, attrs...)
	slog.InfoContext(r.Context(), "audit", base...)
}
