package observability

import (
	"log/slog"
	"net/http"
)

// Audit logs a user-visible action taken through an outgoing backend request.
func Audit(logger *slog.Logger, r *http.Request, event string, attrs ...any) {
	if logger == nil {
		logger = slog.Default()
	}
	base := []any{
		"event", event,
		"method", r.Method,
		"path", r.URL.Path,
		"request_id", r.Header.Get("X-Request-Id"),
	}
	base = append(base, attrs...)
	logger.InfoContext(r.Context(), "audit", base...)
}
