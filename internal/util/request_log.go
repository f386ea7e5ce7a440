package util

import (
	"log/slog"
	"net/http"
	"time"
)

type requestLogTransport struct {
	next   http.RoundTripper
	logger *slog.Logger
}

// WithRequestLog wraps next so every outgoing request emits one debug log
// carrying its method, path, status and duration. The logger attached to the
// request context by WithRequestID wins over fallback.
func WithRequestLog(next http.RoundTripper, fallback *slog.Logger) http.RoundTripper {
	if next == nil {
		next = http.DefaultTransport
	}
	return &requestLogTransport{next: next, logger: fallback}
}

func (t *requestLogTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	start := time.Now()
	resp, err := t.next.RoundTrip(req)
	logger := LoggerFromContext(req.Context(), t.logger)
	attrs := []any{
		"method", req.Method,
		"path", req.URL.Path,
		"duration_ms", time.Since(start).Milliseconds(),
	}
	if err != nil {
		logger.Debug("api_request", append(attrs, "err", err)...)
		return nil, err
	}
	logger.Debug("api_request", append(attrs, "status", resp.StatusCode)...)
	return resp, nil
}
