package util

import (
	"context"
	"log/slog"
	"strings"
)

type requestIDContextKey string

const (
	// RequestIDHeader carries the client-generated id of an outgoing request.
	RequestIDHeader = "X-Request-Id"

	requestIDCtxKey = requestIDContextKey("request_id")
)

// WithRequestID returns a context carrying a request id and a child logger
// tagged with it. An id already present in ctx is kept, so a user action that
// fans out into several calls can share one id.
func WithRequestID(ctx context.Context, logger *slog.Logger) (context.Context, string) {
	if ctx == nil {
		ctx = context.Background()
	}
	requestID := RequestIDFromContext(ctx)
	if requestID == "" {
		requestID = NewID()
		ctx = context.WithValue(ctx, requestIDCtxKey, requestID)
	}
	if logger == nil {
		logger = slog.Default()
	}
	return ContextWithLogger(ctx, logger.With("request_id", requestID)), requestID
}

// ContextWithRequestID pins id as the request id of ctx.
func ContextWithRequestID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDCtxKey, strings.TrimSpace(id))
}

// RequestIDFromContext returns request id from context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	id, _ := ctx.Value(requestIDCtxKey).(string)
	return id
}
