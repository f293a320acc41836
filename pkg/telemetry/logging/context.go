package logging

import (
	"context"
	"log/slog"
)

type contextKey string

// RequestIDKey is the context key for admin API request IDs.
const RequestIDKey contextKey = "request_id"

// WithRequestID adds a request ID to the context. Records logged with that
// context carry it as request_id.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, RequestIDKey, id)
}

// GetRequestID retrieves the request ID from the context.
func GetRequestID(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	v, _ := ctx.Value(RequestIDKey).(string)
	return v
}

// contextAttrs returns the log fields stored in ctx.
func contextAttrs(ctx context.Context) []slog.Attr {
	if id := GetRequestID(ctx); id != "" {
		return []slog.Attr{slog.String(string(RequestIDKey), id)}
	}
	return nil
}
