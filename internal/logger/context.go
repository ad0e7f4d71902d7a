package logger

import "context"

// contextKey is unexported so no other package can collide with our keys.
type contextKey struct{}

var requestIDKey = contextKey{}

// WithRequestID stores the request ID for later log correlation.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey, id)
}

// RequestID returns the request ID carried by ctx, or "" when none is set.
func RequestID(ctx context.Context) string {
	id, _ := ctx.Value(requestIDKey).(string)
	return id
}
