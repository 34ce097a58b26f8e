package telemetry

import "context"

// runIDKey is the context key type used to store a run ID.
type runIDKey struct{}

// WithRunID returns a child context that carries the provided run ID.
// If ctx is nil, context.Background() is used
func WithRunID(ctx context.Context, id string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, runIDKey{}, id)
}

// RunIDFromContext returns the run ID from ctx, if present.
// Returns "", false if the value is missing or not a non-empty string.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if ctx == nil {
		return "", false
	}
	s, ok := ctx.Value(runIDKey{}).(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}
