package workflow

import "context"

type ctxKey int

const sessionIDKey ctxKey = iota

// WithSessionID returns a context carrying the session ID of the check.
func WithSessionID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, sessionIDKey, id)
}

// SessionIDFromContext returns the session ID set by the Coordinator for
// sink calls, or "".
func SessionIDFromContext(ctx context.Context) string {
	id, _ := ctx.Value(sessionIDKey).(string)
	return id
}
