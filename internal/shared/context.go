package shared

import "context"

type ctxKey int

const sessionKey ctxKey = iota

// ContextWithSession attaches the loaded session so the identity
// resolver and handlers share one copy per request.
func ContextWithSession(ctx context.Context, sess *Session) context.Context {
	return context.WithValue(ctx, sessionKey, sess)
}

// SessionFromContext returns the session attached by the session
// middleware, or nil outside of it.
func SessionFromContext(ctx context.Context) *Session {
	sess, _ := ctx.Value(sessionKey).(*Session)
	return sess
}
