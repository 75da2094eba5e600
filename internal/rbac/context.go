package rbac

import "context"

type authContextKey struct{}

// ContextWithAuth stores the resolved identity in context so it is
// resolved once per request.
func ContextWithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// AuthFromContext extracts the resolved identity, nil when absent.
func AuthFromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}
