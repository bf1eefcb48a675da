// ABOUTME: Request-scoped auth context carried via context.Context.
// ABOUTME: Populated by the HTTP middleware, read by the admin handlers.

package auth

import (
	"context"

	"github.com/conclave-mesh/conclave-gateway/internal/trust"
)

// AuthContext holds the verified claims attached to a request.
type AuthContext struct {
	Identity string
	Trust    trust.Level
}

type authContextKey struct{}

// WithAuth returns a new context with the AuthContext attached.
func WithAuth(ctx context.Context, ac *AuthContext) context.Context {
	return context.WithValue(ctx, authContextKey{}, ac)
}

// FromContext retrieves the AuthContext, returning nil if not present.
func FromContext(ctx context.Context) *AuthContext {
	ac, _ := ctx.Value(authContextKey{}).(*AuthContext)
	return ac
}
