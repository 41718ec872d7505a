// Package tenant carries the active tenant identifier through request
// contexts. Every tenant-scoped component reads the id from the context
// rather than from shared state, so concurrent requests cannot leak tenants
// into one another.
package tenant

import "context"

type contextKey struct{}

// Header is the HTTP header carrying the tenant identifier.
const Header = "X-Tenant-Id"

// WithID returns a child context bound to the given tenant id.
func WithID(ctx context.Context, tenantID string) context.Context {
	return context.WithValue(ctx, contextKey{}, tenantID)
}

// FromContext returns the tenant id bound to ctx, or "" when none is set.
func FromContext(ctx context.Context) string {
	id, _ := ctx.Value(contextKey{}).(string)
	return id
}
