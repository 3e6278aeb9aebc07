package auth

import "context"

type contextKey struct{}

// WithUserID returns a ctx carrying the authenticated user ID.
// The user identity is always threaded through the request context,
// never kept in shared state between requests.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, contextKey{}, userID)
}

// UserIDFromContext returns the authenticated user ID set by the auth middleware.
func UserIDFromContext(ctx context.Context) (string, bool) {
	userID, ok := ctx.Value(contextKey{}).(string)
	return userID, ok && userID != ""
}
