package deerflow

import "context"

type userIDKey struct{}

// WithUserID returns a context carrying the authenticated user's ID.
// The authentication layer owns how the ID is established; handlers and
// stores only ever read it back via UserIDFromContext.
func WithUserID(ctx context.Context, userID string) context.Context {
	return context.WithValue(ctx, userIDKey{}, userID)
}

// UserIDFromContext extracts the user ID set by WithUserID.
func UserIDFromContext(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(userIDKey{}).(string)
	return id, ok && id != ""
}
