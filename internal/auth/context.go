package auth

import "context"

type contextKey struct{}

// Identity is the request-scoped view of the signed-in user. EmailVerified
// here is a snapshot from session validation; code that gates on it must
// re-read the user row instead of trusting this copy.
type Identity struct {
	UserID        int64
	Email         string
	Name          string
	EmailVerified bool
	SessionID     int64
}

func WithIdentity(ctx context.Context, id Identity) context.Context {
	return context.WithValue(ctx, contextKey{}, id)
}

func FromContext(ctx context.Context) (Identity, bool) {
	id, ok := ctx.Value(contextKey{}).(Identity)
	return id, ok
}

func UserID(ctx context.Context) int64 {
	id, ok := FromContext(ctx)
	if !ok {
		return 0
	}
	return id.UserID
}
