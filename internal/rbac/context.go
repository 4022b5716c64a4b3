package rbac

import "context"

type userContextKey struct{}

// ContextWithUser stores the authenticated user in ctx.
func ContextWithUser(ctx context.Context, u *User) context.Context {
	return context.WithValue(ctx, userContextKey{}, u)
}

// UserFromContext returns the user placed by the LoadUser middleware, or nil
// for anonymous requests.
func UserFromContext(ctx context.Context) *User {
	u, _ := ctx.Value(userContextKey{}).(*User)
	return u
}
