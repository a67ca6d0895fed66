package auth

import "context"

type actorContextKey struct{}

// ContextWithActor stores the authenticated user in context.
func ContextWithActor(ctx context.Context, user *User) context.Context {
	return context.WithValue(ctx, actorContextKey{}, user)
}

// ActorFromContext extracts the authenticated user, or nil.
func ActorFromContext(ctx context.Context) *User {
	user, _ := ctx.Value(actorContextKey{}).(*User)
	return user
}
