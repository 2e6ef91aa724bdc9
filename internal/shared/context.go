package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context.
// The id comes from the external auth layer, the service only records it.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id from context.
// Returns zero when no authenticated actor was supplied.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
