package shared

import "context"

type actorContextKey struct{}

// ContextWithActor stores the acting user id in context. The identity layer
// is an external collaborator; settlement code only consumes the opaque id
// for audit fields.
func ContextWithActor(ctx context.Context, actorID int64) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actorID)
}

// ActorFromContext extracts the acting user id from context, 0 when absent.
func ActorFromContext(ctx context.Context) int64 {
	id, _ := ctx.Value(actorContextKey{}).(int64)
	return id
}
