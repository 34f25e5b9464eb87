package authz

import (
	"context"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

type (
	actorKey   struct{}
	sessionKey struct{}
)

// WithActor stores the resolved actor on the context.
func WithActor(ctx context.Context, actor identity.Actor) context.Context {
	return context.WithValue(ctx, actorKey{}, actor)
}

// ActorFromContext returns the actor resolved for the request, if any.
func ActorFromContext(ctx context.Context) (identity.Actor, bool) {
	actor, ok := ctx.Value(actorKey{}).(identity.Actor)
	return actor, ok
}

// WithSession stores the request's session on the context.
func WithSession(ctx context.Context, sess *shared.Session) context.Context {
	return context.WithValue(ctx, sessionKey{}, sess)
}

// SessionFromContext returns the request's session, nil outside SessionMiddleware.
func SessionFromContext(ctx context.Context) *shared.Session {
	sess, _ := ctx.Value(sessionKey{}).(*shared.Session)
	return sess
}
