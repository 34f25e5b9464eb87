package authz

import (
	"log/slog"
	"net/http"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Middleware wires coarse capability checks for HTTP handlers. Scope and
// transition checks still happen in the services through the Gate.
type Middleware struct {
	Logger *slog.Logger
}

// RequireActor rejects requests without an authenticated actor.
func (m Middleware) RequireActor(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := ActorFromContext(r.Context()); !ok {
			httpx.RespondError(w, httpx.ErrUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// RequireAny ensures the current actor holds at least one of the capabilities.
func (m Middleware) RequireAny(caps ...identity.Capability) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			actor, ok := ActorFromContext(r.Context())
			if !ok {
				httpx.RespondError(w, httpx.ErrUnauthorized)
				return
			}
			if len(caps) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			held := actor.Capabilities()
			for _, c := range caps {
				if held.Has(c) {
					next.ServeHTTP(w, r)
					return
				}
			}
			if m.Logger != nil {
				m.Logger.Info("capability denied",
					slog.Int64("actor_id", actor.ID),
					slog.String("role", string(actor.Role)),
					slog.String("path", r.URL.Path))
			}
			httpx.RespondError(w, &DeniedError{Decision: Decision{
				Action:     Action(r.Method + " " + r.URL.Path),
				Reason:     ReasonInsufficientRole,
				Capability: caps[0],
				cause:      shared.ErrInsufficientRole,
			}})
		})
	}
}
