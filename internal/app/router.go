package app

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/artifacts"
	audithttp "github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit/http"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/auth"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/museums"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/observability"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/rentals"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/users"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/jobs"
)

// RouterParams groups dependencies for building the HTTP router.
type RouterParams struct {
	Logger          *slog.Logger
	Config          *Config
	SessionManager  *shared.SessionManager
	CSRFManager     *shared.CSRFManager
	Actors          ActorResolver
	AuthHandler     *auth.Handler
	UsersHandler    *users.Handler
	ArtifactHandler *artifacts.Handler
	RentalHandler   *rentals.Handler
	MuseumHandler   *museums.Handler
	AuditHandler    *audithttp.Handler
	JobHandler      *jobs.Handler
	RBACMiddleware  authz.Middleware
	Metrics         *observability.Metrics
}

// NewRouter constructs the chi.Router with the API defaults.
func NewRouter(params RouterParams) http.Handler {
	r := chi.NewRouter()

	r.Use(chimw.Logger)
	for _, mw := range MiddlewareStack(MiddlewareConfig{
		Logger:         params.Logger,
		Config:         params.Config,
		SessionManager: params.SessionManager,
		CSRFManager:    params.CSRFManager,
		Actors:         params.Actors,
		Metrics:        params.Metrics,
	}) {
		r.Use(mw)
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		httpx.JSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	if params.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", params.Metrics.Handler())
	}

	if params.AuthHandler != nil {
		params.AuthHandler.MountRoutes(r)
	}

	r.Group(func(r chi.Router) {
		r.Use(params.RBACMiddleware.RequireActor)
		if params.UsersHandler != nil {
			params.UsersHandler.MountRoutes(r)
		}
		if params.ArtifactHandler != nil {
			params.ArtifactHandler.MountRoutes(r)
		}
		if params.RentalHandler != nil {
			params.RentalHandler.MountRoutes(r)
		}
		if params.MuseumHandler != nil {
			params.MuseumHandler.MountRoutes(r)
		}
		if params.AuditHandler != nil {
			params.AuditHandler.MountRoutes(r)
		}
		if params.JobHandler != nil {
			r.With(params.RBACMiddleware.RequireAny(identity.CapManageAllMuseums)).Route("/jobs", params.JobHandler.MountRoutes)
		}
	})

	return r
}
