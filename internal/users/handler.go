package users

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

// Handler manages actor endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
	rbac      authz.Middleware
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service, rbac authz.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), rbac: rbac}
}

// MountRoutes registers user routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/me", h.handleMe)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireAny(identity.CapManageAllUsers))
		r.Get("/users", h.handleList)
		r.Put("/users/{id}/role", h.handleChangeRole)
	})
}

type changeRoleRequest struct {
	Role     string `json:"role" validate:"required,oneof=visitor museum_staff museum_admin super_admin"`
	MuseumID int64  `json:"museum_id" validate:"gte=0"`
}

func (h *Handler) handleMe(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	httpx.JSON(w, http.StatusOK, h.service.Profile(actor))
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	museumID, _ := strconv.ParseInt(q.Get("museum_id"), 10, 64)
	items, err := h.service.ListActors(r.Context(), actor, ListFilter{
		Role:     identity.Role(q.Get("role")),
		MuseumID: museumID,
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(w, "list actors", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleChangeRole(w http.ResponseWriter, r *http.Request) {
	actor, _ := authz.ActorFromContext(r.Context())
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req changeRoleRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.ChangeRole(r.Context(), actor, id, ChangeRoleInput{Role: identity.Role(req.Role), MuseumID: req.MuseumID})
	if err != nil {
		h.respondError(w, "change role", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}
