package museums

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Handler exposes museum endpoints.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler builds Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers museum routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/museums", h.handleList)
	r.Get("/museums/{id}", h.handleGet)
	r.Post("/museums/{id}/transitions", h.handleTransition)
}

type transitionRequest struct {
	Event    string `json:"event" validate:"required,oneof=approve reject"`
	Comments string `json:"comments" validate:"max=2000"`
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	items, err := h.service.List(r.Context(), actor, workflow.MuseumStatus(r.URL.Query().Get("status")))
	if err != nil {
		h.respondError(w, "list museums", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h *Handler) handleGet(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	m, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get museum", err)
		return
	}
	httpx.JSON(w, http.StatusOK, m)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		httpx.RespondError(w, shared.ErrNotFound)
		return
	}
	var req transitionRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Apply(r.Context(), actor, id, workflow.Event(req.Event), req.Comments)
	if err != nil {
		h.respondError(w, "apply museum transition", err)
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
