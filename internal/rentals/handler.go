package rentals

import (
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/workflow"
)

// Handler exposes rental endpoints.
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

// MountRoutes registers rental routes. System events are raised by the worker, not over HTTP.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/rentals", h.handleList)
	r.Post("/rentals", h.handleRequest)
	r.Get("/rentals/{id}", h.handleGet)
	r.Get("/rentals/{id}/decision", h.handleDecision)
	r.Post("/rentals/{id}/transitions", h.handleTransition)
}

type rentalRequest struct {
	ArtifactID int64     `json:"artifact_id" validate:"required,gt=0"`
	StartDate  time.Time `json:"start_date" validate:"required"`
	EndDate    time.Time `json:"end_date" validate:"required,gtfield=StartDate"`
	Purpose    string    `json:"purpose" validate:"required,max=1000"`
}

type transitionRequest struct {
	Event    string `json:"event" validate:"required"`
	Comments string `json:"comments" validate:"max=2000"`
}

func (h *Handler) handleRequest(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req rentalRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	rental, err := h.service.Request(r.Context(), actor, RequestInput{
		ArtifactID: req.ArtifactID,
		StartDate:  req.StartDate,
		EndDate:    req.EndDate,
		Purpose:    req.Purpose,
	})
	if err != nil {
		h.respondError(w, "request rental", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, rental)
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	q := r.URL.Query()
	limit, _ := strconv.Atoi(q.Get("limit"))
	offset, _ := strconv.Atoi(q.Get("offset"))
	museumID, _ := strconv.ParseInt(q.Get("museum_id"), 10, 64)
	items, err := h.service.List(r.Context(), actor, ListFilter{
		MuseumID: museumID,
		Status:   workflow.RentalStatus(q.Get("status")),
		Limit:    limit,
		Offset:   offset,
	})
	if err != nil {
		h.respondError(w, "list rentals", err)
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
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	rental, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get rental", err)
		return
	}
	httpx.JSON(w, http.StatusOK, rental)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	ev, err := workflow.ParseEvent(r.URL.Query().Get("event"))
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	decision, err := h.service.Authorize(r.Context(), actor, id, ev)
	if err != nil {
		h.respondError(w, "authorize rental", err)
		return
	}
	httpx.JSON(w, http.StatusOK, decision)
}

func (h *Handler) handleTransition(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	id, err := parseID(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	var req transitionRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	ev, err := workflow.ParseEvent(req.Event)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	res, err := h.service.Apply(r.Context(), actor, id, ev, req.Comments)
	if err != nil {
		h.respondError(w, "apply rental transition", err)
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

func parseID(r *http.Request) (int64, error) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, shared.ErrNotFound
	}
	return id, nil
}
