package artifacts

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

const maxBulkItems = 100

// Handler manages artifact endpoints.
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

// MountRoutes registers artifact routes. The router is expected to require an actor.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/artifacts", h.handleList)
	r.Post("/artifacts", h.handleCreate)
	r.Post("/artifacts/bulk-transitions", h.handleBulk)
	r.Get("/artifacts/{id}", h.handleGet)
	r.Get("/artifacts/{id}/decision", h.handleDecision)
	r.Post("/artifacts/{id}/transitions", h.handleTransition)
}

type createRequest struct {
	MuseumID    int64  `json:"museum_id" validate:"omitempty,gt=0"`
	Title       string `json:"title" validate:"required,max=200"`
	Description string `json:"description" validate:"max=5000"`
	Category    string `json:"category" validate:"max=100"`
	Period      string `json:"period" validate:"max=100"`
}

type transitionRequest struct {
	Event    string `json:"event" validate:"required"`
	Feedback string `json:"feedback" validate:"max=2000"`
}

type bulkRequest struct {
	Items []bulkItemRequest `json:"items" validate:"required,min=1,dive"`
}

type bulkItemRequest struct {
	ArtifactID int64  `json:"artifact_id" validate:"required,gt=0"`
	Event      string `json:"event" validate:"required"`
	Feedback   string `json:"feedback" validate:"max=2000"`
}

func (h *Handler) handleCreate(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req createRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	a, err := h.service.Create(r.Context(), actor, CreateInput{
		MuseumID:    req.MuseumID,
		Title:       req.Title,
		Description: req.Description,
		Category:    req.Category,
		Period:      req.Period,
	})
	if err != nil {
		h.respondError(w, "create artifact", err)
		return
	}
	httpx.JSON(w, http.StatusCreated, a)
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
	status := workflow.ArtifactStatus(q.Get("status"))
	if status != "" && !status.Valid() {
		httpx.RespondError(w, shared.ErrValidation)
		return
	}
	items, err := h.service.List(r.Context(), actor, ListFilter{MuseumID: museumID, Status: status, Limit: limit, Offset: offset})
	if err != nil {
		h.respondError(w, "list artifacts", err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"items": items, "limit": limit, "offset": offset})
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
	a, err := h.service.Get(r.Context(), actor, id)
	if err != nil {
		h.respondError(w, "get artifact", err)
		return
	}
	httpx.JSON(w, http.StatusOK, a)
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
		h.respondError(w, "authorize artifact", err)
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
	res, err := h.service.Apply(r.Context(), actor, id, ev, req.Feedback)
	if err != nil {
		h.respondError(w, "apply artifact transition", err)
		return
	}
	httpx.JSON(w, http.StatusOK, res)
}

func (h *Handler) handleBulk(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	var req bulkRequest
	if err := httpx.Bind(r, h.validator, &req); err != nil {
		httpx.RespondError(w, err)
		return
	}
	if len(req.Items) > maxBulkItems {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", "too many items")
		return
	}
	items := make([]BulkItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, BulkItem{ArtifactID: it.ArtifactID, Event: workflow.Event(it.Event), Feedback: it.Feedback})
	}
	report, err := h.service.ApplyBulk(r.Context(), actor, items)
	if err != nil {
		if len(report.Items) == 0 {
			h.respondError(w, "bulk artifact transitions", err)
			return
		}
		h.logger.Warn("bulk artifact transitions interrupted",
			slog.Int("attempted", len(report.Items)),
			slog.Int("requested", len(items)),
			slog.Any("error", err))
		httpx.JSON(w, http.StatusMultiStatus, report)
		return
	}
	status := http.StatusOK
	if report.Failed > 0 && report.Applied > 0 {
		status = http.StatusMultiStatus
	}
	httpx.JSON(w, status, report)
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
