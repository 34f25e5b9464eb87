package audithttp

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/platform/httpx"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

const maxDateRange = 366 * 24 * time.Hour

// Service defines the business contract for audit listings.
type Service interface {
	List(ctx context.Context, actor identity.Actor, f audit.Filter) (audit.Result, error)
	Export(ctx context.Context, actor identity.Actor, f audit.Filter) ([]audit.Entry, error)
}

// Handler serves audit listings and CSV exports.
type Handler struct {
	logger  *slog.Logger
	service Service
	now     func() time.Time
}

// NewHandler builds an audit handler.
func NewHandler(logger *slog.Logger, service Service) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, now: time.Now}
}

func (h *Handler) handleList(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	result, err := h.service.List(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, "list audit entries", err)
		return
	}
	httpx.JSON(w, http.StatusOK, result)
}

func (h *Handler) handleExport(w http.ResponseWriter, r *http.Request) {
	actor, ok := authz.ActorFromContext(r.Context())
	if !ok {
		httpx.RespondError(w, httpx.ErrUnauthorized)
		return
	}
	filter, err := h.parseFilter(r)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	entries, err := h.service.Export(r.Context(), actor, filter)
	if err != nil {
		h.respondError(w, "export audit entries", err)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", "attachment; filename=\"audit-entries.csv\"")
	if err := audit.WriteCSV(w, entries); err != nil {
		h.logger.Warn("write csv", slog.Any("error", err))
	}
}

func (h *Handler) parseFilter(r *http.Request) (audit.Filter, error) {
	q := r.URL.Query()
	var f audit.Filter
	if v := strings.TrimSpace(q.Get("actor_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil || id < 0 {
			return audit.Filter{}, invalidParam("actor_id")
		}
		f.ActorID = &id
	}
	f.ResourceType = strings.TrimSpace(q.Get("resource_type"))
	var err error
	if f.ResourceID, err = optionalID(q.Get("resource_id"), "resource_id"); err != nil {
		return audit.Filter{}, err
	}
	if f.MuseumID, err = optionalID(q.Get("museum_id"), "museum_id"); err != nil {
		return audit.Filter{}, err
	}
	if f.From, err = optionalTime(q.Get("from"), "from"); err != nil {
		return audit.Filter{}, err
	}
	if f.To, err = optionalTime(q.Get("to"), "to"); err != nil {
		return audit.Filter{}, err
	}
	if !f.From.IsZero() && f.To.IsZero() {
		f.To = h.now().UTC()
	}
	if !f.From.IsZero() && f.To.Sub(f.From) > maxDateRange {
		return audit.Filter{}, invalidParam("range")
	}
	if v := strings.TrimSpace(q.Get("limit")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			return audit.Filter{}, invalidParam("limit")
		}
		f.Limit = n
	}
	if v := strings.TrimSpace(q.Get("offset")); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			return audit.Filter{}, invalidParam("offset")
		}
		f.Offset = n
	}
	return f, nil
}

func (h *Handler) respondError(w http.ResponseWriter, msg string, err error) {
	if httpx.StatusFor(err) >= http.StatusInternalServerError {
		h.logger.Error(msg, slog.Any("error", err))
	}
	httpx.RespondError(w, err)
}

func optionalID(raw, field string) (int64, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, invalidParam(field)
	}
	return id, nil
}

func optionalTime(raw, field string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, nil
	}
	if t, err := time.Parse(time.RFC3339, raw); err == nil {
		return t, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return time.Time{}, invalidParam(field)
	}
	return t, nil
}

func invalidParam(field string) error {
	return fmt.Errorf("%w: invalid %s", shared.ErrValidation, field)
}
