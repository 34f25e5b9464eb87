package audithttp

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/require"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/audit"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
)

type stubService struct {
	result     audit.Result
	exportRows []audit.Entry
	err        error
	last       audit.Filter
}

func (s *stubService) List(ctx context.Context, actor identity.Actor, f audit.Filter) (audit.Result, error) {
	s.last = f
	return s.result, s.err
}

func (s *stubService) Export(ctx context.Context, actor identity.Actor, f audit.Filter) ([]audit.Entry, error) {
	s.last = f
	return s.exportRows, s.err
}

var admin = identity.Actor{ID: 2, Role: identity.RoleMuseumAdmin, MuseumID: 1, IsActive: true}

func newRouter(svc Service) http.Handler {
	h := NewHandler(nil, svc)
	h.now = func() time.Time { return time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC) }
	r := chi.NewRouter()
	h.MountRoutes(r)
	return r
}

func withActor(req *http.Request, actor identity.Actor) *http.Request {
	return req.WithContext(authz.WithActor(req.Context(), actor))
}

func TestListRequiresActor(t *testing.T) {
	rr := httptest.NewRecorder()
	newRouter(&stubService{}).ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/audit", nil))
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestListParsesFilter(t *testing.T) {
	svc := &stubService{result: audit.Result{Entries: []audit.Entry{{ID: 1, Action: "artifact.museum_approve"}}}}
	req := withActor(httptest.NewRequest(http.MethodGet, "/audit?actor_id=0&resource_type=artifact&resource_id=10&from=2025-05-01&limit=5", nil), admin)
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	require.NotNil(t, svc.last.ActorID)
	require.Equal(t, int64(0), *svc.last.ActorID)
	require.Equal(t, "artifact", svc.last.ResourceType)
	require.Equal(t, int64(10), svc.last.ResourceID)
	require.Equal(t, 5, svc.last.Limit)
	require.Equal(t, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC), svc.last.To)

	var body audit.Result
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Len(t, body.Entries, 1)
}

func TestListRejectsBadParams(t *testing.T) {
	for _, q := range []string{"resource_id=abc", "from=yesterday", "limit=0", "offset=-1", "from=2020-01-01&to=2025-01-01"} {
		rr := httptest.NewRecorder()
		newRouter(&stubService{}).ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/audit?"+q, nil), admin))
		require.Equal(t, http.StatusBadRequest, rr.Code, q)
	}
}

func TestListMapsDenial(t *testing.T) {
	svc := &stubService{err: shared.ErrNotOwner}
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/audit?museum_id=2", nil), admin))
	require.Equal(t, http.StatusForbidden, rr.Code)
}

func TestExportCSV(t *testing.T) {
	svc := &stubService{exportRows: []audit.Entry{{ID: 7, ActorID: 2, Action: "rental.museum_approve", ResourceType: "rental", ResourceID: 3, PreviousState: "a", NewState: "b"}}}
	rr := httptest.NewRecorder()
	newRouter(svc).ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil), admin))
	require.Equal(t, http.StatusOK, rr.Code)
	require.True(t, strings.HasPrefix(rr.Header().Get("Content-Type"), "text/csv"))
	require.Contains(t, rr.Body.String(), "rental.museum_approve")
}

func TestExportRateLimited(t *testing.T) {
	router := newRouter(&stubService{})
	var last int
	for i := 0; i < rateLimit+1; i++ {
		rr := httptest.NewRecorder()
		router.ServeHTTP(rr, withActor(httptest.NewRequest(http.MethodGet, "/audit/export.csv", nil), admin))
		last = rr.Code
	}
	require.Equal(t, http.StatusTooManyRequests, last)
}
