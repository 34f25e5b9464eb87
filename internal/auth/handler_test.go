package auth_test

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/auth"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/authz"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/identity"
	"github.com/Summer-Camp-Project/Project-for-G25-sub011/internal/shared"
	_ "github.com/Summer-Camp-Project/Project-for-G25-sub011/testing"
)

type stubRepo struct {
	creds *identity.Credentials
	err   error
}

func (s *stubRepo) FindCredentials(ctx context.Context, email string) (identity.Credentials, error) {
	if s.err != nil {
		return identity.Credentials{}, s.err
	}
	if s.creds == nil || !strings.EqualFold(s.creds.Actor.Email, email) {
		return identity.Credentials{}, identity.ErrActorNotFound
	}
	return *s.creds, nil
}

func curatorCreds(t *testing.T, active bool) *identity.Credentials {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("correctpass"), bcrypt.MinCost)
	require.NoError(t, err)
	return &identity.Credentials{
		Actor:        identity.Actor{ID: 7, Email: "curator@museum.test", Role: identity.RoleMuseumAdmin, MuseumID: 1, IsActive: active},
		PasswordHash: string(hashed),
	}
}

type testServer struct {
	sessions *shared.SessionManager
	handler  http.Handler
}

func newTestServer(t *testing.T, repo auth.Repository) *testServer {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	sessions := shared.NewSessionManager(client, "test_session", time.Hour, false)
	csrf := shared.NewCSRFManager("csrfsecret")

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessions.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := authz.WithSession(req.Context(), sess)
			buf := httptest.NewRecorder()
			next.ServeHTTP(buf, req.WithContext(ctx))
			require.NoError(t, sessions.Commit(ctx, w, sess))
			for k, v := range buf.Header() {
				w.Header()[k] = v
			}
			w.WriteHeader(buf.Code)
			_, _ = w.Write(buf.Body.Bytes())
		})
	})
	auth.NewHandler(nil, auth.NewService(repo), sessions, csrf).MountRoutes(r)
	return &testServer{sessions: sessions, handler: r}
}

func (s *testServer) do(method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	for _, c := range cookies {
		req.AddCookie(c)
	}
	rr := httptest.NewRecorder()
	s.handler.ServeHTTP(rr, req)
	return rr
}

func TestLoginBindsActorToFreshSession(t *testing.T) {
	srv := newTestServer(t, &stubRepo{creds: curatorCreds(t, true)})

	rr := srv.do(http.MethodGet, "/auth/csrf", "")
	require.Equal(t, http.StatusOK, rr.Code)
	anon := rr.Result().Cookies()
	require.Len(t, anon, 1)

	rr = srv.do(http.MethodPost, "/auth/login", `{"email":"curator@museum.test","password":"correctpass"}`, anon[0])
	require.Equal(t, http.StatusOK, rr.Code)

	var body struct {
		Actor        identity.Actor        `json:"actor"`
		Capabilities []identity.Capability `json:"capabilities"`
		CSRFToken    string                `json:"csrf_token"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	require.Equal(t, int64(7), body.Actor.ID)
	require.Contains(t, body.Capabilities, identity.CapFirstApproveArtifact)
	require.NotEmpty(t, body.CSRFToken)

	cookies := rr.Result().Cookies()
	require.Len(t, cookies, 1)
	require.NotEqual(t, anon[0].Value, cookies[0].Value)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, err := srv.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.Equal(t, "7", sess.Actor())
	require.Equal(t, body.CSRFToken, sess.Get(shared.CSRFSessionKey))

	rr = srv.do(http.MethodPost, "/auth/logout", "", cookies[0])
	require.Equal(t, http.StatusNoContent, rr.Code)
	req = httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(cookies[0])
	sess, err = srv.sessions.Load(context.Background(), req)
	require.NoError(t, err)
	require.Empty(t, sess.Actor())
}

func TestLoginInvalidCredentials(t *testing.T) {
	srv := newTestServer(t, &stubRepo{creds: curatorCreds(t, true)})

	rr := srv.do(http.MethodPost, "/auth/login", `{"email":"curator@museum.test","password":"wrongpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodPost, "/auth/login", `{"email":"nobody@museum.test","password":"correctpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)

	rr = srv.do(http.MethodPost, "/auth/login", `{"email":"not-an-email","password":"correctpass"}`)
	require.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestLoginInactiveActor(t *testing.T) {
	srv := newTestServer(t, &stubRepo{creds: curatorCreds(t, false)})
	rr := srv.do(http.MethodPost, "/auth/login", `{"email":"curator@museum.test","password":"correctpass"}`)
	require.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestLoginStorageFailure(t *testing.T) {
	srv := newTestServer(t, &stubRepo{err: errors.Join(shared.ErrStorageUnavailable, errors.New("pg down"))})
	rr := srv.do(http.MethodPost, "/auth/login", `{"email":"curator@museum.test","password":"correctpass"}`)
	require.Equal(t, http.StatusServiceUnavailable, rr.Code)
	require.Equal(t, "5", rr.Header().Get("Retry-After"))
}
