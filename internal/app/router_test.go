package app

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/observability"
	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/jobs"
)

func newTestRouter(t *testing.T) (http.Handler, *shared.SessionManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessions := shared.NewSessionManager(client, "pressroom_session", "secret", time.Hour, false)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	router := NewRouter(RouterParams{
		Logger:         logger,
		Config:         &Config{AppEnv: "test", RateLimitPerMinute: 1000},
		SessionManager: sessions,
		CSRFManager:    shared.NewCSRFManager("csrf"),
		RBACMiddleware: rbac.Middleware{Logger: logger},
		JobHandler:     jobs.NewHandler(nil, logger),
		Metrics:        observability.NewMetrics(),
	})
	return router, sessions, mr
}

func TestRouterHealthz(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/healthz", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rr.Body.String())
	assert.Equal(t, "nosniff", rr.Header().Get("X-Content-Type-Options"))
}

func TestRouterRootRedirectsToPosts(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/posts", rr.Header().Get("Location"))
}

func TestRouterStaticAssetsAreCached(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/static/css/app.css", nil))

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "public, max-age=3600", rr.Header().Get("Cache-Control"))
}

func TestRouterRejectsPostWithoutCSRFToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	req := httptest.NewRequest(http.MethodPost, "/healthz", strings.NewReader(url.Values{"x": {"1"}}.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRouterCookielessRequestsLeaveNoSessions(t *testing.T) {
	router, sessions, mr := newTestRouter(t)

	for i := 0; i < 10; i++ {
		for _, target := range []string{"/healthz", "/metrics", "/static/css/app.css", "/", "/jobs/health"} {
			rr := httptest.NewRecorder()
			router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, target, nil))
			for _, c := range rr.Result().Cookies() {
				assert.NotEqual(t, sessions.CookieName(), c.Name, "no session cookie for %s", target)
			}
		}
	}
	assert.Empty(t, mr.Keys())
}

func TestRouterExposesMetricsAndJobsHealth(t *testing.T) {
	router, _, _ := newTestRouter(t)

	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/jobs/health", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `"queue":"default"`)

	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "pressroom_http_requests_total")
}
