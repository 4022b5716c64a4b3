package links

import (
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
)

func newTestRouter(t *testing.T) (http.Handler, *memoryRepo, *shared.SessionManager) {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	templates, err := view.NewEngine()
	require.NoError(t, err)

	repo := &memoryRepo{}
	handler := NewHandler(nil, NewService(repo, nil, nil), templates, shared.NewCSRFManager("csrfsecret"))

	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			next.ServeHTTP(w, req.WithContext(shared.ContextWithSession(req.Context(), sess)))
		})
	})
	r.Route("/links", handler.MountRoutes)
	return r, repo, sessionManager
}

func postForm(router http.Handler, target string, form url.Values) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, target, strings.NewReader(form.Encode()))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	return rr
}

func TestStoreRedirectsToIndex(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	rr := postForm(router, "/links/store", url.Values{"title": {"Go"}, "url": {"https://go.dev"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/links", rr.Header().Get("Location"))
	require.Len(t, repo.links, 1)

	req := httptest.NewRequest(http.MethodGet, "/links", nil)
	list := httptest.NewRecorder()
	router.ServeHTTP(list, req)
	require.Equal(t, http.StatusOK, list.Code)
	assert.Contains(t, list.Body.String(), `href="https://go.dev"`)
}

func TestStoreInvalidRerendersWithPreviousInput(t *testing.T) {
	router, repo, _ := newTestRouter(t)

	rr := postForm(router, "/links/store", url.Values{
		"title":       {""},
		"url":         {"https://kept.example"},
		"description": {"kept description"},
	})
	require.Equal(t, http.StatusBadRequest, rr.Code)
	body := rr.Body.String()
	assert.Contains(t, body, "The title field is required.")
	assert.Contains(t, body, `value="https://kept.example"`)
	assert.Contains(t, body, "kept description")
	assert.Empty(t, repo.links)
}

func TestCreateFormCarriesCSRFToken(t *testing.T) {
	router, _, _ := newTestRouter(t)

	req := httptest.NewRequest(http.MethodGet, "/links/create", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `name="csrf_token" value="`)
	assert.Contains(t, rr.Body.String(), `action="/links/store"`)
}
