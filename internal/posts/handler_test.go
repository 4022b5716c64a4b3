package posts

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-chi/chi/v5"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
)

const testUserHeader = "X-Test-User"

type handlerFixture struct {
	router   http.Handler
	service  *Service
	repo     *memoryRepo
	sessions *shared.SessionManager
}

func newHandlerFixture(t *testing.T) *handlerFixture {
	t.Helper()
	mr := miniredis.RunT(t)
	redisClient := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	sessionManager := shared.NewSessionManager(redisClient, "test_session", "secret", time.Hour, false)
	csrfManager := shared.NewCSRFManager("csrfsecret")
	templates, err := view.NewEngine()
	require.NoError(t, err)

	repo := newMemoryRepo()
	service := NewService(repo, nil, nil, nil, ServiceConfig{PerPage: 15})
	handler := NewHandler(nil, service, templates, csrfManager, rbac.Middleware{})

	users := map[string]*rbac.User{"alice": alice, "bob": bob, "editor": editor, "reader": reader}
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			sess, err := sessionManager.Load(req.Context(), req)
			require.NoError(t, err)
			ctx := shared.ContextWithSession(req.Context(), sess)
			if u, ok := users[req.Header.Get(testUserHeader)]; ok {
				ctx = rbac.ContextWithUser(ctx, u)
			}
			next.ServeHTTP(w, req.WithContext(ctx))
		})
	})
	r.Route("/posts", handler.MountRoutes)

	return &handlerFixture{router: r, service: service, repo: repo, sessions: sessionManager}
}

func (f *handlerFixture) do(method, target, user string, form url.Values, header http.Header) *httptest.ResponseRecorder {
	var body *strings.Reader
	if form != nil {
		body = strings.NewReader(form.Encode())
	} else {
		body = strings.NewReader("")
	}
	req := httptest.NewRequest(method, target, body)
	if form != nil {
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}
	if user != "" {
		req.Header.Set(testUserHeader, user)
	}
	for k, v := range header {
		req.Header[k] = v
	}
	rr := httptest.NewRecorder()
	f.router.ServeHTTP(rr, req)
	return rr
}

func (f *handlerFixture) draft(t *testing.T, owner *rbac.User, title string) Post {
	t.Helper()
	p, err := f.service.Create(context.Background(), owner, Input{Title: title, Body: "body of " + title})
	require.NoError(t, err)
	return p
}

func postPath(prefix string, p Post) string {
	return prefix + strconv.FormatInt(p.ID, 10)
}

func TestIndexListsOnlyPublished(t *testing.T) {
	f := newHandlerFixture(t)
	visible := f.draft(t, alice, "Visible Post")
	f.draft(t, alice, "Hidden Draft")
	_, err := f.service.Publish(context.Background(), alice, visible.ID)
	require.NoError(t, err)

	rr := f.do(http.MethodGet, "/posts", "", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Visible Post")
	assert.NotContains(t, rr.Body.String(), "Hidden Draft")
	assert.NotContains(t, rr.Body.String(), "New post", "anonymous visitors cannot create")
}

func TestCreateGuard(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(http.MethodGet, "/posts/create", "", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, rbac.LoginPath, rr.Header().Get("Location"))

	rr = f.do(http.MethodGet, "/posts/create", "editor", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
	assert.Equal(t, http.StatusText(http.StatusForbidden), strings.TrimSpace(rr.Body.String()))

	rr = f.do(http.MethodGet, "/posts/create", "alice", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), `action="/posts/create"`)
}

func TestStoreRedirectsToEdit(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(http.MethodPost, "/posts/create", "alice", url.Values{"title": {"Hello World"}, "body": {"text"}}, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/posts/edit/1", rr.Header().Get("Location"))

	stored, err := f.service.Get(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, "hello-world", stored.Slug)
	assert.False(t, stored.Published)
}

func TestStoreValidationRerendersForm(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(http.MethodPost, "/posts/create", "alice", url.Values{"title": {""}, "body": {"kept body"}}, nil)
	require.Equal(t, http.StatusBadRequest, rr.Code)
	assert.Contains(t, rr.Body.String(), "The title field is required.")
	assert.Contains(t, rr.Body.String(), "kept body")
	assert.Empty(t, f.repo.posts)
}

func TestEditNotFoundBeforeGate(t *testing.T) {
	f := newHandlerFixture(t)

	rr := f.do(http.MethodGet, "/posts/edit/99", "reader", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)

	rr = f.do(http.MethodGet, "/posts/edit/abc", "reader", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestEditForbiddenForOtherAuthor(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.draft(t, alice, "Alice Only")

	rr := f.do(http.MethodGet, postPath("/posts/edit/", p), "bob", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, postPath("/posts/edit/", p), "alice", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Alice Only")

	rr = f.do(http.MethodGet, postPath("/posts/edit/", p), "", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)
}

func TestUpdateRedirectsBack(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.draft(t, alice, "Before")

	rr := f.do(http.MethodPost, postPath("/posts/edit/", p), "editor", url.Values{"title": {"After"}, "body": {"b"}}, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, postPath("/posts/edit/", p), rr.Header().Get("Location"))

	got, err := f.service.Get(context.Background(), p.ID)
	require.NoError(t, err)
	assert.Equal(t, "after", got.Slug)
	assert.Equal(t, alice.ID, got.UserID)
}

func TestPublishAndUnpublishRedirects(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.draft(t, alice, "Flip")

	rr := f.do(http.MethodGet, postPath("/posts/publish/", p), "alice", nil, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, postPath("/posts/show/", p), rr.Header().Get("Location"))

	rr = f.do(http.MethodGet, postPath("/posts/unpublish/", p), "editor", nil, http.Header{"Referer": {"http://example.com/posts/drafts?page=2"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/posts/drafts?page=2", rr.Header().Get("Location"))

	_, err := f.service.Publish(context.Background(), alice, p.ID)
	require.NoError(t, err)
	rr = f.do(http.MethodGet, postPath("/posts/unpublish/", p), "editor", nil, http.Header{"Referer": {"https://evil.test/phish"}})
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, postPath("/posts/edit/", p), rr.Header().Get("Location"), "foreign referer is ignored")

	rr = f.do(http.MethodGet, postPath("/posts/publish/", p), "bob", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestShowDraftVisibility(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.draft(t, alice, "Private Thoughts")

	rr := f.do(http.MethodGet, postPath("/posts/show/", p), "", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodGet, postPath("/posts/show/", p), "editor", nil, nil)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Private Thoughts")
	assert.Contains(t, rr.Body.String(), postPath("/posts/publish/", p))

	rr = f.do(http.MethodGet, "/posts/show/12345", "", nil, nil)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestDeleteRedirectsToList(t *testing.T) {
	f := newHandlerFixture(t)
	p := f.draft(t, alice, "Gone Soon")

	rr := f.do(http.MethodPost, postPath("/posts/delete/", p), "bob", nil, nil)
	assert.Equal(t, http.StatusForbidden, rr.Code)

	rr = f.do(http.MethodPost, postPath("/posts/delete/", p), "editor", nil, nil)
	require.Equal(t, http.StatusSeeOther, rr.Code)
	assert.Equal(t, "/posts", rr.Header().Get("Location"))
	assert.Empty(t, f.repo.posts)
}

func TestDraftsRequiresLoginAndScopes(t *testing.T) {
	f := newHandlerFixture(t)
	f.draft(t, alice, "Alice Draft")
	f.draft(t, bob, "Bob Draft")

	rr := f.do(http.MethodGet, "/posts/drafts", "", nil, nil)
	assert.Equal(t, http.StatusSeeOther, rr.Code)

	rr = f.do(http.MethodGet, "/posts/drafts", "alice", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Alice Draft")
	assert.NotContains(t, rr.Body.String(), "Bob Draft")

	rr = f.do(http.MethodGet, "/posts/drafts", "editor", nil, nil)
	require.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Body.String(), "Alice Draft")
	assert.Contains(t, rr.Body.String(), "Bob Draft")
}
