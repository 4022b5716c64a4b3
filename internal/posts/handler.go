package posts

import (
	"errors"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/pressroom/pressroom/internal/platform/httpx"
	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
)

// Handler exposes the blog over HTTP.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
	rbac      rbac.Middleware
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager, rbacMW rbac.Middleware) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf, rbac: rbacMW}
}

// MountRoutes registers post routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/show/{id}", h.show)
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.Require(rbac.ActionCreatePost))
		r.Get("/create", h.create)
		r.Post("/create", h.store)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.rbac.RequireUser)
		r.Get("/drafts", h.drafts)
		r.Get("/edit/{post}", h.edit)
		r.Post("/edit/{post}", h.update)
		r.Post("/delete/{post}", h.destroy)
		r.Get("/publish/{post}", h.publish)
		r.Get("/unpublish/{post}", h.unpublish)
	})
}

type listPageData struct {
	Page
	CanCreate bool
	AllDrafts bool
}

type showPageData struct {
	Post       Post
	CanUpdate  bool
	CanPublish bool
	CanDelete  bool
}

type formPageData struct {
	Post       *Post
	Form       Input
	Errors     map[string]string
	CanPublish bool
	CanDelete  bool
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	page, err := h.service.ListPublished(r.Context(), shared.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		h.fail(w, r, "list posts", err)
		return
	}
	user := rbac.UserFromContext(r.Context())
	h.render(w, r, "pages/posts/index.html", "Posts", listPageData{
		Page:      page,
		CanCreate: rbac.Authorize(user, rbac.ActionCreatePost, nil),
	}, http.StatusOK)
}

func (h *Handler) drafts(w http.ResponseWriter, r *http.Request) {
	user := rbac.UserFromContext(r.Context())
	page, all, err := h.service.ListDrafts(r.Context(), user, shared.ParsePage(r.URL.Query().Get("page")))
	if err != nil {
		h.fail(w, r, "list drafts", err)
		return
	}
	h.render(w, r, "pages/posts/drafts.html", "Drafts", listPageData{
		Page:      page,
		CanCreate: rbac.Authorize(user, rbac.ActionCreatePost, nil),
		AllDrafts: all,
	}, http.StatusOK)
}

func (h *Handler) show(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "id")
	if !ok {
		http.NotFound(w, r)
		return
	}
	user := rbac.UserFromContext(r.Context())
	p, err := h.service.Show(r.Context(), user, id)
	if err != nil {
		h.fail(w, r, "show post", err)
		return
	}
	h.render(w, r, "pages/posts/show.html", p.Title, showPageData{
		Post:       p,
		CanUpdate:  rbac.Authorize(user, rbac.ActionUpdatePost, p),
		CanPublish: rbac.Authorize(user, rbac.ActionPublishPost, p),
		CanDelete:  rbac.Authorize(user, rbac.ActionDeletePost, p),
	}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, "pages/posts/create.html", "New post", formPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	user := rbac.UserFromContext(r.Context())
	in := Input{Title: r.PostFormValue("title"), Body: r.PostFormValue("body")}
	p, err := h.service.Create(r.Context(), user, in)
	if err != nil {
		if fields := shared.FieldErrors(err); fields != nil {
			h.render(w, r, "pages/posts/create.html", "New post", formPageData{Form: in, Errors: fields}, http.StatusBadRequest)
			return
		}
		h.fail(w, r, "create post", err)
		return
	}
	h.redirectWithFlash(w, r, "/posts/edit/"+strconv.FormatInt(p.ID, 10), "success", "Post created.")
}

func (h *Handler) edit(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "post")
	if !ok {
		http.NotFound(w, r)
		return
	}
	user := rbac.UserFromContext(r.Context())
	p, err := h.service.Edit(r.Context(), user, id)
	if err != nil {
		h.fail(w, r, "edit post", err)
		return
	}
	h.render(w, r, "pages/posts/edit.html", "Edit post", h.formData(user, p, Input{Title: p.Title, Body: p.Body}, map[string]string{}), http.StatusOK)
}

func (h *Handler) update(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "post")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	user := rbac.UserFromContext(r.Context())
	in := Input{Title: r.PostFormValue("title"), Body: r.PostFormValue("body")}
	p, err := h.service.Update(r.Context(), user, id, in)
	if err != nil {
		if fields := shared.FieldErrors(err); fields != nil {
			h.render(w, r, "pages/posts/edit.html", "Edit post", h.formData(user, p, in, fields), http.StatusBadRequest)
			return
		}
		h.fail(w, r, "update post", err)
		return
	}
	h.redirectWithFlash(w, r, h.back(r, "/posts/edit/"+strconv.FormatInt(p.ID, 10)), "success", "Post updated.")
}

func (h *Handler) destroy(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "post")
	if !ok {
		http.NotFound(w, r)
		return
	}
	if err := h.service.Delete(r.Context(), rbac.UserFromContext(r.Context()), id); err != nil {
		h.fail(w, r, "delete post", err)
		return
	}
	h.redirectWithFlash(w, r, "/posts", "success", "Post deleted.")
}

func (h *Handler) publish(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "post")
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := h.service.Publish(r.Context(), rbac.UserFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "publish post", err)
		return
	}
	h.redirectWithFlash(w, r, "/posts/show/"+strconv.FormatInt(p.ID, 10), "success", "Post published.")
}

func (h *Handler) unpublish(w http.ResponseWriter, r *http.Request) {
	id, ok := routeID(r, "post")
	if !ok {
		http.NotFound(w, r)
		return
	}
	p, err := h.service.Unpublish(r.Context(), rbac.UserFromContext(r.Context()), id)
	if err != nil {
		h.fail(w, r, "unpublish post", err)
		return
	}
	h.redirectWithFlash(w, r, h.back(r, "/posts/edit/"+strconv.FormatInt(p.ID, 10)), "success", "Post moved back to drafts.")
}

func (h *Handler) formData(user *rbac.User, p Post, in Input, errs map[string]string) formPageData {
	return formPageData{
		Post:       &p,
		Form:       in,
		Errors:     errs,
		CanPublish: rbac.Authorize(user, rbac.ActionPublishPost, p),
		CanDelete:  rbac.Authorize(user, rbac.ActionDeletePost, p),
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	user := rbac.UserFromContext(r.Context())
	var csrfToken string
	var flash *shared.FlashMessage
	if sess != nil {
		// Every post form sits behind a signed-in user.
		if user != nil {
			csrfToken, _ = h.csrf.EnsureToken(r.Context(), sess)
		}
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		User:        user,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render template", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) redirectWithFlash(w http.ResponseWriter, r *http.Request, location, kind, message string) {
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: kind, Message: message})
	}
	http.Redirect(w, r, location, http.StatusSeeOther)
}

// back returns the Referer when it points at this host, else fallback.
func (h *Handler) back(r *http.Request, fallback string) string {
	ref := r.Referer()
	if ref == "" {
		return fallback
	}
	u, err := url.Parse(ref)
	if err != nil || u.Host != r.Host || u.Path == "" {
		return fallback
	}
	return u.RequestURI()
}

func (h *Handler) fail(w http.ResponseWriter, r *http.Request, op string, err error) {
	if errors.Is(err, shared.ErrUnauthenticated) {
		http.Redirect(w, r, rbac.LoginPath, http.StatusSeeOther)
		return
	}
	if httpx.StatusFor(err) == http.StatusInternalServerError {
		h.logger.Error(op, slog.Any("error", err))
	}
	httpx.Error(w, err)
}

func routeID(r *http.Request, param string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, param), 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
