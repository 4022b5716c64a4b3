package links

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pressroom/pressroom/internal/rbac"
	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
)

const createTemplate = "pages/links/create.html"

// Handler serves the link board.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	templates *view.Engine
	csrf      *shared.CSRFManager
}

// NewHandler constructs a Handler.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, csrf *shared.CSRFManager) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{logger: logger, service: service, templates: templates, csrf: csrf}
}

// MountRoutes registers link routes on the router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/", h.index)
	r.Get("/create", h.create)
	r.Post("/store", h.store)
}

type indexPageData struct {
	Links []Link
}

type formPageData struct {
	Form   Input
	Errors map[string]string
}

func (h *Handler) index(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.List(r.Context())
	if err != nil {
		h.logger.Error("list links", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.render(w, r, "pages/links/index.html", "Links", indexPageData{Links: list}, http.StatusOK)
}

func (h *Handler) create(w http.ResponseWriter, r *http.Request) {
	h.render(w, r, createTemplate, "Submit a link", formPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) store(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}
	in := Input{
		Title:       r.PostFormValue("title"),
		URL:         r.PostFormValue("url"),
		Description: r.PostFormValue("description"),
	}
	var actorID int64
	if u := rbac.UserFromContext(r.Context()); u != nil {
		actorID = u.ID
	}
	if _, err := h.service.Submit(r.Context(), actorID, in); err != nil {
		if fields := shared.FieldErrors(err); fields != nil {
			h.render(w, r, createTemplate, "Submit a link", formPageData{Form: in, Errors: fields}, http.StatusBadRequest)
			return
		}
		h.logger.Error("store link", slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	if sess := shared.SessionFromContext(r.Context()); sess != nil {
		sess.AddFlash(shared.FlashMessage{Kind: "success", Message: "Link submitted."})
	}
	http.Redirect(w, r, "/links", http.StatusSeeOther)
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, template, title string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	user := rbac.UserFromContext(r.Context())
	var csrfToken string
	var flash *shared.FlashMessage
	if sess != nil {
		// Anonymous visitors only get a token on pages that post a form.
		if user != nil || template == createTemplate {
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
