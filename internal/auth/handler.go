package auth

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/pressroom/pressroom/internal/shared"
	"github.com/pressroom/pressroom/internal/view"
)

// AuditRecorder receives registration, login and logout events.
type AuditRecorder interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger         *slog.Logger
	service        *Service
	templates      *view.Engine
	sessionManager *shared.SessionManager
	csrfManager    *shared.CSRFManager
	audit          AuditRecorder
	validator      *validator.Validate
}

// NewHandler constructs a Handler instance. audit may be nil.
func NewHandler(logger *slog.Logger, service *Service, templates *view.Engine, sessions *shared.SessionManager, csrf *shared.CSRFManager, audit AuditRecorder) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{
		logger:         logger,
		service:        service,
		templates:      templates,
		sessionManager: sessions,
		csrfManager:    csrf,
		audit:          audit,
		validator:      shared.NewValidator(),
	}
}

// MountRoutes registers auth routes on provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Get("/login", h.showLogin)
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/register", h.showRegister)
	r.Post("/register", h.handleRegister)
}

type loginForm struct {
	Email    string `form:"email" validate:"required,email,max=255"`
	Password string `form:"password" validate:"required"`
}

type loginPageData struct {
	Form   loginForm
	Errors map[string]string
}

type registerForm struct {
	Name            string `form:"name" validate:"required,max=255"`
	Email           string `form:"email" validate:"required,email,max=255"`
	Password        string `form:"password" validate:"required,min=8,max=72"`
	PasswordConfirm string `form:"password_confirmation" validate:"eqfield=Password"`
}

type registerPageData struct {
	Form   registerForm
	Errors map[string]string
}

func (h *Handler) showLogin(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/posts", http.StatusSeeOther)
		return
	}
	h.render(w, r, "Sign in", "pages/login.html", loginPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := loginForm{
		Email:    strings.TrimSpace(r.PostFormValue("email")),
		Password: r.PostFormValue("password"),
	}
	fieldErrs := map[string]string{}
	if fields := shared.FieldErrors(shared.ValidateStruct(h.validator, form)); fields != nil {
		fieldErrs = fields
	}

	if len(fieldErrs) == 0 {
		user, err := h.service.Authenticate(r.Context(), form.Email, form.Password)
		switch {
		case errors.Is(err, shared.ErrInvalidCredentials):
			fieldErrs["general"] = "These credentials do not match our records."
		case err != nil:
			h.logger.Error("authenticate", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		default:
			h.signIn(w, r, user, "Welcome back, "+user.Name+".", "user.login")
			return
		}
	}

	form.Password = ""
	h.render(w, r, "Sign in", "pages/login.html", loginPageData{Form: form, Errors: fieldErrs}, http.StatusBadRequest)
}

func (h *Handler) showRegister(w http.ResponseWriter, r *http.Request) {
	if signedIn(r) {
		http.Redirect(w, r, "/posts", http.StatusSeeOther)
		return
	}
	h.render(w, r, "Register", "pages/register.html", registerPageData{Errors: map[string]string{}}, http.StatusOK)
}

func (h *Handler) handleRegister(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, http.StatusText(http.StatusBadRequest), http.StatusBadRequest)
		return
	}

	form := registerForm{
		Name:            strings.TrimSpace(r.PostFormValue("name")),
		Email:           strings.TrimSpace(r.PostFormValue("email")),
		Password:        r.PostFormValue("password"),
		PasswordConfirm: r.PostFormValue("password_confirmation"),
	}
	fieldErrs := map[string]string{}
	if fields := shared.FieldErrors(shared.ValidateStruct(h.validator, form)); fields != nil {
		fieldErrs = fields
	}

	if len(fieldErrs) == 0 {
		user, err := h.service.Register(r.Context(), form.Name, form.Email, form.Password)
		switch {
		case errors.Is(err, ErrEmailTaken):
			fieldErrs["email"] = "The email has already been taken."
		case err != nil:
			h.logger.Error("register", slog.Any("error", err))
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		default:
			h.signIn(w, r, user, "Welcome to Pressroom, "+user.Name+".", "user.registered")
			return
		}
	}

	form.Password, form.PasswordConfirm = "", ""
	h.render(w, r, "Register", "pages/register.html", registerPageData{Form: form, Errors: fieldErrs}, http.StatusBadRequest)
}

// signIn rotates the session id before binding it to user.
func (h *Handler) signIn(w http.ResponseWriter, r *http.Request, user *User, welcome, action string) {
	sess := shared.SessionFromContext(r.Context())
	if sess == nil {
		h.logger.Error("session missing during sign in", slog.String("action", action))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}
	h.sessionManager.Renew(sess)
	sess.SetUser(strconv.FormatInt(user.ID, 10))
	sess.Delete(shared.CSRFSessionKey)
	sess.AddFlash(shared.FlashMessage{Kind: "success", Message: welcome})
	h.record(r.Context(), user.ID, action)
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sess := shared.SessionFromContext(r.Context())
	if sess != nil {
		if id, err := strconv.ParseInt(sess.User(), 10, 64); err == nil {
			h.record(r.Context(), id, "user.logout")
		}
		h.sessionManager.Destroy(sess)
	}
	http.Redirect(w, r, "/posts", http.StatusSeeOther)
}

func signedIn(r *http.Request) bool {
	sess := shared.SessionFromContext(r.Context())
	return sess != nil && sess.User() != ""
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, title, template string, data any, status int) {
	sess := shared.SessionFromContext(r.Context())
	var csrfToken string
	var flash *shared.FlashMessage
	if sess != nil {
		csrfToken, _ = h.csrfManager.EnsureToken(r.Context(), sess)
		flash = sess.PopFlash()
	}
	viewData := view.TemplateData{
		Title:       title,
		CSRFToken:   csrfToken,
		Flash:       flash,
		CurrentPath: r.URL.Path,
		Data:        data,
	}
	if err := h.templates.RenderStatus(w, status, template, viewData); err != nil {
		h.logger.Error("render auth page", slog.String("template", template), slog.Any("error", err))
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
	}
}

func (h *Handler) record(ctx context.Context, userID int64, action string) {
	if h.audit == nil {
		return
	}
	err := h.audit.Record(ctx, shared.AuditLog{
		ActorID:  userID,
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(userID, 10),
	})
	if err != nil {
		h.logger.Warn("auth audit", slog.String("action", action), slog.Any("error", err))
	}
}

// ShowLoginForTest exposes the GET handler for tests.
func (h *Handler) ShowLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.showLogin(w, r)
}

// HandleLoginForTest exposes the POST handler for tests.
func (h *Handler) HandleLoginForTest(w http.ResponseWriter, r *http.Request) {
	h.handleLogin(w, r)
}

// ShowRegisterForTest exposes the registration form handler for tests.
func (h *Handler) ShowRegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.showRegister(w, r)
}

// HandleRegisterForTest exposes the registration POST handler for tests.
func (h *Handler) HandleRegisterForTest(w http.ResponseWriter, r *http.Request) {
	h.handleRegister(w, r)
}
