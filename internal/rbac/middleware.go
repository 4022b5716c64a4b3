package rbac

import (
	"log/slog"
	"net/http"

	"github.com/pressroom/pressroom/internal/shared"
)

// LoginPath is where unauthenticated visitors of guarded routes are sent.
const LoginPath = "/auth/login"

// Middleware wires RBAC authorization helpers for HTTP handlers.
type Middleware struct {
	Service *Service
	Logger  *slog.Logger
}

// LoadUser resolves the session principal and stores it in the request
// context. Requests without a signed-in user pass through untouched.
func (m Middleware) LoadUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		sess := shared.SessionFromContext(r.Context())
		if sess == nil || sess.User() == "" || m.Service == nil {
			next.ServeHTTP(w, r)
			return
		}
		u, err := m.Service.LoadUser(r.Context(), sess.User())
		if err != nil {
			if m.Logger != nil {
				m.Logger.Error("rbac load user", slog.Any("error", err))
			}
			http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
			return
		}
		if u == nil {
			sess.SetUser("")
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), u)))
	})
}

// RequireUser redirects anonymous requests to the login page.
func (m Middleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if UserFromContext(r.Context()) == nil {
			http.Redirect(w, r, LoginPath, http.StatusSeeOther)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Require guards a route with a resource-free action check: anonymous users
// are redirected to login and denied users receive 403.
func (m Middleware) Require(a Action) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			u := UserFromContext(r.Context())
			if u == nil {
				http.Redirect(w, r, LoginPath, http.StatusSeeOther)
				return
			}
			if !Authorize(u, a, nil) {
				if m.Logger != nil {
					m.Logger.Info("rbac denied", slog.Int64("user_id", u.ID), slog.String("action", a.String()))
				}
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
