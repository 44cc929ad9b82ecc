// Package middleware contains HTTP middleware for the JSON API.
//
// Middleware functions follow the standard Go pattern of wrapping
// http.Handler and are composed into a stack in main.
package middleware

import (
	"log/slog"
	"net/http"

	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/handler"
	"github.com/obraguard/obraguard/internal/service"
)

// AuthMiddleware provides authentication middleware functionality.
type AuthMiddleware struct {
	userService service.UserService
	logger      *slog.Logger
	isSecure    bool
}

// NewAuthMiddleware creates a new AuthMiddleware instance.
// Set isSecure in production to enable the Secure cookie flag.
func NewAuthMiddleware(userService service.UserService, logger *slog.Logger, isSecure bool) *AuthMiddleware {
	return &AuthMiddleware{
		userService: userService,
		logger:      logger,
		isSecure:    isSecure,
	}
}

// WithUser attempts to load the user from the session cookie and stores it
// in the request context. The request continues regardless of
// authentication status; an invalid session clears the stale cookie.
func (m *AuthMiddleware) WithUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		cookie, err := r.Cookie(auth.SessionCookieName)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}

		user, err := m.userService.GetBySessionToken(r.Context(), cookie.Value)
		if err != nil {
			auth.ClearSessionCookie(w, m.isSecure)
			next.ServeHTTP(w, r)
			return
		}

		next.ServeHTTP(w, r.WithContext(auth.SetUser(r.Context(), user)))
	})
}

// RequireUser rejects unauthenticated requests with 401.
// Must run after WithUser in the middleware chain.
func (m *AuthMiddleware) RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if auth.GetUser(r.Context()) == nil {
			err := domain.Unauthorized("middleware.RequireUser", "Authentication required")
			handler.ErrorResponse(w, r, m.logger, err)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stack composes middlewares so the first listed runs first.
func Stack(middlewares ...func(http.Handler) http.Handler) func(http.Handler) http.Handler {
	return func(final http.Handler) http.Handler {
		for i := len(middlewares) - 1; i >= 0; i-- {
			final = middlewares[i](final)
		}
		return final
	}
}
