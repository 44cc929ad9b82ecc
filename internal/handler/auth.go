// Package handler contains HTTP handlers for the JSON API.
//
// This file implements authentication endpoints.
//
// Routes handled:
//   - POST /api/auth/register -> Register
//   - POST /api/auth/login    -> Login
//   - POST /api/auth/logout   -> Logout
//   - GET  /api/auth/user       -> Me
package handler

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/obraguard/obraguard/internal/auth"
	"github.com/obraguard/obraguard/internal/domain"
	"github.com/obraguard/obraguard/internal/service"
)

// AuthHandler handles authentication HTTP requests.
type AuthHandler struct {
	userService service.UserService
	isSecure    bool
	logger      *slog.Logger
}

// NewAuthHandler creates a new AuthHandler.
func NewAuthHandler(userService service.UserService, isSecure bool, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{
		userService: userService,
		isSecure:    isSecure,
		logger:      logger,
	}
}

// RegisterRoutes registers auth routes on the provided mux.
// Login is wrapped with the rate limiter; /api/auth/user requires a session.
func (h *AuthHandler) RegisterRoutes(mux *http.ServeMux, limitLogin func(http.Handler) http.Handler, requireUser func(http.Handler) http.Handler) {
	mux.HandleFunc("POST /api/auth/register", h.Register)
	mux.Handle("POST /api/auth/login", limitLogin(http.HandlerFunc(h.Login)))
	mux.HandleFunc("POST /api/auth/logout", h.Logout)
	mux.Handle("GET /api/auth/user", requireUser(http.HandlerFunc(h.Me)))
}

// userResponse is the wire shape for user data.
type userResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	Name      string    `json:"name"`
	CreatedAt time.Time `json:"createdAt"`
}

func toUserResponse(u *domain.User) userResponse {
	return userResponse{
		ID:        u.ID,
		Email:     u.Email,
		Name:      u.Name,
		CreatedAt: u.CreatedAt,
	}
}

// Register creates a new user account and logs it in.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
		Name     string `json:"name"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	user, err := h.userService.Register(r.Context(), domain.RegisterParams{
		Email:    req.Email,
		Password: req.Password,
		Name:     req.Name,
	})
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	// Log the new account in right away.
	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.isSecure)
	writeJSON(w, http.StatusCreated, map[string]any{"user": toUserResponse(user)})
}

// Login authenticates a user and sets the session cookie.
func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Email    string `json:"email"`
		Password string `json:"password"`
	}
	if err := decodeJSON(r, &req); err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	result, err := h.userService.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		ErrorResponse(w, r, h.logger, err)
		return
	}

	auth.SetSessionCookie(w, result.Token, h.isSecure)
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(result.User)})
}

// Logout invalidates the current session and clears the cookie.
func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil {
		_ = h.userService.Logout(r.Context(), cookie.Value)
	}
	auth.ClearSessionCookie(w, h.isSecure)
	writeJSON(w, http.StatusOK, map[string]any{"ok": true})
}

// Me returns the authenticated user.
func (h *AuthHandler) Me(w http.ResponseWriter, r *http.Request) {
	user := auth.GetUser(r.Context())
	if user == nil {
		ErrorResponse(w, r, h.logger, domain.Unauthorized("AuthHandler.Me", "Authentication required"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"user": toUserResponse(user)})
}
