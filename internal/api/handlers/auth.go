package handlers

import (
	"log/slog"
	"net/http"

	"github.com/dom/blueming-client/internal/api/middleware"
	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/service"
)

type AuthHandler struct {
	authService *service.AuthService
	tokens      *service.TokenStore
	logger      *slog.Logger
}

func NewAuthHandler(authService *service.AuthService, tokens *service.TokenStore, logger *slog.Logger) *AuthHandler {
	return &AuthHandler{authService: authService, tokens: tokens, logger: logger}
}

type SessionResponse struct {
	service.TokenInfo
	User *domain.UserProfile `json:"user,omitempty"`
}

// TestLogin signs in through the gateway's test endpoint and lands on home,
// or on login when the gateway refuses.
func (h *AuthHandler) TestLogin(w http.ResponseWriter, r *http.Request) {
	if _, err := h.authService.TestLogin(r.Context()); err != nil {
		h.logger.Error("[auth.TestLogin] test login failed", slog.String("error", err.Error()))
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, middleware.HomePath, http.StatusFound)
}

// Callback receives the token pair from the OAuth redirect.
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	if _, err := h.authService.CompleteCallback(r.Context(), q.Get("accessToken"), q.Get("refreshToken")); err != nil {
		h.logger.Warn("[auth.Callback] sign-in not completed", slog.String("error", err.Error()))
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}
	http.Redirect(w, r, middleware.HomePath, http.StatusFound)
}

func (h *AuthHandler) Logout(w http.ResponseWriter, r *http.Request) {
	if err := h.authService.Logout(r.Context()); err != nil {
		// Memory state is already cleared; the caller is signed out either way.
		h.logger.Error("[auth.Logout] failed to clear persisted session", slog.String("error", err.Error()))
	}
	http.Redirect(w, r, middleware.LoginPath, http.StatusSeeOther)
}

func (h *AuthHandler) Session(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, SessionResponse{
		TokenInfo: h.authService.TokenInfo(),
		User:      h.tokens.User(),
	})
}
