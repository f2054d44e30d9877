package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/dom/blueming-client/internal/api/middleware"
	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/service"
)

type ProfileHandler struct {
	profiles *service.ProfileService
	logger   *slog.Logger
}

func NewProfileHandler(profiles *service.ProfileService, logger *slog.Logger) *ProfileHandler {
	return &ProfileHandler{profiles: profiles, logger: logger}
}

// GetProfile loads the profile. A failure means the session is gone, so
// the caller is sent to login.
func (h *ProfileHandler) GetProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.profiles.LoadUserProfile(r.Context())
	if err != nil {
		h.logger.Warn("[profile.GetProfile] session invalidated", slog.String("error", err.Error()))
		http.Redirect(w, r, middleware.LoginPath, http.StatusFound)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}

func (h *ProfileHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req domain.ProfileUpdate
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	req.Nickname = strings.TrimSpace(req.Nickname)
	if req.Nickname == "" {
		http.Error(w, "Nickname is required", http.StatusBadRequest)
		return
	}

	profile, err := h.profiles.UpdateProfile(r.Context(), req)
	if err != nil {
		writeError(w, h.logger, "profile.UpdateProfile", err)
		return
	}

	writeJSON(w, http.StatusOK, profile)
}
