package handlers

import (
	"net/http"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/service"
)

// PageHandler serves destinations whose view state is only the session.
type PageHandler struct {
	tokens *service.TokenStore
}

func NewPageHandler(tokens *service.TokenStore) *PageHandler {
	return &PageHandler{tokens: tokens}
}

type PageResponse struct {
	Destination   string              `json:"destination"`
	Authenticated bool                `json:"authenticated"`
	User          *domain.UserProfile `json:"user,omitempty"`
}

func (h *PageHandler) Serve(destination string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		snap := h.tokens.Snapshot()
		writeJSON(w, http.StatusOK, PageResponse{
			Destination:   destination,
			Authenticated: snap.IsAuthenticated(),
			User:          snap.User,
		})
	}
}
