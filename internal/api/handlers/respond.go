package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/gateway"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError maps service errors onto local HTTP statuses.
func writeError(w http.ResponseWriter, logger *slog.Logger, op string, err error) {
	var statusErr *gateway.StatusError

	switch {
	case errors.Is(err, domain.ErrNotAuthenticated):
		http.Error(w, "Unauthorized", http.StatusUnauthorized)
	case errors.Is(err, domain.ErrSuperseded):
		http.Error(w, "Superseded by a newer request", http.StatusConflict)
	case errors.As(err, &statusErr):
		http.Error(w, "Gateway error: "+statusErr.Error(), http.StatusBadGateway)
	default:
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}

	logger.Error("["+op+"] request failed", slog.String("error", err.Error()))
}

// queryInt reads a non-negative integer query parameter, falling back to def
// when it is absent.
func queryInt(r *http.Request, name string, def int) (int, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return def, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0, errors.New("invalid " + name)
	}
	return v, nil
}

// queryModelID reads the optional modelId filter.
func queryModelID(r *http.Request) (*int64, error) {
	raw := r.URL.Query().Get("modelId")
	if raw == "" {
		return nil, nil
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, errors.New("invalid modelId")
	}
	return &id, nil
}
