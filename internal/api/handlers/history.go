package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/service"
	"github.com/go-chi/chi/v5"
)

type HistoryHandler struct {
	history  *service.HistoryService
	pageSize int
	logger   *slog.Logger
}

func NewHistoryHandler(history *service.HistoryService, pageSize int, logger *slog.Logger) *HistoryHandler {
	return &HistoryHandler{history: history, pageSize: pageSize, logger: logger}
}

// HistoryResponse is the view state of the generation history destination.
type HistoryResponse struct {
	History         domain.HistoryPage[domain.GenerationHistoryEntry] `json:"history"`
	AvailableModels []domain.AvailableModel                           `json:"availableModels"`
	Error           string                                            `json:"error,omitempty"`
}

type LoadMoreResponse struct {
	Issued bool `json:"issued"`
	HistoryResponse
}

type DownloadRequest struct {
	ImageURL string `json:"imageUrl"`
}

// DownloadResponse reports the saved file. Skipped is set when the entry
// had no image and nothing was fetched.
type DownloadResponse struct {
	Path     string `json:"path"`
	FileName string `json:"fileName"`
	Skipped  bool   `json:"skipped,omitempty"`
}

type TrainingResponse struct {
	Items []domain.TrainingHistoryEntry `json:"items"`
}

// List loads one page. append=true concatenates it after the current
// entries; the filter model list is fetched with the first page, and a
// failure there leaves the previous filter list without failing the page.
func (h *HistoryHandler) List(w http.ResponseWriter, r *http.Request) {
	page, err := queryInt(r, "page", 0)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	size, err := queryInt(r, "size", h.pageSize)
	if err != nil || size == 0 {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	modelID, err := queryModelID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	appendItems := r.URL.Query().Get("append") == "true"

	if page == 0 && !appendItems {
		if _, err := h.history.LoadAvailableModels(r.Context()); err != nil {
			h.logger.Warn("[history.List] filter models unavailable",
				slog.String("error", err.Error()))
		}
	}

	if _, err := h.history.LoadGenerationHistory(r.Context(), page, size, appendItems, modelID); err != nil {
		writeError(w, h.logger, "history.List", err)
		return
	}

	writeJSON(w, http.StatusOK, h.view())
}

// More appends the next page when one exists and nothing is in flight.
func (h *HistoryHandler) More(w http.ResponseWriter, r *http.Request) {
	size, err := queryInt(r, "size", h.pageSize)
	if err != nil || size == 0 {
		http.Error(w, "invalid size", http.StatusBadRequest)
		return
	}
	modelID, err := queryModelID(r)
	if err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}

	issued, err := h.history.LoadMoreHistory(r.Context(), size, modelID)
	if err != nil {
		writeError(w, h.logger, "history.More", err)
		return
	}

	writeJSON(w, http.StatusOK, LoadMoreResponse{Issued: issued, HistoryResponse: h.view()})
}

func (h *HistoryHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid history id", http.StatusBadRequest)
		return
	}

	if err := h.history.DeleteGenerationHistory(r.Context(), id); err != nil {
		writeError(w, h.logger, "history.Delete", err)
		return
	}

	writeJSON(w, http.StatusOK, h.view())
}

// Download saves an entry's image. The body may name the image URL;
// otherwise the entry's thumbnail is used.
func (h *HistoryHandler) Download(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		http.Error(w, "Invalid history id", http.StatusBadRequest)
		return
	}

	var req DownloadRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		http.Error(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.ImageURL == "" {
		req.ImageURL = h.thumbnailFor(id)
	}

	path, err := h.history.DownloadImage(r.Context(), req.ImageURL, id)
	if err != nil {
		writeError(w, h.logger, "history.Download", err)
		return
	}
	if path == "" {
		writeJSON(w, http.StatusOK, DownloadResponse{Skipped: true})
		return
	}

	writeJSON(w, http.StatusOK, DownloadResponse{Path: path, FileName: filepath.Base(path)})
}

func (h *HistoryHandler) Training(w http.ResponseWriter, r *http.Request) {
	entries, err := h.history.LoadTrainingHistory(r.Context())
	if err != nil {
		writeError(w, h.logger, "history.Training", err)
		return
	}
	if entries == nil {
		entries = []domain.TrainingHistoryEntry{}
	}
	writeJSON(w, http.StatusOK, TrainingResponse{Items: entries})
}

func (h *HistoryHandler) thumbnailFor(id int64) string {
	for _, entry := range h.history.GenerationHistory() {
		if entry.ID == id && entry.ThumbnailURL != nil {
			return *entry.ThumbnailURL
		}
	}
	return ""
}

func (h *HistoryHandler) view() HistoryResponse {
	models := h.history.AvailableModels()
	if models == nil {
		models = []domain.AvailableModel{}
	}
	return HistoryResponse{
		History:         h.history.Snapshot(),
		AvailableModels: models,
		Error:           h.history.Error(),
	}
}
