package handlers

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/service"
)

type ModelsHandler struct {
	models   *service.ModelsService
	pageSize int
	logger   *slog.Logger
}

func NewModelsHandler(models *service.ModelsService, pageSize int, logger *slog.Logger) *ModelsHandler {
	return &ModelsHandler{models: models, pageSize: pageSize, logger: logger}
}

type ModelsResponse struct {
	Items      []domain.LoraModel `json:"items"`
	PageIndex  int                `json:"pageIndex"`
	TotalPages int                `json:"totalPages"`
	HasMore    bool               `json:"hasMore"`
}

func (h *ModelsHandler) MyModels(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "models.MyModels", h.models.LoadMyModels)
}

func (h *ModelsHandler) Favorites(w http.ResponseWriter, r *http.Request) {
	h.serve(w, r, "models.Favorites", h.models.LoadLikedModels)
}

func (h *ModelsHandler) serve(w http.ResponseWriter, r *http.Request, op string, load func(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error)) {
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

	resp, err := load(r.Context(), page, size)
	if err != nil {
		writeError(w, h.logger, op, err)
		return
	}

	pageIndex := page
	if resp.Number != nil {
		pageIndex = *resp.Number
	}
	items := resp.Content
	if items == nil {
		items = []domain.LoraModel{}
	}
	writeJSON(w, http.StatusOK, ModelsResponse{
		Items:      items,
		PageIndex:  pageIndex,
		TotalPages: resp.TotalPages,
		HasMore:    domain.HasMorePages(pageIndex, resp.TotalPages),
	})
}
