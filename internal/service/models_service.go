package service

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dom/blueming-client/internal/domain"
	"golang.org/x/sync/errgroup"
)

const (
	msgLoadMyModelsFailed    = "Failed to load models"
	msgLoadLikedModelsFailed = "Failed to load liked models"
)

type ModelsGateway interface {
	GetMyModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error)
	GetLikedModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error)
}

// ModelsService holds the user's own and liked model lists.
type ModelsService struct {
	gateway  ModelsGateway
	pageSize int
	logger   *slog.Logger

	mu          sync.Mutex
	myModels    []domain.LoraModel
	likedModels []domain.LoraModel
	loading     int
	errMsg      string
}

func NewModelsService(gateway ModelsGateway, pageSize int, logger *slog.Logger) *ModelsService {
	if pageSize <= 0 {
		pageSize = 20
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &ModelsService{
		gateway:  gateway,
		pageSize: pageSize,
		logger:   logger,
	}
}

func (s *ModelsService) LoadMyModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	s.clearError()
	return s.loadMine(ctx, page, size)
}

func (s *ModelsService) LoadLikedModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	s.clearError()
	return s.loadLiked(ctx, page, size)
}

func (s *ModelsService) loadMine(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	return s.load("LoadMyModels", msgLoadMyModelsFailed, &s.myModels, func() (*domain.Page[domain.LoraModel], error) {
		return s.gateway.GetMyModels(ctx, page, size)
	})
}

func (s *ModelsService) loadLiked(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	return s.load("LoadLikedModels", msgLoadLikedModelsFailed, &s.likedModels, func() (*domain.Page[domain.LoraModel], error) {
		return s.gateway.GetLikedModels(ctx, page, size)
	})
}

// RefreshAllModels reloads the first page of both lists concurrently. Both
// loads run to completion; a failure in one leaves the other's result in
// place and the first error is returned.
func (s *ModelsService) RefreshAllModels(ctx context.Context) error {
	s.clearError()

	var g errgroup.Group
	g.Go(func() error {
		_, err := s.loadMine(ctx, 0, s.pageSize)
		return err
	})
	g.Go(func() error {
		_, err := s.loadLiked(ctx, 0, s.pageSize)
		return err
	})
	return g.Wait()
}

// load replaces *dst with the fetched page content. dst must point into s
// and is only touched with s.mu held.
func (s *ModelsService) load(op, fallback string, dst *[]domain.LoraModel, fetch func() (*domain.Page[domain.LoraModel], error)) (*domain.Page[domain.LoraModel], error) {
	s.mu.Lock()
	s.loading++
	s.mu.Unlock()

	page, err := fetch()

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.errMsg = errorMessage(err, fallback)
		s.logger.Error("[models."+op+"] failed to load models",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	*dst = page.Content
	return page, nil
}

func (s *ModelsService) clearError() {
	s.mu.Lock()
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *ModelsService) MyModels() []domain.LoraModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.myModels)
}

func (s *ModelsService) LikedModels() []domain.LoraModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.likedModels)
}

func (s *ModelsService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

func (s *ModelsService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}
