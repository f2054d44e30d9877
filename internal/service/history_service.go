package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"

	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/metrics"
)

const (
	msgLoadGenerationHistoryFailed = "Failed to load generation history"
	msgLoadTrainingHistoryFailed   = "Failed to load training history"
	msgLoadModelsFailed            = "Failed to load available models"
	msgDeleteHistoryFailed         = "Failed to delete generation history"
)

type HistoryGateway interface {
	GetHistoryList(ctx context.Context, page, size int, modelID *int64) (*domain.Page[domain.GenerationHistory], error)
	DeleteHistory(ctx context.Context, id int64) error
	GetAvailableModels(ctx context.Context) ([]domain.AvailableModel, error)
	GetMyTrainingJobs(ctx context.Context) ([]domain.TrainingJob, error)
}

type HistoryOptions struct {
	// DeleteMode is config.DeleteModeLocal or config.DeleteModeRemote.
	DeleteMode string
	Downloader *Downloader
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// HistoryService retrieves and accumulates the generation and training
// history collections.
type HistoryService struct {
	gateway    HistoryGateway
	downloader *Downloader
	deleteMode string
	metrics    metrics.Recorder
	logger     *slog.Logger

	mu                sync.Mutex
	generationHistory []domain.GenerationHistoryEntry
	trainingHistory   []domain.TrainingHistoryEntry
	availableModels   []domain.AvailableModel
	currentPage       int
	totalPages        int
	hasMore           bool
	loading           int
	errMsg            string
	// generation is bumped by every replacing load; appends started under an
	// older generation are discarded when they complete.
	generation uint64
}

func NewHistoryService(gateway HistoryGateway, opts HistoryOptions) *HistoryService {
	s := &HistoryService{
		gateway:    gateway,
		downloader: opts.Downloader,
		deleteMode: opts.DeleteMode,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if s.deleteMode == "" {
		s.deleteMode = config.DeleteModeLocal
	}
	if s.metrics == nil {
		s.metrics = metrics.Nop{}
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// LoadGenerationHistory fetches one page. With appendItems the page is
// concatenated after the current entries, otherwise it replaces them.
// On failure the current entries are left untouched.
func (s *HistoryService) LoadGenerationHistory(ctx context.Context, page, size int, appendItems bool, modelID *int64) (*domain.Page[domain.GenerationHistory], error) {
	s.mu.Lock()
	gen := s.begin(appendItems)
	s.mu.Unlock()

	return s.fetchGenerationPage(ctx, gen, page, size, appendItems, modelID)
}

// LoadMoreHistory appends the next page when more pages exist and nothing
// is in flight. The check and the in-flight mark happen under one lock, so
// concurrent callers cannot both start a fetch. It reports whether a fetch
// was issued.
func (s *HistoryService) LoadMoreHistory(ctx context.Context, size int, modelID *int64) (bool, error) {
	s.mu.Lock()
	if !s.hasMore || s.loading > 0 {
		s.mu.Unlock()
		return false, nil
	}
	next := s.currentPage + 1
	gen := s.begin(true)
	s.mu.Unlock()

	_, err := s.fetchGenerationPage(ctx, gen, next, size, true, modelID)
	return true, err
}

// begin marks a fetch in flight and returns its generation.
// Must be called with s.mu held.
func (s *HistoryService) begin(appendItems bool) uint64 {
	s.loading++
	s.errMsg = ""
	if !appendItems {
		s.generation++
	}
	return s.generation
}

func (s *HistoryService) fetchGenerationPage(ctx context.Context, gen uint64, page, size int, appendItems bool, modelID *int64) (*domain.Page[domain.GenerationHistory], error) {
	resp, err := s.gateway.GetHistoryList(ctx, page, size, modelID)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--

	if err != nil {
		s.errMsg = errorMessage(err, msgLoadGenerationHistoryFailed)
		s.logger.Error("[history.LoadGenerationHistory] failed to load generation history",
			slog.Int("page", page),
			slog.String("error", err.Error()),
		)
		return nil, fmt.Errorf("load generation history: %w", err)
	}

	if gen != s.generation {
		s.logger.Info("[history.LoadGenerationHistory] discarding stale page",
			slog.Int("page", page))
		return resp, domain.ErrSuperseded
	}

	entries := make([]domain.GenerationHistoryEntry, 0, len(resp.Content))
	for _, h := range resp.Content {
		entries = append(entries, domain.NewGenerationHistoryEntry(h))
	}

	if appendItems {
		s.generationHistory = append(slices.Clip(s.generationHistory), entries...)
	} else {
		s.generationHistory = entries
	}

	s.currentPage = page
	if resp.Number != nil {
		s.currentPage = *resp.Number
	}
	s.totalPages = resp.TotalPages
	s.hasMore = domain.HasMorePages(s.currentPage, s.totalPages)
	s.metrics.RecordHistoryItemsLoaded(len(entries))

	return resp, nil
}

// LoadAvailableModels replaces the cached list of filterable models.
func (s *HistoryService) LoadAvailableModels(ctx context.Context) ([]domain.AvailableModel, error) {
	s.mu.Lock()
	s.loading++
	s.errMsg = ""
	s.mu.Unlock()

	models, err := s.gateway.GetAvailableModels(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.errMsg = errorMessage(err, msgLoadModelsFailed)
		s.logger.Error("[history.LoadAvailableModels] failed to load models",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("load available models: %w", err)
	}
	s.availableModels = models
	return slices.Clone(models), nil
}

// LoadTrainingHistory fetches every training job of the current user.
func (s *HistoryService) LoadTrainingHistory(ctx context.Context) ([]domain.TrainingHistoryEntry, error) {
	s.mu.Lock()
	s.loading++
	s.errMsg = ""
	s.mu.Unlock()

	jobs, err := s.gateway.GetMyTrainingJobs(ctx)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.loading--
	if err != nil {
		s.errMsg = errorMessage(err, msgLoadTrainingHistoryFailed)
		s.logger.Error("[history.LoadTrainingHistory] failed to load training history",
			slog.String("error", err.Error()))
		return nil, fmt.Errorf("load training history: %w", err)
	}

	entries := make([]domain.TrainingHistoryEntry, 0, len(jobs))
	for _, job := range jobs {
		entries = append(entries, domain.NewTrainingHistoryEntry(job))
	}
	s.trainingHistory = entries
	return slices.Clone(entries), nil
}

// DeleteGenerationHistory drops the entry with the given id. In remote
// mode the gateway delete must succeed first.
func (s *HistoryService) DeleteGenerationHistory(ctx context.Context, id int64) error {
	if s.deleteMode == config.DeleteModeRemote {
		if err := s.gateway.DeleteHistory(ctx, id); err != nil {
			s.mu.Lock()
			s.errMsg = errorMessage(err, msgDeleteHistoryFailed)
			s.mu.Unlock()
			s.logger.Error("[history.DeleteGenerationHistory] gateway delete failed",
				slog.Int64("history_id", id),
				slog.String("error", err.Error()),
			)
			return fmt.Errorf("delete generation history %d: %w", id, err)
		}
	}

	s.mu.Lock()
	s.generationHistory = slices.DeleteFunc(slices.Clone(s.generationHistory), func(h domain.GenerationHistoryEntry) bool {
		return h.ID == id
	})
	s.mu.Unlock()
	return nil
}

// DownloadImage saves the image at imageURL for the given history entry.
func (s *HistoryService) DownloadImage(ctx context.Context, imageURL string, historyID int64) (string, error) {
	if s.downloader == nil {
		return "", errors.New("downloader not configured")
	}
	return s.downloader.Download(ctx, imageURL, historyID)
}

func (s *HistoryService) GenerationHistory() []domain.GenerationHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.generationHistory)
}

func (s *HistoryService) TrainingHistory() []domain.TrainingHistoryEntry {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.trainingHistory)
}

func (s *HistoryService) AvailableModels() []domain.AvailableModel {
	s.mu.Lock()
	defer s.mu.Unlock()
	return slices.Clone(s.availableModels)
}

func (s *HistoryService) CurrentPage() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.currentPage
}

func (s *HistoryService) TotalPages() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.totalPages
}

func (s *HistoryService) HasMore() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.hasMore
}

func (s *HistoryService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading > 0
}

// Error is the message of the last failed operation, or "".
func (s *HistoryService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

// Snapshot returns the accumulated generation history as a page view.
func (s *HistoryService) Snapshot() domain.HistoryPage[domain.GenerationHistoryEntry] {
	s.mu.Lock()
	defer s.mu.Unlock()
	return domain.HistoryPage[domain.GenerationHistoryEntry]{
		Items:      append([]domain.GenerationHistoryEntry{}, s.generationHistory...),
		PageIndex:  s.currentPage,
		TotalPages: s.totalPages,
		HasMore:    s.hasMore,
	}
}

func errorMessage(err error, fallback string) string {
	if err == nil || err.Error() == "" {
		return fallback
	}
	return err.Error()
}
