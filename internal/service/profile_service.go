package service

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/events"
)

const (
	msgLoadProfileFailed   = "Failed to load profile"
	msgUpdateProfileFailed = "Failed to update profile"
	noticeUpdateFailed     = "Failed to update profile. Please try again."
)

type ProfileGateway interface {
	GetMyProfile(ctx context.Context) (*domain.UserProfile, error)
	UpdateMyProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.UserProfile, error)
}

// ProfileService loads and edits the current user's profile, keeping the
// token store's copy in sync.
type ProfileService struct {
	gateway   ProfileGateway
	tokens    *TokenStore
	publisher Publisher
	logger    *slog.Logger

	mu      sync.Mutex
	user    *domain.UserProfile
	loading bool
	errMsg  string
}

func NewProfileService(gateway ProfileGateway, tokens *TokenStore, publisher Publisher, logger *slog.Logger) *ProfileService {
	if logger == nil {
		logger = slog.Default()
	}
	return &ProfileService{
		gateway:   gateway,
		tokens:    tokens,
		publisher: publisher,
		logger:    logger,
	}
}

// LoadUserProfile fetches the profile. Any failure is taken to mean the
// session is no longer valid: the token store is cleared and the UI is
// sent to login before the error is returned.
func (s *ProfileService) LoadUserProfile(ctx context.Context) (*domain.UserProfile, error) {
	s.start()

	profile, err := s.gateway.GetMyProfile(ctx)
	if err != nil {
		s.finish(nil, errorMessage(err, msgLoadProfileFailed))
		s.logger.Error("[profile.LoadUserProfile] failed to load user profile, clearing session",
			slog.String("error", err.Error()))

		if clearErr := s.tokens.ClearTokens(ctx); clearErr != nil {
			s.logger.Warn("[profile.LoadUserProfile] failed to clear session",
				slog.String("error", clearErr.Error()))
		}
		s.publisher.Redirect("login", "")
		return nil, fmt.Errorf("load user profile: %w", err)
	}

	s.finish(profile, "")
	s.tokens.SetUser(profile)
	return copyProfile(profile), nil
}

// UpdateProfile sends the partial update and, on success, replaces the
// profile everywhere and publishes one profile-updated event.
func (s *ProfileService) UpdateProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.UserProfile, error) {
	s.start()

	profile, err := s.gateway.UpdateMyProfile(ctx, update)
	if err != nil {
		s.finish(nil, errorMessage(err, msgUpdateProfileFailed))
		s.logger.Error("[profile.UpdateProfile] failed to update profile",
			slog.String("error", err.Error()))
		s.publisher.Notice(noticeUpdateFailed)
		return nil, fmt.Errorf("update profile: %w", err)
	}

	s.finish(profile, "")
	s.tokens.SetUser(profile)
	s.publisher.Publish(events.TopicProfileUpdated, *copyProfile(profile))
	return copyProfile(profile), nil
}

func (s *ProfileService) start() {
	s.mu.Lock()
	s.loading = true
	s.errMsg = ""
	s.mu.Unlock()
}

func (s *ProfileService) finish(user *domain.UserProfile, errMsg string) {
	s.mu.Lock()
	s.loading = false
	s.errMsg = errMsg
	if errMsg == "" {
		s.user = copyProfile(user)
	}
	s.mu.Unlock()
}

func (s *ProfileService) User() *domain.UserProfile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return copyProfile(s.user)
}

func (s *ProfileService) Loading() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loading
}

func (s *ProfileService) Error() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.errMsg
}

func copyProfile(p *domain.UserProfile) *domain.UserProfile {
	if p == nil {
		return nil
	}
	cp := *p
	return &cp
}
