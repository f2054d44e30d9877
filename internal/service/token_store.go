package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sync"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/repository"
)

const noticeLoginRequired = "Login to continue"

// Publisher is the slice of the event bus the services need.
type Publisher interface {
	Publish(topic events.Topic, payload any)
	Notice(message string)
	Redirect(destination, url string)
}

type TokenStoreOptions struct {
	// Jar and CookieURL scope the session cookies expired on ClearTokens.
	Jar         http.CookieJar
	CookieURL   *url.URL
	FrontendURL string
	Logger      *slog.Logger
}

// TokenStore is the single source of truth for authentication state.
// Tokens are mirrored to durable storage so they survive restarts.
type TokenStore struct {
	mu      sync.RWMutex
	session domain.Session

	storage     repository.StorageRepository
	publisher   Publisher
	jar         http.CookieJar
	cookieURL   *url.URL
	frontendURL string
	logger      *slog.Logger
}

// NewTokenStore loads the persisted token pair from storage.
func NewTokenStore(ctx context.Context, storage repository.StorageRepository, publisher Publisher, opts TokenStoreOptions) (*TokenStore, error) {
	s := &TokenStore{
		storage:     storage,
		publisher:   publisher,
		jar:         opts.Jar,
		cookieURL:   opts.CookieURL,
		frontendURL: opts.FrontendURL,
		logger:      opts.Logger,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}

	access, err := s.load(ctx, domain.AccessTokenKey)
	if err != nil {
		return nil, err
	}
	refresh, err := s.load(ctx, domain.RefreshTokenKey)
	if err != nil {
		return nil, err
	}
	s.session.AccessToken = access
	s.session.RefreshToken = refresh

	return s, nil
}

func (s *TokenStore) load(ctx context.Context, key string) (string, error) {
	v, err := s.storage.Get(ctx, key)
	if errors.Is(err, domain.ErrStorageKeyNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("load %s: %w", key, err)
	}
	return v, nil
}

// SetTokens stores both tokens in memory and durable storage.
// Tokens are opaque here; no validation is done.
func (s *TokenStore) SetTokens(ctx context.Context, access, refresh string) error {
	s.mu.Lock()
	s.session.AccessToken = access
	s.session.RefreshToken = refresh
	s.mu.Unlock()

	if err := s.storage.Set(ctx, domain.AccessTokenKey, access); err != nil {
		return fmt.Errorf("persist access token: %w", err)
	}
	if err := s.storage.Set(ctx, domain.RefreshTokenKey, refresh); err != nil {
		return fmt.Errorf("persist refresh token: %w", err)
	}
	return nil
}

// ClearTokens wipes tokens, the cached profile, the persisted slots and
// any session cookies held for the gateway. In-memory state is always
// cleared even when storage fails.
func (s *TokenStore) ClearTokens(ctx context.Context) error {
	s.mu.Lock()
	s.session = domain.Session{}
	s.mu.Unlock()

	s.expireCookies()

	if err := s.storage.Remove(ctx, domain.AccessTokenKey, domain.RefreshTokenKey); err != nil {
		s.logger.Error("[tokenStore.ClearTokens] failed to remove persisted tokens",
			slog.String("error", err.Error()))
		return fmt.Errorf("remove persisted tokens: %w", err)
	}
	return nil
}

func (s *TokenStore) expireCookies() {
	if s.jar == nil || s.cookieURL == nil {
		return
	}
	cookies := s.jar.Cookies(s.cookieURL)
	if len(cookies) == 0 {
		return
	}

	expired := make([]*http.Cookie, 0, len(cookies))
	for _, c := range cookies {
		if c.Name == "" {
			continue
		}
		expired = append(expired, &http.Cookie{
			Name:    c.Name,
			Value:   "",
			Path:    "/",
			Expires: time.Unix(0, 0),
			MaxAge:  -1,
		})
	}
	s.jar.SetCookies(s.cookieURL, expired)
}

// SetUser replaces the cached profile.
func (s *TokenStore) SetUser(user *domain.UserProfile) {
	var cp *domain.UserProfile
	if user != nil {
		u := *user
		cp = &u
	}
	s.mu.Lock()
	s.session.User = cp
	s.mu.Unlock()
}

func (s *TokenStore) User() *domain.UserProfile {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.session.User == nil {
		return nil
	}
	u := *s.session.User
	return &u
}

func (s *TokenStore) AccessToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.AccessToken
}

func (s *TokenStore) RefreshToken() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.RefreshToken
}

func (s *TokenStore) IsAuthenticated() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.session.IsAuthenticated()
}

// Snapshot returns a copy of the current session.
func (s *TokenStore) Snapshot() domain.Session {
	s.mu.RLock()
	defer s.mu.RUnlock()
	snap := s.session
	if snap.User != nil {
		u := *snap.User
		snap.User = &u
	}
	return snap
}

// LoginURL is the hard-redirect target for unauthenticated access.
func (s *TokenStore) LoginURL() string {
	return s.frontendURL + "/login"
}

// RequireAuth reports whether the session is authenticated. When it is not,
// a blocking notice and a hard redirect to the login page are published.
func (s *TokenStore) RequireAuth() bool {
	if s.IsAuthenticated() {
		return true
	}
	s.publisher.Notice(noticeLoginRequired)
	s.publisher.Redirect("login", s.LoginURL())
	return false
}
