package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/golang-jwt/jwt/v5"
)

var ErrMissingCallbackTokens = errors.New("auth callback is missing tokens")

type AuthGateway interface {
	TestLogin(ctx context.Context) (*domain.TestLoginResult, error)
}

// AuthService performs the sign-in and sign-out actions that feed the
// token store.
type AuthService struct {
	gateway  AuthGateway
	tokens   *TokenStore
	profiles *ProfileService
	logger   *slog.Logger
	now      func() time.Time
}

func NewAuthService(gateway AuthGateway, tokens *TokenStore, profiles *ProfileService, logger *slog.Logger) *AuthService {
	if logger == nil {
		logger = slog.Default()
	}
	return &AuthService{
		gateway:  gateway,
		tokens:   tokens,
		profiles: profiles,
		logger:   logger,
		now:      time.Now,
	}
}

// TestLogin signs in through the non-production endpoint and populates the
// token store straight from the response.
func (s *AuthService) TestLogin(ctx context.Context) (*domain.UserProfile, error) {
	result, err := s.gateway.TestLogin(ctx)
	if err != nil {
		s.logger.Error("[auth.TestLogin] test login failed", slog.String("error", err.Error()))
		return nil, fmt.Errorf("test login: %w", err)
	}

	if err := s.tokens.SetTokens(ctx, result.AccessToken, result.RefreshToken); err != nil {
		return nil, err
	}
	profile := result.Profile()
	s.tokens.SetUser(profile)

	s.logger.Info("[auth.TestLogin] signed in", slog.Int64("user_id", result.UserID))
	return profile, nil
}

// CompleteCallback stores the token pair handed back by the OAuth redirect
// and loads the profile for it.
func (s *AuthService) CompleteCallback(ctx context.Context, accessToken, refreshToken string) (*domain.UserProfile, error) {
	if accessToken == "" || refreshToken == "" {
		return nil, ErrMissingCallbackTokens
	}
	if err := s.tokens.SetTokens(ctx, accessToken, refreshToken); err != nil {
		return nil, err
	}
	return s.profiles.LoadUserProfile(ctx)
}

func (s *AuthService) Logout(ctx context.Context) error {
	return s.tokens.ClearTokens(ctx)
}

// TokenInfo describes the current access token without verifying it.
type TokenInfo struct {
	Authenticated bool       `json:"authenticated"`
	Subject       string     `json:"subject,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
	Expired       bool       `json:"expired"`
}

// TokenInfo reads the access token's registered claims. The signature is
// not checked: only the gateway can do that. Opaque tokens yield just the
// authenticated flag.
func (s *AuthService) TokenInfo() TokenInfo {
	token := s.tokens.AccessToken()
	info := TokenInfo{Authenticated: token != ""}
	if token == "" {
		return info
	}

	var claims jwt.RegisteredClaims
	if _, _, err := jwt.NewParser().ParseUnverified(token, &claims); err != nil {
		return info
	}
	info.Subject = claims.Subject
	if claims.ExpiresAt != nil {
		exp := claims.ExpiresAt.Time
		info.ExpiresAt = &exp
		info.Expired = s.now().After(exp)
	}
	return info
}
