package service

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"

	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/gateway"
	"github.com/dom/blueming-client/internal/metrics"
	"github.com/dom/blueming-client/internal/repository"
)

type Services struct {
	Tokens     *TokenStore
	Gateway    *gateway.Client
	Auth       *AuthService
	Profile    *ProfileService
	History    *HistoryService
	Models     *ModelsService
	Downloader *Downloader
}

// Dependencies are the process-level collaborators shared by the services.
type Dependencies struct {
	Repos     *repository.Repositories
	Publisher Publisher
	Jar       http.CookieJar
	Metrics   metrics.Recorder
	Logger    *slog.Logger
	// GatewayHTTPClient and DownloadHTTPClient override the clients built
	// from cfg (tests point them at local fakes).
	GatewayHTTPClient  *http.Client
	DownloadHTTPClient *http.Client
}

func NewServices(ctx context.Context, cfg *config.Config, deps Dependencies) (*Services, error) {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.Nop{}
	}

	apiURL, err := url.Parse(cfg.APIBaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse API_BASE_URL: %w", err)
	}

	tokens, err := NewTokenStore(ctx, deps.Repos.Storage, deps.Publisher, TokenStoreOptions{
		Jar:         deps.Jar,
		CookieURL:   apiURL,
		FrontendURL: cfg.FrontendURL,
		Logger:      deps.Logger,
	})
	if err != nil {
		return nil, fmt.Errorf("init token store: %w", err)
	}

	gw, err := gateway.NewClient(cfg.APIBaseURL, tokens, gateway.Options{
		HTTPClient: deps.GatewayHTTPClient,
		Timeout:    cfg.GatewayTimeout,
		Jar:        deps.Jar,
		RateLimit:  cfg.GatewayRateLimit,
		RateBurst:  cfg.GatewayRateBurst,
		Metrics:    deps.Metrics,
		Logger:     deps.Logger,
	})
	if err != nil {
		return nil, err
	}

	downloadClient := deps.DownloadHTTPClient
	if downloadClient == nil && cfg.DownloadSafeClient {
		downloadClient = NewSafeDownloadClient(cfg.GatewayTimeout)
	}
	downloader := NewDownloader(deps.Publisher, DownloaderOptions{
		HTTPClient: downloadClient,
		Dir:        cfg.DownloadDir,
		Prefix:     cfg.DownloadPrefix,
		Logger:     deps.Logger,
	})

	profiles := NewProfileService(gw, tokens, deps.Publisher, deps.Logger)

	return &Services{
		Tokens:  tokens,
		Gateway: gw,
		Auth:    NewAuthService(gw, tokens, profiles, deps.Logger),
		Profile: profiles,
		History: NewHistoryService(gw, HistoryOptions{
			DeleteMode: cfg.HistoryDeleteMode,
			Downloader: downloader,
			Metrics:    deps.Metrics,
			Logger:     deps.Logger,
		}),
		Models:     NewModelsService(gw, cfg.HistoryPageSize, deps.Logger),
		Downloader: downloader,
	}, nil
}
