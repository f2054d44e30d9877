package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// History delete modes.
const (
	DeleteModeLocal  = "local"
	DeleteModeRemote = "remote"
)

type Config struct {
	// Server
	Port        string
	Environment string

	// Gateway
	APIBaseURL       string
	GatewayTimeout   time.Duration
	GatewayRateLimit float64
	GatewayRateBurst int

	// Frontend
	FrontendURL string

	// Storage
	StorageURL     string
	StorageVerbose bool

	// History
	HistoryPageSize   int
	HistoryDeleteMode string

	// Download
	DownloadDir        string
	DownloadPrefix     string
	DownloadSafeClient bool

	// Logging
	LogLevel string
}

// Load reads configuration from the environment, optionally layered over a
// yaml file named by BLUEMING_CONFIG.
func Load() (*Config, error) {
	v := viper.New()
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("PORT", "5173")
	v.SetDefault("ENVIRONMENT", "development")
	v.SetDefault("GATEWAY_TIMEOUT", "30s")
	v.SetDefault("GATEWAY_RATE_LIMIT", 0.0)
	v.SetDefault("GATEWAY_RATE_BURST", 10)
	v.SetDefault("FRONTEND_URL", "http://localhost:5173")
	v.SetDefault("STORAGE_URL", "data/blueming.db")
	v.SetDefault("STORAGE_VERBOSE", false)
	v.SetDefault("HISTORY_PAGE_SIZE", 20)
	v.SetDefault("HISTORY_DELETE_MODE", DeleteModeLocal)
	v.SetDefault("DOWNLOAD_DIR", "downloads")
	v.SetDefault("DOWNLOAD_PREFIX", "blueming_ai")
	v.SetDefault("DOWNLOAD_SAFE_CLIENT", true)
	v.SetDefault("LOG_LEVEL", "info")

	if path := v.GetString("BLUEMING_CONFIG"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	cfg := &Config{
		Port:               v.GetString("PORT"),
		Environment:        v.GetString("ENVIRONMENT"),
		APIBaseURL:         strings.TrimRight(v.GetString("API_BASE_URL"), "/"),
		GatewayTimeout:     v.GetDuration("GATEWAY_TIMEOUT"),
		GatewayRateLimit:   v.GetFloat64("GATEWAY_RATE_LIMIT"),
		GatewayRateBurst:   v.GetInt("GATEWAY_RATE_BURST"),
		FrontendURL:        strings.TrimRight(v.GetString("FRONTEND_URL"), "/"),
		StorageURL:         v.GetString("STORAGE_URL"),
		StorageVerbose:     v.GetBool("STORAGE_VERBOSE"),
		HistoryPageSize:    v.GetInt("HISTORY_PAGE_SIZE"),
		HistoryDeleteMode:  strings.ToLower(v.GetString("HISTORY_DELETE_MODE")),
		DownloadDir:        v.GetString("DOWNLOAD_DIR"),
		DownloadPrefix:     v.GetString("DOWNLOAD_PREFIX"),
		DownloadSafeClient: v.GetBool("DOWNLOAD_SAFE_CLIENT"),
		LogLevel:           v.GetString("LOG_LEVEL"),
	}

	if cfg.APIBaseURL == "" {
		return nil, fmt.Errorf("API_BASE_URL environment variable is required")
	}
	if cfg.HistoryDeleteMode != DeleteModeLocal && cfg.HistoryDeleteMode != DeleteModeRemote {
		return nil, fmt.Errorf("HISTORY_DELETE_MODE must be %q or %q, got %q", DeleteModeLocal, DeleteModeRemote, cfg.HistoryDeleteMode)
	}
	if cfg.HistoryPageSize <= 0 {
		cfg.HistoryPageSize = 20
	}

	return cfg, nil
}

func (c *Config) IsProduction() bool {
	return c.Environment == "production"
}
