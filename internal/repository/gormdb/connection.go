package gormdb

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/repository"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// NewConnection opens the durable storage database. Postgres URLs use the
// postgres driver; anything else is treated as a sqlite file path.
func NewConnection(storageURL string, verbose bool) (*gorm.DB, error) {
	logMode := logger.Silent
	if verbose {
		logMode = logger.Info
	}
	cfg := &gorm.Config{
		Logger: logger.Default.LogMode(logMode),
	}

	var dialector gorm.Dialector
	if isPostgresURL(storageURL) {
		dialector = postgres.Open(storageURL)
	} else {
		path := strings.TrimPrefix(storageURL, "sqlite://")
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0o700); err != nil {
				return nil, fmt.Errorf("create storage dir: %w", err)
			}
		}
		dialector = sqlite.Open(path)
	}

	db, err := gorm.Open(dialector, cfg)
	if err != nil {
		return nil, fmt.Errorf("open storage: %w", err)
	}

	if err := db.AutoMigrate(&domain.StorageEntry{}); err != nil {
		return nil, fmt.Errorf("migrate storage: %w", err)
	}

	return db, nil
}

func NewRepositories(db *gorm.DB) *repository.Repositories {
	return &repository.Repositories{
		Storage: NewStorageRepository(db),
	}
}

func isPostgresURL(u string) bool {
	return strings.HasPrefix(u, "postgres://") || strings.HasPrefix(u, "postgresql://")
}
