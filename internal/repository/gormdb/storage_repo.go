package gormdb

import (
	"context"
	"errors"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type storageRepository struct {
	db *gorm.DB
}

func NewStorageRepository(db *gorm.DB) *storageRepository {
	return &storageRepository{db: db}
}

func (r *storageRepository) Get(ctx context.Context, key string) (string, error) {
	var entry domain.StorageEntry
	err := r.db.WithContext(ctx).First(&entry, "key = ?", key).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return "", domain.ErrStorageKeyNotFound
		}
		return "", err
	}
	return entry.Value, nil
}

func (r *storageRepository) Set(ctx context.Context, key, value string) error {
	entry := &domain.StorageEntry{
		Key:       key,
		Value:     value,
		UpdatedAt: time.Now(),
	}
	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "key"}},
		DoUpdates: clause.AssignmentColumns([]string{"value", "updated_at"}),
	}).Create(entry).Error
}

func (r *storageRepository) Remove(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Delete(&domain.StorageEntry{}, "key IN ?", keys).Error
}
