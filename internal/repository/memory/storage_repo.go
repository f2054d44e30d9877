// Package memory provides an in-process StorageRepository for tests and
// ephemeral sessions.
package memory

import (
	"context"
	"sync"

	"github.com/dom/blueming-client/internal/domain"
)

type StorageRepository struct {
	mu      sync.RWMutex
	entries map[string]string
}

func NewStorageRepository() *StorageRepository {
	return &StorageRepository{entries: make(map[string]string)}
}

func (r *StorageRepository) Get(_ context.Context, key string) (string, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.entries[key]
	if !ok {
		return "", domain.ErrStorageKeyNotFound
	}
	return v, nil
}

func (r *StorageRepository) Set(_ context.Context, key, value string) error {
	r.mu.Lock()
	r.entries[key] = value
	r.mu.Unlock()
	return nil
}

func (r *StorageRepository) Remove(_ context.Context, keys ...string) error {
	r.mu.Lock()
	for _, k := range keys {
		delete(r.entries, k)
	}
	r.mu.Unlock()
	return nil
}

// Len is the number of stored slots.
func (r *StorageRepository) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}
