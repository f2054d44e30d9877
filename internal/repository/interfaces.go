package repository

import (
	"context"
)

// StorageRepository holds the durable client-side key/value slots.
// Get returns domain.ErrStorageKeyNotFound for a missing key.
type StorageRepository interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, keys ...string) error
}

type Repositories struct {
	Storage StorageRepository
}
