package gormdb_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/repository"
	"github.com/dom/blueming-client/internal/repository/gormdb"
	"github.com/dom/blueming-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func sqliteRepo(t *testing.T) repository.StorageRepository {
	t.Helper()
	db, err := gormdb.NewConnection(filepath.Join(t.TempDir(), "state", "client.db"), false)
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return gormdb.NewRepositories(db).Storage
}

func postgresRepo(t *testing.T) repository.StorageRepository {
	t.Helper()
	testDB := testutil.NewTestDB(t)
	return gormdb.NewStorageRepository(testDB.DB)
}

func TestStorageRepository(t *testing.T) {
	backends := []struct {
		name string
		open func(*testing.T) repository.StorageRepository
	}{
		{name: "sqlite", open: sqliteRepo},
		{name: "postgres", open: postgresRepo},
	}

	for _, backend := range backends {
		t.Run(backend.name, func(t *testing.T) {
			repo := backend.open(t)
			ctx := context.Background()

			t.Run("missing key", func(t *testing.T) {
				_, err := repo.Get(ctx, "absent")
				assert.ErrorIs(t, err, domain.ErrStorageKeyNotFound)
			})

			t.Run("set then get", func(t *testing.T) {
				require.NoError(t, repo.Set(ctx, domain.AccessTokenKey, "a1"))
				got, err := repo.Get(ctx, domain.AccessTokenKey)
				require.NoError(t, err)
				assert.Equal(t, "a1", got)
			})

			t.Run("set overwrites", func(t *testing.T) {
				require.NoError(t, repo.Set(ctx, domain.AccessTokenKey, "a2"))
				got, err := repo.Get(ctx, domain.AccessTokenKey)
				require.NoError(t, err)
				assert.Equal(t, "a2", got)
			})

			t.Run("remove several", func(t *testing.T) {
				require.NoError(t, repo.Set(ctx, domain.RefreshTokenKey, "r1"))
				require.NoError(t, repo.Set(ctx, "other", "kept"))

				require.NoError(t, repo.Remove(ctx, domain.AccessTokenKey, domain.RefreshTokenKey))

				_, err := repo.Get(ctx, domain.AccessTokenKey)
				assert.ErrorIs(t, err, domain.ErrStorageKeyNotFound)
				_, err = repo.Get(ctx, domain.RefreshTokenKey)
				assert.ErrorIs(t, err, domain.ErrStorageKeyNotFound)

				kept, err := repo.Get(ctx, "other")
				require.NoError(t, err)
				assert.Equal(t, "kept", kept)
			})

			t.Run("remove nothing", func(t *testing.T) {
				assert.NoError(t, repo.Remove(ctx))
				assert.NoError(t, repo.Remove(ctx, "never-set"))
			})
		})
	}
}

func TestNewConnection_PersistsAcrossReopen(t *testing.T) {
	path := filepath.Join(t.TempDir(), "client.db")
	ctx := context.Background()

	db, err := gormdb.NewConnection("sqlite://"+path, false)
	require.NoError(t, err)
	require.NoError(t, gormdb.NewStorageRepository(db).Set(ctx, domain.RefreshTokenKey, "persisted"))
	sqlDB, err := db.DB()
	require.NoError(t, err)
	require.NoError(t, sqlDB.Close())

	reopened, err := gormdb.NewConnection(path, false)
	require.NoError(t, err)
	got, err := gormdb.NewStorageRepository(reopened).Get(ctx, domain.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "persisted", got)
}
