package service_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/dom/blueming-client/internal/repository"
	"github.com/dom/blueming-client/internal/repository/memory"
	"github.com/dom/blueming-client/internal/service"
	"github.com/dom/blueming-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var errStorageDown = errors.New("storage down")

// failingStorage fails every write.
type failingStorage struct {
	*memory.StorageRepository
}

func (failingStorage) Set(context.Context, string, string) error { return errStorageDown }
func (failingStorage) Remove(context.Context, ...string) error   { return errStorageDown }

func newTokenStore(t *testing.T, storage repository.StorageRepository, jar http.CookieJar, cookieURL *url.URL) (*service.TokenStore, *events.Bus) {
	t.Helper()
	bus := events.NewBus(logger.Discard())
	t.Cleanup(bus.Close)

	store, err := service.NewTokenStore(context.Background(), storage, bus, service.TokenStoreOptions{
		Jar:         jar,
		CookieURL:   cookieURL,
		FrontendURL: "http://localhost:5173",
		Logger:      logger.Discard(),
	})
	require.NoError(t, err)
	return store, bus
}

func TestTokenStore_LoadsPersistedTokens(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorageRepository()
	require.NoError(t, storage.Set(ctx, domain.AccessTokenKey, "persisted-access"))
	require.NoError(t, storage.Set(ctx, domain.RefreshTokenKey, "persisted-refresh"))

	store, _ := newTokenStore(t, storage, nil, nil)

	assert.Equal(t, "persisted-access", store.AccessToken())
	assert.Equal(t, "persisted-refresh", store.RefreshToken())
	assert.True(t, store.IsAuthenticated())
	assert.Nil(t, store.User())
}

func TestTokenStore_EmptyStorage(t *testing.T) {
	store, _ := newTokenStore(t, memory.NewStorageRepository(), nil, nil)

	assert.Empty(t, store.AccessToken())
	assert.False(t, store.IsAuthenticated())
}

func TestTokenStore_SetTokensPersists(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorageRepository()
	store, _ := newTokenStore(t, storage, nil, nil)

	require.NoError(t, store.SetTokens(ctx, "a1", "r1"))

	assert.True(t, store.IsAuthenticated())
	access, err := storage.Get(ctx, domain.AccessTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "a1", access)
	refresh, err := storage.Get(ctx, domain.RefreshTokenKey)
	require.NoError(t, err)
	assert.Equal(t, "r1", refresh)

	// A fresh store over the same storage sees the same session.
	reloaded, _ := newTokenStore(t, storage, nil, nil)
	assert.Equal(t, "a1", reloaded.AccessToken())
}

func TestTokenStore_SetTokensDoesNotValidate(t *testing.T) {
	store, _ := newTokenStore(t, memory.NewStorageRepository(), nil, nil)

	require.NoError(t, store.SetTokens(context.Background(), "not-a-jwt", ""))
	assert.True(t, store.IsAuthenticated())
}

func TestTokenStore_ClearTokens(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorageRepository()
	jar, err := cookiejar.New(nil)
	require.NoError(t, err)
	gatewayURL, _ := url.Parse("http://gateway.example")
	jar.SetCookies(gatewayURL, []*http.Cookie{
		{Name: "JSESSIONID", Value: "abc", Path: "/"},
		{Name: "refresh", Value: "def", Path: "/", HttpOnly: true},
	})
	require.Len(t, jar.Cookies(gatewayURL), 2)

	store, _ := newTokenStore(t, storage, jar, gatewayURL)
	require.NoError(t, store.SetTokens(ctx, "a", "r"))
	store.SetUser(testutil.ProfileFixture())

	require.NoError(t, store.ClearTokens(ctx))

	assert.False(t, store.IsAuthenticated())
	assert.Empty(t, store.RefreshToken())
	assert.Nil(t, store.User())
	assert.Equal(t, 0, storage.Len())
	assert.Empty(t, jar.Cookies(gatewayURL))
}

func TestTokenStore_ClearTokensStorageFailure(t *testing.T) {
	ctx := context.Background()
	storage := memory.NewStorageRepository()
	require.NoError(t, storage.Set(ctx, domain.AccessTokenKey, "a"))

	store, _ := newTokenStore(t, failingStorage{storage}, nil, nil)
	require.True(t, store.IsAuthenticated())

	err := store.ClearTokens(ctx)
	assert.ErrorIs(t, err, errStorageDown)
	assert.False(t, store.IsAuthenticated(), "memory is cleared even when storage fails")
}

func TestTokenStore_SetTokensStorageFailure(t *testing.T) {
	store, _ := newTokenStore(t, failingStorage{memory.NewStorageRepository()}, nil, nil)

	err := store.SetTokens(context.Background(), "a", "r")
	assert.ErrorIs(t, err, errStorageDown)
}

func TestTokenStore_UserIsCopied(t *testing.T) {
	store, _ := newTokenStore(t, memory.NewStorageRepository(), nil, nil)
	profile := testutil.ProfileFixture()
	store.SetUser(profile)

	profile.Nickname = "mutated"
	got := store.User()
	assert.Equal(t, "bloom", got.Nickname)

	got.Nickname = "also mutated"
	assert.Equal(t, "bloom", store.Snapshot().User.Nickname)
}

func TestTokenStore_RequireAuth(t *testing.T) {
	t.Run("unauthenticated notifies and redirects", func(t *testing.T) {
		store, bus := newTokenStore(t, memory.NewStorageRepository(), nil, nil)
		ch, cancel := bus.Subscribe(8)
		defer cancel()

		assert.False(t, store.RequireAuth())

		notice := testutil.ExpectEvent(t, ch, events.TopicNotice, time.Second)
		assert.Equal(t, events.Notice{Message: "Login to continue"}, notice.Payload)

		redirect := testutil.ExpectEvent(t, ch, events.TopicRedirect, time.Second)
		assert.Equal(t, events.Redirect{Destination: "login", URL: "http://localhost:5173/login"}, redirect.Payload)
	})

	t.Run("authenticated passes silently", func(t *testing.T) {
		store, bus := newTokenStore(t, memory.NewStorageRepository(), nil, nil)
		ch, cancel := bus.Subscribe(8)
		defer cancel()
		require.NoError(t, store.SetTokens(context.Background(), "a", "r"))

		assert.True(t, store.RequireAuth())
		testutil.ExpectNoEvent(t, ch, 50*time.Millisecond)
	})
}

func TestTokenStore_LoginURL(t *testing.T) {
	store, _ := newTokenStore(t, memory.NewStorageRepository(), nil, nil)
	assert.Equal(t, "http://localhost:5173/login", store.LoginURL())
}
