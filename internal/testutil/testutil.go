package testutil

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/api"
	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/dom/blueming-client/internal/metrics"
	"github.com/dom/blueming-client/internal/repository"
	"github.com/dom/blueming-client/internal/repository/memory"
	"github.com/dom/blueming-client/internal/service"
	"github.com/dom/blueming-client/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/testcontainers/testcontainers-go"
	tcPostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	gormPostgres "gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormLogger "gorm.io/gorm/logger"
)

// TestDB manages a testcontainers PostgreSQL instance
type TestDB struct {
	Container testcontainers.Container
	DB        *gorm.DB
	DSN       string
}

// NewTestDB starts a PostgreSQL container with the storage table migrated.
// It skips under -short.
func NewTestDB(t *testing.T) *TestDB {
	t.Helper()
	if testing.Short() {
		t.Skip("skipping postgres container test in short mode")
	}

	ctx := context.Background()

	container, err := tcPostgres.Run(ctx,
		"postgres:15-alpine",
		tcPostgres.WithDatabase("test_blueming_client"),
		tcPostgres.WithUsername("test"),
		tcPostgres.WithPassword("test"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		t.Fatalf("failed to start postgres container: %v", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("failed to get connection string: %v", err)
	}

	db, err := gorm.Open(gormPostgres.Open(dsn), &gorm.Config{
		Logger: gormLogger.Default.LogMode(gormLogger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to connect to database: %v", err)
	}

	if err := db.AutoMigrate(&domain.StorageEntry{}); err != nil {
		t.Fatalf("failed to run migrations: %v", err)
	}

	testDB := &TestDB{
		Container: container,
		DB:        db,
		DSN:       dsn,
	}

	t.Cleanup(func() {
		testDB.Cleanup()
	})

	return testDB
}

// Cleanup terminates the container
func (tdb *TestDB) Cleanup() {
	if tdb.Container != nil {
		tdb.Container.Terminate(context.Background())
	}
}

// Truncate clears all tables for test isolation
func (tdb *TestDB) Truncate(t *testing.T) {
	t.Helper()
	if err := tdb.DB.Exec(fmt.Sprintf("TRUNCATE TABLE %s", domain.StorageEntry{}.TableName())).Error; err != nil {
		t.Logf("warning: failed to truncate %s: %v", domain.StorageEntry{}.TableName(), err)
	}
}

// TestConfig returns a configuration pointed at a fake gateway.
func TestConfig(apiURL, downloadDir string) *config.Config {
	return &config.Config{
		Port:               "0",
		Environment:        "test",
		APIBaseURL:         apiURL,
		GatewayTimeout:     5 * time.Second,
		GatewayRateBurst:   10,
		FrontendURL:        "http://localhost:5173",
		StorageURL:         "memory",
		HistoryPageSize:    2,
		HistoryDeleteMode:  config.DeleteModeLocal,
		DownloadDir:        downloadDir,
		DownloadPrefix:     "blueming_ai",
		DownloadSafeClient: false,
		LogLevel:           "error",
	}
}

// TestApp is the service graph wired against a FakeGateway.
type TestApp struct {
	Gateway  *FakeGateway
	Config   *config.Config
	Bus      *events.Bus
	Storage  *memory.StorageRepository
	Jar      http.CookieJar
	Registry *prometheus.Registry
	Metrics  *metrics.Collector
	Services *service.Services
}

type AppOption func(*config.Config)

func WithDeleteMode(mode string) AppOption {
	return func(c *config.Config) { c.HistoryDeleteMode = mode }
}

func WithPageSize(size int) AppOption {
	return func(c *config.Config) { c.HistoryPageSize = size }
}

// NewTestApp wires the services against a fresh FakeGateway. storage may
// be nil for an empty in-memory store.
func NewTestApp(t *testing.T, storage *memory.StorageRepository, opts ...AppOption) *TestApp {
	t.Helper()

	fake := NewFakeGateway(t)
	cfg := TestConfig(fake.URL(), t.TempDir())
	for _, opt := range opts {
		opt(cfg)
	}

	if storage == nil {
		storage = memory.NewStorageRepository()
	}
	jar, err := cookiejar.New(nil)
	if err != nil {
		t.Fatalf("failed to create cookie jar: %v", err)
	}

	log := logger.Discard()
	bus := events.NewBus(log)
	t.Cleanup(bus.Close)

	reg := prometheus.NewRegistry()
	collector := metrics.NewCollector(reg)

	services, err := service.NewServices(context.Background(), cfg, service.Dependencies{
		Repos:              &repository.Repositories{Storage: storage},
		Publisher:          bus,
		Jar:                jar,
		Metrics:            collector,
		Logger:             log,
		DownloadHTTPClient: fake.Server.Client(),
	})
	if err != nil {
		t.Fatalf("failed to build services: %v", err)
	}

	return &TestApp{
		Gateway:  fake,
		Config:   cfg,
		Bus:      bus,
		Storage:  storage,
		Jar:      jar,
		Registry: reg,
		Metrics:  collector,
		Services: services,
	}
}

// SignIn stores a token pair directly, skipping any gateway call.
func (a *TestApp) SignIn(t *testing.T) {
	t.Helper()
	if err := a.Services.Tokens.SetTokens(context.Background(), "access-token", "refresh-token"); err != nil {
		t.Fatalf("failed to set tokens: %v", err)
	}
}

// TestServer holds all components for integration testing
type TestServer struct {
	*TestApp
	Server *httptest.Server
	Hub    *websocket.Hub
	// Client does not follow redirects so guard responses can be asserted.
	Client *http.Client
}

// NewTestServer serves the router for a TestApp.
func NewTestServer(t *testing.T, opts ...AppOption) *TestServer {
	t.Helper()

	app := NewTestApp(t, nil, opts...)
	hub := websocket.NewHub(app.Bus, logger.Discard())
	go hub.Run()

	router := api.NewRouter(app.Services, hub, app.Config, app.Registry, app.Metrics, logger.Discard())
	server := httptest.NewServer(router)

	t.Cleanup(func() {
		hub.Stop()
		server.Close()
	})

	return &TestServer{
		TestApp: app,
		Server:  server,
		Hub:     hub,
		Client: &http.Client{
			Timeout: 5 * time.Second,
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// URL returns the full local URL for a given path
func (ts *TestServer) URL(path string) string {
	return ts.Server.URL + path
}

// WebSocketURL returns the push channel URL
func (ts *TestServer) WebSocketURL() string {
	return "ws" + strings.TrimPrefix(ts.Server.URL, "http") + "/ws"
}

func (ts *TestServer) Do(t *testing.T, method, path string, body string) *http.Response {
	t.Helper()

	var req *http.Request
	var err error
	if body == "" {
		req, err = http.NewRequest(method, ts.URL(path), nil)
	} else {
		req, err = http.NewRequest(method, ts.URL(path), strings.NewReader(body))
		if err == nil {
			req.Header.Set("Content-Type", "application/json")
		}
	}
	if err != nil {
		t.Fatalf("failed to build request: %v", err)
	}

	resp, err := ts.Client.Do(req)
	if err != nil {
		t.Fatalf("request %s %s failed: %v", method, path, err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

// ConnectWS dials the push channel and waits until the hub has registered
// the connection, so events published afterwards are delivered.
func (ts *TestServer) ConnectWS(t *testing.T) *WSClient {
	t.Helper()

	before := ts.Hub.ClientCount()
	client := NewWSClient(t, ts.WebSocketURL())

	deadline := time.Now().Add(2 * time.Second)
	for ts.Hub.ClientCount() <= before {
		if time.Now().After(deadline) {
			t.Fatalf("websocket client was not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return client
}
