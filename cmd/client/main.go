package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"net/http/cookiejar"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/dom/blueming-client/internal/api"
	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/dom/blueming-client/internal/metrics"
	"github.com/dom/blueming-client/internal/repository"
	"github.com/dom/blueming-client/internal/repository/gormdb"
	"github.com/dom/blueming-client/internal/repository/memory"
	"github.com/dom/blueming-client/internal/service"
	"github.com/dom/blueming-client/internal/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", slog.String("error", err.Error()))
		os.Exit(1)
	}

	log := logger.SetupDefault(os.Stdout, cfg.LogLevel)

	// Initialize storage
	repos, closeStorage, err := openStorage(cfg)
	if err != nil {
		log.Error("failed to open storage", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer closeStorage()

	jar, err := cookiejar.New(nil)
	if err != nil {
		log.Error("failed to create cookie jar", slog.String("error", err.Error()))
		os.Exit(1)
	}

	bus := events.NewBus(log)
	defer bus.Close()

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	collector := metrics.NewCollector(reg)

	// Initialize services
	services, err := service.NewServices(context.Background(), cfg, service.Dependencies{
		Repos:     repos,
		Publisher: bus,
		Jar:       jar,
		Metrics:   collector,
		Logger:    log,
	})
	if err != nil {
		log.Error("failed to initialize services", slog.String("error", err.Error()))
		os.Exit(1)
	}

	// Initialize WebSocket hub
	hub := websocket.NewHub(bus, log)
	go hub.Run()
	defer hub.Stop()

	router := api.NewRouter(services, hub, cfg, reg, collector, log)

	srv := &http.Server{
		Addr:         "127.0.0.1:" + cfg.Port,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 2 * cfg.GatewayTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Info("client starting",
			slog.String("addr", srv.Addr),
			slog.String("gateway", cfg.APIBaseURL),
			slog.Bool("authenticated", services.Tokens.IsAuthenticated()),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("failed to start server", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server forced to shutdown", slog.String("error", err.Error()))
	}

	log.Info("client stopped")
}

// openStorage picks the durable token store. STORAGE_URL=memory keeps the
// session for this process only.
func openStorage(cfg *config.Config) (*repository.Repositories, func(), error) {
	if cfg.StorageURL == "memory" {
		return &repository.Repositories{Storage: memory.NewStorageRepository()}, func() {}, nil
	}

	db, err := gormdb.NewConnection(cfg.StorageURL, cfg.StorageVerbose)
	if err != nil {
		return nil, nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, nil, err
	}
	return gormdb.NewRepositories(db), func() { sqlDB.Close() }, nil
}
