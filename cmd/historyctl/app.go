package main

import (
	"context"
	"fmt"
	"net/http/cookiejar"
	"os"
	"time"

	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/events"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/dom/blueming-client/internal/repository/gormdb"
	"github.com/dom/blueming-client/internal/service"
)

// app is the service graph for one command invocation. It shares the
// client's durable storage, so a session started here is seen by the
// client process and the other way round.
type app struct {
	cfg      *config.Config
	services *service.Services
	bus      *events.Bus
	notices  <-chan events.Event
	close    func()
}

func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	log := logger.Setup(os.Stderr, cfg.LogLevel)

	db, err := gormdb.NewConnection(cfg.StorageURL, cfg.StorageVerbose)
	if err != nil {
		return nil, err
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}

	jar, err := cookiejar.New(nil)
	if err != nil {
		sqlDB.Close()
		return nil, err
	}

	bus := events.NewBus(log)
	notices, cancel := bus.Subscribe(32, events.TopicNotice, events.TopicRedirect, events.TopicOpenURL)

	services, err := service.NewServices(ctx, cfg, service.Dependencies{
		Repos:     gormdb.NewRepositories(db),
		Publisher: bus,
		Jar:       jar,
		Logger:    log,
	})
	if err != nil {
		cancel()
		bus.Close()
		sqlDB.Close()
		return nil, err
	}

	return &app{
		cfg:      cfg,
		services: services,
		bus:      bus,
		notices:  notices,
		close: func() {
			cancel()
			bus.Close()
			sqlDB.Close()
		},
	}, nil
}

// printNotices writes out whatever the services asked the UI to show.
func (a *app) printNotices() {
	for {
		select {
		case evt := <-a.notices:
			switch p := evt.Payload.(type) {
			case events.Notice:
				fmt.Printf("  ! %s\n", p.Message)
			case events.Redirect:
				fmt.Printf("  -> %s %s\n", p.Destination, p.URL)
			case events.OpenURL:
				fmt.Printf("  open %s\n", p.URL)
			}
		case <-time.After(10 * time.Millisecond):
			return
		}
	}
}
