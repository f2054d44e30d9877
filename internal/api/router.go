package api

import (
	"log/slog"
	"net/http"

	"github.com/dom/blueming-client/internal/api/handlers"
	"github.com/dom/blueming-client/internal/api/middleware"
	"github.com/dom/blueming-client/internal/config"
	"github.com/dom/blueming-client/internal/metrics"
	"github.com/dom/blueming-client/internal/service"
	"github.com/dom/blueming-client/internal/websocket"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// Destinations is the named route table. Anything else redirects home.
var Destinations = []middleware.Destination{
	{Name: middleware.DestHome, Path: "/"},
	{Name: middleware.DestModels, Path: "/models"},
	{Name: middleware.DestSearch, Path: "/search"},
	{Name: middleware.DestTraining, Path: "/training", RequiresAuth: true},
	{Name: middleware.DestLogin, Path: "/login"},
	{Name: middleware.DestRegister, Path: "/register"},
	{Name: middleware.DestAuthCallback, Path: "/auth/callback"},
	{Name: middleware.DestProfile, Path: "/profile", RequiresAuth: true},
	{Name: middleware.DestMyModels, Path: "/my-models", RequiresAuth: true},
	{Name: middleware.DestFavorites, Path: "/favorites", RequiresAuth: true},
	{Name: middleware.DestGenerateHistory, Path: "/generate-history", RequiresAuth: true},
	{Name: middleware.DestTestLogin, Path: "/test-login"},
}

// DestinationByName looks up a destination in the route table.
func DestinationByName(name string) (middleware.Destination, bool) {
	for _, d := range Destinations {
		if d.Name == name {
			return d, true
		}
	}
	return middleware.Destination{}, false
}

func NewRouter(services *service.Services, hub *websocket.Hub, cfg *config.Config, gatherer prometheus.Gatherer, rec metrics.Recorder, logger *slog.Logger) http.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(chiMiddleware.Logger)
	r.Use(chiMiddleware.Recoverer)
	r.Use(chiMiddleware.RequestID)
	r.Use(middleware.CORS(cfg.FrontendURL))

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("OK"))
	})
	if gatherer != nil {
		r.Handle("/metrics", metrics.Handler(gatherer))
	}

	// Initialize handlers
	pageHandler := handlers.NewPageHandler(services.Tokens)
	authHandler := handlers.NewAuthHandler(services.Auth, services.Tokens, logger)
	historyHandler := handlers.NewHistoryHandler(services.History, cfg.HistoryPageSize, logger)
	profileHandler := handlers.NewProfileHandler(services.Profile, logger)
	modelsHandler := handlers.NewModelsHandler(services.Models, cfg.HistoryPageSize, logger)
	wsHandler := handlers.NewWebSocketHandler(hub, cfg.FrontendURL, logger)

	guard := func(name string) func(http.Handler) http.Handler {
		dest, _ := DestinationByName(name)
		return middleware.Guard(dest, services.Tokens, rec, logger)
	}

	// Public destinations
	r.With(guard(middleware.DestHome)).Get("/", pageHandler.Serve(middleware.DestHome))
	r.With(guard(middleware.DestModels)).Get("/models", pageHandler.Serve(middleware.DestModels))
	r.With(guard(middleware.DestSearch)).Get("/search", pageHandler.Serve(middleware.DestSearch))
	r.With(guard(middleware.DestLogin)).Get("/login", pageHandler.Serve(middleware.DestLogin))
	r.With(guard(middleware.DestRegister)).Get("/register", pageHandler.Serve(middleware.DestRegister))
	r.With(guard(middleware.DestAuthCallback)).Get("/auth/callback", authHandler.Callback)
	r.With(guard(middleware.DestTestLogin)).Get("/test-login", authHandler.TestLogin)

	// Protected destinations
	r.With(guard(middleware.DestTraining)).Get("/training", historyHandler.Training)

	r.Route("/profile", func(r chi.Router) {
		r.Use(guard(middleware.DestProfile))
		r.Get("/", profileHandler.GetProfile)
		r.Patch("/", profileHandler.UpdateProfile)
	})

	r.With(guard(middleware.DestMyModels)).Get("/my-models", modelsHandler.MyModels)
	r.With(guard(middleware.DestFavorites)).Get("/favorites", modelsHandler.Favorites)

	r.Route("/generate-history", func(r chi.Router) {
		r.Use(guard(middleware.DestGenerateHistory))
		r.Get("/", historyHandler.List)
		r.Post("/more", historyHandler.More)
		r.Delete("/{id}", historyHandler.Delete)
		r.Post("/{id}/download", historyHandler.Download)
	})

	// Session plumbing
	r.Get("/session", authHandler.Session)
	r.Post("/logout", authHandler.Logout)
	r.Get("/ws", wsHandler.Handle)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		http.Redirect(w, r, middleware.HomePath, http.StatusFound)
	})

	return r
}
