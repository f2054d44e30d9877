package middleware

import (
	"log/slog"
	"net/http"

	"github.com/dom/blueming-client/internal/metrics"
)

// Destination names. Paths live in the router's destination table.
const (
	DestHome            = "home"
	DestModels          = "models"
	DestSearch          = "search"
	DestTraining        = "training"
	DestLogin           = "login"
	DestRegister        = "register"
	DestAuthCallback    = "auth-callback"
	DestProfile         = "profile"
	DestMyModels        = "my-models"
	DestFavorites       = "favorites"
	DestGenerateHistory = "generate-history"
	DestTestLogin       = "test-login"
)

const (
	HomePath  = "/"
	LoginPath = "/login"
)

// Redirect reasons recorded in metrics.
const (
	ReasonAlreadyAuthenticated = "already_authenticated"
	ReasonLoginRequired        = "login_required"
)

// Destination is a named local route.
type Destination struct {
	Name         string
	Path         string
	RequiresAuth bool
}

// SessionChecker is the part of the token store the guard consults.
type SessionChecker interface {
	IsAuthenticated() bool
	// RequireAuth notifies the UI and reports false when unauthenticated.
	RequireAuth() bool
}

// Guard runs before every request to dest. Signed-in users are bounced
// from login and register to home; protected destinations send anonymous
// users to login after a notice.
func Guard(dest Destination, session SessionChecker, rec metrics.Recorder, logger *slog.Logger) func(http.Handler) http.Handler {
	if rec == nil {
		rec = metrics.Nop{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if (dest.Name == DestLogin || dest.Name == DestRegister) && session.IsAuthenticated() {
				rec.RecordGuardRedirect(ReasonAlreadyAuthenticated)
				http.Redirect(w, r, HomePath, http.StatusFound)
				return
			}

			if dest.RequiresAuth && !session.RequireAuth() {
				logger.Info("[middleware.Guard] login required",
					slog.String("destination", dest.Name))
				rec.RecordGuardRedirect(ReasonLoginRequired)
				http.Redirect(w, r, LoginPath, http.StatusFound)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
