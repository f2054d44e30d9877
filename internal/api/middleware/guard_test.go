package middleware_test

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/api/middleware"
	"github.com/dom/blueming-client/internal/logger"
	"github.com/stretchr/testify/assert"
)

type fakeSession struct {
	authenticated bool
	notified      int
}

func (f *fakeSession) IsAuthenticated() bool { return f.authenticated }

func (f *fakeSession) RequireAuth() bool {
	if !f.authenticated {
		f.notified++
	}
	return f.authenticated
}

type redirectRecorder struct {
	reasons []string
}

func (r *redirectRecorder) RecordGatewayRequest(string, int, time.Duration) {}
func (r *redirectRecorder) RecordGatewayFailure(string)                     {}
func (r *redirectRecorder) RecordHistoryItemsLoaded(int)                    {}
func (r *redirectRecorder) RecordGuardRedirect(reason string)               { r.reasons = append(r.reasons, reason) }

func TestGuard(t *testing.T) {
	tests := []struct {
		name          string
		dest          middleware.Destination
		authenticated bool
		wantStatus    int
		wantLocation  string
		wantNotice    bool
		wantReason    string
	}{
		{
			name:          "login while authenticated goes home",
			dest:          middleware.Destination{Name: middleware.DestLogin, Path: "/login"},
			authenticated: true,
			wantStatus:    http.StatusFound,
			wantLocation:  "/",
			wantReason:    middleware.ReasonAlreadyAuthenticated,
		},
		{
			name:          "register while authenticated goes home",
			dest:          middleware.Destination{Name: middleware.DestRegister, Path: "/register"},
			authenticated: true,
			wantStatus:    http.StatusFound,
			wantLocation:  "/",
			wantReason:    middleware.ReasonAlreadyAuthenticated,
		},
		{
			name:       "login while anonymous is allowed",
			dest:       middleware.Destination{Name: middleware.DestLogin, Path: "/login"},
			wantStatus: http.StatusOK,
		},
		{
			name:         "protected destination while anonymous goes to login",
			dest:         middleware.Destination{Name: middleware.DestProfile, Path: "/profile", RequiresAuth: true},
			wantStatus:   http.StatusFound,
			wantLocation: "/login",
			wantNotice:   true,
			wantReason:   middleware.ReasonLoginRequired,
		},
		{
			name:          "protected destination while authenticated is allowed",
			dest:          middleware.Destination{Name: middleware.DestGenerateHistory, Path: "/generate-history", RequiresAuth: true},
			authenticated: true,
			wantStatus:    http.StatusOK,
		},
		{
			name:       "public destination while anonymous is allowed",
			dest:       middleware.Destination{Name: middleware.DestModels, Path: "/models"},
			wantStatus: http.StatusOK,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			session := &fakeSession{authenticated: tt.authenticated}
			rec := &redirectRecorder{}

			next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(http.StatusOK)
			})
			h := middleware.Guard(tt.dest, session, rec, logger.Discard())(next)

			w := httptest.NewRecorder()
			h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, tt.dest.Path, nil))

			assert.Equal(t, tt.wantStatus, w.Code)
			assert.Equal(t, tt.wantLocation, w.Header().Get("Location"))
			assert.Equal(t, tt.wantNotice, session.notified == 1)
			if tt.wantReason == "" {
				assert.Empty(t, rec.reasons)
			} else {
				assert.Equal(t, []string{tt.wantReason}, rec.reasons)
			}
		})
	}
}

func TestCORS(t *testing.T) {
	h := middleware.CORS("http://localhost:5173")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("allowed origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "http://localhost:5173")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, "http://localhost:5173", w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("other origin", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/session", nil)
		req.Header.Set("Origin", "https://evil.example")
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Empty(t, w.Header().Get("Access-Control-Allow-Origin"))
	})

	t.Run("preflight", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/profile", nil)
		w := httptest.NewRecorder()
		h.ServeHTTP(w, req)
		assert.Equal(t, http.StatusNoContent, w.Code)
	})
}
