package api_test

import (
	"io"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/api"
	"github.com/dom/blueming-client/internal/api/handlers"
	"github.com/dom/blueming-client/internal/api/middleware"
	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/testutil"
	"github.com/dom/blueming-client/internal/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDestinations_AuthRequired(t *testing.T) {
	protected := map[string]bool{
		middleware.DestTraining:        true,
		middleware.DestProfile:         true,
		middleware.DestMyModels:        true,
		middleware.DestFavorites:       true,
		middleware.DestGenerateHistory: true,
	}

	for _, dest := range api.Destinations {
		assert.Equal(t, protected[dest.Name], dest.RequiresAuth, dest.Name)
	}

	_, ok := api.DestinationByName("nowhere")
	assert.False(t, ok)
}

func TestRouter_Guard(t *testing.T) {
	tests := []struct {
		name          string
		path          string
		authenticated bool
		wantStatus    int
		wantLocation  string
	}{
		{name: "home is public", path: "/", wantStatus: http.StatusOK},
		{name: "models is public", path: "/models", wantStatus: http.StatusOK},
		{name: "search is public", path: "/search", wantStatus: http.StatusOK},
		{name: "login when anonymous", path: "/login", wantStatus: http.StatusOK},
		{name: "register when anonymous", path: "/register", wantStatus: http.StatusOK},
		{name: "login when signed in", path: "/login", authenticated: true, wantStatus: http.StatusFound, wantLocation: "/"},
		{name: "register when signed in", path: "/register", authenticated: true, wantStatus: http.StatusFound, wantLocation: "/"},
		{name: "training when anonymous", path: "/training", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "my models when anonymous", path: "/my-models", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "favorites when anonymous", path: "/favorites", wantStatus: http.StatusFound, wantLocation: "/login"},
		{name: "my models when signed in", path: "/my-models", authenticated: true, wantStatus: http.StatusOK},
		{name: "favorites when signed in", path: "/favorites", authenticated: true, wantStatus: http.StatusOK},
		{name: "unknown path", path: "/no/such/page", wantStatus: http.StatusFound, wantLocation: "/"},
		{name: "unknown path when signed in", path: "/admin", authenticated: true, wantStatus: http.StatusFound, wantLocation: "/"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testutil.NewTestServer(t)
			if tt.authenticated {
				ts.SignIn(t)
			}

			resp := ts.Do(t, http.MethodGet, tt.path, "")

			assert.Equal(t, tt.wantStatus, resp.StatusCode)
			if tt.wantLocation != "" {
				assert.Equal(t, tt.wantLocation, resp.Header.Get("Location"))
			}
		})
	}
}

func TestRouter_PageState(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.SignIn(t)
	ts.Services.Tokens.SetUser(testutil.ProfileFixture())

	var page handlers.PageResponse
	testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/models", ""), &page)

	assert.Equal(t, middleware.DestModels, page.Destination)
	assert.True(t, page.Authenticated)
	require.NotNil(t, page.User)
	assert.Equal(t, "bloom", page.User.Nickname)
}

func TestRouter_ModelLists(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.SignIn(t)
	ts.Gateway.SetModels(
		[]domain.LoraModel{{ID: 1, Title: "mine"}},
		[]domain.LoraModel{{ID: 2, Title: "liked"}, {ID: 3, Title: "also liked"}},
	)

	var mine handlers.ModelsResponse
	testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/my-models", ""), &mine)
	require.Len(t, mine.Items, 1)
	assert.Equal(t, "mine", mine.Items[0].Title)
	assert.False(t, mine.HasMore)

	var liked handlers.ModelsResponse
	testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/favorites?page=0&size=5", ""), &liked)
	assert.Len(t, liked.Items, 2)
	assert.Equal(t, 0, liked.PageIndex)
}

func TestRouter_GuardNotifiesOverWebSocket(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ws := ts.ConnectWS(t)

	testutil.AssertRedirect(t, ts.Do(t, http.MethodGet, "/favorites", ""), http.StatusFound, "/login")

	msg := ws.ExpectMessage(websocket.MessageTypeNotice, time.Second)
	assert.Contains(t, string(msg.Payload), "Login to continue")
	ws.ExpectMessage(websocket.MessageTypeRedirect, time.Second)
}

func TestRouter_Health(t *testing.T) {
	ts := testutil.NewTestServer(t)

	resp := ts.Do(t, http.MethodGet, "/health", "")

	testutil.AssertStatusCode(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Equal(t, "OK", string(body))
}

func TestRouter_Metrics(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.Do(t, http.MethodGet, "/training", "")
	ts.SignIn(t)
	ts.Do(t, http.MethodGet, "/login", "")

	resp := ts.Do(t, http.MethodGet, "/metrics", "")
	testutil.AssertStatusCode(t, resp, http.StatusOK)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)

	text := string(body)
	assert.Contains(t, text, `blueming_guard_redirects_total{reason="login_required"} 1`)
	assert.Contains(t, text, `blueming_guard_redirects_total{reason="already_authenticated"} 1`)
}

func TestRouter_CORSPreflight(t *testing.T) {
	ts := testutil.NewTestServer(t)

	req, err := http.NewRequest(http.MethodOptions, ts.URL("/profile"), nil)
	require.NoError(t, err)
	req.Header.Set("Origin", ts.Config.FrontendURL)
	resp, err := ts.Client.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusNoContent, resp.StatusCode)
	assert.Equal(t, ts.Config.FrontendURL, resp.Header.Get("Access-Control-Allow-Origin"))
	assert.True(t, strings.Contains(resp.Header.Get("Access-Control-Allow-Methods"), "PATCH"))
}
