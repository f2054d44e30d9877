package handlers_test

import (
	"net/http"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/api/handlers"
	"github.com/dom/blueming-client/internal/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthHandler_TestLogin(t *testing.T) {
	t.Run("signs in and lands home", func(t *testing.T) {
		ts := testutil.NewTestServer(t)
		ts.Gateway.SetLoginResult(testutil.LoginResultFixture())

		resp := ts.Do(t, http.MethodGet, "/test-login", "")

		testutil.AssertRedirect(t, resp, http.StatusFound, "/")
		assert.Equal(t, "test-access", ts.Services.Tokens.AccessToken())

		var session handlers.SessionResponse
		testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/session", ""), &session)
		assert.True(t, session.Authenticated)
		require.NotNil(t, session.User)
		assert.Equal(t, "tester", session.User.Nickname)
	})

	t.Run("gateway refusal goes to login", func(t *testing.T) {
		ts := testutil.NewTestServer(t)
		ts.Gateway.Fail(testutil.OpTestLogin, http.StatusNotFound)

		resp := ts.Do(t, http.MethodGet, "/test-login", "")

		testutil.AssertRedirect(t, resp, http.StatusFound, "/login")
		assert.False(t, ts.Services.Tokens.IsAuthenticated())
	})
}

func TestAuthHandler_Callback(t *testing.T) {
	tests := []struct {
		name         string
		query        string
		profile      bool
		wantLocation string
		wantAuth     bool
	}{
		{
			name:         "tokens and valid profile",
			query:        "?accessToken=cb-access&refreshToken=cb-refresh",
			profile:      true,
			wantLocation: "/",
			wantAuth:     true,
		},
		{
			name:         "missing refresh token",
			query:        "?accessToken=cb-access",
			profile:      true,
			wantLocation: "/login",
		},
		{
			name:         "tokens rejected by gateway",
			query:        "?accessToken=bad&refreshToken=bad",
			wantLocation: "/login",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ts := testutil.NewTestServer(t)
			if tt.profile {
				ts.Gateway.SetProfile(testutil.ProfileFixture())
			}

			resp := ts.Do(t, http.MethodGet, "/auth/callback"+tt.query, "")

			testutil.AssertRedirect(t, resp, http.StatusFound, tt.wantLocation)
			assert.Equal(t, tt.wantAuth, ts.Services.Tokens.IsAuthenticated())
		})
	}
}

func TestAuthHandler_Logout(t *testing.T) {
	ts := testutil.NewTestServer(t)
	ts.SignIn(t)
	ts.Services.Tokens.SetUser(testutil.ProfileFixture())

	resp := ts.Do(t, http.MethodPost, "/logout", "")

	testutil.AssertRedirect(t, resp, http.StatusSeeOther, "/login")
	assert.False(t, ts.Services.Tokens.IsAuthenticated())
	assert.Equal(t, 0, ts.Storage.Len())

	var session handlers.SessionResponse
	testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/session", ""), &session)
	assert.False(t, session.Authenticated)
	assert.Nil(t, session.User)
}

func TestAuthHandler_Session(t *testing.T) {
	ts := testutil.NewTestServer(t)
	exp := time.Now().Add(30 * time.Minute).Truncate(time.Second)
	token := testutil.SignedToken(t, "user-7", exp)
	ts.Gateway.SetProfile(testutil.ProfileFixture())
	testutil.AssertRedirect(t,
		ts.Do(t, http.MethodGet, "/auth/callback?accessToken="+token+"&refreshToken=r", ""),
		http.StatusFound, "/")

	var session handlers.SessionResponse
	testutil.AssertJSONResponse(t, ts.Do(t, http.MethodGet, "/session", ""), &session)

	assert.True(t, session.Authenticated)
	assert.Equal(t, "user-7", session.Subject)
	require.NotNil(t, session.ExpiresAt)
	assert.True(t, exp.Equal(*session.ExpiresAt))
	assert.False(t, session.Expired)
	require.NotNil(t, session.User)
	assert.Equal(t, "bloom", session.User.Nickname)
}
