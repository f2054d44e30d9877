package testutil

import (
	"encoding/json"
	"io"
	"net/http"
	"testing"
	"time"

	"github.com/dom/blueming-client/internal/events"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// AssertStatusCode verifies the HTTP response status code
func AssertStatusCode(t *testing.T, resp *http.Response, expected int) {
	t.Helper()
	assert.Equal(t, expected, resp.StatusCode, "unexpected status code")
}

// AssertJSONResponse decodes JSON response into v and verifies success
func AssertJSONResponse(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	err = json.Unmarshal(body, v)
	require.NoError(t, err, "failed to unmarshal response: %s", string(body))
}

// AssertErrorResponse verifies error response with expected status and message
func AssertErrorResponse(t *testing.T, resp *http.Response, expectedStatus int, expectedMessage string) {
	t.Helper()

	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err, "failed to read response body")

	// Error responses are plain text
	assert.Contains(t, string(body), expectedMessage, "error message mismatch")
}

// AssertRedirect verifies a redirect response and its target
func AssertRedirect(t *testing.T, resp *http.Response, expectedStatus int, expectedLocation string) {
	t.Helper()
	assert.Equal(t, expectedStatus, resp.StatusCode, "unexpected status code")
	assert.Equal(t, expectedLocation, resp.Header.Get("Location"), "unexpected redirect target")
}

// ExpectEvent waits for the next event on topic, skipping others.
func ExpectEvent(t *testing.T, ch <-chan events.Event, topic events.Topic, timeout time.Duration) events.Event {
	t.Helper()

	deadline := time.After(timeout)
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				t.Fatalf("event channel closed while waiting for %s", topic)
			}
			if evt.Topic == topic {
				return evt
			}
		case <-deadline:
			t.Fatalf("timeout waiting for event %s", topic)
		}
	}
}

// ExpectNoEvent verifies nothing arrives on ch within timeout.
func ExpectNoEvent(t *testing.T, ch <-chan events.Event, timeout time.Duration) {
	t.Helper()

	select {
	case evt, ok := <-ch:
		if ok {
			t.Fatalf("unexpected event received: %s", evt.Topic)
		}
	case <-time.After(timeout):
	}
}

// DrainEvents returns every event already buffered on ch.
func DrainEvents(ch <-chan events.Event) []events.Event {
	var out []events.Event
	for {
		select {
		case evt, ok := <-ch:
			if !ok {
				return out
			}
			out = append(out, evt)
		default:
			return out
		}
	}
}
