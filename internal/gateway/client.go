// Package gateway is the HTTP client for the Blueming REST API.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/dom/blueming-client/internal/domain"
	"github.com/dom/blueming-client/internal/metrics"
	"github.com/google/uuid"
	"golang.org/x/time/rate"
)

const maxErrorBody = 4 << 10

// TokenSource supplies the bearer token attached to every request.
type TokenSource interface {
	AccessToken() string
}

// StatusError is returned when the gateway answers with a non-2xx status.
type StatusError struct {
	Operation  string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s failed (status %d): %s", e.Operation, e.StatusCode, e.Body)
}

// Unwrap lets a 401 match domain.ErrNotAuthenticated.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusUnauthorized {
		return domain.ErrNotAuthenticated
	}
	return nil
}

type Options struct {
	HTTPClient *http.Client
	Timeout    time.Duration
	Jar        http.CookieJar
	RateLimit  float64 // requests per second, 0 disables
	RateBurst  int
	Metrics    metrics.Recorder
	Logger     *slog.Logger
}

// Client handles HTTP communication with the gateway
type Client struct {
	baseURL    *url.URL
	httpClient *http.Client
	tokens     TokenSource
	limiter    *rate.Limiter
	metrics    metrics.Recorder
	logger     *slog.Logger
}

// NewClient creates a new gateway client rooted at baseURL + "/api".
func NewClient(baseURL string, tokens TokenSource, opts Options) (*Client, error) {
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse gateway base url: %w", err)
	}
	if u.Scheme == "" || u.Host == "" {
		return nil, fmt.Errorf("gateway base url must be absolute: %q", baseURL)
	}

	httpClient := opts.HTTPClient
	if httpClient == nil {
		timeout := opts.Timeout
		if timeout == 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{
			Timeout: timeout,
			Jar:     opts.Jar,
		}
	}

	c := &Client{
		baseURL:    u,
		httpClient: httpClient,
		tokens:     tokens,
		metrics:    opts.Metrics,
		logger:     opts.Logger,
	}
	if c.metrics == nil {
		c.metrics = metrics.Nop{}
	}
	if c.logger == nil {
		c.logger = slog.Default()
	}
	if opts.RateLimit > 0 {
		burst := opts.RateBurst
		if burst <= 0 {
			burst = 1
		}
		c.limiter = rate.NewLimiter(rate.Limit(opts.RateLimit), burst)
	}

	return c, nil
}

// BaseURL is the gateway origin, used to scope session cookies.
func (c *Client) BaseURL() *url.URL {
	u := *c.baseURL
	return &u
}

// GetHistoryList fetches one page of generation history, optionally
// filtered by model.
func (c *Client) GetHistoryList(ctx context.Context, page, size int, modelID *int64) (*domain.Page[domain.GenerationHistory], error) {
	q := pageQuery(page, size)
	if modelID != nil {
		q.Set("modelId", strconv.FormatInt(*modelID, 10))
	}
	var out domain.Page[domain.GenerationHistory]
	if err := c.call(ctx, "history.list", http.MethodGet, "/generate/history", q, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// DeleteHistory removes a generation result server-side.
func (c *Client) DeleteHistory(ctx context.Context, id int64) error {
	return c.call(ctx, "history.delete", http.MethodDelete, "/generate/history/"+strconv.FormatInt(id, 10), nil, nil, nil)
}

// GetAvailableModels lists models usable as a history filter.
func (c *Client) GetAvailableModels(ctx context.Context) ([]domain.AvailableModel, error) {
	var out []domain.AvailableModel
	if err := c.call(ctx, "models.available", http.MethodGet, "/generate/models", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMyTrainingJobs(ctx context.Context) ([]domain.TrainingJob, error) {
	var out []domain.TrainingJob
	if err := c.call(ctx, "training.mine", http.MethodGet, "/training/jobs/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) GetMyProfile(ctx context.Context) (*domain.UserProfile, error) {
	var out domain.UserProfile
	if err := c.call(ctx, "user.profile", http.MethodGet, "/users/me", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) UpdateMyProfile(ctx context.Context, update domain.ProfileUpdate) (*domain.UserProfile, error) {
	var out domain.UserProfile
	if err := c.call(ctx, "user.update", http.MethodPatch, "/users/me", nil, update, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// TestLogin performs the non-production sign-in.
func (c *Client) TestLogin(ctx context.Context) (*domain.TestLoginResult, error) {
	var out domain.TestLoginResult
	if err := c.call(ctx, "auth.test_login", http.MethodPost, "/auth/test-login", nil, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetMyModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	var out domain.Page[domain.LoraModel]
	if err := c.call(ctx, "models.mine", http.MethodGet, "/models/me", pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) GetLikedModels(ctx context.Context, page, size int) (*domain.Page[domain.LoraModel], error) {
	var out domain.Page[domain.LoraModel]
	if err := c.call(ctx, "models.liked", http.MethodGet, "/community/models/liked", pageQuery(page, size), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// HTTP helpers

func pageQuery(page, size int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("size", strconv.Itoa(size))
	return q
}

// call performs one request and decodes a 2xx JSON body into out (when non-nil).
func (c *Client) call(ctx context.Context, op, method, path string, query url.Values, body, out any) error {
	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return fmt.Errorf("%s: rate limit: %w", op, err)
		}
	}

	req, err := c.newRequest(ctx, method, path, query, body)
	if err != nil {
		return fmt.Errorf("%s: build request: %w", op, err)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.metrics.RecordGatewayFailure(op)
		c.logger.Error("[gateway.call] request failed",
			slog.String("operation", op),
			slog.String("request_id", req.Header.Get("X-Request-ID")),
			slog.String("error", err.Error()),
		)
		return fmt.Errorf("%s request failed: %w", op, err)
	}
	defer resp.Body.Close()
	c.metrics.RecordGatewayRequest(op, resp.StatusCode, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.logger.Warn("[gateway.call] non-success status",
			slog.String("operation", op),
			slog.String("request_id", req.Header.Get("X-Request-ID")),
			slog.Int("http_status", resp.StatusCode),
		)
		return &StatusError{
			Operation:  op,
			StatusCode: resp.StatusCode,
			Body:       string(bodyBytes),
		}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("%s: failed to decode response: %w", op, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, query url.Values, body any) (*http.Request, error) {
	u := c.baseURL.JoinPath("api", path)
	if query != nil {
		u.RawQuery = query.Encode()
	}

	var bodyReader io.Reader
	if body != nil {
		jsonBody, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		bodyReader = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, u.String(), bodyReader)
	if err != nil {
		return nil, err
	}

	if c.tokens != nil {
		if token := c.tokens.AccessToken(); token != "" {
			req.Header.Set("Authorization", "Bearer "+token)
		}
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("X-Request-ID", uuid.NewString())

	return req, nil
}
