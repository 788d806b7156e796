// Package hyperscape is a rate-limited client for the public Hyper Scape stats API.
package hyperscape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"hyperwatch/internal/stats"

	json "github.com/goccy/go-json"
)

const (
	// DefaultBaseURL is the public stats API
	DefaultBaseURL = "https://hypers.apitab.com"

	defaultTimeout           = 30 * time.Second
	defaultRequestsPerSecond = 5
	defaultRetryAfter        = 10 * time.Second
	maxRateLimitRetries      = 3
)

var (
	// ErrNotFound is returned when the player does not exist upstream
	ErrNotFound = errors.New("player not found")
	// ErrUpstream is matched by every UpstreamError
	ErrUpstream = errors.New("upstream error")
)

// UpstreamError carries a non-success status reported by the API, either as the
// HTTP status code or as the "status" field of the payload.
type UpstreamError struct {
	Status int
}

func (e *UpstreamError) Error() string {
	return fmt.Sprintf("upstream returned status %d", e.Status)
}

// Is makes errors.Is(err, ErrUpstream) hold for any UpstreamError
func (e *UpstreamError) Is(target error) bool {
	return target == ErrUpstream
}

// Client is a rate-limited stats API client
type Client struct {
	baseURL           string
	httpClient        *http.Client
	requestsPerSecond int
	logger            *slog.Logger

	// sleep waits for d or until ctx is done; replaced in tests
	sleep func(ctx context.Context, d time.Duration) error

	mu     sync.Mutex
	window []time.Time // requests in the last second
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL sets a custom base URL (useful for testing)
func WithBaseURL(u string) Option {
	return func(c *Client) {
		c.baseURL = u
	}
}

// WithHTTPClient replaces the underlying HTTP client
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient = hc
	}
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		c.httpClient.Timeout = timeout
	}
}

// WithRateLimit caps outgoing requests per second. Zero or negative disables it.
func WithRateLimit(perSecond int) Option {
	return func(c *Client) {
		c.requestsPerSecond = perSecond
	}
}

// WithLogger sets the logger used for rate limit diagnostics
func WithLogger(l *slog.Logger) Option {
	return func(c *Client) {
		c.logger = l
	}
}

// NewClient creates a new stats API client with the given options
func NewClient(opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: defaultTimeout,
		},
		requestsPerSecond: defaultRequestsPerSecond,
		logger:            slog.Default(),
		sleep:             sleepContext,
	}

	for _, opt := range opts {
		opt(c)
	}

	c.logger = c.logger.With("component", "hyperscape")
	return c
}

func sleepContext(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// waitForRateLimit blocks until another request fits in the one second window
func (c *Client) waitForRateLimit(ctx context.Context) error {
	if c.requestsPerSecond <= 0 {
		return nil
	}

	for {
		c.mu.Lock()

		now := time.Now()
		oneSecondAgo := now.Add(-time.Second)

		kept := c.window[:0]
		for _, t := range c.window {
			if t.After(oneSecondAgo) {
				kept = append(kept, t)
			}
		}
		c.window = kept

		if len(c.window) >= c.requestsPerSecond {
			wait := c.window[0].Add(time.Second).Sub(now) + 10*time.Millisecond
			c.mu.Unlock()
			c.logger.Debug("hyperscape: rate limit reached, waiting", "requests", len(c.window), "wait", wait)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		c.window = append(c.window, now)
		c.mu.Unlock()
		return nil
	}
}

// getJSON performs a rate-limited GET and decodes a 200 response into result.
// HTTP 429 is retried after Retry-After, up to maxRateLimitRetries times.
func (c *Client) getJSON(ctx context.Context, path string, result any) error {
	for attempt := 0; ; attempt++ {
		if err := c.waitForRateLimit(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Accept", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}

		if resp.StatusCode == http.StatusTooManyRequests && attempt < maxRateLimitRetries {
			wait := retryAfter(resp.Header.Get("Retry-After"))
			drain(resp)
			c.logger.Warn("hyperscape: rate limited by upstream", "path", path, "wait", wait, "attempt", attempt+1)
			if err := c.sleep(ctx, wait); err != nil {
				return err
			}
			continue
		}

		err = decodeResponse(resp, result)
		drain(resp)
		return err
	}
}

func decodeResponse(resp *http.Response, result any) error {
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return ErrNotFound
	case resp.StatusCode != http.StatusOK:
		return &UpstreamError{Status: resp.StatusCode}
	}

	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func drain(resp *http.Response) {
	_, _ = io.Copy(io.Discard, resp.Body)
	resp.Body.Close()
}

func retryAfter(header string) time.Duration {
	if header == "" {
		return defaultRetryAfter
	}
	if secs, err := strconv.Atoi(header); err == nil && secs >= 0 {
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(header); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
		return 0
	}
	return defaultRetryAfter
}

// checkStatus maps the payload-level status field. Zero means absent.
func checkStatus(status int) error {
	switch status {
	case 0, http.StatusOK:
		return nil
	case http.StatusNotFound:
		return ErrNotFound
	default:
		return &UpstreamError{Status: status}
	}
}

// GetStats fetches the current profile and lifetime stats of a player
func (c *Client) GetStats(ctx context.Context, id string) (*stats.Player, error) {
	var payload statsResponse
	if err := c.getJSON(ctx, "/update/"+url.PathEscape(id), &payload); err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", id, err)
	}
	if err := checkStatus(payload.Status); err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", id, err)
	}

	player, err := payload.toPlayer()
	if err != nil {
		return nil, fmt.Errorf("get stats for %s: %w", id, err)
	}
	return player, nil
}

// GetUser looks a player up by platform and username. The platform must
// already be normalized (see NormalizePlatform).
func (c *Client) GetUser(ctx context.Context, platform, username string) (*stats.Profile, error) {
	path := "/search/" + url.PathEscape(platform) + "/" + url.PathEscape(username)

	var payload searchResponse
	if err := c.getJSON(ctx, path, &payload); err != nil {
		return nil, fmt.Errorf("search %s/%s: %w", platform, username, err)
	}
	if err := checkStatus(payload.Status); err != nil {
		return nil, fmt.Errorf("search %s/%s: %w", platform, username, err)
	}

	first, ok := payload.first()
	if !ok {
		return nil, fmt.Errorf("search %s/%s: %w", platform, username, ErrNotFound)
	}
	return &stats.Profile{
		ID:       first.Profile.ID,
		Name:     first.Profile.Name,
		Platform: first.Profile.Platform,
	}, nil
}

// GetUserByID resolves a player's profile from their ID
func (c *Client) GetUserByID(ctx context.Context, id string) (*stats.Profile, error) {
	player, err := c.GetStats(ctx, id)
	if err != nil {
		return nil, err
	}
	return &player.Profile, nil
}
