// Package discord posts session summaries to a Discord channel webhook.
package discord

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"hyperwatch/internal/tracker"

	json "github.com/goccy/go-json"
)

const (
	// Default timeout for webhook requests
	defaultWebhookTimeout = 10 * time.Second

	// Max retries for rate limiting
	maxRetries = 3
)

// ErrNoWebhook is returned by Publish when no webhook URL is configured
var ErrNoWebhook = errors.New("no webhook url configured")

// WebhookPayload represents a Discord webhook message
type WebhookPayload struct {
	Content string  `json:"content,omitempty"`
	Embeds  []Embed `json:"embeds,omitempty"`
}

// Embed represents a Discord embed
type Embed struct {
	Title       string       `json:"title,omitempty"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color,omitempty"`
	Fields      []EmbedField `json:"fields,omitempty"`
	Footer      *EmbedFooter `json:"footer,omitempty"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

// EmbedField represents a field in a Discord embed
type EmbedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline,omitempty"`
}

// EmbedFooter represents the footer of a Discord embed
type EmbedFooter struct {
	Text string `json:"text"`
}

// WebhookClient sends session summaries to a Discord webhook
type WebhookClient struct {
	webhookURL string
	httpClient *http.Client
	logger     *slog.Logger
}

var _ tracker.SummarySink = (*WebhookClient)(nil)

// Option configures a WebhookClient
type Option func(*WebhookClient)

// WithHTTPClient replaces the default HTTP client
func WithHTTPClient(c *http.Client) Option {
	return func(w *WebhookClient) {
		w.httpClient = c
	}
}

// WithLogger sets the logger
func WithLogger(l *slog.Logger) Option {
	return func(w *WebhookClient) {
		w.logger = l
	}
}

// NewWebhookClient creates a new WebhookClient
func NewWebhookClient(webhookURL string, opts ...Option) *WebhookClient {
	c := &WebhookClient{
		webhookURL: webhookURL,
		httpClient: &http.Client{
			Timeout: defaultWebhookTimeout,
		},
		logger: slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	c.logger = c.logger.With("component", "discord")
	return c
}

// Publish sends the embed for one recorded session
func (c *WebhookClient) Publish(ctx context.Context, s tracker.Summary) error {
	if c.webhookURL == "" {
		return ErrNoWebhook
	}
	if err := c.sendPayload(ctx, NewSummaryPayload(s)); err != nil {
		return fmt.Errorf("failed to post summary for %s: %w", s.Player.Name, err)
	}
	c.logger.DebugContext(ctx, "discord: summary posted", "player", s.Player.Name, "range", s.Range.String())
	return nil
}

// Send posts a plain text message
func (c *WebhookClient) Send(ctx context.Context, content string) error {
	if c.webhookURL == "" {
		return ErrNoWebhook
	}
	return c.sendPayload(ctx, WebhookPayload{Content: content})
}

// sendPayload sends a webhook payload with retry on rate limiting
func (c *WebhookClient) sendPayload(ctx context.Context, payload WebhookPayload) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	for attempt := 0; attempt < maxRetries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("failed to create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return fmt.Errorf("request failed: %w", err)
		}
		resp.Body.Close()

		// Success - Discord returns 204 No Content
		if resp.StatusCode == http.StatusNoContent || resp.StatusCode == http.StatusOK {
			return nil
		}

		// Rate limited - wait and retry
		if resp.StatusCode == http.StatusTooManyRequests {
			waitDuration := time.Second
			if retryAfter := resp.Header.Get("Retry-After"); retryAfter != "" {
				if seconds, err := strconv.ParseFloat(retryAfter, 64); err == nil {
					waitDuration = time.Duration(seconds * float64(time.Second))
				}
			}
			c.logger.WarnContext(ctx, "discord: rate limited", "wait", waitDuration, "attempt", attempt+1)

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(waitDuration):
				continue
			}
		}

		return fmt.Errorf("webhook request failed with status %d", resp.StatusCode)
	}

	return fmt.Errorf("webhook request failed after %d retries", maxRetries)
}
