// File: notification/discord/dclient.go

// Package discord posts trade and lifecycle notifications to a Discord
// webhook.
package discord

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/crazy8156/okx/utilities"
)

// Client sends messages to a single configured webhook.
type Client struct {
	webhookURL string
	httpClient *http.Client
	logger     *utilities.Logger
}

// NewClient returns nil when no webhook is configured, which callers treat as
// notifications disabled.
func NewClient(cfg *utilities.DiscordConfig, logger *utilities.Logger) *Client {
	if cfg == nil || cfg.WebhookURL == "" {
		return nil
	}
	return &Client{
		webhookURL: cfg.WebhookURL,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		logger:     logger,
	}
}

type webhookPayload struct {
	Content string `json:"content"`
}

// Send posts a plain-text message to the webhook.
func (c *Client) Send(message string) error {
	payload, err := json.Marshal(webhookPayload{Content: message})
	if err != nil {
		return fmt.Errorf("discord: marshal payload: %w", err)
	}

	resp, err := c.httpClient.Post(c.webhookURL, "application/json", bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("discord: post webhook: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("discord: webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Sendf formats and sends a message.
func (c *Client) Sendf(format string, args ...interface{}) error {
	return c.Send(fmt.Sprintf(format, args...))
}
