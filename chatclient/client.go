// Package chatclient delivers outbound notifications to the chat provider.
package chatclient

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/xiaot623/hitl-relay/domain"
)

const maxRetries = 3

// Notification is one outbound message to a chat channel. An empty ChannelID
// targets the provider's default channel (single-user deployments).
type Notification struct {
	ChannelID string          `json:"channel_id,omitempty"`
	Text      string          `json:"text"`
	Choices   []string        `json:"choices,omitempty"`
	Severity  domain.Severity `json:"severity,omitempty"`
}

// Client posts notifications to the chat provider's message endpoint.
type Client struct {
	baseURL    string
	botToken   string
	httpClient *http.Client
}

// New creates a chat client. An empty baseURL disables delivery.
func New(baseURL, botToken string) *Client {
	return &Client{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		botToken: botToken,
		httpClient: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send delivers one notification, retrying transient failures with
// exponential backoff. Callers on the question-post path invoke this
// fire-and-forget; failures are logged there, never surfaced.
func (c *Client) Send(ctx context.Context, n *Notification) error {
	if c.baseURL == "" {
		return nil
	}

	body, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	operation := func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/messages", bytes.NewReader(body))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		if c.botToken != "" {
			req.Header.Set("Authorization", "Bearer "+c.botToken)
		}

		resp, err := c.httpClient.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		switch {
		case resp.StatusCode < 300:
			return nil
		case resp.StatusCode >= 500:
			return fmt.Errorf("chat provider returned status %d", resp.StatusCode)
		default:
			return backoff.Permanent(fmt.Errorf("chat provider returned status %d", resp.StatusCode))
		}
	}

	policy := backoff.WithContext(backoff.WithMaxRetries(backoff.NewExponentialBackOff(), maxRetries), ctx)
	return backoff.Retry(operation, policy)
}
