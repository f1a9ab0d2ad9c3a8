// Package slack posts assistant answers to an incoming webhook.
package slack

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

type doer interface {
	Do(req *http.Request) (*http.Response, error)
}

type Client struct {
	webhookURL string
	httpClient doer
}

// NewClient returns a webhook poster. A nil httpClient uses http.DefaultClient.
func NewClient(webhookURL string, httpClient doer) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	return &Client{
		webhookURL: webhookURL,
		httpClient: httpClient,
	}
}

// Enabled reports whether a webhook URL is configured.
func (c *Client) Enabled() bool {
	return c != nil && strings.TrimSpace(c.webhookURL) != ""
}

func (c *Client) PostMessage(ctx context.Context, channel string, message string) error {
	body := map[string]any{"text": message}
	if channel != "" {
		body["channel"] = channel
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.webhookURL, bytes.NewReader(payload))
	if err != nil {
		return err
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("failed to post message: %s", resp.Status)
	}

	return nil
}

// PostExchange posts one user message and the assistant's answer.
func (c *Client) PostExchange(ctx context.Context, channel, message, answer string) error {
	return c.PostMessage(ctx, channel, FormatExchange(message, answer))
}

// FormatExchange renders a question and answer in Slack mrkdwn.
func FormatExchange(message, answer string) string {
	return fmt.Sprintf("*User:* %s\n*Assistant:* %s", message, answer)
}
