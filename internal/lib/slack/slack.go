// Package slack отправляет сообщения во входящий вебхук Slack.
package slack

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sendgrid/rest"
)

// ErrDisabled вебхук не настроен.
var ErrDisabled = errors.New("slack webhook is not configured")

// Client клиент входящего вебхука.
type Client struct {
	webhookURL string
	http       *rest.Client
}

// New создаёт Client. Пустой webhookURL даёт клиент, который возвращает ErrDisabled.
func New(webhookURL string, timeout time.Duration) *Client {
	return &Client{
		webhookURL: webhookURL,
		http:       &rest.Client{HTTPClient: &http.Client{Timeout: timeout}},
	}
}

// Enabled сообщает, настроен ли вебхук.
func (c *Client) Enabled() bool {
	return c.webhookURL != ""
}

type payload struct {
	Text string `json:"text"`
}

// Post отправляет текстовое сообщение.
func (c *Client) Post(ctx context.Context, text string) error {
	const op = "slack.Post"
	if !c.Enabled() {
		return fmt.Errorf("%s: %w", op, ErrDisabled)
	}

	body, err := json.Marshal(payload{Text: text})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	resp, err := c.http.SendWithContext(ctx, rest.Request{
		Method:  rest.Post,
		BaseURL: c.webhookURL,
		Headers: map[string]string{"Content-Type": "application/json"},
		Body:    body,
	})
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if resp.StatusCode >= http.StatusBadRequest {
		return fmt.Errorf("%s: webhook status %d: %s", op, resp.StatusCode, resp.Body)
	}
	return nil
}
