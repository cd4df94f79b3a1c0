package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Discord posts run notifications to a Discord webhook. The payload is
// the minimal webhook form: {"content": "<text>"}.
type Discord struct {
	webhookURL types.Secret
	httpClient *http.Client
}

// DiscordOption configures a Discord notifier.
type DiscordOption func(*Discord)

// WithDiscordHTTPClient replaces the HTTP client, mainly for tests.
func WithDiscordHTTPClient(c *http.Client) DiscordOption {
	return func(d *Discord) {
		d.httpClient = c
	}
}

// NewDiscord creates a Discord webhook notifier.
func NewDiscord(webhookURL types.Secret, options ...DiscordOption) *Discord {
	d := &Discord{
		webhookURL: webhookURL,
		httpClient: http.DefaultClient,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// Notify delivers the notification text. Any non-2xx response is an
// error; Discord answers 204 on success.
func (d *Discord) Notify(ctx context.Context, n *model.Notification) error {
	body, err := json.Marshal(map[string]string{"content": n.Text})
	if err != nil {
		return goerr.Wrap(err, "failed to encode discord payload")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.webhookURL.Unmask(), bytes.NewReader(body))
	if err != nil {
		return goerr.Wrap(err, "failed to build discord request")
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := d.httpClient.Do(req)
	if err != nil {
		return goerr.Wrap(err, "failed to post discord notification")
	}
	defer resp.Body.Close()

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return goerr.New("discord webhook rejected notification",
			goerr.V("status", resp.StatusCode),
			goerr.V("body", string(msg)),
		)
	}
	return nil
}
