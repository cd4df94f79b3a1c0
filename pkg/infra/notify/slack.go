package notify

import (
	"context"

	"github.com/m-mizutani/goerr/v2"
	"github.com/slack-go/slack"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Slack posts run notifications to a Slack incoming webhook, with the
// status rendered as attachment color.
type Slack struct {
	webhookURL types.Secret
}

// NewSlack creates a Slack webhook notifier.
func NewSlack(webhookURL types.Secret) *Slack {
	return &Slack{webhookURL: webhookURL}
}

// Notify posts the notification as a colored attachment.
func (s *Slack) Notify(ctx context.Context, n *model.Notification) error {
	msg := &slack.WebhookMessage{
		Attachments: []slack.Attachment{
			{
				Color: statusColor(n.Status),
				Text:  n.Text,
			},
		},
	}

	if err := slack.PostWebhookContext(ctx, s.webhookURL.Unmask(), msg); err != nil {
		return goerr.Wrap(err, "failed to post slack notification")
	}
	return nil
}

func statusColor(status model.RunStatus) string {
	switch status {
	case model.StatusSuccess:
		return "good"
	case model.StatusFailure:
		return "danger"
	default:
		return "#808080"
	}
}
