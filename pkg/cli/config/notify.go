package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Notify holds notification channel configuration. Webhook URLs embed
// tokens, so both are handled as secrets.
type Notify struct {
	discordWebhookURL string
	slackWebhookURL   string
}

// Flags returns CLI flags for notification configuration
func (c *Notify) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "discord-webhook-url",
			Usage:       "Discord webhook URL for run notifications",
			Destination: &c.discordWebhookURL,
			Sources:     cli.EnvVars("DROVER_DISCORD_WEBHOOK_URL"),
		},
		&cli.StringFlag{
			Name:        "slack-webhook-url",
			Usage:       "Slack incoming webhook URL for run notifications",
			Destination: &c.slackWebhookURL,
			Sources:     cli.EnvVars("DROVER_SLACK_WEBHOOK_URL"),
		},
	}
}

// DiscordWebhookURL returns the Discord webhook URL.
func (c *Notify) DiscordWebhookURL() types.Secret {
	return types.Secret(c.discordWebhookURL)
}

// SlackWebhookURL returns the Slack webhook URL.
func (c *Notify) SlackWebhookURL() types.Secret {
	return types.Secret(c.slackWebhookURL)
}
