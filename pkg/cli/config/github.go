package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// GitHub holds GitHub webhook and App configuration. The App fields are
// optional; without them drover skips commit status reporting.
type GitHub struct {
	AppID          int64
	InstallationID int64
	PrivateKeyPath string

	webhookSecret string
}

// Flags returns all GitHub flags. The webhook secret is required, so
// only the serve command should use this; run uses AppFlags.
func (c *GitHub) Flags() []cli.Flag {
	return append([]cli.Flag{
		&cli.StringFlag{
			Name:        "github-webhook-secret",
			Usage:       "GitHub webhook secret",
			Required:    true,
			Destination: &c.webhookSecret,
			Sources:     cli.EnvVars("DROVER_GITHUB_WEBHOOK_SECRET"),
		},
	}, c.AppFlags()...)
}

// AppFlags returns the GitHub App credential flags.
func (c *GitHub) AppFlags() []cli.Flag {
	return []cli.Flag{
		&cli.Int64Flag{
			Name:        "github-app-id",
			Usage:       "GitHub App ID for commit status reporting",
			Destination: &c.AppID,
			Sources:     cli.EnvVars("DROVER_GITHUB_APP_ID"),
		},
		&cli.Int64Flag{
			Name:        "github-installation-id",
			Usage:       "GitHub App installation ID",
			Destination: &c.InstallationID,
			Sources:     cli.EnvVars("DROVER_GITHUB_INSTALLATION_ID"),
		},
		&cli.StringFlag{
			Name:        "github-private-key",
			Usage:       "Path to the GitHub App private key (PEM)",
			Destination: &c.PrivateKeyPath,
			Sources:     cli.EnvVars("DROVER_GITHUB_PRIVATE_KEY"),
		},
	}
}

// WebhookSecret returns the webhook HMAC secret.
func (c *GitHub) WebhookSecret() types.Secret {
	return types.Secret(c.webhookSecret)
}

// HasApp reports whether App credentials are complete enough to report
// commit statuses.
func (c *GitHub) HasApp() bool {
	return c.AppID != 0 && c.InstallationID != 0 && c.PrivateKeyPath != ""
}
