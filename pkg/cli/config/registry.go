package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Registry holds container registry configuration for image builds and
// run log publishing.
type Registry struct {
	Host           string
	Username       string
	LogsRepository string
	PlainHTTP      bool

	token string
}

// Flags returns CLI flags for registry configuration
func (c *Registry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "registry",
			Usage:       "Container registry host to authenticate against (e.g. ghcr.io)",
			Destination: &c.Host,
			Sources:     cli.EnvVars("DROVER_REGISTRY"),
		},
		&cli.StringFlag{
			Name:        "registry-username",
			Usage:       "Registry username",
			Destination: &c.Username,
			Sources:     cli.EnvVars("DROVER_REGISTRY_USERNAME"),
		},
		&cli.StringFlag{
			Name:        "registry-token",
			Usage:       "Registry token or password",
			Destination: &c.token,
			Sources:     cli.EnvVars("DROVER_REGISTRY_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "logs-repository",
			Usage:       "OCI repository for run log archives (empty disables publishing)",
			Destination: &c.LogsRepository,
			Sources:     cli.EnvVars("DROVER_LOGS_REPOSITORY"),
		},
		&cli.BoolFlag{
			Name:        "registry-plain-http",
			Usage:       "Use plain HTTP for the log archive registry",
			Destination: &c.PlainHTTP,
			Sources:     cli.EnvVars("DROVER_REGISTRY_PLAIN_HTTP"),
		},
	}
}

// Token returns the registry credential.
func (c *Registry) Token() types.Secret {
	return types.Secret(c.token)
}

// HasCredentials reports whether registry login is configured.
func (c *Registry) HasCredentials() bool {
	return c.Host != "" && c.Username != "" && c.token != ""
}
