package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/infra/secrets"
)

// Secrets holds secret resolution configuration
type Secrets struct {
	File string
}

// Flags returns CLI flags for secret resolution configuration
func (c *Secrets) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "secrets-file",
			Usage:       "Path to a TOML secrets file consulted after the environment",
			Destination: &c.File,
			Sources:     cli.EnvVars("DROVER_SECRETS_FILE"),
		},
	}
}

// Chain builds the secret resolver. The environment always takes
// precedence over the file.
func (c *Secrets) Chain() *secrets.Chain {
	providers := []secrets.Provider{secrets.NewEnvProvider()}
	if c.File != "" {
		providers = append(providers, secrets.NewFileProvider(c.File))
	}
	return secrets.NewChain(providers...)
}
