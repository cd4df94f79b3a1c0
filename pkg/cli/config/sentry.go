package config

import (
	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Sentry holds error tracking configuration
type Sentry struct {
	DSN         string
	Environment string
}

// Flags returns CLI flags for Sentry configuration
func (c *Sentry) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "sentry-dsn",
			Usage:       "Sentry DSN (empty disables error tracking)",
			Destination: &c.DSN,
			Sources:     cli.EnvVars("DROVER_SENTRY_DSN"),
		},
		&cli.StringFlag{
			Name:        "sentry-env",
			Usage:       "Sentry environment name",
			Destination: &c.Environment,
			Sources:     cli.EnvVars("DROVER_SENTRY_ENV"),
		},
	}
}

// Enabled reports whether error tracking is configured.
func (c *Sentry) Enabled() bool {
	return c.DSN != ""
}

// Init initializes the Sentry client. Callers should flush with
// sentry.Flush before exiting.
func (c *Sentry) Init() error {
	if !c.Enabled() {
		return nil
	}

	if err := sentry.Init(sentry.ClientOptions{
		Dsn:         c.DSN,
		Environment: c.Environment,
		Release:     types.Version,
	}); err != nil {
		return goerr.Wrap(err, "failed to initialize sentry")
	}
	return nil
}
