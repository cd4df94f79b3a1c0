package config

import "github.com/urfave/cli/v3"

// Store holds run store configuration
type Store struct {
	Path string
}

// Flags returns CLI flags for run store configuration
func (c *Store) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "db",
			Usage:       "Path to the run database (empty disables persistence)",
			Value:       "drover.db",
			Destination: &c.Path,
			Sources:     cli.EnvVars("DROVER_DB"),
		},
	}
}

// Enabled reports whether run persistence is configured.
func (c *Store) Enabled() bool {
	return c.Path != ""
}
