package config

import (
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/domain/types"
)

// Server holds server configuration
type Server struct {
	Addr string

	apiToken string
}

// Flags returns CLI flags for server configuration
func (c *Server) Flags() []cli.Flag {
	return []cli.Flag{
		&cli.StringFlag{
			Name:        "addr",
			Usage:       "Server address",
			Value:       "localhost:8080",
			Destination: &c.Addr,
			Sources:     cli.EnvVars("DROVER_ADDR"),
		},
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Signing key for run API tokens (empty leaves the API open)",
			Destination: &c.apiToken,
			Sources:     cli.EnvVars("DROVER_API_TOKEN"),
		},
	}
}

// APIToken returns the run API signing key.
func (c *Server) APIToken() types.Secret {
	return types.Secret(c.apiToken)
}
