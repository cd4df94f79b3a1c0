package cli

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwt"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/secrets"
)

func cmdToken() *cli.Command {
	var (
		apiToken   string
		subject    string
		expiresIn  time.Duration
		secretsCfg config.Secrets
	)

	flags := []cli.Flag{
		&cli.StringFlag{
			Name:        "api-token",
			Usage:       "Signing key the server was started with",
			Destination: &apiToken,
			Sources:     cli.EnvVars("DROVER_API_TOKEN"),
		},
		&cli.StringFlag{
			Name:        "subject",
			Usage:       "Token subject recorded in the sub claim",
			Value:       "drover-cli",
			Destination: &subject,
		},
		&cli.DurationFlag{
			Name:        "expires-in",
			Usage:       "Token lifetime",
			Value:       24 * time.Hour,
			Destination: &expiresIn,
		},
	}
	flags = append(flags, secretsCfg.Flags()...)

	return &cli.Command{
		Name:  "token",
		Usage: "Issue a bearer token for the run API",
		Flags: flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			key := fallbackSecret(ctx, types.Secret(apiToken), secretsCfg.Chain(), secrets.NameAPITokenKey)
			if key.IsEmpty() {
				return goerr.New("api token signing key is not configured")
			}

			now := time.Now()
			tok, err := jwt.NewBuilder().
				Issuer("drover").
				Subject(subject).
				IssuedAt(now).
				Expiration(now.Add(expiresIn)).
				Build()
			if err != nil {
				return goerr.Wrap(err, "failed to build token")
			}

			signed, err := jwt.Sign(tok, jwt.WithKey(jwa.HS256, []byte(key.Unmask())))
			if err != nil {
				return goerr.Wrap(err, "failed to sign token")
			}

			fmt.Fprintln(os.Stdout, string(signed))
			return nil
		},
	}
}
