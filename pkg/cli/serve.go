package cli

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"
	"github.com/urfave/cli/v3"
	"golang.org/x/sync/errgroup"

	"github.com/m-mizutani/drover/pkg/cli/config"
	githubctrl "github.com/m-mizutani/drover/pkg/controller/github"
	controller "github.com/m-mizutani/drover/pkg/controller/http"
	"github.com/m-mizutani/drover/pkg/infra/metrics"
	"github.com/m-mizutani/drover/pkg/infra/store"
	"github.com/m-mizutani/drover/pkg/usecase"
)

func cmdServe() *cli.Command {
	var (
		serverCfg   config.Server
		githubCfg   config.GitHub
		registryCfg config.Registry
		notifyCfg   config.Notify
		storeCfg    config.Store
		pipelineCfg config.Pipeline
		secretsCfg  config.Secrets
	)

	flags := append(serverCfg.Flags(), githubCfg.Flags()...)
	flags = append(flags, registryCfg.Flags()...)
	flags = append(flags, notifyCfg.Flags()...)
	flags = append(flags, storeCfg.Flags()...)
	flags = append(flags, pipelineCfg.Flags()...)
	flags = append(flags, secretsCfg.Flags()...)

	return &cli.Command{
		Name:    "serve",
		Aliases: []string{"s"},
		Usage:   "Start the webhook server",
		Flags:   flags,
		Action: func(ctx context.Context, c *cli.Command) error {
			logger := ctxlog.From(ctx)

			logger.Info("Starting drover server",
				slog.String("addr", serverCfg.Addr),
				slog.String("workflows", pipelineCfg.Workflows),
			)

			workflows, err := usecase.LoadWorkflows(pipelineCfg.Workflows)
			if err != nil {
				return err
			}

			deps := &pipelineDeps{
				registry: registryCfg,
				notify:   notifyCfg,
				github:   githubCfg,
				pipeline: pipelineCfg,
				sentryOn: sentry.CurrentHub().Client() != nil,
			}

			serverOpts := []controller.Option{
				controller.WithAddr(serverCfg.Addr),
				controller.WithWebhookSecret(githubCfg.WebhookSecret()),
			}
			if token := serverCfg.APIToken(); !token.IsEmpty() {
				serverOpts = append(serverOpts, controller.WithAPIToken(token))
			}

			if storeCfg.Enabled() {
				st, err := store.Open(ctx, storeCfg.Path)
				if err != nil {
					return goerr.Wrap(err, "failed to open run store")
				}
				defer func() {
					if err := st.Close(); err != nil {
						logger.Warn("Failed to close run store", slog.Any("error", err))
					}
				}()
				deps.store = st
				serverOpts = append(serverOpts, controller.WithRunStore(st))
			}

			collector := metrics.New()
			deps.metrics = collector
			serverOpts = append(serverOpts, controller.WithMetricsHandler(collector.Handler()))

			pipeline, err := buildPipeline(ctx, workflows, secretsCfg.Chain(), deps)
			if err != nil {
				return err
			}

			processor := githubctrl.NewEventProcessor(pipeline)

			server, err := controller.NewServer(ctx, processor, serverOpts...)
			if err != nil {
				return goerr.Wrap(err, "failed to create HTTP server")
			}

			g, gctx := errgroup.WithContext(ctx)

			g.Go(func() error {
				logger.Info("HTTP server starting",
					slog.String("addr", serverCfg.Addr),
					slog.Int("workflow_count", len(workflows)),
				)
				if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					return goerr.Wrap(err, "HTTP server error")
				}
				return nil
			})

			g.Go(func() error {
				sigChan := make(chan os.Signal, 1)
				signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
				defer signal.Stop(sigChan)

				select {
				case <-gctx.Done():
					logger.Info("Context cancelled, shutting down...")
				case sig := <-sigChan:
					logger.Info("Signal received, shutting down...", slog.Any("signal", sig))
				}

				// In-flight webhook deliveries get a grace period. Runs
				// already dispatched keep their detached contexts and are
				// not waited on.
				shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
				defer cancel()

				if err := server.Shutdown(shutdownCtx); err != nil {
					return goerr.Wrap(err, "failed to shutdown server gracefully")
				}
				return nil
			})

			if err := g.Wait(); err != nil {
				return err
			}

			logger.Info("Server shutdown complete")
			return nil
		},
	}
}
