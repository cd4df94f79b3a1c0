package cli

import (
	"context"
	"errors"
	"log/slog"
	"os"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/cli/config"
	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
	"github.com/m-mizutani/drover/pkg/infra/build"
	"github.com/m-mizutani/drover/pkg/infra/executor"
	"github.com/m-mizutani/drover/pkg/infra/git"
	githubinfra "github.com/m-mizutani/drover/pkg/infra/github"
	"github.com/m-mizutani/drover/pkg/infra/notify"
	"github.com/m-mizutani/drover/pkg/infra/registry"
	"github.com/m-mizutani/drover/pkg/infra/secrets"
	"github.com/m-mizutani/drover/pkg/usecase"
)

// pipelineDeps collects the configuration shared by serve and run when
// assembling a pipeline.
type pipelineDeps struct {
	registry config.Registry
	notify   config.Notify
	github   config.GitHub
	pipeline config.Pipeline

	store    interfaces.RunStore
	metrics  interfaces.RunMetrics
	sentryOn bool
}

// fallbackSecret returns the flag value when set, otherwise resolves the
// named secret through the chain. A missing secret yields an empty
// value, not an error.
func fallbackSecret(ctx context.Context, v types.Secret, resolver interfaces.SecretResolver, name string) types.Secret {
	if !v.IsEmpty() {
		return v
	}

	s, err := resolver.Resolve(ctx, name)
	if err != nil {
		if !errors.Is(err, types.ErrSecretNotFound) {
			ctxlog.From(ctx).Warn("Secret resolution failed",
				slog.String("name", name),
				slog.Any("error", err),
			)
		}
		return ""
	}
	return s
}

// buildPipeline wires infrastructure into a pipeline according to the
// given configuration. Facilities without configuration are left out of
// the pipeline rather than failing.
func buildPipeline(
	ctx context.Context,
	workflows []*model.Workflow,
	resolver interfaces.SecretResolver,
	deps *pipelineDeps,
) (interfaces.Pipeline, error) {
	username := deps.registry.Username
	if username == "" {
		username = fallbackSecret(ctx, "", resolver, secrets.NameRegistryUsername).Unmask()
	}
	token := fallbackSecret(ctx, deps.registry.Token(), resolver, secrets.NameRegistryToken)

	opts := []usecase.Option{
		usecase.WithSourceFetcher(git.New()),
		usecase.WithWorkers(deps.pipeline.Workers),
	}
	if deps.pipeline.DefaultTag != "" {
		opts = append(opts, usecase.WithDefaultTag(deps.pipeline.DefaultTag))
	}
	if deps.pipeline.LogDir != "" {
		opts = append(opts, usecase.WithLogDir(deps.pipeline.LogDir))
	}
	if deps.pipeline.WorkDir != "" {
		opts = append(opts, usecase.WithWorkDir(deps.pipeline.WorkDir))
	}

	runner := executor.New()

	var builderOpts []build.Option
	if deps.registry.Host != "" && username != "" && !token.IsEmpty() {
		builderOpts = append(builderOpts, build.WithAuth(deps.registry.Host, username, token))
	}
	opts = append(opts, usecase.WithImageBuilder(build.New(runner, builderOpts...)))

	var notifiers []interfaces.Notifier
	if u := fallbackSecret(ctx, deps.notify.DiscordWebhookURL(), resolver, secrets.NameDiscordWebhook); !u.IsEmpty() {
		notifiers = append(notifiers, notify.NewDiscord(u))
	}
	if u := fallbackSecret(ctx, deps.notify.SlackWebhookURL(), resolver, secrets.NameSlackWebhook); !u.IsEmpty() {
		notifiers = append(notifiers, notify.NewSlack(u))
	}
	if len(notifiers) > 0 {
		opts = append(opts, usecase.WithNotifiers(notifiers...))
	}

	if deps.registry.LogsRepository != "" {
		var pubOpts []registry.Option
		if username != "" && !token.IsEmpty() {
			pubOpts = append(pubOpts, registry.WithCredentials(username, token))
		}
		if deps.registry.PlainHTTP {
			pubOpts = append(pubOpts, registry.WithPlainHTTP())
		}
		opts = append(opts, usecase.WithArtifactPublisher(registry.New(deps.registry.LogsRepository, pubOpts...)))
	}

	reporter := githubinfra.NewNopReporter()
	if deps.github.HasApp() {
		key, err := os.ReadFile(deps.github.PrivateKeyPath)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to read GitHub App private key",
				goerr.V("path", deps.github.PrivateKeyPath),
			)
		}
		reporter, err = githubinfra.NewReporter(deps.github.AppID, deps.github.InstallationID, key)
		if err != nil {
			return nil, goerr.Wrap(err, "failed to create GitHub status reporter")
		}
	}
	opts = append(opts, usecase.WithStatusReporter(reporter))

	if deps.store != nil {
		opts = append(opts, usecase.WithRunStore(deps.store))
	}
	if deps.metrics != nil {
		opts = append(opts, usecase.WithRunMetrics(deps.metrics))
	}
	if deps.sentryOn {
		opts = append(opts, usecase.WithSentryCapture())
	}

	return usecase.NewPipeline(workflows, runner, opts...), nil
}
