package build

import (
	"context"
	"io"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

const defaultBuilderName = "drover-builder"

// Builder produces multi-platform container images with docker buildx.
// The buildx builder instance is bootstrapped once per process; registry
// login happens once before the first pushing build.
type Builder struct {
	runner interfaces.CommandRunner

	registry string
	username string
	token    types.Secret

	builderName string

	mu        sync.Mutex
	prepared  bool
	authDone  bool
}

// Option configures a Builder.
type Option func(*Builder)

// WithAuth sets registry credentials used for docker login before pushing
// builds. The token is passed over stdin, never on argv.
func WithAuth(registry, username string, token types.Secret) Option {
	return func(b *Builder) {
		b.registry = registry
		b.username = username
		b.token = token
	}
}

// WithBuilderName overrides the buildx builder instance name.
func WithBuilderName(name string) Option {
	return func(b *Builder) {
		b.builderName = name
	}
}

// New creates a Builder that invokes docker through runner.
func New(runner interfaces.CommandRunner, options ...Option) *Builder {
	b := &Builder{
		runner:      runner,
		builderName: defaultBuilderName,
	}
	for _, opt := range options {
		opt(b)
	}
	return b
}

// Build runs a buildx build for spec, streaming docker output to out. The
// image reference is spec.Repository:spec.Tag, unmodified.
func (b *Builder) Build(ctx context.Context, spec *model.BuildSpec, out io.Writer) (*model.BuildResult, error) {
	if err := spec.Validate(); err != nil {
		return nil, err
	}

	if err := b.ensureBuilder(ctx, out); err != nil {
		return nil, err
	}
	if spec.Push {
		if err := b.login(ctx, out); err != nil {
			return nil, err
		}
	}

	args := []string{"buildx", "build", "--builder", b.builderName}
	if len(spec.Platforms) > 0 {
		args = append(args, "--platform", strings.Join(spec.Platforms, ","))
	}
	for _, k := range sortedKeys(spec.BuildArgs) {
		args = append(args, "--build-arg", k+"="+spec.BuildArgs[k])
	}
	if spec.Dockerfile != "" {
		args = append(args, "-f", spec.Dockerfile)
	}
	args = append(args, "-t", spec.Ref())
	if spec.Push {
		args = append(args, "--push")
	}
	contextDir := spec.ContextDir
	if contextDir == "" {
		contextDir = "."
	}
	args = append(args, contextDir)

	ctxlog.From(ctx).Info("building image",
		"ref", spec.Ref(),
		"platforms", spec.Platforms,
		"push", spec.Push,
	)

	started := time.Now()
	if err := b.runner.Run(ctx, &model.Command{Name: "docker", Args: args}, out); err != nil {
		return nil, goerr.Wrap(err, "image build failed", goerr.V("ref", spec.Ref()))
	}

	return &model.BuildResult{
		Ref:      spec.Ref(),
		Duration: time.Since(started),
	}, nil
}

// ensureBuilder checks the buildx builder instance exists, creating it
// with the docker-container driver on first use. Failed attempts are
// retried on the next build rather than cached.
func (b *Builder) ensureBuilder(ctx context.Context, out io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.prepared {
		return nil
	}

	inspect := &model.Command{Name: "docker", Args: []string{"buildx", "inspect", b.builderName, "--bootstrap"}}
	if err := b.runner.Run(ctx, inspect, out); err != nil {
		create := &model.Command{Name: "docker", Args: []string{
			"buildx", "create", "--name", b.builderName, "--driver", "docker-container", "--bootstrap",
		}}
		if err := b.runner.Run(ctx, create, out); err != nil {
			return goerr.Wrap(err, "failed to bootstrap buildx builder",
				goerr.V("builder", b.builderName),
			)
		}
	}

	b.prepared = true
	return nil
}

// login authenticates against the configured registry. Without
// credentials it is a no-op, leaving anonymous pushes to fail on their
// own terms.
func (b *Builder) login(ctx context.Context, out io.Writer) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.authDone || b.registry == "" {
		return nil
	}

	cmd := &model.Command{
		Name:  "docker",
		Args:  []string{"login", b.registry, "-u", b.username, "--password-stdin"},
		Stdin: b.token.Unmask(),
	}
	if err := b.runner.Run(ctx, cmd, out); err != nil {
		return goerr.Wrap(err, "registry login failed", goerr.V("registry", b.registry))
	}

	b.authDone = true
	return nil
}

func sortedKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
