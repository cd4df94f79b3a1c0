package interfaces

import (
	"context"
	"io"
	"time"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/domain/types"
)

// CommandRunner executes external commands, streaming combined output to
// out. A non-zero exit is returned as an error carrying the exit code.
type CommandRunner interface {
	Run(ctx context.Context, cmd *model.Command, out io.Writer) error
}

// ImageBuilder builds and pushes container images.
type ImageBuilder interface {
	Build(ctx context.Context, spec *model.BuildSpec, out io.Writer) (*model.BuildResult, error)
}

// SourceFetcher materializes the pushed revision into dest. Events
// without a clone URL are served from a local checkout instead.
type SourceFetcher interface {
	Fetch(ctx context.Context, ev *model.PushEvent, dest string) error
}

// ArtifactPublisher uploads a run's log bundle to an artifact registry.
type ArtifactPublisher interface {
	PublishRunLogs(ctx context.Context, run *model.Run, logDir string) (string, error)
}

// Notifier delivers a completion notification to one channel.
type Notifier interface {
	Notify(ctx context.Context, n *model.Notification) error
}

// RunStore persists runs and their job results.
type RunStore interface {
	SaveRun(ctx context.Context, run *model.Run) error
	GetRun(ctx context.Context, id string) (*model.Run, error)
	ListRuns(ctx context.Context, limit int) ([]*model.Run, error)
	Close() error
}

// SecretResolver resolves a named secret. Providers return
// types.ErrSecretNotFound when the name is unknown to them.
type SecretResolver interface {
	Resolve(ctx context.Context, name string) (types.Secret, error)
}

// RunMetrics records pipeline activity counters and timings.
type RunMetrics interface {
	RunStarted(workflow string)
	RunCompleted(workflow string, status model.RunStatus)
	ObserveJobDuration(workflow, job string, d time.Duration)
}
