package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// StatusReporter publishes run state as a commit status on the pushed
// revision. Implementations are no-ops when reporting is not configured.
type StatusReporter interface {
	// ReportPending marks the commit as having a run in progress.
	ReportPending(ctx context.Context, run *model.Run) error

	// ReportResult reports the terminal state of a finished run.
	ReportResult(ctx context.Context, run *model.Run) error
}
