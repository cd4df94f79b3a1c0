package interfaces

import (
	"context"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Pipeline defines workflow dispatch for push events.
type Pipeline interface {
	// HandlePush matches loaded workflows against a push event, queues a
	// run per match and executes them in the background. The returned runs
	// are in queued state.
	HandlePush(ctx context.Context, ev *model.PushEvent) ([]*model.Run, error)

	// Dispatch executes one workflow for the event synchronously and
	// returns the finished run. tag overrides the configured default tag
	// when non-empty.
	Dispatch(ctx context.Context, w *model.Workflow, ev *model.PushEvent, tag string) (*model.Run, error)
}
