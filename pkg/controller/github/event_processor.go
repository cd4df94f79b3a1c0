package github

import (
	"context"
	"time"

	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// zeroSHA is the "after" value of a branch deletion push.
const zeroSHA = "0000000000000000000000000000000000000000"

// EventProcessor routes parsed GitHub webhook payloads into the pipeline.
type EventProcessor struct {
	pipeline interfaces.Pipeline
}

// NewEventProcessor creates a new GitHub event processor.
func NewEventProcessor(pipeline interfaces.Pipeline) *EventProcessor {
	return &EventProcessor{
		pipeline: pipeline,
	}
}

// ProcessEvent handles one webhook delivery. Only branch push events
// start runs; everything else is acknowledged and ignored. The returned
// runs are queued, so callers can surface the assigned IDs.
func (p *EventProcessor) ProcessEvent(ctx context.Context, eventType string, payload any) ([]*model.Run, error) {
	logger := ctxlog.From(ctx)

	switch eventType {
	case "push":
		return p.processPushEvent(ctx, payload)
	default:
		logger.Info("Ignoring unsupported event type", "event_type", eventType)
		return nil, nil
	}
}

func (p *EventProcessor) processPushEvent(ctx context.Context, payload any) ([]*model.Run, error) {
	logger := ctxlog.From(ctx)

	pushEvent, ok := payload.(*github.PushEvent)
	if !ok {
		logger.Warn("Invalid push event payload")
		return nil, nil
	}

	branch := model.BranchFromRef(pushEvent.GetRef())
	if branch == "" {
		logger.Info("Ignoring non-branch push", "ref", pushEvent.GetRef())
		return nil, nil
	}
	if pushEvent.GetDeleted() || pushEvent.GetAfter() == zeroSHA {
		logger.Info("Ignoring branch deletion push", "ref", pushEvent.GetRef())
		return nil, nil
	}

	ev, err := p.extractPushEvent(pushEvent, branch)
	if err != nil {
		logger.Error("Failed to extract push info", "error", err)
		return nil, err
	}

	logger.Info("Processing push event",
		"repository", ev.Repository,
		"branch", ev.Branch,
		"commit", ev.Commit,
		"pusher", ev.Pusher,
	)

	runs, err := p.pipeline.HandlePush(ctx, ev)
	if err != nil {
		logger.Error("Failed to handle push", "error", err,
			"repository", ev.Repository,
			"branch", ev.Branch,
		)
		return nil, err
	}
	return runs, nil
}

func (p *EventProcessor) extractPushEvent(e *github.PushEvent, branch string) (*model.PushEvent, error) {
	repo := e.GetRepo()
	if repo == nil {
		return nil, goerr.New("push event has no repository")
	}

	ev := &model.PushEvent{
		Repository: repo.GetFullName(),
		Branch:     branch,
		Commit:     e.GetAfter(),
		CloneURL:   repo.GetCloneURL(),
		Pusher:     e.GetPusher().GetName(),
		ReceivedAt: time.Now().UTC(),
	}
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	return ev, nil
}
