package usecase

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/getsentry/sentry-go"
	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/async"
)

// defaultTagTemplate names images for runs dispatched without an explicit
// tag, i.e. plain branch pushes.
const defaultTagTemplate = "sha-${short_commit}"

type pipeline struct {
	workflows []*model.Workflow
	runner    interfaces.CommandRunner
	builder   interfaces.ImageBuilder
	fetcher   interfaces.SourceFetcher
	publisher interfaces.ArtifactPublisher
	notifiers []interfaces.Notifier
	reporter  interfaces.StatusReporter
	store     interfaces.RunStore
	metrics   interfaces.RunMetrics

	defaultTag string
	logDir     string
	workDir    string
	workers    int
	sentryOn   bool

	mu     sync.Mutex
	groups map[string]*groupSlot
}

// groupSlot is the run currently holding one concurrency group.
type groupSlot struct {
	runID  string
	cancel context.CancelFunc
	done   chan struct{}
}

// Option configures the pipeline usecase.
type Option func(*pipeline)

// WithImageBuilder sets the container image builder used by build steps.
func WithImageBuilder(b interfaces.ImageBuilder) Option {
	return func(p *pipeline) { p.builder = b }
}

// WithSourceFetcher sets the fetcher used to materialize pushed revisions.
func WithSourceFetcher(f interfaces.SourceFetcher) Option {
	return func(p *pipeline) { p.fetcher = f }
}

// WithArtifactPublisher enables publishing run log bundles after each run.
func WithArtifactPublisher(a interfaces.ArtifactPublisher) Option {
	return func(p *pipeline) { p.publisher = a }
}

// WithNotifiers adds completion notification channels.
func WithNotifiers(notifiers ...interfaces.Notifier) Option {
	return func(p *pipeline) { p.notifiers = append(p.notifiers, notifiers...) }
}

// WithStatusReporter sets the commit status reporter.
func WithStatusReporter(r interfaces.StatusReporter) Option {
	return func(p *pipeline) { p.reporter = r }
}

// WithRunStore sets the run persistence store.
func WithRunStore(s interfaces.RunStore) Option {
	return func(p *pipeline) { p.store = s }
}

// WithRunMetrics sets the metrics recorder.
func WithRunMetrics(m interfaces.RunMetrics) Option {
	return func(p *pipeline) { p.metrics = m }
}

// WithDefaultTag overrides the tag template applied to runs dispatched
// without an explicit tag.
func WithDefaultTag(template string) Option {
	return func(p *pipeline) { p.defaultTag = template }
}

// WithLogDir sets where per-run job logs are written.
func WithLogDir(dir string) Option {
	return func(p *pipeline) { p.logDir = dir }
}

// WithWorkDir sets where per-run source checkouts are created.
func WithWorkDir(dir string) Option {
	return func(p *pipeline) { p.workDir = dir }
}

// WithWorkers sets how many jobs of one run may execute in parallel.
func WithWorkers(n int) Option {
	return func(p *pipeline) { p.workers = n }
}

// WithSentryCapture reports failed runs to Sentry. sentry.Init must have
// been called by the entrypoint.
func WithSentryCapture() Option {
	return func(p *pipeline) { p.sentryOn = true }
}

// NewPipeline builds the pipeline usecase. Workflows and a command runner
// are mandatory; every other collaborator degrades to a no-op when unset.
func NewPipeline(workflows []*model.Workflow, runner interfaces.CommandRunner, options ...Option) interfaces.Pipeline {
	p := &pipeline{
		workflows:  workflows,
		runner:     runner,
		defaultTag: defaultTagTemplate,
		logDir:     filepath.Join(os.TempDir(), "drover-logs"),
		workers:    2,
		groups:     make(map[string]*groupSlot),
	}
	for _, opt := range options {
		opt(p)
	}
	if p.workers < 1 {
		p.workers = 1
	}
	return p
}

// HandlePush queues a run for every workflow matching the pushed branch
// and executes them in the background. The returned runs are in queued
// state so callers can surface the assigned IDs immediately.
func (p *pipeline) HandlePush(ctx context.Context, ev *model.PushEvent) ([]*model.Run, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	logger := ctxlog.From(ctx)

	var runs []*model.Run
	for _, w := range p.workflows {
		if !w.Matches(ev.Branch) {
			continue
		}
		run := model.NewRun(w, ev, p.resolveTag(w, ev, ""))
		p.saveRun(ctx, run)
		logger.Info("Queued workflow run",
			"workflow", w.Name,
			"run_id", run.ID,
			"repository", ev.Repository,
			"branch", ev.Branch,
			"commit", ev.Commit,
			"tag", run.Tag,
			"group", run.Group,
		)
		runs = append(runs, run)

		async.Dispatch(ctx, func(ctx context.Context) error {
			p.executeManaged(ctx, w, run, ev)
			return nil
		})
	}

	if len(runs) == 0 {
		logger.Info("No workflow matched push",
			"repository", ev.Repository,
			"branch", ev.Branch,
		)
	}
	return runs, nil
}

// Dispatch runs one workflow synchronously and returns the finished run.
// The caller decides process exit semantics from the run status.
func (p *pipeline) Dispatch(ctx context.Context, w *model.Workflow, ev *model.PushEvent, tag string) (*model.Run, error) {
	if err := ev.Validate(); err != nil {
		return nil, err
	}
	run := model.NewRun(w, ev, p.resolveTag(w, ev, tag))
	p.saveRun(ctx, run)
	p.executeManaged(ctx, w, run, ev)
	return run, nil
}

// resolveTag returns the dispatch tag, falling back to the default tag
// template expanded against the push.
func (p *pipeline) resolveTag(w *model.Workflow, ev *model.PushEvent, override string) string {
	if override != "" {
		return override
	}
	params := model.Params{
		Commit:     ev.Commit,
		Branch:     ev.Branch,
		Repository: ev.Repository,
		Workflow:   w.Name,
	}
	return params.Expand(p.defaultTag)
}

// executeManaged passes the run through group admission, executes it and
// releases the group.
func (p *pipeline) executeManaged(ctx context.Context, w *model.Workflow, run *model.Run, ev *model.PushEvent) {
	runCtx, release, err := p.admit(ctx, w, run)
	if err != nil {
		p.skipQueued(run)
		run.Finish(model.StatusCancelled, nil)
		p.saveRun(ctx, run)
		ctxlog.From(ctx).Info("Run abandoned before start",
			"run_id", run.ID,
			"group", run.Group,
			"error", err,
		)
		return
	}
	defer release()

	p.execute(runCtx, ctx, w, run, ev)
}

// admit serializes runs within one concurrency group. With
// cancel_in_progress the holder is cancelled; otherwise the new run waits
// for it to finish. The returned release must be called once the run is
// terminal.
func (p *pipeline) admit(ctx context.Context, w *model.Workflow, run *model.Run) (context.Context, func(), error) {
	runCtx, cancel := context.WithCancel(ctx)
	slot := &groupSlot{runID: run.ID, cancel: cancel, done: make(chan struct{})}

	for {
		p.mu.Lock()
		cur := p.groups[run.Group]
		if cur == nil || closed(cur.done) {
			p.groups[run.Group] = slot
			p.mu.Unlock()

			release := func() {
				close(slot.done)
				p.mu.Lock()
				if p.groups[run.Group] == slot {
					delete(p.groups, run.Group)
				}
				p.mu.Unlock()
			}
			return runCtx, release, nil
		}
		p.mu.Unlock()

		if w.Concurrency.CancelInProgress {
			ctxlog.From(ctx).Info("Cancelling in-progress run",
				"group", run.Group,
				"cancelled_run_id", cur.runID,
				"superseding_run_id", run.ID,
			)
			cur.cancel()
		}

		select {
		case <-cur.done:
		case <-ctx.Done():
			cancel()
			return nil, nil, goerr.Wrap(ctx.Err(), "gave up waiting for concurrency group",
				goerr.V("group", run.Group),
			)
		}
	}
}

func closed(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// execute runs the workflow jobs. runCtx is cancelled when a superseding
// run arrives; parent stays alive so the terminal state is always
// persisted, reported and notified.
func (p *pipeline) execute(runCtx, parent context.Context, w *model.Workflow, run *model.Run, ev *model.PushEvent) {
	logger := ctxlog.From(parent)

	run.Status = model.StatusRunning
	p.saveRun(parent, run)
	if p.metrics != nil {
		p.metrics.RunStarted(run.Workflow)
	}
	p.reportPending(parent, run)
	logger.Info("Starting workflow run",
		"workflow", run.Workflow,
		"run_id", run.ID,
		"commit", run.Commit,
		"tag", run.Tag,
	)

	workspace, cleanup, err := p.prepareWorkspace(runCtx, ev)
	if err != nil {
		p.skipQueued(run)
		if runCtx.Err() != nil {
			run.Finish(model.StatusCancelled, nil)
		} else {
			run.Finish(model.StatusFailure, err)
		}
		p.finalize(parent, run, "")
		return
	}
	defer cleanup()

	logDir := filepath.Join(p.logDir, run.ID)
	if err := os.MkdirAll(logDir, 0o755); err != nil {
		p.skipQueued(run)
		run.Finish(model.StatusFailure, goerr.Wrap(err, "failed to create log directory",
			goerr.V("dir", logDir),
		))
		p.finalize(parent, run, "")
		return
	}

	firstErr := p.runJobs(runCtx, parent, w, run, workspace, logDir)

	allOK := true
	for _, j := range run.Jobs {
		if j.Status != model.StatusSuccess {
			allOK = false
			break
		}
	}
	switch {
	case allOK:
		run.Finish(model.StatusSuccess, nil)
	case runCtx.Err() != nil:
		run.Finish(model.StatusCancelled, nil)
	default:
		run.Finish(model.StatusFailure, firstErr)
	}

	p.finalize(parent, run, logDir)
}

// jobResult reports one finished job back to the scheduler.
type jobResult struct {
	name   string
	status model.RunStatus
	image  string
	err    error
}

// runJobs drives needs-ordered execution: jobs start once all their needs
// succeeded, jobs whose needs ended any other way are skipped, and at
// most p.workers jobs run at a time. Run state is only mutated here, so
// concurrent saves observe a consistent snapshot.
func (p *pipeline) runJobs(runCtx, parent context.Context, w *model.Workflow, run *model.Run, workspace, logDir string) error {
	logger := ctxlog.From(parent)
	params := run.Params()
	results := make(chan jobResult)
	running := 0
	var firstErr error

	for {
		skipped := false
		for changed := true; changed; {
			changed = false
			for _, jr := range run.Jobs {
				if jr.Status != model.StatusQueued {
					continue
				}
				if runCtx.Err() != nil || p.needsBlocked(w, run, jr.Name) {
					jr.Finish(model.StatusSkipped, nil)
					logger.Info("Skipped job", "run_id", run.ID, "job", jr.Name)
					skipped = true
					changed = true
				}
			}
		}
		if skipped {
			p.saveRun(parent, run)
		}

		if runCtx.Err() == nil {
			for _, jr := range run.Jobs {
				if running >= p.workers {
					break
				}
				if jr.Status != model.StatusQueued || !p.needsReady(w, run, jr.Name) {
					continue
				}
				jr.Start()
				p.saveRun(parent, run)
				logger.Info("Starting job", "run_id", run.ID, "job", jr.Name)
				running++
				go p.runJob(runCtx, w.Jobs[jr.Name], jr.Name, params, workspace, logDir, results)
			}
		}

		if running == 0 {
			break
		}

		res := <-results
		running--
		jr := run.Job(res.name)
		jr.Finish(res.status, res.err)
		if res.image != "" {
			run.Image = res.image
		}
		if res.status == model.StatusFailure && res.err != nil && firstErr == nil {
			firstErr = goerr.Wrap(res.err, "job failed", goerr.V("job", res.name))
		}
		if p.metrics != nil {
			p.metrics.ObserveJobDuration(run.Workflow, res.name, jr.Duration())
		}
		logger.Info("Finished job",
			"run_id", run.ID,
			"job", res.name,
			"status", string(res.status),
			"duration", jr.Duration().String(),
		)
		p.saveRun(parent, run)
	}

	return firstErr
}

// needsBlocked reports whether any dependency ended without success.
func (p *pipeline) needsBlocked(w *model.Workflow, run *model.Run, name string) bool {
	for _, need := range w.Jobs[name].Needs {
		switch run.Job(need).Status {
		case model.StatusFailure, model.StatusCancelled, model.StatusSkipped:
			return true
		}
	}
	return false
}

// needsReady reports whether every dependency succeeded.
func (p *pipeline) needsReady(w *model.Workflow, run *model.Run, name string) bool {
	for _, need := range w.Jobs[name].Needs {
		if run.Job(need).Status != model.StatusSuccess {
			return false
		}
	}
	return true
}

// runJob executes the steps of one job, streaming output to the job log.
func (p *pipeline) runJob(ctx context.Context, job model.Job, name string, params model.Params, workspace, logDir string, results chan<- jobResult) {
	res := jobResult{name: name, status: model.StatusSuccess}

	logPath := filepath.Join(logDir, name+".log")
	f, err := os.Create(logPath)
	if err != nil {
		res.status = model.StatusFailure
		res.err = goerr.Wrap(err, "failed to create job log", goerr.V("path", logPath))
		results <- res
		return
	}
	defer f.Close()

	for i := range job.Steps {
		step := &job.Steps[i]
		if ctx.Err() != nil {
			res.status = model.StatusCancelled
			break
		}
		fmt.Fprintf(f, "--- %s\n", step.Label())
		image, err := p.runStep(ctx, step, params, workspace, f)
		if err != nil {
			if ctx.Err() != nil {
				res.status = model.StatusCancelled
			} else {
				res.status = model.StatusFailure
				res.err = err
			}
			fmt.Fprintf(f, "--- %s failed: %v\n", step.Label(), err)
			break
		}
		if image != "" {
			res.image = image
		}
	}

	results <- res
}

// prepareWorkspace returns the directory holding the pushed revision.
// Webhook events are cloned into a temporary checkout; manual dispatches
// use the local directory as-is.
func (p *pipeline) prepareWorkspace(ctx context.Context, ev *model.PushEvent) (string, func(), error) {
	if ev.CloneURL == "" {
		dir := ev.LocalDir
		if dir == "" {
			dir = "."
		}
		return dir, func() {}, nil
	}

	if p.fetcher == nil {
		return "", nil, goerr.New("source fetcher is not configured")
	}
	dir, err := os.MkdirTemp(p.workDir, "drover-run-")
	if err != nil {
		return "", nil, goerr.Wrap(err, "failed to create workspace")
	}
	if err := p.fetcher.Fetch(ctx, ev, dir); err != nil {
		_ = os.RemoveAll(dir)
		return "", nil, err
	}
	return dir, func() { _ = os.RemoveAll(dir) }, nil
}

// finalize persists the terminal run and fans out to commit status,
// notification channels, log publishing and metrics. Individual delivery
// failures are logged and never change the run result.
func (p *pipeline) finalize(ctx context.Context, run *model.Run, logDir string) {
	logger := ctxlog.From(ctx)

	p.saveRun(ctx, run)
	if p.metrics != nil {
		p.metrics.RunCompleted(run.Workflow, run.Status)
	}

	if p.reporter != nil {
		if err := p.reporter.ReportResult(ctx, run); err != nil {
			logger.Error("Failed to report commit status", "run_id", run.ID, "error", err)
		}
	}

	n := model.NewNotification(run)
	for _, notifier := range p.notifiers {
		if err := notifier.Notify(ctx, n); err != nil {
			logger.Error("Failed to send notification", "run_id", run.ID, "error", err)
		}
	}

	if p.publisher != nil && logDir != "" {
		if ref, err := p.publisher.PublishRunLogs(ctx, run, logDir); err != nil {
			logger.Error("Failed to publish run logs", "run_id", run.ID, "error", err)
		} else {
			logger.Info("Published run logs", "run_id", run.ID, "ref", ref)
		}
	}

	if p.sentryOn && run.Status == model.StatusFailure {
		sentry.CaptureException(goerr.New("workflow run failed",
			goerr.V("run_id", run.ID),
			goerr.V("workflow", run.Workflow),
			goerr.V("error", run.Error),
		))
	}

	logger.Info("Workflow run finished",
		"run_id", run.ID,
		"workflow", run.Workflow,
		"status", string(run.Status),
		"duration", run.Duration().String(),
		"image", run.Image,
	)
}

func (p *pipeline) reportPending(ctx context.Context, run *model.Run) {
	if p.reporter == nil {
		return
	}
	if err := p.reporter.ReportPending(ctx, run); err != nil {
		ctxlog.From(ctx).Error("Failed to report pending status", "run_id", run.ID, "error", err)
	}
}

// saveRun persists best-effort; a store failure never stops a run.
func (p *pipeline) saveRun(ctx context.Context, run *model.Run) {
	if p.store == nil {
		return
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		ctxlog.From(ctx).Error("Failed to save run", "run_id", run.ID, "error", err)
	}
}

func (p *pipeline) skipQueued(run *model.Run) {
	for _, j := range run.Jobs {
		if j.Status == model.StatusQueued {
			j.Finish(model.StatusSkipped, nil)
		}
	}
}
