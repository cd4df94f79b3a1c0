package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// RunStatus is the lifecycle state of a run or of a single job run.
type RunStatus string

const (
	StatusQueued    RunStatus = "queued"
	StatusRunning   RunStatus = "running"
	StatusSuccess   RunStatus = "success"
	StatusFailure   RunStatus = "failure"
	StatusCancelled RunStatus = "cancelled"
	StatusSkipped   RunStatus = "skipped"
)

// Terminal reports whether no further transition happens from s.
func (s RunStatus) Terminal() bool {
	switch s {
	case StatusSuccess, StatusFailure, StatusCancelled, StatusSkipped:
		return true
	}
	return false
}

// Emoji returns the notification marker for a terminal status.
func (s RunStatus) Emoji() string {
	switch s {
	case StatusSuccess:
		return "✅"
	case StatusFailure:
		return "❌"
	case StatusCancelled:
		return "🚫"
	default:
		return "⏳"
	}
}

// Run is one execution of a workflow for one push.
type Run struct {
	ID         string    `json:"id"`
	Workflow   string    `json:"workflow"`
	Repository string    `json:"repository"`
	Branch     string    `json:"branch"`
	Commit     string    `json:"commit"`
	Tag        string    `json:"tag"`
	Group      string    `json:"group"`
	Status     RunStatus `json:"status"`
	Image      string    `json:"image,omitempty"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
	Jobs       []*JobRun `json:"jobs"`
}

// JobRun tracks one job within a run.
type JobRun struct {
	Name       string    `json:"name"`
	Status     RunStatus `json:"status"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at"`
	FinishedAt time.Time `json:"finished_at"`
}

// NewRun builds a queued run for the given workflow and push, assigning a
// fresh run ID. Job runs are created in stable name order.
func NewRun(w *Workflow, ev *PushEvent, tag string) *Run {
	r := &Run{
		ID:         uuid.NewString(),
		Workflow:   w.Name,
		Repository: ev.Repository,
		Branch:     ev.Branch,
		Commit:     ev.Commit,
		Tag:        tag,
		Status:     StatusQueued,
		StartedAt:  time.Now().UTC(),
	}
	r.Group = w.GroupFor(r.Params())
	for _, name := range w.jobNames() {
		r.Jobs = append(r.Jobs, &JobRun{Name: name, Status: StatusQueued})
	}
	return r
}

// Params returns the expansion parameters derived from this run.
func (r *Run) Params() Params {
	return Params{
		Tag:        r.Tag,
		Commit:     r.Commit,
		Branch:     r.Branch,
		Repository: r.Repository,
		RunID:      r.ID,
		Workflow:   r.Workflow,
	}
}

// Job returns the job run with the given name, or nil.
func (r *Run) Job(name string) *JobRun {
	for _, j := range r.Jobs {
		if j.Name == name {
			return j
		}
	}
	return nil
}

// Finish marks the run terminal with the given status. err may be nil.
func (r *Run) Finish(status RunStatus, err error) {
	r.Status = status
	r.FinishedAt = time.Now().UTC()
	if err != nil {
		r.Error = err.Error()
	}
}

// Duration returns the wall time of a finished run.
func (r *Run) Duration() time.Duration {
	if r.FinishedAt.IsZero() {
		return 0
	}
	return r.FinishedAt.Sub(r.StartedAt)
}

// Summary renders the fixed notification line for a finished run, e.g.
//
//	✅ drover: release for acme/app@9f2c1d3 (main) success → image ghcr.io/acme/app:v1.2.0
func (r *Run) Summary() string {
	s := fmt.Sprintf("%s drover: %s for %s@%s (%s) %s",
		r.Status.Emoji(), r.Workflow, r.Repository, ShortCommit(r.Commit), r.Branch, r.Status)
	if r.Image != "" {
		s += " → image " + r.Image
	}
	return s
}

// Start marks the job run as running.
func (j *JobRun) Start() {
	j.Status = StatusRunning
	j.StartedAt = time.Now().UTC()
}

// Finish marks the job run terminal. err may be nil.
func (j *JobRun) Finish(status RunStatus, err error) {
	j.Status = status
	j.FinishedAt = time.Now().UTC()
	if err != nil {
		j.Error = err.Error()
	}
}

// Duration returns the wall time of a finished job run.
func (j *JobRun) Duration() time.Duration {
	if j.FinishedAt.IsZero() || j.StartedAt.IsZero() {
		return 0
	}
	return j.FinishedAt.Sub(j.StartedAt)
}

// ValidRunID reports whether id is a well-formed run ID. Run IDs are used
// as directory names and artifact tags, so anything else is rejected.
func ValidRunID(id string) bool {
	if _, err := uuid.Parse(id); err != nil {
		return false
	}
	return true
}
