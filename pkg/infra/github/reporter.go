package github

import (
	"context"
	"net/http"
	"strings"

	"github.com/bradleyfalzon/ghinstallation/v2"
	"github.com/google/go-github/v75/github"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/interfaces"
	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Commit status descriptions are capped by the API.
const maxDescriptionLen = 140

type reporter struct {
	githubClient *github.Client
}

// NewReporter creates a commit status reporter authenticated as a GitHub
// App installation.
func NewReporter(appID, installationID int64, privateKey []byte) (interfaces.StatusReporter, error) {
	itr, err := ghinstallation.New(http.DefaultTransport, appID, installationID, privateKey)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to create GitHub App transport",
			goerr.V("app_id", appID),
			goerr.V("installation_id", installationID),
		)
	}

	return NewReporterWithClient(github.NewClient(&http.Client{Transport: itr})), nil
}

// NewReporterWithClient wraps an already configured go-github client.
func NewReporterWithClient(client *github.Client) interfaces.StatusReporter {
	return &reporter{githubClient: client}
}

// ReportPending implements interfaces.StatusReporter.
func (r *reporter) ReportPending(ctx context.Context, run *model.Run) error {
	return r.report(ctx, run, "pending", "run in progress")
}

// ReportResult implements interfaces.StatusReporter.
func (r *reporter) ReportResult(ctx context.Context, run *model.Run) error {
	return r.report(ctx, run, stateFor(run.Status), run.Summary())
}

func (r *reporter) report(ctx context.Context, run *model.Run, state, description string) error {
	owner, repo, ok := splitRepository(run.Repository)
	if !ok {
		return goerr.New("repository is not owner/name",
			goerr.V("repository", run.Repository),
		)
	}
	if len(description) > maxDescriptionLen {
		description = description[:maxDescriptionLen-3] + "..."
	}

	status := &github.RepoStatus{
		State:       github.Ptr(state),
		Context:     github.Ptr("drover/" + run.Workflow),
		Description: github.Ptr(description),
	}
	if _, _, err := r.githubClient.Repositories.CreateStatus(ctx, owner, repo, run.Commit, status); err != nil {
		return goerr.Wrap(err, "failed to create commit status",
			goerr.V("repository", run.Repository),
			goerr.V("commit", run.Commit),
			goerr.V("state", state),
		)
	}
	return nil
}

// stateFor maps a terminal run status to the commit status state.
// Cancelled runs report "error": the commit was never proven bad.
func stateFor(status model.RunStatus) string {
	switch status {
	case model.StatusSuccess:
		return "success"
	case model.StatusFailure:
		return "failure"
	case model.StatusCancelled:
		return "error"
	default:
		return "pending"
	}
}

func splitRepository(repository string) (owner, repo string, ok bool) {
	parts := strings.Split(repository, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}

type nopReporter struct{}

// NewNopReporter returns a reporter that does nothing, used when GitHub
// App credentials are not configured.
func NewNopReporter() interfaces.StatusReporter {
	return &nopReporter{}
}

func (n *nopReporter) ReportPending(context.Context, *model.Run) error { return nil }
func (n *nopReporter) ReportResult(context.Context, *model.Run) error  { return nil }
