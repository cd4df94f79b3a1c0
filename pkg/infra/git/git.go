package git

import (
	"context"
	"path/filepath"
	"strings"

	gogit "github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Fetcher materializes pushed revisions by cloning the repository.
type Fetcher struct{}

// New creates a Fetcher.
func New() *Fetcher {
	return &Fetcher{}
}

// Fetch clones the event's branch into dest and checks out the pushed
// commit. The clone keeps branch history so older commits remain
// reachable when a run was superseded by a newer push.
func (f *Fetcher) Fetch(ctx context.Context, ev *model.PushEvent, dest string) error {
	if ev.CloneURL == "" {
		return goerr.New("push event has no clone URL",
			goerr.V("repository", ev.Repository),
		)
	}

	repo, err := gogit.PlainCloneContext(ctx, dest, false, &gogit.CloneOptions{
		URL:           ev.CloneURL,
		ReferenceName: plumbing.NewBranchReferenceName(ev.Branch),
		SingleBranch:  true,
	})
	if err != nil {
		return goerr.Wrap(err, "failed to clone repository",
			goerr.V("url", ev.CloneURL),
			goerr.V("branch", ev.Branch),
		)
	}

	head, err := repo.Head()
	if err != nil {
		return goerr.Wrap(err, "failed to resolve HEAD after clone")
	}
	if ev.Commit == "" || head.Hash().String() == ev.Commit {
		return nil
	}

	wt, err := repo.Worktree()
	if err != nil {
		return goerr.Wrap(err, "failed to open worktree")
	}
	if err := wt.Checkout(&gogit.CheckoutOptions{Hash: plumbing.NewHash(ev.Commit)}); err != nil {
		return goerr.Wrap(err, "pushed commit not reachable in clone",
			goerr.V("commit", ev.Commit),
			goerr.V("branch", ev.Branch),
		)
	}
	return nil
}

// LocalHead builds a push event from an existing working copy for manual
// dispatch. The clone URL stays empty so the pipeline runs in place
// instead of cloning.
func LocalHead(dir string) (*model.PushEvent, error) {
	repo, err := gogit.PlainOpenWithOptions(dir, &gogit.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		return nil, goerr.Wrap(err, "failed to open repository", goerr.V("dir", dir))
	}

	head, err := repo.Head()
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve HEAD", goerr.V("dir", dir))
	}

	branch := ""
	if head.Name().IsBranch() {
		branch = head.Name().Short()
	}

	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, goerr.Wrap(err, "failed to resolve directory", goerr.V("dir", dir))
	}
	repository := filepath.Base(abs)
	if remote, err := repo.Remote("origin"); err == nil && len(remote.Config().URLs) > 0 {
		if name := repoFromRemote(remote.Config().URLs[0]); name != "" {
			repository = name
		}
	}

	return &model.PushEvent{
		Repository: repository,
		Branch:     branch,
		Commit:     head.Hash().String(),
		LocalDir:   abs,
	}, nil
}

// repoFromRemote extracts "owner/name" from common remote URL forms
// (https, ssh scp-like). Returns "" when the URL has no two-segment path.
func repoFromRemote(url string) string {
	url = strings.TrimSuffix(url, ".git")
	if i := strings.Index(url, "://"); i >= 0 {
		url = url[i+3:]
	}
	if i := strings.Index(url, ":"); i >= 0 && !strings.Contains(url[:i], "/") {
		url = url[i+1:]
	} else if i := strings.Index(url, "/"); i >= 0 {
		url = url[i+1:]
	}

	parts := strings.Split(url, "/")
	if len(parts) < 2 {
		return ""
	}
	return strings.Join(parts[len(parts)-2:], "/")
}
