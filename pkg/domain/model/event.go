package model

import (
	"strings"
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// PushEvent is the normalized form of a branch push, whether it arrived
// via webhook or was synthesized from a local checkout by `drover run`.
// Exactly one of CloneURL (webhook) or LocalDir (manual dispatch) names
// the source; an empty LocalDir means the current directory.
type PushEvent struct {
	Repository string // owner/name
	Branch     string
	Commit     string // full commit identifier
	CloneURL   string
	LocalDir   string
	Pusher     string
	ReceivedAt time.Time
}

// Validate checks that the event carries everything a run needs.
func (e *PushEvent) Validate() error {
	switch {
	case e.Repository == "":
		return goerr.New("push event has no repository")
	case e.Branch == "":
		return goerr.New("push event has no branch", goerr.V("repository", e.Repository))
	case e.Commit == "":
		return goerr.New("push event has no commit", goerr.V("repository", e.Repository))
	}
	return nil
}

// BranchFromRef extracts the branch name from a git ref. Tag refs and
// other non-branch refs yield "".
func BranchFromRef(ref string) string {
	branch := strings.TrimPrefix(ref, "refs/heads/")
	if branch == ref {
		return ""
	}
	return branch
}
