package model

import (
	"regexp"
	"strings"
)

// Params carries the per-run values available to workflow definitions.
// Tag is the dispatch input; the rest are derived from the triggering
// push (or from the local checkout for manual runs).
type Params struct {
	Tag        string
	Commit     string
	Branch     string
	Repository string
	RunID      string
	Workflow   string
}

var paramRef = regexp.MustCompile(`\$\{[a-z_]+\}`)

// Expand substitutes ${tag}, ${commit}, ${short_commit}, ${branch},
// ${repository}, ${run_id} and ${workflow} in s. Unknown references are
// left intact so shell-style ${VAR} usage survives untouched.
func (p Params) Expand(s string) string {
	return paramRef.ReplaceAllStringFunc(s, func(ref string) string {
		name := strings.TrimSuffix(strings.TrimPrefix(ref, "${"), "}")
		switch name {
		case "tag":
			return p.Tag
		case "commit":
			return p.Commit
		case "short_commit":
			return ShortCommit(p.Commit)
		case "branch":
			return p.Branch
		case "repository":
			return p.Repository
		case "run_id":
			return p.RunID
		case "workflow":
			return p.Workflow
		default:
			return ref
		}
	})
}

// ExpandMap expands every value of m into a fresh map.
func (p Params) ExpandMap(m map[string]string) map[string]string {
	if len(m) == 0 {
		return nil
	}
	out := make(map[string]string, len(m))
	for k, v := range m {
		out[k] = p.Expand(v)
	}
	return out
}

// Env returns the DROVER_* environment entries exported to run steps.
func (p Params) Env() []string {
	return []string{
		"DROVER_TAG=" + p.Tag,
		"DROVER_COMMIT=" + p.Commit,
		"DROVER_BRANCH=" + p.Branch,
		"DROVER_REPOSITORY=" + p.Repository,
		"DROVER_RUN_ID=" + p.RunID,
		"DROVER_WORKFLOW=" + p.Workflow,
	}
}

// ShortCommit truncates a commit identifier to the conventional 7
// characters for display.
func ShortCommit(commit string) string {
	if len(commit) > 7 {
		return commit[:7]
	}
	return commit
}
