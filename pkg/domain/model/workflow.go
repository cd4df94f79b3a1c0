package model

import (
	"path"
	"regexp"
	"sort"

	"github.com/goccy/go-yaml"
	"github.com/m-mizutani/goerr/v2"
)

// Job names become log file names and metric label values.
var jobNameRe = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]*$`)

// Workflow is a declarative pipeline definition: a push trigger, an
// optional concurrency policy and a set of jobs ordered by "needs"
// dependencies.
type Workflow struct {
	Name        string         `yaml:"name"`
	On          Trigger        `yaml:"on"`
	Concurrency Concurrency    `yaml:"concurrency,omitempty"`
	Jobs        map[string]Job `yaml:"jobs"`
}

// Trigger describes the repository events that start a workflow.
type Trigger struct {
	Push PushTrigger `yaml:"push"`
}

// PushTrigger fires on pushes to matching branches. Patterns use
// path.Match globs; an empty list never matches.
type PushTrigger struct {
	Branches []string `yaml:"branches"`
}

// Concurrency groups runs under one key. When CancelInProgress is set, a
// new run cancels the in-progress run sharing the same expanded group;
// otherwise the new run waits for it to finish.
type Concurrency struct {
	Group            string `yaml:"group,omitempty"`
	CancelInProgress bool   `yaml:"cancel_in_progress,omitempty"`
}

// Job is a named sequence of steps. All jobs listed in Needs must succeed
// before the job starts; if any of them fails, the job is skipped.
type Job struct {
	Needs []string `yaml:"needs,omitempty"`
	Steps []Step   `yaml:"steps,omitempty"`
}

// StepKind identifies what a step does.
type StepKind string

const (
	// StepKindRun executes a shell command.
	StepKindRun StepKind = "run"
	// StepKindVersion overwrites a version string in a source file.
	StepKindVersion StepKind = "version"
	// StepKindBuild builds (and usually pushes) a container image.
	StepKindBuild StepKind = "build"
)

// Step is one unit of work within a job. Exactly one of Run, Version or
// Build must be set.
type Step struct {
	Name string `yaml:"name,omitempty"`

	// Run is a shell command line, executed with `sh -c`. Run parameters
	// (tag, commit, ...) are exposed to it as DROVER_* environment
	// variables rather than expanded in place, so shell syntax stays
	// untouched.
	Run string            `yaml:"run,omitempty"`
	Env map[string]string `yaml:"env,omitempty"`
	Dir string            `yaml:"dir,omitempty"`

	Version *VersionStep `yaml:"version,omitempty"`
	Build   *BuildStep   `yaml:"build,omitempty"`
}

// VersionStep overwrites a version string in a source file before a build.
// For *.json files Match is a sjson key path and Value replaces the value
// at that path; for any other file Match is a regular expression and its
// first occurrence is replaced by Value. Both File and Value support
// ${...} parameter expansion.
type VersionStep struct {
	File  string `yaml:"file"`
	Match string `yaml:"match"`
	Value string `yaml:"value"`
}

// BuildStep builds a multi-platform container image and pushes it to
// Repository:Tag. Repository includes the registry host
// (e.g. ghcr.io/acme/app). Tag defaults to ${tag} so that a dispatch-time
// tag flows through unmodified. The run's commit identifier is always
// injected as build arg COMMIT.
type BuildStep struct {
	Context    string            `yaml:"context,omitempty"`
	Dockerfile string            `yaml:"dockerfile,omitempty"`
	Repository string            `yaml:"repository"`
	Tag        string            `yaml:"tag,omitempty"`
	Platforms  []string          `yaml:"platforms,omitempty"`
	BuildArgs  map[string]string `yaml:"build_args,omitempty"`
	Push       *bool             `yaml:"push,omitempty"`
}

// ParseWorkflow decodes and validates a single workflow definition.
func ParseWorkflow(data []byte) (*Workflow, error) {
	var w Workflow
	if err := yaml.UnmarshalWithOptions(data, &w, yaml.Strict()); err != nil {
		return nil, goerr.Wrap(err, "failed to parse workflow definition")
	}
	if err := w.Validate(); err != nil {
		return nil, err
	}
	return &w, nil
}

// Validate checks structural soundness: the workflow is named, has at
// least one job, job names are well-formed, every needs reference
// resolves, the dependency graph is acyclic, branch patterns are
// well-formed globs and every step has exactly one kind.
func (w *Workflow) Validate() error {
	if w.Name == "" {
		return goerr.New("workflow name is required")
	}
	if len(w.Jobs) == 0 {
		return goerr.New("workflow has no jobs", goerr.V("workflow", w.Name))
	}

	for _, pattern := range w.On.Push.Branches {
		if _, err := path.Match(pattern, "x"); err != nil {
			return goerr.Wrap(err, "invalid branch pattern",
				goerr.V("workflow", w.Name),
				goerr.V("pattern", pattern),
			)
		}
	}

	for _, name := range w.jobNames() {
		job := w.Jobs[name]
		if !jobNameRe.MatchString(name) {
			return goerr.New("invalid job name",
				goerr.V("workflow", w.Name),
				goerr.V("job", name),
			)
		}
		for _, need := range job.Needs {
			if need == name {
				return goerr.New("job depends on itself",
					goerr.V("workflow", w.Name),
					goerr.V("job", name),
				)
			}
			if _, ok := w.Jobs[need]; !ok {
				return goerr.New("job needs unknown job",
					goerr.V("workflow", w.Name),
					goerr.V("job", name),
					goerr.V("needs", need),
				)
			}
		}
		for i := range job.Steps {
			if err := job.Steps[i].validate(); err != nil {
				return goerr.Wrap(err, "invalid step",
					goerr.V("workflow", w.Name),
					goerr.V("job", name),
					goerr.V("step", i),
				)
			}
		}
	}

	if cycle := w.findCycle(); cycle != "" {
		return goerr.New("job dependency cycle detected",
			goerr.V("workflow", w.Name),
			goerr.V("job", cycle),
		)
	}

	return nil
}

// Matches reports whether a push to branch triggers this workflow.
func (w *Workflow) Matches(branch string) bool {
	for _, pattern := range w.On.Push.Branches {
		if ok, err := path.Match(pattern, branch); err == nil && ok {
			return true
		}
	}
	return false
}

// GroupFor returns the expanded concurrency group key for one run. An
// unset group defaults to "<workflow>-<branch>" so pushes to different
// branches never supersede each other.
func (w *Workflow) GroupFor(p Params) string {
	if w.Concurrency.Group != "" {
		return p.Expand(w.Concurrency.Group)
	}
	return w.Name + "-" + p.Branch
}

// jobNames returns job names in stable order.
func (w *Workflow) jobNames() []string {
	names := make([]string, 0, len(w.Jobs))
	for name := range w.Jobs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// findCycle returns the name of a job on a dependency cycle, or "".
func (w *Workflow) findCycle() string {
	const (
		unseen = iota
		visiting
		done
	)
	state := make(map[string]int, len(w.Jobs))

	var visit func(name string) string
	visit = func(name string) string {
		switch state[name] {
		case visiting:
			return name
		case done:
			return ""
		}
		state[name] = visiting
		for _, need := range w.Jobs[name].Needs {
			if hit := visit(need); hit != "" {
				return hit
			}
		}
		state[name] = done
		return ""
	}

	for _, name := range w.jobNames() {
		if hit := visit(name); hit != "" {
			return hit
		}
	}
	return ""
}

// Kind returns the step kind. Validity is assumed (checked by Validate).
func (s *Step) Kind() StepKind {
	switch {
	case s.Version != nil:
		return StepKindVersion
	case s.Build != nil:
		return StepKindBuild
	default:
		return StepKindRun
	}
}

// Label returns the display name of a step, falling back to its kind.
func (s *Step) Label() string {
	if s.Name != "" {
		return s.Name
	}
	return string(s.Kind())
}

func (s *Step) validate() error {
	kinds := 0
	if s.Run != "" {
		kinds++
	}
	if s.Version != nil {
		kinds++
	}
	if s.Build != nil {
		kinds++
	}
	if kinds != 1 {
		return goerr.New("step must have exactly one of run, version or build",
			goerr.V("step", s.Name),
		)
	}

	if s.Version != nil {
		if s.Version.File == "" || s.Version.Match == "" || s.Version.Value == "" {
			return goerr.New("version step requires file, match and value",
				goerr.V("step", s.Name),
			)
		}
	}
	if s.Build != nil {
		if s.Build.Repository == "" {
			return goerr.New("build step requires repository",
				goerr.V("step", s.Name),
			)
		}
	}
	return nil
}
