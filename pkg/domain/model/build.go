package model

import (
	"time"

	"github.com/m-mizutani/goerr/v2"
)

// DefaultPlatforms is used when a build step does not list target
// platforms explicitly.
var DefaultPlatforms = []string{"linux/amd64", "linux/arm64"}

// BuildSpec is a fully expanded container build: all parameter references
// are resolved and defaults applied before it reaches the builder.
type BuildSpec struct {
	ContextDir string
	Dockerfile string
	Repository string
	Tag        string
	Platforms  []string
	BuildArgs  map[string]string
	Push       bool
}

// Ref returns the image reference the build produces.
func (s *BuildSpec) Ref() string {
	return s.Repository + ":" + s.Tag
}

// Validate checks the spec at execution time. The tag may be declared in
// the workflow or supplied at dispatch, but it must exist by now.
func (s *BuildSpec) Validate() error {
	if s.Repository == "" {
		return goerr.New("build spec has no repository")
	}
	if s.Tag == "" {
		return goerr.New("build spec has no tag", goerr.V("repository", s.Repository))
	}
	return nil
}

// BuildResult reports a completed image build.
type BuildResult struct {
	Ref      string
	Duration time.Duration
}

// Command is one external process invocation. Env entries are appended to
// the parent environment; Stdin, when non-empty, is fed to the process so
// credentials never appear in argv.
type Command struct {
	Name  string
	Args  []string
	Dir   string
	Env   []string
	Stdin string
}
