package usecase

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"

	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/utils/versionfile"
)

// runStep executes one step inside workspace, streaming output to out.
// Pushed build steps return the image reference they produced.
func (p *pipeline) runStep(ctx context.Context, step *model.Step, params model.Params, workspace string, out io.Writer) (string, error) {
	switch step.Kind() {
	case model.StepKindRun:
		cmd := commandForStep(step, params, workspace)
		if err := p.runner.Run(ctx, cmd, out); err != nil {
			return "", goerr.Wrap(err, "run step failed", goerr.V("step", step.Label()))
		}
		return "", nil

	case model.StepKindVersion:
		v := step.Version
		file := params.Expand(v.File)
		value := params.Expand(v.Value)
		if err := versionfile.Rewrite(filepath.Join(workspace, file), v.Match, value); err != nil {
			return "", goerr.Wrap(err, "version step failed", goerr.V("step", step.Label()))
		}
		fmt.Fprintf(out, "set %s in %s to %s\n", v.Match, file, value)
		return "", nil

	case model.StepKindBuild:
		if p.builder == nil {
			return "", goerr.New("image builder is not configured", goerr.V("step", step.Label()))
		}
		spec := buildSpecForStep(step.Build, params, workspace)
		if err := spec.Validate(); err != nil {
			return "", err
		}
		result, err := p.builder.Build(ctx, spec, out)
		if err != nil {
			return "", goerr.Wrap(err, "build step failed", goerr.V("step", step.Label()))
		}
		if spec.Push {
			return result.Ref, nil
		}
		return "", nil
	}

	return "", goerr.New("unknown step kind", goerr.V("step", step.Label()))
}

// commandForStep turns a run step into a shell invocation. Run parameters
// travel as DROVER_* environment variables; declared step env values are
// parameter-expanded.
func commandForStep(step *model.Step, params model.Params, workspace string) *model.Command {
	dir := workspace
	if step.Dir != "" {
		dir = filepath.Join(workspace, params.Expand(step.Dir))
	}

	env := params.Env()
	expanded := params.ExpandMap(step.Env)
	for _, k := range sortedEnvKeys(expanded) {
		env = append(env, k+"="+expanded[k])
	}

	return &model.Command{
		Name: "sh",
		Args: []string{"-c", step.Run},
		Dir:  dir,
		Env:  env,
	}
}

// buildSpecForStep expands a build step into a concrete build: parameter
// references resolved, platform defaults applied, the run's commit
// injected as build arg COMMIT and the tag defaulted to ${tag}.
func buildSpecForStep(b *model.BuildStep, params model.Params, workspace string) *model.BuildSpec {
	contextDir := workspace
	if b.Context != "" {
		contextDir = filepath.Join(workspace, params.Expand(b.Context))
	}
	var dockerfile string
	if b.Dockerfile != "" {
		dockerfile = filepath.Join(workspace, params.Expand(b.Dockerfile))
	}

	tag := b.Tag
	if tag == "" {
		tag = "${tag}"
	}
	platforms := b.Platforms
	if len(platforms) == 0 {
		platforms = model.DefaultPlatforms
	}

	args := params.ExpandMap(b.BuildArgs)
	if args == nil {
		args = make(map[string]string, 1)
	}
	args["COMMIT"] = params.Commit

	push := true
	if b.Push != nil {
		push = *b.Push
	}

	return &model.BuildSpec{
		ContextDir: contextDir,
		Dockerfile: dockerfile,
		Repository: params.Expand(b.Repository),
		Tag:        params.Expand(tag),
		Platforms:  platforms,
		BuildArgs:  args,
		Push:       push,
	}
}

func sortedEnvKeys(m map[string]string) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
