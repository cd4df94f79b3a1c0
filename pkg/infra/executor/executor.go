package executor

import (
	"context"
	"errors"
	"io"
	"os"
	"os/exec"
	"strings"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/goerr/v2"

	"github.com/m-mizutani/drover/pkg/domain/model"
)

// Executor runs external commands with combined output streaming. It is
// the single process boundary: step commands, docker login and buildx all
// go through here so cancellation and exit handling stay in one place.
type Executor struct{}

// New creates an Executor.
func New() *Executor {
	return &Executor{}
}

// Run executes cmd, streaming stdout and stderr to out. The process
// inherits the parent environment with cmd.Env appended. Context
// cancellation kills the process. A non-zero exit returns an error
// carrying the exit code.
func (x *Executor) Run(ctx context.Context, cmd *model.Command, out io.Writer) error {
	if err := ctx.Err(); err != nil {
		return goerr.Wrap(err, "command not started", goerr.V("command", cmd.Name))
	}
	if out == nil {
		out = io.Discard
	}

	c := exec.CommandContext(ctx, cmd.Name, cmd.Args...)
	c.Dir = cmd.Dir
	c.Env = append(os.Environ(), cmd.Env...)
	c.Stdout = out
	c.Stderr = out
	if cmd.Stdin != "" {
		c.Stdin = strings.NewReader(cmd.Stdin)
	}

	ctxlog.From(ctx).Debug("executing command",
		"command", cmd.Name,
		"args", cmd.Args,
		"dir", cmd.Dir,
	)

	if err := c.Run(); err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return goerr.Wrap(err, "command exited with non-zero status",
				goerr.V("command", cmd.Name),
				goerr.V("exit_code", exitErr.ExitCode()),
			)
		}
		return goerr.Wrap(err, "failed to run command",
			goerr.V("command", cmd.Name),
		)
	}
	return nil
}
