package executor_test

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/m-mizutani/gt"

	"github.com/m-mizutani/drover/pkg/domain/model"
	"github.com/m-mizutani/drover/pkg/infra/executor"
)

func TestExecutor_Run(t *testing.T) {
	x := executor.New()
	ctx := context.Background()

	t.Run("captures output", func(t *testing.T) {
		var buf bytes.Buffer
		err := x.Run(ctx, &model.Command{
			Name: "sh",
			Args: []string{"-c", "echo hello; echo oops >&2"},
		}, &buf)

		gt.NoError(t, err)
		gt.String(t, buf.String()).Contains("hello")
		gt.String(t, buf.String()).Contains("oops")
	})

	t.Run("non-zero exit returns error with code", func(t *testing.T) {
		err := x.Run(ctx, &model.Command{
			Name: "sh",
			Args: []string{"-c", "exit 3"},
		}, nil)

		gt.Error(t, err)
		gt.String(t, err.Error()).Contains("non-zero")
	})

	t.Run("missing binary returns error", func(t *testing.T) {
		err := x.Run(ctx, &model.Command{Name: "definitely-not-a-binary-1234"}, nil)
		gt.Error(t, err)
	})

	t.Run("appends env", func(t *testing.T) {
		var buf bytes.Buffer
		err := x.Run(ctx, &model.Command{
			Name: "sh",
			Args: []string{"-c", "echo $DROVER_TAG"},
			Env:  []string{"DROVER_TAG=v9.9.9"},
		}, &buf)

		gt.NoError(t, err)
		gt.String(t, buf.String()).Contains("v9.9.9")
	})

	t.Run("runs in working dir", func(t *testing.T) {
		dir := t.TempDir()
		gt.NoError(t, os.WriteFile(filepath.Join(dir, "marker"), []byte("x"), 0o644))

		var buf bytes.Buffer
		err := x.Run(ctx, &model.Command{
			Name: "ls",
			Dir:  dir,
		}, &buf)

		gt.NoError(t, err)
		gt.String(t, buf.String()).Contains("marker")
	})

	t.Run("feeds stdin", func(t *testing.T) {
		var buf bytes.Buffer
		err := x.Run(ctx, &model.Command{
			Name:  "cat",
			Stdin: "from stdin",
		}, &buf)

		gt.NoError(t, err)
		gt.Value(t, strings.TrimSpace(buf.String())).Equal("from stdin")
	})

	t.Run("cancellation kills process", func(t *testing.T) {
		cctx, cancel := context.WithTimeout(ctx, 100*time.Millisecond)
		defer cancel()

		start := time.Now()
		err := x.Run(cctx, &model.Command{
			Name: "sleep",
			Args: []string{"10"},
		}, nil)

		gt.Error(t, err)
		gt.True(t, time.Since(start) < 5*time.Second)
	})

	t.Run("already cancelled context never starts", func(t *testing.T) {
		cctx, cancel := context.WithCancel(ctx)
		cancel()

		err := x.Run(cctx, &model.Command{Name: "sh", Args: []string{"-c", "true"}}, nil)
		gt.Error(t, err)
		gt.String(t, err.Error()).Contains("not started")
	})
}
