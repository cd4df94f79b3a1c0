package async_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/m-mizutani/ctxlog"
	"github.com/m-mizutani/drover/pkg/utils/async"
	"github.com/m-mizutani/gt"
)

// safeBuffer is a thread-safe buffer for concurrent logging
type safeBuffer struct {
	b bytes.Buffer
	m sync.Mutex
}

func (sb *safeBuffer) Write(p []byte) (int, error) {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.Write(p)
}

func (sb *safeBuffer) String() string {
	sb.m.Lock()
	defer sb.m.Unlock()
	return sb.b.String()
}

func TestDetach(t *testing.T) {
	logger := slog.Default()
	ctx, cancel := context.WithCancel(context.Background())
	ctx = ctxlog.With(ctx, logger)
	cancel()

	detached := async.Detach(ctx)

	select {
	case <-detached.Done():
		t.Error("detached context was cancelled")
	default:
	}
	gt.NotNil(t, ctxlog.From(detached))
}

func TestDispatch(t *testing.T) {
	t.Run("executes handler asynchronously", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup
		executed := false

		wg.Add(1)
		async.Dispatch(ctx, func(ctx context.Context) error {
			defer wg.Done()
			executed = true
			return nil
		})

		wg.Wait()
		gt.True(t, executed)
	})

	t.Run("handles errors without crashing", func(t *testing.T) {
		ctx := context.Background()
		var wg sync.WaitGroup

		wg.Add(1)
		async.Dispatch(ctx, func(ctx context.Context) error {
			defer wg.Done()
			return errors.New("test error")
		})

		wg.Wait()
	})

	t.Run("recovers from panic with stack trace", func(t *testing.T) {
		logBuf := &safeBuffer{}
		logger := slog.New(slog.NewTextHandler(logBuf, &slog.HandlerOptions{
			Level: slog.LevelError,
		}))

		ctx := ctxlog.With(context.Background(), logger)
		done := make(chan struct{}, 1)

		async.Dispatch(ctx, func(ctx context.Context) error {
			defer func() {
				done <- struct{}{}
			}()
			panic("test panic with stack")
		})

		select {
		case <-done:
		case <-time.After(1 * time.Second):
			t.Fatal("handler did not complete within timeout")
		}

		// The panic log is written after the handler's deferred signal, so
		// poll briefly instead of reading immediately.
		deadline := time.Now().Add(1 * time.Second)
		var logOutput string
		for time.Now().Before(deadline) {
			logOutput = logBuf.String()
			if strings.Contains(logOutput, "panic in async handler") {
				break
			}
			time.Sleep(10 * time.Millisecond)
		}

		gt.True(t, strings.Contains(logOutput, "panic in async handler"))
		gt.True(t, strings.Contains(logOutput, "test panic with stack"))
		gt.True(t, strings.Contains(logOutput, "goroutine"))
	})

	t.Run("creates new background context", func(t *testing.T) {
		ctx, cancel := context.WithCancel(context.Background())

		var wg sync.WaitGroup
		wg.Add(1)

		async.Dispatch(ctx, func(newCtx context.Context) error {
			defer wg.Done()

			cancel()

			select {
			case <-newCtx.Done():
				t.Error("new context was cancelled")
			default:
			}

			return nil
		})

		wg.Wait()
	})
}
