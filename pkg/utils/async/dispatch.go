package async

import (
	"context"
	"runtime/debug"

	"github.com/m-mizutani/ctxlog"
)

// Detach returns a context independent of ctx's cancellation but carrying
// its logger. Background work started from a request handler uses this so
// the work survives the response while keeping request-scoped log fields.
func Detach(ctx context.Context) context.Context {
	return ctxlog.With(context.Background(), ctxlog.From(ctx))
}

// Dispatch runs handler in a new goroutine on a detached context. Panics
// are recovered and logged with their stack; a returned error is logged.
// Cancellation of ctx does not reach the handler.
func Dispatch(ctx context.Context, handler func(ctx context.Context) error) {
	newCtx := Detach(ctx)

	go func() {
		defer func() {
			if r := recover(); r != nil {
				ctxlog.From(newCtx).Error("panic in async handler",
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			ctxlog.From(newCtx).Error("error in async handler", "error", err)
		}
	}()
}
