package async

import (
	"context"
	"runtime/debug"
	"sync"

	"github.com/bssprx/data-platform-containers/pkg/utils/logging"
)

var inflight sync.WaitGroup

// Dispatch runs handler in a goroutine detached from ctx cancellation.
// The logger of ctx is carried over; errors and panics are logged with task.
func Dispatch(ctx context.Context, task string, handler func(ctx context.Context) error) {
	newCtx := newBackgroundContext(ctx)

	inflight.Add(1)
	go func() {
		defer inflight.Done()
		defer func() {
			if r := recover(); r != nil {
				logging.From(newCtx).Error("panic in async handler",
					"task", task,
					"recover", r,
					"stack", string(debug.Stack()))
			}
		}()

		if err := handler(newCtx); err != nil {
			logging.From(newCtx).Error("error in async handler", "task", task, "error", err)
		}
	}()
}

// Wait blocks until all dispatched handlers returned or ctx is done.
// Used on server shutdown so pending login bookkeeping is not dropped.
func Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func newBackgroundContext(ctx context.Context) context.Context {
	return logging.With(context.Background(), logging.From(ctx))
}
