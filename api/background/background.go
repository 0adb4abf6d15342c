package background

import (
	"context"
	"fmt"
	"sync"

	"github.com/sirupsen/logrus"
)

// Background runs best-effort tasks outside of the request lifecycle,
// such as deleting externally hosted video assets after a local delete.
// Tasks are tracked so shutdown can wait for in-flight work.
type Background struct {
	log logrus.FieldLogger
	wg  sync.WaitGroup
}

func New(log logrus.FieldLogger) *Background {
	return &Background{log: log}
}

// Add runs fn on its own goroutine. Panics and errors are logged and
// swallowed: background tasks must never take down the server nor roll
// back the request that spawned them.
func (b *Background) Add(name string, fn func() error) {
	b.wg.Add(1)

	go func() {
		defer b.wg.Done()

		defer func() {
			if rec := recover(); rec != nil {
				b.log.WithField("task", name).Errorf("background task panicked: %v", rec)
			}
		}()

		if err := fn(); err != nil {
			b.log.WithField("task", name).Errorf("background task failed: %v", err)
		}
	}()
}

// Shutdown waits for in-flight tasks to finish or the context to expire.
func (b *Background) Shutdown(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		b.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for background tasks: %w", ctx.Err())
	}
}
