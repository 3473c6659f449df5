package exchange

import (
	"context"
	"sync"
	"time"

	"github.com/lotas/tabspeicher/internal/applog"
)

// ExportTimeout bounds how long a caller waits for an export hand-off.
const ExportTimeout = time.Minute

// completion is a single-resolution future. Resolving twice is a no-op,
// so a late writer cannot re-fire a waiter that already timed out.
type completion struct {
	once sync.Once
	done chan struct{}
	path string
	err  error
}

func newCompletion() *completion {
	return &completion{done: make(chan struct{})}
}

func (c *completion) resolve(path string, err error) {
	c.once.Do(func() {
		c.path = path
		c.err = err
		close(c.done)
	})
}

// wait blocks until resolution or timeout. ok is false on timeout; the
// export may still finish in the background, but nobody is listening.
func (c *completion) wait(timeout time.Duration) (path string, err error, ok bool) {
	select {
	case <-c.done:
		return c.path, c.err, true
	case <-time.After(timeout):
		return "", nil, false
	}
}

// ExportDetached runs Export under the completion future. A timed-out
// or failed export is a silent failure: logged, not surfaced, because
// the user canceling a file save is not an error. ok reports whether
// the file is known to have been written.
func (e *Exchanger) ExportDetached(ctx context.Context) (string, bool) {
	c := newCompletion()
	go func() {
		path, err := e.Export(ctx)
		c.resolve(path, err)
	}()

	path, err, done := c.wait(ExportTimeout)
	if !done {
		applog.Info("export.timeout")
		return "", false
	}
	if err != nil {
		applog.Error("export.failed", err)
		return "", false
	}
	return path, true
}
