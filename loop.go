package explorer

import (
	"context"

	"go.uber.org/zap"
)

const defaultLoopQueue = 64

// Loop runs callbacks one at a time on a single goroutine. Model state is only
// read and written from callbacks run by the loop, so it needs no locks.
type Loop struct {
	queue  chan func()
	logger *zap.Logger
}

// NewLoop returns a loop buffering up to size pending callbacks.
func NewLoop(logger *zap.Logger, size int) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	if size <= 0 {
		size = defaultLoopQueue
	}

	return &Loop{
		queue:  make(chan func(), size),
		logger: logger,
	}
}

// Post schedules fn. It is safe to call from any goroutine and blocks only
// while the queue is full. A callback running on the loop must not Post: with
// a full queue the loop would wait on itself. Work started from the loop posts
// its completion from its own goroutine, as LoadDistribution does.
func (l *Loop) Post(fn func()) {
	l.queue <- fn
}

// Run processes callbacks until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("event loop started")
	defer l.logger.Debug("event loop stopped")

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case fn := <-l.queue:
			fn()
		}
	}
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	done := make(chan struct{})
	wrapped := func() {
		defer close(done)
		fn()
	}

	select {
	case l.queue <- wrapped:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// RunPending runs the callbacks queued so far without waiting for more and
// returns how many ran. It must not be used together with Run.
func (l *Loop) RunPending() int {
	n := 0
	for {
		select {
		case fn := <-l.queue:
			fn()
			n++
		default:
			return n
		}
	}
}
