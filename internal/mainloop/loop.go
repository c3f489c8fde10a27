// Package mainloop provides the single-threaded cooperative loop that owns the
// game client state. Work is posted to the loop and runs one task at a time on
// the goroutine that called Run.
package mainloop

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrStopped is returned when work is offered to a loop that has stopped.
var ErrStopped = errors.New("main loop stopped")

// Loop is a FIFO task queue drained by a single goroutine.
type Loop struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	stopped bool

	wake     chan struct{}
	quit     chan struct{}
	stopOnce sync.Once
	wg       sync.WaitGroup
}

// New creates a loop. A nil logger disables logging.
func New(logger *zap.Logger) *Loop {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loop{
		logger: logger,
		wake:   make(chan struct{}, 1),
		quit:   make(chan struct{}),
	}
}

// Post queues fn to run on the loop. It never blocks, and is safe to call from
// the loop itself. It reports false when the loop has stopped.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.stopped {
		l.mu.Unlock()
		return false
	}
	l.queue = append(l.queue, fn)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
	return true
}

// AfterFunc runs fn on the loop once d has elapsed. The returned function
// cancels the timer and reports whether it was still pending.
func (l *Loop) AfterFunc(d time.Duration, fn func()) func() bool {
	t := time.AfterFunc(d, func() {
		l.Post(fn)
	})
	return t.Stop
}

// Every posts fn to the loop at each interval until the loop stops or the
// returned function is called.
func (l *Loop) Every(interval time.Duration, fn func()) func() {
	done := make(chan struct{})
	var once sync.Once

	l.wg.Add(1)
	go func() {
		defer l.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-l.quit:
				return
			case <-done:
				return
			case <-ticker.C:
				l.Post(fn)
			}
		}
	}()

	return func() { once.Do(func() { close(done) }) }
}

// Call runs fn on the loop and waits for it to finish.
func (l *Loop) Call(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	if !l.Post(func() {
		defer close(finished)
		fn()
	}) {
		return ErrStopped
	}
	select {
	case <-finished:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-l.quit:
		return ErrStopped
	}
}

// Run drains the queue until ctx is cancelled or Stop is called. Tasks still
// queued at that point are dropped.
func (l *Loop) Run(ctx context.Context) error {
	defer l.wg.Wait()
	defer l.Stop()

	for {
		for _, fn := range l.take() {
			select {
			case <-l.quit:
				return nil
			default:
			}
			l.run(fn)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.quit:
			return nil
		case <-l.wake:
		}
	}
}

// Stop ends Run and rejects further work. It is idempotent.
func (l *Loop) Stop() {
	l.stopOnce.Do(func() {
		l.mu.Lock()
		l.stopped = true
		l.queue = nil
		l.mu.Unlock()
		close(l.quit)
	})
}

// Done is closed once the loop has stopped.
func (l *Loop) Done() <-chan struct{} {
	return l.quit
}

func (l *Loop) take() []func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	batch := l.queue
	l.queue = nil
	return batch
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.logger.Error("main loop task panicked", zap.Any("panic", r), zap.Stack("stack"))
		}
	}()
	fn()
}
