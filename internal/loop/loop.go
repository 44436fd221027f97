// Package loop provides the single-threaded cooperative executor that the
// overlay engine runs on.
//
// Every interaction with the rendering surface, the lifecycle manager and the
// animation scheduler happens inside a function posted to a Loop. Goroutines
// that finish asynchronous work (remote fetches, timers, HTTP handlers) post
// their continuation back instead of touching engine state directly, so the
// engine never needs locks of its own and ordering is event-queue order.
package loop

import (
	"context"
	"errors"
	"sync"
)

// ErrClosed is returned when work is posted to a loop that has stopped.
var ErrClosed = errors.New("loop closed")

// Poster is the narrow interface components use to schedule continuations.
type Poster interface {
	Post(fn func()) bool
}

// Loop is a FIFO executor. Posted functions run one at a time on the
// goroutine that calls Run (or Drain in tests).
type Loop struct {
	mu     sync.Mutex
	queue  []func()
	wake   chan struct{}
	closed bool
}

// New creates an idle loop.
func New() *Loop {
	return &Loop{wake: make(chan struct{}, 1)}
}

// Post enqueues fn. It never blocks and reports false once the loop is closed.
func (l *Loop) Post(fn func()) bool {
	l.mu.Lock()
	if l.closed {
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

// Run processes posted functions until ctx is cancelled. Pending work is
// dropped when Run returns and later Posts are rejected.
func (l *Loop) Run(ctx context.Context) error {
	defer l.close()
	for {
		for fn := l.next(); fn != nil; fn = l.next() {
			fn()
			if ctx.Err() != nil {
				return ctx.Err()
			}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// RunPending executes everything queued right now, plus anything those
// functions enqueue, and returns the number of functions run. It does not
// wait for work posted later by other goroutines.
func (l *Loop) RunPending() int {
	n := 0
	for fn := l.next(); fn != nil; fn = l.next() {
		fn()
		n++
	}
	return n
}

// Drain runs posted work on the calling goroutine until done reports true
// or ctx ends. Tests use it to wait for asynchronous completions without a
// background Run.
func (l *Loop) Drain(ctx context.Context, done func() bool) error {
	for {
		l.RunPending()
		if done() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.wake:
		}
	}
}

// Call runs fn on the loop and waits for its result. It must not be called
// from a function already running on the loop.
func (l *Loop) Call(ctx context.Context, fn func() error) error {
	result := make(chan error, 1)
	if !l.Post(func() { result <- fn() }) {
		return ErrClosed
	}
	select {
	case err := <-result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (l *Loop) next() func() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) == 0 {
		return nil
	}
	fn := l.queue[0]
	l.queue[0] = nil
	l.queue = l.queue[1:]
	return fn
}

func (l *Loop) close() {
	l.mu.Lock()
	l.closed = true
	l.queue = nil
	l.mu.Unlock()
}
