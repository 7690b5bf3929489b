package app

import (
	"context"
	"errors"
	"sync"
)

// ErrLoopStopped is returned by Do once the loop has exited.
var ErrLoopStopped = errors.New("app: event loop stopped")

// Loop is the single goroutine every catalog, view, preview and fullscreen
// mutation runs on. Other goroutines hand work to it through Post or Do.
type Loop struct {
	events chan func()
	done   chan struct{}
	once   sync.Once
}

// NewLoop returns a loop that is not yet running.
func NewLoop() *Loop {
	return &Loop{
		events: make(chan func(), 64),
		done:   make(chan struct{}),
	}
}

// Post queues fn. Work posted after the loop stopped is dropped.
func (l *Loop) Post(fn func()) {
	select {
	case l.events <- fn:
	case <-l.done:
	}
}

// Do runs fn on the loop and waits for it. It must not be called from the
// loop itself.
func (l *Loop) Do(fn func()) error {
	finished := make(chan struct{})
	select {
	case l.events <- func() { defer close(finished); fn() }:
	case <-l.done:
		return ErrLoopStopped
	}
	select {
	case <-finished:
		return nil
	case <-l.done:
		return ErrLoopStopped
	}
}

// Run processes posted work until ctx is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	defer l.once.Do(func() { close(l.done) })
	for {
		select {
		case fn := <-l.events:
			fn()
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// Done is closed when Run returns.
func (l *Loop) Done() <-chan struct{} {
	return l.done
}
