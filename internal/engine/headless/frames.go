package headless

import (
	"sync"
	"time"

	"github.com/justyntemme/assetgrid/internal/engine"
)

// DefaultFrameInterval paces the ticker at roughly 60 frames per second.
const DefaultFrameInterval = time.Second / 60

// Ticker is a FrameScheduler driven by a time.Ticker. Due callbacks run
// through the dispatcher so frames execute on the event loop.
type Ticker struct {
	dispatch engine.Dispatcher
	interval time.Duration

	mu      sync.Mutex
	nextID  int
	pending map[int]func(time.Time)
	running bool
	stop    chan struct{}
}

// NewTicker returns a scheduler. The ticker goroutine starts with the first
// request and stops when nothing is pending.
func NewTicker(dispatch engine.Dispatcher, interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultFrameInterval
	}
	return &Ticker{dispatch: dispatch, interval: interval, pending: make(map[int]func(time.Time))}
}

func (t *Ticker) RequestFrame(fn func(time.Time)) func() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.nextID++
	id := t.nextID
	t.pending[id] = fn
	if !t.running {
		t.running = true
		t.stop = make(chan struct{})
		go t.loop(t.stop)
	}
	return func() {
		t.mu.Lock()
		defer t.mu.Unlock()
		delete(t.pending, id)
	}
}

// Pending returns the number of scheduled callbacks.
func (t *Ticker) Pending() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}

// Stop drops every pending callback and ends the ticker goroutine.
func (t *Ticker) Stop() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pending = make(map[int]func(time.Time))
	if t.running {
		close(t.stop)
		t.running = false
	}
}

func (t *Ticker) loop(stop chan struct{}) {
	tick := time.NewTicker(t.interval)
	defer tick.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-tick.C:
			t.mu.Lock()
			if len(t.pending) == 0 {
				if t.running && t.stop == stop {
					t.running = false
				}
				t.mu.Unlock()
				return
			}
			due := t.pending
			t.pending = make(map[int]func(time.Time))
			t.mu.Unlock()
			t.dispatch.Post(func() {
				for _, fn := range due {
					fn(now)
				}
			})
		}
	}
}
