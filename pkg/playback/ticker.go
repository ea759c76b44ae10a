package playback

import (
	"context"
	"sync"
	"time"
)

// DefaultTickInterval gives roughly 10 updates per second.
const DefaultTickInterval = 100 * time.Millisecond

// Ticker is the wall-clock tick source that drives playback. Every tick it
// calls the registered listeners with the nominal interval, so a Player
// advances by the same amount per tick regardless of scheduling jitter.
type Ticker struct {
	mu        sync.RWMutex
	interval  time.Duration
	listeners []func(elapsed time.Duration)
}

// NewTicker creates a Ticker. A non-positive interval selects DefaultTickInterval.
func NewTicker(interval time.Duration) *Ticker {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	return &Ticker{interval: interval}
}

// Interval returns the tick period.
func (t *Ticker) Interval() time.Duration {
	return t.interval
}

// AddListener registers a callback invoked on every tick.
func (t *Ticker) AddListener(fn func(elapsed time.Duration)) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.listeners = append(t.listeners, fn)
}

// Drive registers p so that it advances on every tick.
func (t *Ticker) Drive(p *Player) {
	t.AddListener(func(elapsed time.Duration) {
		p.Advance(elapsed)
	})
}

// Run ticks until ctx is cancelled and returns ctx.Err().
func (t *Ticker) Run(ctx context.Context) error {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			t.Tick()
		}
	}
}

// Start runs the ticker in a separate goroutine. The returned channel is
// closed once ctx is cancelled and the last tick has been delivered.
func (t *Ticker) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = t.Run(ctx)
	}()
	return done
}

// Tick delivers one tick to every listener immediately.
func (t *Ticker) Tick() {
	t.mu.RLock()
	listeners := append([]func(time.Duration){}, t.listeners...)
	t.mu.RUnlock()

	for _, fn := range listeners {
		fn(t.interval)
	}
}
