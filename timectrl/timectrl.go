package timectrl

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrRunning is returned by Start when the controller already has an
// active tick loop.
var ErrRunning = errors.New("time controller already running")

// DefaultTick is the engagement tick period.
const DefaultTick = 20 * time.Millisecond

// Mode describes how the TimeController paces ticks.
type Mode int

const (
	// RealTime fires one tick per Tick of wall-clock time.
	RealTime Mode = iota
	// Accelerated runs ticks back to back with no waiting.
	Accelerated
)

func (m Mode) String() string {
	switch m {
	case RealTime:
		return "realtime"
	case Accelerated:
		return "accelerated"
	default:
		return "unknown"
	}
}

// TickFunc is invoked synchronously on the controller's goroutine, once
// per tick. Returning false ends the loop. A tick never starts before the
// previous call has returned.
type TickFunc func(ctx context.Context, tick uint64) bool

// TimeController drives a fixed-period tick loop with explicit Start/Stop.
// Stop cancels the loop and waits for it to exit, so no tick runs after
// Stop returns.
type TimeController struct {
	mu   sync.Mutex
	Tick time.Duration
	Mode Mode

	cancel context.CancelFunc
	done   chan struct{}
	ticks  uint64
}

// NewTimeController constructs a controller. A non-positive tick falls
// back to DefaultTick.
func NewTimeController(tick time.Duration, mode Mode) *TimeController {
	if tick <= 0 {
		tick = DefaultTick
	}
	return &TimeController{
		Tick: tick,
		Mode: mode,
	}
}

// Start launches the tick loop in a separate goroutine. The loop exits when
// fn returns false, when ctx is cancelled, or when Stop is called.
func (tc *TimeController) Start(ctx context.Context, fn TickFunc) error {
	tc.mu.Lock()
	defer tc.mu.Unlock()

	if tc.done != nil {
		return ErrRunning
	}

	loopCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	tc.cancel = cancel
	tc.done = done
	tc.ticks = 0

	go tc.loop(loopCtx, cancel, done, fn)
	return nil
}

func (tc *TimeController) loop(ctx context.Context, cancel context.CancelFunc, done chan struct{}, fn TickFunc) {
	defer func() {
		cancel()
		tc.mu.Lock()
		if tc.done == done {
			tc.done = nil
			tc.cancel = nil
		}
		tc.mu.Unlock()
		close(done)
	}()

	var tickC <-chan time.Time
	if tc.Mode == RealTime {
		ticker := time.NewTicker(tc.Tick)
		defer ticker.Stop()
		tickC = ticker.C
	}

	for {
		if tickC != nil {
			select {
			case <-ctx.Done():
				return
			case <-tickC:
			}
		} else if ctx.Err() != nil {
			return
		}

		// A cancellation that raced the ticker wins.
		if ctx.Err() != nil {
			return
		}

		tc.mu.Lock()
		tc.ticks++
		n := tc.ticks
		tc.mu.Unlock()

		if !fn(ctx, n) {
			return
		}
	}
}

// Stop cancels the running loop, if any, and blocks until it has exited.
// It is safe to call repeatedly and from any goroutine except the one
// running a TickFunc.
func (tc *TimeController) Stop() {
	tc.mu.Lock()
	cancel, done := tc.cancel, tc.done
	tc.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

// Running reports whether a tick loop is active.
func (tc *TimeController) Running() bool {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.done != nil
}

// Done returns a channel closed when the current loop exits. When no loop
// is running the returned channel is already closed.
func (tc *TimeController) Done() <-chan struct{} {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	if tc.done != nil {
		return tc.done
	}
	ch := make(chan struct{})
	close(ch)
	return ch
}

// Ticks returns the number of ticks fired by the current or most recent loop.
func (tc *TimeController) Ticks() uint64 {
	tc.mu.Lock()
	defer tc.mu.Unlock()
	return tc.ticks
}
