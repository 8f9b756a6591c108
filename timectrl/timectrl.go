package timectrl

import (
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/signalsfoundry/latency-sim/core"
)

// Mode describes how the TimeController advances simulation time.
type Mode int

const (
	// RealTime advances according to wall-clock time, one tick per tick
	// interval.
	RealTime Mode = iota
	// Accelerated advances as quickly as the loop can run while still
	// stepping by Tick.
	Accelerated
)

// TimeController drives a core.Tracker from wall time. The tracker owns
// no loop of its own; the controller calls Advance once per tick and
// fans the returned tick results out to registered listeners.
type TimeController struct {
	Tick time.Duration
	Mode Mode

	clk     clock.Clock
	tracker *core.Tracker

	listeners []func(core.TickResult)

	stop     chan struct{}
	stopOnce sync.Once
}

// NewTimeController constructs a controller for the given tracker.
func NewTimeController(tracker *core.Tracker, tick time.Duration, mode Mode) *TimeController {
	return &TimeController{
		Tick:    tick,
		Mode:    mode,
		clk:     clock.New(),
		tracker: tracker,
		stop:    make(chan struct{}),
	}
}

// WithClock swaps the wall clock, letting tests drive the controller
// with a mock instead of real time.
func (tc *TimeController) WithClock(clk clock.Clock) *TimeController {
	tc.clk = clk
	return tc
}

// AddListener registers a callback invoked with every tick's result.
// Listeners must be registered before Start.
func (tc *TimeController) AddListener(fn func(core.TickResult)) {
	tc.listeners = append(tc.listeners, fn)
}

// Start runs the controller for the specified wall duration in a
// separate goroutine and returns a channel that is closed when it
// finishes. A non-positive duration runs until Stop is called. The
// tracker is set playing for the run and paused after.
func (tc *TimeController) Start(duration time.Duration) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)

		tc.tracker.Play()
		defer tc.tracker.Pause()

		tickMs := float64(tc.Tick) / float64(time.Millisecond)
		elapsed := time.Duration(0)

		var ticker *clock.Ticker
		if tc.Mode == RealTime {
			ticker = tc.clk.Ticker(tc.Tick)
			defer ticker.Stop()
		}

		for {
			select {
			case <-tc.stop:
				return
			default:
			}
			if duration > 0 && elapsed >= duration {
				return
			}
			if ticker != nil {
				select {
				case <-ticker.C:
				case <-tc.stop:
					return
				}
			}
			elapsed += tc.Tick

			result := tc.tracker.Advance(tickMs)
			for _, fn := range tc.listeners {
				fn(result)
			}
		}
	}()
	return done
}

// Stop ends an unbounded or in-flight run. Safe to call more than once;
// a stopped controller cannot be restarted.
func (tc *TimeController) Stop() {
	tc.stopOnce.Do(func() { close(tc.stop) })
}
