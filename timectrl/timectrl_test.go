package timectrl

import (
	"testing"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/signalsfoundry/latency-sim/core"
	"github.com/signalsfoundry/latency-sim/model"
)

func newTracker(t *testing.T) *core.Tracker {
	t.Helper()
	path := &model.Path{
		Nodes: []model.Node{{Name: "a"}, {Name: "b"}},
		Hops: []model.Hop{{
			BandwidthBps:        1.2e6,
			DistanceM:           8e6,
			PropagationSpeedMps: 2e8,
		}},
		PacketSizeBytes: 1500,
	}
	tracker, err := core.NewTracker(core.NewDelayModel(core.DefaultConfig()), path)
	if err != nil {
		t.Fatalf("NewTracker: %v", err)
	}
	return tracker
}

func TestTimeController_RealTimeTicksWithTheClock(t *testing.T) {
	tracker := newTracker(t)
	mock := clock.NewMock()

	tc := NewTimeController(tracker, 10*time.Millisecond, RealTime).WithClock(mock)

	var results []core.TickResult
	tc.AddListener(func(r core.TickResult) { results = append(results, r) })

	done := tc.Start(50 * time.Millisecond)
	for i := 0; i < 5; i++ {
		// Give the controller goroutine a chance to block on the ticker
		// before firing it.
		time.Sleep(time.Millisecond)
		mock.Add(10 * time.Millisecond)
	}
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("controller did not finish")
	}

	if len(results) != 5 {
		t.Fatalf("listener saw %d ticks, want 5", len(results))
	}
	if got := tracker.Time(); got != 50 {
		t.Fatalf("tracker time = %v ms, want 50", got)
	}
	if results[4].Snapshot.TimeMs != 50 {
		t.Fatalf("final snapshot at %v ms, want 50", results[4].Snapshot.TimeMs)
	}
	if tracker.Playing() {
		t.Error("tracker still playing after the run")
	}
}

func TestTimeController_AcceleratedRunsWithoutWaiting(t *testing.T) {
	tracker := newTracker(t)
	tc := NewTimeController(tracker, 10*time.Millisecond, Accelerated)

	ticks := 0
	tc.AddListener(func(core.TickResult) { ticks++ })

	select {
	case <-tc.Start(100 * time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("accelerated run did not finish")
	}

	if ticks != 10 {
		t.Fatalf("ticks = %d, want 10", ticks)
	}
	if got := tracker.Time(); got != 100 {
		t.Fatalf("tracker time = %v ms, want 100", got)
	}
}

func TestTimeController_StopEndsUnboundedRun(t *testing.T) {
	tracker := newTracker(t)
	tc := NewTimeController(tracker, time.Millisecond, Accelerated)

	done := tc.Start(0)
	time.Sleep(5 * time.Millisecond)
	tc.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not end the unbounded run")
	}

	if tracker.Time() == 0 {
		t.Error("run never advanced the tracker")
	}
	if tracker.Playing() {
		t.Error("tracker still playing after Stop")
	}

	// Idempotent.
	tc.Stop()
}

func TestTimeController_StopInterruptsRealTimeRun(t *testing.T) {
	tracker := newTracker(t)
	mock := clock.NewMock()
	tc := NewTimeController(tracker, 10*time.Millisecond, RealTime).WithClock(mock)

	// The goroutine parks on the ticker; Stop must not wait for a tick.
	done := tc.Start(time.Hour)
	time.Sleep(time.Millisecond)
	tc.Stop()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Stop did not interrupt the ticker wait")
	}
}

func TestTimeController_DeliversJourneyEvents(t *testing.T) {
	tracker := newTracker(t) // 50 ms one-way journey, single send mode
	tc := NewTimeController(tracker, 10*time.Millisecond, Accelerated)

	delivered := 0
	tc.AddListener(func(r core.TickResult) {
		for _, ev := range r.Events {
			if ev.Kind == core.EventPacketDelivered {
				delivered++
			}
		}
	})

	select {
	case <-tc.Start(100 * time.Millisecond):
	case <-time.After(5 * time.Second):
		t.Fatal("run did not finish")
	}
	if delivered != 1 {
		t.Fatalf("delivered events = %d, want exactly 1", delivered)
	}
}
