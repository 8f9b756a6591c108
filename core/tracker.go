package core

import (
	"math"
	"sort"
	"sync"

	"github.com/signalsfoundry/latency-sim/model"
)

// EventKind identifies a simulation event emitted by the Tracker.
type EventKind string

const (
	EventTick            EventKind = "tick"
	EventPacketSent      EventKind = "packet_sent"
	EventPacketDelivered EventKind = "packet_delivered"
	// EventPacketLimit reports a spawn attempt skipped because the
	// concurrent-packet cap was reached. The tracker keeps running.
	EventPacketLimit EventKind = "packet_limit_exceeded"
	// EventCompleted fires once in single send mode when the sole
	// packet has been delivered.
	EventCompleted EventKind = "completed"
)

// SimulationEvent is one observable state change. Events are returned
// from Advance/SetTime/ManualSend rather than delivered through
// registered callbacks, so consumers inspect return values and the
// tracker carries no listener lifecycle.
type SimulationEvent struct {
	Kind     EventKind `json:"kind"`
	PacketID int       `json:"packet_id"` // -1 for events not tied to a packet
	TimeMs   float64   `json:"time_ms"`
}

// Snapshot is the per-tick view handed to renderers. All packets in one
// snapshot are resolved against the same time value, so cross-packet
// state is mutually consistent.
type Snapshot struct {
	TimeMs      float64             `json:"time_ms"`
	Packets     []model.PacketState `json:"packets"`
	QueueDepths []int               `json:"queue_depths"`
}

// TickResult pairs a snapshot with the events emitted since the
// previous call.
type TickResult struct {
	Snapshot Snapshot          `json:"snapshot"`
	Events   []SimulationEvent `json:"events,omitempty"`
}

// manualIDBase offsets manually injected packet IDs so that scheduled
// packets can keep their schedule slot as a stable ID across seeks.
const manualIDBase = 1 << 20

type packetRecord struct {
	id         int
	sendTimeMs float64
	color      string
	scheduled  bool
	state      model.PacketState
}

// Tracker owns simulated time, playback speed, and the collection of
// in-flight packets for one path. It never runs a loop of its own: a
// host drives it with Advance calls (typically once per animation
// frame) or direct SetTime seeks, both synchronous.
//
// Seeks recompute every packet from scratch, so SetTime(t) yields the
// same states as reaching t through any sequence of Advance calls; the
// tracker keeps no hidden accumulators.
type Tracker struct {
	mu sync.Mutex

	model    *DelayModel
	cfg      Config
	path     *model.Path
	segments []Segment
	// journeyMs is the path's one-way total delay; it bounds how long a
	// packet stays live after its send time.
	journeyMs float64

	playing  bool
	speedMul float64
	timeMs   float64
	// windowMs bounds seeks and scheduled sends when positive.
	windowMs float64

	mode       model.SendMode
	intervalMs float64
	burstSize  int

	// packets is an arena keyed by packet ID. Scheduled packets use
	// their schedule slot as ID; manual packets count up from
	// manualIDBase.
	packets map[int]*packetRecord
	order   []int
	// skipped records schedule slots whose spawn was refused at the
	// cap; they never spawn later and never re-report.
	skipped        map[int]bool
	nextManualID   int
	completedFired bool
}

// NewTracker builds the journey timeline for path and returns a tracker
// in single send mode, paused, at time zero. It fails only on an
// invalid path.
func NewTracker(m *DelayModel, path *model.Path) (*Tracker, error) {
	segments, err := m.BuildSegments(path)
	if err != nil {
		return nil, err
	}
	return &Tracker{
		model:        m,
		cfg:          m.Config(),
		path:         path,
		segments:     segments,
		journeyMs:    JourneyDuration(segments),
		speedMul:     1,
		mode:         model.SendSingle,
		burstSize:    1,
		packets:      make(map[int]*packetRecord),
		skipped:      make(map[int]bool),
		nextManualID: manualIDBase,
	}, nil
}

// Segments returns the precomputed journey timeline.
func (t *Tracker) Segments() []Segment {
	return t.segments
}

// Play starts auto-advancing on subsequent Advance calls. Idempotent.
func (t *Tracker) Play() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = true
}

// Pause stops time from advancing. Idempotent; there is no in-flight
// work to cancel.
func (t *Tracker) Pause() {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.playing = false
}

// Playing reports whether the tracker is auto-advancing.
func (t *Tracker) Playing() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.playing
}

// SetPlaybackSpeed sets the simulated-ms-per-wall-ms multiplier.
// Non-positive or NaN values are ignored.
func (t *Tracker) SetPlaybackSpeed(s float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if s > 0 && !math.IsNaN(s) {
		t.speedMul = s
	}
}

// SetWindow bounds the simulation window: scheduled sends stop at the
// window's end and seeks clamp to it. Zero means unbounded.
func (t *Tracker) SetWindow(ms float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if ms >= 0 && !math.IsNaN(ms) {
		t.windowMs = ms
	}
}

// SetSendMode switches the spawn policy. The packet arena is rebuilt
// under the new policy at the current time.
func (t *Tracker) SetSendMode(mode model.SendMode, intervalMs float64, burstSize int) TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.mode = mode
	t.intervalMs = intervalMs
	if t.intervalMs <= 0 || math.IsNaN(t.intervalMs) {
		t.intervalMs = 1
	}
	t.burstSize = burstSize
	if t.burstSize < 1 {
		t.burstSize = 1
	}
	return t.rebuildLocked()
}

// Time returns the current simulation time in milliseconds.
func (t *Tracker) Time() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.timeMs
}

// Advance moves simulation time forward by deltaMs × playback speed
// while playing, applies the send policy, re-resolves every packet
// against the new time, and prunes delivered packets past the grace
// window. When paused it only reports the current state.
func (t *Tracker) Advance(deltaMs float64) TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []SimulationEvent
	if t.playing && deltaMs > 0 && !math.IsNaN(deltaMs) {
		t.timeMs += deltaMs * t.speedMul
		events = append(events, SimulationEvent{Kind: EventTick, PacketID: -1, TimeMs: t.timeMs})
	}
	t.syncLocked(&events)
	return TickResult{Snapshot: t.snapshotLocked(), Events: events}
}

// SetTime seeks directly to ms, clamped to the valid range. UI sliders
// transiently emit negative or NaN values, so out-of-range input is
// clamped rather than rejected. All packets are recomputed from
// scratch.
func (t *Tracker) SetTime(ms float64) TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	if math.IsNaN(ms) || ms < 0 {
		ms = 0
	}
	if t.windowMs > 0 && ms > t.windowMs {
		ms = t.windowMs
	}
	t.timeMs = ms
	return t.rebuildLocked()
}

// Reset returns to time zero and drops every packet, manual ones
// included. Mode, speed, and playback state are kept.
func (t *Tracker) Reset() TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.timeMs = 0
	t.packets = make(map[int]*packetRecord)
	t.order = t.order[:0]
	t.nextManualID = manualIDBase
	return t.rebuildLocked()
}

// ManualSend injects one packet at the current simulation time,
// independent of the clock and of the configured send mode.
func (t *Tracker) ManualSend() TickResult {
	t.mu.Lock()
	defer t.mu.Unlock()

	var events []SimulationEvent
	if len(t.packets) >= t.cfg.MaxPackets {
		events = append(events, SimulationEvent{Kind: EventPacketLimit, PacketID: -1, TimeMs: t.timeMs})
	} else {
		id := t.nextManualID
		t.nextManualID++
		t.insertLocked(&packetRecord{
			id:         id,
			sendTimeMs: t.timeMs,
			color:      t.cfg.PacketColors[id%len(t.cfg.PacketColors)],
		})
		events = append(events, SimulationEvent{Kind: EventPacketSent, PacketID: id, TimeMs: t.timeMs})
	}
	t.syncLocked(&events)
	return TickResult{Snapshot: t.snapshotLocked(), Events: events}
}

// Snapshot returns the current state without advancing anything.
func (t *Tracker) Snapshot() Snapshot {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.snapshotLocked()
}

// rebuildLocked clears all scheduled state and replays the send policy
// at the current time, so the result never depends on how the tracker
// got here. Manual packets survive with their original send times.
func (t *Tracker) rebuildLocked() TickResult {
	manual := make([]*packetRecord, 0)
	for _, id := range t.order {
		if rec := t.packets[id]; rec != nil && !rec.scheduled {
			manual = append(manual, rec)
		}
	}
	t.packets = make(map[int]*packetRecord)
	t.order = t.order[:0]
	t.skipped = make(map[int]bool)
	t.completedFired = false
	for _, rec := range manual {
		rec.state = model.PacketState{}
		t.packets[rec.id] = rec
		t.order = append(t.order, rec.id)
	}

	var events []SimulationEvent
	t.syncLocked(&events)
	return TickResult{Snapshot: t.snapshotLocked(), Events: events}
}

// syncLocked brings the arena in line with the current time: spawns
// scheduled packets whose send time has arrived and whose journey has
// not already aged out, resolves every packet, and prunes delivered
// packets past the grace window.
func (t *Tracker) syncLocked(events *[]SimulationEvent) {
	t.spawnScheduledLocked(events)
	t.resolveAllLocked(events)
}

func (t *Tracker) spawnScheduledLocked(events *[]SimulationEvent) {
	perSlot := 1
	switch t.mode {
	case model.SendSingle:
		if t.timeMs >= 0 && t.liveAt(0) {
			t.trySpawnLocked(0, 0, events)
		}
		return
	case model.SendBurst:
		perSlot = t.burstSize
	case model.SendInterval:
	default:
		return // manual: the clock never spawns
	}

	lastSendMs := t.timeMs
	if t.windowMs > 0 && lastSendMs > t.windowMs {
		lastSendMs = t.windowMs
	}
	if lastSendMs < 0 {
		return
	}
	// The small epsilon keeps a send scheduled exactly at the window's
	// end from being lost to floating-point division.
	lastSlot := int(math.Floor(lastSendMs/t.intervalMs + 1e-9))

	// Replay the schedule from slot zero, deciding every spawn or
	// refusal at its own send instant from schedule state alone: a
	// packet sent at s0 occupies a cap slot while time-s0 <= the live
	// window. The decision for a slot therefore never depends on which
	// Advance or SetTime steps the tracker took to get here, so a seek
	// and an incremental run refuse exactly the same slots.
	manual := t.manualSendTimesLocked()
	mi := 0
	var liveSends []float64 // send times of replay-live packets, ascending
	for slot := 0; slot <= lastSlot; slot++ {
		sendMs := float64(slot) * t.intervalMs
		for mi < len(manual) && manual[mi] <= sendMs {
			liveSends = append(liveSends, manual[mi])
			mi++
		}
		for len(liveSends) > 0 && sendMs-liveSends[0] > t.liveWindowMs() {
			liveSends = liveSends[1:]
		}

		for j := 0; j < perSlot; j++ {
			seq := slot*perSlot + j
			if len(liveSends) >= t.cfg.MaxPackets {
				if !t.skipped[seq] {
					t.skipped[seq] = true
					*events = append(*events, SimulationEvent{Kind: EventPacketLimit, PacketID: seq, TimeMs: sendMs})
				}
				continue
			}
			liveSends = append(liveSends, sendMs)
			if _, exists := t.packets[seq]; exists || !t.liveAt(sendMs) {
				continue
			}
			t.insertLocked(&packetRecord{
				id:         seq,
				sendTimeMs: sendMs,
				color:      t.cfg.PacketColors[seq%len(t.cfg.PacketColors)],
				scheduled:  true,
			})
			*events = append(*events, SimulationEvent{Kind: EventPacketSent, PacketID: seq, TimeMs: sendMs})
		}
	}
}

// manualSendTimesLocked returns the send times of all manual packets in
// ascending order, for merging into the schedule replay.
func (t *Tracker) manualSendTimesLocked() []float64 {
	var sends []float64
	for _, rec := range t.packets {
		if !rec.scheduled {
			sends = append(sends, rec.sendTimeMs)
		}
	}
	sort.Float64s(sends)
	return sends
}

func (t *Tracker) trySpawnLocked(seq int, sendMs float64, events *[]SimulationEvent) {
	if _, exists := t.packets[seq]; exists || t.skipped[seq] {
		return
	}
	if len(t.packets) >= t.cfg.MaxPackets {
		t.skipped[seq] = true
		*events = append(*events, SimulationEvent{Kind: EventPacketLimit, PacketID: seq, TimeMs: t.timeMs})
		return
	}
	t.insertLocked(&packetRecord{
		id:         seq,
		sendTimeMs: sendMs,
		color:      t.cfg.PacketColors[seq%len(t.cfg.PacketColors)],
		scheduled:  true,
	})
	*events = append(*events, SimulationEvent{Kind: EventPacketSent, PacketID: seq, TimeMs: sendMs})
}

func (t *Tracker) insertLocked(rec *packetRecord) {
	t.packets[rec.id] = rec
	t.order = append(t.order, rec.id)
}

func (t *Tracker) resolveAllLocked(events *[]SimulationEvent) {
	kept := t.order[:0]
	for _, id := range t.order {
		rec := t.packets[id]
		elapsed := t.timeMs - rec.sendTimeMs

		state := ResolvePhase(t.segments, elapsed)
		state.ID = rec.id
		state.SendTimeMs = rec.sendTimeMs
		state.Color = rec.color

		if state.Phase == model.PhaseDelivered && rec.state.Phase != model.PhaseDelivered {
			*events = append(*events, SimulationEvent{Kind: EventPacketDelivered, PacketID: rec.id, TimeMs: t.timeMs})
			if t.mode == model.SendSingle && rec.scheduled && !t.completedFired {
				t.completedFired = true
				*events = append(*events, SimulationEvent{Kind: EventCompleted, PacketID: rec.id, TimeMs: t.timeMs})
			}
		}
		rec.state = state

		if state.Phase == model.PhaseDelivered && elapsed > t.journeyMs+t.cfg.DeliveredGraceMs {
			delete(t.packets, id)
			continue
		}
		kept = append(kept, id)
	}
	t.order = kept
}

// liveWindowMs is how long a packet remains tracked after its send
// time: the full journey plus the delivered grace window.
func (t *Tracker) liveWindowMs() float64 {
	return t.journeyMs + t.cfg.DeliveredGraceMs
}

// liveAt reports whether a packet sent at sendMs would still be tracked
// at the current time.
func (t *Tracker) liveAt(sendMs float64) bool {
	return t.timeMs-sendMs <= t.liveWindowMs()
}

func (t *Tracker) snapshotLocked() Snapshot {
	snap := Snapshot{
		TimeMs:      t.timeMs,
		Packets:     make([]model.PacketState, 0, len(t.order)),
		QueueDepths: make([]int, len(t.path.Nodes)),
	}
	for _, id := range t.order {
		state := t.packets[id].state
		snap.Packets = append(snap.Packets, state)
		if state.Phase == model.PhaseQueuing && state.HopIndex < len(snap.QueueDepths) {
			// Queuing happens at the source node of the governing hop.
			snap.QueueDepths[state.HopIndex]++
		}
	}
	return snap
}
