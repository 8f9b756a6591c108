package core

import (
	"math"

	"github.com/signalsfoundry/latency-sim/model"
)

// ResolvePhase maps an elapsed time since send onto a packet's phase,
// governing hop, and fractional progress. It is pure and total: every
// real-valued elapsed time resolves to a definite phase, which is what
// makes seeking reproducible.
//
// The returned state carries only journey-derived fields; identity
// fields (ID, SendTimeMs, Color) are filled in by the Tracker.
func ResolvePhase(segments []Segment, elapsedMs float64) model.PacketState {
	if math.IsNaN(elapsedMs) || elapsedMs < 0 {
		return model.PacketState{Phase: model.PhaseWaiting}
	}
	if elapsedMs >= JourneyDuration(segments) {
		state := model.PacketState{Phase: model.PhaseDelivered, Progress: 1}
		if len(segments) > 0 {
			state.HopIndex = segments[len(segments)-1].HopIndex
		}
		return state
	}

	for _, seg := range segments {
		if elapsedMs > seg.EndMs {
			continue
		}
		// Clamp into the segment: floating-point gaps between adjacent
		// segments resolve to the next segment at zero progress.
		at := math.Max(elapsedMs, seg.StartMs)

		switch seg.Kind {
		case SegmentQueuing, SegmentProcessing:
			phase := model.PhaseQueuing
			if seg.Kind == SegmentProcessing {
				phase = model.PhaseProcessing
			}
			return model.PacketState{
				Phase:    phase,
				HopIndex: seg.HopIndex,
				Progress: spanProgress(at, seg.StartMs, seg.EndMs),
			}
		case SegmentTransmit:
			return resolveTransmit(seg, at)
		}
	}

	// Unreachable for well-formed segment lists; treat as delivered.
	return model.PacketState{Phase: model.PhaseDelivered, Progress: 1}
}

// resolveTransmit sub-resolves a transmit segment into transmitting
// (bits still being pushed onto the wire) or propagating (first bit in
// flight, trailing edge tracked separately for dual-edge rendering).
func resolveTransmit(seg Segment, at float64) model.PacketState {
	if at < seg.LastBitStart {
		return model.PacketState{
			Phase:    model.PhaseTransmitting,
			HopIndex: seg.HopIndex,
			Progress: spanProgress(at, seg.FirstBitStart, seg.LastBitStart),
		}
	}

	state := model.PacketState{
		Phase:    model.PhasePropagating,
		HopIndex: seg.HopIndex,
	}
	if seg.PropagationMs <= 0 {
		state.Progress = 1
		state.TrailingProgress = 1
		return state
	}
	// Leading edge: first bit, launched at FirstBitStart. It may already
	// have arrived while the last bit is still in flight.
	state.Progress = clamp((at-seg.FirstBitStart)/seg.PropagationMs, 0, 1)
	state.TrailingProgress = clamp((at-seg.LastBitStart)/seg.PropagationMs, 0, 1)
	return state
}

// spanProgress is fractional progress through [start, end], clamped to
// [0, 1]. A zero-duration span completes immediately.
func spanProgress(at, start, end float64) float64 {
	if end <= start {
		return 1
	}
	return clamp((at-start)/(end-start), 0, 1)
}
