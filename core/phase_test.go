package core

import (
	"math"
	"testing"

	"github.com/signalsfoundry/latency-sim/model"
)

// phaseSegments is the two-hop timeline used by the phase table tests:
//
//	transmit hop 0: first bit [0, 0.0005], last bit [0.12, 0.1205]
//	processing at node 1: [0.1205, 0.6205]
//	queuing hop 1: [0.6205, 5.6205]
//	transmit hop 1: first bit [5.6205, 5.7205], last bit [5.7405, 5.8405]
func phaseSegments(t *testing.T) []Segment {
	t.Helper()
	path := &model.Path{
		Nodes: []model.Node{{Name: "a"}, {Name: "b"}, {Name: "c"}},
		Hops: []model.Hop{
			{
				BandwidthBps:        100e6,
				DistanceM:           100,
				PropagationSpeedMps: 2e8,
				Processing:          model.ExplicitMs(0.5),
			},
			{
				BandwidthBps:        100e6,
				DistanceM:           20000,
				PropagationSpeedMps: 2e8,
				Queuing:             model.ExplicitMs(5),
			},
		},
		PacketSizeBytes: 1500,
	}
	segments, err := NewDelayModel(DefaultConfig()).BuildSegments(path)
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}
	return segments
}

func TestResolvePhase_Table(t *testing.T) {
	segments := phaseSegments(t)

	tests := []struct {
		name     string
		elapsed  float64
		phase    model.Phase
		hop      int
		progress float64
	}{
		{"before send", -1, model.PhaseWaiting, 0, 0},
		{"nan", math.NaN(), model.PhaseWaiting, 0, 0},
		{"send instant", 0, model.PhaseTransmitting, 0, 0},
		{"mid transmit", 0.06, model.PhaseTransmitting, 0, 0.5},
		{"last bit on wire", 0.12, model.PhasePropagating, 0, 1},
		{"processing start", 0.1205, model.PhaseProcessing, 0, 0},
		{"mid processing", 0.3705, model.PhaseProcessing, 0, 0.5},
		{"queuing", 3.1205, model.PhaseQueuing, 1, 0.5},
		{"hop 1 transmit", 5.6805, model.PhaseTransmitting, 1, 0.5},
		{"delivered exactly", 5.8405, model.PhaseDelivered, 1, 1},
		{"long after", 100, model.PhaseDelivered, 1, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ResolvePhase(segments, tt.elapsed)
			if got.Phase != tt.phase {
				t.Fatalf("phase = %v, want %v", got.Phase, tt.phase)
			}
			if got.Phase == model.PhaseWaiting {
				return
			}
			if got.HopIndex != tt.hop {
				t.Errorf("hop = %d, want %d", got.HopIndex, tt.hop)
			}
			if !almostEqual(got.Progress, tt.progress) {
				t.Errorf("progress = %v, want %v", got.Progress, tt.progress)
			}
		})
	}
}

func TestResolvePhase_DualEdgePropagation(t *testing.T) {
	segments := phaseSegments(t)

	// Hop 1 transmit: first bit [5.6205, 5.7205], last bit [5.7405, 5.8405].
	// Halfway through the last bit's flight the first bit has landed.
	got := ResolvePhase(segments, 5.7905)
	if got.Phase != model.PhasePropagating {
		t.Fatalf("phase = %v, want propagating", got.Phase)
	}
	if !almostEqual(got.Progress, 1) {
		t.Errorf("leading progress = %v, want 1 (first bit arrived)", got.Progress)
	}
	if !almostEqual(got.TrailingProgress, 0.5) {
		t.Errorf("trailing progress = %v, want 0.5", got.TrailingProgress)
	}

	// Hop 0's transmission dwarfs its propagation, so the moment the last
	// bit leaves the wire both edges are effectively down the link.
	got = ResolvePhase(segments, 0.1204)
	if got.Phase != model.PhasePropagating {
		t.Fatalf("phase = %v, want propagating", got.Phase)
	}
	if got.TrailingProgress < 0 || got.TrailingProgress > 1 {
		t.Errorf("trailing progress = %v, want within [0, 1]", got.TrailingProgress)
	}
	if got.Progress < got.TrailingProgress {
		t.Errorf("leading %v behind trailing %v", got.Progress, got.TrailingProgress)
	}
}

func TestResolvePhase_EmptyTimeline(t *testing.T) {
	got := ResolvePhase(nil, 0)
	if got.Phase != model.PhaseDelivered {
		t.Fatalf("phase = %v, want delivered for empty timeline", got.Phase)
	}
}

func TestResolvePhase_ZeroDurationSpan(t *testing.T) {
	// A zero-propagation, zero-transmission hop still resolves.
	segments := []Segment{{
		Kind: SegmentTransmit,
	}, {
		Kind:    SegmentProcessing,
		StartMs: 0,
		EndMs:   1,
		AtNode:  1,
	}}
	got := ResolvePhase(segments, 0)
	if got.Phase != model.PhasePropagating {
		t.Fatalf("phase = %v, want propagating", got.Phase)
	}
	if !almostEqual(got.Progress, 1) || !almostEqual(got.TrailingProgress, 1) {
		t.Errorf("progress = %v/%v, want 1/1 for zero-duration hop", got.Progress, got.TrailingProgress)
	}
}

func TestResolvePhase_SeekIsReproducible(t *testing.T) {
	segments := phaseSegments(t)
	times := []float64{0, 0.05, 0.12, 0.3, 2, 5.7, 5.84, 10}
	for _, at := range times {
		a := ResolvePhase(segments, at)
		b := ResolvePhase(segments, at)
		if a != b {
			t.Fatalf("ResolvePhase(%v) not reproducible: %+v vs %+v", at, a, b)
		}
	}
}
