package core

import (
	"errors"
	"testing"

	"github.com/signalsfoundry/latency-sim/model"
)

func twoHopPath() *model.Path {
	return &model.Path{
		Nodes: []model.Node{
			{Name: "laptop", Type: model.NodeHost},
			{Name: "router", Type: model.NodeRouter},
			{Name: "server", Type: model.NodeServer},
		},
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
}

func TestBuildSegments_SingleHopTimeline(t *testing.T) {
	m := NewDelayModel(DefaultConfig())
	path := &model.Path{
		Nodes: []model.Node{{Name: "a"}, {Name: "b"}},
		Hops: []model.Hop{{
			BandwidthBps:        100e6,
			DistanceM:           100,
			PropagationSpeedMps: 2e8,
			Processing:          model.ExplicitMs(0.5),
			// Even an explicit queuing delay is skipped on hop 0: an
			// unsent packet cannot be queued at the origin.
			Queuing: model.ExplicitMs(3),
		}},
		PacketSizeBytes: 1500,
	}

	segments, err := m.BuildSegments(path)
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("len(segments) = %d, want 2 (transmit, processing)", len(segments))
	}

	tx := segments[0]
	if tx.Kind != SegmentTransmit {
		t.Fatalf("segments[0].Kind = %v, want transmit", tx.Kind)
	}
	if !almostEqual(tx.FirstBitStart, 0) || !almostEqual(tx.FirstBitEnd, 0.0005) {
		t.Errorf("first bit window = [%v, %v], want [0, 0.0005]", tx.FirstBitStart, tx.FirstBitEnd)
	}
	if !almostEqual(tx.LastBitStart, 0.12) || !almostEqual(tx.LastBitEnd, 0.1205) {
		t.Errorf("last bit window = [%v, %v], want [0.12, 0.1205]", tx.LastBitStart, tx.LastBitEnd)
	}

	proc := segments[1]
	if proc.Kind != SegmentProcessing || proc.AtNode != 1 {
		t.Fatalf("segments[1] = %+v, want processing at node 1", proc)
	}
	if !almostEqual(proc.StartMs, 0.1205) || !almostEqual(proc.EndMs, 0.6205) {
		t.Errorf("processing span = [%v, %v], want [0.1205, 0.6205]", proc.StartMs, proc.EndMs)
	}
}

func TestBuildSegments_QueuingOnlyAfterFirstHop(t *testing.T) {
	m := NewDelayModel(DefaultConfig())
	segments, err := m.BuildSegments(twoHopPath())
	if err != nil {
		t.Fatalf("BuildSegments: %v", err)
	}

	var queuing []Segment
	for _, seg := range segments {
		if seg.Kind == SegmentQueuing {
			queuing = append(queuing, seg)
		}
	}
	if len(queuing) != 1 {
		t.Fatalf("queuing segments = %d, want 1", len(queuing))
	}
	if queuing[0].HopIndex != 1 || queuing[0].AtNode != 1 {
		t.Errorf("queuing segment = %+v, want hop 1 at node 1", queuing[0])
	}
	if !almostEqual(queuing[0].EndMs-queuing[0].StartMs, 5) {
		t.Errorf("queuing duration = %v, want 5", queuing[0].EndMs-queuing[0].StartMs)
	}
}

func TestBuildSegments_Invariants(t *testing.T) {
	m := NewDelayModel(DefaultConfig())
	paths := []*model.Path{
		twoHopPath(),
		{
			Nodes: []model.Node{{Name: "a"}, {Name: "b"}, {Name: "c"}, {Name: "d"}},
			Hops: []model.Hop{
				{BandwidthBps: 10e6, DistanceM: 1e4, Medium: model.MediumCopper, DeviceTier: model.TierLow},
				{BandwidthBps: 1e9, DistanceM: 2e6, Medium: model.MediumFiber, Utilization: floatPtr(0.8)},
				{BandwidthBps: 50e6, Medium: model.MediumSatellite, DeviceTier: model.TierMedium, CurrentLoad: 0.5},
			},
			PacketSizeBytes: 9000,
		},
	}

	for pi, path := range paths {
		segments, err := m.BuildSegments(path)
		if err != nil {
			t.Fatalf("path %d: BuildSegments: %v", pi, err)
		}

		cursor := 0.0
		for si, seg := range segments {
			if seg.EndMs < seg.StartMs {
				t.Errorf("path %d segment %d: end %v before start %v", pi, si, seg.EndMs, seg.StartMs)
			}
			if seg.StartMs+tolerance < cursor {
				t.Errorf("path %d segment %d: start %v before cursor %v", pi, si, seg.StartMs, cursor)
			}
			cursor = seg.EndMs

			if seg.Kind != SegmentTransmit {
				continue
			}
			if seg.FirstBitStart > seg.FirstBitEnd {
				t.Errorf("path %d segment %d: first bit window inverted", pi, si)
			}
			if seg.LastBitStart > seg.LastBitEnd {
				t.Errorf("path %d segment %d: last bit window inverted", pi, si)
			}
			if seg.FirstBitStart > seg.LastBitStart {
				t.Errorf("path %d segment %d: last bit starts before first bit", pi, si)
			}
			if !almostEqual(seg.LastBitStart-seg.FirstBitStart, seg.TransmissionMs) {
				t.Errorf("path %d segment %d: bit offset %v != transmission %v",
					pi, si, seg.LastBitStart-seg.FirstBitStart, seg.TransmissionMs)
			}
		}

		// The timeline's endpoint is the one-way total delay.
		total, err := m.TotalPathDelay(path)
		if err != nil {
			t.Fatalf("path %d: TotalPathDelay: %v", pi, err)
		}
		want := total.TotalMs
		// Hop 0 queuing never enters the timeline.
		want -= total.PerHop[0].QueuingMs
		if !almostEqual(JourneyDuration(segments), want) {
			t.Errorf("path %d: JourneyDuration = %v, want %v", pi, JourneyDuration(segments), want)
		}
	}
}

func TestBuildSegments_InvalidPath(t *testing.T) {
	m := NewDelayModel(DefaultConfig())

	_, err := m.BuildSegments(&model.Path{
		Nodes:           []model.Node{{Name: "a"}, {Name: "b"}},
		Hops:            []model.Hop{{BandwidthBps: 1e6}, {BandwidthBps: 1e6}},
		PacketSizeBytes: 100,
	})
	if !errors.Is(err, model.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath", err)
	}

	_, err = m.BuildSegments(&model.Path{
		Nodes:           []model.Node{{Name: "a"}, {Name: "b"}},
		Hops:            []model.Hop{{}},
		PacketSizeBytes: 100,
	})
	if !errors.Is(err, model.ErrInvalidPath) {
		t.Fatalf("err = %v, want ErrInvalidPath for hop without delay sources", err)
	}
}
