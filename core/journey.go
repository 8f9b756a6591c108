package core

import (
	"github.com/signalsfoundry/latency-sim/model"
)

// SegmentKind discriminates the three timed phases a journey timeline is
// built from.
type SegmentKind int

const (
	// SegmentQueuing is time spent waiting in a buffer at a node before
	// transmission onto the next hop.
	SegmentQueuing SegmentKind = iota
	// SegmentTransmit covers transmission plus propagation across one
	// hop, with separate first-bit and last-bit edges.
	SegmentTransmit
	// SegmentProcessing is time spent being examined at a hop's
	// destination device before forwarding.
	SegmentProcessing
)

// String returns the wire name of the segment kind.
func (k SegmentKind) String() string {
	switch k {
	case SegmentQueuing:
		return "queuing"
	case SegmentTransmit:
		return "transmission_propagation"
	case SegmentProcessing:
		return "processing"
	}
	return "unknown"
}

// MarshalJSON serialises the kind by name so API consumers never see
// bare enum ordinals.
func (k SegmentKind) MarshalJSON() ([]byte, error) {
	return []byte(`"` + k.String() + `"`), nil
}

// Segment is one timed entry in a packet's precomputed journey timeline.
// All times are milliseconds since the packet's send instant.
//
// StartMs/EndMs bound the segment for interval scans; for a transmit
// segment they equal FirstBitStartMs and LastBitEndMs.
type Segment struct {
	Kind     SegmentKind `json:"kind"`
	StartMs  float64     `json:"start_ms"`
	EndMs    float64     `json:"end_ms"`
	HopIndex int         `json:"hop_index"`

	// AtNode is the node index where a queuing or processing segment
	// takes place.
	AtNode int `json:"at_node"`

	// Transmit-only fields. The first bit begins propagating the moment
	// it is put on the wire; the last bit cannot start until the full
	// transmission delay has elapsed. Both travel the same distance,
	// offset in time by exactly TransmissionMs, which is what stretches
	// the packet body across the link when drawn.
	FromNode       int     `json:"from_node"`
	ToNode         int     `json:"to_node"`
	FirstBitStart  float64 `json:"first_bit_start_ms"`
	FirstBitEnd    float64 `json:"first_bit_end_ms"`
	LastBitStart   float64 `json:"last_bit_start_ms"`
	LastBitEnd     float64 `json:"last_bit_end_ms"`
	TransmissionMs float64 `json:"transmission_ms"`
	PropagationMs  float64 `json:"propagation_ms"`
}

// BuildSegments converts a path into the ordered, timed segment list for
// one packet. The final segment's end is the path's one-way total delay,
// less any queuing on hop 0, which never appears in the timeline.
func (m *DelayModel) BuildSegments(path *model.Path) ([]Segment, error) {
	if err := path.Validate(); err != nil {
		return nil, err
	}

	segments := make([]Segment, 0, 3*len(path.Hops))
	cursor := 0.0 // first-bit time; the last-bit cursor trails it by the
	// in-flight transmission offset, which collapses at every
	// store-and-forward boundary.

	for i, hop := range path.Hops {
		b := m.ComputeHopDelays(hop, path.PacketSizeBytes)

		// A packet that has not been sent yet cannot be queued at the
		// origin, so hop 0 never gets a queuing segment.
		if i > 0 && b.QueuingMs > 0 {
			segments = append(segments, Segment{
				Kind:     SegmentQueuing,
				StartMs:  cursor,
				EndMs:    cursor + b.QueuingMs,
				HopIndex: i,
				AtNode:   i,
			})
			cursor += b.QueuingMs
		}

		seg := Segment{
			Kind:           SegmentTransmit,
			HopIndex:       i,
			FromNode:       i,
			ToNode:         i + 1,
			FirstBitStart:  cursor,
			FirstBitEnd:    cursor + b.PropagationMs,
			LastBitStart:   cursor + b.TransmissionMs,
			LastBitEnd:     cursor + b.TransmissionMs + b.PropagationMs,
			TransmissionMs: b.TransmissionMs,
			PropagationMs:  b.PropagationMs,
		}
		seg.StartMs = seg.FirstBitStart
		seg.EndMs = seg.LastBitEnd
		segments = append(segments, seg)

		// The whole packet has arrived once the last bit lands.
		cursor = seg.LastBitEnd

		if b.ProcessingMs > 0 {
			segments = append(segments, Segment{
				Kind:     SegmentProcessing,
				StartMs:  cursor,
				EndMs:    cursor + b.ProcessingMs,
				HopIndex: i,
				AtNode:   i + 1,
			})
			cursor += b.ProcessingMs
		}
	}
	return segments, nil
}

// JourneyDuration returns the one-way total delay encoded by a segment
// list: the end of its final segment, or zero for an empty list.
func JourneyDuration(segments []Segment) float64 {
	if len(segments) == 0 {
		return 0
	}
	return segments[len(segments)-1].EndMs
}
