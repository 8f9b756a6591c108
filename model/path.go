package model

import (
	"errors"
	"fmt"
)

// ErrInvalidPath marks structural problems with a path: mismatched
// node/hop counts, a missing packet size, or a hop with no delay source
// at all. Callers detect it with errors.Is.
var ErrInvalidPath = errors.New("invalid path")

// Path is an ordered sequence of nodes joined by hops, plus the packet
// size carried across it. Paths are immutable inputs: they are supplied
// once per scenario load and only ever read afterwards.
type Path struct {
	Name            string
	Nodes           []Node
	Hops            []Hop
	PacketSizeBytes int
}

// Validate checks the structural invariants that every consumer of a
// path relies on. It returns an error wrapping ErrInvalidPath on the
// first violation found; numeric edge cases (zero bandwidth, out-of-range
// utilization) are not errors and are clamped downstream instead.
func (p *Path) Validate() error {
	if p == nil {
		return fmt.Errorf("%w: path is required", ErrInvalidPath)
	}
	if len(p.Hops) == 0 {
		return fmt.Errorf("%w: at least one hop is required", ErrInvalidPath)
	}
	if len(p.Nodes) != len(p.Hops)+1 {
		return fmt.Errorf("%w: %d nodes for %d hops, want %d",
			ErrInvalidPath, len(p.Nodes), len(p.Hops), len(p.Hops)+1)
	}
	if p.PacketSizeBytes <= 0 {
		return fmt.Errorf("%w: packet size must be positive, got %d",
			ErrInvalidPath, p.PacketSizeBytes)
	}
	for i, h := range p.Hops {
		if !h.HasDelaySource() {
			return fmt.Errorf("%w: hop %d has no bandwidth, distance, or delay source",
				ErrInvalidPath, i)
		}
	}
	return nil
}
