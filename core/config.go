package core

import (
	"github.com/signalsfoundry/latency-sim/model"
)

// TierParams governs derived processing delay for one device tier.
// Derived processing = BaseMs × Multiplier × (1 + 2 × currentLoad).
type TierParams struct {
	BaseMs     float64
	Multiplier float64
}

// Config carries every tunable the engine uses. It is passed in at
// construction so that multiple engines with different tuning can
// coexist; there are no package-level knobs.
type Config struct {
	// MediumSpeedsMps maps each medium to its signal speed. Media not in
	// the table fall back to DefaultSpeedMps.
	MediumSpeedsMps map[model.MediumType]float64
	DefaultSpeedMps float64

	// SatellitePadM is added to a satellite hop's distance before the
	// propagation division: the round trip up to and down from a
	// geostationary bent-pipe relay.
	SatellitePadM float64

	// Tiers maps device tiers to their processing parameters.
	Tiers map[model.DeviceTier]TierParams

	// SaturationSentinelMs replaces the transmission delay when the
	// effective bandwidth collapses to zero or below, so a saturated
	// link animates as very slow instead of dividing by zero.
	SaturationSentinelMs float64

	// Queuing boundary policy for the utilization-derived formula.
	// At or above QueuingCapU the queue is treated as saturated and the
	// delay is capped; at or below QueuingFloorU it is floored to a
	// small non-zero value so the component stays visible.
	QueuingCapU    float64
	QueuingCapMs   float64
	QueuingFloorU  float64
	QueuingFloorMs float64

	// MaxPackets caps concurrently tracked packets. A spawn attempt over
	// the cap is skipped and reported, never silently dropped.
	MaxPackets int

	// DeliveredGraceMs keeps delivered packets in snapshots for a short
	// window before they are pruned.
	DeliveredGraceMs float64

	// PacketColors is the display palette, cycled by packet ID.
	PacketColors []string
}

// DefaultConfig returns the standard tuning: light travels at roughly
// 2/3 c in guided media and c in free space, a geostationary relay sits
// at 35,786 km, and low-tier devices process packets three times slower
// than high-tier ones.
func DefaultConfig() Config {
	return Config{
		MediumSpeedsMps: map[model.MediumType]float64{
			model.MediumFiber:     2e8,
			model.MediumCopper:    2e8,
			model.MediumWireless:  3e8,
			model.MediumSatellite: 3e8,
		},
		DefaultSpeedMps: 2e8,
		SatellitePadM:   2 * 35786e3,
		Tiers: map[model.DeviceTier]TierParams{
			model.TierLow:    {BaseMs: 1.0, Multiplier: 3.0},
			model.TierMedium: {BaseMs: 1.0, Multiplier: 1.5},
			model.TierHigh:   {BaseMs: 1.0, Multiplier: 1.0},
		},
		SaturationSentinelMs: 1000,
		QueuingCapU:          0.95,
		QueuingCapMs:         100,
		QueuingFloorU:        0.05,
		QueuingFloorMs:       0.1,
		MaxPackets:           20,
		DeliveredGraceMs:     500,
		PacketColors: []string{
			"#4e79a7", "#f28e2b", "#e15759", "#76b7b2",
			"#59a14f", "#edc948", "#b07aa1", "#ff9da7",
		},
	}
}

// withDefaults fills any zero-valued field from DefaultConfig, so a
// partially specified Config still yields a usable engine.
func (c Config) withDefaults() Config {
	def := DefaultConfig()
	if c.MediumSpeedsMps == nil {
		c.MediumSpeedsMps = def.MediumSpeedsMps
	}
	if c.DefaultSpeedMps <= 0 {
		c.DefaultSpeedMps = def.DefaultSpeedMps
	}
	if c.SatellitePadM <= 0 {
		c.SatellitePadM = def.SatellitePadM
	}
	if c.Tiers == nil {
		c.Tiers = def.Tiers
	}
	if c.SaturationSentinelMs <= 0 {
		c.SaturationSentinelMs = def.SaturationSentinelMs
	}
	if c.QueuingCapU <= 0 {
		c.QueuingCapU = def.QueuingCapU
	}
	if c.QueuingCapMs <= 0 {
		c.QueuingCapMs = def.QueuingCapMs
	}
	if c.QueuingFloorU <= 0 {
		c.QueuingFloorU = def.QueuingFloorU
	}
	if c.QueuingFloorMs <= 0 {
		c.QueuingFloorMs = def.QueuingFloorMs
	}
	if c.MaxPackets <= 0 {
		c.MaxPackets = def.MaxPackets
	}
	if c.DeliveredGraceMs <= 0 {
		c.DeliveredGraceMs = def.DeliveredGraceMs
	}
	if len(c.PacketColors) == 0 {
		c.PacketColors = def.PacketColors
	}
	return c
}
