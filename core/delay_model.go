package core

import (
	"math"

	"github.com/signalsfoundry/latency-sim/model"
)

// DelayModel computes the four delay components for hops and paths. All
// methods are pure: degenerate inputs (zero bandwidth, out-of-range
// utilization, negative distances) are resolved by clamping or sentinel
// values, never by errors, so the engine stays animatable even with
// pathological educational inputs.
type DelayModel struct {
	cfg Config
}

// NewDelayModel constructs a model with the given tuning. Zero-valued
// config fields fall back to DefaultConfig.
func NewDelayModel(cfg Config) *DelayModel {
	return &DelayModel{cfg: cfg.withDefaults()}
}

// Config returns the model's effective configuration.
func (m *DelayModel) Config() Config {
	return m.cfg
}

// ComputeHopDelays returns the delay breakdown for one hop carrying a
// packet of the given size.
func (m *DelayModel) ComputeHopDelays(hop model.Hop, packetSizeBytes int) model.DelayBreakdown {
	b := model.DelayBreakdown{
		TransmissionMs: m.transmissionMs(hop, packetSizeBytes),
		PropagationMs:  m.propagationMs(hop),
		ProcessingMs:   m.processingMs(hop),
		QueuingMs:      m.queuingMs(hop),
	}
	b.TotalMs = b.TransmissionMs + b.PropagationMs + b.ProcessingMs + b.QueuingMs
	return b
}

// PathDelay is a whole-path delay summary: the aggregate breakdown, the
// per-hop breakdowns it was summed from, and which component dominates.
type PathDelay struct {
	model.DelayBreakdown

	PerHop []model.DelayBreakdown `json:"per_hop"`

	// Dominant is the component with the largest aggregate value;
	// DominantPercent is its share of the total.
	Dominant        model.Component `json:"dominant"`
	DominantPercent float64         `json:"dominant_percent"`
}

// TotalPathDelay sums the breakdown across every hop of the path.
func (m *DelayModel) TotalPathDelay(path *model.Path) (PathDelay, error) {
	if err := path.Validate(); err != nil {
		return PathDelay{}, err
	}

	result := PathDelay{PerHop: make([]model.DelayBreakdown, 0, len(path.Hops))}
	for _, hop := range path.Hops {
		b := m.ComputeHopDelays(hop, path.PacketSizeBytes)
		result.PerHop = append(result.PerHop, b)
		result.DelayBreakdown = result.DelayBreakdown.Add(b)
	}
	result.Dominant, result.DominantPercent = result.DelayBreakdown.Dominant()
	return result, nil
}

// RoundTripTime returns twice the one-way total delay, assuming a
// symmetric return path.
func (m *DelayModel) RoundTripTime(path *model.Path) (float64, error) {
	total, err := m.TotalPathDelay(path)
	if err != nil {
		return 0, err
	}
	return 2 * total.TotalMs, nil
}

// BDP is a bandwidth-delay product: the amount of data in flight on a
// link at a given delay.
type BDP struct {
	Bits  float64 `json:"bits"`
	Bytes float64 `json:"bytes"`
}

// BandwidthDelayProduct returns the data in flight for a link of the
// given bandwidth at the given one-way delay.
func (m *DelayModel) BandwidthDelayProduct(bandwidthBps, delayMs float64) BDP {
	if bandwidthBps < 0 || delayMs < 0 {
		return BDP{}
	}
	bits := bandwidthBps * delayMs / 1000
	return BDP{Bits: bits, Bytes: bits / 8}
}

func (m *DelayModel) transmissionMs(hop model.Hop, packetSizeBytes int) float64 {
	if packetSizeBytes <= 0 {
		return 0
	}
	effective := hop.BandwidthBps
	if hop.Utilization != nil {
		effective *= 1 - clampUtilization(*hop.Utilization, m.cfg.QueuingCapU)
	}
	if effective <= 0 {
		// Saturated or degenerate link: animate as very slow rather
		// than divide by zero.
		return m.cfg.SaturationSentinelMs
	}
	return float64(packetSizeBytes) * 8 / effective * 1000
}

func (m *DelayModel) propagationMs(hop model.Hop) float64 {
	distance := math.Max(hop.DistanceM, 0)
	if hop.Medium == model.MediumSatellite {
		distance += m.cfg.SatellitePadM
	}
	if distance == 0 {
		return 0
	}

	speed := hop.PropagationSpeedMps
	if speed <= 0 {
		var ok bool
		speed, ok = m.cfg.MediumSpeedsMps[hop.Medium]
		if !ok || speed <= 0 {
			speed = m.cfg.DefaultSpeedMps
		}
	}
	return distance / speed * 1000
}

// processingMs resolves the explicit-vs-derived precedence for the
// processing component: an explicit value always wins, otherwise the
// device tier and load derive one, otherwise zero.
func (m *DelayModel) processingMs(hop model.Hop) float64 {
	if ms, ok := hop.Processing.Explicit(); ok {
		return math.Max(ms, 0)
	}
	tier, ok := m.cfg.Tiers[hop.DeviceTier]
	if !ok {
		return 0
	}
	load := clamp(hop.CurrentLoad, 0, 1)
	return tier.BaseMs * tier.Multiplier * (1 + 2*load)
}

// queuingMs resolves the explicit-vs-derived precedence for the queuing
// component: an explicit value always wins, otherwise link utilization
// derives one with the boundary policy from cfg, otherwise zero.
func (m *DelayModel) queuingMs(hop model.Hop) float64 {
	if ms, ok := hop.Queuing.Explicit(); ok {
		return math.Max(ms, 0)
	}
	if hop.Utilization == nil {
		return 0
	}
	return m.queuingFromUtilization(*hop.Utilization)
}

// queuingFromUtilization is the closed-form queuing approximation
// (1/(1-u)³)−1, monotonically increasing in u, capped when the queue is
// effectively unstable and floored to stay visible at low utilization.
func (m *DelayModel) queuingFromUtilization(u float64) float64 {
	if u >= m.cfg.QueuingCapU {
		return m.cfg.QueuingCapMs
	}
	if u <= m.cfg.QueuingFloorU {
		return m.cfg.QueuingFloorMs
	}
	remaining := 1 - u
	return 1/(remaining*remaining*remaining) - 1
}

// clampUtilization keeps u inside [0, capU] so that a fully loaded link
// still leaves a sliver of effective bandwidth.
func clampUtilization(u, capU float64) float64 {
	if math.IsNaN(u) {
		return 0
	}
	return clamp(u, 0, capU)
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
