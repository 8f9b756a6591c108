package model

// MediumType identifies the physical medium of a hop's link. It selects
// the signal propagation speed unless the hop carries an explicit speed.
type MediumType string

const (
	MediumFiber     MediumType = "fiber"
	MediumCopper    MediumType = "copper"
	MediumWireless  MediumType = "wireless"
	MediumSatellite MediumType = "satellite"
)

// DeviceTier is a coarse classification of the forwarding device at the
// far end of a hop, used to derive processing delay when no explicit
// processing delay is given. The empty tier derives no processing delay.
type DeviceTier string

const (
	TierNone   DeviceTier = ""
	TierLow    DeviceTier = "low"
	TierMedium DeviceTier = "medium"
	TierHigh   DeviceTier = "high"
)

// Hop describes one link plus the device that terminates it.
//
// Bandwidth and distance drive the transmission and propagation
// components. Processing and Queuing are tagged delay sources: explicit
// values win, otherwise processing derives from DeviceTier/CurrentLoad and
// queuing derives from Utilization.
type Hop struct {
	// BandwidthBps is the link's nominal capacity in bits per second.
	// Must be positive for any hop that carries transmission.
	BandwidthBps float64

	// DistanceM is the physical length of the link in metres.
	DistanceM float64

	// Medium selects the propagation speed from the configured speed
	// table. Ignored when PropagationSpeedMps is set.
	Medium MediumType

	// PropagationSpeedMps overrides the medium speed table when > 0.
	PropagationSpeedMps float64

	// Processing is the per-packet processing delay source at the hop's
	// destination device.
	Processing Delay

	// Queuing is the queuing delay source at the hop's source buffer.
	Queuing Delay

	// Utilization is the fraction of link capacity already in use,
	// nominally in [0, 1). nil means unknown: no queuing delay is derived
	// and transmission uses the full bandwidth.
	Utilization *float64

	// DeviceTier and CurrentLoad drive derived processing delay.
	DeviceTier  DeviceTier
	CurrentLoad float64
}

// HasDelaySource reports whether the hop can contribute any delay at all:
// a derivable transmission or propagation component, a derivable
// processing or queuing component, or an explicit value for either.
func (h Hop) HasDelaySource() bool {
	if h.BandwidthBps > 0 || h.DistanceM > 0 {
		return true
	}
	if _, ok := h.Processing.Explicit(); ok {
		return true
	}
	if _, ok := h.Queuing.Explicit(); ok {
		return true
	}
	return h.DeviceTier != TierNone || h.Utilization != nil
}
