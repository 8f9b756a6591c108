package model

// Phase is where a packet currently is in its journey.
type Phase string

const (
	PhaseWaiting      Phase = "waiting"
	PhaseQueuing      Phase = "queuing"
	PhaseTransmitting Phase = "transmitting"
	PhasePropagating  Phase = "propagating"
	PhaseProcessing   Phase = "processing"
	PhaseDelivered    Phase = "delivered"
)

// PacketState is the externally visible state of one tracked packet at a
// single simulation instant. Consumers receive copies in snapshots and
// look packets up by ID; they never hold references into tracker state.
type PacketState struct {
	ID       int   `json:"id"`
	Phase    Phase `json:"phase"`
	HopIndex int   `json:"hop_index"`

	// Progress is the fractional completion of the current phase in
	// [0, 1]. During propagation it is the leading edge (first bit)
	// position between the hop's two nodes.
	Progress float64 `json:"progress"`

	// TrailingProgress is the last bit's position during propagation,
	// always <= Progress. The gap between the two edges is the packet
	// body stretched across the link by store-and-forward transmission.
	// Zero outside the propagating phase.
	TrailingProgress float64 `json:"trailing_progress"`

	// SendTimeMs is the simulation time at which the packet was injected.
	SendTimeMs float64 `json:"send_time_ms"`

	// Color is a display hint assigned at send time.
	Color string `json:"color"`
}

// SendMode is the policy governing when new packets are injected.
type SendMode string

const (
	// SendSingle injects exactly one packet at time zero.
	SendSingle SendMode = "single"
	// SendInterval injects one packet every interval, starting at zero.
	SendInterval SendMode = "interval"
	// SendBurst injects a burst of packets every interval.
	SendBurst SendMode = "burst"
	// SendManual injects only on explicit request, independent of the clock.
	SendManual SendMode = "manual"
)
