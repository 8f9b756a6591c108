package model

// Component names one of the four delay components.
type Component string

const (
	ComponentTransmission Component = "transmission"
	ComponentPropagation  Component = "propagation"
	ComponentProcessing   Component = "processing"
	ComponentQueuing      Component = "queuing"
)

// Components lists the four delay components in display order.
var Components = []Component{
	ComponentTransmission,
	ComponentPropagation,
	ComponentProcessing,
	ComponentQueuing,
}

// DelayBreakdown is the decomposition of a hop's (or whole path's) delay
// into its four components, all in milliseconds. TotalMs is always the
// sum of the other four.
type DelayBreakdown struct {
	TransmissionMs float64 `json:"transmission_ms"`
	PropagationMs  float64 `json:"propagation_ms"`
	ProcessingMs   float64 `json:"processing_ms"`
	QueuingMs      float64 `json:"queuing_ms"`
	TotalMs        float64 `json:"total_ms"`
}

// Component returns the named component's value in milliseconds.
func (b DelayBreakdown) Component(c Component) float64 {
	switch c {
	case ComponentTransmission:
		return b.TransmissionMs
	case ComponentPropagation:
		return b.PropagationMs
	case ComponentProcessing:
		return b.ProcessingMs
	case ComponentQueuing:
		return b.QueuingMs
	}
	return 0
}

// Add returns the component-wise sum of two breakdowns.
func (b DelayBreakdown) Add(other DelayBreakdown) DelayBreakdown {
	return DelayBreakdown{
		TransmissionMs: b.TransmissionMs + other.TransmissionMs,
		PropagationMs:  b.PropagationMs + other.PropagationMs,
		ProcessingMs:   b.ProcessingMs + other.ProcessingMs,
		QueuingMs:      b.QueuingMs + other.QueuingMs,
		TotalMs:        b.TotalMs + other.TotalMs,
	}
}

// Dominant returns the component with the largest value and its share of
// the total as a percentage. A zero breakdown reports transmission at 0%.
func (b DelayBreakdown) Dominant() (Component, float64) {
	dominant := ComponentTransmission
	for _, c := range Components[1:] {
		if b.Component(c) > b.Component(dominant) {
			dominant = c
		}
	}
	if b.TotalMs <= 0 {
		return dominant, 0
	}
	return dominant, b.Component(dominant) / b.TotalMs * 100
}
