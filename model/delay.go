package model

// Delay is a per-component delay source: either pinned to an explicit
// millisecond value, or left to be derived from the hop's physical and
// device parameters. The zero value means "derived".
//
// Precedence (explicit always wins over any derivable inputs on the same
// hop) is resolved in exactly one place, core.DelayModel; callers never
// probe the hop's fields to decide which formula applies.
type Delay struct {
	explicit bool
	ms       float64
}

// ExplicitMs pins a delay component to a fixed millisecond value.
func ExplicitMs(ms float64) Delay {
	return Delay{explicit: true, ms: ms}
}

// DerivedDelay leaves the component to be computed from hop parameters.
// It is the zero value, provided for readability at construction sites.
func DerivedDelay() Delay {
	return Delay{}
}

// Explicit reports the pinned value, if any.
func (d Delay) Explicit() (float64, bool) {
	return d.ms, d.explicit
}
