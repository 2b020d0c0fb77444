package input

import "math"

// Snapshot is the complete gamepad state at one instant.
type Snapshot struct {
	// Face, shoulder and menu buttons
	A     bool
	B     bool
	X     bool
	Y     bool
	LB    bool
	RB    bool
	Start bool
	Back  bool
	Guide bool
	L3    bool
	R3    bool

	// D-pad
	DPadUp    bool
	DPadDown  bool
	DPadLeft  bool
	DPadRight bool

	// Triggers (0 released, 1 fully pressed)
	LT float64
	RT float64

	// Sticks (-1..1, y up is negative as reported by the touch surface)
	LeftX  float64
	LeftY  float64
	RightX float64
	RightY float64
}

// Clamp returns a copy with triggers limited to [0, 1] and axes to [-1, 1].
// NaN values become 0.
func (s Snapshot) Clamp() Snapshot {
	s.LT = clamp(s.LT, 0, 1)
	s.RT = clamp(s.RT, 0, 1)
	s.LeftX = clamp(s.LeftX, -1, 1)
	s.LeftY = clamp(s.LeftY, -1, 1)
	s.RightX = clamp(s.RightX, -1, 1)
	s.RightY = clamp(s.RightY, -1, 1)
	return s
}

// IsNeutral reports whether nothing is pressed and both sticks are centered.
func (s Snapshot) IsNeutral() bool {
	return s == Snapshot{}
}

// WithLeftStick returns a copy with the left stick set after applying the deadzone.
func (s Snapshot) WithLeftStick(x, y, deadzone float64) Snapshot {
	s.LeftX, s.LeftY = ApplyDeadzone(x, y, deadzone)
	return s
}

// WithRightStick returns a copy with the right stick set after applying the deadzone.
func (s Snapshot) WithRightStick(x, y, deadzone float64) Snapshot {
	s.RightX, s.RightY = ApplyDeadzone(x, y, deadzone)
	return s
}

// ApplyDeadzone applies a radial deadzone to a stick vector. Vectors shorter
// than deadzone collapse to the center; the rest are rescaled so the usable
// range still reaches the unit circle.
func ApplyDeadzone(x, y, deadzone float64) (float64, float64) {
	x = clamp(x, -1, 1)
	y = clamp(y, -1, 1)
	if deadzone <= 0 {
		return x, y
	}
	if deadzone >= 1 {
		return 0, 0
	}

	mag := math.Hypot(x, y)
	if mag <= deadzone {
		return 0, 0
	}

	scaled := math.Min((mag-deadzone)/(1-deadzone), 1)
	factor := scaled / mag
	return clamp(x*factor, -1, 1), clamp(y*factor, -1, 1)
}

func clamp(v, lo, hi float64) float64 {
	if math.IsNaN(v) {
		return 0
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
