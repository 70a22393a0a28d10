package sdr

import "fmt"

// Range describes a contiguous span of valid values with an optional step,
// used for gain stages, sample rates, frequencies, and bandwidths.
type Range struct {
	Min  float64
	Max  float64
	Step float64
}

func (r Range) String() string {
	if r.Step > 0 {
		return fmt.Sprintf("[%g, %g] step %g", r.Min, r.Max, r.Step)
	}
	return fmt.Sprintf("[%g, %g]", r.Min, r.Max)
}

// Contains reports whether v lies inside the range.
func (r Range) Contains(v float64) bool {
	return v >= r.Min && v <= r.Max
}

// Clip limits v to the range bounds.
func (r Range) Clip(v float64) float64 {
	if v < r.Min {
		return r.Min
	}
	if v > r.Max {
		return r.Max
	}
	return v
}
