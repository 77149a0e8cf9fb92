package grading

import "math"

// Round1 rounds to one decimal place, halves away from zero. The tiny bias
// absorbs binary representation noise such as 90.25 being stored as 90.2499….
func Round1(v float64) float64 {
	return math.Round(v*10+math.Copysign(1e-9, v)) / 10
}

func roundPtr(v *float64) *float64 {
	if v == nil {
		return nil
	}
	r := Round1(*v)
	return &r
}
