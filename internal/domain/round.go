package domain

import "math"

// round rounds v to the given number of decimal places, half away from zero.
// Results that round to zero are returned as +0 so they never encode as -0.
func round(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	r := math.Round(v*p) / p
	if r == 0 {
		return 0
	}
	return r
}

func ptr[T any](v T) *T { return &v }
