package main

import "golang.org/x/exp/constraints"

// constrain clamps value to [min, max]. Kept verbatim from WingFC's
// helpers.go; the flight-control domain changes, the clamp doesn't.
func constrain(value, min, max float64) float64 {
	if value < min {
		return min
	}
	if value > max {
		return max
	}
	return value
}

// mapRange rescales value from [fromMin, fromMax] to [toMin, toMax].
// Grounded on WingFC's main.go, which defines this same helper over
// golang.org/x/exp/constraints.Float rather than a hand-written union.
func mapRange[T constraints.Float](value, fromMin, fromMax, toMin, toMax T) T {
	return (value-fromMin)/(fromMax-fromMin)*(toMax-toMin) + toMin
}
