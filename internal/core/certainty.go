// ABOUTME: Certainty-factor algebra for combining partial evidence
// ABOUTME: Commutative, zero-identity combination over [-1,1]
package core

import "math"

// Combine merges two certainty factors.
// Same-sign values reinforce toward ±1; mixed signs partially cancel.
// A zero denominator (opposite unit certainties) falls back to cf1+cf2.
func Combine(cf1, cf2 float64) float64 {
	switch {
	case cf1 >= 0 && cf2 >= 0:
		return clamp(cf1 + cf2 - cf1*cf2)
	case cf1 < 0 && cf2 < 0:
		return clamp(cf1 + cf2 + cf1*cf2)
	}
	denom := 1 - math.Min(math.Abs(cf1), math.Abs(cf2))
	if denom == 0 {
		return cf1 + cf2
	}
	return clamp((cf1 + cf2) / denom)
}

// clamp trims floating-point overshoot; the exact results already lie in [-1,1]
func clamp(cf float64) float64 {
	return math.Max(-1, math.Min(1, cf))
}

// CombineAll folds Combine over cfs starting from 0
func CombineAll(cfs ...float64) float64 {
	acc := 0.0
	for _, cf := range cfs {
		acc = Combine(acc, cf)
	}
	return acc
}
