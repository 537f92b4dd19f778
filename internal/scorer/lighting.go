// Package scorer holds the deterministic numeric transforms of the vibe engine.
package scorer

import "math"

// Lighting score buckets.
const (
	LightingDark   = 15
	LightingDim    = 35
	LightingLit    = 65
	LightingBright = 85
)

// Radiance lower bounds for the dim, lit and bright buckets.
const (
	dimRadiance    = 0.5
	litRadiance    = 2.0
	brightRadiance = 10.0
)

// LightingScore maps a night-light radiance reading to one of the four
// lighting buckets. Negative and NaN readings are treated as zero. Bucket
// boundaries are left-inclusive, so a reading of exactly 2.0 scores 65.
func LightingScore(radiance float64) int {
	if math.IsNaN(radiance) || radiance < 0 {
		radiance = 0
	}
	switch {
	case radiance < dimRadiance:
		return LightingDark
	case radiance < litRadiance:
		return LightingDim
	case radiance < brightRadiance:
		return LightingLit
	default:
		return LightingBright
	}
}
