package scorer

import "math"

// Blend weights in tenths. The dominant signal gets 7, the other 3.
const (
	dominantWeight  = 7
	secondaryWeight = 3
	weightScale     = 10
)

// VibeScore blends crime absence (dominant) with lighting into a 0-100 safety
// score. Both inputs are clamped to [0,100] first; the blend rounds half-up.
func VibeScore(csi, lighting float64) int {
	safety := 100 - clampPercent(csi)
	return blend(safety, clampPercent(lighting))
}

// SocialWarmth blends lighting (dominant) with crime absence into a 0-100
// activity proxy. It is reported alongside the vibe score and never feeds
// the risk level.
func SocialWarmth(csi, lighting float64) int {
	safety := 100 - clampPercent(csi)
	return blend(clampPercent(lighting), safety)
}

// ClampCSI clamps a crime baseline into [0,100]. NaN maps to 0.
func ClampCSI(csi float64) float64 {
	return clampPercent(csi)
}

// blend computes round_half_up((7*dominant + 3*secondary) / 10). Scaling the
// integer weights before dividing keeps x.5 sums exact.
func blend(dominant, secondary float64) int {
	v := (dominantWeight*dominant + secondaryWeight*secondary) / weightScale
	n := int(math.Floor(v + 0.5))
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func clampPercent(v float64) float64 {
	switch {
	case math.IsNaN(v):
		return 0
	case v < 0:
		return 0
	case v > 100:
		return 100
	default:
		return v
	}
}
