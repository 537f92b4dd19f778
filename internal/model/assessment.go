// Package model defines the records exchanged between the scoring engine, its
// collaborators and the CLI/HTTP boundary.
package model

// RiskLevel is the ordinal safety band derived from a vibe score.
type RiskLevel string

// Risk levels, ordered UNSAFE < CAUTION < SAFE.
const (
	RiskUnsafe  RiskLevel = "UNSAFE"
	RiskCaution RiskLevel = "CAUTION"
	RiskSafe    RiskLevel = "SAFE"
)

var riskRank = map[RiskLevel]int{
	RiskUnsafe:  0,
	RiskCaution: 1,
	RiskSafe:    2,
}

// Rank returns the ordinal position of the level, or -1 if it is not a known level.
func (r RiskLevel) Rank() int {
	rank, ok := riskRank[r]
	if !ok {
		return -1
	}
	return rank
}

// Valid reports whether r is one of the three defined levels.
func (r RiskLevel) Valid() bool {
	_, ok := riskRank[r]
	return ok
}

// Classification is the qualitative crime/lighting mismatch label.
type Classification string

// Classification labels.
const (
	ClassSafe           Classification = "SAFE"
	ClassUnsafe         Classification = "UNSAFE"
	ClassSocialBalanced Classification = "SOCIAL_BALANCED"
	ClassInfraMismatch  Classification = "INFRA_MISMATCH"
	ClassUncertain      Classification = "UNCERTAIN"
)

// AllClassifications returns every classification label.
func AllClassifications() []Classification {
	return []Classification{
		ClassSafe,
		ClassUnsafe,
		ClassSocialBalanced,
		ClassInfraMismatch,
		ClassUncertain,
	}
}

// Valid reports whether c is a known label.
func (c Classification) Valid() bool {
	for _, k := range AllClassifications() {
		if k == c {
			return true
		}
	}
	return false
}

// Signals are the four inputs handed to the mismatch classifier.
type Signals struct {
	CSI           float64 `json:"csi"`
	Radiance      float64 `json:"radiance"`
	VibeScore     int     `json:"vibe_score"`
	LightingScore int     `json:"lighting_score"`
}

// ModelOutput is the validated reply of the reasoning service. RiskLevel is
// advisory only and is replaced during reconciliation.
type ModelOutput struct {
	RiskLevel      RiskLevel      `json:"risk_level"`
	Classification Classification `json:"classification"`
	Confidence     float64        `json:"confidence"`
	Rationale      string         `json:"rationale"`
}

// Result is the final assessment for a destination.
type Result struct {
	VibeScore       int            `json:"vibe_score" yaml:"vibe_score"`
	RiskLevel       RiskLevel      `json:"risk_level" yaml:"risk_level"`
	Classification  Classification `json:"classification" yaml:"classification"`
	SocialWarmth    int            `json:"social_warmth" yaml:"social_warmth"`
	LightingScore   int            `json:"lighting_score" yaml:"lighting_score"`
	CrimeBaseline   float64        `json:"crime_baseline" yaml:"crime_baseline"`
	Confidence      float64        `json:"confidence" yaml:"confidence"`
	SafeHavenNearby bool           `json:"safe_haven_nearby" yaml:"safe_haven_nearby"`
	Rationale       string         `json:"rationale" yaml:"rationale"`
}
