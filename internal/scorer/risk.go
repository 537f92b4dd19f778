package scorer

import "github.com/sells-group/glowpath/internal/model"

// Risk thresholds on the vibe score.
const (
	SafeThreshold    = 65
	CautionThreshold = 40
)

// RiskLevelFor maps a vibe score to its risk band: SAFE at 65 and above,
// CAUTION from 40 to 64, UNSAFE below 40. It is the only place a risk level
// is derived.
func RiskLevelFor(vibe int) model.RiskLevel {
	switch {
	case vibe >= SafeThreshold:
		return model.RiskSafe
	case vibe >= CautionThreshold:
		return model.RiskCaution
	default:
		return model.RiskUnsafe
	}
}
