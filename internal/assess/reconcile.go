package assess

import (
	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/scorer"
)

// Assemble builds the final result. The risk level always comes from the
// vibe score; the model's own risk level is discarded. Classification,
// confidence and rationale pass through unchanged.
func Assemble(vibe, lighting int, csi float64, warmth int, out model.ModelOutput) model.Result {
	return model.Result{
		VibeScore:       vibe,
		RiskLevel:       scorer.RiskLevelFor(vibe),
		Classification:  out.Classification,
		SocialWarmth:    warmth,
		LightingScore:   lighting,
		CrimeBaseline:   csi,
		Confidence:      out.Confidence,
		SafeHavenNearby: false,
		Rationale:       out.Rationale,
	}
}

// Overrode reports whether the model's risk level disagrees with the one
// derived from vibe.
func Overrode(out model.ModelOutput, vibe int) bool {
	return out.RiskLevel != scorer.RiskLevelFor(vibe)
}
