// Package classify asks a reasoning service for the qualitative
// crime/lighting mismatch label and validates its reply before anything
// downstream sees it.
package classify

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/internal/scorer"
)

// MaxRationaleRunes bounds the rationale length, counted in runes.
const MaxRationaleRunes = 240

var systemPrompt = buildSystemPrompt()

// SystemPrompt returns the fixed instructions sent with every classification.
func SystemPrompt() string { return systemPrompt }

func buildSystemPrompt() string {
	var b strings.Builder
	b.WriteString("You classify how safe a destination feels at night from two signals: ")
	b.WriteString("csi (crime severity index, 0-100, higher is riskier) and lighting ")
	b.WriteString("(lighting score, one of 15, 35, 65, 85, higher is brighter).\n\n")

	b.WriteString("Pick classification from this table, first matching row wins:\n")
	b.WriteString("- SOCIAL_BALANCED: csi >= 70 and lighting >= 60\n")
	b.WriteString("- INFRA_MISMATCH: csi <= 60 and lighting <= 35\n")
	b.WriteString("- UNSAFE: csi >= 70 and lighting <= 35\n")
	b.WriteString("- SAFE: csi <= 35 and lighting >= 60\n")
	b.WriteString("- UNCERTAIN: anything else\n\n")

	fmt.Fprintf(&b, "risk_level must follow vibe_score exactly: SAFE when vibe_score >= %d, ", scorer.SafeThreshold)
	fmt.Fprintf(&b, "CAUTION when vibe_score >= %d, otherwise UNSAFE.\n\n", scorer.CautionThreshold)

	b.WriteString("Reply with one JSON object and nothing else, with exactly these keys:\n")
	b.WriteString(`{"risk_level": "UNSAFE|CAUTION|SAFE", "classification": "SAFE|UNSAFE|SOCIAL_BALANCED|INFRA_MISMATCH|UNCERTAIN", "confidence": <number 0..1>, "rationale": "<text>"}`)
	b.WriteString("\n\n")
	fmt.Fprintf(&b, "rationale must be at most %d characters and must mention both csi and lighting.", MaxRationaleRunes)
	return b.String()
}

// UserPrompt renders the four signals as the user turn.
func UserPrompt(s model.Signals) string {
	payload, _ := json.Marshal(s) // float64/int fields always marshal
	return "Signals: " + string(payload)
}

// MentionsSignals reports whether a rationale refers to both the crime index
// and the lighting level. The check is advisory; failing it does not reject
// the reply.
func MentionsSignals(rationale string) bool {
	r := strings.ToLower(rationale)
	crime := strings.Contains(r, "csi") || strings.Contains(r, "crime")
	light := strings.Contains(r, "light")
	return crime && light
}
