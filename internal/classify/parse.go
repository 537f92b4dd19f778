package classify

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"
	"unicode/utf8"

	"github.com/sells-group/glowpath/internal/model"
)

// rawOutput uses pointers so absent keys and explicit nulls are detectable.
type rawOutput struct {
	RiskLevel      *string  `json:"risk_level"`
	Classification *string  `json:"classification"`
	Confidence     *float64 `json:"confidence"`
	Rationale      *string  `json:"rationale"`
}

// ParseOutput extracts the JSON object from a reasoning service reply and
// validates it. Any deviation returns a *model.ValidationError; nothing is
// coerced or defaulted.
func ParseOutput(text string) (model.ModelOutput, error) {
	var out model.ModelOutput

	body, ok := extractJSON(text)
	if !ok {
		return out, model.NewValidationError("", "reply contains no JSON object")
	}

	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()

	var raw rawOutput
	if err := dec.Decode(&raw); err != nil {
		return out, model.NewValidationError("", fmt.Sprintf("malformed JSON: %v", err))
	}
	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return out, model.NewValidationError("", "trailing content after JSON object")
	}

	if raw.RiskLevel == nil {
		return out, model.NewValidationError("risk_level", "required")
	}
	if raw.Classification == nil {
		return out, model.NewValidationError("classification", "required")
	}
	if raw.Confidence == nil {
		return out, model.NewValidationError("confidence", "required")
	}
	if raw.Rationale == nil {
		return out, model.NewValidationError("rationale", "required")
	}

	risk := model.RiskLevel(*raw.RiskLevel)
	if !risk.Valid() {
		return out, model.NewValidationError("risk_level", fmt.Sprintf("unknown value %q", *raw.RiskLevel))
	}

	class := model.Classification(*raw.Classification)
	if !class.Valid() {
		return out, model.NewValidationError("classification", fmt.Sprintf("unknown value %q", *raw.Classification))
	}

	conf := *raw.Confidence
	if conf < 0 || conf > 1 {
		return out, model.NewValidationError("confidence", fmt.Sprintf("must be within [0,1], got %g", conf))
	}

	rationale := *raw.Rationale
	if strings.TrimSpace(rationale) == "" {
		return out, model.NewValidationError("rationale", "empty")
	}
	if n := utf8.RuneCountInString(rationale); n > MaxRationaleRunes {
		return out, model.NewValidationError("rationale", fmt.Sprintf("%d characters exceeds limit of %d", n, MaxRationaleRunes))
	}

	return model.ModelOutput{
		RiskLevel:      risk,
		Classification: class,
		Confidence:     conf,
		Rationale:      rationale,
	}, nil
}

// extractJSON strips markdown fences and any prose around the outermost
// braces.
func extractJSON(text string) (string, bool) {
	text = strings.TrimSpace(text)

	if strings.HasPrefix(text, "```") {
		text = strings.TrimPrefix(text, "```json")
		text = strings.TrimPrefix(text, "```")
		if idx := strings.LastIndex(text, "```"); idx >= 0 {
			text = text[:idx]
		}
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return "", false
	}
	return text[start : end+1], true
}
