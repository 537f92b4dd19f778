package classify

import (
	"context"

	"go.uber.org/zap"

	"github.com/sells-group/glowpath/internal/model"
	"github.com/sells-group/glowpath/pkg/anthropic"
)

// Source is the collaborator name reported on classifier failures.
const Source = "classifier"

// Options are the generation settings shared by both backends.
type Options struct {
	Model       string
	MaxTokens   int64
	Temperature float64
}

// Anthropic classifies through the Anthropic Messages API.
type Anthropic struct {
	client anthropic.Client
	opts   Options
	system []anthropic.SystemBlock
}

// NewAnthropic wraps an Anthropic client as a mismatch classifier.
func NewAnthropic(client anthropic.Client, opts Options) *Anthropic {
	return &Anthropic{
		client: client,
		opts:   opts,
		system: anthropic.BuildCachedSystemBlocks(SystemPrompt(), "1h"),
	}
}

// Classify sends the signals and returns the validated model output.
func (a *Anthropic) Classify(ctx context.Context, s model.Signals) (model.ModelOutput, error) {
	temp := a.opts.Temperature
	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:       a.opts.Model,
		MaxTokens:   a.opts.MaxTokens,
		System:      a.system,
		Messages:    []anthropic.Message{{Role: "user", Content: UserPrompt(s)}},
		Temperature: &temp,
	})
	if err != nil {
		return model.ModelOutput{}, model.NewUpstreamError(Source, anthropic.StatusCode(err), err)
	}

	resp.Usage.LogCost(zap.L(), a.opts.Model)

	if resp.StopReason == "max_tokens" {
		return model.ModelOutput{}, model.NewValidationError("", "reply truncated at max_tokens")
	}

	return finish(resp.Text())
}

// finish parses a raw reply and flags rationales that skip a signal.
func finish(text string) (model.ModelOutput, error) {
	out, err := ParseOutput(text)
	if err != nil {
		zap.L().Warn("classify: invalid model output", zap.Error(err))
		return model.ModelOutput{}, err
	}
	if !MentionsSignals(out.Rationale) {
		zap.L().Debug("classify: rationale does not reference both csi and lighting",
			zap.String("rationale", out.Rationale))
	}
	return out, nil
}
