package classify

import (
	"context"
	"errors"

	"github.com/rotisserie/eris"
	openai "github.com/sashabaranov/go-openai"

	"github.com/sells-group/glowpath/internal/model"
)

// ChatCompleter is the subset of *openai.Client used here.
type ChatCompleter interface {
	CreateChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (openai.ChatCompletionResponse, error)
}

// OpenAI classifies through the OpenAI Chat Completions API in JSON mode.
type OpenAI struct {
	client ChatCompleter
	opts   Options
}

// NewOpenAIClient builds a go-openai client, optionally pointed at a
// compatible host.
func NewOpenAIClient(apiKey, baseURL string) *openai.Client {
	cfg := openai.DefaultConfig(apiKey)
	if baseURL != "" {
		cfg.BaseURL = baseURL
	}
	return openai.NewClientWithConfig(cfg)
}

// NewOpenAI wraps a chat completion client as a mismatch classifier.
func NewOpenAI(client ChatCompleter, opts Options) *OpenAI {
	return &OpenAI{client: client, opts: opts}
}

// Classify sends the signals and returns the validated model output.
func (o *OpenAI) Classify(ctx context.Context, s model.Signals) (model.ModelOutput, error) {
	resp, err := o.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model: o.opts.Model,
		Messages: []openai.ChatCompletionMessage{
			{Role: openai.ChatMessageRoleSystem, Content: SystemPrompt()},
			{Role: openai.ChatMessageRoleUser, Content: UserPrompt(s)},
		},
		MaxTokens:   int(o.opts.MaxTokens),
		Temperature: float32(o.opts.Temperature),
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		return model.ModelOutput{}, model.NewUpstreamError(Source, openAIStatus(err), eris.Wrap(err, "openai: create chat completion"))
	}

	if len(resp.Choices) == 0 {
		return model.ModelOutput{}, model.NewValidationError("", "reply has no choices")
	}
	choice := resp.Choices[0]
	if choice.FinishReason == openai.FinishReasonLength {
		return model.ModelOutput{}, model.NewValidationError("", "reply truncated at max_tokens")
	}

	return finish(choice.Message.Content)
}

func openAIStatus(err error) int {
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) {
		return apiErr.HTTPStatusCode
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) {
		return reqErr.HTTPStatusCode
	}
	return 0
}
