package provider

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/cost"
	"github.com/sells-group/meal-analyzer/internal/model"
	"github.com/sells-group/meal-analyzer/pkg/openai"
)

// OpenAIAdapter is the primary backend. Images are passed by URL.
type OpenAIAdapter struct {
	client    openai.Client
	model     string
	maxTokens int
	costs     *cost.Calculator
}

// NewOpenAIAdapter creates the primary adapter. An empty model uses the
// client's default.
func NewOpenAIAdapter(client openai.Client, model string, maxTokens int) *OpenAIAdapter {
	return &OpenAIAdapter{
		client:    client,
		model:     model,
		maxTokens: maxTokens,
		costs:     cost.NewCalculator(cost.DefaultRates()),
	}
}

// Analyze implements analysis.Adapter.
func (a *OpenAIAdapter) Analyze(ctx context.Context, in analysis.Input) (string, error) {
	parts := []openai.ContentPart{openai.TextPart(in.Prompt.User)}
	switch in.Modality {
	case model.ModalityImage:
		if in.ImageURL == "" {
			return "", eris.New("openai adapter: image request without image url")
		}
		parts = append(parts, openai.ImagePart(in.ImageURL))
	case model.ModalityText:
	default:
		return "", eris.Errorf("openai adapter: unsupported modality %q", in.Modality)
	}

	req := openai.ChatCompletionRequest{
		Model: a.model,
		Messages: []openai.Message{
			{Role: "system", Content: []openai.ContentPart{openai.TextPart(in.Prompt.System)}},
			{Role: "user", Content: parts},
		},
		ResponseFormat: &openai.ResponseFormat{Type: "json_object"},
	}
	if a.maxTokens > 0 {
		req.MaxTokens = &a.maxTokens
	}

	resp, err := a.client.ChatCompletion(ctx, req)
	if err != nil {
		return "", eris.Wrap(err, "openai adapter: chat completion")
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = a.model
	}
	logCost(a.costs, modelID, in.SourceModality(), usage{
		input:  resp.Usage.PromptTokens,
		output: resp.Usage.CompletionTokens,
	})

	if len(resp.Choices) == 0 {
		return "", nil
	}
	msg := resp.Choices[0].Message
	if msg.Refusal != "" && strings.TrimSpace(msg.Content) == "" {
		zap.L().Warn("openai adapter: model refused", zap.String("refusal", msg.Refusal))
	}
	return msg.Content, nil
}
