package provider

import (
	"context"
	"encoding/base64"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/cost"
	"github.com/sells-group/meal-analyzer/internal/fetcher"
	"github.com/sells-group/meal-analyzer/internal/model"
	"github.com/sells-group/meal-analyzer/pkg/anthropic"
)

const defaultAnthropicMaxTokens = 1024

var anthropicImageTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/gif":  true,
	"image/webp": true,
}

// AnthropicAdapter is the secondary backend. It downloads images and sends
// them inline as base64.
type AnthropicAdapter struct {
	client    anthropic.Client
	fetcher   fetcher.Fetcher
	model     string
	maxTokens int64
	costs     *cost.Calculator
}

// NewAnthropicAdapter creates the secondary adapter.
func NewAnthropicAdapter(client anthropic.Client, f fetcher.Fetcher, model string, maxTokens int64) *AnthropicAdapter {
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicAdapter{
		client:    client,
		fetcher:   f,
		model:     model,
		maxTokens: maxTokens,
		costs:     cost.NewCalculator(cost.DefaultRates()),
	}
}

// Analyze implements analysis.Adapter.
func (a *AnthropicAdapter) Analyze(ctx context.Context, in analysis.Input) (string, error) {
	msg := anthropic.Message{Role: "user", Content: in.Prompt.User}

	switch in.Modality {
	case model.ModalityImage:
		img, err := a.fetchImage(ctx, in.ImageURL)
		if err != nil {
			return "", err
		}
		msg.Images = []anthropic.Image{img}
	case model.ModalityText:
	default:
		return "", eris.Errorf("anthropic adapter: unsupported modality %q", in.Modality)
	}

	resp, err := a.client.CreateMessage(ctx, anthropic.MessageRequest{
		Model:     a.model,
		MaxTokens: a.maxTokens,
		System:    []anthropic.SystemBlock{{Text: in.Prompt.System}},
		Messages:  []anthropic.Message{msg},
	})
	if err != nil {
		return "", eris.Wrap(err, "anthropic adapter: create message")
	}

	modelID := resp.Model
	if modelID == "" {
		modelID = a.model
	}
	logCost(a.costs, modelID, in.SourceModality(), usage{
		input:      int(resp.Usage.InputTokens),
		output:     int(resp.Usage.OutputTokens),
		cacheWrite: int(resp.Usage.CacheCreationInputTokens),
		cacheRead:  int(resp.Usage.CacheReadInputTokens),
	})
	return anthropic.TextOf(resp), nil
}

func (a *AnthropicAdapter) fetchImage(ctx context.Context, url string) (anthropic.Image, error) {
	if a.fetcher == nil {
		return anthropic.Image{}, eris.New("anthropic adapter: no media fetcher configured")
	}
	media, err := a.fetcher.Fetch(ctx, url)
	if err != nil {
		return anthropic.Image{}, eris.Wrap(err, "anthropic adapter: fetch image")
	}
	mediaType := strings.ToLower(media.ContentType)
	if !anthropicImageTypes[mediaType] {
		return anthropic.Image{}, eris.Errorf("anthropic adapter: unsupported image type %q", media.ContentType)
	}
	return anthropic.Image{
		MediaType: mediaType,
		Data:      base64.StdEncoding.EncodeToString(media.Data),
	}, nil
}
