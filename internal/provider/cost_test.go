package provider

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/cost"
	"github.com/sells-group/meal-analyzer/internal/model"
	"github.com/sells-group/meal-analyzer/pkg/anthropic"
)

// observeLogs routes the global logger to an in-memory core for one test.
func observeLogs(t *testing.T) *observer.ObservedLogs {
	t.Helper()
	core, logs := observer.New(zapcore.InfoLevel)
	restore := zap.ReplaceGlobals(zap.New(core))
	t.Cleanup(restore)
	return logs
}

func costLine(t *testing.T, logs *observer.ObservedLogs) map[string]any {
	t.Helper()
	entries := logs.FilterMessage("cost attribution").All()
	require.Len(t, entries, 1)
	return entries[0].ContextMap()
}

func TestLogCost_AliasedClaudeModel(t *testing.T) {
	logs := observeLogs(t)

	logCost(cost.NewCalculator(cost.DefaultRates()), "claude-haiku-4-5", model.ModalityText, usage{
		input:  1_000_000,
		output: 1_000_000,
	})

	line := costLine(t, logs)
	assert.Equal(t, "analyze_text", line["phase"])
	assert.InDelta(t, 4.80, line["estimated_cost_usd"], 1e-9)
}

func TestLogCost_CacheTokens(t *testing.T) {
	logs := observeLogs(t)

	// 0.40 input + 0.40 output + 0.20 cache write + 0.024 cache read
	logCost(cost.NewCalculator(cost.DefaultRates()), "claude-haiku-4-5-20251001", model.ModalityImage, usage{
		input:      500_000,
		output:     100_000,
		cacheWrite: 200_000,
		cacheRead:  300_000,
	})

	assert.InDelta(t, 1.024, costLine(t, logs)["estimated_cost_usd"], 1e-9)
}

func TestOpenAIAdapter_AudioCostPhase(t *testing.T) {
	logs := observeLogs(t)
	client := new(mockOpenAI)
	client.On("ChatCompletion", mock.Anything, mock.Anything).Return(chatResponse("{}"), nil).Once()

	_, err := NewOpenAIAdapter(client, "gpt-4o-mini", 0).Analyze(context.Background(), analysis.Input{
		Modality: model.ModalityText,
		Source:   model.ModalityAudio,
		Text:     "two eggs",
	})
	require.NoError(t, err)

	line := costLine(t, logs)
	assert.Equal(t, "analyze_audio", line["phase"])
	assert.Equal(t, "gpt-4o-mini", line["model"])
}

func TestAnthropicAdapter_AudioCostPhase(t *testing.T) {
	logs := observeLogs(t)
	client := new(mockAnthropic)
	client.On("CreateMessage", mock.Anything, mock.Anything).Return(&anthropic.MessageResponse{
		Model:   "claude-haiku-4-5",
		Content: []anthropic.ContentBlock{{Type: "text", Text: "{}"}},
		Usage:   anthropic.TokenUsage{InputTokens: 1_000_000},
	}, nil).Once()

	_, err := NewAnthropicAdapter(client, nil, testClaudeModel, 0).Analyze(context.Background(), analysis.Input{
		Modality: model.ModalityText,
		Source:   model.ModalityAudio,
		Text:     "two eggs",
	})
	require.NoError(t, err)

	line := costLine(t, logs)
	assert.Equal(t, "analyze_audio", line["phase"])
	assert.InDelta(t, 0.80, line["estimated_cost_usd"], 1e-9)
}
