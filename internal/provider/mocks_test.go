package provider

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/meal-analyzer/internal/fetcher"
	"github.com/sells-group/meal-analyzer/pkg/anthropic"
	"github.com/sells-group/meal-analyzer/pkg/openai"
)

type mockOpenAI struct {
	mock.Mock
}

func (m *mockOpenAI) ChatCompletion(ctx context.Context, req openai.ChatCompletionRequest) (*openai.ChatCompletionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.ChatCompletionResponse), args.Error(1)
}

func (m *mockOpenAI) Transcribe(ctx context.Context, req openai.TranscriptionRequest) (*openai.TranscriptionResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*openai.TranscriptionResponse), args.Error(1)
}

type mockAnthropic struct {
	mock.Mock
}

func (m *mockAnthropic) CreateMessage(ctx context.Context, req anthropic.MessageRequest) (*anthropic.MessageResponse, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*anthropic.MessageResponse), args.Error(1)
}

type mockFetcher struct {
	mock.Mock
}

func (m *mockFetcher) Fetch(ctx context.Context, url string) (*fetcher.Media, error) {
	args := m.Called(ctx, url)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*fetcher.Media), args.Error(1)
}
