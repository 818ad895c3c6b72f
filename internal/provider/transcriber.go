package provider

import (
	"context"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/fetcher"
	"github.com/sells-group/meal-analyzer/pkg/openai"
)

// WhisperTranscriber transcribes audio with the primary backend's
// transcription endpoint.
type WhisperTranscriber struct {
	client  openai.Client
	fetcher fetcher.Fetcher
	model   string
}

// NewWhisperTranscriber creates a transcriber. An empty model uses the
// client's default.
func NewWhisperTranscriber(client openai.Client, f fetcher.Fetcher, model string) *WhisperTranscriber {
	return &WhisperTranscriber{client: client, fetcher: f, model: model}
}

// Transcribe implements analysis.Transcriber. Audio given by URL is
// downloaded first.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audio analysis.Audio) (string, error) {
	data, mimeType := audio.Data, audio.MimeType
	if len(data) == 0 {
		if audio.URL == "" {
			return "", eris.New("transcriber: no audio supplied")
		}
		if w.fetcher == nil {
			return "", eris.New("transcriber: no media fetcher configured")
		}
		media, err := w.fetcher.Fetch(ctx, audio.URL)
		if err != nil {
			return "", eris.Wrap(err, "transcriber: fetch audio")
		}
		data = media.Data
		if mimeType == "" {
			mimeType = media.ContentType
		}
	}
	if mimeType == "" {
		mimeType = fetcher.ContentType("", data)
	}

	resp, err := w.client.Transcribe(ctx, openai.TranscriptionRequest{
		Audio:    data,
		Filename: "meal" + fetcher.Extension(mimeType),
		MimeType: mimeType,
		Model:    w.model,
	})
	if err != nil {
		return "", eris.Wrap(err, "transcriber: transcribe")
	}

	zap.L().Debug("transcribed audio",
		zap.Int("audio_bytes", len(data)),
		zap.String("mime_type", mimeType),
		zap.Int("transcript_chars", len(resp.Text)),
	)
	return resp.Text, nil
}
