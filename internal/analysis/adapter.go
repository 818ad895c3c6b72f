package analysis

import (
	"context"
	"time"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// Prompt is the rendered instruction pair sent to a backend.
type Prompt struct {
	System string
	User   string
}

// Input is what an Adapter sends for one analysis. Audio requests arrive
// here as text once transcribed: Modality is what the adapter sends and
// Source is what the caller submitted.
type Input struct {
	Modality model.Modality
	Source   model.Modality
	Prompt   Prompt
	ImageURL string
	Text     string
}

// SourceModality returns Source, or Modality when Source is unset.
func (in Input) SourceModality() model.Modality {
	if in.Source != "" {
		return in.Source
	}
	return in.Modality
}

// Adapter calls one backend. Analyze makes exactly one network call and
// returns the backend's text verbatim; an empty string means the backend
// answered without content. Adapters never retry.
type Adapter interface {
	Analyze(ctx context.Context, in Input) (string, error)
}

// Audio is the payload of an audio request: inline bytes or a URL.
type Audio struct {
	Data     []byte
	URL      string
	MimeType string
}

// Transcriber converts audio to text. There is no fallback backend.
type Transcriber interface {
	Transcribe(ctx context.Context, audio Audio) (string, error)
}

// MealSaver persists a finished analysis.
type MealSaver interface {
	SaveMeal(ctx context.Context, rec *model.MealRecord) error
}

// Recorder receives pipeline observations. Implementations must be safe for
// concurrent use; the pipeline never reads values back.
type Recorder interface {
	ProviderAttempt(provider model.ProviderTag, modality model.Modality, outcome model.AttemptOutcome)
	FoodItemsDropped(n int)
	PersistenceError()
	Request(modality model.Modality, result string, elapsed time.Duration)
}

type nopRecorder struct{}

func (nopRecorder) ProviderAttempt(model.ProviderTag, model.Modality, model.AttemptOutcome) {}
func (nopRecorder) FoodItemsDropped(int)                                                    {}
func (nopRecorder) PersistenceError()                                                       {}
func (nopRecorder) Request(model.Modality, string, time.Duration)                           {}
