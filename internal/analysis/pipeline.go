package analysis

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// Pipeline turns a meal request of any modality into a canonical
// AnalysisResponse. It holds no per-request state and is safe for
// concurrent use.
type Pipeline struct {
	validator    *Validator
	transcriber  Transcriber
	orchestrator *Orchestrator
	prompts      *Prompts
	saver        MealSaver
	recorder     Recorder
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithMealSaver persists every successful analysis.
func WithMealSaver(s MealSaver) Option {
	return func(p *Pipeline) { p.saver = s }
}

// WithRecorder reports attempts, drops and outcomes.
func WithRecorder(r Recorder) Option {
	return func(p *Pipeline) {
		if r != nil {
			p.recorder = r
		}
	}
}

// WithPrompts replaces the built-in prompts.
func WithPrompts(pr *Prompts) Option {
	return func(p *Pipeline) {
		if pr != nil {
			p.prompts = pr
		}
	}
}

// New builds a Pipeline over the two backends and the transcriber.
func New(primary, secondary Adapter, transcriber Transcriber, opts ...Option) (*Pipeline, error) {
	v, err := NewValidator()
	if err != nil {
		return nil, err
	}
	p := &Pipeline{
		validator:   v,
		transcriber: transcriber,
		prompts:     DefaultPrompts(),
		recorder:    nopRecorder{},
	}
	for _, o := range opts {
		o(p)
	}
	p.orchestrator = NewOrchestrator(primary, secondary, p.recorder)
	return p, nil
}

// Process validates payload for modality, checks that caller is the
// request subject and runs the analysis.
func (p *Pipeline) Process(ctx context.Context, caller string, modality model.Modality, payload []byte) (*model.AnalysisResponse, error) {
	req, err := p.validator.Validate(modality, payload)
	if err == nil {
		err = Authorize(caller, req)
	}
	if err != nil {
		p.recorder.Request(modality, string(KindOf(err)), 0)
		return nil, err
	}
	return p.Run(ctx, req)
}

// Run analyzes an already validated request. On success the result is
// handed to the meal saver, whose failure never affects the response.
func (p *Pipeline) Run(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResponse, error) {
	start := time.Now()
	resp, err := p.analyze(ctx, req)

	result := "success"
	if err != nil {
		result = string(KindOf(err))
	}
	p.recorder.Request(req.Modality, result, time.Since(start))
	if err != nil {
		return nil, err
	}

	p.persist(ctx, req, resp)
	return resp, nil
}

func (p *Pipeline) analyze(ctx context.Context, req *model.AnalysisRequest) (*model.AnalysisResponse, error) {
	in := Input{Modality: req.Modality, Source: req.Modality}
	data := PromptData{MealHint: req.MealHint, Date: req.Date}

	var transcript, normalized string
	switch req.Modality {
	case model.ModalityImage:
		in.ImageURL = req.ImageURL
	case model.ModalityText:
		normalized = NormalizeText(req.Text)
		in.Text = normalized
	case model.ModalityAudio:
		var err error
		transcript, err = p.transcribe(ctx, req)
		if err != nil {
			return nil, err
		}
		in.Modality = model.ModalityText
		in.Text = NormalizeText(transcript)
	default:
		return nil, newError(KindInvalidRequest, "unknown modality "+string(req.Modality), nil)
	}

	data.Text = in.Text
	prompt, err := p.prompts.Render(in.Modality, data)
	if err != nil {
		return nil, newError(KindInternal, "failed to build prompt", err)
	}
	in.Prompt = prompt

	result, err := p.orchestrator.Run(ctx, in)
	if err != nil {
		return nil, err
	}

	resp, dropped := Project(result.Object, req.MealHint)
	if dropped > 0 {
		p.recorder.FoodItemsDropped(dropped)
	}
	resp.Provider = result.Provider
	resp.Raw = result.Raw
	resp.Transcript = transcript
	resp.NormalizedText = normalized
	return resp, nil
}

func (p *Pipeline) transcribe(ctx context.Context, req *model.AnalysisRequest) (string, error) {
	if p.transcriber == nil {
		return "", newError(KindTranscriptionError, "audio transcription is not configured", nil)
	}
	text, err := p.transcriber.Transcribe(ctx, Audio{
		Data:     req.AudioData,
		URL:      req.AudioURL,
		MimeType: req.AudioMimeType,
	})
	if err != nil {
		return "", newError(KindTranscriptionError, "audio transcription failed", err)
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return "", newError(KindTranscriptionError, "audio transcription was empty", nil)
	}
	return text, nil
}

func (p *Pipeline) persist(ctx context.Context, req *model.AnalysisRequest, resp *model.AnalysisResponse) {
	if p.saver == nil {
		return
	}
	rec := model.NewMealRecord(req, resp)
	if err := p.saver.SaveMeal(ctx, &rec); err != nil {
		p.recorder.PersistenceError()
		zap.L().Warn("analysis: failed to persist meal",
			zap.String("user_id", req.SubjectUserID),
			zap.String("modality", string(req.Modality)),
			zap.Error(err),
		)
	}
}
