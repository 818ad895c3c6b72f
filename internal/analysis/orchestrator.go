package analysis

import (
	"context"
	"strings"

	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/model"
)

// Result is the winning attempt of an orchestration.
type Result struct {
	Provider model.ProviderTag
	Raw      string
	Object   map[string]any
	Attempts []model.ProviderAttempt
}

// Orchestrator tries the primary adapter, then the secondary adapter once.
// The first attempt whose text decodes to a JSON object wins. Calls are
// strictly sequential.
type Orchestrator struct {
	primary   Adapter
	secondary Adapter
	recorder  Recorder
}

// NewOrchestrator creates an Orchestrator. A nil recorder is allowed.
func NewOrchestrator(primary, secondary Adapter, recorder Recorder) *Orchestrator {
	if recorder == nil {
		recorder = nopRecorder{}
	}
	return &Orchestrator{primary: primary, secondary: secondary, recorder: recorder}
}

// Run executes TryPrimary, then TrySecondary, then Failed.
func (o *Orchestrator) Run(ctx context.Context, in Input) (*Result, error) {
	steps := []struct {
		tag     model.ProviderTag
		adapter Adapter
	}{
		{model.ProviderPrimary, o.primary},
		{model.ProviderSecondary, o.secondary},
	}

	source := in.SourceModality()
	attempts := make([]model.ProviderAttempt, 0, len(steps))
	for _, step := range steps {
		raw, obj, attempt := o.try(ctx, step.tag, step.adapter, in)
		attempts = append(attempts, attempt)
		o.recorder.ProviderAttempt(step.tag, source, attempt.Outcome)

		if attempt.Outcome == model.OutcomeSuccess {
			zap.L().Debug("analysis: provider succeeded",
				zap.String("provider", string(step.tag)),
				zap.String("modality", string(source)),
			)
			return &Result{Provider: step.tag, Raw: raw, Object: obj, Attempts: attempts}, nil
		}

		zap.L().Warn("analysis: provider attempt failed",
			zap.String("provider", string(step.tag)),
			zap.String("modality", string(source)),
			zap.String("outcome", string(attempt.Outcome)),
			zap.Error(attempt.Err),
		)
	}

	return nil, failure(attempts)
}

func (o *Orchestrator) try(ctx context.Context, tag model.ProviderTag, a Adapter, in Input) (string, map[string]any, model.ProviderAttempt) {
	attempt := model.ProviderAttempt{Provider: tag}
	if a == nil {
		attempt.Outcome = model.OutcomeNetworkError
		attempt.Err = errAdapterNotConfigured
		return "", nil, attempt
	}

	raw, err := a.Analyze(ctx, in)
	switch {
	case err != nil:
		attempt.Outcome = model.OutcomeNetworkError
		attempt.Err = err
		return "", nil, attempt
	case strings.TrimSpace(raw) == "":
		attempt.Outcome = model.OutcomeEmptyContent
		attempt.Err = errEmptyContent
		return "", nil, attempt
	}

	obj, err := DecodeObject(raw)
	if err != nil {
		attempt.Outcome = model.OutcomeParseError
		attempt.Err = err
		return "", nil, attempt
	}

	attempt.Outcome = model.OutcomeSuccess
	return raw, obj, attempt
}

// failure builds the terminal error. When every attempt produced text
// without a usable JSON object the kind is MalformedProviderOutput.
func failure(attempts []model.ProviderAttempt) *Error {
	allParse := len(attempts) > 0
	for _, a := range attempts {
		if a.Outcome != model.OutcomeParseError {
			allParse = false
			break
		}
	}

	e := newError(KindAllProvidersFailed, "all analysis providers failed, try again", attemptsError(attempts))
	if allParse {
		e.Kind = KindMalformedProviderOutput
		e.Msg = "analysis providers returned no usable result, try again"
	}
	e.Attempts = attempts
	return e
}
