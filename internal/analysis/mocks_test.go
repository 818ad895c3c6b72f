package analysis

import (
	"context"
	"sync"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/sells-group/meal-analyzer/internal/model"
)

type mockAdapter struct {
	mock.Mock
}

func (m *mockAdapter) Analyze(ctx context.Context, in Input) (string, error) {
	args := m.Called(ctx, in)
	return args.String(0), args.Error(1)
}

type mockTranscriber struct {
	mock.Mock
}

func (m *mockTranscriber) Transcribe(ctx context.Context, audio Audio) (string, error) {
	args := m.Called(ctx, audio)
	return args.String(0), args.Error(1)
}

type mockSaver struct {
	mock.Mock
}

func (m *mockSaver) SaveMeal(ctx context.Context, rec *model.MealRecord) error {
	args := m.Called(ctx, rec)
	return args.Error(0)
}

// recordingRecorder keeps every observation for assertions.
type recordingRecorder struct {
	mu          sync.Mutex
	attempts    []model.ProviderAttempt
	modalities  []model.Modality
	dropped     int
	persistErrs int
	results     []string
}

func (r *recordingRecorder) ProviderAttempt(provider model.ProviderTag, modality model.Modality, outcome model.AttemptOutcome) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.attempts = append(r.attempts, model.ProviderAttempt{Provider: provider, Outcome: outcome})
	r.modalities = append(r.modalities, modality)
}

func (r *recordingRecorder) FoodItemsDropped(n int) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.dropped += n
}

func (r *recordingRecorder) PersistenceError() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.persistErrs++
}

func (r *recordingRecorder) Request(_ model.Modality, result string, _ time.Duration) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.results = append(r.results, result)
}
