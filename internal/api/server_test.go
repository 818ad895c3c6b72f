package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/auth"
	"github.com/sells-group/meal-analyzer/internal/model"
	"github.com/sells-group/meal-analyzer/internal/store"
)

type mockAnalyzer struct{ mock.Mock }

func (m *mockAnalyzer) Process(ctx context.Context, caller string, modality model.Modality, payload []byte) (*model.AnalysisResponse, error) {
	args := m.Called(ctx, caller, modality, payload)
	if v := args.Get(0); v != nil {
		return v.(*model.AnalysisResponse), args.Error(1)
	}
	return nil, args.Error(1)
}

type mockMeals struct{ mock.Mock }

func (m *mockMeals) GetMeal(ctx context.Context, id string) (*model.MealRecord, error) {
	args := m.Called(ctx, id)
	if v := args.Get(0); v != nil {
		return v.(*model.MealRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *mockMeals) ListMeals(ctx context.Context, filter model.MealFilter) ([]model.MealRecord, error) {
	args := m.Called(ctx, filter)
	if v := args.Get(0); v != nil {
		return v.([]model.MealRecord), args.Error(1)
	}
	return nil, args.Error(1)
}

const testSecret = "test-secret"

func bearer(t *testing.T, subject string) string {
	t.Helper()
	tok, err := auth.New(testSecret, "", "").Sign(subject, time.Hour)
	require.NoError(t, err)
	return "Bearer " + tok
}

func newTestServer(a Analyzer, opts Options) http.Handler {
	opts.Identity = auth.New(testSecret, "", "").Middleware
	return NewServer(a, opts).Router()
}

func do(h http.Handler, method, path, authz, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	if authz != "" {
		req.Header.Set("Authorization", authz)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func decodeError(t *testing.T, rec *httptest.ResponseRecorder) errorBody {
	t.Helper()
	var body errorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

type mockPinger struct{ mock.Mock }

func (m *mockPinger) Ping(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

func TestHealth(t *testing.T) {
	h := newTestServer(&mockAnalyzer{}, Options{})
	rec := do(h, http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.JSONEq(t, `{"status":"ok"}`, rec.Body.String())
}

func TestHealth_PingsStore(t *testing.T) {
	p := &mockPinger{}
	p.On("Ping", mock.Anything).Return(nil).Once()
	rec := do(newTestServer(&mockAnalyzer{}, Options{Health: p}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusOK, rec.Code)
	p.AssertExpectations(t)

	p = &mockPinger{}
	p.On("Ping", mock.Anything).Return(errors.New("connection refused")).Once()
	rec = do(newTestServer(&mockAnalyzer{}, Options{Health: p}), http.MethodGet, "/health", "", "")
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.JSONEq(t, `{"status":"unavailable"}`, rec.Body.String())
}

func TestAnalyze_Success(t *testing.T) {
	a := &mockAnalyzer{}
	payload := `{"text":"two eggs","user_id":"u1"}`
	a.On("Process", mock.Anything, "u1", model.ModalityText, []byte(payload)).Return(&model.AnalysisResponse{
		MealType: model.MealBreakfast,
		Foods:    []model.FoodItem{{Label: "egg", Confidence: 0.9, Quantity: "2"}},
		Nutrition: model.NutritionEstimate{
			Calories: 140,
			Macros:   model.Macros{Protein: 12, Fat: 10},
		},
		NormalizedText: "two eggs",
		Provider:       model.ProviderPrimary,
		Raw:            `{"meal":"breakfast"}`,
	}, nil)

	h := newTestServer(a, Options{})
	rec := do(h, http.MethodPost, "/api/v1/analyze/text", bearer(t, "u1"), payload)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
	var got map[string]any
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
	assert.Equal(t, "breakfast", got["meal_type"])
	assert.Equal(t, "primary", got["provider"])
	assert.Equal(t, "two eggs", got["normalized_text"])
	a.AssertExpectations(t)
}

func TestAnalyze_RoutesModality(t *testing.T) {
	for _, m := range []model.Modality{model.ModalityImage, model.ModalityAudio, model.ModalityText} {
		t.Run(string(m), func(t *testing.T) {
			a := &mockAnalyzer{}
			a.On("Process", mock.Anything, "u1", m, mock.Anything).
				Return(&model.AnalysisResponse{MealType: model.MealSnack, Foods: []model.FoodItem{}, Provider: model.ProviderSecondary, Raw: "{}"}, nil)

			h := newTestServer(a, Options{})
			rec := do(h, http.MethodPost, "/api/v1/analyze/"+string(m), bearer(t, "u1"), `{}`)
			assert.Equal(t, http.StatusOK, rec.Code)
			a.AssertExpectations(t)
		})
	}
}

func TestAnalyze_AnonymousCallerPassesEmptySubject(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Process", mock.Anything, "", model.ModalityText, mock.Anything).
		Return(nil, &analysis.Error{Kind: analysis.KindUnauthorized, Msg: "authentication required"})

	h := newTestServer(a, Options{})
	rec := do(h, http.MethodPost, "/api/v1/analyze/text", "Bearer not-a-jwt", `{"text":"x","user_id":"u1"}`)

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, analysis.KindUnauthorized, body.Kind)
	assert.Equal(t, "authentication required", body.Error)
}

func TestAnalyze_ErrorStatusMapping(t *testing.T) {
	tests := []struct {
		kind analysis.Kind
		want int
	}{
		{analysis.KindInvalidRequest, http.StatusBadRequest},
		{analysis.KindUnauthorized, http.StatusUnauthorized},
		{analysis.KindForbidden, http.StatusForbidden},
		{analysis.KindAllProvidersFailed, http.StatusInternalServerError},
		{analysis.KindMalformedProviderOutput, http.StatusInternalServerError},
		{analysis.KindTranscriptionError, http.StatusInternalServerError},
		{analysis.KindInternal, http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(string(tt.kind), func(t *testing.T) {
			a := &mockAnalyzer{}
			a.On("Process", mock.Anything, "u1", model.ModalityImage, mock.Anything).
				Return(nil, &analysis.Error{Kind: tt.kind, Msg: "public message", Err: errors.New("private detail")})

			h := newTestServer(a, Options{})
			rec := do(h, http.MethodPost, "/api/v1/analyze/image", bearer(t, "u1"), `{}`)

			assert.Equal(t, tt.want, rec.Code)
			body := decodeError(t, rec)
			assert.Equal(t, tt.kind, body.Kind)
			assert.Equal(t, "public message", body.Error)
			assert.NotContains(t, rec.Body.String(), "private detail")
		})
	}
}

func TestAnalyze_UntypedErrorIsInternal(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything).
		Return(nil, errors.New("boom"))

	h := newTestServer(a, Options{})
	rec := do(h, http.MethodPost, "/api/v1/analyze/text", bearer(t, "u1"), `{}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeError(t, rec)
	assert.Equal(t, analysis.KindInternal, body.Kind)
	assert.Equal(t, "internal error", body.Error)
}

func TestAnalyze_BodyTooLarge(t *testing.T) {
	a := &mockAnalyzer{}
	h := newTestServer(a, Options{MaxBodyBytes: 16})

	rec := do(h, http.MethodPost, "/api/v1/analyze/text", bearer(t, "u1"), strings.Repeat("x", 64))

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, analysis.KindInvalidRequest, decodeError(t, rec).Kind)
	a.AssertNotCalled(t, "Process", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestAnalyze_MethodNotAllowed(t *testing.T) {
	h := newTestServer(&mockAnalyzer{}, Options{})
	rec := do(h, http.MethodGet, "/api/v1/analyze/text", "", "")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func TestListMeals(t *testing.T) {
	meals := []model.MealRecord{{ID: "m1", UserID: "u1", Date: "2024-05-01", MealType: model.MealLunch, Foods: []model.FoodItem{}}}

	tests := []struct {
		name       string
		authz      bool
		query      string
		wantStatus int
		wantFilter *model.MealFilter
	}{
		{name: "anonymous", query: "", wantStatus: http.StatusUnauthorized},
		{
			name: "by date", authz: true, query: "?date=2024-05-01",
			wantStatus: http.StatusOK,
			wantFilter: &model.MealFilter{UserID: "u1", Date: "2024-05-01"},
		},
		{
			name: "paged", authz: true, query: "?limit=5&offset=10&user_id=u1",
			wantStatus: http.StatusOK,
			wantFilter: &model.MealFilter{UserID: "u1", Limit: 5, Offset: 10},
		},
		{name: "other user", authz: true, query: "?user_id=u2", wantStatus: http.StatusForbidden},
		{name: "bad date", authz: true, query: "?date=05/01/2024", wantStatus: http.StatusBadRequest},
		{name: "bad limit", authz: true, query: "?limit=-1", wantStatus: http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := &mockMeals{}
			if tt.wantFilter != nil {
				l.On("ListMeals", mock.Anything, *tt.wantFilter).Return(meals, nil)
			}
			h := newTestServer(&mockAnalyzer{}, Options{Meals: l})

			authz := ""
			if tt.authz {
				authz = bearer(t, "u1")
			}
			rec := do(h, http.MethodGet, "/api/v1/meals"+tt.query, authz, "")

			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantFilter != nil {
				var body struct {
					Meals []model.MealRecord `json:"meals"`
				}
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
				require.Len(t, body.Meals, 1)
				assert.Equal(t, "m1", body.Meals[0].ID)
			}
			l.AssertExpectations(t)
		})
	}
}

func TestListMeals_StoreError(t *testing.T) {
	l := &mockMeals{}
	l.On("ListMeals", mock.Anything, mock.Anything).Return(nil, errors.New("db down"))
	h := newTestServer(&mockAnalyzer{}, Options{Meals: l})

	rec := do(h, http.MethodGet, "/api/v1/meals", bearer(t, "u1"), "")

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "db down")
}

func TestGetMeal(t *testing.T) {
	own := &model.MealRecord{ID: "m1", UserID: "u1", Date: "2024-05-01", MealType: model.MealLunch, Foods: []model.FoodItem{}}
	other := &model.MealRecord{ID: "m2", UserID: "u2", Date: "2024-05-01", MealType: model.MealSnack, Foods: []model.FoodItem{}}

	m := &mockMeals{}
	m.On("GetMeal", mock.Anything, "m1").Return(own, nil)
	m.On("GetMeal", mock.Anything, "m2").Return(other, nil)
	m.On("GetMeal", mock.Anything, "missing").Return(nil, store.ErrNotFound)
	m.On("GetMeal", mock.Anything, "broken").Return(nil, errors.New("db down"))
	h := newTestServer(&mockAnalyzer{}, Options{Meals: m})

	tests := []struct {
		name       string
		id         string
		authz      string
		wantStatus int
	}{
		{name: "own meal", id: "m1", authz: bearer(t, "u1"), wantStatus: http.StatusOK},
		{name: "anonymous", id: "m1", wantStatus: http.StatusUnauthorized},
		{name: "someone else's meal", id: "m2", authz: bearer(t, "u1"), wantStatus: http.StatusNotFound},
		{name: "missing", id: "missing", authz: bearer(t, "u1"), wantStatus: http.StatusNotFound},
		{name: "store error", id: "broken", authz: bearer(t, "u1"), wantStatus: http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(h, http.MethodGet, "/api/v1/meals/"+tt.id, tt.authz, "")
			assert.Equal(t, tt.wantStatus, rec.Code)
			if tt.wantStatus == http.StatusOK {
				var got model.MealRecord
				require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &got))
				assert.Equal(t, "m1", got.ID)
			}
			assert.NotContains(t, rec.Body.String(), "db down")
		})
	}
}

func TestAnalyze_RequestDeadline(t *testing.T) {
	a := &mockAnalyzer{}
	a.On("Process", mock.Anything, "u1", model.ModalityText, mock.Anything).
		Run(func(args mock.Arguments) {
			<-args.Get(0).(context.Context).Done()
		}).
		Return(nil, context.DeadlineExceeded).Once()
	h := newTestServer(a, Options{RequestTimeout: 20 * time.Millisecond})

	rec := do(h, http.MethodPost, "/api/v1/analyze/text", bearer(t, "u1"), `{"text":"eggs","user_id":"u1"}`)

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.Equal(t, analysis.KindInternal, decodeError(t, rec).Kind)
	a.AssertExpectations(t)
}

func TestListMeals_DisabledWithoutStore(t *testing.T) {
	h := newTestServer(&mockAnalyzer{}, Options{})
	rec := do(h, http.MethodGet, "/api/v1/meals", bearer(t, "u1"), "")
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMetricsRoute(t *testing.T) {
	reg := prometheus.NewRegistry()
	c := prometheus.NewCounter(prometheus.CounterOpts{Name: "meal_test_total", Help: "test"})
	reg.MustRegister(c)
	c.Inc()

	h := newTestServer(&mockAnalyzer{}, Options{Gatherer: reg})
	rec := do(h, http.MethodGet, "/metrics", "", "")

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "meal_test_total 1")

	h = newTestServer(&mockAnalyzer{}, Options{})
	assert.Equal(t, http.StatusNotFound, do(h, http.MethodGet, "/metrics", "", "").Code)
}

func TestCORSPreflight(t *testing.T) {
	h := newTestServer(&mockAnalyzer{}, Options{CORSOrigins: []string{"https://app.example.com"}})

	req := httptest.NewRequest(http.MethodOptions, "/api/v1/analyze/text", bytes.NewReader(nil))
	req.Header.Set("Origin", "https://app.example.com")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	assert.Equal(t, "https://app.example.com", rec.Header().Get("Access-Control-Allow-Origin"))
}
