package api

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/auth"
	"github.com/sells-group/meal-analyzer/internal/model"
	"github.com/sells-group/meal-analyzer/internal/store"
)

const healthTimeout = 2 * time.Second

type errorBody struct {
	Error string        `json:"error"`
	Kind  analysis.Kind `json:"kind,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if s.opts.Health != nil {
		ctx, cancel := context.WithTimeout(r.Context(), healthTimeout)
		defer cancel()
		if err := s.opts.Health.Ping(ctx); err != nil {
			zap.L().Warn("api: health check failed", zap.Error(err))
			respondJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
			return
		}
	}
	respondJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleAnalyze(modality model.Modality) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.opts.MaxBodyBytes))
		if err != nil {
			var tooLarge *http.MaxBytesError
			if errors.As(err, &tooLarge) {
				respondKind(w, analysis.KindInvalidRequest, "invalid request: body too large")
				return
			}
			respondKind(w, analysis.KindInvalidRequest, "invalid request: unreadable body")
			return
		}

		resp, err := s.analyzer.Process(r.Context(), auth.SubjectFrom(r.Context()), modality, body)
		if err != nil {
			respondError(w, r, modality, err)
			return
		}
		respondJSON(w, http.StatusOK, resp)
	}
}

// handleListMeals returns the caller's stored meals, optionally for one date.
func (s *Server) handleListMeals(w http.ResponseWriter, r *http.Request) {
	caller := auth.SubjectFrom(r.Context())
	if caller == "" {
		respondKind(w, analysis.KindUnauthorized, "authentication required")
		return
	}

	q := r.URL.Query()
	filter := model.MealFilter{UserID: caller, Date: q.Get("date")}
	if uid := q.Get("user_id"); uid != "" && uid != caller {
		respondKind(w, analysis.KindForbidden, "user_id does not match the authenticated caller")
		return
	}
	if filter.Date != "" {
		if _, err := time.Parse(time.DateOnly, filter.Date); err != nil {
			respondKind(w, analysis.KindInvalidRequest, "invalid request: date must be YYYY-MM-DD")
			return
		}
	}
	var err error
	if filter.Limit, err = intParam(q.Get("limit")); err != nil {
		respondKind(w, analysis.KindInvalidRequest, "invalid request: limit must be a non-negative integer")
		return
	}
	if filter.Offset, err = intParam(q.Get("offset")); err != nil {
		respondKind(w, analysis.KindInvalidRequest, "invalid request: offset must be a non-negative integer")
		return
	}

	meals, err := s.opts.Meals.ListMeals(r.Context(), filter)
	if err != nil {
		zap.L().Error("api: list meals", zap.String("user_id", caller), zap.Error(err))
		respondKind(w, analysis.KindInternal, "internal error")
		return
	}
	respondJSON(w, http.StatusOK, map[string]any{"meals": meals})
}

// handleGetMeal returns one of the caller's meals. Meals owned by someone
// else are reported as missing.
func (s *Server) handleGetMeal(w http.ResponseWriter, r *http.Request) {
	caller := auth.SubjectFrom(r.Context())
	if caller == "" {
		respondKind(w, analysis.KindUnauthorized, "authentication required")
		return
	}

	id := chi.URLParam(r, "id")
	meal, err := s.opts.Meals.GetMeal(r.Context(), id)
	switch {
	case errors.Is(err, store.ErrNotFound):
		respondJSON(w, http.StatusNotFound, errorBody{Error: "meal not found"})
		return
	case err != nil:
		zap.L().Error("api: get meal", zap.String("meal_id", id), zap.Error(err))
		respondKind(w, analysis.KindInternal, "internal error")
		return
	case meal.UserID != caller:
		respondJSON(w, http.StatusNotFound, errorBody{Error: "meal not found"})
		return
	}
	respondJSON(w, http.StatusOK, meal)
}

func intParam(v string) (int, error) {
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, eris.New("api: not a non-negative integer")
	}
	return n, nil
}

// StatusFor maps an error kind to its HTTP status.
func StatusFor(kind analysis.Kind) int {
	switch kind {
	case analysis.KindInvalidRequest:
		return http.StatusBadRequest
	case analysis.KindUnauthorized:
		return http.StatusUnauthorized
	case analysis.KindForbidden:
		return http.StatusForbidden
	default:
		return http.StatusInternalServerError
	}
}

func respondError(w http.ResponseWriter, r *http.Request, modality model.Modality, err error) {
	kind := analysis.KindOf(err)
	status := StatusFor(kind)
	if status >= http.StatusInternalServerError {
		zap.L().Warn("api: analysis failed",
			zap.String("modality", string(modality)),
			zap.String("kind", string(kind)),
			zap.Error(err),
		)
	} else {
		zap.L().Debug("api: request rejected",
			zap.String("modality", string(modality)),
			zap.String("kind", string(kind)),
			zap.String("path", r.URL.Path),
		)
	}
	respondJSON(w, status, errorBody{Error: analysis.PublicMessage(err), Kind: kind})
}

func respondKind(w http.ResponseWriter, kind analysis.Kind, msg string) {
	respondJSON(w, StatusFor(kind), errorBody{Error: msg, Kind: kind})
}

func respondJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
