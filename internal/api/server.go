package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/model"
)

const defaultMaxBodyBytes = 32 << 20

// Analyzer runs one analysis request for an authenticated caller.
type Analyzer interface {
	Process(ctx context.Context, caller string, modality model.Modality, payload []byte) (*model.AnalysisResponse, error)
}

// MealReader reads stored meals.
type MealReader interface {
	GetMeal(ctx context.Context, id string) (*model.MealRecord, error)
	ListMeals(ctx context.Context, filter model.MealFilter) ([]model.MealRecord, error)
}

// Pinger reports whether a backing service is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Options configures a Server. Nil collaborators disable their routes.
type Options struct {
	Meals          MealReader
	Health         Pinger
	Identity       func(http.Handler) http.Handler
	Gatherer       prometheus.Gatherer
	CORSOrigins    []string
	RequestTimeout time.Duration
	MaxBodyBytes   int64
}

// Server exposes the analysis pipeline over HTTP.
type Server struct {
	analyzer Analyzer
	opts     Options
}

// NewServer creates a Server.
func NewServer(analyzer Analyzer, opts Options) *Server {
	if opts.MaxBodyBytes <= 0 {
		opts.MaxBodyBytes = defaultMaxBodyBytes
	}
	return &Server{analyzer: analyzer, opts: opts}
}

// Router builds the HTTP handler tree.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	if len(s.opts.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.CORSOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type"},
			MaxAge:         300,
		}))
	}

	r.Get("/health", s.handleHealth)
	if s.opts.Gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1", func(api chi.Router) {
		if s.opts.Identity != nil {
			api.Use(s.opts.Identity)
		}
		if s.opts.RequestTimeout > 0 {
			api.Use(requestDeadline(s.opts.RequestTimeout))
		}

		api.Post("/analyze/image", s.handleAnalyze(model.ModalityImage))
		api.Post("/analyze/audio", s.handleAnalyze(model.ModalityAudio))
		api.Post("/analyze/text", s.handleAnalyze(model.ModalityText))

		if s.opts.Meals != nil {
			api.Get("/meals", s.handleListMeals)
			api.Get("/meals/{id}", s.handleGetMeal)
		}
	})

	return r
}

// requestDeadline bounds the request context. It never writes a response;
// handlers report context errors themselves.
func requestDeadline(d time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := context.WithTimeout(r.Context(), d)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// requestLogger writes one access log line per request.
func requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			zap.L().Info("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Int("bytes", ww.BytesWritten()),
				zap.Duration("elapsed", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		}()
		next.ServeHTTP(ww, r)
	})
}
