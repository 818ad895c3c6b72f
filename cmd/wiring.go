package main

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/analysis"
	"github.com/sells-group/meal-analyzer/internal/fetcher"
	"github.com/sells-group/meal-analyzer/internal/metrics"
	"github.com/sells-group/meal-analyzer/internal/provider"
	"github.com/sells-group/meal-analyzer/internal/store"
	anthropicpkg "github.com/sells-group/meal-analyzer/pkg/anthropic"
	"github.com/sells-group/meal-analyzer/pkg/openai"
)

// analyzerEnv holds the initialized store, metrics and pipeline needed by
// the serve and analyze commands.
type analyzerEnv struct {
	Store    store.Store // nil when store.driver is none
	Pipeline *analysis.Pipeline
	Registry *prometheus.Registry // nil when metrics are disabled
}

// Close releases resources held by the environment.
func (e *analyzerEnv) Close() {
	if e.Store != nil {
		_ = e.Store.Close()
	}
}

// initStore opens the configured store. It returns nil for driver "none".
func initStore(ctx context.Context) (store.Store, error) {
	switch cfg.Store.Driver {
	case "sqlite":
		path := cfg.Store.SQLitePath
		if path == "" {
			path = "meals.db"
		}
		return store.NewSQLite(path)
	case "postgres":
		return store.NewPostgres(ctx, cfg.Store.DatabaseURL, &store.PoolConfig{
			MaxConns: cfg.Store.MaxConns,
			MinConns: cfg.Store.MinConns,
		})
	case "none", "":
		return nil, nil
	default:
		return nil, eris.Errorf("unsupported store driver: %s", cfg.Store.Driver)
	}
}

// initAnalyzer validates config for mode, builds the backends and the
// pipeline. Meals are persisted only when persist is set and a store is
// configured. Callers should defer env.Close().
func initAnalyzer(ctx context.Context, mode string, persist bool) (*analyzerEnv, error) {
	if err := cfg.Validate(mode); err != nil {
		return nil, err
	}

	env := &analyzerEnv{}
	var opts []analysis.Option

	if persist {
		st, err := initStore(ctx)
		if err != nil {
			return nil, err
		}
		if st != nil {
			if err := st.Migrate(ctx); err != nil {
				_ = st.Close()
				return nil, eris.Wrap(err, "migrate store")
			}
			env.Store = st
			opts = append(opts, analysis.WithMealSaver(st))
		} else {
			zap.L().Info("store disabled, meals will not be persisted")
		}
	}

	if cfg.Metrics.Enabled {
		env.Registry = prometheus.NewRegistry()
		m, err := metrics.NewPipelineMetrics(env.Registry)
		if err != nil {
			env.Close()
			return nil, eris.Wrap(err, "register metrics")
		}
		opts = append(opts, analysis.WithRecorder(m))
	}

	if cfg.Analysis.PromptsFile != "" {
		prompts, err := analysis.LoadPrompts(cfg.Analysis.PromptsFile)
		if err != nil {
			env.Close()
			return nil, err
		}
		opts = append(opts, analysis.WithPrompts(prompts))
		zap.L().Info("prompt overrides loaded", zap.String("path", cfg.Analysis.PromptsFile))
	}

	media := fetcher.NewHTTPFetcher(fetcher.HTTPOptions{MaxBytes: cfg.Analysis.MaxMediaBytes})

	openaiClient := openai.NewClient(cfg.OpenAI.Key,
		openai.WithBaseURL(cfg.OpenAI.BaseURL),
		openai.WithModel(cfg.OpenAI.Model),
		openai.WithTranscriptionModel(cfg.OpenAI.TranscriptionModel),
		openai.WithTimeout(time.Duration(cfg.OpenAI.TimeoutSecs)*time.Second),
	)
	primary := provider.NewOpenAIAdapter(openaiClient, cfg.OpenAI.Model, cfg.OpenAI.MaxTokens)
	transcriber := provider.NewWhisperTranscriber(openaiClient, media, cfg.OpenAI.TranscriptionModel)

	// The secondary stays a nil interface when unconfigured; the
	// orchestrator records it as a failed attempt.
	var secondary analysis.Adapter
	if cfg.Anthropic.Key != "" {
		anthropicClient := anthropicpkg.NewClient(cfg.Anthropic.Key,
			anthropicpkg.WithBaseURL(cfg.Anthropic.BaseURL),
			anthropicpkg.WithTimeout(time.Duration(cfg.Anthropic.TimeoutSecs)*time.Second),
		)
		secondary = provider.NewAnthropicAdapter(anthropicClient, media, cfg.Anthropic.Model, cfg.Anthropic.MaxTokens)
	} else {
		zap.L().Warn("anthropic.key not set, secondary backend disabled")
	}

	p, err := analysis.New(primary, secondary, transcriber, opts...)
	if err != nil {
		env.Close()
		return nil, eris.Wrap(err, "build pipeline")
	}
	env.Pipeline = p

	zap.L().Info("analysis pipeline ready",
		zap.String("primary_model", cfg.OpenAI.Model),
		zap.String("secondary_model", cfg.Anthropic.Model),
		zap.Bool("secondary_enabled", secondary != nil),
		zap.Bool("persist", env.Store != nil),
		zap.Bool("metrics", env.Registry != nil),
	)
	return env, nil
}
