package provider

import (
	"go.uber.org/zap"

	"github.com/sells-group/meal-analyzer/internal/cost"
	"github.com/sells-group/meal-analyzer/internal/model"
)

// usage is the token accounting of one backend call.
type usage struct {
	input      int
	output     int
	cacheWrite int
	cacheRead  int
}

// logCost writes the cost attribution line for one call. The phase is
// derived from the request's source modality.
func logCost(costs *cost.Calculator, modelID string, source model.Modality, u usage) {
	estimate := costs.Tokens(modelID, u.input, u.output) + costs.Cache(modelID, u.cacheWrite, u.cacheRead)
	zap.L().Info("cost attribution",
		zap.String("model", modelID),
		zap.String("phase", "analyze_"+string(source)),
		zap.Int("input_tokens", u.input),
		zap.Int("output_tokens", u.output),
		zap.Int("cache_write_tokens", u.cacheWrite),
		zap.Int("cache_read_tokens", u.cacheRead),
		zap.Float64("estimated_cost_usd", estimate),
	)
}
