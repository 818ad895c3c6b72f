package cost

import "strings"

// ModelRate holds per-model token pricing (USD per million tokens).
type ModelRate struct {
	Input  float64
	Output float64
}

// Rates maps model ids, or model id prefixes, to their pricing.
type Rates map[string]ModelRate

// Calculator computes costs for API usage.
type Calculator struct {
	rates Rates
}

// NewCalculator creates a Calculator with the given rates.
func NewCalculator(rates Rates) *Calculator {
	return &Calculator{rates: rates}
}

// Rate returns the pricing for model. Dated snapshots such as
// "gpt-4o-mini-2024-07-18" resolve to the longest matching prefix.
func (c *Calculator) Rate(model string) (ModelRate, bool) {
	if r, ok := c.rates[model]; ok {
		return r, true
	}
	best := ""
	for id := range c.rates {
		if strings.HasPrefix(model, id) && len(id) > len(best) {
			best = id
		}
	}
	if best == "" {
		return ModelRate{}, false
	}
	return c.rates[best], true
}

// Tokens computes the cost of one completion call. Unknown models cost 0.
func (c *Calculator) Tokens(model string, input, output int) float64 {
	rate, ok := c.Rate(model)
	if !ok {
		return 0
	}
	return (float64(input)/1e6)*rate.Input + (float64(output)/1e6)*rate.Output
}

// Cache computes the cost of prompt cache traffic. Writes are billed at
// 1.25x and reads at 0.1x the input rate.
func (c *Calculator) Cache(model string, write, read int) float64 {
	rate, ok := c.Rate(model)
	if !ok {
		return 0
	}
	return (float64(write)/1e6)*rate.Input*1.25 + (float64(read)/1e6)*rate.Input*0.1
}

// DefaultRates returns the default pricing rates.
func DefaultRates() Rates {
	return Rates{
		"gpt-4o-mini":  {Input: 0.15, Output: 0.60},
		"gpt-4o":       {Input: 2.50, Output: 10.00},
		"gpt-4.1-mini": {Input: 0.40, Output: 1.60},
		"gpt-4.1":      {Input: 2.00, Output: 8.00},

		"claude-haiku-4-5":  {Input: 0.80, Output: 4.00},
		"claude-sonnet-4-5": {Input: 3.00, Output: 15.00},
		"claude-opus-4":     {Input: 15.00, Output: 75.00},
	}
}
