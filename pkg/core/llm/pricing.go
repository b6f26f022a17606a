package llm

// Per-million-token USD rates used for cost observability. Rates drift;
// these are estimates for budgeting, not billing.
type rate struct {
	prompt   float64
	response float64
}

var modelRates = map[string]rate{
	"gemini-2.0-flash":    {prompt: 0.10, response: 0.40},
	"gemini-1.5-flash-8b": {prompt: 0.0375, response: 0.15},
	"deepseek-chat":       {prompt: 0.27, response: 1.10},
}

// defaultRate covers unknown models so cost recording never silently drops
// usage on a model rename.
var defaultRate = rate{prompt: 0.50, response: 1.50}

// CostEstimate returns the estimated USD cost of a completion.
func CostEstimate(model string, promptTokens, responseTokens int) float64 {
	r, ok := modelRates[model]
	if !ok {
		r = defaultRate
	}
	return float64(promptTokens)/1e6*r.prompt + float64(responseTokens)/1e6*r.response
}
