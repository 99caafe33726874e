package budget

import (
	"fmt"
	"os"
	"sync"
)

// ModelPricing is the price per 1K tokens by model. Models not listed fall
// back to the conservative default.
var ModelPricing = map[string]Pricing{
	"gpt-4.1":                {Input: 0.01, Output: 0.03},
	"gpt-4o":                 {Input: 0.001, Output: 0.002},
	"gpt-4o-mini":            {Input: 0.00015, Output: 0.0006},
	"text-embedding-3-small": {Input: 0.00002, Output: 0},
	"default":                {Input: 0.01, Output: 0.03},
}

// Pricing is USD per 1K input/output tokens
type Pricing struct {
	Input  float64
	Output float64
}

// CostTracker accumulates token usage and cost across API calls and answers
// whether a proposed call would exceed the run's cost ceiling. Safe for
// concurrent use; the research phase records usage from multiple workers.
type CostTracker struct {
	mu            sync.Mutex
	ceiling       float64
	totalUSD      float64
	tokensByModel map[string]int
	costByModel   map[string]float64
}

// NewCostTracker creates a tracker with the given ceiling in USD
func NewCostTracker(ceilingUSD float64) *CostTracker {
	return &CostTracker{
		ceiling:       ceilingUSD,
		tokensByModel: make(map[string]int),
		costByModel:   make(map[string]float64),
	}
}

// AddUsage records token usage for an API call and returns its cost in USD
func (t *CostTracker) AddUsage(model string, inputTokens, outputTokens int) float64 {
	pricing := pricingFor(model)
	cost := float64(inputTokens)/1000*pricing.Input + float64(outputTokens)/1000*pricing.Output

	t.mu.Lock()
	defer t.mu.Unlock()

	t.totalUSD += cost
	t.tokensByModel[model] += inputTokens + outputTokens
	t.costByModel[model] += cost

	return cost
}

// WouldExceed reports whether a call with the estimated total token count
// would push spend past the ceiling. Assumes an even input/output split.
// A zero ceiling means no cost limit, matching WallClock.
func (t *CostTracker) WouldExceed(model string, estimatedTokens int) bool {
	if t.ceiling <= 0 {
		return false
	}

	pricing := pricingFor(model)
	half := float64(estimatedTokens) / 2
	estCost := half/1000*pricing.Input + half/1000*pricing.Output

	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUSD+estCost >= t.ceiling
}

// TotalUSD returns the spend so far
func (t *CostTracker) TotalUSD() float64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.totalUSD
}

// Report summarizes spend for the run artifacts
type Report struct {
	TotalUSD       float64            `json:"total_cost_usd"`
	CeilingUSD     float64            `json:"cost_ceiling_usd"`
	PercentageUsed float64            `json:"percentage_used"`
	TokensByModel  map[string]int     `json:"tokens_by_model"`
	CostByModel    map[string]float64 `json:"cost_by_model"`
}

// GenerateReport snapshots current spend
func (t *CostTracker) GenerateReport() Report {
	t.mu.Lock()
	defer t.mu.Unlock()

	report := Report{
		TotalUSD:      t.totalUSD,
		CeilingUSD:    t.ceiling,
		TokensByModel: make(map[string]int, len(t.tokensByModel)),
		CostByModel:   make(map[string]float64, len(t.costByModel)),
	}
	if t.ceiling > 0 {
		report.PercentageUsed = t.totalUSD / t.ceiling * 100
	}
	for model, tokens := range t.tokensByModel {
		report.TokensByModel[model] = tokens
	}
	for model, cost := range t.costByModel {
		report.CostByModel[model] = cost
	}
	return report
}

// WarnIfNearCeiling prints a warning once spend passes the given fraction of
// the ceiling
func (t *CostTracker) WarnIfNearCeiling(fraction float64) {
	t.mu.Lock()
	total := t.totalUSD
	ceiling := t.ceiling
	t.mu.Unlock()

	if ceiling > 0 && total >= ceiling*fraction {
		fmt.Fprintf(os.Stderr, "Warning: spent $%.4f of $%.2f cost ceiling\n", total, ceiling)
	}
}

func pricingFor(model string) Pricing {
	if p, ok := ModelPricing[model]; ok {
		return p
	}
	return ModelPricing["default"]
}

// EstimateTokens roughly estimates token count for a string. One token is
// about four characters for English text.
func EstimateTokens(text string) int {
	return len(text) / 4
}
