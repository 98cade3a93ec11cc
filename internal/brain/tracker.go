package brain

import (
	"log/slog"
	"sync"

	"dochelper/internal/config"
	"dochelper/internal/llm"
)

// Tracker accumulates provider token usage and USD cost across requests.
type Tracker struct {
	mu     sync.Mutex
	cfg    *config.Config
	logger *slog.Logger
	stats  Stats
}

// Stats is a snapshot of accumulated usage.
type Stats struct {
	Requests     int     `json:"requests"`
	InputTokens  int     `json:"input_tokens"`
	OutputTokens int     `json:"output_tokens"`
	CostUSD      float64 `json:"total_cost_usd"`
}

func NewTracker(cfg *config.Config, logger *slog.Logger) *Tracker {
	return &Tracker{cfg: cfg, logger: logger}
}

// AddUsage records one request and returns its cost.
func (t *Tracker) AddUsage(model string, usage llm.Usage, task string) float64 {
	cost := t.cost(model, usage)
	t.mu.Lock()
	t.stats.Requests++
	t.stats.InputTokens += usage.InputTokens
	t.stats.OutputTokens += usage.OutputTokens
	t.stats.CostUSD += cost
	snapshot := t.stats
	t.mu.Unlock()

	t.logger.Info("brain.usage",
		"task", task,
		"model", model,
		"input_tokens", usage.InputTokens,
		"output_tokens", usage.OutputTokens,
		"cost_usd", cost,
	)
	t.logger.Info("brain.usage_total",
		"requests", snapshot.Requests,
		"input_tokens", snapshot.InputTokens,
		"output_tokens", snapshot.OutputTokens,
		"cost_usd", snapshot.CostUSD,
	)
	return cost
}

// Stats returns the running totals.
func (t *Tracker) Stats() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.stats
}

// cost prices a request; unknown models fall back to the fast tier.
func (t *Tracker) cost(model string, usage llm.Usage) float64 {
	pricing := t.cfg.PriceFor(model)
	if pricing == (config.ModelPricing{}) {
		pricing = t.cfg.PriceFor(t.cfg.ModelFast)
	}
	return (float64(usage.InputTokens)/1e6)*pricing.Input +
		(float64(usage.OutputTokens)/1e6)*pricing.Output
}
