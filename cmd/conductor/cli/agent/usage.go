package agent

// DefaultContextWindow applies when an agent does not report its context
// window size.
const DefaultContextWindow = 200000

// UsageStats is a normalized token/cost snapshot. Produced mid-stream from
// incremental usage reports and once more at exit for reconciliation;
// consumers must not assume monotonicity between snapshots.
type UsageStats struct {
	InputTokens         int64   `json:"input_tokens"`
	OutputTokens        int64   `json:"output_tokens"`
	CacheReadTokens     int64   `json:"cache_read_tokens"`
	CacheCreationTokens int64   `json:"cache_creation_tokens"`
	ReasoningTokens     int64   `json:"reasoning_tokens,omitempty"`
	TotalCostUSD        float64 `json:"total_cost_usd"`
	ContextWindow       int64   `json:"context_window"`
}

// ModelUsage is one model's token breakdown as reported by an agent.
type ModelUsage struct {
	InputTokens         int64 `json:"input_tokens"`
	OutputTokens        int64 `json:"output_tokens"`
	CacheReadTokens     int64 `json:"cache_read_input_tokens"`
	CacheCreationTokens int64 `json:"cache_creation_input_tokens"`
	ReasoningTokens     int64 `json:"reasoning_tokens"`
	ContextWindow       int64 `json:"context_window"`
}

// AggregateUsage folds heterogeneous per-model usage reports into one
// normalized total. When perModel is non-empty its token fields are summed
// across models; otherwise flat is used directly. Cost always comes from
// totalCost. Deterministic and side-effect free.
func AggregateUsage(perModel map[string]ModelUsage, flat ModelUsage, totalCost float64) *UsageStats {
	stats := &UsageStats{TotalCostUSD: totalCost}

	if len(perModel) > 0 {
		for _, mu := range perModel {
			stats.InputTokens += mu.InputTokens
			stats.OutputTokens += mu.OutputTokens
			stats.CacheReadTokens += mu.CacheReadTokens
			stats.CacheCreationTokens += mu.CacheCreationTokens
			stats.ReasoningTokens += mu.ReasoningTokens
			if mu.ContextWindow > stats.ContextWindow {
				stats.ContextWindow = mu.ContextWindow
			}
		}
	} else {
		stats.InputTokens = flat.InputTokens
		stats.OutputTokens = flat.OutputTokens
		stats.CacheReadTokens = flat.CacheReadTokens
		stats.CacheCreationTokens = flat.CacheCreationTokens
		stats.ReasoningTokens = flat.ReasoningTokens
		stats.ContextWindow = flat.ContextWindow
	}

	if stats.ContextWindow == 0 {
		stats.ContextWindow = DefaultContextWindow
	}
	return stats
}
