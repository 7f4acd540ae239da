// Package stats is the downstream consumer of query-complete events:
// anonymous usage statistics delivered to PostHog. The distinct ID is a
// hashed machine identifier, never a user identity. The sink is inert
// unless an API key is configured and telemetry is not opted out.
package stats

import (
	"context"
	"os"
	"sync"

	"github.com/denisbrodbeck/machineid"
	"github.com/posthog/posthog-go"

	"github.com/entireio/conductor/cmd/conductor/cli/logging"
	"github.com/entireio/conductor/cmd/conductor/cli/proc"
)

// EnvDisable opts out of statistics when set to any non-empty value.
const EnvDisable = "CONDUCTOR_NO_TELEMETRY"

// appID salts the machine ID hash so the distinct ID cannot be correlated
// with other applications using the same library.
const appID = "io.entire.conductor"

// Sink forwards query completions to PostHog. A zero or nil Sink drops
// everything, so callers never branch on whether telemetry is on.
type Sink struct {
	mu         sync.Mutex
	client     posthog.Client
	distinctID string
}

// NewSink builds a sink. Empty apiKey, the opt-out variable, or a machine
// ID failure all yield a disabled sink and no error; statistics are never
// worth failing a run over.
func NewSink(ctx context.Context, apiKey, endpoint string) *Sink {
	ctx = logging.WithComponent(ctx, "stats")
	if apiKey == "" || os.Getenv(EnvDisable) != "" {
		return &Sink{}
	}

	id, err := machineid.ProtectedID(appID)
	if err != nil {
		logging.Debug(ctx, "machine id unavailable, statistics disabled", "error", err.Error())
		return &Sink{}
	}

	cfg := posthog.Config{}
	if endpoint != "" {
		cfg.Endpoint = endpoint
	}
	client, err := posthog.NewWithConfig(apiKey, cfg)
	if err != nil {
		logging.Debug(ctx, "statistics client init failed", "error", err.Error())
		return &Sink{}
	}
	return &Sink{client: client, distinctID: id}
}

// Consume records a query-complete event. Other event types pass through
// untouched, so the sink can sit directly on the manager's event stream.
func (s *Sink) Consume(ev proc.Event) {
	if s == nil || ev.Type != proc.EventQueryComplete {
		return
	}
	s.mu.Lock()
	client := s.client
	id := s.distinctID
	s.mu.Unlock()
	if client == nil {
		return
	}

	props := posthog.NewProperties().
		Set("duration_ms", ev.DurationMS).
		Set("exit_code", ev.ExitCode)
	if ev.Usage != nil {
		props.
			Set("input_tokens", ev.Usage.InputTokens).
			Set("output_tokens", ev.Usage.OutputTokens).
			Set("cache_read_tokens", ev.Usage.CacheReadTokens).
			Set("total_cost_usd", ev.Usage.TotalCostUSD)
	}

	_ = client.Enqueue(posthog.Capture{
		DistinctId: id,
		Event:      "query_complete",
		Properties: props,
	})
}

// Close flushes queued events. Safe on a disabled sink.
func (s *Sink) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.client != nil {
		s.client.Close()
		s.client = nil
	}
}
