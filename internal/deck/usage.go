package deck

import (
	"context"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"deckforge/app/internal/llm"
)

// UsageTotals accumulates token counts and cost over one run.
type UsageTotals struct {
	Cost         float64 `json:"cost"`
	InputTokens  int64   `json:"input_tokens"`
	OutputTokens int64   `json:"output_tokens"`
}

// Recorder receives pipeline measurements. The metrics package provides a Prometheus-backed
// implementation.
type Recorder interface {
	ObserveStage(stage, outcome string, duration time.Duration)
	ObserveCompletion(model, outcome string, inputTokens, outputTokens int64, cost float64, duration time.Duration)
	ObserveStatus(phase string)
}

type nopRecorder struct{}

func (nopRecorder) ObserveStage(string, string, time.Duration) {}

func (nopRecorder) ObserveCompletion(string, string, int64, int64, float64, time.Duration) {}

func (nopRecorder) ObserveStatus(string) {}

// usageMeter owns the running totals of a single run.
type usageMeter struct {
	mu     sync.Mutex
	totals UsageTotals
}

func (m *usageMeter) add(completion *llm.Completion) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals.Cost += completion.Cost
	m.totals.InputTokens += completion.InputTokens
	m.totals.OutputTokens += completion.OutputTokens
}

func (m *usageMeter) reset() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.totals = UsageTotals{}
}

func (m *usageMeter) snapshot() UsageTotals {
	m.mu.Lock()
	defer m.mu.Unlock()

	return m.totals
}

// meteredCompleter reports the usage of every successful completion to the run's meter.
type meteredCompleter struct {
	next     llm.Completer
	meter    *usageMeter
	recorder Recorder
}

func (m *meteredCompleter) Complete(ctx context.Context, req llm.Request) (*llm.Completion, error) {
	start := time.Now()

	completion, err := m.next.Complete(ctx, req)
	if err == nil && completion == nil {
		err = eris.New("completion returned no result")
	}
	if err != nil {
		m.recorder.ObserveCompletion(req.Model, "error", 0, 0, 0, time.Since(start))
		return nil, err
	}

	m.meter.add(completion)
	m.recorder.ObserveCompletion(req.Model, "success", completion.InputTokens, completion.OutputTokens, completion.Cost, time.Since(start))

	return completion, nil
}
