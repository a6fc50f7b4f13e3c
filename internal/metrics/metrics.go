// Package metrics exposes pipeline measurements through Prometheus.
package metrics

import (
	"net/http"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector records stage, completion and status metrics on its own registry.
type Collector struct {
	stageDuration      *prometheus.HistogramVec
	stagesTotal        *prometheus.CounterVec
	completionsTotal   *prometheus.CounterVec
	completionDuration *prometheus.HistogramVec
	tokensTotal        *prometheus.CounterVec
	costTotal          *prometheus.CounterVec
	statusesTotal      *prometheus.CounterVec
	retriesTotal       *prometheus.CounterVec
	registry           *prometheus.Registry
}

// NewCollector creates a collector backed by a fresh registry.
func NewCollector() *Collector {
	registry := prometheus.NewRegistry()

	c := &Collector{
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deckforge_stage_duration_seconds",
				Help:    "Duration of pipeline stages by stage and outcome",
				Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300},
			},
			[]string{"stage", "outcome"},
		),
		stagesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_stages_total",
				Help: "Total number of finished pipeline stages by stage and outcome",
			},
			[]string{"stage", "outcome"},
		),
		completionsTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_completions_total",
				Help: "Total number of model completions by model and outcome",
			},
			[]string{"model", "outcome"},
		),
		completionDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "deckforge_completion_duration_seconds",
				Help:    "Latency of model completions by model",
				Buckets: []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
			},
			[]string{"model"},
		),
		tokensTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_tokens_total",
				Help: "Total tokens consumed by model and direction",
			},
			[]string{"model", "direction"},
		),
		costTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_cost_usd_total",
				Help: "Total estimated model cost in USD by model",
			},
			[]string{"model"},
		),
		statusesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_statuses_total",
				Help: "Total pipeline statuses emitted by phase",
			},
			[]string{"phase"},
		),
		retriesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "deckforge_retries_total",
				Help: "Total retry attempts scheduled by stage",
			},
			[]string{"stage"},
		),
		registry: registry,
	}

	registry.MustRegister(
		c.stageDuration,
		c.stagesTotal,
		c.completionsTotal,
		c.completionDuration,
		c.tokensTotal,
		c.costTotal,
		c.statusesTotal,
		c.retriesTotal,
	)

	return c
}

// ObserveStage records a finished stage.
func (c *Collector) ObserveStage(stage, outcome string, duration time.Duration) {
	c.stagesTotal.WithLabelValues(stage, outcome).Inc()
	c.stageDuration.WithLabelValues(stage, outcome).Observe(duration.Seconds())
}

// ObserveCompletion records one model call.
func (c *Collector) ObserveCompletion(model, outcome string, inputTokens, outputTokens int64, cost float64, duration time.Duration) {
	c.completionsTotal.WithLabelValues(model, outcome).Inc()
	c.completionDuration.WithLabelValues(model).Observe(duration.Seconds())

	if inputTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "input").Add(float64(inputTokens))
	}
	if outputTokens > 0 {
		c.tokensTotal.WithLabelValues(model, "output").Add(float64(outputTokens))
	}
	if cost > 0 {
		c.costTotal.WithLabelValues(model).Add(cost)
	}
}

// ObserveStatus counts a status; "<stage>_retry_needed" phases also count as a retry.
func (c *Collector) ObserveStatus(phase string) {
	c.statusesTotal.WithLabelValues(phase).Inc()

	if stage, ok := strings.CutSuffix(phase, "_retry_needed"); ok {
		c.retriesTotal.WithLabelValues(stage).Inc()
	}
}

// Registry returns the Prometheus registry for HTTP exposure.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// Handler serves the collector's registry in the Prometheus text format.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}
