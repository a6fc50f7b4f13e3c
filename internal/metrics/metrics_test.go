package metrics

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCollectorObserveStage(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.ObserveStage("planning", "success", 2*time.Second)
	collector.ObserveStage("planning", "success", time.Second)
	collector.ObserveStage("research", "failure", time.Second)

	if got := testutil.ToFloat64(collector.stagesTotal.WithLabelValues("planning", "success")); got != 2 {
		t.Fatalf("expected 2 planning successes, got %f", got)
	}

	if got := testutil.CollectAndCount(collector.stageDuration); got != 2 {
		t.Fatalf("expected 2 histogram series, got %d", got)
	}
}

func TestCollectorObserveCompletion(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.ObserveCompletion("o4-mini", "success", 1200, 300, 0.5, time.Second)
	collector.ObserveCompletion("o4-mini", "error", 0, 0, 0, time.Second)

	if got := testutil.ToFloat64(collector.tokensTotal.WithLabelValues("o4-mini", "input")); got != 1200 {
		t.Fatalf("expected 1200 input tokens, got %f", got)
	}

	if got := testutil.ToFloat64(collector.costTotal.WithLabelValues("o4-mini")); got != 0.5 {
		t.Fatalf("expected cost 0.5, got %f", got)
	}

	if got := testutil.ToFloat64(collector.completionsTotal.WithLabelValues("o4-mini", "error")); got != 1 {
		t.Fatalf("expected 1 failed completion, got %f", got)
	}
}

func TestCollectorCountsRetries(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.ObserveStatus("planning")
	collector.ObserveStatus("research_retry_needed")
	collector.ObserveStatus("research_retry_needed")
	collector.ObserveStatus("research_retry_success")

	if got := testutil.ToFloat64(collector.retriesTotal.WithLabelValues("research")); got != 2 {
		t.Fatalf("expected 2 research retries, got %f", got)
	}

	if got := testutil.ToFloat64(collector.statusesTotal.WithLabelValues("planning")); got != 1 {
		t.Fatalf("expected 1 planning status, got %f", got)
	}
}

func TestCollectorHandlerExposesMetrics(t *testing.T) {
	t.Parallel()

	collector := NewCollector()
	collector.ObserveStatus("planning")

	rec := httptest.NewRecorder()
	collector.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("expected status 200, got %d", rec.Code)
	}

	if !strings.Contains(rec.Body.String(), "deckforge_statuses_total") {
		t.Fatalf("expected statuses metric in output")
	}
}
