// Package deck turns a title and a brief into a validated slide deck by planning content,
// researching each planned item and assembling the final slides with a language model.
package deck

import (
	"context"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Phase names a status emitted while a presentation is generated.
type Phase string

const (
	PhaseProcessing         Phase = "processing"
	PhasePlanning           Phase = "planning"
	PhasePlanningComplete   Phase = "planning_complete"
	PhaseResearching        Phase = "researching"
	PhaseResearchComplete   Phase = "research_complete"
	PhaseGenerating         Phase = "generating"
	PhaseGenerationComplete Phase = "generation_complete"
	PhaseFinalizing         Phase = "finalizing"
	PhaseFailed             Phase = "failed"
)

// Retry phases are reported with one of these stage prefixes, e.g. "research_retry_needed".
const (
	planningPrefix   = "planning_"
	researchPrefix   = "research_"
	generatingPrefix = "generating_"
)

// Status is one human-readable progress report.
type Status struct {
	Phase   Phase     `json:"phase"`
	Message string    `json:"message"`
	Time    time.Time `json:"time"`
}

// Observer receives pipeline statuses. Implementations may ignore them.
type Observer interface {
	Observe(ctx context.Context, status Status)
}

// ObserverFunc adapts a function to the Observer interface.
type ObserverFunc func(ctx context.Context, status Status)

func (f ObserverFunc) Observe(ctx context.Context, status Status) {
	f(ctx, status)
}

// MultiObserver fans a status out to every non-nil observer in order.
type MultiObserver []Observer

func (m MultiObserver) Observe(ctx context.Context, status Status) {
	for _, observer := range m {
		if observer != nil {
			observer.Observe(ctx, status)
		}
	}
}

// LogObserver writes every status to a logger at info level.
type LogObserver struct {
	Logger *logrus.Logger
	Fields logrus.Fields
}

func (l LogObserver) Observe(_ context.Context, status Status) {
	if l.Logger == nil {
		return
	}

	l.Logger.WithFields(l.Fields).WithField("phase", string(status.Phase)).Info(status.Message)
}

// serialObserver delivers statuses one at a time, so observers need no locking even when
// research items run concurrently.
type serialObserver struct {
	mu   sync.Mutex
	next Observer
}

func (s *serialObserver) Observe(ctx context.Context, status Status) {
	if s.next == nil {
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.next.Observe(ctx, status)
}

func notify(ctx context.Context, observer Observer, phase Phase, message string) {
	if observer == nil {
		return
	}
	observer.Observe(ctx, Status{Phase: phase, Message: message, Time: time.Now().UTC()})
}

// State is the orchestrator's position in a run.
type State string

const (
	StateIdle        State = "idle"
	StatePlanning    State = "planning"
	StateResearching State = "researching"
	StateGenerating  State = "generating"
	StateDone        State = "done"
	StateFailed      State = "failed"
)
