package deck

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"

	"deckforge/app/internal/llm"
)

type scriptedCompleter struct {
	mu       sync.Mutex
	requests []llm.Request
	respond  func(call int, req llm.Request) (*llm.Completion, error)
}

func (s *scriptedCompleter) Complete(_ context.Context, req llm.Request) (*llm.Completion, error) {
	s.mu.Lock()
	s.requests = append(s.requests, req)
	call := len(s.requests)
	s.mu.Unlock()

	return s.respond(call, req)
}

func (s *scriptedCompleter) calls() []llm.Request {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]llm.Request(nil), s.requests...)
}

func text(content string, in, out int64) *llm.Completion {
	return &llm.Completion{Text: content, InputTokens: in, OutputTokens: out, Cost: float64(in+out) / 1_000_000}
}

func prompt(req llm.Request) string {
	var parts []string
	for _, message := range req.Messages {
		parts = append(parts, message.Content)
	}
	return strings.Join(parts, "\n")
}

func isPlanning(req llm.Request) bool {
	return strings.Contains(prompt(req), "presentation planning expert")
}

func isAssembly(req llm.Request) bool {
	return strings.Contains(prompt(req), "professional presentation creator")
}

type statusLog struct {
	mu       sync.Mutex
	statuses []Status
}

func (l *statusLog) Observe(_ context.Context, status Status) {
	l.mu.Lock()
	defer l.mu.Unlock()

	l.statuses = append(l.statuses, status)
}

func (l *statusLog) phases() []Phase {
	l.mu.Lock()
	defer l.mu.Unlock()

	phases := make([]Phase, 0, len(l.statuses))
	for _, status := range l.statuses {
		phases = append(phases, status.Phase)
	}
	return phases
}

func (l *statusLog) count(phase Phase) int {
	n := 0
	for _, p := range l.phases() {
		if p == phase {
			n++
		}
	}
	return n
}

func (l *statusLog) messages(phase Phase) []string {
	l.mu.Lock()
	defer l.mu.Unlock()

	var messages []string
	for _, status := range l.statuses {
		if status.Phase == phase {
			messages = append(messages, status.Message)
		}
	}
	return messages
}

type memorySink struct {
	mu        sync.Mutex
	artifacts []DebugArtifact
	err       error
}

func (m *memorySink) Record(_ context.Context, artifact DebugArtifact) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.err != nil {
		return "", m.err
	}
	m.artifacts = append(m.artifacts, artifact)
	return "memory://" + artifact.Context, nil
}

func (m *memorySink) contexts() []string {
	m.mu.Lock()
	defer m.mu.Unlock()

	contexts := make([]string, 0, len(m.artifacts))
	for _, artifact := range m.artifacts {
		contexts = append(contexts, artifact.Context)
	}
	return contexts
}

func noSleep(context.Context, time.Duration) error { return nil }

var errFatal = eris.New("Invalid API key provided")
