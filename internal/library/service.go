package library

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/semaphore"

	"deckforge/app/internal/deck"
)

// Generator produces a deck for a title and message.
type Generator interface {
	CreatePresentation(ctx context.Context, title, message string) (*deck.Result, error)
}

// GeneratorFactory builds a generator for one run, wired to the run's observer and debug sink.
type GeneratorFactory func(observer deck.Observer, debug deck.DebugSink) (Generator, error)

// Service runs presentation generation and keeps every run in the library.
type Service interface {
	// Start records a pending run and generates it in the background.
	Start(ctx context.Context, title, message string) (*Presentation, error)
	// Generate records a run and generates it before returning.
	Generate(ctx context.Context, title, message string, observer deck.Observer) (*Presentation, *deck.Result, error)
	Get(ctx context.Context, id string) (*Presentation, error)
	List(ctx context.Context, limit int) ([]Presentation, error)
	// Shutdown waits for background runs, cancelling them once ctx is done.
	Shutdown(ctx context.Context) error
}

// ServiceOptions configures the library service.
type ServiceOptions struct {
	Repository Repository
	Factory    GeneratorFactory
	// DebugDir receives raw model responses that failed to parse. Empty disables them.
	DebugDir string
	// MaxConcurrent bounds background runs. Zero means unbounded.
	MaxConcurrent int64
	Logger        *logrus.Logger
	SentryHub     *sentry.Hub
}

type service struct {
	repo      Repository
	factory   GeneratorFactory
	debugDir  string
	slots     *semaphore.Weighted
	logger    *logrus.Logger
	sentryHub *sentry.Hub

	baseCtx context.Context
	cancel  context.CancelFunc
	wg      sync.WaitGroup

	// mu guards closed and orders wg.Add against Shutdown's Wait.
	mu     sync.Mutex
	closed bool
}

// ErrShuttingDown is returned by Start once Shutdown has been called.
var ErrShuttingDown = eris.New("presentation library is shutting down")

var _ Service = (*service)(nil)

// NewService wires the library service with its dependencies.
func NewService(opts ServiceOptions) (Service, error) {
	if opts.Repository == nil {
		return nil, eris.New("presentation repository is required")
	}
	if opts.Factory == nil {
		return nil, eris.New("generator factory is required")
	}

	var slots *semaphore.Weighted
	if opts.MaxConcurrent > 0 {
		slots = semaphore.NewWeighted(opts.MaxConcurrent)
	}

	baseCtx, cancel := context.WithCancel(context.Background())

	return &service{
		repo:      opts.Repository,
		factory:   opts.Factory,
		debugDir:  strings.TrimSpace(opts.DebugDir),
		slots:     slots,
		logger:    opts.Logger,
		sentryHub: opts.SentryHub,
		baseCtx:   baseCtx,
		cancel:    cancel,
	}, nil
}

func (s *service) Start(ctx context.Context, title, message string) (*Presentation, error) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil, ErrShuttingDown
	}
	s.wg.Add(1)
	s.mu.Unlock()

	presentation, err := s.create(ctx, title, message)
	if err != nil {
		s.wg.Done()
		return nil, err
	}

	go func() {
		defer s.wg.Done()

		if s.slots != nil {
			if err := s.slots.Acquire(s.baseCtx, 1); err != nil {
				s.fail(presentation.ID, err)
				return
			}
			defer s.slots.Release(1)
		}

		_, _ = s.run(s.baseCtx, presentation, nil)
	}()

	return presentation, nil
}

func (s *service) Generate(ctx context.Context, title, message string, observer deck.Observer) (*Presentation, *deck.Result, error) {
	presentation, err := s.create(ctx, title, message)
	if err != nil {
		return nil, nil, err
	}

	result, err := s.run(ctx, presentation, observer)
	if err != nil {
		return presentation, nil, err
	}

	stored, getErr := s.repo.Get(context.WithoutCancel(ctx), presentation.ID)
	if getErr != nil || stored == nil {
		return presentation, result, nil
	}

	return stored, result, nil
}

func (s *service) Get(ctx context.Context, id string) (*Presentation, error) {
	trimmed := strings.TrimSpace(id)
	if trimmed == "" {
		return nil, eris.New("presentation id is required")
	}

	presentation, err := s.repo.Get(ctx, trimmed)
	if err != nil {
		s.recordError(logrus.Fields{"presentation_id": trimmed}, err, "fetching presentation")
		return nil, err
	}

	return presentation, nil
}

func (s *service) List(ctx context.Context, limit int) ([]Presentation, error) {
	presentations, err := s.repo.List(ctx, limit)
	if err != nil {
		s.recordError(nil, err, "listing presentations")
		return nil, err
	}

	return presentations, nil
}

func (s *service) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.cancel()
		return nil
	case <-ctx.Done():
		s.cancel()
		<-done
		return ctx.Err()
	}
}

func (s *service) create(ctx context.Context, title, message string) (*Presentation, error) {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" {
		return nil, eris.New("presentation title is required")
	}
	if message == "" {
		return nil, eris.New("presentation message is required")
	}

	presentation := &Presentation{
		ID:                uuid.NewString(),
		Title:             title,
		Message:           message,
		Status:            StatusPending,
		StatusDescription: "Waiting to start.",
	}

	if err := s.repo.Create(ctx, presentation); err != nil {
		s.recordError(logrus.Fields{"title": title}, err, "creating presentation")
		return nil, err
	}

	return presentation, nil
}

func (s *service) run(ctx context.Context, presentation *Presentation, observer deck.Observer) (*deck.Result, error) {
	fields := logrus.Fields{"presentation_id": presentation.ID, "title": presentation.Title}

	statuses := &statusRecorder{repo: s.repo, presentationID: presentation.ID, logger: s.logger}

	var debug deck.DebugSink
	if s.debugDir != "" {
		debug = &debugRecorder{
			sink:           deck.NewFileDebugSink(s.debugDir),
			repo:           s.repo,
			presentationID: presentation.ID,
			logger:         s.logger,
		}
	}

	generator, err := s.factory(deck.MultiObserver{statuses, observer}, debug)
	if err != nil {
		s.fail(presentation.ID, err)
		s.recordError(fields, err, "building presentation generator")
		return nil, err
	}

	result, err := generator.CreatePresentation(ctx, presentation.Title, presentation.Message)
	if err != nil {
		s.fail(presentation.ID, err)
		s.recordError(fields, err, "generating presentation")
		return nil, err
	}

	outcome, err := outcomeFor(result)
	if err != nil {
		s.fail(presentation.ID, err)
		s.recordError(fields, err, "encoding presentation")
		return nil, err
	}

	if err := s.repo.Complete(context.WithoutCancel(ctx), presentation.ID, outcome); err != nil {
		s.recordError(fields, err, "storing presentation")
		return nil, err
	}

	if s.logger != nil {
		s.logger.WithFields(fields).WithField("slides", len(result.Slides)).Info("presentation stored")
	}

	return result, nil
}

func (s *service) fail(id string, cause error) {
	if err := s.repo.Fail(context.Background(), id, cause.Error()); err != nil && s.logger != nil {
		s.logger.WithField("presentation_id", id).WithField("error", err.Error()).Error("marking presentation failed")
	}
}

func outcomeFor(result *deck.Result) (Outcome, error) {
	if result == nil {
		return Outcome{}, eris.New("generator returned no result")
	}

	slides, err := encode(result.Slides)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "encoding slides")
	}
	plan, err := encode(result.Plan)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "encoding content plan")
	}
	research, err := encode(result.Research)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "encoding research")
	}
	warnings, err := encode(result.Warnings)
	if err != nil {
		return Outcome{}, eris.Wrap(err, "encoding warnings")
	}

	return Outcome{
		Slides:       slides,
		Plan:         plan,
		Research:     research,
		Warnings:     warnings,
		InputTokens:  result.Usage.InputTokens,
		OutputTokens: result.Usage.OutputTokens,
		Cost:         result.Usage.Cost,
		CompletedAt:  time.Now().UTC(),
	}, nil
}

func encode(value any) (string, error) {
	raw, err := json.Marshal(value)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

func (s *service) recordError(fields logrus.Fields, err error, message string) {
	if err == nil {
		return
	}

	if s.logger != nil {
		entry := s.logger.WithField("error", err.Error())
		if len(fields) > 0 {
			entry = entry.WithFields(fields)
		}
		entry.Error(message)
	}

	if s.sentryHub != nil {
		s.sentryHub.CaptureException(err)
	}
}
