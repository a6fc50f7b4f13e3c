package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
)

// Status phases emitted by the executor. Stage-specific phases carry the caller's prefix.
const (
	PhaseRetrying     = "retrying"
	PhaseRetrySuccess = "retry_success"
	PhaseRetryNeeded  = "retry_needed"
	PhaseFailed       = "failed"
)

// Config bounds how often and how patiently a step is re-attempted.
type Config struct {
	MaxAttempts int
	BaseDelay   time.Duration
	Exponential bool
}

// DefaultConfig returns the process-wide default: three attempts, two seconds, doubling.
func DefaultConfig() Config {
	return Config{MaxAttempts: 3, BaseDelay: 2 * time.Second, Exponential: true}
}

// Normalize clamps the configuration to at least one attempt and a one second base delay.
func (c Config) Normalize() Config {
	if c.MaxAttempts < 1 {
		c.MaxAttempts = 1
	}
	if c.BaseDelay < time.Second {
		c.BaseDelay = time.Second
	}
	return c
}

// Delay returns the pause taken before the given attempt. Attempt 1 never waits.
func (c Config) Delay(attempt int) time.Duration {
	if attempt <= 1 {
		return 0
	}
	if !c.Exponential {
		return c.BaseDelay
	}
	return c.BaseDelay * time.Duration(1<<uint(attempt-2))
}

// Reporter receives every status the executor emits.
type Reporter func(ctx context.Context, phase, message string)

// Sleeper suspends the caller for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

// Executor runs a step up to Config.MaxAttempts times. It keeps no state between calls.
type Executor struct {
	config   Config
	report   Reporter
	sleep    Sleeper
	classify func(error) Classification
	logger   *logrus.Logger
}

// Option customises an Executor.
type Option func(*Executor)

// WithReporter forwards status emissions to report.
func WithReporter(report Reporter) Option {
	return func(e *Executor) { e.report = report }
}

// WithSleeper replaces the timer-based backoff wait.
func WithSleeper(sleep Sleeper) Option {
	return func(e *Executor) { e.sleep = sleep }
}

// WithClassifier replaces the message-based classifier.
func WithClassifier(classify func(error) Classification) Option {
	return func(e *Executor) { e.classify = classify }
}

// WithLogger logs each failed attempt.
func WithLogger(logger *logrus.Logger) Option {
	return func(e *Executor) { e.logger = logger }
}

// NewExecutor constructs an executor for the given configuration.
// The configuration is used as given; callers clamp it with Normalize where required.
func NewExecutor(config Config, opts ...Option) *Executor {
	if config.MaxAttempts < 1 {
		config.MaxAttempts = 1
	}

	e := &Executor{
		config:   config,
		sleep:    timerSleep,
		classify: Classify,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Config returns the executor's configuration.
func (e *Executor) Config() Config {
	return e.config
}

// Execute runs fn with bounded retries. label names the step in status messages and prefix
// (for example "planning_") is prepended to the retry phases. The error of the final attempt
// is returned unchanged.
func Execute[T any](ctx context.Context, e *Executor, label, prefix string, fn func(ctx context.Context) (T, error)) (T, error) {
	var zero T
	maxAttempts := e.config.MaxAttempts

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if attempt > 1 {
			e.emit(ctx, prefix+PhaseRetrying, fmt.Sprintf("%s - Retry attempt %d/%d", label, attempt, maxAttempts))

			if err := e.sleep(ctx, e.config.Delay(attempt)); err != nil {
				return zero, err
			}
		}

		result, err := fn(ctx)
		if err == nil {
			if attempt > 1 {
				e.emit(ctx, prefix+PhaseRetrySuccess, fmt.Sprintf("%s - Succeeded on attempt %d", label, attempt))
			}
			return result, nil
		}

		classification := e.classify(err)
		e.logAttempt(label, attempt, classification, err)

		if attempt == maxAttempts || classification == Fatal || ctx.Err() != nil {
			reason := fmt.Sprintf("after %d attempts", attempt)
			if classification == Fatal {
				reason = "(non-retryable error)"
			}
			e.emit(ctx, PhaseFailed, fmt.Sprintf("%s - Failed %s: %s", label, reason, err.Error()))
			return zero, err
		}

		e.emit(ctx, prefix+PhaseRetryNeeded, fmt.Sprintf("%s - Attempt %d failed: %s. Retrying in %s...",
			label, attempt, err.Error(), formatDelay(e.config.Delay(attempt+1))))
	}

	return zero, nil
}

func (e *Executor) emit(ctx context.Context, phase, message string) {
	if e.report != nil {
		e.report(ctx, phase, message)
	}
}

func (e *Executor) logAttempt(label string, attempt int, classification Classification, err error) {
	if e.logger == nil {
		return
	}

	e.logger.WithFields(logrus.Fields{
		"operation":      label,
		"attempt":        attempt,
		"max_attempts":   e.config.MaxAttempts,
		"classification": classification.String(),
		"error":          err.Error(),
	}).Warn("pipeline step attempt failed")
}

func timerSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func formatDelay(d time.Duration) string {
	if d%time.Second == 0 {
		seconds := int64(d / time.Second)
		if seconds == 1 {
			return "1 second"
		}
		return fmt.Sprintf("%d seconds", seconds)
	}
	return d.String()
}
