package deck

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/llm"
	"deckforge/app/internal/retry"
)

// Models selects the model used by each stage.
type Models struct {
	Planner   string `json:"planner"`
	Searcher  string `json:"searcher"`
	Writer    string `json:"writer"`
	Assembler string `json:"assembler"`
}

// DefaultModels returns the stock model line-up.
func DefaultModels() Models {
	return Models{
		Planner:   "o4-mini",
		Searcher:  "gpt-4o-mini-search-preview",
		Writer:    "gpt-4.1-nano",
		Assembler: "o4-mini",
	}
}

// ModelsFromList maps an ordered list (planner, searcher, writer, assembler) onto Models.
// Missing or blank positions keep their defaults.
func ModelsFromList(names []string) Models {
	models := DefaultModels()
	targets := []*string{&models.Planner, &models.Searcher, &models.Writer, &models.Assembler}
	for i, name := range names {
		if i >= len(targets) {
			break
		}
		if trimmed := strings.TrimSpace(name); trimmed != "" {
			*targets[i] = trimmed
		}
	}
	return models
}

func (m Models) withDefaults() Models {
	return ModelsFromList([]string{m.Planner, m.Searcher, m.Writer, m.Assembler})
}

// Options configures an Orchestrator.
type Options struct {
	Models              Models
	Retry               retry.Config
	ResearchConcurrency int
	Observer            Observer
	Debug               DebugSink
	Recorder            Recorder
	Logger              *logrus.Logger
	// Sleeper replaces the retry backoff wait, mainly for tests.
	Sleeper retry.Sleeper
}

// Result is everything a successful run produced.
type Result struct {
	Slides   []Slide          `json:"presentation"`
	Plan     *ContentPlan     `json:"content_plan"`
	Research []ResearchedItem `json:"researched_content"`
	Usage    UsageTotals      `json:"usage"`
	Warnings []string         `json:"warnings,omitempty"`
}

// Orchestrator runs planning, research and assembly in order. Runs on one instance are
// serialized; usage totals are reset at the start of each run.
type Orchestrator struct {
	completer           llm.Completer
	models              Models
	researchConcurrency int
	observer            Observer
	debug               DebugSink
	recorder            Recorder
	logger              *logrus.Logger
	sleeper             retry.Sleeper

	runMu sync.Mutex
	meter usageMeter

	mu          sync.RWMutex
	retryConfig retry.Config
	state       State
}

// NewOrchestrator wires the pipeline around a completion client.
func NewOrchestrator(completer llm.Completer, opts Options) (*Orchestrator, error) {
	if completer == nil {
		return nil, eris.New("completion client is required")
	}

	retryConfig := opts.Retry
	if retryConfig == (retry.Config{}) {
		retryConfig = retry.DefaultConfig()
	}

	recorder := opts.Recorder
	if recorder == nil {
		recorder = nopRecorder{}
	}

	return &Orchestrator{
		completer:           completer,
		models:              opts.Models.withDefaults(),
		researchConcurrency: opts.ResearchConcurrency,
		observer:            opts.Observer,
		debug:               opts.Debug,
		recorder:            recorder,
		logger:              loggerOrDiscard(opts.Logger),
		sleeper:             opts.Sleeper,
		retryConfig:         retryConfig.Normalize(),
		state:               StateIdle,
	}, nil
}

// SetRetryConfig replaces the retry policy for subsequent runs, clamped to at least one
// attempt and a one second base delay. A run in progress keeps the policy it started with.
func (o *Orchestrator) SetRetryConfig(config retry.Config) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.retryConfig = config.Normalize()
}

// RetryConfig returns the policy the next run will use.
func (o *Orchestrator) RetryConfig() retry.Config {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.retryConfig
}

// State reports where the current or most recent run is.
func (o *Orchestrator) State() State {
	o.mu.RLock()
	defer o.mu.RUnlock()

	return o.state
}

// Usage returns the totals of the current or most recent run.
func (o *Orchestrator) Usage() UsageTotals {
	return o.meter.snapshot()
}

// Models returns the per-stage model selection.
func (o *Orchestrator) Models() Models {
	return o.models
}

func (o *Orchestrator) setState(state State) {
	o.mu.Lock()
	defer o.mu.Unlock()

	o.state = state
}

// CreatePresentation plans, researches and assembles a deck for title and message. Any stage
// that fails after retries moves the run to StateFailed and its error is returned unchanged.
func (o *Orchestrator) CreatePresentation(ctx context.Context, title, message string) (*Result, error) {
	title = strings.TrimSpace(title)
	message = strings.TrimSpace(message)
	if title == "" {
		return nil, eris.New("presentation title is required")
	}
	if message == "" {
		return nil, eris.New("presentation message is required")
	}

	o.runMu.Lock()
	defer o.runMu.Unlock()

	o.meter.reset()
	run := o.newRun()
	fields := logrus.Fields{"title": title}

	o.setState(StatePlanning)
	run.emit(ctx, PhaseProcessing, "Starting presentation generation process...")
	run.emit(ctx, PhasePlanning, "Analyzing presentation requirements and planning content structure...")

	started := time.Now()
	plan, err := retry.Execute(ctx, run.executor, "Content Planning", planningPrefix, func(ctx context.Context) (*ContentPlan, error) {
		return run.planner.Plan(ctx, title, message)
	})
	if err != nil {
		return nil, o.fail(fields, "planning", started, err)
	}
	o.recorder.ObserveStage("planning", "success", time.Since(started))
	run.emit(ctx, PhasePlanningComplete, "Content planning completed. "+plan.Summary())

	o.setState(StateResearching)
	run.emit(ctx, PhaseResearching, "Beginning content research phase...")

	started = time.Now()
	research, err := run.researcher.Research(ctx, plan)
	if err != nil {
		return nil, o.fail(fields, "research", started, err)
	}
	o.recorder.ObserveStage("research", "success", time.Since(started))
	run.emit(ctx, PhaseResearchComplete, "Content research completed. Preparing to generate final presentation...")

	o.setState(StateGenerating)
	run.emit(ctx, PhaseGenerating, "Generating final presentation with researched content...")

	started = time.Now()
	assembly, err := retry.Execute(ctx, run.executor, "Final Presentation Generation", generatingPrefix, func(ctx context.Context) (*Assembly, error) {
		return run.assembler.Assemble(ctx, title, message, research)
	})
	if err != nil {
		return nil, o.fail(fields, "generating", started, err)
	}
	o.recorder.ObserveStage("generating", "success", time.Since(started))

	run.emit(ctx, PhaseFinalizing, "Presentation generation completed, finalizing results...")
	o.setState(StateDone)

	result := &Result{
		Slides:   assembly.Slides,
		Plan:     plan,
		Research: research,
		Usage:    o.meter.snapshot(),
		Warnings: assembly.Warnings,
	}

	o.logger.WithFields(fields).WithFields(logrus.Fields{
		"slides":        len(result.Slides),
		"input_tokens":  result.Usage.InputTokens,
		"output_tokens": result.Usage.OutputTokens,
		"cost":          result.Usage.Cost,
	}).Info("presentation generated")

	return result, nil
}

func (o *Orchestrator) fail(fields logrus.Fields, stage string, started time.Time, err error) error {
	o.setState(StateFailed)
	o.recorder.ObserveStage(stage, "failure", time.Since(started))
	logError(o.logger, logrus.Fields{"title": fields["title"], "stage": stage}, err, "presentation generation failed")
	return err
}

// run holds the per-invocation collaborators, all sharing one metered completer and one
// serialized observer.
type run struct {
	observer   *serialObserver
	executor   *retry.Executor
	planner    *Planner
	researcher *Researcher
	assembler  *Assembler
}

func (r *run) emit(ctx context.Context, phase Phase, message string) {
	notify(ctx, r.observer, phase, message)
}

func (o *Orchestrator) newRun() *run {
	retryConfig := o.RetryConfig()

	observer := &serialObserver{next: MultiObserver{o.observer, recorderObserver{o.recorder}}}

	var debug DebugSink
	if o.debug != nil {
		debug = &runSink{next: o.debug, retry: retryConfig}
	}

	executorOpts := []retry.Option{
		retry.WithLogger(o.logger),
		retry.WithReporter(func(ctx context.Context, phase, message string) {
			notify(ctx, observer, Phase(phase), message)
		}),
	}
	if o.sleeper != nil {
		executorOpts = append(executorOpts, retry.WithSleeper(o.sleeper))
	}
	executor := retry.NewExecutor(retryConfig, executorOpts...)

	completer := &meteredCompleter{next: o.completer, meter: &o.meter, recorder: o.recorder}

	return &run{
		observer: observer,
		executor: executor,
		planner: NewPlanner(completer, PlannerOptions{
			Model:    o.models.Planner,
			Observer: observer,
			Debug:    debug,
			Logger:   o.logger,
		}),
		researcher: NewResearcher(completer, ResearcherOptions{
			SearchModel: o.models.Searcher,
			WriterModel: o.models.Writer,
			Concurrency: o.researchConcurrency,
			Executor:    executor,
			Observer:    observer,
			Logger:      o.logger,
		}),
		assembler: NewAssembler(completer, AssemblerOptions{
			Model:    o.models.Assembler,
			Observer: observer,
			Debug:    debug,
			Logger:   o.logger,
		}),
	}
}

// recorderObserver counts statuses, which is how retries reach the metrics.
type recorderObserver struct {
	recorder Recorder
}

func (r recorderObserver) Observe(_ context.Context, status Status) {
	r.recorder.ObserveStatus(string(status.Phase))
}
