package deck

import (
	"context"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/jsonrepair"
	applog "deckforge/app/internal/log"
	"deckforge/app/internal/llm"
)

const (
	defaultPlanTokens     = 4000
	defaultResearchTokens = 2000
	defaultAssemblyTokens = 4000
)

// PlannerOptions configures a Planner.
type PlannerOptions struct {
	Model     string
	MaxTokens int
	Observer  Observer
	Debug     DebugSink
	Logger    *logrus.Logger
}

// Planner asks the model to decompose a brief into content items. It makes exactly one
// completion call per Plan and does not retry.
type Planner struct {
	completer llm.Completer
	model     string
	maxTokens int
	observer  Observer
	debug     DebugSink
	logger    *logrus.Logger
}

// NewPlanner builds a planner on top of completer.
func NewPlanner(completer llm.Completer, opts PlannerOptions) *Planner {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModels().Planner
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultPlanTokens
	}

	return &Planner{
		completer: completer,
		model:     model,
		maxTokens: maxTokens,
		observer:  opts.Observer,
		debug:     opts.Debug,
		logger:    loggerOrDiscard(opts.Logger),
	}
}

// Plan returns the content plan for a presentation. Unparsable output is recorded to the debug
// sink and reported as ErrInvalidResponse.
func (p *Planner) Plan(ctx context.Context, title, message string) (*ContentPlan, error) {
	notify(ctx, p.observer, PhasePlanning, "Using AI to analyze presentation requirements and create detailed content plan...")

	completion, err := p.completer.Complete(ctx, llm.Request{
		Model:     p.model,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: planningPrompt(title, message)}},
		JSONMode:  true,
		MaxTokens: p.maxTokens,
	})
	if err != nil {
		logError(p.logger, logrus.Fields{"stage": "planning", "model": p.model}, err, "requesting content plan")
		return nil, eris.Wrap(err, "requesting content plan")
	}

	cleaned := jsonrepair.Sanitize(completion.Text)
	plan, err := decodePlan(cleaned)
	if err != nil {
		location := recordDebug(ctx, p.debug, p.logger, "content_planning", completion.Text, err.Error())
		logError(p.logger, logrus.Fields{
			"stage":           "planning",
			"model":           p.model,
			"response_length": len(completion.Text),
			"cleaned_length":  len(cleaned),
			"debug_file":      location,
		}, err, "parsing content plan")
		return nil, eris.Wrapf(ErrInvalidResponse, "content planning: %s", err.Error())
	}

	return plan, nil
}

func loggerOrDiscard(logger *logrus.Logger) *logrus.Logger {
	if logger == nil {
		return applog.Discard()
	}
	return logger
}

func logError(logger *logrus.Logger, fields logrus.Fields, err error, message string) {
	if logger == nil || err == nil {
		return
	}

	entry := logger.WithField("error", err.Error())
	if len(fields) > 0 {
		entry = entry.WithFields(fields)
	}
	entry.Error(message)
}
