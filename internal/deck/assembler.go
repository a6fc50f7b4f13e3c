package deck

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"

	"deckforge/app/internal/jsonrepair"
	"deckforge/app/internal/llm"
)

// AssemblerOptions configures an Assembler.
type AssemblerOptions struct {
	Model     string
	MaxTokens int
	Observer  Observer
	Debug     DebugSink
	Logger    *logrus.Logger
}

// Assembly is the assembler's output: the cleaned slides plus any schema warnings that were
// tolerated along the way.
type Assembly struct {
	Slides   []Slide
	Warnings []string
}

// Assembler turns researched material into the final slide array with one completion call.
type Assembler struct {
	completer llm.Completer
	model     string
	maxTokens int
	observer  Observer
	debug     DebugSink
	logger    *logrus.Logger
}

// NewAssembler builds an assembler on top of completer.
func NewAssembler(completer llm.Completer, opts AssemblerOptions) *Assembler {
	model := strings.TrimSpace(opts.Model)
	if model == "" {
		model = DefaultModels().Assembler
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAssemblyTokens
	}

	return &Assembler{
		completer: completer,
		model:     model,
		maxTokens: maxTokens,
		observer:  opts.Observer,
		debug:     opts.Debug,
		logger:    loggerOrDiscard(opts.Logger),
	}
}

// Assemble requests the slide deck. Empty output fails with ErrEmptyResponse and unparsable
// output with ErrInvalidResponse. Schema violations are recorded as warnings and the slides
// are returned anyway.
func (a *Assembler) Assemble(ctx context.Context, title, message string, items []ResearchedItem) (*Assembly, error) {
	notify(ctx, a.observer, PhaseGenerating, "Creating final presentation structure and slides from researched content...")

	request := llm.Request{
		Model:     a.model,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: assemblyPrompt(title, message, items)}},
		JSONMode:  true,
		MaxTokens: a.maxTokens,
	}

	notify(ctx, a.observer, PhaseGenerating, "Processing AI request for final presentation generation...")
	completion, err := a.completer.Complete(ctx, request)
	if err != nil {
		logError(a.logger, logrus.Fields{"stage": "generating", "model": a.model}, err, "requesting presentation assembly")
		return nil, eris.Wrap(err, "requesting presentation assembly")
	}

	raw := completion.Text
	if strings.TrimSpace(raw) == "" {
		err := eris.Wrapf(ErrEmptyResponse, "presentation generation (model: %s)", a.model)
		logError(a.logger, logrus.Fields{"stage": "generating", "model": a.model, "response_length": len(raw)}, err, "empty presentation response")
		return nil, err
	}

	notify(ctx, a.observer, PhaseGenerating, "Parsing and validating presentation structure...")

	var decoded any
	if err := json.Unmarshal([]byte(jsonrepair.Sanitize(raw)), &decoded); err != nil {
		location := recordDebug(ctx, a.debug, a.logger, "presentation_generation", raw, err.Error())
		logError(a.logger, logrus.Fields{
			"stage":           "generating",
			"model":           a.model,
			"response_length": len(raw),
			"debug_file":      location,
		}, err, "parsing presentation")
		return nil, eris.Wrapf(ErrInvalidResponse, "presentation generation: %s", err.Error())
	}

	slidesValue, err := unwrapSlides(decoded)
	if err != nil {
		recordDebug(ctx, a.debug, a.logger, "presentation_generation", raw, err.Error())
		return nil, eris.Wrapf(ErrInvalidResponse, "presentation generation: %s", err.Error())
	}

	notify(ctx, a.observer, PhaseGenerating, "Validating presentation structure and content...")

	assembly := &Assembly{Warnings: []string{}}
	if err := Validate(slidesValue); err != nil {
		location := recordDebug(ctx, a.debug, a.logger, "validation_failed", raw, err.Error())
		a.logger.WithFields(logrus.Fields{
			"stage":      "generating",
			"error":      err.Error(),
			"debug_file": location,
		}).Warn("presentation validation failed, continuing with unvalidated slides")

		assembly.Warnings = append(assembly.Warnings, err.Error())
		notify(ctx, a.observer, PhaseGenerating, "Validation failed but continuing with unvalidated data...")
	}

	for index, element := range slidesValue {
		fields, ok := element.(map[string]any)
		if !ok {
			assembly.Warnings = append(assembly.Warnings, fmt.Sprintf("slide %d dropped: not an object", index))
			continue
		}
		assembly.Slides = append(assembly.Slides, cleanSlide(Slide(fields)))
	}
	if assembly.Slides == nil {
		assembly.Slides = []Slide{}
	}

	notify(ctx, a.observer, PhaseGenerationComplete,
		fmt.Sprintf("Presentation successfully generated with %d slides.", len(assembly.Slides)))

	return assembly, nil
}

// unwrapSlides accepts a bare array, an object holding the array under "slides" (or under its
// only key), or a single slide object.
func unwrapSlides(decoded any) ([]any, error) {
	switch value := decoded.(type) {
	case []any:
		return value, nil
	case map[string]any:
		if slides, ok := value["slides"].([]any); ok {
			return slides, nil
		}
		if len(value) == 1 {
			for _, only := range value {
				if slides, ok := only.([]any); ok {
					return slides, nil
				}
			}
		}
		if _, hasType := value["type"]; hasType {
			return []any{value}, nil
		}
		return nil, eris.New("presentation json object carries no slides array")
	default:
		return nil, eris.New("presentation json must be an array or object")
	}
}

// cleanSlide rewrites the string leaves of title and content. The shape is left as is.
func cleanSlide(slide Slide) Slide {
	if content, ok := slide["content"]; ok {
		slide["content"] = jsonrepair.CleanStrings(content)
	}
	if title, ok := slide["title"].(string); ok {
		slide["title"] = jsonrepair.CleanStringContent(title)
	}
	return slide
}
