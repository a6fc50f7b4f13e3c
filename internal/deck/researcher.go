package deck

import (
	"context"
	"fmt"
	"math"
	"regexp"
	"strings"
	"sync"

	"github.com/rotisserie/eris"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"

	"deckforge/app/internal/llm"
	"deckforge/app/internal/retry"
)

const sourcesMarker = "SOURCES:"

var sourcePrefix = regexp.MustCompile(`^[-•*\d+.)\s]+`)

// ResearchedItem is the gathered material for one planned item.
type ResearchedItem struct {
	Topic       string   `json:"topic"`
	Content     string   `json:"content"`
	Sources     []string `json:"sources"`
	NeedsSearch bool     `json:"needs_search"`
}

// ResearcherOptions configures a Researcher.
type ResearcherOptions struct {
	SearchModel string
	WriterModel string
	MaxTokens   int
	// Concurrency bounds how many items are researched at once. Values below 2 run items
	// strictly in plan order.
	Concurrency int
	Executor    *retry.Executor
	Observer    Observer
	Logger      *logrus.Logger
}

// Researcher gathers content for every researchable plan item, each call wrapped in retry.
type Researcher struct {
	completer   llm.Completer
	searchModel string
	writerModel string
	maxTokens   int
	concurrency int
	executor    *retry.Executor
	observer    Observer
	logger      *logrus.Logger
}

// NewResearcher builds a researcher on top of completer.
func NewResearcher(completer llm.Completer, opts ResearcherOptions) *Researcher {
	defaults := DefaultModels()

	r := &Researcher{
		completer:   completer,
		searchModel: strings.TrimSpace(opts.SearchModel),
		writerModel: strings.TrimSpace(opts.WriterModel),
		maxTokens:   opts.MaxTokens,
		concurrency: opts.Concurrency,
		executor:    opts.Executor,
		observer:    opts.Observer,
		logger:      loggerOrDiscard(opts.Logger),
	}
	if r.searchModel == "" {
		r.searchModel = defaults.Searcher
	}
	if r.writerModel == "" {
		r.writerModel = defaults.Writer
	}
	if r.maxTokens <= 0 {
		r.maxTokens = defaultResearchTokens
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	if r.executor == nil {
		r.executor = retry.NewExecutor(retry.DefaultConfig())
	}
	return r
}

// Research returns one item per researchable plan entry, in plan order. Entries missing a
// topic or search flag are skipped. The first item that fails after retries aborts the phase.
func (r *Researcher) Research(ctx context.Context, plan *ContentPlan) ([]ResearchedItem, error) {
	if plan == nil || len(plan.Items) == 0 {
		notify(ctx, r.observer, PhaseResearchComplete, "No content items found in plan, skipping research phase.")
		return []ResearchedItem{}, nil
	}

	total := len(plan.Items)
	results := make([]*ResearchedItem, total)
	progress := &researchProgress{}

	group, groupCtx := errgroup.WithContext(ctx)
	group.SetLimit(r.concurrency)

	for index, item := range plan.Items {
		index, item := index, item
		group.Go(func() error {
			if err := groupCtx.Err(); err != nil {
				return err
			}

			if !item.Researchable() {
				progress.advance()
				r.logger.WithFields(logrus.Fields{"stage": "research", "position": index + 1}).Debug("skipping incomplete content item")
				return nil
			}

			researched, err := r.researchItem(groupCtx, index+1, total, item)
			if err != nil {
				return err
			}
			results[index] = researched

			current := progress.advance()
			percent := int(math.Round(float64(current) / float64(total) * 100))
			notify(ctx, r.observer, PhaseResearching,
				fmt.Sprintf("Research progress: %d%% complete (%d/%d topics processed)", percent, current, total))
			return nil
		})
	}

	if err := group.Wait(); err != nil {
		return nil, err
	}

	researched := make([]ResearchedItem, 0, total)
	for _, item := range results {
		if item != nil {
			researched = append(researched, *item)
		}
	}

	return researched, nil
}

func (r *Researcher) researchItem(ctx context.Context, position, total int, item ContentItem) (*ResearchedItem, error) {
	topic := item.Topic

	if item.Searches() {
		notify(ctx, r.observer, PhaseResearching,
			fmt.Sprintf("Researching topic %d/%d: '%s' using web search...", position, total, topic))

		found, err := retry.Execute(ctx, r.executor, fmt.Sprintf("Search for '%s'", topic), researchPrefix,
			func(ctx context.Context) (searchResult, error) {
				return r.search(ctx, topic, item.Query())
			})
		if err != nil {
			logError(r.logger, logrus.Fields{"stage": "research", "topic": topic, "mode": "search"}, err, "researching content item")
			return nil, eris.Wrapf(err, "searching topic %q", topic)
		}

		return &ResearchedItem{Topic: topic, Content: found.content, Sources: found.sources, NeedsSearch: true}, nil
	}

	notify(ctx, r.observer, PhaseResearching,
		fmt.Sprintf("Generating content %d/%d: '%s' using AI knowledge...", position, total, topic))

	content, err := retry.Execute(ctx, r.executor, fmt.Sprintf("Generate content for '%s'", topic), researchPrefix,
		func(ctx context.Context) (string, error) {
			return r.generate(ctx, topic, item.Context)
		})
	if err != nil {
		logError(r.logger, logrus.Fields{"stage": "research", "topic": topic, "mode": "knowledge"}, err, "researching content item")
		return nil, eris.Wrapf(err, "generating content for topic %q", topic)
	}

	return &ResearchedItem{Topic: topic, Content: content, Sources: []string{}, NeedsSearch: false}, nil
}

type searchResult struct {
	content string
	sources []string
}

// search and generate return the provider error as is, so classification never sees topic text.
func (r *Researcher) search(ctx context.Context, topic, query string) (searchResult, error) {
	completion, err := r.completer.Complete(ctx, llm.Request{
		Model:     r.searchModel,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: searchPrompt(topic, query)}},
		MaxTokens: r.maxTokens,
		WebSearch: true,
	})
	if err != nil {
		return searchResult{}, err
	}

	content, sources := splitSources(completion.Text)
	return searchResult{content: content, sources: sources}, nil
}

func (r *Researcher) generate(ctx context.Context, topic, itemContext string) (string, error) {
	completion, err := r.completer.Complete(ctx, llm.Request{
		Model:     r.writerModel,
		Messages:  []llm.Message{{Role: llm.RoleUser, Content: knowledgePrompt(topic, itemContext)}},
		MaxTokens: r.maxTokens,
	})
	if err != nil {
		return "", err
	}

	return completion.Text, nil
}

// splitSources separates the body of a search answer from its trailing SOURCES: section.
func splitSources(response string) (string, []string) {
	body, tail, found := strings.Cut(response, sourcesMarker)
	sources := []string{}
	if !found {
		return strings.TrimSpace(body), sources
	}

	for _, line := range strings.Split(tail, "\n") {
		line = strings.TrimSpace(line)
		line = strings.TrimSpace(sourcePrefix.ReplaceAllString(line, ""))
		if line != "" {
			sources = append(sources, line)
		}
	}

	return strings.TrimSpace(body), sources
}

// researchProgress counts handled plan positions, skipped ones included.
type researchProgress struct {
	mu      sync.Mutex
	handled int
}

func (p *researchProgress) advance() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.handled++
	return p.handled
}
