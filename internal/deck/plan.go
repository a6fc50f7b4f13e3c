package deck

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

// Priority ranks a planned item.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// ContentItem is one planned section of the presentation. NeedsSearch is nil when the model
// left the flag out; such items are skipped during research.
type ContentItem struct {
	Topic       string    `json:"topic"`
	NeedsSearch *bool     `json:"needs_search,omitempty"`
	SearchQuery string    `json:"search_query,omitempty"`
	Context     string    `json:"context,omitempty"`
	SlideType   SlideType `json:"slide_type,omitempty"`
	Priority    Priority  `json:"priority,omitempty"`
}

// Researchable reports whether the item carries both a topic and a search flag.
func (i ContentItem) Researchable() bool {
	return strings.TrimSpace(i.Topic) != "" && i.NeedsSearch != nil
}

// Searches reports whether the item asked for a web-backed lookup.
func (i ContentItem) Searches() bool {
	return i.NeedsSearch != nil && *i.NeedsSearch
}

// Query returns the search query, falling back to the topic.
func (i ContentItem) Query() string {
	if query := strings.TrimSpace(i.SearchQuery); query != "" {
		return query
	}
	return i.Topic
}

// ContentPlan is the planner's decomposition of a brief into ordered items.
type ContentPlan struct {
	Overview string        `json:"presentation_overview"`
	Audience string        `json:"target_audience"`
	Themes   []string      `json:"key_themes"`
	Items    []ContentItem `json:"content_items"`
}

// Summary describes the plan in one sentence for status reporting.
func (p *ContentPlan) Summary() string {
	if p == nil {
		return "Plan includes 0 content sections (0 requiring web search, 0 using AI knowledge)."
	}

	searches := 0
	for _, item := range p.Items {
		if item.Searches() {
			searches++
		}
	}

	return fmt.Sprintf("Plan includes %d content sections (%d requiring web search, %d using AI knowledge).",
		len(p.Items), searches, len(p.Items)-searches)
}

// decodePlan parses sanitized planner output. The model's JSON is decoded into a generic tree
// first so that a mistyped field costs that field, not the whole plan.
func decodePlan(text string) (*ContentPlan, error) {
	var raw any
	if err := json.Unmarshal([]byte(text), &raw); err != nil {
		return nil, err
	}

	fields, ok := raw.(map[string]any)
	if !ok {
		return nil, eris.New("content plan json must be an object")
	}

	plan := &ContentPlan{
		Overview: textValue(fields["presentation_overview"]),
		Audience: textValue(fields["target_audience"]),
		Themes:   []string{},
	}

	if themes, ok := fields["key_themes"].([]any); ok {
		for _, theme := range themes {
			if value := strings.TrimSpace(textValue(theme)); value != "" {
				plan.Themes = append(plan.Themes, value)
			}
		}
	}

	if items, ok := fields["content_items"].([]any); ok {
		plan.Items = make([]ContentItem, 0, len(items))
		for _, element := range items {
			itemFields, _ := element.(map[string]any)
			plan.Items = append(plan.Items, decodeItem(itemFields))
		}
	}

	return plan, nil
}

func decodeItem(fields map[string]any) ContentItem {
	if fields == nil {
		return ContentItem{}
	}

	return ContentItem{
		Topic:       strings.TrimSpace(textValue(fields["topic"])),
		NeedsSearch: flagValue(fields["needs_search"]),
		SearchQuery: strings.TrimSpace(textValue(fields["search_query"])),
		Context:     strings.TrimSpace(textValue(fields["context"])),
		SlideType:   SlideType(strings.ToLower(strings.TrimSpace(textValue(fields["slide_type"])))),
		Priority:    Priority(strings.ToLower(strings.TrimSpace(textValue(fields["priority"])))),
	}
}

func textValue(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case bool:
		return strconv.FormatBool(v)
	default:
		return ""
	}
}

// flagValue accepts the loose booleans models produce: true, "true", "yes", 1.
func flagValue(value any) *bool {
	var result bool
	switch v := value.(type) {
	case bool:
		result = v
	case float64:
		result = v != 0
	case string:
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "true", "yes", "1":
			result = true
		case "false", "no", "0", "":
			result = false
		default:
			return nil
		}
	default:
		return nil
	}
	return &result
}
