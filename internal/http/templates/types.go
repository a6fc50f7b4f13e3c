package templates

// DefaultFooterNote is shown in the shared layout when a page does not supply custom text.
const DefaultFooterNote = "Decks are generated by language models. Check facts and sources before presenting."

// SlideView is one slide prepared for rendering. Content holds the raw type-specific payload.
type SlideView struct {
	Number  int
	Type    string
	Title   string
	Content map[string]any
}

// DeckPageData bundles a stored presentation for the viewer.
type DeckPageData struct {
	Title             string
	Message           string
	Status            string
	StatusDescription string
	Finished          bool
	Failed            bool
	Error             string
	Slides            []SlideView
	Warnings          []string
	UsageLabel        string
}

// ErrorPageData holds information for rendering an error view.
type ErrorPageData struct {
	Title       string
	StatusLabel string
	Message     string
}
