package deck

// SlideType selects the content shape of a slide.
type SlideType string

const (
	SlideTitle      SlideType = "title"
	SlideBullet     SlideType = "bullet"
	SlideText       SlideType = "text"
	SlideImage      SlideType = "image"
	SlideCode       SlideType = "code"
	SlideQuote      SlideType = "quote"
	SlideSplit      SlideType = "split"
	SlideComparison SlideType = "comparison"
)

// SlideTypes lists every kind the renderer understands.
var SlideTypes = []SlideType{
	SlideTitle, SlideBullet, SlideText, SlideImage,
	SlideCode, SlideQuote, SlideSplit, SlideComparison,
}

// Valid reports whether t is a known slide kind.
func (t SlideType) Valid() bool {
	for _, known := range SlideTypes {
		if t == known {
			return true
		}
	}
	return false
}

// Slide is one decoded slide object. Every field the model returned is kept, so unknown
// fields pass through to the exported deck untouched.
type Slide map[string]any

// Type returns the slide's kind, or "" when the field is absent or not a string.
func (s Slide) Type() SlideType {
	value, _ := s["type"].(string)
	return SlideType(value)
}

// Title returns the slide title when it is a string.
func (s Slide) Title() string {
	value, _ := s["title"].(string)
	return value
}

// Content returns the type-specific payload, or an empty map.
func (s Slide) Content() map[string]any {
	if content, ok := s["content"].(map[string]any); ok {
		return content
	}
	return map[string]any{}
}

// Text returns a string content field.
func (s Slide) Text(key string) string {
	value, _ := s.Content()[key].(string)
	return value
}

// List returns an array content field.
func (s Slide) List(key string) []any {
	value, _ := s.Content()[key].([]any)
	return value
}
