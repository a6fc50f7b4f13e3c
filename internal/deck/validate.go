package deck

import "fmt"

// requiredContent lists the content fields each slide kind must carry.
var requiredContent = map[SlideType][]string{
	SlideBullet:     {"bullets"},
	SlideText:       {"text"},
	SlideImage:      {"url"},
	SlideCode:       {"code"},
	SlideQuote:      {"quote"},
	SlideSplit:      {"leftContent", "rightContent"},
	SlideComparison: {"leftTitle", "rightTitle", "leftItems", "rightItems"},
}

// Validate checks a decoded slide array against the per-type content rules and returns a
// *StructureError for the first violation. Extra fields are permitted.
func Validate(value any) error {
	slides, ok := value.([]any)
	if !ok {
		return &StructureError{Index: -1, Reason: "presentation data must be an array"}
	}

	for index, element := range slides {
		slide, ok := element.(map[string]any)
		if !ok {
			return &StructureError{Index: index, Reason: "slide must be an object"}
		}
		if err := validateSlide(index, Slide(slide)); err != nil {
			return err
		}
	}

	return nil
}

func validateSlide(index int, slide Slide) error {
	for _, field := range []string{"type", "title"} {
		if !present(slide, field) {
			return &StructureError{Index: index, Field: field, Reason: fmt.Sprintf("missing required %q field", field)}
		}
	}

	kind := slide.Type()
	if !kind.Valid() {
		return &StructureError{Index: index, Field: "type", Reason: fmt.Sprintf("invalid type: %v", slide["type"])}
	}

	content := slide.Content()
	for _, field := range requiredContent[kind] {
		if !present(content, field) {
			return &StructureError{Index: index, Field: field, Reason: fmt.Sprintf("(%s) missing %q field", kind, field)}
		}
	}

	switch kind {
	case SlideBullet:
		if _, ok := content["bullets"].([]any); !ok {
			return &StructureError{Index: index, Field: "bullets", Reason: "(bullet) 'bullets' must be an array"}
		}
	case SlideText:
		if sources, ok := content["sources"]; ok && sources != nil {
			if _, isArray := sources.([]any); !isArray {
				return &StructureError{Index: index, Field: "sources", Reason: "(text) 'sources' must be an array"}
			}
		}
	}

	return nil
}

func present(fields map[string]any, key string) bool {
	value, ok := fields[key]
	return ok && value != nil
}
