package templates

import (
	"fmt"
	"io"
	"strings"

	"github.com/a-h/templ"
)

// text returns a string field from a slide payload. Non-string values are formatted.
func text(content map[string]any, key string) string {
	switch value := content[key].(type) {
	case nil:
		return ""
	case string:
		return value
	default:
		return fmt.Sprint(value)
	}
}

// items returns an array field from a slide payload as strings.
func items(content map[string]any, key string) []string {
	values, ok := content[key].([]any)
	if !ok {
		return nil
	}

	result := make([]string, 0, len(values))
	for _, value := range values {
		if s, ok := value.(string); ok {
			result = append(result, s)
			continue
		}
		result = append(result, fmt.Sprint(value))
	}
	return result
}

// paragraphs splits text on blank lines.
func paragraphs(value string) []string {
	var result []string
	for _, block := range strings.Split(value, "\n\n") {
		if trimmed := strings.TrimSpace(block); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

// htmlWriter writes escaped text and literal markup, keeping the first error.
type htmlWriter struct {
	w   io.Writer
	err error
}

func (h *htmlWriter) raw(markup string) {
	if h.err != nil {
		return
	}
	_, h.err = io.WriteString(h.w, markup)
}

func (h *htmlWriter) text(value string) {
	h.raw(templ.EscapeString(value))
}

// element writes <tag class="...">escaped value</tag> and skips empty values.
func (h *htmlWriter) element(tag, class, value string) {
	if strings.TrimSpace(value) == "" {
		return
	}
	if class != "" {
		h.raw("<" + tag + ` class="` + templ.EscapeString(class) + `">`)
	} else {
		h.raw("<" + tag + ">")
	}
	h.text(value)
	h.raw("</" + tag + ">")
}

func (h *htmlWriter) list(class string, values []string) {
	if len(values) == 0 {
		return
	}
	h.raw(`<ul class="` + templ.EscapeString(class) + `">`)
	for _, value := range values {
		h.element("li", "", value)
	}
	h.raw("</ul>")
}

func (h *htmlWriter) multiline(class, value string) {
	for _, paragraph := range paragraphs(value) {
		h.element("p", class, paragraph)
	}
}
