package templates

import (
	"context"
	"io"
	"strconv"

	"github.com/a-h/templ"
)

func layout(title string, body func(h *htmlWriter)) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		h := &htmlWriter{w: w}
		h.raw(`<!DOCTYPE html><html lang="en"><head><meta charset="utf-8">`)
		h.raw(`<meta name="viewport" content="width=device-width, initial-scale=1">`)
		h.raw("<title>")
		h.text(title)
		h.raw(`</title><link rel="stylesheet" href="/static/deck.css"></head><body><main>`)
		body(h)
		h.raw(`</main><footer>`)
		h.text(DefaultFooterNote)
		h.raw(`</footer></body></html>`)
		return h.err
	})
}

// DeckPage renders a stored presentation, one section per slide.
func DeckPage(data DeckPageData) templ.Component {
	return layout(data.Title+" • Deckforge", func(h *htmlWriter) {
		h.raw(`<header class="deck-header">`)
		h.element("h1", "", data.Title)
		h.element("p", "deck-message", data.Message)
		h.raw(`<p class="deck-status" data-status="` + templ.EscapeString(data.Status) + `">`)
		h.text(data.StatusDescription)
		h.raw("</p>")
		h.element("p", "deck-usage", data.UsageLabel)
		h.raw("</header>")

		if data.Failed {
			h.element("p", "deck-error", data.Error)
			return
		}
		if !data.Finished {
			h.element("p", "deck-pending", "This presentation is still being generated. Refresh to see progress.")
			return
		}

		if len(data.Warnings) > 0 {
			h.list("deck-warnings", data.Warnings)
		}

		for _, slide := range data.Slides {
			renderSlide(h, slide)
		}
	})
}

func renderSlide(h *htmlWriter, slide SlideView) {
	h.raw(`<section class="slide slide-` + templ.EscapeString(slide.Type) + `" id="slide-`)
	h.text(strconv.Itoa(slide.Number))
	h.raw(`">`)

	if slide.Type == "title" {
		h.element("h1", "slide-title", slide.Title)
		h.element("p", "slide-subtitle", text(slide.Content, "subtitle"))
		h.raw("</section>")
		return
	}

	h.element("h2", "slide-title", slide.Title)
	content := slide.Content

	switch slide.Type {
	case "bullet":
		h.list("slide-bullets", items(content, "bullets"))
	case "text":
		h.multiline("slide-text", text(content, "text"))
	case "image":
		if url := text(content, "url"); url != "" {
			h.raw(`<figure><img src="` + templ.EscapeString(url) + `" alt="` + templ.EscapeString(slide.Title) + `">`)
			h.element("figcaption", "", text(content, "caption"))
			h.raw("</figure>")
		}
	case "code":
		h.element("p", "slide-filename", text(content, "filename"))
		h.raw(`<pre><code class="language-` + templ.EscapeString(text(content, "language")) + `">`)
		h.text(text(content, "code"))
		h.raw("</code></pre>")
	case "quote":
		h.raw("<blockquote>")
		h.multiline("slide-quote", text(content, "quote"))
		h.raw("</blockquote>")
		h.element("p", "slide-author", text(content, "author"))
		h.element("p", "slide-source", text(content, "source"))
	case "split":
		h.raw(`<div class="slide-columns"><div class="slide-left">`)
		h.multiline("", text(content, "leftContent"))
		h.raw(`</div><div class="slide-right">`)
		h.multiline("", text(content, "rightContent"))
		h.raw("</div></div>")
	case "comparison":
		h.raw(`<div class="slide-columns"><div class="slide-left">`)
		h.element("h3", "", text(content, "leftTitle"))
		h.list("slide-items", items(content, "leftItems"))
		h.raw(`</div><div class="slide-right">`)
		h.element("h3", "", text(content, "rightTitle"))
		h.list("slide-items", items(content, "rightItems"))
		h.raw("</div></div>")
	}

	if sources := items(content, "sources"); len(sources) > 0 {
		h.raw(`<aside class="slide-sources"><h4>Sources</h4>`)
		h.list("", sources)
		h.raw("</aside>")
	}

	h.raw("</section>")
}

// ErrorPage renders a status label and a message.
func ErrorPage(data ErrorPageData) templ.Component {
	return layout(data.Title, func(h *htmlWriter) {
		h.element("h1", "", data.StatusLabel)
		h.element("p", "", data.Message)
	})
}
