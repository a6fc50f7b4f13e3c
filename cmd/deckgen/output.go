package main

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/rotisserie/eris"

	"deckforge/app/internal/deck"
)

const (
	maxSafeTitleLength = 50
	filenameLayout     = "2006-01-02_15-04-05"
)

var unsafeFilenameChars = regexp.MustCompile(`[^a-zA-Z0-9_-]`)

// defaultFilename builds presentation_<safe title>_<timestamp>.json.
func defaultFilename(title string, now time.Time) string {
	safe := unsafeFilenameChars.ReplaceAllString(title, "_")
	if len(safe) > maxSafeTitleLength {
		safe = safe[:maxSafeTitleLength]
	}
	return fmt.Sprintf("presentation_%s_%s.json", safe, now.Format(filenameLayout))
}

// savePresentation writes slides as indented JSON into dir and returns the file path. Unicode
// and HTML characters are written unescaped.
func savePresentation(dir, filename string, slides []deck.Slide) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "creating output directory %s", dir)
	}

	if !strings.HasSuffix(strings.ToLower(filename), ".json") {
		filename += ".json"
	}
	path := filepath.Join(dir, filename)

	if slides == nil {
		slides = []deck.Slide{}
	}

	var buf bytes.Buffer
	encoder := json.NewEncoder(&buf)
	encoder.SetEscapeHTML(false)
	encoder.SetIndent("", "    ")
	if err := encoder.Encode(slides); err != nil {
		return "", eris.Wrap(err, "encoding presentation")
	}

	if err := os.WriteFile(path, bytes.TrimRight(buf.Bytes(), "\n"), 0o644); err != nil {
		return "", eris.Wrapf(err, "failed to save presentation to %s", path)
	}

	return path, nil
}
