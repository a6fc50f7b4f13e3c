package jsonrepair

import (
	"regexp"
	"strconv"
	"strings"
	"unicode/utf16"
	"unicode/utf8"
)

var unicodeEscape = regexp.MustCompile(`\\u[dD][89abAB][0-9a-fA-F]{2}\\u[dD][c-fC-F][0-9a-fA-F]{2}|\\u[0-9a-fA-F]{4}`)

var lineEndings = strings.NewReplacer("\r\n", "\n", "\r", "\n")

// CleanStringContent normalizes line endings, trims outer whitespace and decodes leftover
// \uXXXX escapes. Escapes that do not decode to a valid rune are left as written.
func CleanStringContent(text string) string {
	text = lineEndings.Replace(text)
	text = strings.TrimSpace(text)

	if !strings.Contains(text, `\u`) {
		return text
	}
	return unicodeEscape.ReplaceAllStringFunc(text, decodeEscape)
}

// CleanStrings applies CleanStringContent to every string leaf of a decoded JSON value.
// Maps and slices are rewritten in place; their shape never changes.
func CleanStrings(value any) any {
	switch v := value.(type) {
	case string:
		return CleanStringContent(v)
	case map[string]any:
		for key, child := range v {
			v[key] = CleanStrings(child)
		}
		return v
	case []any:
		for i, child := range v {
			v[i] = CleanStrings(child)
		}
		return v
	default:
		return value
	}
}

func decodeEscape(seq string) string {
	if len(seq) == 12 {
		high, highOK := parseHex(seq[2:6])
		low, lowOK := parseHex(seq[8:12])
		if highOK && lowOK {
			if r := utf16.DecodeRune(high, low); r != utf8.RuneError {
				return string(r)
			}
		}
		return seq
	}

	r, ok := parseHex(seq[2:6])
	if !ok || utf16.IsSurrogate(r) || !utf8.ValidRune(r) {
		return seq
	}
	return string(r)
}

func parseHex(digits string) (rune, bool) {
	value, err := strconv.ParseUint(digits, 16, 32)
	if err != nil {
		return 0, false
	}
	return rune(value), true
}
