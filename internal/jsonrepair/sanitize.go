// Package jsonrepair turns near-valid model output into text a strict JSON parser accepts.
package jsonrepair

import (
	"regexp"
	"strings"
)

var (
	fenceOpener = regexp.MustCompile("^```[A-Za-z0-9_+-]*[ \t]*\r?\n?")
	fenceCloser = regexp.MustCompile("\r?\n?[ \t]*```$")
)

// Sanitize strips a byte-order mark, surrounding whitespace and markdown code fences, then
// repairs trailing commas and malformed escapes. Valid JSON passes through unchanged apart from
// the outer trim. The result may still fail to parse.
func Sanitize(raw string) string {
	text := strings.TrimPrefix(raw, "\ufeff")
	text = strings.TrimSpace(text)
	text = StripCodeFence(text)
	text = strings.TrimSpace(text)

	return repair(text)
}

// StripCodeFence removes a leading ``` opener (with or without a language tag) and a trailing
// ``` closer. Either marker may be absent.
func StripCodeFence(text string) string {
	if strings.HasPrefix(text, "```") {
		text = fenceOpener.ReplaceAllString(text, "")
	}
	if strings.HasSuffix(text, "```") {
		text = fenceCloser.ReplaceAllString(text, "")
	}
	return text
}

// repair walks the text once, tracking whether the cursor is inside a string literal.
// Outside strings only trailing commas are dropped. Inside strings escapes are repaired.
func repair(text string) string {
	var b strings.Builder
	b.Grow(len(text))

	inString := false
	for i := 0; i < len(text); i++ {
		c := text[i]

		if !inString {
			switch {
			case c == '"':
				inString = true
				b.WriteByte(c)
			case c == ',' && closesNext(text, i+1):
			default:
				b.WriteByte(c)
			}
			continue
		}

		switch {
		case c == '"':
			inString = false
			b.WriteByte(c)
		case c == '\\':
			if letter, end, ok := spacedEscape(text, i); ok {
				b.WriteByte('\\')
				b.WriteByte(letter)
				i = end
				continue
			}
			if isEscape(text, i+1) {
				b.WriteByte('\\')
				b.WriteByte(text[i+1])
				i++
				continue
			}
			b.WriteString(`\\`)
		case c < 0x20:
			b.WriteString(escapeControl(c))
		default:
			b.WriteByte(c)
		}
	}

	return b.String()
}

func closesNext(text string, from int) bool {
	for j := from; j < len(text); j++ {
		switch text[j] {
		case ' ', '\t', '\n', '\r':
			continue
		case '}', ']':
			return true
		default:
			return false
		}
	}
	return false
}

// spacedEscape matches a backslash, a run of spaces or tabs, then n, t or r.
func spacedEscape(text string, at int) (byte, int, bool) {
	j := at + 1
	for j < len(text) && (text[j] == ' ' || text[j] == '\t') {
		j++
	}
	if j == at+1 || j >= len(text) {
		return 0, 0, false
	}

	switch text[j] {
	case 'n', 't', 'r':
		return text[j], j, true
	default:
		return 0, 0, false
	}
}

func isEscape(text string, at int) bool {
	if at >= len(text) {
		return false
	}

	switch text[at] {
	case '"', '\\', '/', 'b', 'f', 'n', 'r', 't':
		return true
	case 'u':
		if at+4 >= len(text) {
			return false
		}
		for _, h := range []byte(text[at+1 : at+5]) {
			if !isHex(h) {
				return false
			}
		}
		return true
	default:
		return false
	}
}

func isHex(c byte) bool {
	return (c >= '0' && c <= '9') || (c >= 'a' && c <= 'f') || (c >= 'A' && c <= 'F')
}

func escapeControl(c byte) string {
	switch c {
	case '\n':
		return `\n`
	case '\r':
		return `\r`
	case '\t':
		return `\t`
	case '\b':
		return `\b`
	case '\f':
		return `\f`
	default:
		const hex = "0123456789abcdef"
		return `\u00` + string([]byte{hex[c>>4], hex[c&0xf]})
	}
}
