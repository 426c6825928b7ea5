package formfill

import (
	"strings"
	"unicode/utf8"
)

const DefaultWrapWidth = 60

// WrapText inserts line breaks so no line exceeds width characters. Existing
// line breaks are kept, words are never reordered, and a single word longer
// than width is split across lines.
func WrapText(text string, width int) string {
	if width <= 0 || utf8.RuneCountInString(text) <= width {
		return text
	}
	lines := strings.Split(text, "\n")
	out := make([]string, 0, len(lines))
	for _, line := range lines {
		if utf8.RuneCountInString(line) <= width {
			out = append(out, line)
			continue
		}
		out = append(out, wrapLine(line, width)...)
	}
	return strings.Join(out, "\n")
}

func wrapLine(line string, width int) []string {
	var (
		out     []string
		current strings.Builder
		curLen  int
	)
	flush := func() {
		if curLen > 0 {
			out = append(out, current.String())
			current.Reset()
			curLen = 0
		}
	}
	for _, word := range strings.Fields(line) {
		runes := []rune(word)
		for len(runes) > width {
			flush()
			out = append(out, string(runes[:width]))
			runes = runes[width:]
		}
		if len(runes) == 0 {
			continue
		}
		switch {
		case curLen == 0:
			current.WriteString(string(runes))
			curLen = len(runes)
		case curLen+1+len(runes) <= width:
			current.WriteByte(' ')
			current.WriteString(string(runes))
			curLen += 1 + len(runes)
		default:
			flush()
			current.WriteString(string(runes))
			curLen = len(runes)
		}
	}
	flush()
	return out
}
