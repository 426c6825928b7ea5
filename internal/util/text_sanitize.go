package util

import "strings"

// SanitizeText strips NUL and other control bytes that Postgres text and
// JSONB columns reject, plus the U+FFFD markers PDF extractors emit for
// glyphs they cannot map.
func SanitizeText(s string) string {
	if s == "" {
		return s
	}
	var b strings.Builder
	b.Grow(len(s))
	for _, ch := range s {
		switch {
		case ch == '\n' || ch == '\r' || ch == '\t':
			b.WriteRune(ch)
		case ch < 0x20 || ch == 0x7f || ch == '�':
		default:
			b.WriteRune(ch)
		}
	}
	return strings.TrimSpace(b.String())
}
