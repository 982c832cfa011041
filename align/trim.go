package align

import "unicode"

// TrimSpan removes leading and trailing whitespace characters from span, where text holds the
// runes of the text the span refers to. The end is first clamped to the text length.
// It returns false if nothing is left. Trimming an already trimmed span returns it unchanged.
func TrimSpan(text []rune, span Span) (Span, bool) {
	span.Start = max(span.Start, 0)
	span.End = min(span.End, len(text))
	for span.Start < span.End && isSpace(text[span.Start]) {
		span.Start++
	}
	for span.End > span.Start && isSpace(text[span.End-1]) {
		span.End--
	}
	return span, span.Start < span.End
}

// isSpace reports whether r is whitespace as Python's str.isspace sees it: unicode.IsSpace plus
// the information separators U+001C to U+001F.
func isSpace(r rune) bool {
	return unicode.IsSpace(r) || (r >= 0x1C && r <= 0x1F)
}
