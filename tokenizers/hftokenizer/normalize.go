package hftokenizer

import (
	"bytes"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/piitag/piitag/tokenizers/api"
	"golang.org/x/text/unicode/norm"
)

// word is normalized text. For each of its bytes, starts and ends hold the byte span of the
// original text it comes from. Inserted text has a zero-width origin.
type word struct {
	text         []byte
	starts, ends []int
}

// newWord returns text, found at offset of the original text, unchanged. All the bytes of a rune
// share the span of that rune.
func newWord(text string, offset int) word {
	var w word
	for pos := 0; pos < len(text); {
		_, size := utf8.DecodeRuneInString(text[pos:])
		w.add(text[pos:pos+size], offset+pos, offset+pos+size)
		pos += size
	}
	return w
}

func (w *word) add(s string, start, end int) {
	w.text = append(w.text, s...)
	for range len(s) {
		w.starts = append(w.starts, start)
		w.ends = append(w.ends, end)
	}
}

// copyFrom appends the bytes [i, j) of other, with their origins.
func (w *word) copyFrom(other word, i, j int) {
	w.text = append(w.text, other.text[i:j]...)
	w.starts = append(w.starts, other.starts[i:j]...)
	w.ends = append(w.ends, other.ends[i:j]...)
}

// slice returns the bytes [i, j) of w. The result doesn't share capacity with w.
func (w word) slice(i, j int) word {
	return word{text: w.text[i:j:j], starts: w.starts[i:j:j], ends: w.ends[i:j:j]}
}

// prepend returns s, with a zero-width origin, followed by w.
func (w word) prepend(s string) word {
	var out word
	pos := 0
	if len(w.starts) > 0 {
		pos = w.starts[0]
	}
	out.add(s, pos, pos)
	out.copyFrom(w, 0, len(w.text))
	return out
}

// span returns the original span of the bytes [i, j), ignoring those with a zero-width origin.
func (w word) span(i, j int) api.TokenSpan {
	start, end := -1, -1
	for k := i; k < j; k++ {
		if w.starts[k] == w.ends[k] {
			continue
		}
		if start < 0 {
			start = w.starts[k]
		}
		end = max(end, w.ends[k])
	}
	if start < 0 {
		return api.TokenSpan{Start: w.starts[i], End: w.starts[i]}
	}
	return api.TokenSpan{Start: start, End: end}
}

// mapRunes replaces every rune by f(r). Replaced runes keep the origin of the rune.
func (w word) mapRunes(f func(r rune) string) word {
	var out word
	for pos := 0; pos < len(w.text); {
		r, size := utf8.DecodeRune(w.text[pos:])
		if s := f(r); s == string(w.text[pos:pos+size]) {
			out.copyFrom(w, pos, pos+size)
		} else {
			out.add(s, w.starts[pos], w.ends[pos+size-1])
		}
		pos += size
	}
	return out
}

// mapSegments applies a Unicode normalization form, one normalization segment at a time.
func (w word) mapSegments(form norm.Form) word {
	var out word
	for pos := 0; pos < len(w.text); {
		n := form.NextBoundary(w.text[pos:], true)
		if n <= 0 {
			n = len(w.text) - pos
		}
		seg := w.text[pos : pos+n]
		if normalized := form.Bytes(seg); bytes.Equal(normalized, seg) {
			out.copyFrom(w, pos, pos+n)
		} else {
			out.add(string(normalized), w.starts[pos], w.ends[pos+n-1])
		}
		pos += n
	}
	return out
}

// replace replaces the matches of re by content. Replaced whitespace gets a zero-width origin,
// like the metaspaces of the pre-tokenizer.
func (w word) replace(re *regexp.Regexp, content string) word {
	matches := re.FindAllIndex(w.text, -1)
	if len(matches) == 0 {
		return w
	}
	var out word
	last := 0
	for _, m := range matches {
		if m[0] == m[1] {
			continue
		}
		out.copyFrom(w, last, m[0])
		if isBlank(w.text[m[0]:m[1]]) {
			out.add(content, w.ends[m[1]-1], w.ends[m[1]-1])
		} else {
			out.add(content, w.starts[m[0]], w.ends[m[1]-1])
		}
		last = m[1]
	}
	out.copyFrom(w, last, len(w.text))
	return out
}

// strip removes leading and/or trailing whitespace.
func (w word) strip(left, right bool) word {
	i, j := 0, len(w.text)
	if left {
		i = len(w.text) - len(bytes.TrimLeftFunc(w.text, unicode.IsSpace))
	}
	if right {
		j = len(bytes.TrimRightFunc(w.text, unicode.IsSpace))
	}
	if i >= j {
		return word{}
	}
	return w.slice(i, j)
}

// normalize applies the normalizer to the word.
func (t *Tokenizer) normalize(w word) word {
	if t.tokenizer.Normalizer == nil {
		return w
	}
	return applyNormalizer(w, t.tokenizer.Normalizer)
}

func applyNormalizer(w word, n *Normalizer) word {
	switch n.Type {
	case "BertNormalizer":
		if n.CleanText == nil || *n.CleanText {
			w = w.mapRunes(cleanRune)
		}
		if n.HandleChineseChars == nil || *n.HandleChineseChars {
			w = w.mapRunes(padChineseChar)
		}
		// strip_accents defaults to the value of lowercase.
		stripAccents := n.Lowercase
		if n.StripAccents != nil {
			stripAccents = *n.StripAccents
		}
		if stripAccents {
			w = w.mapSegments(norm.NFD).mapRunes(dropMark)
		}
		if n.Lowercase {
			w = w.mapRunes(lowerRune)
		}
		return w
	case "Lowercase":
		return w.mapRunes(lowerRune)
	case "StripAccents":
		return w.mapRunes(dropMark)
	case "NFD":
		return w.mapSegments(norm.NFD)
	case "NFC":
		return w.mapSegments(norm.NFC)
	case "NFKD":
		return w.mapSegments(norm.NFKD)
	case "NFKC", "Precompiled":
		// Precompiled charsmaps (XLM-RoBERTa, T5) are mostly NFKC.
		return w.mapSegments(norm.NFKC)
	case "Replace":
		if n.Pattern == nil || n.Pattern.re == nil {
			return w
		}
		return w.replace(n.Pattern.re, n.Content)
	case "Prepend":
		if len(w.text) == 0 {
			return w
		}
		return w.prepend(n.Prepend)
	case "Strip":
		return w.strip(n.StripLeft, n.StripRight)
	case "Sequence":
		for ii := range n.Normalizers {
			w = applyNormalizer(w, &n.Normalizers[ii])
		}
		return w
	default:
		return w
	}
}

func cleanRune(r rune) string {
	switch {
	case r == 0 || r == utf8.RuneError || isControl(r):
		return ""
	case isWhitespace(r):
		return " "
	default:
		return string(r)
	}
}

func padChineseChar(r rune) string {
	if isChineseChar(r) {
		return " " + string(r) + " "
	}
	return string(r)
}

func lowerRune(r rune) string {
	return strings.ToLower(string(r))
}

func dropMark(r rune) string {
	if unicode.Is(unicode.Mn, r) { // Mn = Mark, Nonspacing
		return ""
	}
	return string(r)
}

func isBlank(b []byte) bool {
	return len(bytes.TrimFunc(b, unicode.IsSpace)) == 0
}

func isWhitespace(r rune) bool {
	if r == ' ' || r == '\t' || r == '\n' || r == '\r' {
		return true
	}
	return unicode.Is(unicode.Zs, r)
}

func isControl(r rune) bool {
	if r == '\t' || r == '\n' || r == '\r' {
		return false
	}
	return unicode.IsControl(r)
}

func isPunctuation(r rune) bool {
	// ASCII punctuation
	if (r >= 33 && r <= 47) || (r >= 58 && r <= 64) ||
		(r >= 91 && r <= 96) || (r >= 123 && r <= 126) {
		return true
	}
	return unicode.IsPunct(r)
}

// isChineseChar reports whether r is in the CJK Unified Ideographs blocks.
func isChineseChar(r rune) bool {
	return (r >= 0x4E00 && r <= 0x9FFF) ||
		(r >= 0x3400 && r <= 0x4DBF) ||
		(r >= 0x20000 && r <= 0x2A6DF) ||
		(r >= 0x2A700 && r <= 0x2B73F) ||
		(r >= 0x2B740 && r <= 0x2B81F) ||
		(r >= 0x2B820 && r <= 0x2CEAF) ||
		(r >= 0xF900 && r <= 0xFAFF) ||
		(r >= 0x2F800 && r <= 0x2FA1F)
}
