package hftokenizer

import (
	"bytes"
	"cmp"
	"unicode"
	"unicode/utf8"
)

// preTokenize splits a normalized word into the words the model tokenizes. Without a
// pre-tokenizer, WordPiece models split as BERT does and the other models take the whole text.
func (t *Tokenizer) preTokenize(w word) []word {
	pt := t.tokenizer.PreTokenizer
	if pt == nil {
		if t.tokenizer.Model.Type == "" || t.tokenizer.Model.Type == "WordPiece" {
			return splitByClass(w, bertClass)
		}
		return []word{w}
	}
	return applyPreTokenizer([]word{w}, pt)
}

func applyPreTokenizer(words []word, pt *PreTokenizer) []word {
	var out []word
	switch pt.Type {
	case "Sequence":
		for ii := range pt.PreTokenizers {
			words = applyPreTokenizer(words, &pt.PreTokenizers[ii])
		}
		return words
	case "ByteLevel":
		for _, w := range words {
			out = append(out, byteLevel(w, pt)...)
		}
		return out
	case "Metaspace":
		for _, w := range words {
			out = append(out, metaspace(w, pt)...)
		}
		return out
	}

	for _, w := range words {
		switch pt.Type {
		case "BertPreTokenizer":
			out = append(out, splitByClass(w, bertClass)...)
		case "Whitespace":
			out = append(out, splitByClass(w, wordClass)...)
		case "WhitespaceSplit":
			out = append(out, splitByClass(w, whitespaceClass)...)
		case "Punctuation":
			out = append(out, splitByClass(w, punctuationClass)...)
		case "Digits":
			out = append(out, splitByClass(w, digitsClass(pt.IndividualDigits))...)
		case "Split":
			if pt.Pattern == nil || pt.Pattern.re == nil {
				out = append(out, gpt2Split(w)...)
			} else {
				out = append(out, splitPattern(w, pt)...)
			}
		default:
			out = append(out, splitByClass(w, whitespaceClass)...)
		}
	}
	return out
}

// Rune classes of splitByClass: runs of runes of the same positive class are kept together.
const (
	dropClass    = 0
	isolateClass = -1
)

// splitByClass splits w into runs of runes of the same class, dropping the runes of dropClass
// and making each rune of isolateClass a word of its own.
func splitByClass(w word, class func(r rune) int) []word {
	var out []word
	start, current := -1, 0
	flush := func(end int) {
		if start >= 0 {
			out = append(out, w.slice(start, end))
			start = -1
		}
	}
	for pos := 0; pos < len(w.text); {
		r, size := utf8.DecodeRune(w.text[pos:])
		switch c := class(r); {
		case c == dropClass:
			flush(pos)
		case c == isolateClass:
			flush(pos)
			out = append(out, w.slice(pos, pos+size))
		case start >= 0 && c == current:
		default:
			flush(pos)
			start, current = pos, c
		}
		pos += size
	}
	flush(len(w.text))
	return out
}

func bertClass(r rune) int {
	switch {
	case isWhitespace(r):
		return dropClass
	case isPunctuation(r):
		return isolateClass
	default:
		return 1
	}
}

// wordClass splits as the regexp `\w+|[^\w\s]+`.
func wordClass(r rune) int {
	switch {
	case unicode.IsSpace(r):
		return dropClass
	case r == '_' || unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsMark(r):
		return 1
	default:
		return 2
	}
}

func whitespaceClass(r rune) int {
	if unicode.IsSpace(r) {
		return dropClass
	}
	return 1
}

func punctuationClass(r rune) int {
	if isPunctuation(r) {
		return isolateClass
	}
	return 1
}

func digitsClass(individual bool) func(r rune) int {
	return func(r rune) int {
		switch {
		case !unicode.IsDigit(r):
			return 1
		case individual:
			return isolateClass
		default:
			return 2
		}
	}
}

// splitPattern splits w on the matches of the pattern, according to the behavior.
func splitPattern(w word, pt *PreTokenizer) []word {
	type part struct {
		start, end int
		match      bool
	}
	var parts []part
	last := 0
	for _, m := range pt.Pattern.re.FindAllIndex(w.text, -1) {
		if m[0] == m[1] {
			continue
		}
		if last < m[0] {
			parts = append(parts, part{last, m[0], pt.Invert})
		}
		parts = append(parts, part{m[0], m[1], !pt.Invert})
		last = m[1]
	}
	if last < len(w.text) {
		parts = append(parts, part{last, len(w.text), pt.Invert})
	}

	var out []word
	switch pt.Behavior {
	case "Removed":
		for _, p := range parts {
			if !p.match {
				out = append(out, w.slice(p.start, p.end))
			}
		}
	case "MergedWithPrevious":
		start := 0
		for ii, p := range parts {
			if p.match || ii == len(parts)-1 {
				out = append(out, w.slice(start, p.end))
				start = p.end
			}
		}
	case "MergedWithNext":
		start := 0
		for _, p := range parts {
			if p.match && start < p.start {
				out = append(out, w.slice(start, p.start))
				start = p.start
			}
		}
		if start < len(w.text) {
			out = append(out, w.slice(start, len(w.text)))
		}
	case "Contiguous":
		for ii := 0; ii < len(parts); {
			jj := ii + 1
			for jj < len(parts) && parts[jj].match && parts[ii].match {
				jj++
			}
			out = append(out, w.slice(parts[ii].start, parts[jj-1].end))
			ii = jj
		}
	default: // Isolated
		for _, p := range parts {
			out = append(out, w.slice(p.start, p.end))
		}
	}
	return out
}

var contractions = [][]byte{[]byte("'s"), []byte("'t"), []byte("'re"), []byte("'ve"), []byte("'m"), []byte("'ll"), []byte("'d")}

// gpt2Split splits w as the GPT-2 regexp
// `'s|'t|'re|'ve|'m|'ll|'d| ?\p{L}+| ?\p{N}+| ?[^\s\p{L}\p{N}]+|\s+(?!\S)|\s+`.
func gpt2Split(w word) []word {
	var out []word
	for pos := 0; pos < len(w.text); {
		end := gpt2Next(w.text, pos)
		out = append(out, w.slice(pos, end))
		pos = end
	}
	return out
}

// gpt2Next returns the end of the GPT-2 word starting at pos.
func gpt2Next(text []byte, pos int) int {
	for _, c := range contractions {
		if bytes.HasPrefix(text[pos:], c) {
			return pos + len(c)
		}
	}
	r, size := utf8.DecodeRune(text[pos:])
	start := pos
	if r == ' ' && pos+size < len(text) {
		if next, _ := utf8.DecodeRune(text[pos+size:]); !unicode.IsSpace(next) {
			start, r = pos+size, next
		}
	}
	if start == pos && unicode.IsSpace(r) {
		// A run of whitespace leaves its last rune to the word that follows.
		end, lastSize := pos, 0
		for end < len(text) {
			r, size := utf8.DecodeRune(text[end:])
			if !unicode.IsSpace(r) {
				break
			}
			end, lastSize = end+size, size
		}
		if end < len(text) && end-lastSize > pos {
			return end - lastSize
		}
		return end
	}
	class := gpt2Class(r)
	end := start
	for end < len(text) {
		r, size := utf8.DecodeRune(text[end:])
		if unicode.IsSpace(r) || gpt2Class(r) != class {
			break
		}
		end += size
	}
	return end
}

func gpt2Class(r rune) int {
	switch {
	case unicode.IsLetter(r):
		return 1
	case unicode.IsNumber(r):
		return 2
	default:
		return 3
	}
}

// byteLevel splits w as GPT-2 and maps every byte to the printable rune standing for it.
// Whitespace gets a zero-width origin, so "Ġworld" spans only "world".
func byteLevel(w word, pt *PreTokenizer) []word {
	if boolOr(pt.AddPrefixSpace, true) && len(w.text) > 0 && w.text[0] != ' ' {
		w = w.prepend(" ")
	}
	words := []word{w}
	if boolOr(pt.UseRegex, true) {
		words = gpt2Split(w)
	}
	out := make([]word, 0, len(words))
	for _, w := range words {
		var mapped word
		for pos := 0; pos < len(w.text); {
			r, size := utf8.DecodeRune(w.text[pos:])
			start, end := w.starts[pos], w.ends[pos+size-1]
			if unicode.IsSpace(r) {
				start = end
			}
			for _, b := range w.text[pos : pos+size] {
				mapped.add(string(byteToUnicode[b]), start, end)
			}
			pos += size
		}
		out = append(out, mapped)
	}
	return out
}

// metaspace replaces spaces by the replacement rune (by default "▁"), with a zero-width origin,
// optionally prepends one, and splits before each of them.
func metaspace(w word, pt *PreTokenizer) []word {
	replacement := cmp.Or(pt.Replacement, "▁")
	var m word
	for pos := 0; pos < len(w.text); {
		r, size := utf8.DecodeRune(w.text[pos:])
		if r == ' ' {
			m.add(replacement, w.ends[pos], w.ends[pos])
		} else {
			m.copyFrom(w, pos, pos+size)
		}
		pos += size
	}
	if len(m.text) == 0 {
		return nil
	}

	prepend := false
	switch prependScheme(pt.PrependScheme, pt.AddPrefixSpace) {
	case "always":
		prepend = true
	case "first":
		prepend = w.starts[0] == 0
	}
	if prepend && !bytes.HasPrefix(m.text, []byte(replacement)) {
		m = m.prepend(replacement)
	}
	if !boolOr(pt.Split, true) {
		return []word{m}
	}

	var out []word
	sep := []byte(replacement)
	start := 0
	for {
		idx := bytes.Index(m.text[start+1:], sep)
		if idx < 0 {
			break
		}
		idx += start + 1
		out = append(out, m.slice(start, idx))
		start = idx
	}
	return append(out, m.slice(start, len(m.text)))
}

// prependScheme returns the Metaspace prepend scheme, from the legacy add_prefix_space if unset.
func prependScheme(scheme string, addPrefixSpace *bool) string {
	if scheme != "" {
		return scheme
	}
	if boolOr(addPrefixSpace, true) {
		return "always"
	}
	return "never"
}

func boolOr(b *bool, defaultValue bool) bool {
	if b == nil {
		return defaultValue
	}
	return *b
}

// byteToUnicode is the GPT-2 mapping of bytes to printable runes, and unicodeToByte its inverse.
var (
	byteToUnicode [256]rune
	unicodeToByte = make(map[rune]byte, 256)
)

func init() {
	n := 0
	for b := range 256 {
		if (b >= '!' && b <= '~') || (b >= 0xA1 && b <= 0xAC) || (b >= 0xAE && b <= 0xFF) {
			byteToUnicode[b] = rune(b)
		} else {
			byteToUnicode[b] = rune(256 + n)
			n++
		}
		unicodeToByte[byteToUnicode[b]] = byte(b)
	}
}
