package hftokenizer

import (
	"math"
	"slices"
	"strings"
	"unicode/utf8"

	"github.com/piitag/piitag/tokenizers/api"
)

// unigramUnkPenalty is how much lower than the lowest piece score an unknown character scores.
const unigramUnkPenalty = 10.0

// wordPiece implements greedy longest-match-first WordPiece tokenization with offsets.
// A word that can't be fully covered becomes a single unknown token.
func (t *Tokenizer) wordPiece(word string) []piece {
	if utf8.RuneCountInString(word) > t.maxChars {
		return t.appendUnknown(nil, word, 0, len(word), false)
	}
	vocab := t.tokenizer.Model.Vocab

	var pieces []piece
	start := 0
	for start < len(word) {
		end := len(word)
		found := false
		for start < end {
			substr := word[start:end]
			if start > 0 {
				substr = t.prefix + substr
			}
			if id, ok := vocab[substr]; ok {
				pieces = append(pieces, piece{id: id, start: start, end: end})
				found = true
				break
			}
			// Step back one whole rune.
			_, size := utf8.DecodeLastRuneInString(word[start:end])
			end -= size
		}
		if !found {
			return t.appendUnknown(nil, word, 0, len(word), false)
		}
		start = end
	}
	return pieces
}

// bpe implements BPE tokenization (used by GPT-2, RoBERTa, Llama): starting from single runes,
// the adjacent pair with the lowest merge rank is merged until no pair can be.
func (t *Tokenizer) bpe(word string) []piece {
	model := &t.tokenizer.Model
	if model.IgnoreMerges {
		if id, ok := model.Vocab[word]; ok {
			return []piece{{id: id, start: 0, end: len(word)}}
		}
	}

	type symbol struct {
		text       string
		start, end int
	}
	var symbols []symbol
	for pos := 0; pos < len(word); {
		_, size := utf8.DecodeRuneInString(word[pos:])
		text := word[pos : pos+size]
		if pos > 0 {
			text = model.ContinuingSubwordPrefix + text
		}
		symbols = append(symbols, symbol{text: text, start: pos, end: pos + size})
		pos += size
	}
	if model.EndOfWordSuffix != "" && len(symbols) > 0 {
		symbols[len(symbols)-1].text += model.EndOfWordSuffix
	}

	for len(symbols) > 1 {
		best, bestRank := -1, 0
		for ii := range len(symbols) - 1 {
			rank, ok := t.mergeRanks[[2]string{symbols[ii].text, symbols[ii+1].text}]
			if ok && (best < 0 || rank < bestRank) {
				best, bestRank = ii, rank
			}
		}
		if best < 0 {
			break // No more merges possible
		}
		a, b := symbols[best], symbols[best+1]
		merged := symbol{
			text:  a.text + strings.TrimPrefix(b.text, model.ContinuingSubwordPrefix),
			start: a.start,
			end:   b.end,
		}
		symbols = slices.Replace(symbols, best, best+2, merged)
	}

	pieces := make([]piece, 0, len(symbols))
	for _, sym := range symbols {
		if id, ok := model.Vocab[sym.text]; ok {
			pieces = append(pieces, piece{id: id, start: sym.start, end: sym.end})
			continue
		}
		pieces = t.appendUnknown(pieces, word, sym.start, sym.end, model.FuseUnk)
	}
	return pieces
}

// unigram implements Unigram tokenization: the segmentation of the word into vocabulary pieces
// with the highest total score (Viterbi). Characters no piece starts with are unknown.
func (t *Tokenizer) unigram(word string) []piece {
	model := &t.tokenizer.Model
	n := len(word)
	best := make([]float64, n+1)
	prev := make([]int, n+1)
	ids := make([]int, n+1)
	for ii := 1; ii <= n; ii++ {
		best[ii] = math.Inf(-1)
	}

	for start := 0; start < n; {
		_, size := utf8.DecodeRuneInString(word[start:])
		hasSingle := false
		for end := start + size; end <= n && end-start <= t.maxPieceLen; {
			if id, ok := model.Vocab[word[start:end]]; ok {
				if score := best[start] + model.Scores[id]; score > best[end] {
					best[end], prev[end], ids[end] = score, start, id
				}
				hasSingle = hasSingle || end == start+size
			}
			if end == n {
				break
			}
			_, next := utf8.DecodeRuneInString(word[end:])
			end += next
		}
		if !hasSingle {
			if score := best[start] + t.unkScore; score > best[start+size] {
				best[start+size], prev[start+size], ids[start+size] = score, start, -1
			}
		}
		start += size
	}

	var path []piece
	for end := n; end > 0; end = prev[end] {
		path = append(path, piece{id: ids[end], start: prev[end], end: end})
	}
	slices.Reverse(path)

	pieces := make([]piece, 0, len(path))
	for _, p := range path {
		if p.id >= 0 {
			pieces = append(pieces, p)
			continue
		}
		pieces = t.appendUnknown(pieces, word, p.start, p.end, true)
	}
	return pieces
}

// wordLevel maps whole words to ids.
func (t *Tokenizer) wordLevel(word string) []piece {
	if id, ok := t.tokenizer.Model.Vocab[word]; ok {
		return []piece{{id: id, start: 0, end: len(word)}}
	}
	return t.appendUnknown(nil, word, 0, len(word), false)
}

// appendUnknown appends the tokens of word[start:end], which isn't in the vocabulary: one
// "<0xHH>" token per byte with byte fallback, else the unknown token, merged into a preceding
// unknown token if fuse is set. Without an unknown token nothing is appended.
func (t *Tokenizer) appendUnknown(pieces []piece, word string, start, end int, fuse bool) []piece {
	model := &t.tokenizer.Model
	if model.ByteFallback {
		byteIDs := make([]int, 0, end-start)
		for pos := start; pos < end; pos++ {
			id, ok := model.Vocab[api.ByteToken(word[pos])]
			if !ok {
				break
			}
			byteIDs = append(byteIDs, id)
		}
		if len(byteIDs) == end-start {
			for ii, id := range byteIDs {
				pieces = append(pieces, piece{id: id, start: start + ii, end: start + ii + 1})
			}
			return pieces
		}
	}
	if t.unkID < 0 {
		return pieces
	}
	if last := len(pieces) - 1; fuse && last >= 0 && pieces[last].id == t.unkID && pieces[last].end == start {
		pieces[last].end = end
		return pieces
	}
	return append(pieces, piece{id: t.unkID, start: start, end: end})
}
