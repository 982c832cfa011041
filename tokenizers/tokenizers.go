// Package tokenizers loads span-tracking tokenizers and produces the model-ready Encoding of a
// text: special tokens added, truncated to a maximum length, and an offset mapping in characters.
package tokenizers

import (
	"context"
	"unicode/utf8"

	"github.com/piitag/piitag/hub"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/piitag/piitag/tokenizers/hftokenizer"
	"github.com/piitag/piitag/tokenizers/sentencepiece"
	"github.com/pkg/errors"
)

// Load returns the tokenizer of the repo: tokenizer.json if present, otherwise tokenizer.model
// (SentencePiece).
func Load(repo *hub.Repo) (api.TokenizerWithSpans, error) {
	return LoadContext(context.Background(), repo)
}

// LoadContext is like Load, but hub requests are cancelled with ctx.
func LoadContext(ctx context.Context, repo *hub.Repo) (api.TokenizerWithSpans, error) {
	if repo.HasFileContext(ctx, "tokenizer.json") {
		return hftokenizer.NewContext(ctx, repo)
	}
	if repo.HasFileContext(ctx, "tokenizer.model") {
		return sentencepiece.NewContext(ctx, repo)
	}
	if err := ctx.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to look up the tokenizer of %s", repo)
	}
	return nil, errors.Errorf("no tokenizer.json or tokenizer.model found in %s", repo)
}

// Encoder encodes texts for token classification. It is immutable and safe for concurrent use.
type Encoder struct {
	tokenizer api.TokenizerWithSpans
	maxLength int
	clsID     int
	sepID     int
	padID     int
}

// NewEncoder creates an Encoder truncating to maxLength tokens (special tokens included).
// A maxLength <= 0 disables truncation.
//
// Sequences are wrapped as "[CLS] ... [SEP]" when the tokenizer has those special tokens.
func NewEncoder(tokenizer api.TokenizerWithSpans, maxLength int) *Encoder {
	e := &Encoder{tokenizer: tokenizer, maxLength: maxLength, clsID: -1, sepID: -1}
	if id, err := tokenizer.SpecialTokenID(api.TokClassification); err == nil {
		e.clsID = id
	}
	if id, err := tokenizer.SpecialTokenID(api.TokSeparator); err == nil {
		e.sepID = id
	}
	if id, err := tokenizer.SpecialTokenID(api.TokPad); err == nil {
		e.padID = id
	}
	return e
}

// MaxLength returns the truncation length.
func (e *Encoder) MaxLength() int { return e.maxLength }

// PadTokenID returns the id used to pad input ids in a batch (0 if the tokenizer has none).
func (e *Encoder) PadTokenID() int { return e.padID }

// Encode tokenizes text, truncates the text tokens so that together with the special tokens they
// fit maxLength, and converts byte spans to character (rune) offsets. Special tokens get the
// zero-width offset {0, 0}.
func (e *Encoder) Encode(text string) api.Encoding {
	res := e.tokenizer.EncodeWithSpans(text)
	numText := min(len(res.IDs), len(res.Spans))

	numSpecial := 0
	if e.clsID >= 0 {
		numSpecial++
	}
	if e.sepID >= 0 {
		numSpecial++
	}
	if e.maxLength > 0 {
		numText = max(0, min(numText, e.maxLength-numSpecial))
	}

	runeIndex := byteToRuneIndex(text)
	enc := api.Encoding{
		IDs:     make([]int, 0, numText+numSpecial),
		Offsets: make([]api.Offset, 0, numText+numSpecial),
	}
	if e.clsID >= 0 {
		enc.IDs = append(enc.IDs, e.clsID)
		enc.Offsets = append(enc.Offsets, api.Offset{})
	}
	for ii := range numText {
		span := res.Spans[ii]
		enc.IDs = append(enc.IDs, res.IDs[ii])
		enc.Offsets = append(enc.Offsets, api.Offset{
			Start: runeIndex[clamp(span.Start, 0, len(text))],
			End:   runeIndex[clamp(span.End, 0, len(text))],
		})
	}
	if e.sepID >= 0 {
		enc.IDs = append(enc.IDs, e.sepID)
		enc.Offsets = append(enc.Offsets, api.Offset{})
	}
	if e.maxLength > 0 && len(enc.IDs) > e.maxLength {
		// maxLength smaller than the special tokens themselves.
		enc.IDs = enc.IDs[:e.maxLength]
		enc.Offsets = enc.Offsets[:e.maxLength]
	}
	enc.AttentionMask = make([]int, len(enc.IDs))
	for ii := range enc.AttentionMask {
		enc.AttentionMask[ii] = 1
	}
	return enc
}

// Encode is a shortcut for NewEncoder(tokenizer, maxLength).Encode(text).
func Encode(tokenizer api.TokenizerWithSpans, text string, maxLength int) api.Encoding {
	return NewEncoder(tokenizer, maxLength).Encode(text)
}

// byteToRuneIndex maps every byte position of text (including len(text)) to the index of the
// rune containing it. Positions inside a multi-byte rune map to that rune.
func byteToRuneIndex(text string) []int {
	index := make([]int, len(text)+1)
	runeIdx := 0
	for pos := 0; pos < len(text); {
		_, size := utf8.DecodeRuneInString(text[pos:])
		for b := pos; b < pos+size; b++ {
			index[b] = runeIdx
		}
		pos += size
		runeIdx++
	}
	index[len(text)] = runeIdx
	return index
}

func clamp(v, lo, hi int) int {
	return max(lo, min(v, hi))
}
