// Package sentencepiece implements api.TokenizerWithSpans on top of a SentencePiece model
// ("tokenizer.model"), as used by XLM-RoBERTa and DeBERTa-v3 token classifiers.
package sentencepiece

import (
	"context"
	"strings"
	"unicode/utf8"

	esentencepiece "github.com/eliben/go-sentencepiece"
	"github.com/piitag/piitag/hub"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/pkg/errors"
)

// metaspace is the U+2581 character SentencePiece uses in place of a space.
const metaspace = "▁"

// New creates a SentencePiece tokenizer based on the "tokenizer.model" file of the repo.
func New(repo *hub.Repo) (*Tokenizer, error) {
	return NewContext(context.Background(), repo)
}

// NewContext is like New, but hub requests are cancelled with ctx.
func NewContext(ctx context.Context, repo *hub.Repo) (*Tokenizer, error) {
	if !repo.HasFileContext(ctx, "tokenizer.model") {
		return nil, errors.Errorf("\"tokenizer.model\" file not found in repo %s", repo)
	}
	tokenizerFile, err := repo.DownloadFileContext(ctx, "tokenizer.model")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.model file")
	}
	return NewFromFile(tokenizerFile)
}

// NewFromFile creates a SentencePiece tokenizer from a local model proto file.
func NewFromFile(path string) (*Tokenizer, error) {
	proc, err := esentencepiece.NewProcessorFromPath(path)
	if err != nil {
		return nil, errors.Wrapf(err, "can't create sentencepiece tokenizer from %q", path)
	}
	return &Tokenizer{
		Processor: proc,
		Info:      proc.ModelInfo(),
	}, nil
}

// Tokenizer implements api.TokenizerWithSpans based on SentencePiece tokenizer by Google.
type Tokenizer struct {
	*esentencepiece.Processor
	Info *esentencepiece.ModelInfo
}

// Compile time assert that sentencepiece.Tokenizer implements api.TokenizerWithSpans interface.
var _ api.TokenizerWithSpans = &Tokenizer{}

// Encode returns the text encoded into a sequence of ids.
func (p *Tokenizer) Encode(text string) []int {
	tokens := p.Processor.Encode(text)
	ids := make([]int, len(tokens))
	for ii, tok := range tokens {
		ids[ii] = tok.ID
	}
	return ids
}

// EncodeWithSpans returns the text encoded into a sequence of ids along with their byte spans.
//
// The processor only replaces spaces by metaspaces, so every piece is consumed in order from the
// normalized text. Leading metaspaces are left out of a span: a piece that is only metaspaces gets
// a zero-width span. Byte-fallback pieces ("<0xC3>") stand for one byte each, and all the pieces
// of a decomposed character get the span of that character.
func (p *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	tokens := p.Processor.Encode(text)
	result := api.EncodingResult{
		IDs:   make([]int, len(tokens)),
		Spans: make([]api.TokenSpan, len(tokens)),
	}
	norm := normalize(text)
	pos := 0
	for ii, tok := range tokens {
		result.IDs[ii] = tok.ID
		if tok.Text != "" && strings.HasPrefix(norm.text[pos:], tok.Text) {
			start, end := pos, pos+len(tok.Text)
			pos = end
			for start < end && norm.isMetaspace(start) {
				start += len(metaspace)
			}
			result.Spans[ii] = norm.span(start, end)
			continue
		}
		if _, isByte := api.ParseByteToken(tok.Text); isByte && pos < len(norm.text) {
			result.Spans[ii] = norm.runeSpan(pos)
			pos++
			continue
		}
		result.Spans[ii] = norm.span(pos, pos)
	}
	return result
}

// normalized is the text as the processor sees it, with the original byte offset of each byte.
type normalized struct {
	original string
	text     string
	// offsets has one entry per byte of text, plus one for its end.
	offsets []int
}

func normalize(text string) normalized {
	n := normalized{original: text}
	var sb strings.Builder
	for ii := 0; ii < len(text); ii++ {
		if text[ii] == ' ' {
			sb.WriteString(metaspace)
			for range len(metaspace) {
				n.offsets = append(n.offsets, ii)
			}
			continue
		}
		sb.WriteByte(text[ii])
		n.offsets = append(n.offsets, ii)
	}
	n.offsets = append(n.offsets, len(text))
	n.text = sb.String()
	return n
}

// isMetaspace reports whether a metaspace standing for a space starts at pos.
func (n normalized) isMetaspace(pos int) bool {
	return strings.HasPrefix(n.text[pos:], metaspace) && n.original[n.offsets[pos]] == ' '
}

// span converts the normalized byte range [start, end) to the original text.
func (n normalized) span(start, end int) api.TokenSpan {
	if start >= end {
		return api.TokenSpan{Start: n.offsets[start], End: n.offsets[start]}
	}
	return api.TokenSpan{Start: n.offsets[start], End: n.offsets[end-1] + 1}
}

// runeSpan returns the span of the character holding the normalized byte pos.
func (n normalized) runeSpan(pos int) api.TokenSpan {
	start := pos
	for start > 0 && !utf8.RuneStart(n.text[start]) {
		start--
	}
	_, size := utf8.DecodeRuneInString(n.text[start:])
	return n.span(start, start+size)
}

// Decode returns the text from a sequence of ids.
func (p *Tokenizer) Decode(ids []int) string {
	return p.Processor.Decode(ids)
}

// SpecialTokenID returns the token for the given symbol, or an error if not known.
//
// SentencePiece models have no dedicated classification/separator pieces; the sentence
// boundary pieces play that role (as in XLM-RoBERTa's "<s> ... </s>").
func (p *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	id := -1
	switch token {
	case api.TokUnknown:
		id = p.Info.UnknownID
	case api.TokPad:
		id = p.Info.PadID
	case api.TokBeginningOfSentence, api.TokClassification:
		id = p.Info.BeginningOfSentenceID
	case api.TokEndOfSentence, api.TokSeparator:
		id = p.Info.EndOfSentenceID
	}
	if id < 0 {
		return 0, errors.Errorf("unknown special token: %s (%d)", token, int(token))
	}
	return id, nil
}
