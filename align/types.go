// Package align converts between character-level entity spans and per-token BIO labels.
//
// The Encoder turns annotated entities into the label sequence a token classifier trains on,
// aligned to a tokenizer's offset mapping. The Decoder turns predicted label ids back into
// character spans. Both are pure functions of their inputs and safe for concurrent use.
//
// All character offsets are Unicode code point (rune) indices into the text.
package align

import "github.com/piitag/piitag/tokenizers/api"

// IgnoreIndex is the label of positions excluded from the loss: special tokens and padding.
const IgnoreIndex = -100

// Entity is an annotated entity: the half-open character range [Start, End) of the text.
type Entity struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
}

// EncodedExample is one text encoded for token classification.
// InputIDs, AttentionMask, Labels and Offsets always have the same length.
type EncodedExample struct {
	ID            string
	Text          string
	InputIDs      []int
	AttentionMask []int
	// Labels holds a label id per token, or IgnoreIndex for zero-width (special) tokens.
	Labels  []int
	Offsets []api.Offset
}

// Len returns the number of tokens.
func (e *EncodedExample) Len() int { return len(e.InputIDs) }

// Span is a decoded entity: the half-open character range [Start, End) of the text, never empty
// and with no leading or trailing whitespace.
type Span struct {
	Start int    `json:"start"`
	End   int    `json:"end"`
	Label string `json:"label"`
	PII   bool   `json:"pii"`
}
