// Package api defines the Tokenizer API.
// It's kept apart from the `tokenizers` package so that tokenizer implementations can
// import it without a cyclic dependency, while users import `tokenizers` to get the
// default loaders and the classification encoding.
package api

import (
	"fmt"
	"strconv"
	"strings"
)

// TokenSpan represents the byte span of a token in the original text.
// Start and End are byte offsets (not rune offsets), suitable for slicing
// Go strings directly: originalText[span.Start:span.End].
type TokenSpan struct {
	Start int // start byte position (inclusive)
	End   int // end byte position (exclusive)
}

// EncodingResult contains tokens with their byte spans in the original text.
type EncodingResult struct {
	IDs   []int       // token IDs
	Spans []TokenSpan // byte spans for each token (use originalText[span.Start:span.End] to extract)
}

// Tokenizer interface allows one convert text to "tokens" (integer ids) and back.
//
// It also allows mapping of special tokens: tokens with a common semantic (like padding) but that
// may map to different ids (int) for different tokenizers.
type Tokenizer interface {
	Encode(text string) []int
	Decode([]int) string

	// SpecialTokenID returns ID for given special token if registered, or an error if not.
	SpecialTokenID(token SpecialToken) (int, error)
}

// TokenizerWithSpans extends Tokenizer with span tracking capability.
// Token classification (PII tagging) needs it to map token labels back to positions in the
// original text.
type TokenizerWithSpans interface {
	Tokenizer
	// EncodeWithSpans returns tokens along with their byte spans in the original text.
	// No special tokens are added.
	EncodeWithSpans(text string) EncodingResult
}

// Offset is the character range a token covers in the source text, in Unicode code points.
//
// Non-text tokens (classification, separator, padding) report the zero-width Offset{0, 0}.
type Offset struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// IsZeroWidth reports whether the offset covers no characters: special tokens, by convention.
func (o Offset) IsZeroWidth() bool { return o.Start == o.End }

// IsSpecial reports whether the offset is exactly {0, 0}, the offset tokenizers give non-text tokens.
func (o Offset) IsSpecial() bool { return o.Start == 0 && o.End == 0 }

// Encoding is the model-ready encoding of one text: token ids with special tokens added and
// truncated to a maximum length, the attention mask and the character offset of each token.
// All three slices have the same length.
type Encoding struct {
	IDs           []int
	AttentionMask []int
	Offsets       []Offset
}

// Len returns the number of tokens.
func (e Encoding) Len() int { return len(e.IDs) }

// SpecialToken is an enum of commonly used special tokens.
type SpecialToken int

//go:generate enumer -type=SpecialToken -trimprefix=Tok -transform=snake -values -text -json -yaml api.go

const (
	TokBeginningOfSentence SpecialToken = iota
	TokEndOfSentence
	TokUnknown
	TokPad
	TokMask
	TokClassification
	TokSeparator
	TokSpecialTokensCount
)

// ByteToken returns the "<0xHH>" piece byte-fallback vocabularies use for b.
func ByteToken(b byte) string {
	return fmt.Sprintf("<0x%02X>", b)
}

// ParseByteToken returns the byte a "<0xHH>" byte-fallback piece stands for.
func ParseByteToken(piece string) (byte, bool) {
	if len(piece) != 6 || !strings.HasPrefix(piece, "<0x") || piece[5] != '>' {
		return 0, false
	}
	v, err := strconv.ParseUint(piece[3:5], 16, 8)
	if err != nil {
		return 0, false
	}
	return byte(v), true
}
