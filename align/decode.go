package align

import (
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/tokenizers/api"
)

// Decoder converts predicted label ids back into character spans.
type Decoder struct {
	scheme *labels.Scheme
}

// NewDecoder creates a Decoder for the label scheme the predictions were made with.
func NewDecoder(scheme *labels.Scheme) *Decoder {
	return &Decoder{scheme: scheme}
}

// Scheme returns the label scheme of the decoder.
func (d *Decoder) Scheme() *labels.Scheme { return d.scheme }

// openSpan is the span being built by Decode.
type openSpan struct {
	label      string
	start, end int
}

// Decode reconstructs the entity spans of text from the label id predicted for each token, in a
// single pass over the tokens:
//
//   - Tokens with offset {0, 0} are skipped.
//   - O, or any tag other than B-/I- of the open span's type, closes the open span.
//   - B-T opens a new span.
//   - I-T extends the open span of type T; with no such span it opens a new one.
//
// Spans are then trimmed of surrounding whitespace and dropped if empty. They are returned in
// text order, with PII set from the scheme. offsets and labelIDs of different lengths are
// zipped to the shorter one.
func (d *Decoder) Decode(text string, offsets []api.Offset, labelIDs []int) []Span {
	var (
		raw     []openSpan
		current *openSpan
	)
	closeCurrent := func() {
		if current != nil {
			raw = append(raw, *current)
			current = nil
		}
	}

	numTokens := min(len(offsets), len(labelIDs))
	for ii := range numTokens {
		offset := offsets[ii]
		if offset.IsSpecial() {
			continue
		}
		tag := d.scheme.Tag(labelIDs[ii])
		if tag == labels.Outside {
			closeCurrent()
			continue
		}
		prefix, typ := labels.Split(tag)
		if current != nil && typ != current.label {
			closeCurrent()
		}
		switch {
		case prefix == labels.Inside && current != nil:
			current.end = offset.End
		default:
			// B-, or an I- with no open span of its type.
			closeCurrent()
			current = &openSpan{label: typ, start: offset.Start, end: offset.End}
		}
	}
	closeCurrent()

	runes := []rune(text)
	spans := make([]Span, 0, len(raw))
	for _, s := range raw {
		if s.start >= s.end {
			continue
		}
		span, ok := TrimSpan(runes, Span{Start: s.start, End: s.end, Label: s.label})
		if !ok {
			continue
		}
		span.PII = d.scheme.IsPII(span.Label)
		spans = append(spans, span)
	}
	return spans
}
