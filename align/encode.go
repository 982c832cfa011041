package align

import (
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/tokenizers/api"
)

// TextEncoder tokenizes a text into a model-ready encoding: special tokens included, truncated
// to the model's maximum length, offsets in characters. It is implemented by tokenizers.Encoder.
type TextEncoder interface {
	Encode(text string) api.Encoding
}

// Encoder encodes annotated texts into training examples.
type Encoder struct {
	tokenizer TextEncoder
	scheme    *labels.Scheme
}

// NewEncoder creates an Encoder using the given tokenizer and label scheme.
func NewEncoder(tokenizer TextEncoder, scheme *labels.Scheme) *Encoder {
	return &Encoder{tokenizer: tokenizer, scheme: scheme}
}

// Scheme returns the label scheme of the encoder.
func (e *Encoder) Scheme() *labels.Scheme { return e.scheme }

// Encode tokenizes text and labels each token from the entities.
// It never fails: malformed entities are dropped and inconsistent tokenizer output is reconciled.
func (e *Encoder) Encode(id, text string, entities []Entity) *EncodedExample {
	example := Align(text, entities, e.tokenizer.Encode(text), e.scheme)
	example.ID = id
	return example
}

// Align labels the tokens of enc from the entities annotated on text.
//
// Each token takes the first B- tag among the characters it covers, or failing that the first
// I- tag, or O. Zero-width tokens get IgnoreIndex. If the tokenizer returned offsets or mask of a
// different length than its ids, they are truncated or padded to the number of ids: offsets with
// {0, 0} (so those positions are ignored) and the mask with 1.
func Align(text string, entities []Entity, enc api.Encoding, scheme *labels.Scheme) *EncodedExample {
	charTags := CharTags(text, entities)
	numTokens := len(enc.IDs)

	tags := make([]string, 0, numTokens)
	for _, offset := range enc.Offsets {
		tags = append(tags, offsetTag(charTags, offset))
	}
	tags = reconcile(tags, numTokens, labels.Outside)
	offsets := reconcile(enc.Offsets, numTokens, api.Offset{})
	mask := reconcile(enc.AttentionMask, numTokens, 1)

	labelIDs := make([]int, numTokens)
	for ii, tag := range tags {
		if offsets[ii].IsZeroWidth() {
			labelIDs[ii] = IgnoreIndex
			continue
		}
		labelIDs[ii] = scheme.ID(tag)
	}
	return &EncodedExample{
		Text:          text,
		InputIDs:      append([]int(nil), enc.IDs...),
		AttentionMask: mask,
		Labels:        labelIDs,
		Offsets:       offsets,
	}
}

// offsetTag returns the BIO tag of the token covering offset.
func offsetTag(charTags []string, offset api.Offset) string {
	if offset.IsZeroWidth() {
		return labels.Outside
	}
	start := max(offset.Start, 0)
	if start >= len(charTags) {
		return labels.Outside
	}
	end := min(offset.End, len(charTags))
	if end <= start {
		return labels.Outside
	}
	return tokenTag(charTags[start:end])
}

// reconcile returns a copy of values truncated or right-padded with pad to length n.
func reconcile[T any](values []T, n int, pad T) []T {
	out := make([]T, n)
	copied := copy(out, values)
	for ii := copied; ii < n; ii++ {
		out[ii] = pad
	}
	return out
}
