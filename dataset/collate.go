package dataset

import (
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/tokenizers/api"
)

// Batch holds encoded examples padded to the longest one in the batch.
//
// InputIDs, AttentionMask and Labels are [batchSize][maxLen]. IDs, Texts and Offsets are passed
// through unpadded, in the order of the examples.
type Batch struct {
	InputIDs      [][]int
	AttentionMask [][]int
	Labels        [][]int

	IDs     []string
	Texts   []string
	Offsets [][]api.Offset
}

// Size returns the number of examples in the batch.
func (b *Batch) Size() int { return len(b.InputIDs) }

// MaxLen returns the padded sequence length, 0 for an empty batch.
func (b *Batch) MaxLen() int {
	if len(b.InputIDs) == 0 {
		return 0
	}
	return len(b.InputIDs[0])
}

// Collate right-pads the examples to the length of the longest one: input ids with padTokenID,
// the attention mask with 0 and labels with labelPadID.
//
// Callers are expected to pass at least one example; an empty slice returns an empty Batch.
func Collate(examples []*align.EncodedExample, padTokenID, labelPadID int) *Batch {
	maxLen := 0
	for _, ex := range examples {
		maxLen = max(maxLen, len(ex.InputIDs))
	}
	b := &Batch{
		InputIDs:      make([][]int, len(examples)),
		AttentionMask: make([][]int, len(examples)),
		Labels:        make([][]int, len(examples)),
		IDs:           make([]string, len(examples)),
		Texts:         make([]string, len(examples)),
		Offsets:       make([][]api.Offset, len(examples)),
	}
	for ii, ex := range examples {
		b.InputIDs[ii] = pad(ex.InputIDs, maxLen, padTokenID)
		b.AttentionMask[ii] = pad(ex.AttentionMask, maxLen, 0)
		b.Labels[ii] = pad(ex.Labels, maxLen, labelPadID)
		b.IDs[ii] = ex.ID
		b.Texts[ii] = ex.Text
		b.Offsets[ii] = ex.Offsets
	}
	return b
}

// CollateDefault collates with labels padded with align.IgnoreIndex.
func CollateDefault(examples []*align.EncodedExample, padTokenID int) *Batch {
	return Collate(examples, padTokenID, align.IgnoreIndex)
}

// Batches splits examples into consecutive batches of at most size examples.
// A size <= 0 returns all examples in a single batch.
func Batches[T any](examples []T, size int) [][]T {
	if len(examples) == 0 {
		return nil
	}
	if size <= 0 {
		size = len(examples)
	}
	batches := make([][]T, 0, (len(examples)+size-1)/size)
	for start := 0; start < len(examples); start += size {
		end := min(start+size, len(examples))
		batches = append(batches, examples[start:end:end])
	}
	return batches
}

func pad(values []int, n, value int) []int {
	out := make([]int, n)
	copied := copy(out, values)
	for ii := copied; ii < n; ii++ {
		out[ii] = value
	}
	return out
}
