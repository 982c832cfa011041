package dataset

import (
	"bytes"
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/internal/testutil"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/tokenizers"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleJSONL = `{"id": "a", "text": "call ramesh sharma now", "entities": [{"start": 5, "end": 18, "label": "PERSON_NAME"}]}

{"text": "no id here", "entities": []}
{"id": "c", "text": "just text"}
`

func TestRead(t *testing.T) {
	records, err := Read(strings.NewReader(sampleJSONL), true)
	require.NoError(t, err)
	require.Len(t, records, 3)

	assert.Equal(t, "a", records[0].ID)
	assert.Equal(t, []align.Entity{{Start: 5, End: 18, Label: "PERSON_NAME"}}, records[0].Entities)

	_, err = uuid.Parse(records[1].ID)
	assert.NoError(t, err, "missing id replaced by a UUID")
	assert.Empty(t, records[1].Entities)

	assert.Equal(t, "c", records[2].ID)
	assert.Nil(t, records[2].Entities)
}

func TestReadInvalidLines(t *testing.T) {
	input := `{"id": "ok", "text": "fine"}
{"id": "bad json"
{"id": "no text"}
{"id": "bad entity", "text": "x", "entities": [{"start": "0", "end": 1, "label": "A"}]}
{"id": "ok2", "text": "also fine"}
`
	_, err := Read(strings.NewReader(input), true)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")

	records, err := Read(strings.NewReader(input), false)
	require.NoError(t, err)
	require.Len(t, records, 2)
	assert.Equal(t, "ok", records[0].ID)
	assert.Equal(t, "ok2", records[1].ID)
}

func TestSaveAndLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "data", "train.jsonl")
	records := []Record{
		{ID: "x", Text: "São Paulo <b>", Entities: []align.Entity{{Start: 0, End: 9, Label: "CITY"}}},
		{ID: "y", Text: "nothing"},
	}
	require.NoError(t, Save(path, records))

	got, err := Load(path, true)
	require.NoError(t, err)
	require.Len(t, got, 2)
	assert.Equal(t, records[0], got[0])
	assert.Equal(t, "y", got[1].ID)
	assert.Empty(t, got[1].Entities)

	var buf bytes.Buffer
	require.NoError(t, Write(&buf, records[:1]))
	assert.Contains(t, buf.String(), "<b>", "HTML is not escaped")

	_, err = Load(filepath.Join(t.TempDir(), "missing.jsonl"), false)
	assert.Error(t, err)
}

func newEncoder(t *testing.T) *align.Encoder {
	tok := testutil.WordPiece(t, "call", "ramesh", "sharma", "now")
	return align.NewEncoder(tokenizers.NewEncoder(tok, 16), labels.Default())
}

func TestEncodeKeepsOrder(t *testing.T) {
	var records []Record
	for _, text := range []string{"call", "call ramesh", "call ramesh sharma", "call ramesh sharma now", "now"} {
		records = append(records, Record{ID: text, Text: text})
	}
	examples, err := Encode(context.Background(), newEncoder(t), records, 2)
	require.NoError(t, err)
	require.Len(t, examples, len(records))
	for ii, ex := range examples {
		assert.Equal(t, records[ii].ID, ex.ID)
		assert.Equal(t, len(strings.Fields(records[ii].Text))+2, ex.Len())
	}
}

func TestEncodeCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := Encode(ctx, newEncoder(t), []Record{{ID: "a", Text: "call"}}, 1)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestCollate(t *testing.T) {
	examples := []*align.EncodedExample{
		{ID: "a", Text: "x y", InputIDs: []int{2, 5, 6, 3}, AttentionMask: []int{1, 1, 1, 1},
			Labels: []int{-100, 1, 2, -100}, Offsets: []api.Offset{{}, {0, 1}, {2, 3}, {}}},
		{ID: "b", Text: "z", InputIDs: []int{2, 7, 3}, AttentionMask: []int{1, 1, 1},
			Labels: []int{-100, 0, -100}, Offsets: []api.Offset{{}, {0, 1}, {}}},
	}
	b := Collate(examples, 0, -1)
	assert.Equal(t, 2, b.Size())
	assert.Equal(t, 4, b.MaxLen())
	assert.Equal(t, [][]int{{2, 5, 6, 3}, {2, 7, 3, 0}}, b.InputIDs)
	assert.Equal(t, [][]int{{1, 1, 1, 1}, {1, 1, 1, 0}}, b.AttentionMask)
	assert.Equal(t, [][]int{{-100, 1, 2, -100}, {-100, 0, -100, -1}}, b.Labels)
	assert.Equal(t, []string{"a", "b"}, b.IDs)
	assert.Equal(t, []string{"x y", "z"}, b.Texts)
	assert.Len(t, b.Offsets[1], 3, "offsets are not padded")

	b = CollateDefault(examples, 9)
	assert.Equal(t, align.IgnoreIndex, b.Labels[1][3])
	assert.Equal(t, 9, b.InputIDs[1][3])

	// Inputs are not modified.
	assert.Len(t, examples[1].InputIDs, 3)

	empty := Collate(nil, 0, align.IgnoreIndex)
	assert.Equal(t, 0, empty.Size())
	assert.Equal(t, 0, empty.MaxLen())
}

func TestBatches(t *testing.T) {
	items := []int{1, 2, 3, 4, 5}
	assert.Equal(t, [][]int{{1, 2}, {3, 4}, {5}}, Batches(items, 2))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Batches(items, 0))
	assert.Equal(t, [][]int{{1, 2, 3, 4, 5}}, Batches(items, 10))
	assert.Nil(t, Batches([]int{}, 3))

	// Appending to a batch does not overwrite the next one.
	batches := Batches(items, 2)
	_ = append(batches[0], 99)
	assert.Equal(t, 3, batches[1][0])
}

func TestParquetRoundTrip(t *testing.T) {
	records := []Record{
		{ID: "a", Text: "call ramesh sharma now", Entities: []align.Entity{{Start: 5, End: 18, Label: labels.PersonName}}},
		{ID: "b", Text: "now"},
	}
	examples, err := Encode(context.Background(), newEncoder(t), records, 0)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "cache", "train.parquet")
	require.NoError(t, WriteParquet(path, examples))
	got, err := ReadParquet(path)
	require.NoError(t, err)
	assert.Equal(t, examples, got)

	_, err = ReadParquet(filepath.Join(t.TempDir(), "missing.parquet"))
	assert.Error(t, err)
}
