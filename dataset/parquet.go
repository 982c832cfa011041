package dataset

import (
	"github.com/parquet-go/parquet-go"
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/internal/files"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// exampleRow is the Parquet row of one encoded example.
type exampleRow struct {
	ID            string  `parquet:"id"`
	Text          string  `parquet:"text"`
	InputIDs      []int32 `parquet:"input_ids"`
	AttentionMask []int32 `parquet:"attention_mask"`
	Labels        []int32 `parquet:"labels"`
	OffsetStarts  []int32 `parquet:"offset_starts"`
	OffsetEnds    []int32 `parquet:"offset_ends"`
}

// WriteParquet caches encoded examples in a Parquet file, one row per example.
func WriteParquet(path string, examples []*align.EncodedExample) error {
	if err := files.EnsureParentDir(path); err != nil {
		return err
	}
	rows := make([]exampleRow, len(examples))
	for ii, ex := range examples {
		row := exampleRow{
			ID:            ex.ID,
			Text:          ex.Text,
			InputIDs:      toInt32(ex.InputIDs),
			AttentionMask: toInt32(ex.AttentionMask),
			Labels:        toInt32(ex.Labels),
			OffsetStarts:  make([]int32, len(ex.Offsets)),
			OffsetEnds:    make([]int32, len(ex.Offsets)),
		}
		for jj, offset := range ex.Offsets {
			row.OffsetStarts[jj] = int32(offset.Start)
			row.OffsetEnds[jj] = int32(offset.End)
		}
		rows[ii] = row
	}
	if err := parquet.WriteFile(path, rows); err != nil {
		return errors.Wrapf(err, "failed to write encoded examples to %q", path)
	}
	klog.V(1).Infof("wrote %d encoded examples to %q", len(rows), path)
	return nil
}

// ReadParquet reads encoded examples written by WriteParquet.
func ReadParquet(path string) ([]*align.EncodedExample, error) {
	rows, err := parquet.ReadFile[exampleRow](path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read encoded examples from %q", path)
	}
	examples := make([]*align.EncodedExample, len(rows))
	for ii, row := range rows {
		if len(row.OffsetStarts) != len(row.OffsetEnds) {
			return nil, errors.Errorf("row %d of %q has %d offset starts and %d offset ends",
				ii, path, len(row.OffsetStarts), len(row.OffsetEnds))
		}
		ex := &align.EncodedExample{
			ID:            row.ID,
			Text:          row.Text,
			InputIDs:      fromInt32(row.InputIDs),
			AttentionMask: fromInt32(row.AttentionMask),
			Labels:        fromInt32(row.Labels),
			Offsets:       make([]api.Offset, len(row.OffsetStarts)),
		}
		for jj := range row.OffsetStarts {
			ex.Offsets[jj] = api.Offset{Start: int(row.OffsetStarts[jj]), End: int(row.OffsetEnds[jj])}
		}
		examples[ii] = ex
	}
	return examples, nil
}

func toInt32(values []int) []int32 {
	out := make([]int32, len(values))
	for ii, v := range values {
		out[ii] = int32(v)
	}
	return out
}

func fromInt32(values []int32) []int {
	out := make([]int, len(values))
	for ii, v := range values {
		out[ii] = int(v)
	}
	return out
}
