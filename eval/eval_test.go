package eval

import (
	"strings"
	"testing"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/predict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var goldRecords = []dataset.Record{
	{ID: "a", Text: "call ramesh sharma now", Entities: []align.Entity{{Start: 5, End: 18, Label: labels.PersonName}}},
	{ID: "b", Text: "i live in pune near mg road", Entities: []align.Entity{
		{Start: 10, End: 14, Label: labels.City},
		{Start: 20, End: 27, Label: labels.Location},
	}},
	{ID: "c", Text: "on 12 03 2024", Entities: []align.Entity{{Start: 3, End: 13, Label: labels.Date}}},
}

var predictions = predict.Predictions{
	"a": {{Start: 5, End: 18, Label: labels.PersonName, PII: true}},
	"b": {
		{Start: 10, End: 14, Label: labels.City},
		{Start: 20, End: 22, Label: labels.Location},
		{Start: 23, End: 27, Label: labels.Date, PII: true},
	},
	"z": {{Start: 0, End: 1, Label: labels.Phone, PII: true}},
}

func TestScore(t *testing.T) {
	m := Score(goldRecords, predictions, labels.Default())

	assert.Equal(t, Counts{TP: 1}, m.PerLabel[labels.PersonName])
	assert.Equal(t, Counts{TP: 1}, m.PerLabel[labels.City])
	assert.Equal(t, Counts{FP: 1, FN: 1}, m.PerLabel[labels.Location])
	assert.Equal(t, Counts{FP: 1, FN: 1}, m.PerLabel[labels.Date])
	assert.NotContains(t, m.PerLabel, labels.Phone, "predictions of unknown ids are ignored")
	assert.Equal(t, []string{labels.City, labels.Date, labels.Location, labels.PersonName}, m.Labels())

	assert.Equal(t, Counts{TP: 2, FP: 2, FN: 2}, m.Micro)
	assert.InDelta(t, 0.5, m.Micro.Precision(), 1e-9)
	assert.InDelta(t, 0.5, m.Micro.Recall(), 1e-9)
	assert.InDelta(t, 0.5, m.Micro.F1(), 1e-9)

	// PII: name found; date in "b" is a false positive; date in "c" was missed.
	assert.Equal(t, Counts{TP: 1, FP: 1, FN: 1}, m.PII)
}

func TestCountsZero(t *testing.T) {
	var c Counts
	assert.Zero(t, c.Precision())
	assert.Zero(t, c.Recall())
	assert.Zero(t, c.F1())
	assert.Equal(t, 1.0, Counts{TP: 3}.F1())
}

func TestRenderMetrics(t *testing.T) {
	out := RenderMetrics(Score(goldRecords, predictions, labels.Default()))
	for _, want := range []string{"LABEL", "PRECISION", labels.PersonName, "micro", PII, "0.500", "1.000"} {
		assert.Contains(t, out, want)
	}
}

func TestGoldReport(t *testing.T) {
	var b strings.Builder
	require.NoError(t, GoldReport(&b, goldRecords[:2]))
	out := b.String()
	assert.Contains(t, out, "call ramesh sharma now")
	assert.Contains(t, out, `| 5-18 | "ramesh sharma"`)
	assert.Contains(t, out, `| 20-27 | "mg road"`)
	assert.NotContains(t, out, "2024")
}

func TestCompareReport(t *testing.T) {
	var b strings.Builder
	require.NoError(t, CompareReport(&b, goldRecords, predictions))
	out := b.String()

	assert.Less(t, strings.Index(out, "ramesh"), strings.Index(out, "pune"), "ids in order")
	assert.Contains(t, out, `| 20-22 | "mg"`)
	assert.Contains(t, out, `| 23-27 | "road"`)
	assert.NotContains(t, out, "2024", "records without predictions are skipped")
	assert.NotContains(t, out, "| 0-1 |", "predictions without gold are skipped")
}

func TestExtract(t *testing.T) {
	text := []rune("São Paulo")
	assert.Equal(t, "São", extract(text, 0, 3))
	assert.Equal(t, "Paulo", extract(text, 4, 99))
	assert.Equal(t, "", extract(text, 7, 2))
	assert.Equal(t, "", extract(text, -5, -1))
}
