package synth

import (
	"context"
	"path/filepath"
	"regexp"
	"testing"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/internal/testutil"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/tokenizers"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var valuePatterns = map[string]*regexp.Regexp{
	labels.PersonName: regexp.MustCompile(`^[a-z]+ [a-z]+$`),
	labels.Phone:      regexp.MustCompile(`^(\d{10}|[a-z]+( [a-z]+){9})$`),
	labels.Email:      regexp.MustCompile(`^[a-z]+ dot [a-z]+ at [a-z]+ dot com$`),
	labels.CreditCard: regexp.MustCompile(`^\d{4} \d{4} \d{4} \d{4}$`),
	labels.Date:       regexp.MustCompile(`^(0[1-9]|[12]\d|3[01]) (0[1-9]|1[0-2]) 202[0-5]$`),
	labels.City:       regexp.MustCompile(`^[a-z]+$`),
	labels.Location:   regexp.MustCompile(`^[a-z]+( [a-z]+)?$`),
}

func TestGenerate(t *testing.T) {
	records, err := New(1).Generate(300, 1000)
	require.NoError(t, err)
	require.Len(t, records, 300)
	assert.Equal(t, "syn_1000", records[0].ID)
	assert.Equal(t, "syn_1299", records[299].ID)

	for _, rec := range records {
		require.NotEmpty(t, rec.Entities, rec.Text)
		runes := []rune(rec.Text)
		prevEnd := 0
		for _, ent := range rec.Entities {
			require.GreaterOrEqual(t, ent.Start, prevEnd, rec.Text)
			require.LessOrEqual(t, ent.End, len(runes), rec.Text)
			value := string(runes[ent.Start:ent.End])
			assert.Regexp(t, valuePatterns[ent.Label], value, "%s in %q", ent.Label, rec.Text)
			prevEnd = ent.End
		}
	}
}

func TestGenerateIsReproducible(t *testing.T) {
	a, err := New(7).Generate(20, 0)
	require.NoError(t, err)
	b, err := New(7).Generate(20, 0)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestFill(t *testing.T) {
	g := New(3)
	rec, err := g.Fill(Template{Text: "from {1} to {0}", Labels: []string{labels.City, labels.Location}})
	require.NoError(t, err)
	require.Len(t, rec.Entities, 2)
	assert.Equal(t, labels.Location, rec.Entities[0].Label)
	assert.Equal(t, 5, rec.Entities[0].Start)
	assert.Equal(t, labels.City, rec.Entities[1].Label)

	_, err = g.Fill(Template{Text: "bad {0", Labels: []string{labels.City}})
	assert.Error(t, err)
	_, err = g.Fill(Template{Text: "bad {1}", Labels: []string{labels.City}})
	assert.Error(t, err)
	_, err = g.Fill(Template{Text: "bad {0}", Labels: []string{"PASSPORT"}})
	assert.Error(t, err)

	_, err = g.WithTemplates([]Template{{Text: "{0}", Labels: []string{"PASSPORT"}}}).Generate(1, 0)
	assert.Error(t, err)
}

// Encoding a synthetic record and decoding its own labels gives back its entities.
func TestOracleRoundTrip(t *testing.T) {
	records, err := New(42).Generate(200, 0)
	require.NoError(t, err)

	scheme := labels.Default()
	encoder := align.NewEncoder(tokenizers.NewEncoder(testutil.WordPiece(t, "my", "name", "is", "on"), 256), scheme)
	decoder := align.NewDecoder(scheme)
	examples, err := dataset.Encode(context.Background(), encoder, records, 4)
	require.NoError(t, err)

	for ii, ex := range examples {
		spans := decoder.Decode(ex.Text, ex.Offsets, ex.Labels)
		got := make([]align.Entity, len(spans))
		for jj, s := range spans {
			got[jj] = align.Entity{Start: s.Start, End: s.End, Label: s.Label}
			assert.Equal(t, scheme.IsPII(s.Label), s.PII)
		}
		assert.Equal(t, records[ii].Entities, got, ex.Text)
	}
}

func TestWriteSplits(t *testing.T) {
	dir := t.TempDir()
	train, dev := filepath.Join(dir, "data", "train.jsonl"), filepath.Join(dir, "data", "dev.jsonl")
	require.NoError(t, New(5).WriteSplits(train, 10, dev, 4))

	got, err := dataset.Load(train, true)
	require.NoError(t, err)
	assert.Len(t, got, 10)

	got, err = dataset.Load(dev, true)
	require.NoError(t, err)
	require.Len(t, got, 4)
	assert.Equal(t, "syn_0010", got[0].ID)
}
