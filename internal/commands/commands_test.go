package commands

import (
	"bytes"
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/eval"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/predict"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func run(t *testing.T, args ...string) string {
	t.Helper()
	var out bytes.Buffer
	root := NewRootCommand()
	root.SetOut(&out)
	root.SetErr(&out)
	root.SetArgs(args)
	require.NoError(t, root.ExecuteContext(context.Background()), out.String())
	return out.String()
}

func TestGenerateGoldEval(t *testing.T) {
	dir := t.TempDir()
	train := filepath.Join(dir, "train.jsonl")
	dev := filepath.Join(dir, "dev.jsonl")
	predPath := filepath.Join(dir, "pred.json")

	run(t, "generate", "--train", train, "--dev", dev, "--num_train", "4", "--num_dev", "3", "--seed", "7")
	records, err := dataset.Load(dev, true)
	require.NoError(t, err)
	require.Len(t, records, 3)
	assert.Equal(t, "syn_0004", records[0].ID)

	out := run(t, "gold", "--input", dev)
	for _, rec := range records {
		assert.Contains(t, out, rec.ID)
	}

	// Predictions identical to the gold entities score perfectly.
	scheme := labels.Default()
	preds := predict.Predictions{}
	var numGold int
	for _, rec := range records {
		spans := []align.Span{}
		for _, ent := range rec.Entities {
			spans = append(spans, align.Span{Start: ent.Start, End: ent.End, Label: ent.Label, PII: scheme.IsPII(ent.Label)})
		}
		numGold += len(spans)
		preds[rec.ID] = spans
	}
	require.NoError(t, predict.WritePredictions(predPath, preds))

	out = run(t, "eval", "--model_dir", dir, "--input", dev, "--output", predPath, "--json")
	var metrics eval.Metrics
	require.NoError(t, json.Unmarshal([]byte(out), &metrics))
	assert.Equal(t, eval.Counts{TP: numGold}, metrics.Micro)

	out = run(t, "eval", "--model_dir", dir, "--input", dev, "--output", predPath)
	assert.Contains(t, out, "PII")

	out = run(t, "inspect", "--input", dev, "--output", predPath)
	assert.Contains(t, out, records[0].ID)
}

func TestInvalidConfig(t *testing.T) {
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"gold", "--batch_size", "0"})
	assert.ErrorContains(t, root.ExecuteContext(context.Background()), "batch_size")
}

func TestPredictMissingModel(t *testing.T) {
	dir := t.TempDir()
	root := NewRootCommand()
	root.SetOut(&bytes.Buffer{})
	root.SetArgs([]string{"predict", "--model_dir", dir, "--input", filepath.Join(dir, "dev.jsonl")})
	assert.Error(t, root.ExecuteContext(context.Background()))
}
