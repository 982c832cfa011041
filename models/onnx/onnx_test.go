package onnx

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/piitag/piitag/hub"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBatchShape(t *testing.T) {
	b, s, err := batchShape([][]int{{1, 2, 3}, {4, 5, 0}}, [][]int{{1, 1, 1}, {1, 1, 0}})
	require.NoError(t, err)
	assert.Equal(t, 2, b)
	assert.Equal(t, 3, s)

	_, _, err = batchShape([][]int{{1, 2, 3}, {4, 5}}, [][]int{{1, 1, 1}, {1, 1}})
	assert.Error(t, err, "ragged batch")

	_, _, err = batchShape([][]int{{1}}, nil)
	assert.Error(t, err)

	b, s, err = batchShape(nil, nil)
	require.NoError(t, err)
	assert.Zero(t, b)
	assert.Zero(t, s)
}

func TestFlattenUnflatten(t *testing.T) {
	assert.Equal(t, []int64{1, 2, 3, 4}, flatten([][]int{{1, 2}, {3, 4}}))

	data := []float32{0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10, 11}
	got := unflatten(data, 2, 2, 3)
	assert.Equal(t, [][][]float32{
		{{0, 1, 2}, {3, 4, 5}},
		{{6, 7, 8}, {9, 10, 11}},
	}, got)
	got[0][0][0] = 42
	assert.Equal(t, float32(0), data[0], "logits are copied")
}

func TestLogitsValidatesBatch(t *testing.T) {
	s := &Session{numLabels: 3}
	_, err := s.Logits(context.Background(), [][]int{{1, 2}, {3}}, [][]int{{1, 1}, {1}})
	assert.Error(t, err)

	out, err := s.Logits(context.Background(), nil, nil)
	require.NoError(t, err)
	assert.Empty(t, out)

	require.NoError(t, s.Close())
}

func TestResolveSharedLibraryPath(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(SharedLibraryEnv, "")
	lib := filepath.Join(dir, "lib", "libonnxruntime.so")
	require.NoError(t, os.MkdirAll(filepath.Dir(lib), 0o755))
	require.NoError(t, os.WriteFile(lib, nil, 0o644))
	assert.Equal(t, lib, resolveSharedLibraryPath(dir))

	t.Setenv(SharedLibraryEnv, " /custom/libonnxruntime.so ")
	assert.Equal(t, "/custom/libonnxruntime.so", resolveSharedLibraryPath(dir))
}

func TestNewErrors(t *testing.T) {
	_, err := New(filepath.Join(t.TempDir(), "model.onnx"), 0)
	assert.Error(t, err)

	_, err = New(filepath.Join(t.TempDir(), "model.onnx"), 15)
	assert.Error(t, err, "missing model file")

	_, err = Load(context.Background(), hub.NewLocal(t.TempDir()), 15)
	assert.Error(t, err, "repo without model")
}

// TestRealModel runs a model exported with optimum, if one is available.
func TestRealModel(t *testing.T) {
	dir := os.Getenv("PIITAG_ONNX_MODEL_DIR")
	if dir == "" {
		t.Skip("PIITAG_ONNX_MODEL_DIR not set")
	}
	s, err := Load(context.Background(), hub.NewLocal(dir), 15)
	require.NoError(t, err)
	defer func() { require.NoError(t, s.Close()) }()

	logits, err := s.Logits(context.Background(), [][]int{{101, 2000, 102}}, [][]int{{1, 1, 1}})
	require.NoError(t, err)
	require.Len(t, logits, 1)
	require.Len(t, logits[0], 3)
	assert.Len(t, logits[0][0], 15)
}
