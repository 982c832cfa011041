package tokenizers

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/piitag/piitag/hub"
	"github.com/piitag/piitag/internal/testutil"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEncodeAddsSpecialTokens(t *testing.T) {
	tok := testutil.WordPiece(t, "call", "ramesh", "sharma", "now")
	enc := NewEncoder(tok, 256).Encode("call ramesh sharma now")

	assert.Equal(t, []int{testutil.ClsID, 5, 6, 7, 8, testutil.SepID}, enc.IDs)
	assert.Equal(t, []int{1, 1, 1, 1, 1, 1}, enc.AttentionMask)
	assert.Equal(t, []api.Offset{{0, 0}, {0, 4}, {5, 11}, {12, 18}, {19, 22}, {0, 0}}, enc.Offsets)
	assert.True(t, enc.Offsets[0].IsZeroWidth())
	assert.Equal(t, 6, enc.Len())
	assert.Equal(t, enc, Encode(tok, "call ramesh sharma now", 256))
}

func TestEncodeTruncates(t *testing.T) {
	tok := testutil.WordPiece(t, "a", "b", "c", "d")
	e := NewEncoder(tok, 4)
	assert.Equal(t, 4, e.MaxLength())

	enc := e.Encode("a b c d")
	require.Len(t, enc.IDs, 4)
	assert.Equal(t, testutil.ClsID, enc.IDs[0])
	assert.Equal(t, testutil.SepID, enc.IDs[3])
	assert.Equal(t, []api.Offset{{0, 0}, {0, 1}, {2, 3}, {0, 0}}, enc.Offsets)

	tiny := NewEncoder(tok, 1).Encode("a b")
	assert.Equal(t, []int{testutil.ClsID}, tiny.IDs)
	assert.Len(t, tiny.Offsets, 1)
	assert.Len(t, tiny.AttentionMask, 1)

	unbounded := NewEncoder(tok, 0).Encode("a b c d a b c d")
	assert.Len(t, unbounded.IDs, 10)
}

func TestEncodeConvertsBytesToRunes(t *testing.T) {
	tok := testutil.WordPiece(t, "josé", "jose", "lives", "in", "são", "sao", "paulo")
	enc := NewEncoder(tok, 0).Encode("José lives in São Paulo")

	// Accented letters are two bytes but one character.
	assert.Equal(t, []api.Offset{{0, 0}, {0, 4}, {5, 10}, {11, 13}, {14, 17}, {18, 23}, {0, 0}}, enc.Offsets)
}

func TestEncodeEmptyText(t *testing.T) {
	tok := testutil.WordPiece(t)
	enc := NewEncoder(tok, 16).Encode("")
	assert.Equal(t, []int{testutil.ClsID, testutil.SepID}, enc.IDs)
	assert.Equal(t, []api.Offset{{0, 0}, {0, 0}}, enc.Offsets)
}

func TestByteToRuneIndex(t *testing.T) {
	assert.Equal(t, []int{0, 1, 1, 2, 3}, byteToRuneIndex("aéb"))
	assert.Equal(t, []int{0}, byteToRuneIndex(""))
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	_, err := Load(hub.NewLocal(dir))
	require.Error(t, err)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokenizer.json"), testutil.WordPieceJSON("hello"), 0o644))
	tok, err := Load(hub.NewLocal(dir))
	require.NoError(t, err)
	assert.Equal(t, []int{5}, tok.Encode("hello"))
}
