package api

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/yaml.v3"
)

func TestSpecialTokenNames(t *testing.T) {
	assert.Equal(t, "classification", TokClassification.String())
	assert.Equal(t, "beginning_of_sentence", TokBeginningOfSentence.String())
	assert.Equal(t, "SpecialToken(42)", SpecialToken(42).String())
	assert.Len(t, SpecialTokenValues(), int(TokSpecialTokensCount)+1)

	tok, err := SpecialTokenString("SEPARATOR")
	require.NoError(t, err)
	assert.Equal(t, TokSeparator, tok)
	_, err = SpecialTokenString("bos")
	assert.Error(t, err)
}

func TestSpecialTokenEncoding(t *testing.T) {
	data, err := json.Marshal(map[string]SpecialToken{"pad": TokPad})
	require.NoError(t, err)
	assert.JSONEq(t, `{"pad": "pad"}`, string(data))

	var fromJSON SpecialToken
	require.NoError(t, json.Unmarshal([]byte(`"mask"`), &fromJSON))
	assert.Equal(t, TokMask, fromJSON)
	assert.Error(t, json.Unmarshal([]byte(`3`), &fromJSON))

	var fromYAML struct {
		Token SpecialToken `yaml:"token"`
	}
	require.NoError(t, yaml.Unmarshal([]byte("token: end_of_sentence\n"), &fromYAML))
	assert.Equal(t, TokEndOfSentence, fromYAML.Token)
}

func TestByteTokens(t *testing.T) {
	assert.Equal(t, "<0xC3>", ByteToken(0xC3))
	assert.Equal(t, "<0x0A>", ByteToken('\n'))
	for _, b := range []byte{0, 0x41, 0xA9, 0xFF} {
		got, ok := ParseByteToken(ByteToken(b))
		require.True(t, ok)
		assert.Equal(t, b, got)
	}
	for _, piece := range []string{"a", "▁", "<0x>", "<0xZZ>", "<0x41", "0x41>", "<0x410>"} {
		_, ok := ParseByteToken(piece)
		assert.False(t, ok, piece)
	}
}

func TestOffset(t *testing.T) {
	assert.True(t, Offset{}.IsSpecial())
	assert.True(t, Offset{3, 3}.IsZeroWidth())
	assert.False(t, Offset{3, 3}.IsSpecial())
	assert.False(t, Offset{0, 1}.IsZeroWidth())
}
