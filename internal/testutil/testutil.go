// Package testutil builds small in-memory fixtures shared by the package tests.
package testutil

import (
	"encoding/json"
	"testing"

	"github.com/piitag/piitag/tokenizers/hftokenizer"
)

// Special token ids of the tokenizers built by WordPiece.
const (
	PadID  = 0
	UnkID  = 1
	ClsID  = 2
	SepID  = 3
	MaskID = 4
)

// WordPieceJSON returns the content of a BERT-style tokenizer.json whose vocabulary is the special
// tokens followed by words, in order. Words starting with "##" are continuation pieces.
func WordPieceJSON(words ...string) []byte {
	vocab := map[string]int{"[PAD]": PadID, "[UNK]": UnkID, "[CLS]": ClsID, "[SEP]": SepID, "[MASK]": MaskID}
	for _, w := range words {
		if _, ok := vocab[w]; !ok {
			vocab[w] = len(vocab)
		}
	}
	added := []map[string]any{}
	for _, content := range []string{"[PAD]", "[UNK]", "[CLS]", "[SEP]", "[MASK]"} {
		added = append(added, map[string]any{"id": vocab[content], "content": content, "special": true})
	}
	content, err := json.Marshal(map[string]any{
		"version":       "1.0",
		"added_tokens":  added,
		"normalizer":    map[string]any{"type": "BertNormalizer", "lowercase": true},
		"pre_tokenizer": map[string]any{"type": "BertPreTokenizer"},
		"model": map[string]any{
			"type":                      "WordPiece",
			"unk_token":                 "[UNK]",
			"continuing_subword_prefix": "##",
			"max_input_chars_per_word":  100,
			"vocab":                     vocab,
		},
	})
	if err != nil {
		panic(err)
	}
	return content
}

// WordPiece returns a WordPiece tokenizer over the given words, failing the test on error.
func WordPiece(t testing.TB, words ...string) *hftokenizer.Tokenizer {
	t.Helper()
	tok, err := hftokenizer.NewFromContent(WordPieceJSON(words...))
	if err != nil {
		t.Fatalf("failed to build test tokenizer: %v", err)
	}
	return tok
}
