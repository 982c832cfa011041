package hftokenizer

import (
	"cmp"
	"strings"
	"unicode/utf8"

	"github.com/piitag/piitag/tokenizers/api"
)

// Decode converts a sequence of token IDs back to text. Special tokens are skipped.
func (t *Tokenizer) Decode(ids []int) string {
	tokens := make([]string, 0, len(ids))
	for _, id := range ids {
		if t.specialIDs[id] {
			continue
		}
		if token, ok := t.IDToToken(id); ok {
			tokens = append(tokens, token)
		}
	}
	return strings.Join(t.decode(tokens, t.tokenizer.Decoder), "")
}

// decode applies the decoder d to the tokens.
func (t *Tokenizer) decode(tokens []string, d *Decoder) []string {
	if d == nil {
		if t.tokenizer.Model.Type == "" || t.tokenizer.Model.Type == "WordPiece" {
			return wordPieceDecode(tokens, t.prefix)
		}
		return tokens
	}
	switch d.Type {
	case "WordPiece":
		return wordPieceDecode(tokens, cmp.Or(d.Prefix, "##"))
	case "ByteLevel":
		return []string{byteLevelDecode(strings.Join(tokens, ""))}
	case "Metaspace":
		replacement := cmp.Or(d.Replacement, "▁")
		trimFirst := prependScheme(d.PrependScheme, d.AddPrefixSpace) != "never"
		out := make([]string, len(tokens))
		for ii, token := range tokens {
			token = strings.ReplaceAll(token, replacement, " ")
			if ii == 0 && trimFirst {
				token = strings.TrimPrefix(token, " ")
			}
			out[ii] = token
		}
		return out
	case "BPEDecoder":
		suffix := cmp.Or(d.Suffix, "</w>")
		out := make([]string, len(tokens))
		for ii, token := range tokens {
			if ii == len(tokens)-1 {
				out[ii] = strings.ReplaceAll(token, suffix, "")
			} else {
				out[ii] = strings.ReplaceAll(token, suffix, " ")
			}
		}
		return out
	case "Replace":
		if d.Pattern == nil || d.Pattern.String == "" {
			return tokens
		}
		out := make([]string, len(tokens))
		for ii, token := range tokens {
			out[ii] = strings.ReplaceAll(token, d.Pattern.String, d.Content)
		}
		return out
	case "ByteFallback":
		return byteFallbackDecode(tokens)
	case "Fuse":
		return []string{strings.Join(tokens, "")}
	case "Strip":
		out := make([]string, len(tokens))
		for ii, token := range tokens {
			for range d.Start {
				token = strings.TrimPrefix(token, d.Content)
			}
			for range d.Stop {
				token = strings.TrimSuffix(token, d.Content)
			}
			out[ii] = token
		}
		return out
	case "Sequence":
		for ii := range d.Decoders {
			tokens = t.decode(tokens, &d.Decoders[ii])
		}
		return tokens
	default:
		return tokens
	}
}

func wordPieceDecode(tokens []string, prefix string) []string {
	out := make([]string, len(tokens))
	for ii, token := range tokens {
		switch {
		case ii == 0:
			out[ii] = token
		case strings.HasPrefix(token, prefix):
			out[ii] = strings.TrimPrefix(token, prefix)
		default:
			out[ii] = " " + token
		}
	}
	return out
}

func byteLevelDecode(text string) string {
	var result []byte
	for _, r := range text {
		if b, ok := unicodeToByte[r]; ok {
			result = append(result, b)
		} else {
			// Fallback for characters not in the mapping
			result = utf8.AppendRune(result, r)
		}
	}
	return string(result)
}

// byteFallbackDecode joins runs of "<0xHH>" tokens into the text of their bytes. Bytes that aren't
// valid UTF-8 become one U+FFFD each.
func byteFallbackDecode(tokens []string) []string {
	var (
		out   []string
		bytes []byte
	)
	flush := func() {
		if len(bytes) == 0 {
			return
		}
		if utf8.Valid(bytes) {
			out = append(out, string(bytes))
		} else {
			out = append(out, strings.Repeat("�", len(bytes)))
		}
		bytes = bytes[:0]
	}
	for _, token := range tokens {
		if b, ok := api.ParseByteToken(token); ok {
			bytes = append(bytes, b)
			continue
		}
		flush()
		out = append(out, token)
	}
	flush()
	return out
}
