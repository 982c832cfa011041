// Package hftokenizer implements a span-tracking tokenizer for HuggingFace's tokenizer.json format.
//
// WordPiece (BERT, DistilBERT), BPE (RoBERTa, GPT-2, Llama), Unigram (XLM-RoBERTa, T5) and
// WordLevel models are supported. Every token carries the byte span of the original text it came
// from, which is what token classification needs to map labels back to characters: normalizers
// and pre-tokenizers are applied to text that remembers, byte by byte, where it came from.
package hftokenizer

import (
	"cmp"
	"context"
	"encoding/json"
	"math"
	"os"
	"regexp"
	"slices"
	"strings"

	"github.com/piitag/piitag/hub"
	"github.com/piitag/piitag/tokenizers/api"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// TokenizerJSON represents the subset of HuggingFace's tokenizer.json file used here.
type TokenizerJSON struct {
	Version      string        `json:"version"`
	AddedTokens  []AddedToken  `json:"added_tokens"`
	Normalizer   *Normalizer   `json:"normalizer"`
	PreTokenizer *PreTokenizer `json:"pre_tokenizer"`
	Decoder      *Decoder      `json:"decoder"`
	Model        Model         `json:"model"`
}

// AddedToken represents a token added to the vocabulary. Added tokens are matched in the raw text
// before normalization.
type AddedToken struct {
	ID      int    `json:"id"`
	Content string `json:"content"`
	Special bool   `json:"special"`
}

// Normalizer represents the normalizer configuration.
type Normalizer struct {
	Type               string       `json:"type"`
	Lowercase          bool         `json:"lowercase"`
	StripAccents       *bool        `json:"strip_accents"`
	CleanText          *bool        `json:"clean_text"`
	HandleChineseChars *bool        `json:"handle_chinese_chars"`
	Normalizers        []Normalizer `json:"normalizers"`
	Pattern            *Pattern     `json:"pattern"`
	Content            string       `json:"content"`
	Prepend            string       `json:"prepend"`
	StripLeft          bool         `json:"strip_left"`
	StripRight         bool         `json:"strip_right"`
}

// Pattern for regex-based operations: either a literal String or a Regex.
type Pattern struct {
	Regex  string `json:"Regex,omitempty"`
	String string `json:"String,omitempty"`

	re *regexp.Regexp
}

// compile prepares the pattern. An empty pattern is left uncompiled.
func (p *Pattern) compile() error {
	if p == nil {
		return nil
	}
	expr := p.Regex
	if p.String != "" {
		expr = regexp.QuoteMeta(p.String)
	}
	if expr == "" {
		return nil
	}
	re, err := regexp.Compile(expr)
	if err != nil {
		return errors.Wrapf(err, "can't compile pattern %q", expr)
	}
	p.re = re
	return nil
}

// PreTokenizer represents the pre-tokenizer configuration.
type PreTokenizer struct {
	Type             string         `json:"type"`
	AddPrefixSpace   *bool          `json:"add_prefix_space"`
	UseRegex         *bool          `json:"use_regex"`
	Replacement      string         `json:"replacement"`
	PrependScheme    string         `json:"prepend_scheme"`
	Split            *bool          `json:"split"`
	IndividualDigits bool           `json:"individual_digits"`
	PreTokenizers    []PreTokenizer `json:"pretokenizers"`
	Pattern          *Pattern       `json:"pattern"`
	Behavior         string         `json:"behavior"`
	Invert           bool           `json:"invert"`
}

// Decoder represents the decoder configuration.
type Decoder struct {
	Type           string    `json:"type"`
	Prefix         string    `json:"prefix"`
	Suffix         string    `json:"suffix"`
	Replacement    string    `json:"replacement"`
	PrependScheme  string    `json:"prepend_scheme"`
	AddPrefixSpace *bool     `json:"add_prefix_space"`
	Decoders       []Decoder `json:"decoders"`
	Pattern        *Pattern  `json:"pattern"`
	Content        string    `json:"content"`
	Start          int       `json:"start"`
	Stop           int       `json:"stop"`
}

// Model represents the tokenizer model: WordPiece, BPE, Unigram or WordLevel.
//
// The vocabulary is either an object mapping pieces to ids, or (Unigram) a list of
// [piece, score] pairs whose ids are their positions. Merges (BPE) are either "a b" strings or
// ["a", "b"] pairs.
type Model struct {
	Type                    string         `json:"type"`
	Vocab                   map[string]int `json:"-"`
	Scores                  []float64      `json:"-"`
	Merges                  [][2]string    `json:"-"`
	UnkToken                string         `json:"unk_token"`
	UnkID                   *int           `json:"unk_id"`
	ContinuingSubwordPrefix string         `json:"continuing_subword_prefix"`
	EndOfWordSuffix         string         `json:"end_of_word_suffix"`
	MaxInputCharsPerWord    int            `json:"max_input_chars_per_word"`
	FuseUnk                 bool           `json:"fuse_unk"`
	ByteFallback            bool           `json:"byte_fallback"`
	IgnoreMerges            bool           `json:"ignore_merges"`
}

// UnmarshalJSON implements json.Unmarshaler, accepting both forms of vocab and merges.
func (m *Model) UnmarshalJSON(data []byte) error {
	type plain Model
	var raw struct {
		plain
		Vocab  json.RawMessage `json:"vocab"`
		Merges json.RawMessage `json:"merges"`
	}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*m = Model(raw.plain)

	if len(raw.Vocab) > 0 && string(raw.Vocab) != "null" {
		if err := json.Unmarshal(raw.Vocab, &m.Vocab); err != nil {
			var list [][]any
			if listErr := json.Unmarshal(raw.Vocab, &list); listErr != nil {
				return errors.Wrap(err, "vocab is neither an object nor a list of [piece, score]")
			}
			m.Vocab = make(map[string]int, len(list))
			m.Scores = make([]float64, len(list))
			for id, entry := range list {
				if len(entry) != 2 {
					return errors.Errorf("vocab entry #%d has %d elements, want [piece, score]", id, len(entry))
				}
				piece, okPiece := entry[0].(string)
				score, okScore := entry[1].(float64)
				if !okPiece || !okScore {
					return errors.Errorf("vocab entry #%d is not a [piece, score] pair", id)
				}
				m.Vocab[piece] = id
				m.Scores[id] = score
			}
		}
	}

	if len(raw.Merges) > 0 && string(raw.Merges) != "null" {
		var merges []string
		if err := json.Unmarshal(raw.Merges, &merges); err == nil {
			m.Merges = make([][2]string, 0, len(merges))
			for _, merge := range merges {
				a, b, ok := strings.Cut(merge, " ")
				if !ok {
					return errors.Errorf("invalid merge %q", merge)
				}
				m.Merges = append(m.Merges, [2]string{a, b})
			}
		} else if err := json.Unmarshal(raw.Merges, &m.Merges); err != nil {
			return errors.Wrap(err, "merges are neither strings nor pairs")
		}
	}
	return nil
}

// piece is a token found by the model in a word: its id and its byte range in the word.
type piece struct {
	id         int
	start, end int
}

// Tokenizer implements api.TokenizerWithSpans for HuggingFace tokenizer.json files.
type Tokenizer struct {
	tokenizer *TokenizerJSON
	idToToken map[int]string
	model     func(word string) []piece

	// WordPiece
	prefix   string
	maxChars int

	// BPE: maps a pair of symbols to its merge priority.
	mergeRanks map[[2]string]int

	// Unigram
	maxPieceLen int
	unkScore    float64

	unkID  int
	padID  int
	clsID  int
	sepID  int
	maskID int

	// Added tokens lookup (content -> id), and their contents longest first.
	addedTokens   map[string]int
	addedContents []string
	specialIDs    map[int]bool
}

// Compile time assert that Tokenizer implements api.TokenizerWithSpans interface.
var _ api.TokenizerWithSpans = &Tokenizer{}

// New creates a HuggingFace tokenizer from the tokenizer.json file of the repo.
func New(repo *hub.Repo) (*Tokenizer, error) {
	return NewContext(context.Background(), repo)
}

// NewContext is like New, but hub requests are cancelled with ctx.
func NewContext(ctx context.Context, repo *hub.Repo) (*Tokenizer, error) {
	if !repo.HasFileContext(ctx, "tokenizer.json") {
		return nil, errors.Errorf("\"tokenizer.json\" file not found in repo %s", repo)
	}
	tokenizerFile, err := repo.DownloadFileContext(ctx, "tokenizer.json")
	if err != nil {
		return nil, errors.Wrapf(err, "can't download tokenizer.json file")
	}
	return NewFromFile(tokenizerFile)
}

// NewFromFile creates a HuggingFace tokenizer from a local tokenizer.json file path.
func NewFromFile(filePath string) (*Tokenizer, error) {
	content, err := os.ReadFile(filePath)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read tokenizer.json file %q", filePath)
	}
	return NewFromContent(content)
}

// NewFromContent creates a HuggingFace tokenizer from tokenizer.json content.
func NewFromContent(content []byte) (*Tokenizer, error) {
	var tj TokenizerJSON
	if err := json.Unmarshal(content, &tj); err != nil {
		return nil, errors.Wrapf(err, "failed to parse tokenizer.json")
	}
	if len(tj.Model.Vocab) == 0 {
		return nil, errors.New("tokenizer.json has an empty vocabulary")
	}

	t := &Tokenizer{
		tokenizer:   &tj,
		idToToken:   make(map[int]string, len(tj.Model.Vocab)),
		addedTokens: make(map[string]int),
		specialIDs:  make(map[int]bool),
		unkID:       -1,
		padID:       -1,
		clsID:       -1,
		sepID:       -1,
		maskID:      -1,
	}
	switch tj.Model.Type {
	case "", "WordPiece":
		t.model = t.wordPiece
		t.prefix = cmp.Or(tj.Model.ContinuingSubwordPrefix, "##")
		t.maxChars = cmp.Or(tj.Model.MaxInputCharsPerWord, 100)
	case "BPE":
		t.model = t.bpe
		t.mergeRanks = make(map[[2]string]int, len(tj.Model.Merges))
		for rank, merge := range tj.Model.Merges {
			if _, found := t.mergeRanks[merge]; !found {
				t.mergeRanks[merge] = rank
			}
		}
	case "Unigram":
		if len(tj.Model.Scores) != len(tj.Model.Vocab) {
			return nil, errors.New("Unigram model needs a vocab list of [piece, score] pairs")
		}
		t.model = t.unigram
		minScore := math.Inf(1)
		for piece, id := range tj.Model.Vocab {
			t.maxPieceLen = max(t.maxPieceLen, len(piece))
			minScore = min(minScore, tj.Model.Scores[id])
		}
		t.unkScore = minScore - unigramUnkPenalty
	case "WordLevel":
		t.model = t.wordLevel
	default:
		return nil, errors.Errorf("tokenizer model type %q not supported", tj.Model.Type)
	}

	// Build reverse vocab (id -> token)
	for token, id := range tj.Model.Vocab {
		t.idToToken[id] = token
	}
	for _, at := range tj.AddedTokens {
		t.idToToken[at.ID] = at.Content
		if at.Special {
			t.specialIDs[at.ID] = true
		}
		if at.Content == "" {
			continue
		}
		if _, found := t.addedTokens[at.Content]; !found {
			t.addedContents = append(t.addedContents, at.Content)
		}
		t.addedTokens[at.Content] = at.ID
	}
	slices.SortStableFunc(t.addedContents, func(a, b string) int { return cmp.Compare(len(b), len(a)) })

	if tj.Normalizer != nil {
		if err := compileNormalizer(tj.Normalizer); err != nil {
			return nil, err
		}
	}
	if tj.PreTokenizer != nil {
		compilePreTokenizer(tj.PreTokenizer)
	}
	t.resolveSpecialTokens()
	return t, nil
}

func compileNormalizer(n *Normalizer) error {
	if err := n.Pattern.compile(); err != nil {
		return errors.WithMessagef(err, "normalizer %s", n.Type)
	}
	for ii := range n.Normalizers {
		if err := compileNormalizer(&n.Normalizers[ii]); err != nil {
			return err
		}
	}
	return nil
}

// compilePreTokenizer compiles Split patterns. Patterns that don't compile are split as GPT-2
// does, which is what those patterns (with look-aheads) approximate.
func compilePreTokenizer(pt *PreTokenizer) {
	if err := pt.Pattern.compile(); err != nil {
		klog.V(1).Infof("pre-tokenizer %s: %v, using the GPT-2 split", pt.Type, err)
	}
	for ii := range pt.PreTokenizers {
		compilePreTokenizer(&pt.PreTokenizers[ii])
	}
}

// resolveSpecialTokens maps special tokens to their IDs.
func (t *Tokenizer) resolveSpecialTokens() {
	model := &t.tokenizer.Model
	if model.UnkID != nil {
		t.unkID = *model.UnkID
	} else if model.UnkToken != "" {
		if id, ok := model.Vocab[model.UnkToken]; ok {
			t.unkID = id
		}
	}
	lookup := func(contents ...string) int {
		for _, content := range contents {
			if id, ok := t.addedTokens[content]; ok {
				return id
			}
			if id, ok := model.Vocab[content]; ok {
				return id
			}
		}
		return -1
	}
	if t.unkID == -1 {
		t.unkID = lookup("[UNK]", "<unk>")
	}
	t.padID = lookup("[PAD]", "<pad>")
	t.clsID = lookup("[CLS]", "<s>")
	t.sepID = lookup("[SEP]", "</s>")
	t.maskID = lookup("[MASK]", "<mask>")
}

// Encode converts text to a sequence of token IDs, without special tokens.
func (t *Tokenizer) Encode(text string) []int {
	return t.EncodeWithSpans(text).IDs
}

// EncodeWithSpans returns the token IDs of text along with the byte span each one covers.
// It implements api.TokenizerWithSpans.
//
// Tokens made only of inserted characters (a prefix space, a metaspace standing for a space) get
// a zero-width span.
func (t *Tokenizer) EncodeWithSpans(text string) api.EncodingResult {
	var result api.EncodingResult
	for _, seg := range t.splitAddedTokens(text) {
		if seg.id >= 0 {
			result.IDs = append(result.IDs, seg.id)
			result.Spans = append(result.Spans, api.TokenSpan{Start: seg.start, End: seg.end})
			continue
		}
		w := t.normalize(newWord(text[seg.start:seg.end], seg.start))
		for _, pre := range t.preTokenize(w) {
			if len(pre.text) == 0 {
				continue
			}
			for _, p := range t.model(string(pre.text)) {
				result.IDs = append(result.IDs, p.id)
				result.Spans = append(result.Spans, pre.span(p.start, p.end))
			}
		}
	}
	return result
}

// segment of the raw text: an added token (id >= 0) or text to tokenize (id == -1).
type segment struct {
	start, end int
	id         int
}

// splitAddedTokens splits text on the added tokens, longest match first.
func (t *Tokenizer) splitAddedTokens(text string) []segment {
	var segments []segment
	start := 0
	for pos := 0; pos < len(text); {
		content := ""
		for _, c := range t.addedContents {
			if strings.HasPrefix(text[pos:], c) {
				content = c
				break
			}
		}
		if content == "" {
			pos++
			continue
		}
		if start < pos {
			segments = append(segments, segment{start: start, end: pos, id: -1})
		}
		segments = append(segments, segment{start: pos, end: pos + len(content), id: t.addedTokens[content]})
		pos += len(content)
		start = pos
	}
	if start < len(text) {
		segments = append(segments, segment{start: start, end: len(text), id: -1})
	}
	return segments
}

// SpecialTokenID returns the ID for a given special token.
func (t *Tokenizer) SpecialTokenID(token api.SpecialToken) (int, error) {
	var id int
	switch token {
	case api.TokUnknown:
		id = t.unkID
	case api.TokPad:
		id = t.padID
	case api.TokBeginningOfSentence, api.TokClassification:
		id = t.clsID
	case api.TokEndOfSentence, api.TokSeparator:
		id = t.sepID
	case api.TokMask:
		id = t.maskID
	default:
		id = -1
	}
	if id < 0 {
		return 0, errors.Errorf("special token %s not found", token)
	}
	return id, nil
}

// IDToToken converts a token ID to its string.
func (t *Tokenizer) IDToToken(id int) (string, bool) {
	token, ok := t.idToToken[id]
	return token, ok
}
