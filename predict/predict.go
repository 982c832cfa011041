// Package predict runs a token classifier over utterances and decodes its predictions into
// labelled character spans.
package predict

import (
	"context"
	"io"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/tokenizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Model computes the logits of a token classifier for a padded batch: one vector of label
// scores per token, shaped [batch][sequence][labels].
type Model interface {
	Logits(ctx context.Context, inputIDs, attentionMask [][]int) ([][][]float32, error)
}

// Predictions maps an utterance id to its predicted spans.
type Predictions map[string][]align.Span

// DefaultBatchSize is the number of utterances run through the model at once.
const DefaultBatchSize = 8

// Predictor tokenizes utterances, runs the model and decodes its predictions.
// It is safe for concurrent use if the model is.
type Predictor struct {
	tokenizer *tokenizers.Encoder
	encoder   *align.Encoder
	decoder   *align.Decoder
	model     Model
	batchSize int
}

// New creates a Predictor. A batchSize <= 0 uses DefaultBatchSize.
func New(tokenizer *tokenizers.Encoder, model Model, scheme *labels.Scheme, batchSize int) *Predictor {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Predictor{
		tokenizer: tokenizer,
		encoder:   align.NewEncoder(tokenizer, scheme),
		decoder:   align.NewDecoder(scheme),
		model:     model,
		batchSize: batchSize,
	}
}

// Scheme returns the label scheme predictions are decoded with.
func (p *Predictor) Scheme() *labels.Scheme { return p.decoder.Scheme() }

// BatchSize returns the number of utterances run through the model at once.
func (p *Predictor) BatchSize() int { return p.batchSize }

// Close releases the model, if it holds resources.
func (p *Predictor) Close() error {
	if closer, ok := p.model.(io.Closer); ok {
		return closer.Close()
	}
	return nil
}

// PredictText returns the spans predicted for one text.
func (p *Predictor) PredictText(ctx context.Context, text string) ([]align.Span, error) {
	spans, err := p.predictBatch(ctx, []*align.EncodedExample{p.encoder.Encode("", text, nil)})
	if err != nil {
		return nil, err
	}
	return spans[0], nil
}

// PredictRecords returns the spans predicted for each record, keyed by record id. Records are run
// in batches; gold entities of the records are ignored.
func (p *Predictor) PredictRecords(ctx context.Context, records []dataset.Record) (Predictions, error) {
	preds := make(Predictions, len(records))
	for ii, batch := range dataset.Batches(records, p.batchSize) {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		examples := make([]*align.EncodedExample, len(batch))
		for jj, rec := range batch {
			examples[jj] = p.encoder.Encode(rec.ID, rec.Text, nil)
		}
		spans, err := p.predictBatch(ctx, examples)
		if err != nil {
			return nil, errors.WithMessagef(err, "batch %d", ii)
		}
		for jj, rec := range batch {
			if _, dup := preds[rec.ID]; dup {
				klog.Warningf("duplicate record id %q, keeping the last prediction", rec.ID)
			}
			preds[rec.ID] = spans[jj]
		}
		klog.V(1).Infof("predicted batch %d (%d records)", ii, len(batch))
	}
	return preds, nil
}

// predictBatch runs the model over the examples and decodes each row with its own, unpadded,
// offsets.
func (p *Predictor) predictBatch(ctx context.Context, examples []*align.EncodedExample) ([][]align.Span, error) {
	batch := dataset.CollateDefault(examples, p.tokenizer.PadTokenID())
	logits, err := p.model.Logits(ctx, batch.InputIDs, batch.AttentionMask)
	if err != nil {
		return nil, errors.WithMessage(err, "model inference failed")
	}
	if len(logits) != batch.Size() {
		return nil, errors.Errorf("model returned logits for %d sequences, want %d", len(logits), batch.Size())
	}
	spans := make([][]align.Span, batch.Size())
	for ii := range spans {
		spans[ii] = p.decoder.Decode(batch.Texts[ii], batch.Offsets[ii], Argmax(logits[ii]))
	}
	return spans, nil
}

// Argmax returns the index of the highest score of each token. Ties go to the lowest index, and
// tokens without scores get -1.
func Argmax(logits [][]float32) []int {
	ids := make([]int, len(logits))
	for ii, scores := range logits {
		best := -1
		for jj, score := range scores {
			if best < 0 || score > scores[best] {
				best = jj
			}
		}
		ids[ii] = best
	}
	return ids
}
