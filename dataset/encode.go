package dataset

import (
	"context"

	"github.com/piitag/piitag/align"
	"golang.org/x/sync/errgroup"
	"k8s.io/klog/v2"
)

// Encode encodes records with up to workers concurrent goroutines (workers <= 0 means no limit).
// The examples are returned in the order of the records.
// It only fails if ctx is cancelled.
func Encode(ctx context.Context, encoder *align.Encoder, records []Record, workers int) ([]*align.EncodedExample, error) {
	examples := make([]*align.EncodedExample, len(records))
	g, gCtx := errgroup.WithContext(ctx)
	if workers > 0 {
		g.SetLimit(workers)
	}
	for ii, rec := range records {
		if gCtx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			examples[ii] = encoder.Encode(rec.ID, rec.Text, rec.Entities)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	klog.V(1).Infof("encoded %d records", len(examples))
	return examples, nil
}
