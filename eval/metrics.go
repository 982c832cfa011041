// Package eval scores predicted spans against gold annotations and renders inspection reports.
package eval

import (
	"slices"

	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/predict"
)

// PII is the pseudo-label under which PII-only counts are reported.
const PII = "PII"

// Counts holds true positive, false positive and false negative counts.
type Counts struct {
	TP int `json:"tp"`
	FP int `json:"fp"`
	FN int `json:"fn"`
}

// Precision returns TP/(TP+FP), or 0 if nothing was predicted.
func (c Counts) Precision() float64 { return ratio(c.TP, c.TP+c.FP) }

// Recall returns TP/(TP+FN), or 0 if there was nothing to find.
func (c Counts) Recall() float64 { return ratio(c.TP, c.TP+c.FN) }

// F1 returns the harmonic mean of precision and recall.
func (c Counts) F1() float64 {
	p, r := c.Precision(), c.Recall()
	if p+r == 0 {
		return 0
	}
	return 2 * p * r / (p + r)
}

func (c *Counts) add(o Counts) {
	c.TP += o.TP
	c.FP += o.FP
	c.FN += o.FN
}

func ratio(num, den int) float64 {
	if den == 0 {
		return 0
	}
	return float64(num) / float64(den)
}

// Metrics are exact-match span metrics.
type Metrics struct {
	// PerLabel counts spans matching (start, end, label).
	PerLabel map[string]Counts `json:"per_label"`
	// Micro sums PerLabel.
	Micro Counts `json:"micro"`
	// PII counts spans matching (start, end), among those whose label is PII.
	PII Counts `json:"pii"`
}

// Labels returns the labels of PerLabel, sorted.
func (m *Metrics) Labels() []string {
	out := make([]string, 0, len(m.PerLabel))
	for label := range m.PerLabel {
		out = append(out, label)
	}
	slices.Sort(out)
	return out
}

type spanKey struct {
	start, end int
	label      string
}

// Score compares the predictions against the gold entities of records. Records without a
// prediction count as predicting nothing; predictions of unknown ids are ignored. Whether a
// span is PII is decided by its label in scheme.
func Score(records []dataset.Record, preds predict.Predictions, scheme *labels.Scheme) *Metrics {
	m := &Metrics{PerLabel: make(map[string]Counts)}
	for _, rec := range records {
		gold := make(map[spanKey]bool)
		goldPII := make(map[spanKey]bool)
		for _, ent := range rec.Entities {
			gold[spanKey{ent.Start, ent.End, ent.Label}] = true
			if scheme.IsPII(ent.Label) {
				goldPII[spanKey{ent.Start, ent.End, PII}] = true
			}
		}
		pred := make(map[spanKey]bool)
		predPII := make(map[spanKey]bool)
		for _, span := range preds[rec.ID] {
			pred[spanKey{span.Start, span.End, span.Label}] = true
			if scheme.IsPII(span.Label) {
				predPII[spanKey{span.Start, span.End, PII}] = true
			}
		}

		for key := range gold {
			c := m.PerLabel[key.label]
			if pred[key] {
				c.TP++
			} else {
				c.FN++
			}
			m.PerLabel[key.label] = c
		}
		for key := range pred {
			if !gold[key] {
				c := m.PerLabel[key.label]
				c.FP++
				m.PerLabel[key.label] = c
			}
		}
		m.PII.add(compare(goldPII, predPII))
	}
	for _, c := range m.PerLabel {
		m.Micro.add(c)
	}
	return m
}

func compare(gold, pred map[spanKey]bool) Counts {
	var c Counts
	for key := range gold {
		if pred[key] {
			c.TP++
		} else {
			c.FN++
		}
	}
	for key := range pred {
		if !gold[key] {
			c.FP++
		}
	}
	return c
}
