package predict

import (
	"bufio"
	"encoding/json"
	"os"

	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/internal/files"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// WritePredictions writes preds as a single JSON document indented with 2 spaces, creating the
// parent directory of path if needed. Utterances without spans are written as empty lists.
func WritePredictions(path string, preds Predictions) error {
	if err := files.EnsureParentDir(path); err != nil {
		return err
	}
	out := make(Predictions, len(preds))
	for id, spans := range preds {
		if spans == nil {
			spans = []align.Span{}
		}
		out[id] = spans
	}

	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create predictions file %q", path)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(out); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write predictions to %q", path)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write predictions to %q", path)
	}
	if err := f.Close(); err != nil {
		return errors.Wrapf(err, "failed to close predictions file %q", path)
	}
	klog.Infof("wrote predictions for %d utterances to %s", len(out), path)
	return nil
}

// ReadPredictions reads a file written by WritePredictions.
func ReadPredictions(path string) (Predictions, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read predictions file %q", path)
	}
	var preds Predictions
	if err := json.Unmarshal(data, &preds); err != nil {
		return nil, errors.Wrapf(err, "failed to parse predictions file %q", path)
	}
	return preds, nil
}
