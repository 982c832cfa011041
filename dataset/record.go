// Package dataset reads and writes annotated utterances, encodes them into training examples and
// pads encoded examples into batches.
package dataset

import (
	"bufio"
	"bytes"
	"encoding/json"
	"io"
	"os"

	"github.com/google/uuid"
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/internal/files"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Record is one annotated utterance, as stored one per line in a JSONL file.
type Record struct {
	ID       string         `json:"id"`
	Text     string         `json:"text"`
	Entities []align.Entity `json:"entities"`
}

// maxLineSize bounds the length of a JSONL line.
const maxLineSize = 64 << 20

// Read parses JSONL records from r. Blank lines are skipped and records without an id get a
// random UUID.
//
// Each line is validated against the record schema. If strict, the first invalid line is
// returned as an error; otherwise invalid lines are logged and skipped.
func Read(r io.Reader, strict bool) ([]Record, error) {
	var records []Record
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64<<10), maxLineSize)
	lineNum := 0
	for scanner.Scan() {
		lineNum++
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		rec, err := parseLine(line)
		if err != nil {
			if strict {
				return nil, errors.WithMessagef(err, "line %d", lineNum)
			}
			klog.Warningf("skipping line %d: %v", lineNum, err)
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrapf(err, "failed to read records after line %d", lineNum)
	}
	return records, nil
}

func parseLine(line []byte) (Record, error) {
	var rec Record
	if err := validateRecord(line); err != nil {
		return rec, err
	}
	if err := json.Unmarshal(line, &rec); err != nil {
		return rec, errors.Wrap(err, "invalid record")
	}
	if rec.ID == "" {
		rec.ID = uuid.NewString()
		klog.V(2).Infof("record without id, assigned %s", rec.ID)
	}
	return rec, nil
}

// Load reads the JSONL records of the file at path. See Read.
func Load(path string, strict bool) ([]Record, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to open records file %q", path)
	}
	defer func() { _ = f.Close() }()
	records, err := Read(f, strict)
	if err != nil {
		return nil, errors.WithMessagef(err, "records file %q", path)
	}
	klog.V(1).Infof("loaded %d records from %q", len(records), path)
	return records, nil
}

// Write writes records to w, one JSON object per line.
func Write(w io.Writer, records []Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	for _, rec := range records {
		if rec.Entities == nil {
			rec.Entities = []align.Entity{}
		}
		if err := enc.Encode(rec); err != nil {
			return errors.Wrapf(err, "failed to write record %q", rec.ID)
		}
	}
	return nil
}

// Save writes records as JSONL to the file at path, creating its parent directory if needed.
func Save(path string, records []Record) error {
	if err := files.EnsureParentDir(path); err != nil {
		return err
	}
	f, err := os.Create(path)
	if err != nil {
		return errors.Wrapf(err, "failed to create records file %q", path)
	}
	w := bufio.NewWriter(f)
	if err := Write(w, records); err != nil {
		_ = f.Close()
		return errors.WithMessagef(err, "records file %q", path)
	}
	if err := w.Flush(); err != nil {
		_ = f.Close()
		return errors.Wrapf(err, "failed to write records file %q", path)
	}
	return errors.Wrapf(f.Close(), "failed to close records file %q", path)
}
