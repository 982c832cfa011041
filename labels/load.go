package labels

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// File is the YAML representation of a scheme:
//
//	types: [PERSON_NAME, PHONE, EMAIL, CREDIT_CARD, DATE, CITY, LOCATION]
//	pii: [PERSON_NAME, PHONE, EMAIL, CREDIT_CARD, DATE]
//
// Instead of types, tags may list the exact id-ordered tags of a trained model.
type File struct {
	Types []string `yaml:"types"`
	Tags  []string `yaml:"tags"`
	PII   []string `yaml:"pii"`
}

// Load reads a scheme from a YAML file.
func Load(path string) (*Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read label scheme %q", path)
	}
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, errors.Wrapf(err, "failed to parse label scheme %q", path)
	}
	var s *Scheme
	switch {
	case len(f.Tags) > 0 && len(f.Types) > 0:
		return nil, errors.Errorf("label scheme %q sets both types and tags", path)
	case len(f.Tags) > 0:
		s, err = FromTags(f.Tags, f.PII)
	default:
		s, err = New(f.Types, f.PII)
	}
	return s, errors.WithMessagef(err, "label scheme %q", path)
}

// FromModelConfig reads the id2label map of a HuggingFace config.json, which fixes the id of each
// tag as the model was trained. pii lists the PII types; nil means "every type of the default
// scheme that the model also knows".
func FromModelConfig(path string, pii []string) (*Scheme, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "failed to read model config %q", path)
	}
	var cfg struct {
		ID2Label map[string]string `json:"id2label"`
	}
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrapf(err, "failed to parse model config %q", path)
	}
	if len(cfg.ID2Label) == 0 {
		return nil, errors.Errorf("model config %q has no id2label", path)
	}
	tags := make([]string, len(cfg.ID2Label))
	for k, tag := range cfg.ID2Label {
		id, err := strconv.Atoi(k)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid label id %q in %q", k, path)
		}
		if id < 0 || id >= len(tags) {
			return nil, errors.Errorf("label id %d out of range in %q", id, path)
		}
		tags[id] = tag
	}
	if pii == nil {
		known := make(map[string]bool)
		for _, tag := range tags {
			_, typ := Split(tag)
			known[typ] = true
		}
		for _, typ := range Default().PIITypes() {
			if known[typ] {
				pii = append(pii, typ)
			}
		}
	}
	s, err := FromTags(tags, pii)
	return s, errors.WithMessagef(err, "model config %q", path)
}
