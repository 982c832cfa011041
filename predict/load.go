package predict

import (
	"context"

	"github.com/piitag/piitag/hub"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/models/onnx"
	"github.com/piitag/piitag/tokenizers"
	"github.com/pkg/errors"
	"k8s.io/klog/v2"
)

// Options configure Open.
type Options struct {
	// MaxLength truncates utterances to this many tokens, special tokens included.
	MaxLength int
	// BatchSize is the number of utterances run through the model at once.
	BatchSize int
	// LabelsFile, if set, is a YAML label scheme overriding the one in the model's config.json.
	LabelsFile string
	// PIITypes, if set, overrides the entity types classified as PII.
	PIITypes []string
	// Tokenizer, if set, is the repo the tokenizer is loaded from instead of the model repo.
	Tokenizer *hub.Repo
}

// Open loads the tokenizer, label scheme and ONNX model of a model repo and returns a Predictor
// over them. The label scheme is taken, in order, from opts.LabelsFile, the id2label of the
// model's config.json, or labels.Default.
func Open(ctx context.Context, repo *hub.Repo, opts Options) (*Predictor, error) {
	tokRepo := repo
	if opts.Tokenizer != nil {
		tokRepo = opts.Tokenizer
	}
	tok, err := tokenizers.LoadContext(ctx, tokRepo)
	if err != nil {
		return nil, err
	}
	scheme, err := LoadScheme(ctx, repo, opts)
	if err != nil {
		return nil, err
	}
	model, err := onnx.Load(ctx, repo, scheme.NumLabels())
	if err != nil {
		return nil, err
	}
	klog.Infof("loaded model from %s (%d labels)", repo, scheme.NumLabels())
	return New(tokenizers.NewEncoder(tok, opts.MaxLength), model, scheme, opts.BatchSize), nil
}

// LoadScheme returns the label scheme of a model repo, as described in Open.
func LoadScheme(ctx context.Context, repo *hub.Repo, opts Options) (*labels.Scheme, error) {
	var (
		scheme *labels.Scheme
		err    error
	)
	switch {
	case opts.LabelsFile != "":
		scheme, err = labels.Load(opts.LabelsFile)
	case repo.HasFileContext(ctx, "config.json"):
		var path string
		path, err = repo.DownloadFileContext(ctx, "config.json")
		if err != nil {
			return nil, err
		}
		scheme, err = labels.FromModelConfig(path, nil)
	default:
		klog.Warningf("no config.json in %s, using the default label scheme", repo)
		scheme = labels.Default()
	}
	if err != nil {
		return nil, err
	}
	if opts.PIITypes != nil {
		scheme, err = labels.FromTags(scheme.Tags(), opts.PIITypes)
		if err != nil {
			return nil, errors.WithMessage(err, "invalid PII types")
		}
	}
	return scheme, nil
}
