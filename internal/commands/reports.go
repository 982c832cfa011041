package commands

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/eval"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/predict"
	"github.com/piitag/piitag/synth"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

func (a *app) generateCommand() *cobra.Command {
	var (
		trainPath, devPath string
		numTrain, numDev   int
		seed               uint64
	)
	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate a synthetic annotated corpus for training and evaluation",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if seed == 0 {
				seed = uint64(time.Now().UnixNano())
			}
			return synth.New(seed).WriteSplits(trainPath, numTrain, devPath, numDev)
		},
	}
	cmd.Flags().StringVar(&trainPath, "train", "data/train_synthetic.jsonl", "train split output")
	cmd.Flags().StringVar(&devPath, "dev", "data/dev_synthetic.jsonl", "dev split output")
	cmd.Flags().IntVar(&numTrain, "num_train", synth.NumTrain, "number of train utterances")
	cmd.Flags().IntVar(&numDev, "num_dev", synth.NumDev, "number of dev utterances")
	cmd.Flags().Uint64Var(&seed, "seed", 0, "random seed (0 for a time based seed)")
	return cmd
}

func (a *app) goldCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "gold",
		Short: "Print the gold entities of --input with the text they cover",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, err := dataset.Load(a.cfg.Input, a.cfg.Strict)
			if err != nil {
				return err
			}
			return eval.GoldReport(cmd.OutOrStdout(), records)
		},
	}
}

func (a *app) inspectCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect",
		Short: "Print gold entities of --input and predicted spans of --output side by side",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, preds, err := a.loadGoldAndPredictions()
			if err != nil {
				return err
			}
			return eval.CompareReport(cmd.OutOrStdout(), records, preds)
		},
	}
}

func (a *app) evalCommand() *cobra.Command {
	var asJSON bool
	cmd := &cobra.Command{
		Use:   "eval",
		Short: "Score the predictions of --output against the gold entities of --input",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			records, preds, err := a.loadGoldAndPredictions()
			if err != nil {
				return err
			}
			scheme, err := a.evalScheme(cmd.Context())
			if err != nil {
				return err
			}
			metrics := eval.Score(records, preds, scheme)
			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return errors.Wrap(enc.Encode(metrics), "failed to write metrics")
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), eval.RenderMetrics(metrics))
			return err
		},
	}
	cmd.Flags().BoolVar(&asJSON, "json", false, "print metrics as JSON")
	return cmd
}

func (a *app) loadGoldAndPredictions() ([]dataset.Record, predict.Predictions, error) {
	records, err := dataset.Load(a.cfg.Input, a.cfg.Strict)
	if err != nil {
		return nil, nil, err
	}
	preds, err := predict.ReadPredictions(a.cfg.Output)
	if err != nil {
		return nil, nil, err
	}
	return records, preds, nil
}

// evalScheme returns the scheme deciding which labels are PII: the configured labels file, the
// config.json of a local model directory, or the default scheme.
func (a *app) evalScheme(ctx context.Context) (*labels.Scheme, error) {
	repo := a.cfg.Repo(a.cfg.ModelDir)
	if a.cfg.LabelsFile == "" && !repo.IsLocal() {
		scheme := labels.Default()
		if a.cfg.PIITypes == nil {
			return scheme, nil
		}
		return labels.FromTags(scheme.Tags(), a.cfg.PIITypes)
	}
	return predict.LoadScheme(ctx, repo, a.predictOptions())
}
