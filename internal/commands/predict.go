package commands

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/piitag/piitag/align"
	"github.com/piitag/piitag/dataset"
	"github.com/piitag/piitag/labels"
	"github.com/piitag/piitag/predict"
	"github.com/piitag/piitag/server"
	"github.com/piitag/piitag/tokenizers"
	"github.com/spf13/cobra"
	"k8s.io/klog/v2"
)

func (a *app) predictOptions() predict.Options {
	opts := predict.Options{
		MaxLength:  a.cfg.MaxLength,
		BatchSize:  a.cfg.BatchSize,
		LabelsFile: a.cfg.LabelsFile,
		PIITypes:   a.cfg.PIITypes,
	}
	if a.cfg.ModelName != "" {
		opts.Tokenizer = a.cfg.Repo(a.cfg.ModelName)
	}
	return opts
}

func (a *app) openPredictor(ctx context.Context) (*predict.Predictor, error) {
	return predict.Open(ctx, a.cfg.Repo(a.cfg.ModelDir), a.predictOptions())
}

func (a *app) predictCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "predict",
		Short: "Predict the PII spans of the utterances in --input and write them to --output",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.openPredictor(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()

			records, err := dataset.Load(a.cfg.Input, a.cfg.Strict)
			if err != nil {
				return err
			}
			preds, err := p.PredictRecords(ctx, records)
			if err != nil {
				return err
			}
			return predict.WritePredictions(a.cfg.Output, preds)
		},
	}
}

func (a *app) serveCommand() *cobra.Command {
	var maxBatch int
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve predictions over HTTP on --addr",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			p, err := a.openPredictor(ctx)
			if err != nil {
				return err
			}
			defer func() { _ = p.Close() }()
			if !klog.V(1).Enabled() {
				gin.SetMode(gin.ReleaseMode)
			}
			return server.Serve(ctx, a.cfg.Addr, server.NewRouter(server.NewAPI(p, maxBatch)))
		},
	}
	cmd.Flags().IntVar(&maxBatch, "max_batch", server.DefaultMaxBatch, "maximum records per batch request")
	return cmd
}

func (a *app) encodeCommand() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "encode",
		Short: "Encode the annotated utterances in --input into a Parquet file of labelled tokens",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			opts := a.predictOptions()
			tokRepo := a.cfg.Repo(a.cfg.TokenizerDir())
			tok, err := tokenizers.LoadContext(ctx, tokRepo)
			if err != nil {
				return err
			}
			scheme, err := predict.LoadScheme(ctx, a.cfg.Repo(a.cfg.ModelDir), opts)
			if err != nil {
				return err
			}
			records, err := dataset.Load(a.cfg.Input, a.cfg.Strict)
			if err != nil {
				return err
			}
			encoder := align.NewEncoder(tokenizers.NewEncoder(tok, a.cfg.MaxLength), scheme)
			examples, err := dataset.Encode(ctx, encoder, records, a.cfg.Workers)
			if err != nil {
				return err
			}
			if err := dataset.WriteParquet(output, examples); err != nil {
				return err
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), summarize(examples, scheme))
			return err
		},
	}
	cmd.Flags().StringVar(&output, "parquet", "out/encoded.parquet", "output Parquet file")
	return cmd
}

// summarize counts examples, tokens and labelled tokens.
func summarize(examples []*align.EncodedExample, scheme *labels.Scheme) string {
	var tokens, ignored, entity int
	for _, ex := range examples {
		tokens += ex.Len()
		for _, id := range ex.Labels {
			switch {
			case id == align.IgnoreIndex:
				ignored++
			case id != scheme.OutsideID():
				entity++
			}
		}
	}
	return fmt.Sprintf("encoded %d examples: %d tokens, %d entity tokens, %d ignored", len(examples), tokens, entity, ignored)
}
