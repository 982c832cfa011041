// Package commands implements the piitag command line.
package commands

import (
	"context"
	"flag"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/piitag/piitag/config"
	"github.com/pkg/errors"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"k8s.io/klog/v2"
)

// app holds the state shared by the commands of one root command.
type app struct {
	v       *viper.Viper
	cfgFile string
	envFile string
	cfg     *config.Config
}

// NewRootCommand returns the piitag root command with all its subcommands.
func NewRootCommand() *cobra.Command {
	a := &app{v: config.New()}
	root := &cobra.Command{
		Use:           "piitag",
		Short:         "piitag - tag PII spans in utterances with a BIO token classifier",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.loadConfig()
		},
	}

	flags := root.PersistentFlags()
	flags.StringVarP(&a.cfgFile, "config", "c", "", "config file (YAML, JSON or TOML)")
	flags.StringVar(&a.envFile, "env_file", ".env", "file with environment variables to load, if it exists")
	flags.String(config.KeyModelDir, "out", "model directory or hub repo id, with the ONNX model and config.json")
	flags.String(config.KeyModelName, "", "tokenizer directory or hub repo id, if different from model_dir")
	flags.String(config.KeyRevision, "main", "revision of hub repos")
	flags.String(config.KeyCacheDir, "", "cache directory for hub downloads")
	flags.String(config.KeyHFToken, "", "token for private hub repos")
	flags.String(config.KeyInput, "data/dev.jsonl", "input JSONL file of utterances")
	flags.String(config.KeyOutput, "out/dev_pred.json", "predictions JSON file")
	flags.Int(config.KeyMaxLength, 256, "maximum number of tokens per utterance, special tokens included")
	flags.Int(config.KeyBatchSize, 8, "utterances per model run")
	flags.Int(config.KeyWorkers, 0, "concurrent encoders (0 for no limit)")
	flags.Bool(config.KeyStrict, false, "fail on invalid input lines instead of skipping them")
	flags.String(config.KeyLabelsFile, "", "YAML label scheme, overriding the model's config.json")
	flags.StringSlice(config.KeyPIITypes, nil, "entity types classified as PII, overriding the defaults")
	flags.String(config.KeyAddr, ":8080", "address the prediction server listens on")
	for key := range config.Defaults {
		_ = a.v.BindPFlag(key, flags.Lookup(key))
	}

	klogFlags := flag.NewFlagSet("klog", flag.ContinueOnError)
	klog.InitFlags(klogFlags)
	flags.AddGoFlagSet(klogFlags)

	root.AddCommand(
		a.predictCommand(),
		a.encodeCommand(),
		a.generateCommand(),
		a.goldCommand(),
		a.inspectCommand(),
		a.evalCommand(),
		a.serveCommand(),
	)
	return root
}

// loadConfig loads the env file, if any, and resolves the configuration.
func (a *app) loadConfig() error {
	if a.envFile != "" {
		if err := godotenv.Load(a.envFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return errors.Wrapf(err, "failed to load env file %q", a.envFile)
		}
	}
	cfg, err := config.Load(a.v, a.cfgFile)
	if err != nil {
		return err
	}
	a.cfg = cfg
	return nil
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context) int {
	if err := NewRootCommand().ExecuteContext(ctx); err != nil {
		klog.Errorf("%v", err)
		return 1
	}
	return 0
}
