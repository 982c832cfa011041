// Package config holds the settings shared by the piitag commands. Values come, from lowest to
// highest precedence, from defaults, an optional YAML/JSON/TOML config file, PIITAG_* environment
// variables and command line flags.
package config

import (
	"strings"

	"github.com/piitag/piitag/hub"
	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes the environment variables of every setting: PIITAG_MODEL_DIR, ...
const EnvPrefix = "PIITAG"

// Setting keys, also used as flag names.
const (
	KeyModelDir   = "model_dir"
	KeyModelName  = "model_name"
	KeyRevision   = "revision"
	KeyCacheDir   = "cache_dir"
	KeyHFToken    = "hf_token"
	KeyInput      = "input"
	KeyOutput     = "output"
	KeyMaxLength  = "max_length"
	KeyBatchSize  = "batch_size"
	KeyWorkers    = "workers"
	KeyStrict     = "strict"
	KeyLabelsFile = "labels_file"
	KeyPIITypes   = "pii_types"
	KeyAddr       = "addr"
)

// Config is the resolved configuration.
type Config struct {
	// ModelDir is the model directory (or hub repo id) holding the ONNX model and its config.json.
	ModelDir string `mapstructure:"model_dir"`
	// ModelName, if set, is the directory or hub repo id of the tokenizer, instead of ModelDir.
	ModelName string `mapstructure:"model_name"`
	Revision  string `mapstructure:"revision"`
	CacheDir  string `mapstructure:"cache_dir"`
	HFToken   string `mapstructure:"hf_token"`

	Input     string `mapstructure:"input"`
	Output    string `mapstructure:"output"`
	MaxLength int    `mapstructure:"max_length"`
	BatchSize int    `mapstructure:"batch_size"`
	Workers   int    `mapstructure:"workers"`
	Strict    bool   `mapstructure:"strict"`

	LabelsFile string   `mapstructure:"labels_file"`
	PIITypes   []string `mapstructure:"pii_types"`

	Addr string `mapstructure:"addr"`
}

// Defaults of the settings.
var Defaults = map[string]any{
	KeyModelDir:   "out",
	KeyModelName:  "",
	KeyRevision:   "main",
	KeyCacheDir:   "",
	KeyHFToken:    "",
	KeyInput:      "data/dev.jsonl",
	KeyOutput:     "out/dev_pred.json",
	KeyMaxLength:  256,
	KeyBatchSize:  8,
	KeyWorkers:    0,
	KeyStrict:     false,
	KeyLabelsFile: "",
	KeyPIITypes:   []string(nil),
	KeyAddr:       ":8080",
}

// New returns a viper instance with the defaults set and environment variables bound.
func New() *viper.Viper {
	v := viper.New()
	for key, value := range Defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()
	return v
}

// Load reads the config file at path, if not empty, into v and returns the resolved Config.
func Load(v *viper.Viper, path string) (*Config, error) {
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Wrapf(err, "failed to read config file %q", path)
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, errors.Wrap(err, "failed to decode configuration")
	}
	// An unset pii_types flag reads back as an empty list: keep nil for "not configured".
	if !v.IsSet(KeyPIITypes) {
		cfg.PIITypes = nil
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings are usable.
func (c *Config) Validate() error {
	if c.ModelDir == "" {
		return errors.Errorf("%s must be set", KeyModelDir)
	}
	if c.MaxLength < 0 {
		return errors.Errorf("%s must be >= 0, got %d", KeyMaxLength, c.MaxLength)
	}
	if c.BatchSize <= 0 {
		return errors.Errorf("%s must be > 0, got %d", KeyBatchSize, c.BatchSize)
	}
	if c.Workers < 0 {
		return errors.Errorf("%s must be >= 0, got %d", KeyWorkers, c.Workers)
	}
	return nil
}

// TokenizerDir returns where the tokenizer is loaded from: ModelName if set, else ModelDir.
func (c *Config) TokenizerDir() string {
	if c.ModelName != "" {
		return c.ModelName
	}
	return c.ModelDir
}

// Repo opens nameOrDir as a local directory or a hub repo, with the configured revision, cache
// directory and token.
func (c *Config) Repo(nameOrDir string) *hub.Repo {
	repo := hub.Open(nameOrDir)
	if repo.IsLocal() {
		return repo
	}
	if c.Revision != "" {
		repo = repo.WithRevision(c.Revision)
	}
	if c.CacheDir != "" {
		repo = repo.WithCacheDir(c.CacheDir)
	}
	return repo.WithAuth(c.HFToken)
}
