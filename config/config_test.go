package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaults(t *testing.T) {
	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "out", cfg.ModelDir)
	assert.Equal(t, "data/dev.jsonl", cfg.Input)
	assert.Equal(t, "out/dev_pred.json", cfg.Output)
	assert.Equal(t, 256, cfg.MaxLength)
	assert.Equal(t, 8, cfg.BatchSize)
	assert.Equal(t, ":8080", cfg.Addr)
	assert.Equal(t, "out", cfg.TokenizerDir())
	assert.Nil(t, cfg.PIITypes)
}

func TestEnvironment(t *testing.T) {
	t.Setenv("PIITAG_MODEL_DIR", "models/pii")
	t.Setenv("PIITAG_MODEL_NAME", "tok")
	t.Setenv("PIITAG_MAX_LENGTH", "128")
	t.Setenv("PIITAG_STRICT", "true")
	t.Setenv("PIITAG_PII_TYPES", "PHONE,EMAIL")

	cfg, err := Load(New(), "")
	require.NoError(t, err)
	assert.Equal(t, "models/pii", cfg.ModelDir)
	assert.Equal(t, "tok", cfg.TokenizerDir())
	assert.Equal(t, 128, cfg.MaxLength)
	assert.True(t, cfg.Strict)
	assert.Equal(t, []string{"PHONE", "EMAIL"}, cfg.PIITypes)
}

func TestConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "piitag.yaml")
	require.NoError(t, os.WriteFile(path, []byte("batch_size: 32\ninput: data/test.jsonl\npii_types: [PHONE]\n"), 0o644))

	t.Setenv("PIITAG_INPUT", "data/env.jsonl")
	cfg, err := Load(New(), path)
	require.NoError(t, err)
	assert.Equal(t, 32, cfg.BatchSize)
	assert.Equal(t, "data/env.jsonl", cfg.Input, "environment overrides the file")
	assert.Equal(t, []string{"PHONE"}, cfg.PIITypes)

	_, err = Load(New(), filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		cfg  Config
	}{
		{"no model", Config{BatchSize: 1}},
		{"negative max length", Config{ModelDir: "m", MaxLength: -1, BatchSize: 1}},
		{"zero batch", Config{ModelDir: "m"}},
		{"negative workers", Config{ModelDir: "m", BatchSize: 1, Workers: -2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Error(t, tt.cfg.Validate())
		})
	}
	assert.NoError(t, (&Config{ModelDir: "m", BatchSize: 1}).Validate())
}

func TestRepo(t *testing.T) {
	dir := t.TempDir()
	cfg := &Config{Revision: "v1", CacheDir: filepath.Join(dir, "cache"), HFToken: "token"}

	local := cfg.Repo(dir)
	assert.True(t, local.IsLocal())

	remote := cfg.Repo("org/pii-model")
	assert.False(t, remote.IsLocal())
	assert.Equal(t, "org/pii-model@v1", remote.String())
	assert.Equal(t, filepath.Join(dir, "cache"), remote.CacheDir)
}
