package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileGivesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "tia.nii", cfg.Pipeline.Output)
	assert.Equal(t, 0, cfg.Pipeline.Workers)
}

func TestLoad_PartialFileKeepsDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("log:\n  level: debug\npipeline:\n  workers: 4\n"), 0644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, 4, cfg.Pipeline.Workers)
	assert.Equal(t, "tia.nii", cfg.Pipeline.Output)
	assert.Equal(t, 10, cfg.Log.MaxSizeMB)
}

func TestLoad_Invalid(t *testing.T) {
	dir := t.TempDir()
	tests := map[string]string{
		"syntax":  "log: [",
		"level":   "log:\n  level: loud\n",
		"workers": "pipeline:\n  workers: -1\n",
		"output":  "pipeline:\n  output: \"\"\n",
	}
	for name, body := range tests {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(dir, name+".yaml")
			require.NoError(t, os.WriteFile(path, []byte(body), 0644))
			_, err := Load(path)
			assert.Error(t, err)
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "spider.yaml")
	cfg := Default()
	cfg.Log.File = "/var/log/spider.log"
	cfg.Pipeline.Output = "out.nii.gz"
	require.NoError(t, Save(cfg, path))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, cfg, got)
}

func TestFromEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spider.yaml")
	require.NoError(t, os.WriteFile(path, []byte("pipeline:\n  output: env.nii\n"), 0644))

	t.Setenv(EnvPath, path)
	t.Setenv(EnvLogLevel, "warn")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, "env.nii", cfg.Pipeline.Output)
	assert.Equal(t, "warn", cfg.Log.Level)

	t.Setenv(EnvLogLevel, "shouty")
	_, err = FromEnv()
	assert.ErrorContains(t, err, EnvLogLevel)
}

func TestFromEnv_Unset(t *testing.T) {
	t.Setenv(EnvPath, "")
	t.Setenv(EnvLogLevel, "")
	cfg, err := FromEnv()
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}
