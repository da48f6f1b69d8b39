package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadConfig_Defaults(t *testing.T) {
	ResetConfig()

	cfg, err := LoadConfig("", nil)
	require.NoError(t, err)

	assert.Equal(t, DefaultPort, cfg.Port)
	assert.Equal(t, DefaultStateFile, cfg.StatePath)
	assert.Equal(t, DefaultTemplatesDir, cfg.TemplatesDir)
	assert.Equal(t, DefaultMaxDepth, cfg.MaxDepth)
	assert.Equal(t, DefaultLogLevel, cfg.LogLevel)
	assert.Empty(t, GetConfigFileUsed())
	assert.Same(t, cfg, GetCurrentConfig())
}

func TestLoadConfig_FromFile(t *testing.T) {
	ResetConfig()

	path := filepath.Join(t.TempDir(), "parcelboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9001\nmax_depth: 4\n"), 0o644))

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9001, cfg.Port)
	assert.Equal(t, 4, cfg.MaxDepth)
	assert.Equal(t, DefaultStateFile, cfg.StatePath, "unset keys keep their defaults")
	assert.Equal(t, path, GetConfigFileUsed())
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	ResetConfig()

	path := filepath.Join(t.TempDir(), "parcelboard.yaml")
	require.NoError(t, os.WriteFile(path, []byte("port: 9001\n"), 0o644))

	t.Setenv("PARCELBOARD_PORT", "9002")
	t.Setenv("PARCELBOARD_STATE_PATH", "/tmp/layouts.db")

	cfg, err := LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, 9002, cfg.Port)
	assert.Equal(t, "/tmp/layouts.db", cfg.StatePath)
}

func TestLoadConfig_FlagsWinOverEverything(t *testing.T) {
	ResetConfig()
	t.Setenv("PARCELBOARD_PORT", "9002")

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 0, "")
	flags.String("state", "", "")
	flags.Int("max-depth", 0, "")
	require.NoError(t, flags.Set("port", "9003"))
	require.NoError(t, flags.Set("state", "/tmp/flagged.db"))
	require.NoError(t, flags.Set("max-depth", "16"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.Equal(t, 9003, cfg.Port)
	assert.Equal(t, "/tmp/flagged.db", cfg.StatePath, "--state maps to state_path")
	assert.Equal(t, 16, cfg.MaxDepth)
}

func TestLoadConfig_UnchangedFlagsIgnored(t *testing.T) {
	ResetConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Int("port", 1234, "")

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	// Flag defaults do not override config defaults; only set flags count.
	assert.Equal(t, DefaultPort, cfg.Port)
}

func TestLoadConfig_VerboseForcesDebug(t *testing.T) {
	ResetConfig()

	flags := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags.Bool("verbose", false, "")
	require.NoError(t, flags.Set("verbose", "true"))

	cfg, err := LoadConfig("", flags)
	require.NoError(t, err)

	assert.True(t, cfg.Verbose)
	assert.Equal(t, "debug", cfg.LogLevel)
}

func TestLoadConfig_Invalid(t *testing.T) {
	ResetConfig()
	t.Setenv("PARCELBOARD_PORT", "-1")

	_, err := LoadConfig("", nil)
	assert.Error(t, err)
}

func TestConfig_Validate(t *testing.T) {
	valid := Config{
		Port: 8900, StatePath: "x.db", MaxDepth: 8, LogLevel: "info",
	}
	require.NoError(t, valid.Validate())

	bad := valid
	bad.Port = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.StatePath = ""
	assert.Error(t, bad.Validate())

	bad = valid
	bad.MaxDepth = 0
	assert.Error(t, bad.Validate())

	bad = valid
	bad.LogLevel = "loud"
	assert.Error(t, bad.Validate())
}
