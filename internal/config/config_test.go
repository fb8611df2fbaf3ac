package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault(t *testing.T) {
	t.Parallel()

	cfg := Default()

	assert.Nil(t, cfg.MaxNodes)
	assert.True(t, cfg.GenerateView)
	assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
	assert.Equal(t, []string{"./..."}, cfg.Patterns)
	assert.NoError(t, cfg.Validate())
}

func TestLoad(t *testing.T) {
	t.Parallel()

	t.Run("MissingFile", func(t *testing.T) {
		t.Parallel()
		cfg, err := Load(filepath.Join(t.TempDir(), FileName))
		require.NoError(t, err)
		assert.Equal(t, Default(), cfg)
	})

	t.Run("OverridesDefaults", func(t *testing.T) {
		t.Parallel()
		dir := t.TempDir()
		content := `
base_packages:
  - example.com/app
max_nodes: 50
include_tests: true
formats: [json]
`
		require.NoError(t, os.WriteFile(filepath.Join(dir, FileName), []byte(content), 0o644))

		cfg, err := LoadDir(dir)
		require.NoError(t, err)

		assert.Equal(t, []string{"example.com/app"}, cfg.BasePackages)
		require.NotNil(t, cfg.MaxNodes)
		assert.Equal(t, 50, *cfg.MaxNodes)
		assert.True(t, cfg.IncludeTests)
		assert.Equal(t, []string{FormatJSON}, cfg.Formats)
		assert.Equal(t, DefaultOutputDir, cfg.OutputDir)
		assert.True(t, cfg.GenerateView)
	})

	t.Run("InvalidYAML", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("max_nodes: [oops"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "parsing config")
	})

	t.Run("InvalidValues", func(t *testing.T) {
		t.Parallel()
		path := filepath.Join(t.TempDir(), FileName)
		require.NoError(t, os.WriteFile(path, []byte("formats: [pdf]\n"), 0o644))

		_, err := Load(path)
		assert.ErrorContains(t, err, "invalid config")
	})
}

func TestConfig_Validate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*Config)
		valid  bool
	}{
		{"Defaults", func(*Config) {}, true},
		{"UnknownFormat", func(c *Config) { c.Formats = []string{"svg"} }, false},
		{"NoFormats", func(c *Config) { c.Formats = nil }, false},
		{"EmptyOutputDir", func(c *Config) { c.OutputDir = "" }, false},
		{"NegativeConcurrency", func(c *Config) { c.Concurrency = -1 }, false},
		{"BlankBasePackage", func(c *Config) { c.BasePackages = []string{""} }, false},
		{"SpacedBasePackage", func(c *Config) { c.BasePackages = []string{"example.com/a b"} }, false},
		{"NoPatterns", func(c *Config) { c.Patterns = []string{} }, false},
		{"ZeroMaxNodes", func(c *Config) { zero := 0; c.MaxNodes = &zero }, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cfg := Default()
			tt.mutate(cfg)
			if tt.valid {
				assert.NoError(t, cfg.Validate())
			} else {
				assert.Error(t, cfg.Validate())
			}
		})
	}
}

func TestWriteRoundTrip(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), FileName)
	cfg := Default()
	cfg.BasePackages = []string{"example.com/app"}

	require.NoError(t, Write(path, cfg))
	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, cfg, loaded)
}

func TestConfig_HasFormat(t *testing.T) {
	t.Parallel()

	cfg := Default()
	cfg.Formats = []string{FormatJSON}

	assert.True(t, cfg.HasFormat(FormatJSON))
	assert.False(t, cfg.HasFormat(FormatHTML))
}

func TestParseList(t *testing.T) {
	t.Parallel()

	tests := []struct {
		input    string
		expected []string
	}{
		{"", nil},
		{"a", []string{"a"}},
		{" a , b ,, ", []string{"a", "b"}},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, ParseList(tt.input))
		})
	}
}
