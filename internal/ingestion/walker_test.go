package ingestion

import (
	"crypto/sha256"
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func relPaths(entries []SourceEntry) []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, filepath.ToSlash(e.RelPath))
	}
	return out
}

func TestWalkSources(t *testing.T) {
	t.Parallel()

	dir := writeModule(t, map[string]string{
		"go.mod":                   "module example.com/w\n",
		"main.go":                  "package main\n",
		"internal/a/a.go":          "package a\n",
		"internal/a/a_test.go":     "package a\n",
		"README.md":                "# readme",
		".gitignore":               "generated/\n# comment\n\n*.pb.go\n",
		"generated/gen.go":         "package generated\n",
		"api/api.pb.go":            "package api\n",
		"vendor/dep/dep.go":        "package dep\n",
		"testdata/fixture.go":      "package fixture\n",
		".aerial-view/view.json":   "{}",
		".aerial-view.yaml":        "max_nodes: 5\n",
	})

	entries, err := WalkSources(dir)
	require.NoError(t, err)

	assert.Equal(t, []string{
		".aerial-view.yaml",
		"go.mod",
		"internal/a/a.go",
		"internal/a/a_test.go",
		"main.go",
	}, relPaths(entries))

	t.Run("HashesContent", func(t *testing.T) {
		t.Parallel()
		for _, e := range entries {
			if e.RelPath == "main.go" {
				sum := sha256.Sum256([]byte("package main\n"))
				assert.Equal(t, hex.EncodeToString(sum[:]), e.SHA256)
				assert.Equal(t, filepath.Join(dir, "main.go"), e.Path)
			}
		}
	})
}

func TestFingerprint(t *testing.T) {
	t.Parallel()

	dir := writeModule(t, map[string]string{
		"go.mod":  "module example.com/f\n",
		"main.go": "package main\n",
	})

	walk := func() string {
		entries, err := WalkSources(dir)
		require.NoError(t, err)
		return Fingerprint(entries)
	}

	initial := walk()
	assert.Equal(t, initial, walk(), "unchanged tree keeps its fingerprint")

	require.NoError(t, os.WriteFile(filepath.Join(dir, "main.go"), []byte("package main\n\nfunc main() {}\n"), 0o644))
	edited := walk()
	assert.NotEqual(t, initial, edited)

	require.NoError(t, os.WriteFile(filepath.Join(dir, "notes.txt"), []byte("ignored"), 0o644))
	assert.Equal(t, edited, walk(), "non-input files do not count")

	require.NoError(t, os.Rename(filepath.Join(dir, "main.go"), filepath.Join(dir, "app.go")))
	assert.NotEqual(t, edited, walk(), "renames count")
}

func TestLoadGitignore(t *testing.T) {
	t.Parallel()

	t.Run("Missing", func(t *testing.T) {
		t.Parallel()
		patterns, err := loadGitignore(t.TempDir())
		require.NoError(t, err)
		assert.Nil(t, patterns)
	})

	t.Run("SkipsCommentsAndBlanks", func(t *testing.T) {
		t.Parallel()
		dir := writeModule(t, map[string]string{".gitignore": "# c\n\nbuild/\n*.tmp\n"})
		patterns, err := loadGitignore(dir)
		require.NoError(t, err)
		assert.Len(t, patterns, 2)
	})
}

func TestIsInputFile(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		expected bool
	}{
		{"main.go", true},
		{"main_test.go", true},
		{"go.mod", true},
		{"go.sum", true},
		{".aerial-view.yaml", true},
		{"README.md", false},
		{"main.go.orig", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.expected, isInputFile(tt.name))
		})
	}
}
