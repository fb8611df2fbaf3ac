package ingestion

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/tools/go/packages"

	"github.com/Benny93/aerial-view/internal/config"
	"github.com/Benny93/aerial-view/internal/graph"
	"github.com/Benny93/aerial-view/internal/parsers"
)

var shopModule = map[string]string{
	"go.mod": "module example.com/shop\n\ngo 1.22\n",
	"store/store.go": `package store

type DB struct{ rows int }

func Open() *DB { return &DB{} }

func (d *DB) Count() int { return d.rows }
`,
	"api/api.go": `package api

import "example.com/shop/store"

type Handler struct{ db *store.DB }

func NewHandler() *Handler { return &Handler{db: store.Open()} }

func (h *Handler) Serve() int { return h.db.Count() + h.db.Count() }

type Unused struct{}
`,
	"api/api_test.go": `package api

import "testing"

type fixture struct{ h *Handler }

func (f *fixture) run() int { return f.h.Serve() }

func TestServe(t *testing.T) {
	f := &fixture{h: NewHandler()}
	_ = f.run()
}
`,
}

func writeModule(t *testing.T, files map[string]string) string {
	t.Helper()
	dir := t.TempDir()
	for path, content := range files {
		full := filepath.Join(dir, path)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0o755))
		require.NoError(t, os.WriteFile(full, []byte(content), 0o644))
	}
	return dir
}

func unitIDs(snap graph.SerializableGraph) []string {
	ids := make([]string, 0, len(snap.Units))
	for _, u := range snap.Units {
		ids = append(ids, u.ID)
	}
	return ids
}

func TestRunPipeline(t *testing.T) {
	t.Parallel()

	dir := writeModule(t, shopModule)

	t.Run("DefaultScopeIsModule", func(t *testing.T) {
		t.Parallel()

		var phases []string
		result, err := RunPipeline(t.Context(), Options{Dir: dir}, func(phase string, progress float64) {
			if progress == 0.0 {
				phases = append(phases, phase)
			}
		})
		require.NoError(t, err)

		assert.Equal(t, []string{"example.com/shop"}, result.Scope)
		assert.Equal(t, []string{"Loading packages", "Extracting references", "Building graph", "Bounding view"}, phases)
		assert.Equal(t, []string{"example.com/shop/api.Handler", "example.com/shop/store.DB"}, unitIDs(result.Snapshot))

		require.Len(t, result.Snapshot.Relationships, 1)
		rel := result.Snapshot.Relationships[0]
		assert.Equal(t, "example.com/shop/api.Handler", rel.SourceID)
		assert.Equal(t, "example.com/shop/store.DB", rel.TargetID)
		assert.Equal(t, 3, rel.Weight)

		assert.Equal(t, "example.com/shop", result.Snapshot.Units[0].OwnerLabel)
		assert.Equal(t, 1, result.ReferenceKinds[parsers.RefFunctionCall])
		assert.Equal(t, 2, result.ReferenceKinds[parsers.RefMethodCall])

		assert.Equal(t, 8, result.Stats.Observations)
		assert.Equal(t, 5, result.Stats.SelfReferences)
		assert.Equal(t, 0, result.Stats.OutOfScope)
		assert.Equal(t, 2, result.Stats.Files)
		assert.False(t, result.Stats.Truncated)
		assert.Empty(t, result.Excluded)
		assert.True(t, result.Graph.Frozen())
	})

	t.Run("BasePackagesNarrowScope", func(t *testing.T) {
		t.Parallel()

		result, err := RunPipeline(t.Context(), Options{
			Dir:          dir,
			BasePackages: []string{"example.com/shop/api"},
		}, nil)
		require.NoError(t, err)

		assert.Empty(t, result.Snapshot.Units)
		assert.Equal(t, 3, result.Stats.OutOfScope)
		require.Len(t, result.Excluded, 1)
		assert.Equal(t, ExcludedSource{
			Path:    filepath.Join("store", "store.go"),
			Package: "example.com/shop/store",
		}, result.Excluded[0])
	})

	t.Run("MaxNodesBoundsView", func(t *testing.T) {
		t.Parallel()

		one := 1
		result, err := RunPipeline(t.Context(), Options{Dir: dir, MaxNodes: &one}, nil)
		require.NoError(t, err)

		assert.True(t, result.Stats.Truncated)
		assert.Equal(t, 2, result.Stats.Units)
		assert.Equal(t, []string{"example.com/shop/api.Handler"}, unitIDs(result.Snapshot))
		assert.Empty(t, result.Snapshot.Relationships)
	})

	t.Run("IncludeIsolated", func(t *testing.T) {
		t.Parallel()

		result, err := RunPipeline(t.Context(), Options{Dir: dir, IncludeIsolated: true}, nil)
		require.NoError(t, err)

		assert.Equal(t, []string{
			"example.com/shop/api.Handler",
			"example.com/shop/store.DB",
			"example.com/shop/api.Unused",
		}, unitIDs(result.Snapshot))
	})

	t.Run("IncludeTests", func(t *testing.T) {
		t.Parallel()

		result, err := RunPipeline(t.Context(), Options{Dir: dir, IncludeTests: true}, nil)
		require.NoError(t, err)

		assert.Contains(t, unitIDs(result.Snapshot), "example.com/shop/api.fixture")
		rel, ok := result.Graph.Relationship("example.com/shop/api.fixture", "example.com/shop/api.Handler")
		require.True(t, ok)
		assert.Equal(t, 1, rel.Weight)
		assert.Equal(t, 3, result.Stats.Files)
	})

	t.Run("Deterministic", func(t *testing.T) {
		t.Parallel()

		first, err := RunPipeline(t.Context(), Options{Dir: dir, Concurrency: 1}, nil)
		require.NoError(t, err)
		second, err := RunPipeline(t.Context(), Options{Dir: dir, Concurrency: 8}, nil)
		require.NoError(t, err)

		assert.Equal(t, first.Snapshot, second.Snapshot)
	})

	t.Run("CancelledContext", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := context.WithCancel(t.Context())
		cancel()

		_, err := RunPipeline(ctx, Options{Dir: dir}, nil)
		assert.ErrorIs(t, err, context.Canceled)
	})
}

func TestOptionsFromConfig(t *testing.T) {
	t.Parallel()

	cfg := config.Default()
	limit := 10
	cfg.MaxNodes = &limit
	cfg.BasePackages = []string{"example.com/app"}
	cfg.IncludeTests = true

	opts := OptionsFromConfig("/repo", cfg)

	assert.Equal(t, "/repo", opts.Dir)
	assert.Equal(t, []string{"./..."}, opts.Patterns)
	assert.Equal(t, []string{"example.com/app"}, opts.BasePackages)
	assert.True(t, opts.IncludeTests)
	require.NotNil(t, opts.MaxNodes)
	assert.Equal(t, 10, *opts.MaxNodes)
}

func TestResolveScope(t *testing.T) {
	t.Parallel()

	withModule := &packages.Package{ID: "b", Module: &packages.Module{Path: "example.com/b"}}
	noModule := &packages.Package{ID: "a"}

	t.Run("BasePackagesWin", func(t *testing.T) {
		t.Parallel()
		scope, err := resolveScope([]string{"x"}, []*packages.Package{withModule})
		require.NoError(t, err)
		assert.Equal(t, []string{"x"}, scope)
	})

	t.Run("FirstModulePath", func(t *testing.T) {
		t.Parallel()
		scope, err := resolveScope(nil, []*packages.Package{noModule, withModule})
		require.NoError(t, err)
		assert.Equal(t, []string{"example.com/b"}, scope)
	})

	t.Run("NothingResolved", func(t *testing.T) {
		t.Parallel()
		_, err := resolveScope(nil, []*packages.Package{noModule})
		assert.ErrorIs(t, err, ErrNoScope)
	})
}

func TestRelativeTo(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()

	assert.Equal(t, filepath.Join("a", "b.go"), relativeTo(dir, filepath.Join(dir, "a", "b.go")))
	assert.Equal(t, "/elsewhere/c.go", relativeTo(dir, "/elsewhere/c.go"))
	assert.Equal(t, "/x/y.go", relativeTo("", "/x/y.go"))
}
