// Package ingestion runs the analysis pipeline that turns a Go codebase
// into a bounded dependency view.
package ingestion

import (
	"context"
	"errors"
	"fmt"
	"go/ast"
	"log/slog"
	"path/filepath"
	"runtime"
	"slices"
	"strings"
	"time"

	"go.opentelemetry.io/otel/codes"
	"golang.org/x/sync/errgroup"
	"golang.org/x/tools/go/packages"

	"github.com/Benny93/aerial-view/internal/config"
	"github.com/Benny93/aerial-view/internal/graph"
	"github.com/Benny93/aerial-view/internal/parsers"
)

var (
	// ErrNoPackages is returned when the load patterns matched nothing.
	ErrNoPackages = errors.New("no packages matched")

	// ErrNoScope is returned when neither base packages nor a module path are available.
	ErrNoScope = errors.New("no scope prefixes resolved")
)

const loadMode = packages.NeedName |
	packages.NeedFiles |
	packages.NeedCompiledGoFiles |
	packages.NeedImports |
	packages.NeedDeps |
	packages.NeedTypes |
	packages.NeedSyntax |
	packages.NeedTypesInfo |
	packages.NeedModule

// Options configures a pipeline run.
type Options struct {
	// Dir is the directory packages are loaded from.
	Dir string

	// Patterns are the go/packages load patterns. Defaults to ./...
	Patterns []string

	// BasePackages are the scope prefixes. Empty means the main module path.
	BasePackages []string

	// IncludeTests traverses _test.go files too.
	IncludeTests bool

	// IncludeIsolated adds declared units that take part in no relationship.
	IncludeIsolated bool

	// MaxNodes bounds the view. Nil means unbounded.
	MaxNodes *int

	// Concurrency caps parallel extraction. Zero means GOMAXPROCS.
	Concurrency int
}

// OptionsFromConfig builds run options for dir from cfg.
func OptionsFromConfig(dir string, cfg *config.Config) Options {
	return Options{
		Dir:             dir,
		Patterns:        slices.Clone(cfg.Patterns),
		BasePackages:    slices.Clone(cfg.BasePackages),
		IncludeTests:    cfg.IncludeTests,
		IncludeIsolated: cfg.IncludeIsolated,
		MaxNodes:        cfg.MaxNodes,
		Concurrency:     cfg.Concurrency,
	}
}

// ExcludedSource is a loaded file that was not traversed because its
// package is out of scope.
type ExcludedSource struct {
	// Path is the file path relative to the analyzed directory when possible.
	Path string

	// Package is the import path of the file's package.
	Package string
}

// PipelineResult summarizes a pipeline run.
type PipelineResult struct {
	Packages          int     `json:"packages"`
	Files             int     `json:"files"`
	LoadErrors        int     `json:"load_errors"`
	Units             int     `json:"units"`
	Relationships     int     `json:"relationships"`
	ViewUnits         int     `json:"view_units"`
	ViewRelationships int     `json:"view_relationships"`
	Truncated         bool    `json:"truncated"`
	Observations      int     `json:"observations"`
	OutOfScope        int     `json:"out_of_scope"`
	SelfReferences    int     `json:"self_references"`
	DurationSecs      float64 `json:"duration_secs"`
}

// Result holds everything a run produced.
type Result struct {
	// Graph is the finalized graph.
	Graph *graph.Graph

	// View is the bounded view of Graph.
	View *graph.BoundedGraph

	// Snapshot is the exported form of View.
	Snapshot graph.SerializableGraph

	// Scope lists the resolved scope prefixes.
	Scope []string

	// Excluded lists files skipped because their package is out of scope.
	Excluded []ExcludedSource

	// Unhandled lists referenced types that could not be mapped to a unit.
	Unhandled []parsers.UnhandledType

	// ReferenceKinds counts extracted references per kind.
	ReferenceKinds map[parsers.ReferenceKind]int

	// Stats summarizes the run.
	Stats PipelineResult
}

// ProgressCallback is called with phase name and progress (0.0-1.0).
type ProgressCallback func(phase string, progress float64)

// sourcePlan is one package and the files of it to traverse.
type sourcePlan struct {
	pkg   *packages.Package
	files []*ast.File
}

// RunPipeline loads the packages under opts.Dir, accumulates their
// references into a graph and derives the bounded view.
func RunPipeline(ctx context.Context, opts Options, progress ProgressCallback) (*Result, error) {
	start := time.Now()
	ctx, span := startRunSpan(ctx, opts.Dir)
	defer span.End()

	report := func(phase string, pct float64) {
		if progress != nil {
			progress(phase, pct)
		}
	}

	result, err := runPhases(ctx, opts, report)
	duration := time.Since(start)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		recordRunMetrics(ctx, duration, nil, false)
		return nil, err
	}

	result.Stats.DurationSecs = duration.Seconds()
	setRunSpanResult(span, &result.Stats)
	recordRunMetrics(ctx, duration, &result.Stats, true)
	slog.Debug("analysis finished",
		"units", result.Stats.Units,
		"relationships", result.Stats.Relationships,
		"view_units", result.Stats.ViewUnits,
		"duration", duration)
	return result, nil
}

func runPhases(ctx context.Context, opts Options, report ProgressCallback) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	result := &Result{ReferenceKinds: make(map[parsers.ReferenceKind]int)}

	// Phase 1: Loading
	report("Loading packages", 0.0)
	pkgs, loadErrors, err := loadPackages(ctx, opts)
	if err != nil {
		return nil, err
	}
	result.Stats.Packages = len(pkgs)
	result.Stats.LoadErrors = loadErrors
	report("Loading packages", 1.0)

	// Phase 2: Scope, resolved once before anything is observed
	scope, err := resolveScope(opts.BasePackages, pkgs)
	if err != nil {
		return nil, err
	}
	result.Scope = scope
	matcher := graph.NewScopeMatcher(scope)
	slog.Debug("scope resolved", "prefixes", scope)

	// Phase 3: Source selection
	plan, excluded := selectSources(pkgs, matcher, opts.Dir)
	result.Excluded = excluded
	for _, item := range plan {
		result.Stats.Files += len(item.files)
	}

	// Phase 4: Extraction
	report("Extracting references", 0.0)
	parser := parsers.NewGoParser(moduleOwners(pkgs))
	parsed, err := extract(ctx, parser, plan, opts.Concurrency)
	if err != nil {
		return nil, err
	}
	report("Extracting references", 1.0)

	// Phase 5: Accumulation, sequential in package order
	report("Building graph", 0.0)
	g := graph.New(matcher)
	if err := accumulate(g, parsed, opts.IncludeIsolated, result); err != nil {
		return nil, err
	}
	report("Building graph", 1.0)

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	// Phase 6: Finalize
	report("Bounding view", 0.0)
	view := graph.Bound(g, opts.MaxNodes)
	result.Graph = g
	result.View = view
	result.Snapshot = graph.Export(view)
	report("Bounding view", 1.0)

	obs := g.Stats()
	result.Stats.Units = g.UnitCount()
	result.Stats.Relationships = g.RelationshipCount()
	result.Stats.ViewUnits = view.UnitCount()
	result.Stats.ViewRelationships = view.RelationshipCount()
	result.Stats.Truncated = view.Truncated()
	result.Stats.Observations = obs.Observed
	result.Stats.OutOfScope = obs.OutOfScope
	result.Stats.SelfReferences = obs.SelfReferences

	return result, nil
}

// loadPackages loads the root packages sorted by ID and counts load errors
// across the whole import graph.
func loadPackages(ctx context.Context, opts Options) ([]*packages.Package, int, error) {
	patterns := opts.Patterns
	if len(patterns) == 0 {
		patterns = []string{"./..."}
	}

	cfg := &packages.Config{
		Context: ctx,
		Mode:    loadMode,
		Dir:     opts.Dir,
		Tests:   opts.IncludeTests,
	}
	pkgs, err := packages.Load(cfg, patterns...)
	if err != nil {
		return nil, 0, fmt.Errorf("loading packages: %w", err)
	}
	if len(pkgs) == 0 {
		return nil, 0, fmt.Errorf("%w: %s", ErrNoPackages, strings.Join(patterns, " "))
	}

	loadErrors := 0
	packages.Visit(pkgs, nil, func(pkg *packages.Package) {
		for _, e := range pkg.Errors {
			loadErrors++
			slog.Warn("package error", "package", pkg.ID, "error", e.Error())
		}
	})

	slices.SortFunc(pkgs, func(a, b *packages.Package) int {
		return strings.Compare(a.ID, b.ID)
	})
	return pkgs, loadErrors, nil
}

// resolveScope returns the configured base packages, or else the module
// path of the first root package that has one.
func resolveScope(base []string, roots []*packages.Package) ([]string, error) {
	if len(base) > 0 {
		return slices.Clone(base), nil
	}
	for _, pkg := range roots {
		if pkg.Module != nil && pkg.Module.Path != "" {
			return []string{pkg.Module.Path}, nil
		}
	}
	return nil, ErrNoScope
}

// moduleOwners maps every loaded package path to its module path.
func moduleOwners(roots []*packages.Package) map[string]string {
	owners := make(map[string]string)
	packages.Visit(roots, nil, func(pkg *packages.Package) {
		if pkg.Module != nil {
			owners[pkg.PkgPath] = pkg.Module.Path
		}
	})
	return owners
}

// selectSources picks the files to traverse. Each file is taken once, from
// the first package variant that lists it; synthesized test mains are
// skipped and files of out-of-scope packages are reported instead.
func selectSources(roots []*packages.Package, matcher *graph.ScopeMatcher, dir string) ([]sourcePlan, []ExcludedSource) {
	seen := make(map[string]bool)
	var plan []sourcePlan
	excluded := []ExcludedSource{}

	for _, pkg := range roots {
		if strings.HasSuffix(pkg.ID, ".test") || pkg.Fset == nil {
			continue
		}
		inScope := matcher.InScope(pkg.PkgPath)

		var files []*ast.File
		for _, file := range pkg.Syntax {
			path := pkg.Fset.Position(file.Package).Filename
			if seen[path] {
				continue
			}
			seen[path] = true

			if !inScope {
				excluded = append(excluded, ExcludedSource{Path: relativeTo(dir, path), Package: pkg.PkgPath})
				continue
			}
			files = append(files, file)
		}
		if len(files) > 0 {
			plan = append(plan, sourcePlan{pkg: pkg, files: files})
		}
	}
	return plan, excluded
}

// extract parses every planned package in parallel. Results keep plan order.
func extract(ctx context.Context, parser *parsers.GoParser, plan []sourcePlan, concurrency int) ([]*parsers.ParseResult, error) {
	if concurrency <= 0 {
		concurrency = runtime.GOMAXPROCS(0)
	}

	results := make([]*parsers.ParseResult, len(plan))
	g, gCtx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, item := range plan {
		g.Go(func() error {
			if err := gCtx.Err(); err != nil {
				return err
			}
			results[i] = parser.ParseFiles(item.pkg, item.files)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("extracting references: %w", err)
	}
	return results, nil
}

// accumulate feeds parsed references into g in order, then the declared
// units when isolated units are requested, and merges the per-package
// unhandled types into result.
func accumulate(g *graph.Graph, parsed []*parsers.ParseResult, includeIsolated bool, result *Result) error {
	unhandled := make(map[string]bool)
	result.Unhandled = []parsers.UnhandledType{}

	for _, res := range parsed {
		for _, ref := range res.References {
			result.ReferenceKinds[ref.Kind]++
			if err := g.ObserveReference(ref.Source, ref.Target); err != nil {
				return fmt.Errorf("observing %s -> %s: %w", ref.Source.ID, ref.Target.ID, err)
			}
		}
		for _, u := range res.Unhandled {
			if unhandled[u.Type] {
				continue
			}
			unhandled[u.Type] = true
			result.Unhandled = append(result.Unhandled, u)
		}
	}

	if !includeIsolated {
		return nil
	}
	for _, res := range parsed {
		for _, unit := range res.Declared {
			if err := g.ObserveUnit(unit); err != nil {
				return fmt.Errorf("observing unit %s: %w", unit.ID, err)
			}
		}
	}
	return nil
}

func relativeTo(dir, path string) string {
	if dir == "" {
		return path
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return path
	}
	rel, err := filepath.Rel(abs, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return rel
}
