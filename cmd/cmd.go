// Package cmd provides CLI command implementations for aerial-view.
package cmd

import (
	"bufio"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"slices"
	"strings"
	"syscall"
	"time"

	"github.com/alecthomas/kong"
	"github.com/fatih/color"

	"github.com/Benny93/aerial-view/internal/config"
	"github.com/Benny93/aerial-view/internal/ingestion"
	"github.com/Benny93/aerial-view/internal/report"
	"github.com/Benny93/aerial-view/mcp"
)

// Version is set at build time via ldflags.
var Version = "dev"

// MetaFile is written next to the reports of every analyze run.
const MetaFile = "meta.json"

// Globals are the flags shared by every command.
type Globals struct {
	Verbose bool   `short:"v" help:"Enable verbose output"`
	Quiet   bool   `short:"q" help:"Suppress non-essential output"`
	Config  string `type:"path" help:"Config file (default: <path>/.aerial-view.yaml)"`

	out io.Writer
}

func (g *Globals) stdout() io.Writer {
	if g.out != nil {
		return g.out
	}
	return os.Stdout
}

// loadConfig reads the explicit config file or the one in dir.
func (g *Globals) loadConfig(dir string) (*config.Config, error) {
	if g.Config != "" {
		return config.Load(g.Config)
	}
	return config.LoadDir(dir)
}

// AnalyzeCmd builds the dependency graph of a module and writes the reports.
type AnalyzeCmd struct {
	Path            string   `arg:"" optional:"" default:"." help:"Path to the Go module"`
	MaxNodes        *int     `help:"Keep only the N most connected units in the view"`
	BasePackages    []string `help:"Comma-separated package prefixes that define the scope (default: module path)"`
	IncludeTests    bool     `help:"Also traverse _test.go files"`
	IncludeIsolated bool     `help:"Include units that take part in no relationship"`
	NoView          bool     `help:"Skip the HTML view"`
	Output          string   `short:"o" help:"Output directory (default: <path>/.aerial-view)"`
	Format          []string `help:"Comma-separated report formats: html, json, csv"`
}

// apply overlays the flags that were set onto cfg.
func (c *AnalyzeCmd) apply(cfg *config.Config) error {
	if c.MaxNodes != nil {
		cfg.MaxNodes = c.MaxNodes
	}
	if len(c.BasePackages) > 0 {
		cfg.BasePackages = config.ParseList(strings.Join(c.BasePackages, ","))
	}
	if c.IncludeTests {
		cfg.IncludeTests = true
	}
	if c.IncludeIsolated {
		cfg.IncludeIsolated = true
	}
	if c.NoView {
		cfg.GenerateView = false
	}
	if c.Output != "" {
		cfg.OutputDir = c.Output
	}
	if len(c.Format) > 0 {
		cfg.Formats = config.ParseList(strings.Join(c.Format, ","))
	}
	return cfg.Validate()
}

// Run executes the analyze command.
func (c *AnalyzeCmd) Run(g *Globals) error {
	repoPath, err := resolveDir(c.Path)
	if err != nil {
		return err
	}

	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}
	if err := c.apply(cfg); err != nil {
		return err
	}

	ctx, stop := signalContext(nil)
	defer stop()

	return analyze(ctx, g, repoPath, cfg)
}

// analyze runs one analysis of repoPath and writes its reports.
func analyze(ctx context.Context, g *Globals, repoPath string, cfg *config.Config) error {
	out := g.stdout()
	if !g.Quiet {
		color.New(color.FgGreen).Fprintf(out, "Analyzing %s\n", repoPath)
	}

	var progress ingestion.ProgressCallback
	if !g.Quiet {
		progress = func(phase string, pct float64) {
			fmt.Fprintf(os.Stderr, "\r\033[K%s (%.0f%%)", phase, pct*100)
		}
	}

	res, err := ingestion.RunPipeline(ctx, ingestion.OptionsFromConfig(repoPath, cfg), progress)
	if progress != nil {
		fmt.Fprintln(os.Stderr)
	}
	if err != nil {
		return fmt.Errorf("running pipeline: %w", err)
	}

	outDir := outputDir(repoPath, cfg.OutputDir)
	written, err := report.Write(outDir, filepath.Base(repoPath), res, cfg)
	if err != nil {
		return fmt.Errorf("writing reports: %w", err)
	}

	metaPath := filepath.Join(outDir, MetaFile)
	if err := writeMeta(metaPath, repoPath, res); err != nil {
		return err
	}

	if g.Quiet {
		return nil
	}

	s := res.Stats
	color.New(color.FgGreen).Fprintln(out, "\n✓ Analysis complete")
	fmt.Fprintf(out, "  Scope:          %s\n", strings.Join(res.Scope, ", "))
	fmt.Fprintf(out, "  Packages:       %d\n", s.Packages)
	fmt.Fprintf(out, "  Files:          %d\n", s.Files)
	fmt.Fprintf(out, "  Units:          %d\n", s.Units)
	fmt.Fprintf(out, "  Relationships:  %d\n", s.Relationships)
	if s.Truncated {
		fmt.Fprintf(out, "  View:           %d units, %d relationships (most connected)\n", s.ViewUnits, s.ViewRelationships)
	}
	if s.LoadErrors > 0 {
		color.New(color.FgYellow).Fprintf(out, "  Load errors:    %d (see --verbose)\n", s.LoadErrors)
	}
	fmt.Fprintf(out, "  Duration:       %.2fs\n", s.DurationSecs)
	for _, path := range written {
		fmt.Fprintf(out, "  -> %s\n", path)
	}
	return nil
}

func writeMeta(path, repoPath string, res *ingestion.Result) error {
	kinds := make(map[string]int, len(res.ReferenceKinds))
	for kind, n := range res.ReferenceKinds {
		kinds[string(kind)] = n
	}

	meta := map[string]any{
		"version":          Version,
		"name":             filepath.Base(repoPath),
		"path":             repoPath,
		"scope":            res.Scope,
		"stats":            res.Stats,
		"reference_kinds":  kinds,
		"excluded_sources": len(res.Excluded),
		"unhandled_types":  len(res.Unhandled),
		"analyzed_at":      time.Now().UTC().Format(time.RFC3339),
	}

	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding %s: %w", MetaFile, err)
	}
	if err := os.WriteFile(path, metaJSON, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", MetaFile, err)
	}
	return nil
}

// WatchCmd re-runs the analysis whenever the module's sources change.
type WatchCmd struct {
	AnalyzeCmd

	Debounce time.Duration `default:"2s" help:"Quiet period after the last change before re-analyzing"`
}

// Run executes the watch command.
func (c *WatchCmd) Run(g *Globals) error {
	repoPath, err := resolveDir(c.Path)
	if err != nil {
		return err
	}

	// Handle Ctrl+C
	ctx, stop := signalContext(func() {
		fmt.Fprintln(os.Stderr, "\nStopping watch mode...")
	})
	defer stop()

	return c.watch(ctx, g, repoPath)
}

func (c *WatchCmd) watch(ctx context.Context, g *Globals, repoPath string) error {
	run := func(ctx context.Context) error {
		// The config file is an analysis input, so it is re-read on every run.
		cfg, err := g.loadConfig(repoPath)
		if err != nil {
			return err
		}
		if err := c.apply(cfg); err != nil {
			return err
		}
		return analyze(ctx, g, repoPath, cfg)
	}

	if err := run(ctx); err != nil {
		return err
	}

	fmt.Fprintf(g.stdout(), "\nWatching %s for changes (Ctrl+C to stop)\n", repoPath)

	debounce := c.Debounce
	if debounce <= 0 {
		debounce = ingestion.DefaultDebounce
	}
	err := ingestion.WatchRepo(ctx, repoPath, debounce, run)
	if err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("watch error: %w", err)
	}

	fmt.Fprintln(g.stdout(), "Watch mode stopped.")
	return nil
}

// ServeCmd starts the MCP server on stdio.
type ServeCmd struct{}

// Run executes the serve command.
func (c *ServeCmd) Run(g *Globals) error {
	ctx, stop := signalContext(nil)
	defer stop()

	fmt.Fprintln(os.Stderr, "Starting MCP server...")
	server := mcp.NewServer(configuredAnalyzer(g), Version)
	if err := server.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		return fmt.Errorf("serving mcp: %w", err)
	}
	return nil
}

// configuredAnalyzer layers the tool arguments over the config of the
// analyzed directory.
func configuredAnalyzer(g *Globals) mcp.Analyzer {
	return func(ctx context.Context, opts ingestion.Options) (*ingestion.Result, error) {
		dir, err := resolveDir(opts.Dir)
		if err != nil {
			return nil, err
		}
		cfg, err := g.loadConfig(dir)
		if err != nil {
			return nil, err
		}

		merged := ingestion.OptionsFromConfig(dir, cfg)
		if len(opts.BasePackages) > 0 {
			merged.BasePackages = opts.BasePackages
		}
		if opts.MaxNodes != nil {
			merged.MaxNodes = opts.MaxNodes
		}
		merged.IncludeTests = merged.IncludeTests || opts.IncludeTests
		return ingestion.RunPipeline(ctx, merged, nil)
	}
}

// InitCmd writes a config file with the default settings.
type InitCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Directory to write the config file to"`
	Force bool   `short:"f" help:"Overwrite an existing config file"`
}

// Run executes the init command.
func (c *InitCmd) Run(g *Globals) error {
	dir, err := resolveDir(c.Path)
	if err != nil {
		return err
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !c.Force {
		return fmt.Errorf("%s already exists, use --force to overwrite", path)
	}

	if err := config.Write(path, config.Default()); err != nil {
		return err
	}
	if !g.Quiet {
		color.New(color.FgGreen).Fprintf(g.stdout(), "Wrote %s\n", path)
	}
	return nil
}

// CleanCmd deletes the reports of a previous analyze run.
type CleanCmd struct {
	Path  string `arg:"" optional:"" default:"." help:"Path to the Go module"`
	Force bool   `short:"f" help:"Skip confirmation"`

	in io.Reader
}

// Run executes the clean command.
func (c *CleanCmd) Run(g *Globals) error {
	repoPath, err := resolveDir(c.Path)
	if err != nil {
		return err
	}
	cfg, err := g.loadConfig(repoPath)
	if err != nil {
		return err
	}

	outDir := outputDir(repoPath, cfg.OutputDir)
	var targets []string
	for _, name := range append(slices.Clone(report.Files), MetaFile) {
		path := filepath.Join(outDir, name)
		if _, err := os.Stat(path); err == nil {
			targets = append(targets, path)
		}
	}
	if len(targets) == 0 {
		return fmt.Errorf("no reports found at %s. Nothing to clean", outDir)
	}

	out := g.stdout()
	if !c.Force {
		in := c.in
		if in == nil {
			in = os.Stdin
		}
		fmt.Fprintf(out, "Delete %d report files in %s? [y/N] ", len(targets), outDir)
		response, _ := bufio.NewReader(in).ReadString('\n')
		response = strings.TrimSpace(response)
		if response != "y" && response != "Y" {
			fmt.Fprintln(out, "Aborted")
			return nil
		}
	}

	for _, path := range targets {
		if err := os.Remove(path); err != nil {
			return fmt.Errorf("deleting %s: %w", path, err)
		}
	}
	// Only removes the directory when nothing else lives there.
	_ = os.Remove(outDir)

	if !g.Quiet {
		color.New(color.FgGreen).Fprintf(out, "Deleted %d report files from %s\n", len(targets), outDir)
	}
	return nil
}

func resolveDir(path string) (string, error) {
	if path == "" {
		path = "."
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	info, err := os.Stat(abs)
	if err != nil {
		return "", fmt.Errorf("accessing %s: %w", abs, err)
	}
	if !info.IsDir() {
		return "", fmt.Errorf("%s is not a directory", abs)
	}
	return abs, nil
}

func outputDir(repoPath, dir string) string {
	if filepath.IsAbs(dir) {
		return dir
	}
	return filepath.Join(repoPath, dir)
}

// signalContext returns a context cancelled on SIGINT or SIGTERM. onSignal,
// if non-nil, runs before the cancellation. The returned stop func cancels
// the context and unregisters the signal channel before returning.
func signalContext(onSignal func()) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(context.Background())

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	done := make(chan struct{})
	go func() {
		defer close(done)
		defer signal.Stop(sigChan)
		select {
		case <-sigChan:
			if onSignal != nil {
				onSignal()
			}
			cancel()
		case <-ctx.Done():
		}
	}()

	return ctx, func() {
		cancel()
		<-done
	}
}

func setupLogging(g *Globals) {
	level := slog.LevelInfo
	switch {
	case g.Verbose:
		level = slog.LevelDebug
	case g.Quiet:
		level = slog.LevelWarn
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

// CLI is the root command.
type CLI struct {
	Globals

	Version kong.VersionFlag `help:"Show version information"`

	// Commands
	Analyze AnalyzeCmd `cmd:"" help:"Build the dependency graph of a Go module and write the reports"`
	Watch   WatchCmd   `cmd:"" help:"Re-analyze whenever the sources change"`
	Serve   ServeCmd   `cmd:"" help:"Start MCP server (stdio transport)"`
	Init    InitCmd    `cmd:"" help:"Write a default .aerial-view.yaml"`
	Clean   CleanCmd   `cmd:"" help:"Delete the generated reports"`
}

// NewCLI creates a new CLI instance.
func NewCLI() *CLI {
	return &CLI{}
}

// Execute parses command-line arguments and executes the selected command.
func (c *CLI) Execute(args []string) error {
	parser, err := kong.New(c,
		kong.Name("aerial-view"),
		kong.Description("Bird's-eye dependency view of a Go codebase"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact:             true,
			NoExpandSubcommands: true,
		}),
		kong.Vars{
			"version": Version,
		},
	)
	if err != nil {
		return err
	}

	kongCtx, err := parser.Parse(args)
	if err != nil {
		return err
	}

	setupLogging(&c.Globals)
	return kongCtx.Run(&c.Globals)
}
