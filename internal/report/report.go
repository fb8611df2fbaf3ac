// Package report writes the outputs of an analysis run: the interactive
// HTML view, the JSON snapshot and CSV data tables.
package report

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/Benny93/aerial-view/internal/config"
	"github.com/Benny93/aerial-view/internal/ingestion"
)

// Output file names.
const (
	ViewFile          = "dependency-view.html"
	SnapshotFile      = "dependency-graph.json"
	UnitsFile         = "units.csv"
	RelationshipsFile = "relationships.csv"
	ExcludedFile      = "excluded-sources.csv"
	UnhandledFile     = "unhandled-types.csv"
)

// Files lists every file Write can produce.
var Files = []string{ViewFile, SnapshotFile, UnitsFile, RelationshipsFile, ExcludedFile, UnhandledFile}

// Write renders the formats selected in cfg for res into dir, creating it
// if needed. It returns the paths written, in a fixed order.
func Write(dir, title string, res *ingestion.Result, cfg *config.Config) ([]string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating output directory: %w", err)
	}

	var written []string
	emit := func(name string, render func(io.Writer) error) error {
		path := filepath.Join(dir, name)
		if err := writeFile(path, render); err != nil {
			return err
		}
		written = append(written, path)
		return nil
	}

	if cfg.GenerateView && cfg.HasFormat(config.FormatHTML) {
		data := NewViewData(title, res.Scope, res.Snapshot, res.Stats.Units, res.Stats.Truncated)
		if err := emit(ViewFile, func(w io.Writer) error { return WriteView(w, data) }); err != nil {
			return nil, err
		}
	}

	if cfg.HasFormat(config.FormatJSON) {
		if err := emit(SnapshotFile, func(w io.Writer) error { return WriteJSON(w, res.Snapshot) }); err != nil {
			return nil, err
		}
	}

	if cfg.HasFormat(config.FormatCSV) {
		tables := []struct {
			name   string
			render func(io.Writer) error
		}{
			{UnitsFile, func(w io.Writer) error { return WriteUnitsCSV(w, res.Snapshot.Units) }},
			{RelationshipsFile, func(w io.Writer) error { return WriteRelationshipsCSV(w, res.Snapshot.Relationships) }},
			{ExcludedFile, func(w io.Writer) error { return WriteExcludedCSV(w, res.Excluded) }},
			{UnhandledFile, func(w io.Writer) error { return WriteUnhandledCSV(w, res.Unhandled) }},
		}
		for _, table := range tables {
			if err := emit(table.name, table.render); err != nil {
				return nil, err
			}
		}
	}

	return written, nil
}

func writeFile(path string, render func(io.Writer) error) (err error) {
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("creating %s: %w", path, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("closing %s: %w", path, cerr)
		}
	}()
	return render(f)
}
