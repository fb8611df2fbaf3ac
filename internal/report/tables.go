package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strconv"

	"github.com/Benny93/aerial-view/internal/graph"
	"github.com/Benny93/aerial-view/internal/ingestion"
	"github.com/Benny93/aerial-view/internal/parsers"
)

// WriteJSON writes snap as indented JSON followed by a newline.
func WriteJSON(w io.Writer, snap graph.SerializableGraph) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}

// WriteUnitsCSV writes one row per unit of the view.
func WriteUnitsCSV(w io.Writer, units []graph.SerializableUnit) error {
	rows := make([][]string, 0, len(units))
	for _, u := range units {
		rows = append(rows, []string{
			u.ID,
			u.Namespace,
			strconv.Itoa(u.IncomingCount),
			strconv.Itoa(u.OutgoingCount),
			u.OwnerLabel,
		})
	}
	return writeCSV(w, []string{"id", "namespace", "incoming_count", "outgoing_count", "owner_label"}, rows)
}

// WriteRelationshipsCSV writes one row per relationship of the view.
func WriteRelationshipsCSV(w io.Writer, rels []graph.SerializableRelationship) error {
	rows := make([][]string, 0, len(rels))
	for _, r := range rels {
		rows = append(rows, []string{r.SourceID, r.TargetID, strconv.Itoa(r.Weight)})
	}
	return writeCSV(w, []string{"source_id", "target_id", "weight"}, rows)
}

// WriteExcludedCSV writes the files skipped because their package is out of scope.
func WriteExcludedCSV(w io.Writer, excluded []ingestion.ExcludedSource) error {
	rows := make([][]string, 0, len(excluded))
	for _, e := range excluded {
		rows = append(rows, []string{e.Path, e.Package})
	}
	return writeCSV(w, []string{"path", "package"}, rows)
}

// WriteUnhandledCSV writes the referenced types that could not be mapped to a unit.
func WriteUnhandledCSV(w io.Writer, unhandled []parsers.UnhandledType) error {
	rows := make([][]string, 0, len(unhandled))
	for _, u := range unhandled {
		rows = append(rows, []string{u.Kind, u.Type, u.Position})
	}
	return writeCSV(w, []string{"kind", "type", "position"}, rows)
}

func writeCSV(w io.Writer, header []string, rows [][]string) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("writing csv header: %w", err)
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("writing csv rows: %w", err)
	}
	return nil
}
