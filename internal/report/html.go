package report

import (
	_ "embed"
	"fmt"
	"html/template"
	"io"
	"time"

	"github.com/Benny93/aerial-view/internal/graph"
)

//go:embed template.html
var viewTemplateSource string

var viewTemplate = template.Must(template.New("view").Parse(viewTemplateSource))

// ViewData is the input of the HTML view.
type ViewData struct {
	Title     string
	Scope     []string
	Graph     graph.SerializableGraph
	Shown     int
	Total     int
	Truncated bool
	Generated string
}

// NewViewData describes snap for rendering.
func NewViewData(title string, scope []string, snap graph.SerializableGraph, total int, truncated bool) ViewData {
	return ViewData{
		Title:     title,
		Scope:     scope,
		Graph:     snap,
		Shown:     len(snap.Units),
		Total:     total,
		Truncated: truncated,
		Generated: time.Now().UTC().Format(time.RFC3339),
	}
}

// WriteView renders the interactive force-directed view. The snapshot is
// embedded as a JSON literal in the page script.
func WriteView(w io.Writer, data ViewData) error {
	if err := viewTemplate.Execute(w, data); err != nil {
		return fmt.Errorf("rendering view: %w", err)
	}
	return nil
}
