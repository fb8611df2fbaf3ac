// Package mcp provides the MCP (Model Context Protocol) server for aerial-view.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Benny93/aerial-view/internal/graph"
	"github.com/Benny93/aerial-view/internal/ingestion"
)

// Tool and resource names.
const (
	ToolView = "aerial_view"
	ToolUnit = "aerial_unit"

	ResourceView    = "aerial://view"
	ResourceSchemas = "aerial://schemas/"
)

// ErrNoAnalysis is returned when a unit is looked up before any run.
var ErrNoAnalysis = errors.New("no analysis has been run yet; call " + ToolView + " first")

// Analyzer runs one analysis. ingestion.RunPipeline satisfies it once the
// progress callback is dropped.
type Analyzer func(ctx context.Context, opts ingestion.Options) (*ingestion.Result, error)

// DefaultAnalyzer runs the ingestion pipeline without progress reporting.
func DefaultAnalyzer(ctx context.Context, opts ingestion.Options) (*ingestion.Result, error) {
	return ingestion.RunPipeline(ctx, opts, nil)
}

// ViewArgs are the arguments of the aerial_view tool.
type ViewArgs struct {
	Path         string   `json:"path,omitempty" jsonschema:"Directory of the Go module to analyze, defaults to the working directory"`
	MaxNodes     *int     `json:"max_nodes,omitempty" jsonschema:"Keep only the N most connected units, zero or less yields an empty view"`
	BasePackages []string `json:"base_packages,omitempty" jsonschema:"Package path prefixes that define the scope, defaults to the module path"`
	IncludeTests bool     `json:"include_tests,omitempty" jsonschema:"Also traverse _test.go files"`
}

// UnitArgs are the arguments of the aerial_unit tool.
type UnitArgs struct {
	ID string `json:"id" jsonschema:"Unit identifier such as example.com/app/store.DB"`
}

// Tool describes an MCP tool.
type Tool struct {
	Name        string
	Description string
	InputSchema *jsonschema.Schema
}

// Resource describes an MCP resource.
type Resource struct {
	URI         string
	Name        string
	Description string
	MimeType    string
}

// Server represents the MCP server. It keeps the result of the most recent
// aerial_view call; every call starts a fresh analysis.
type Server struct {
	analyzer Analyzer
	server   *mcp.Server

	mu     sync.RWMutex
	latest *ingestion.Result
}

// NewServer creates a new MCP server backed by analyzer that reports
// version to clients.
func NewServer(analyzer Analyzer, version string) *Server {
	if analyzer == nil {
		analyzer = DefaultAnalyzer
	}
	if version == "" {
		version = "dev"
	}
	s := &Server{analyzer: analyzer}

	s.server = mcp.NewServer(&mcp.Implementation{
		Name:    "aerial-view",
		Version: version,
	}, nil)

	s.registerTools()
	s.registerResources()

	return s
}

// ListTools returns all registered tools.
func (s *Server) ListTools() []Tool {
	return []Tool{
		{
			Name:        ToolView,
			Description: "Analyze a Go module and return its type-level dependency graph, optionally bounded to the most connected units.",
			InputSchema: mustSchema[ViewArgs](),
		},
		{
			Name:        ToolUnit,
			Description: "Show the reference counters and relationships of one unit from the most recent analysis.",
			InputSchema: mustSchema[UnitArgs](),
		},
	}
}

// ListResources returns all registered resources.
func (s *Server) ListResources() []Resource {
	resources := []Resource{
		{
			URI:         ResourceView,
			Name:        "Dependency view",
			Description: "Snapshot JSON of the most recent analysis",
			MimeType:    "application/json",
		},
	}
	for _, tool := range s.ListTools() {
		resources = append(resources, Resource{
			URI:         ResourceSchemas + tool.Name,
			Name:        tool.Name + " schema",
			Description: "JSON schema for the arguments of " + tool.Name,
			MimeType:    "application/schema+json",
		})
	}
	return resources
}

// CallTool executes a tool with the given arguments.
func (s *Server) CallTool(ctx context.Context, name string, args map[string]any) (string, error) {
	switch name {
	case ToolView:
		var in ViewArgs
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleView(ctx, in)
	case ToolUnit:
		var in UnitArgs
		if err := decodeArgs(args, &in); err != nil {
			return "", err
		}
		return s.handleUnit(in)
	default:
		return "", fmt.Errorf("unknown tool: %s", name)
	}
}

// ReadResource reads a resource by URI.
func (s *Server) ReadResource(ctx context.Context, uri string) (string, error) {
	if uri == ResourceView {
		return s.viewJSON()
	}
	if tool, ok := strings.CutPrefix(uri, ResourceSchemas); ok {
		for _, t := range s.ListTools() {
			if t.Name == tool {
				return marshalIndent(t.InputSchema)
			}
		}
	}
	return "", fmt.Errorf("unknown resource: %s", uri)
}

// Latest returns the result of the most recent successful analysis, or nil.
func (s *Server) Latest() *ingestion.Result {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.latest
}

// Run serves MCP over stdin/stdout until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// Connect serves a single session over t.
func (s *Server) Connect(ctx context.Context, t mcp.Transport) (*mcp.ServerSession, error) {
	return s.server.Connect(ctx, t, nil)
}

func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolView,
		Description: s.ListTools()[0].Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args ViewArgs) (*mcp.CallToolResult, any, error) {
		out, err := s.handleView(ctx, args)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out), nil, nil
	})

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        ToolUnit,
		Description: s.ListTools()[1].Description,
	}, func(ctx context.Context, req *mcp.CallToolRequest, args UnitArgs) (*mcp.CallToolResult, any, error) {
		out, err := s.handleUnit(args)
		if err != nil {
			return errorResult(err), nil, nil
		}
		return textResult(out), nil, nil
	})
}

func (s *Server) registerResources() {
	for _, res := range s.ListResources() {
		uri := res.URI
		s.server.AddResource(&mcp.Resource{
			URI:         uri,
			Name:        res.Name,
			Description: res.Description,
			MIMEType:    res.MimeType,
		}, func(ctx context.Context, req *mcp.ReadResourceRequest) (*mcp.ReadResourceResult, error) {
			text, err := s.ReadResource(ctx, uri)
			if err != nil {
				return nil, err
			}
			return &mcp.ReadResourceResult{
				Contents: []*mcp.ResourceContents{
					{URI: uri, MIMEType: res.MimeType, Text: text},
				},
			}, nil
		})
	}
}

type viewResponse struct {
	Scope     []string                 `json:"scope"`
	Stats     ingestion.PipelineResult `json:"stats"`
	Snapshot  graph.SerializableGraph  `json:"snapshot"`
	Excluded  int                      `json:"excludedSources"`
	Unhandled int                      `json:"unhandledTypes"`
}

func (s *Server) handleView(ctx context.Context, args ViewArgs) (string, error) {
	dir := args.Path
	if dir == "" {
		dir = "."
	}

	res, err := s.analyzer(ctx, ingestion.Options{
		Dir:          dir,
		BasePackages: args.BasePackages,
		IncludeTests: args.IncludeTests,
		MaxNodes:     args.MaxNodes,
	})
	if err != nil {
		return "", fmt.Errorf("analyzing %s: %w", dir, err)
	}

	s.mu.Lock()
	s.latest = res
	s.mu.Unlock()
	slog.Debug("mcp analysis stored", "dir", dir, "units", res.Stats.Units)

	return marshalIndent(viewResponse{
		Scope:     res.Scope,
		Stats:     res.Stats,
		Snapshot:  res.Snapshot,
		Excluded:  len(res.Excluded),
		Unhandled: len(res.Unhandled),
	})
}

type unitResponse struct {
	graph.SerializableUnit
	InView   bool                             `json:"inView"`
	Incoming []graph.SerializableRelationship `json:"incoming"`
	Outgoing []graph.SerializableRelationship `json:"outgoing"`
}

func (s *Server) handleUnit(args UnitArgs) (string, error) {
	if args.ID == "" {
		return "", errors.New("id is required")
	}
	res := s.Latest()
	if res == nil || res.Graph == nil {
		return "", ErrNoAnalysis
	}

	unit, ok := res.Graph.Unit(args.ID)
	if !ok {
		return "", fmt.Errorf("unit not found: %s", args.ID)
	}

	inView := false
	if res.View != nil {
		inView = slices.ContainsFunc(res.View.Units(), func(u graph.Unit) bool { return u.ID == unit.ID })
	}

	return marshalIndent(unitResponse{
		SerializableUnit: graph.SerializableUnit{
			ID:            unit.ID,
			Namespace:     unit.Namespace,
			IncomingCount: unit.IncomingCount,
			OutgoingCount: unit.OutgoingCount,
			OwnerLabel:    unit.OwnerLabel,
		},
		InView:   inView,
		Incoming: serializeRelationships(res.Graph.Incoming(unit.ID)),
		Outgoing: serializeRelationships(res.Graph.Outgoing(unit.ID)),
	})
}

func serializeRelationships(rels []graph.Relationship) []graph.SerializableRelationship {
	out := make([]graph.SerializableRelationship, 0, len(rels))
	for _, r := range rels {
		out = append(out, graph.SerializableRelationship{SourceID: r.SourceID, TargetID: r.TargetID, Weight: r.Weight})
	}
	return out
}

func (s *Server) viewJSON() (string, error) {
	res := s.Latest()
	if res == nil {
		return "", ErrNoAnalysis
	}
	return marshalIndent(res.Snapshot)
}

func decodeArgs(args map[string]any, dst any) error {
	data, err := json.Marshal(args)
	if err != nil {
		return fmt.Errorf("encoding arguments: %w", err)
	}
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("invalid arguments: %w", err)
	}
	return nil
}

func mustSchema[T any]() *jsonschema.Schema {
	schema, err := jsonschema.For[T](nil)
	if err != nil {
		panic(fmt.Sprintf("inferring schema: %v", err))
	}
	return schema
}

func marshalIndent(v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding response: %w", err)
	}
	return string(data), nil
}

func textResult(text string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: text}},
	}
}

func errorResult(err error) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: "Error: " + err.Error()}},
		IsError: true,
	}
}
