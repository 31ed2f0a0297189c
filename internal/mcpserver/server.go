// Package mcpserver exposes the engine's three read-only operations —
// parse, classify, and patterns_for — as MCP tools over stdio. Cache
// invalidation and telemetry subscription aren't exposed here since
// neither fits a synchronous request/response tool call; they're left to
// the CLI's watch command and direct Engine access.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/jsonschema-go/jsonschema"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/Zmaroo/RepoAnalyzer/internal/engine"
	"github.com/Zmaroo/RepoAnalyzer/internal/types"
)

// Server wraps one mcp-go server bound to one engine instance.
type Server struct {
	eng    *engine.Engine
	server *mcp.Server
}

// NewServer builds the MCP server and registers its tools. name/version
// identify this server to the connecting client.
func NewServer(eng *engine.Engine, name, version string) *Server {
	s := &Server{eng: eng}
	s.server = mcp.NewServer(&mcp.Implementation{Name: name, Version: version}, nil)
	s.registerTools()
	return s
}

// Start runs the server over stdio until ctx is cancelled or the
// transport reports an error.
func (s *Server) Start(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

func (s *Server) registerTools() {
	s.server.AddTool(&mcp.Tool{
		Name:        "parse",
		Description: "Parse a file's contents and return its classification, matched patterns, extracted blocks, and features.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":    {Type: "string", Description: "File path, used for language classification and cache keys"},
				"content": {Type: "string", Description: "File contents to parse"},
			},
			Required: []string{"path", "content"},
		},
	}, s.handleParse)

	s.server.AddTool(&mcp.Tool{
		Name:        "classify",
		Description: "Classify a file by path and a leading slice of its content, without running a full parse.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"path":    {Type: "string", Description: "File path"},
				"content": {Type: "string", Description: "Leading bytes of the file, enough to sniff shebangs/magic numbers"},
			},
			Required: []string{"path"},
		},
	}, s.handleClassify)

	s.server.AddTool(&mcp.Tool{
		Name:        "patterns_for",
		Description: "List every pattern registered for a language id, grouped by category.",
		InputSchema: &jsonschema.Schema{
			Type: "object",
			Properties: map[string]*jsonschema.Schema{
				"language_id": {Type: "string", Description: "Language identifier, e.g. 'python' or 'go'"},
			},
			Required: []string{"language_id"},
		},
	}, s.handlePatternsFor)
}

type parseParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

// parseResponse mirrors types.ParserResult but stringifies Errors, since
// the error interface carries no exported fields for json.Marshal to see.
type parseResponse struct {
	Success        bool                   `json:"success"`
	Classification types.Classification   `json:"classification"`
	Matches        []types.PatternMatch   `json:"matches"`
	Blocks         []types.ExtractedBlock `json:"blocks"`
	Features       types.FeatureSet       `json:"features"`
	Errors         []string               `json:"errors,omitempty"`
	Telemetry      types.PatternMetrics   `json:"telemetry"`
}

func (s *Server) handleParse(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params parseParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid parse arguments: %w", err)
	}

	result := s.eng.Parse(ctx, params.Path, []byte(params.Content), s.eng.DefaultParserOptions())
	errs := make([]string, 0, len(result.Errors))
	for _, e := range result.Errors {
		errs = append(errs, e.Error())
	}

	return createJSONResponse(parseResponse{
		Success:        result.Success,
		Classification: result.Classification,
		Matches:        result.Matches,
		Blocks:         result.Blocks,
		Features:       result.Features,
		Errors:         errs,
		Telemetry:      result.Telemetry,
	})
}

type classifyParams struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

func (s *Server) handleClassify(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params classifyParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid classify arguments: %w", err)
	}

	classification, err := s.eng.Classify(params.Path, []byte(params.Content))
	if err != nil {
		return createJSONResponse(map[string]string{"error": err.Error()})
	}
	return createJSONResponse(classification)
}

type patternsForParams struct {
	LanguageID string `json:"language_id"`
}

func (s *Server) handlePatternsFor(ctx context.Context, req *mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var params patternsForParams
	if err := json.Unmarshal(req.Params.Arguments, &params); err != nil {
		return nil, fmt.Errorf("invalid patterns_for arguments: %w", err)
	}
	return createJSONResponse(s.eng.PatternsFor(params.LanguageID))
}

// createJSONResponse marshals data as the single text block MCP tools
// return.
func createJSONResponse(data interface{}) (*mcp.CallToolResult, error) {
	content, err := json.Marshal(data)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal response data: %v", err)
	}
	return &mcp.CallToolResult{
		Content: []mcp.Content{&mcp.TextContent{Text: string(content)}},
	}, nil
}
