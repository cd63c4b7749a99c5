// Package mcpserver provides an MCP (Model Context Protocol) server
// that exposes model introspection tools for LLM integration via stdio transport.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/starford/modelstore/internal/models"
	"github.com/starford/modelstore/internal/recordservice"
	"github.com/starford/modelstore/internal/store"
)

const schemaFormatURI = "modelstore://schema-format"

// ModelLister reports the model names known to the environment.
type ModelLister interface {
	Names() []string
}

// Server wraps the MCP server with model introspection tools.
type Server struct {
	mcp     *server.MCPServer
	store   *store.Store
	records *recordservice.Service
	models  ModelLister
}

// New creates a new MCP server with all tools registered. records may be
// nil, which leaves get_record unregistered.
func New(st *store.Store, records *recordservice.Service, lister ModelLister) *Server {
	s := &Server{store: st, records: records, models: lister}

	s.mcp = server.NewMCPServer(
		"modelstore",
		"1.0.0",
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
	)

	s.mcp.AddTool(mcp.NewTool("list_models",
		mcp.WithDescription("List the names of all declared model types."),
	), s.listModels)

	s.mcp.AddTool(mcp.NewTool("describe_model",
		mcp.WithDescription("Return the attributes and relationships of a model type as JSON."),
		mcp.WithString("model", mcp.Required(), mcp.Description("Model name, any casing (e.g. BlogPost or blog-post)")),
	), s.describeModel)

	s.mcp.AddTool(mcp.NewTool("model_exists",
		mcp.WithDescription("Check whether a model type is known to the schema."),
		mcp.WithString("model", mcp.Required(), mcp.Description("Model name")),
	), s.modelExists)

	s.mcp.AddTool(mcp.NewTool("relationship_meta",
		mcp.WithDescription("Return the metadata of one relationship of a model type."),
		mcp.WithString("model", mcp.Required(), mcp.Description("Model name")),
		mcp.WithString("key", mcp.Required(), mcp.Description("Relationship key (e.g. pets)")),
	), s.relationshipMeta)

	if records != nil {
		s.mcp.AddTool(mcp.NewTool("get_record",
			mcp.WithDescription("Read the attributes of a loaded record."),
			mcp.WithString("model", mcp.Required(), mcp.Description("Model name")),
			mcp.WithString("id", mcp.Required(), mcp.Description("Record id")),
		), s.getRecord)
	}

	s.mcp.AddTool(mcp.NewTool("get_schema_contract",
		mcp.WithDescription("Returns the schema declaration format. "+
			"Call this before writing schema sources to ensure correct structure."),
	), s.getSchemaContract)

	// Resource: schema format contract.
	s.mcp.AddResource(
		mcp.NewResource(schemaFormatURI, "Schema Format Contract",
			mcp.WithResourceDescription("Format of the YAML and CUE model declarations."),
			mcp.WithMIMEType("text/markdown"),
		),
		s.readSchemaFormatResource,
	)

	return s
}

// ServeStdio starts the MCP server on stdin/stdout.
func (s *Server) ServeStdio() error {
	return server.ServeStdio(s.mcp)
}

// MCPServer returns the underlying server for testing.
func (s *Server) MCPServer() *server.MCPServer {
	return s.mcp
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	out, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(string(out)), nil
}

func (s *Server) listModels(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	names := s.models.Names()
	if len(names) == 0 {
		return mcp.NewToolResultText("no models declared"), nil
	}
	return mcp.NewToolResultText(strings.Join(names, "\n")), nil
}

func (s *Server) describeModel(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	attrs, err := s.store.AttributesDefinitionFor(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	rels, err := s.store.RelationshipsDefinitionFor(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	canonical, _ := s.store.NormalizeModelName(name)
	return jsonResult(struct {
		Name          string                         `json:"name"`
		Attributes    models.AttributesDefinition    `json:"attributes"`
		Relationships models.RelationshipsDefinition `json:"relationships"`
	}{canonical, attrs, rels})
}

func (s *Server) modelExists(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	ok, err := s.store.DoesTypeExist(name)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return mcp.NewToolResultText(fmt.Sprintf("%t", ok)), nil
}

func (s *Server) relationshipMeta(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	key, err := req.RequireString("key")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	meta, ok, err := s.store.RelationshipMetaFor(name, key)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if !ok {
		return mcp.NewToolResultError(fmt.Sprintf("no relationship %q on %s", key, name)), nil
	}
	return jsonResult(meta)
}

func (s *Server) getRecord(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	name, err := req.RequireString("model")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	id, err := req.RequireString("id")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	detail, err := s.records.Describe(ctx, models.Identifier{Type: name, ID: id})
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	return jsonResult(detail)
}

func (s *Server) getSchemaContract(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	return mcp.NewToolResultText(SchemaFormatContract), nil
}

func (s *Server) readSchemaFormatResource(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
	return []mcp.ResourceContents{
		mcp.TextResourceContents{
			URI:      schemaFormatURI,
			MIMEType: "text/markdown",
			Text:     SchemaFormatContract,
		},
	}, nil
}
