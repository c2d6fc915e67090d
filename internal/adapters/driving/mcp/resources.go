package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

const (
	// uriScheme is the custom URI scheme for chromasync resources.
	uriScheme = "chromasync://"
)

// registerResources registers all resource handlers with the MCP server.
func (s *Server) registerResources() {
	// Static resource for the remote collection list.
	s.server.AddResource(&mcp.Resource{
		URI:         uriScheme + "collections",
		Name:        "collections",
		Description: "Collections on the remote vector store",
		MIMEType:    "application/json",
	}, s.handleCollectionsResource)

	// Template for the manifest of a local collection.
	s.server.AddResourceTemplate(&mcp.ResourceTemplate{
		URITemplate: uriScheme + "local/{name}",
		Name:        "local-collection",
		Description: "Record count and manifest of a local collection",
		MIMEType:    "application/json",
	}, s.handleLocalResource)
}

// handleCollectionsResource returns the remote collections with their tags.
func (s *Server) handleCollectionsResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	collections, err := s.ports.Collections.List(ctx, s.ports.Settings.Remote)
	if err != nil {
		return nil, fmt.Errorf("listing collections: %w", err)
	}

	infos := make([]CollectionOutput, len(collections))
	for i := range collections {
		infos[i] = CollectionOutput{
			Name:       collections[i].Name,
			Model:      collections[i].Model(),
			Dimensions: collections[i].Dimensions(),
		}
	}

	return jsonResult(req.Params.URI, infos)
}

// handleLocalResource describes a local collection under the output directory.
func (s *Server) handleLocalResource(
	ctx context.Context,
	req *mcp.ReadResourceRequest,
) (*mcp.ReadResourceResult, error) {
	name := extractLocalName(req.Params.URI)
	if name == "" {
		return nil, mcp.ResourceNotFoundError(req.Params.URI)
	}

	info, err := s.ports.Collections.LocalInfo(ctx, s.ports.Settings.OutputDir, name)
	if err != nil {
		if domain.IsNotFound(err) {
			return nil, mcp.ResourceNotFoundError(req.Params.URI)
		}
		return nil, fmt.Errorf("reading local collection: %w", err)
	}

	type localInfo struct {
		Name         string    `json:"name"`
		Records      int       `json:"records"`
		Model        string    `json:"model,omitempty"`
		Dimensions   int       `json:"dimensions,omitempty"`
		ChunkSize    int       `json:"chunk_size,omitempty"`
		ChunkOverlap int       `json:"chunk_overlap,omitempty"`
		LastRunID    string    `json:"last_run_id,omitempty"`
		UpdatedAt    time.Time `json:"updated_at,omitzero"`
	}
	out := localInfo{Name: info.Name, Records: info.Records}
	if m := info.Manifest; m != nil {
		out.Model = m.ModelName
		out.Dimensions = m.EmbeddingDimensionality
		out.ChunkSize = m.ChunkSize
		out.ChunkOverlap = m.ChunkOverlap
		out.LastRunID = m.LastRunID
		out.UpdatedAt = m.UpdatedAt
	}

	return jsonResult(req.Params.URI, out)
}

func jsonResult(uri string, v any) (*mcp.ReadResourceResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshalling resource: %w", err)
	}

	return &mcp.ReadResourceResult{
		Contents: []*mcp.ResourceContents{{
			URI:      uri,
			MIMEType: "application/json",
			Text:     string(data),
		}},
	}, nil
}

// extractLocalName extracts the collection name from chromasync://local/{name}.
func extractLocalName(uri string) string {
	const prefix = uriScheme + "local/"

	if !strings.HasPrefix(uri, prefix) {
		return ""
	}

	name := strings.TrimPrefix(uri, prefix)
	if strings.Contains(name, "/") {
		return ""
	}
	return name
}
