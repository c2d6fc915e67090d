package mcp

import (
	"github.com/custodia-labs/chromasync/internal/core/domain"
	"github.com/custodia-labs/chromasync/internal/core/ports/driving"
)

// Ports aggregates all driving port interfaces required by the MCP server.
// This provides a single injection point for dependency injection.
type Ports struct {
	// Index runs and plans archive syncs.
	Index driving.IndexService

	// Collections lists remote collections and reads local manifests.
	Collections driving.CollectionService

	// Settings are the base settings every tool call starts from.
	Settings domain.RunSettings
}

// Validate ensures all required ports are set.
// Returns an error if any required port is nil.
func (p *Ports) Validate() error {
	if p.Index == nil {
		return ErrMissingIndexService
	}
	if p.Collections == nil {
		return ErrMissingCollectionService
	}
	return nil
}
