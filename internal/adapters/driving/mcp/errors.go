// Package mcp provides an MCP (Model Context Protocol) server adapter for chromasync.
// It lets AI assistants plan and run archive syncs and inspect collections.
package mcp

import "errors"

// ErrMissingIndexService is returned when the index service is not provided.
var ErrMissingIndexService = errors.New("mcp: index service is required")

// ErrMissingCollectionService is returned when the collection service is not provided.
var ErrMissingCollectionService = errors.New("mcp: collection service is required")
