package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/custodia-labs/chromasync/internal/core/domain"
)

// ArchiveInput is the input schema of the plan and index tools.
type ArchiveInput struct {
	Archive     string `json:"archive" jsonschema:"path to a zip, tar, tar.gz, tar.zst or tar.lz4 archive, or a directory"`
	Name        string `json:"name,omitempty" jsonschema:"collection name (default: derived from the archive name)"`
	ResetRemote bool   `json:"reset_remote,omitempty" jsonschema:"drop and recreate the remote collection first"`
	NoSync      bool   `json:"no_sync,omitempty" jsonschema:"only build the local collection"`
}

// RunOutput is the output schema of the plan and index tools.
type RunOutput struct {
	RunID      string      `json:"run_id"`
	Collection string      `json:"collection"`
	Documents  int         `json:"documents"`
	Skipped    int         `json:"skipped"`
	Chunks     int         `json:"chunks"`
	Embedded   int         `json:"embedded"`
	Reused     int         `json:"reused"`
	Pruned     int         `json:"pruned"`
	Sync       *SyncOutput `json:"sync,omitempty"`
	Error      string      `json:"error,omitempty"`
}

// SyncOutput is the itemised remote outcome of a run.
type SyncOutput struct {
	State     string   `json:"state"`
	ToAdd     int      `json:"to_add"`
	ToUpdate  int      `json:"to_update"`
	ToDelete  int      `json:"to_delete"`
	Added     int      `json:"added"`
	Updated   int      `json:"updated"`
	Deleted   int      `json:"deleted"`
	FailedIDs []string `json:"failed_ids,omitempty"`
}

// ListCollectionsInput is the (empty) input of list_collections.
type ListCollectionsInput struct{}

// ListCollectionsOutput is the output schema of list_collections.
type ListCollectionsOutput struct {
	Collections []CollectionOutput `json:"collections"`
	Count       int                `json:"count"`
}

// CollectionOutput describes one remote collection.
type CollectionOutput struct {
	Name       string `json:"name"`
	Model      string `json:"model,omitempty"`
	Dimensions int    `json:"dimensions,omitempty"`
}

// registerTools registers all tool handlers with the MCP server.
func (s *Server) registerTools() {
	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "list_collections",
		Description: "List the collections on the remote vector store",
	}, s.handleListCollections)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "plan_archive",
		Description: "Show which chunks an index run would add, update and delete remotely, without changing the remote",
	}, s.handlePlan)

	mcp.AddTool(s.server, &mcp.Tool{
		Name:        "index_archive",
		Description: "Chunk, embed and store an archive locally, then sync it to the remote vector store",
	}, s.handleIndex)
}

// handleListCollections handles the list_collections tool invocation.
func (s *Server) handleListCollections(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	_ ListCollectionsInput,
) (*mcp.CallToolResult, ListCollectionsOutput, error) {
	collections, err := s.ports.Collections.List(ctx, s.ports.Settings.Remote)
	if err != nil {
		return nil, ListCollectionsOutput{}, err
	}

	output := ListCollectionsOutput{
		Collections: make([]CollectionOutput, len(collections)),
		Count:       len(collections),
	}
	for i := range collections {
		output.Collections[i] = CollectionOutput{
			Name:       collections[i].Name,
			Model:      collections[i].Model(),
			Dimensions: collections[i].Dimensions(),
		}
	}
	return nil, output, nil
}

// handlePlan handles the plan_archive tool invocation.
func (s *Server) handlePlan(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ArchiveInput,
) (*mcp.CallToolResult, RunOutput, error) {
	settings, err := s.settingsFor(input)
	if err != nil {
		return nil, RunOutput{}, err
	}
	report, err := s.ports.Index.Plan(ctx, input.Archive, settings, nil)
	return runResult(report, err)
}

// handleIndex handles the index_archive tool invocation.
func (s *Server) handleIndex(
	ctx context.Context,
	_ *mcp.CallToolRequest,
	input ArchiveInput,
) (*mcp.CallToolResult, RunOutput, error) {
	settings, err := s.settingsFor(input)
	if err != nil {
		return nil, RunOutput{}, err
	}
	settings.ResetRemote = settings.ResetRemote || input.ResetRemote
	settings.NoSync = settings.NoSync || input.NoSync

	report, err := s.ports.Index.Index(ctx, input.Archive, settings, nil)
	return runResult(report, err)
}

func (s *Server) settingsFor(input ArchiveInput) (domain.RunSettings, error) {
	if input.Archive == "" {
		return domain.RunSettings{}, fmt.Errorf("%w: archive is required", domain.ErrInvalidInput)
	}
	settings := s.ports.Settings
	if input.Name != "" {
		settings.Name = input.Name
	}
	// Tools never drop unrelated collections.
	settings.ResetAll = false
	return settings, nil
}

// runResult turns a run into tool output. Partial sync failures are
// reported in the output rather than as a tool error so the caller still
// sees which ids did not apply.
func runResult(report *domain.RunReport, err error) (*mcp.CallToolResult, RunOutput, error) {
	if report == nil {
		if err == nil {
			err = errors.New("run returned no report")
		}
		return nil, RunOutput{}, err
	}
	if err != nil && report.Sync == nil {
		return nil, RunOutput{}, err
	}

	output := RunOutput{
		RunID:      report.RunID,
		Collection: report.Collection,
		Documents:  report.Documents,
		Skipped:    report.Skipped,
		Chunks:     report.Chunks,
		Embedded:   report.Embedded,
		Reused:     report.Reused,
		Pruned:     report.Pruned,
	}
	if sum := report.Sync; sum != nil {
		output.Sync = &SyncOutput{
			State:     string(sum.State),
			ToAdd:     len(sum.Plan.ToAdd),
			ToUpdate:  len(sum.Plan.ToUpdate),
			ToDelete:  len(sum.Plan.ToDelete),
			Added:     sum.Added,
			Updated:   sum.Updated,
			Deleted:   sum.Deleted,
			FailedIDs: sum.FailedIDs(),
		}
	}
	if err != nil {
		output.Error = err.Error()
	}
	return nil, output, nil
}
