package cli

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/chromasync/internal/adapters/driving/mcp"
)

var mcpFlags settingsFlags

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "MCP server commands",
	Long:  `Commands for the Model Context Protocol (MCP) server integration.`,
}

var mcpServeCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the Model Context Protocol server for AI assistant integration.

The server exposes the tools list_collections, plan_archive and
index_archive. Tool calls start from the settings given here and in the
config file. By default the server communicates over stdio using JSON-RPC.

Use --port to start an HTTP server instead, which enables:
  - Testing with MCP Inspector web UI
  - Remote access via HTTP

Examples:
  # Stdio mode (default)
  chromasync mcp serve --remote-host chroma.internal

  # HTTP mode (for MCP Inspector, remote access)
  chromasync mcp serve --port 8090`,
	RunE: runMCPServe,
}

func init() {
	addSettingsFlags(mcpServeCmd, &mcpFlags)
	mcpServeCmd.Flags().IntP("port", "p", 0, "HTTP port (0 = use stdio)")
	mcpCmd.AddCommand(mcpServeCmd)
	rootCmd.AddCommand(mcpCmd)
}

func runMCPServe(cmd *cobra.Command, _ []string) error {
	port, err := cmd.Flags().GetInt("port")
	if err != nil {
		return fmt.Errorf("getting port flag: %w", err)
	}
	if indexService == nil || collectionService == nil {
		return errors.New("index and collection services not configured")
	}

	ports := &mcp.Ports{
		Index:       indexService,
		Collections: collectionService,
		Settings:    resolveSettings(cmd, &mcpFlags),
	}

	server, err := mcp.NewServer(ports, mcp.WithVersion(version))
	if err != nil {
		return err
	}

	var addr string
	if port > 0 {
		addr = fmt.Sprintf("localhost:%d", port)
		cmd.Printf("MCP server listening on http://%s\n", addr)
	}
	return server.Serve(cmd.Context(), addr)
}
