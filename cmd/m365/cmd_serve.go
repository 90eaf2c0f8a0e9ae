package main

import (
	"context"

	"github.com/spf13/cobra"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"m365/internal/foreach"
	"m365/internal/logging"
	mcpserver "m365/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing run_pipeline,
list_operations, search_emails and find_files as tools, so an agent can
compose and run the same chains the run command accepts.

The server monitors for parent process death and self-terminates when the
client disconnects, to prevent zombie processes.`,
	RunE: runServe,
}

func runServe(cmd *cobra.Command, _ []string) error {
	reg, err := buildRegistry(cmd.Context(), cfg, &foreach.Options{})
	if err != nil {
		return err
	}
	srv := mcpserver.NewServer(reg, version)

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	mcpserver.WatchParent(ctx, cancel)

	logging.New("mcp").Info("starting m365 MCP server over stdio (parent watchdog active)")
	return srv.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}
