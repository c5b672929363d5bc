package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mfenderov/refstash/internal/mcp"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the MCP server",
	Long: `Start the MCP server for reference capture and retrieval.

The server communicates via stdio and provides the tools:
  - fetch_url: fetch a URL and save it as a reference
  - list_references, get_reference, promote_reference, delete_reference
  - fetch_links: fetch all outbound links of a saved reference

Example:
  refstash serve`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := GetConfig()

	app, err := buildComponents(cfg)
	if err != nil {
		return fmt.Errorf("failed to build components: %w", err)
	}
	defer app.browser.RequestShutdown()

	server := mcp.NewServer(mcp.Config{
		Name:    cfg.MCP.Name,
		Version: cfg.MCP.Version,
	}, app.store, app.fetcher, app.links, app.browser)

	fmt.Fprintln(cmd.ErrOrStderr(), "Starting MCP server...")

	return server.ServeStdio()
}
