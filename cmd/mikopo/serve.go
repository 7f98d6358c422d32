package main

import (
	"github.com/spf13/cobra"

	"github.com/jkaninda/mikopo/internal/toolserver"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the MCP credit tool server over stdio",
	Long: `Run the credit tool server speaking MCP over stdin and stdout. The
coordinator launches this automatically; running it by hand is useful for
testing with an MCP client.`,
	RunE: runServe,
}

// runServe speaks MCP over stdio, so logs must stay on stderr.
func runServe(_ *cobra.Command, _ []string) error {
	logger := newLogger()
	return toolserver.New(version, logger).ServeStdio()
}
