// Mikopo — multi-agent loan underwriting coordinator.
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"

	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "mikopo",
	Short: "Mikopo — multi-agent loan underwriting coordinator.",
	Long: `Mikopo coordinates loan underwriting across a fleet of specialized agents.
It brokers assessment calls to an MCP credit tool server, falls back to a
local decision engine when the tool server is unreachable, and supervises
the agent worker processes.`,
	RunE:          runGateway, // Default to gateway mode.
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.AddCommand(gatewayCmd, agentCmd, serveCmd, assessCmd, fleetCmd, toolsCmd, versionCmd)
	_ = godotenv.Load()
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}
