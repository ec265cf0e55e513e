// rackctl is the RACK support CLI: policy dry-runs, a chat client for a
// running rackd, and an MCP server for other agents.
//
// Usage:
//
//	rackctl evaluate "<message>" [--intent=<action>] [--policy=<file>]
//	rackctl chat [-m "<message>"]
//	rackctl session
//	rackctl resolve [note]
//	rackctl tickets list [--status=<s>] [--priority=<p>] [-q <text>]
//	rackctl tickets show <id>
//	rackctl mcp [--seed=<file>]
//	rackctl config validate <path>
package main

import (
	"fmt"
	"os"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
)

// version is set at build time via -ldflags.
var version = "dev"

var rootFlags struct {
	apiURL string
	apiKey string
}

var rootCmd = &cobra.Command{
	Use:   "rackctl",
	Short: "Policy-governed customer support agent CLI",
	Long: "rackctl evaluates requests against the RACK (Risk, Authority, Control, Knowledge)\n" +
		"policy and talks to a running rackd daemon.",
	CompletionOptions: cobra.CompletionOptions{
		HiddenDefaultCmd: true,
	},
	SilenceUsage: true,
}

func init() {
	_ = godotenv.Load()

	f := rootCmd.PersistentFlags()
	f.StringVar(&rootFlags.apiURL, "api-url", envOr("RACK_API_URL", "http://localhost:8080"), "rackd API base URL")
	f.StringVar(&rootFlags.apiKey, "api-key", os.Getenv("RACK_API_KEY"), "rackd API key")

	rootCmd.AddCommand(evaluateCmd)
	rootCmd.AddCommand(chatCmd)
	rootCmd.AddCommand(sessionCmd)
	rootCmd.AddCommand(resolveCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(mcpCmd)
	rootCmd.AddCommand(configCmd)
	rootCmd.Version = version
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
