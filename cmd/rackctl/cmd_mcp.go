package main

import (
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/internal/config"
	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/mcp"
	"github.com/rack-io/rack/internal/policy"
)

var mcpFlags struct {
	seed   string
	policy string
}

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Serve the RACK policy as MCP tools over stdio",
	Long: `Starts an MCP server over stdin/stdout exposing rack_evaluate and
rack_guardrails. Logs go to stderr so they never corrupt the protocol stream.`,
	RunE: runMCP,
}

func init() {
	f := mcpCmd.Flags()
	f.StringVar(&mcpFlags.seed, "seed", "", "Seed file or URL supplying the guardrail list (default: built-in)")
	f.StringVar(&mcpFlags.policy, "policy", "", "Cedar dispatch policy file (default: built-in)")
}

func runMCP(cmd *cobra.Command, _ []string) error {
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	slog.SetDefault(logger)

	ctx := cmd.Context()
	seed, err := config.LoadSeed(ctx, mcpFlags.seed, os.Getenv("RACK_SEED_TOKEN"))
	if err != nil {
		return err
	}

	var g *gate.Gate
	if mcpFlags.policy != "" {
		g, err = gate.NewFromFile(mcpFlags.policy, logger)
	} else {
		g, err = gate.New(logger)
	}
	if err != nil {
		return err
	}

	srv := mcp.NewServer(policy.NewKeyword(), g, seed.Guardrails, version)
	logger.Info("starting rack MCP server over stdio", "guardrails", len(seed.Guardrails))
	return srv.Run(ctx)
}
