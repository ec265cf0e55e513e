package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/internal/config"
)

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Configuration helpers",
}

var configValidateCmd = &cobra.Command{
	Use:   "validate <path>",
	Short: "Validate a rackd config file and its seed",
	Args:  cobra.ExactArgs(1),
	RunE:  runConfigValidate,
}

func init() {
	configCmd.AddCommand(configValidateCmd)
}

func runConfigValidate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(args[0])
	if err != nil {
		return fmt.Errorf("invalid: %w", err)
	}
	seed, err := config.LoadSeed(cmd.Context(), cfg.Session.SeedFile, cfg.Session.SeedToken)
	if err != nil {
		return fmt.Errorf("invalid seed: %w", err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "config is valid (%s/%s, %d tickets, %d guardrails)\n",
		cfg.Provider.Type, cfg.Provider.Model, len(seed.Tickets), len(seed.Guardrails))
	return nil
}
