package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/pkg/protocol"
)

var sessionCmd = &cobra.Command{
	Use:   "session",
	Short: "Show the conversation and session flags",
	RunE:  runSession,
}

var resolveCmd = &cobra.Command{
	Use:   "resolve [note]",
	Short: "Mark the pending escalation as picked up by a human",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runResolve,
}

var healthCmd = &cobra.Command{
	Use:   "health",
	Short: "Check daemon health",
	RunE: func(cmd *cobra.Command, _ []string) error {
		body, err := apiGet("/api/health")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(body))
		return nil
	},
}

func runSession(cmd *cobra.Command, _ []string) error {
	body, err := apiGet("/api/session")
	if err != nil {
		return err
	}
	var snap protocol.Snapshot
	if err := json.Unmarshal(body, &snap); err != nil {
		return fmt.Errorf("decode session: %w", err)
	}

	out := cmd.OutOrStdout()
	for _, m := range snap.Messages {
		printMessage(out, m)
	}
	fmt.Fprintln(out)
	fmt.Fprintf(out, "Processing: %t\n", snap.IsProcessing)
	fmt.Fprintf(out, "HITL:       %t\n", snap.HITLRequired)
	if snap.ActiveTicketID != "" {
		fmt.Fprintf(out, "Ticket:     %s\n", snap.ActiveTicketID)
	}
	return nil
}

func runResolve(cmd *cobra.Command, args []string) error {
	var note string
	if len(args) > 0 {
		note = args[0]
	}
	if _, err := apiPost("/api/hitl/resolve", map[string]string{"note": note}); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "escalation resolved")
	return nil
}
