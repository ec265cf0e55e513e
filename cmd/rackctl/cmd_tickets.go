package main

import (
	"encoding/json"
	"fmt"
	"net/url"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/rack-io/rack/pkg/protocol"
)

var ticketsFlags struct {
	status   string
	priority string
	query    string
	limit    int
}

var ticketsCmd = &cobra.Command{
	Use:   "tickets",
	Short: "Inspect support tickets",
}

var ticketsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List tickets",
	RunE:  runTicketsList,
}

var ticketsShowCmd = &cobra.Command{
	Use:   "show <id>",
	Short: "Show ticket details",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		body, err := apiGet("/api/tickets/" + url.PathEscape(args[0]))
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), prettyJSON(body))
		return nil
	},
}

func init() {
	f := ticketsListCmd.Flags()
	f.StringVar(&ticketsFlags.status, "status", "", "Filter by status (open|in-progress|resolved|escalated)")
	f.StringVar(&ticketsFlags.priority, "priority", "", "Filter by priority (low|medium|high|critical)")
	f.StringVarP(&ticketsFlags.query, "query", "q", "", "Text search")
	f.IntVar(&ticketsFlags.limit, "limit", 50, "Max results")

	ticketsCmd.AddCommand(ticketsListCmd)
	ticketsCmd.AddCommand(ticketsShowCmd)
}

func runTicketsList(cmd *cobra.Command, _ []string) error {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(ticketsFlags.limit))
	if ticketsFlags.status != "" {
		q.Set("status", ticketsFlags.status)
	}
	if ticketsFlags.priority != "" {
		q.Set("priority", ticketsFlags.priority)
	}
	if ticketsFlags.query != "" {
		q.Set("q", ticketsFlags.query)
	}

	body, err := apiGet("/api/tickets?" + q.Encode())
	if err != nil {
		return err
	}
	var tickets []protocol.Ticket
	if err := json.Unmarshal(body, &tickets); err != nil {
		return fmt.Errorf("decode tickets: %w", err)
	}
	out := cmd.OutOrStdout()
	for _, t := range tickets {
		fmt.Fprintf(out, "%-10s %-12s %-9s %-16s %s\n", t.ID, t.Status, t.Priority, t.CustomerName, t.Subject)
	}
	return nil
}
