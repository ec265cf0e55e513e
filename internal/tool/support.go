package tool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/rack-io/rack/internal/connector"
	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/pkg/protocol"
)

// Action names declared to the model.
const (
	ListTicketsName      = "list_tickets"
	GetTicketDetailsName = "get_ticket_details"
	UpdateTicketName     = "update_ticket"
	IssueRefundName      = "issue_refund"
	EscalateName         = gate.EscalateAction
)

// AutonomousRefundLimit is the largest refund the agent may issue on its own.
const AutonomousRefundLimit = 50

// RegisterSupportTools registers the five support actions in declaration order.
func RegisterSupportTools(r *Registry, store ticket.Store, pager connector.Pager, logger *slog.Logger) {
	if logger == nil {
		logger = slog.Default()
	}
	r.Register(&ListTicketsTool{Store: store})
	r.Register(&GetTicketDetailsTool{Store: store})
	r.Register(&UpdateTicketTool{Store: store, Logger: logger})
	r.Register(&IssueRefundTool{})
	r.Register(&EscalateTool{Pager: pager, Logger: logger})
}

// --- list_tickets ---

// ListTicketsTool reports how many tickets exist.
type ListTicketsTool struct {
	Store ticket.Store
}

func (t *ListTicketsTool) Name() string { return ListTicketsName }
func (t *ListTicketsTool) Description() string {
	return "Retrieve a list of all active customer support tickets."
}
func (t *ListTicketsTool) Parameters() map[string]any {
	return map[string]any{"type": "object", "properties": map[string]any{}}
}

func (t *ListTicketsTool) Execute(ctx context.Context, _ map[string]any) (string, error) {
	tickets, err := t.Store.List(ctx, ticket.Filter{})
	if err != nil {
		return "", fmt.Errorf("list_tickets: %w", err)
	}
	return fmt.Sprintf("I've retrieved the ticket list. There are %d tickets available.", len(tickets)), nil
}

// --- get_ticket_details ---

// GetTicketDetailsTool describes one ticket and focuses it.
type GetTicketDetailsTool struct {
	Store ticket.Store
}

func (t *GetTicketDetailsTool) Name() string { return GetTicketDetailsName }
func (t *GetTicketDetailsTool) Description() string {
	return "Get full details for a specific ticket by its ID."
}
func (t *GetTicketDetailsTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId": map[string]any{"type": "string", "description": "The unique ID of the ticket (e.g., TKT-1001)"},
		},
		"required": []string{"ticketId"},
	}
}

func (t *GetTicketDetailsTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	id := getString(params, "ticketId")
	tk, err := t.Store.Get(ctx, id)
	if errors.Is(err, ticket.ErrNotFound) {
		return fmt.Sprintf("I couldn't find a ticket with ID %s.", id), nil
	}
	if err != nil {
		return "", fmt.Errorf("get_ticket_details: %w", err)
	}
	focusTicket(ctx, tk.ID)
	return fmt.Sprintf("Found details for %s: %s. Status: %s. Priority: %s. Customer: %s. Description: %s",
		tk.ID, tk.Subject, tk.Status, tk.Priority, tk.CustomerName, tk.Description), nil
}

// --- update_ticket ---

// UpdateTicketTool changes a ticket's status and/or priority.
type UpdateTicketTool struct {
	Store  ticket.Store
	Logger *slog.Logger
}

func (t *UpdateTicketTool) Name() string { return UpdateTicketName }
func (t *UpdateTicketTool) Description() string {
	return "Update the status or priority of a support ticket."
}
func (t *UpdateTicketTool) Parameters() map[string]any {
	statuses := make([]string, len(protocol.TicketStatuses))
	for i, s := range protocol.TicketStatuses {
		statuses[i] = string(s)
	}
	priorities := make([]string, len(protocol.TicketPriorities))
	for i, p := range protocol.TicketPriorities {
		priorities[i] = string(p)
	}
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"ticketId": map[string]any{"type": "string"},
			"status":   map[string]any{"type": "string", "enum": statuses},
			"priority": map[string]any{"type": "string", "enum": priorities},
		},
		"required": []string{"ticketId"},
	}
}

func (t *UpdateTicketTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	id := getString(params, "ticketId")

	var patch ticket.Patch
	if s := getString(params, "status"); s != "" {
		status := protocol.TicketStatus(s)
		if !status.Valid() {
			return "", fmt.Errorf("update_ticket: invalid status %q", s)
		}
		patch.Status = &status
	}
	if p := getString(params, "priority"); p != "" {
		priority := protocol.TicketPriority(p)
		if !priority.Valid() {
			return "", fmt.Errorf("update_ticket: invalid priority %q", p)
		}
		patch.Priority = &priority
	}

	_, err := t.Store.Update(ctx, id, patch)
	switch {
	case errors.Is(err, ticket.ErrNotFound):
		// The confirmation is sent regardless; the miss is only logged and audited.
		t.logger().Warn("update_ticket: unknown ticket", "ticket", id)
		noteTurn(ctx, "unknown ticket")
	case err != nil:
		return "", fmt.Errorf("update_ticket: %w", err)
	}
	return fmt.Sprintf("Ticket %s has been updated successfully.", id), nil
}

func (t *UpdateTicketTool) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// --- issue_refund ---

// IssueRefundTool confirms a refund within the autonomous limit. No payment is
// executed.
type IssueRefundTool struct{}

func (t *IssueRefundTool) Name() string { return IssueRefundName }
func (t *IssueRefundTool) Description() string {
	return fmt.Sprintf("Propose a refund (max $%d allowed autonomously).", AutonomousRefundLimit)
}
func (t *IssueRefundTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"amount": map[string]any{"type": "number", "description": "Requested refund amount in USD"},
		},
	}
}

func (t *IssueRefundTool) Execute(_ context.Context, _ map[string]any) (string, error) {
	return fmt.Sprintf("Refund request for $%d initiated. This is within my autonomous limit.", AutonomousRefundLimit), nil
}

// --- escalate_to_human ---

// EscalateTool hands the conversation to a human supervisor. It runs for the
// explicit escalation action and for any action whose verdict escalates.
type EscalateTool struct {
	Pager  connector.Pager // optional
	Logger *slog.Logger
}

func (t *EscalateTool) Name() string { return EscalateName }
func (t *EscalateTool) Description() string {
	return "Trigger human-in-the-loop escalation when AI cannot resolve or lacks authority."
}
func (t *EscalateTool) Parameters() map[string]any {
	return map[string]any{
		"type": "object",
		"properties": map[string]any{
			"reason": map[string]any{"type": "string", "description": "Detailed reason for escalation."},
		},
		"required": []string{"reason"},
	}
}

func (t *EscalateTool) Execute(ctx context.Context, params map[string]any) (string, error) {
	v, _ := VerdictFromContext(ctx)
	markHITL(ctx)

	if t.Pager != nil {
		action := getString(params, "_action")
		if action == "" {
			action = EscalateName
		}
		err := t.Pager.Page(ctx, connector.Page{
			Action:   action,
			Verdict:  v,
			Customer: CustomerMessageFromContext(ctx),
			TicketID: getString(params, "ticketId"),
			Time:     time.Now().UTC(),
		})
		if err != nil {
			t.logger().Error("supervisor page failed", "action", action, "error", err)
		}
	}

	return OversightMessage(v.Reasoning), nil
}

func (t *EscalateTool) logger() *slog.Logger {
	if t.Logger != nil {
		return t.Logger
	}
	return slog.Default()
}

// OversightMessage is the reply sent when a turn is handed to a human.
func OversightMessage(reasoning string) string {
	return fmt.Sprintf("This request requires human oversight. %s. I've paged a support supervisor.",
		strings.TrimSuffix(reasoning, "."))
}

// RefusalMessage is the reply sent when an action is blocked.
func RefusalMessage(reasoning string) string {
	return "I apologize, but I am not authorized to perform that action: " + reasoning
}

// --- helpers ---

func getString(params map[string]any, key string) string {
	switch v := params[key].(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		return fmt.Sprint(v)
	}
}
