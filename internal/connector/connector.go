package connector

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/rack-io/rack/internal/metrics"
	"github.com/rack-io/rack/pkg/protocol"
)

// Pager notifies human supervisors that a conversation needs them.
type Pager interface {
	// Name returns the pager type (e.g., "slack", "telegram").
	Name() string
	// Page delivers one escalation notice.
	Page(ctx context.Context, p Page) error
}

// Page is an escalation notice for a supervisor.
type Page struct {
	Action   string           // action that triggered the escalation
	Verdict  protocol.Verdict // verdict the action was evaluated under
	Customer string           // customer message that started the turn
	TicketID string           // focused ticket, if any
	Reminder bool             // true when re-paging a still-pending escalation
	Time     time.Time
}

// Title is the one-line headline of the page.
func (p Page) Title() string {
	if p.Reminder {
		return "Reminder: support conversation still waiting for a supervisor"
	}
	return "Support conversation needs a supervisor"
}

// Lines returns the body of the page as plain-text lines.
func (p Page) Lines() []string {
	lines := []string{
		"Reason: " + p.Verdict.Reasoning,
		p.Verdict.Badge(),
	}
	if p.Action != "" {
		lines = append(lines, "Action: "+p.Action)
	}
	if p.TicketID != "" {
		lines = append(lines, "Ticket: "+p.TicketID)
	}
	if p.Customer != "" {
		lines = append(lines, fmt.Sprintf("Customer: %q", truncate(p.Customer, 280)))
	}
	return lines
}

// Text renders the page as plain text.
func (p Page) Text() string {
	return p.Title() + "\n" + strings.Join(p.Lines(), "\n")
}

// Multi fans a page out to several pagers. Every pager is tried; failures are
// joined.
type Multi []Pager

func (m Multi) Name() string { return "multi" }

func (m Multi) Page(ctx context.Context, p Page) error {
	var errs []error
	for _, pager := range m {
		err := pager.Page(ctx, p)
		metrics.RecordPage(pager.Name(), err)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pager.Name(), err))
		}
	}
	return errors.Join(errs...)
}

// truncate cuts s to at most max runes.
func truncate(s string, max int) string {
	if utf8.RuneCountInString(s) <= max {
		return s
	}
	r := []rune(s)
	return string(r[:max]) + "..."
}
