package ticket

import (
	"context"
	"errors"

	"github.com/rack-io/rack/pkg/protocol"
)

// ErrNotFound is returned when no ticket has the requested ID.
var ErrNotFound = errors.New("ticket not found")

// Store holds support tickets. Tickets are never deleted.
type Store interface {
	// Save inserts a ticket or replaces the ticket with the same ID.
	Save(ctx context.Context, t *protocol.Ticket) error
	// Get retrieves a ticket by ID.
	Get(ctx context.Context, id string) (*protocol.Ticket, error)
	// List returns tickets matching the filter in insertion order.
	List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error)
	// Update applies the non-nil patch fields and stamps the last update time.
	Update(ctx context.Context, id string, patch Patch) (*protocol.Ticket, error)
}

// Filter constrains ticket list queries.
type Filter struct {
	Status   *protocol.TicketStatus
	Priority *protocol.TicketPriority
	Query    string // text search on subject, description and customer
	Limit    int    // 0 = no limit
}

// Patch describes an update. Nil fields are left unchanged.
type Patch struct {
	Status   *protocol.TicketStatus
	Priority *protocol.TicketPriority
}

// Empty reports whether the patch changes nothing but the update time.
func (p Patch) Empty() bool {
	return p.Status == nil && p.Priority == nil
}
