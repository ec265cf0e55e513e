package protocol

import "time"

// TicketStatus represents the lifecycle state of a support ticket.
type TicketStatus string

const (
	TicketOpen       TicketStatus = "open"
	TicketInProgress TicketStatus = "in-progress"
	TicketResolved   TicketStatus = "resolved"
	TicketEscalated  TicketStatus = "escalated"
)

// Valid reports whether s is a known ticket status.
func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketInProgress, TicketResolved, TicketEscalated:
		return true
	}
	return false
}

// TicketPriority ranks how urgently a ticket needs attention.
type TicketPriority string

const (
	PriorityLow      TicketPriority = "low"
	PriorityMedium   TicketPriority = "medium"
	PriorityHigh     TicketPriority = "high"
	PriorityCritical TicketPriority = "critical"
)

// Valid reports whether p is a known priority.
func (p TicketPriority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical:
		return true
	}
	return false
}

// TicketStatuses lists every status in display order.
var TicketStatuses = []TicketStatus{TicketOpen, TicketInProgress, TicketResolved, TicketEscalated}

// TicketPriorities lists every priority from lowest to highest.
var TicketPriorities = []TicketPriority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// Ticket is a customer support case.
type Ticket struct {
	ID           string         `json:"id" yaml:"id"`
	CustomerName string         `json:"customerName" yaml:"customer_name"`
	Subject      string         `json:"subject" yaml:"subject"`
	Description  string         `json:"description" yaml:"description"`
	Status       TicketStatus   `json:"status" yaml:"status"`
	Priority     TicketPriority `json:"priority" yaml:"priority"`
	CreatedAt    time.Time      `json:"createdAt" yaml:"created_at"`
	LastUpdate   time.Time      `json:"lastUpdate" yaml:"last_update"`
	Assignee     string         `json:"assignee,omitempty" yaml:"assignee,omitempty"`
}
