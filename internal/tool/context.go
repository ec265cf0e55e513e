package tool

import (
	"context"

	"github.com/rack-io/rack/pkg/protocol"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

const (
	turnStateKey = contextKey("turn_state")
	verdictKey   = contextKey("verdict")
	customerKey  = contextKey("customer_message")
)

// TurnState collects side effects that actions report back to the dispatcher.
type TurnState struct {
	FocusTicketID string
	HITL          bool
	Note          string // recorded in the audit trail
}

// WithTurnState returns a context carrying a fresh mutable TurnState.
func WithTurnState(ctx context.Context) (context.Context, *TurnState) {
	st := &TurnState{}
	return context.WithValue(ctx, turnStateKey, st), st
}

func turnState(ctx context.Context) *TurnState {
	if st, ok := ctx.Value(turnStateKey).(*TurnState); ok {
		return st
	}
	return nil
}

func focusTicket(ctx context.Context, id string) {
	if st := turnState(ctx); st != nil {
		st.FocusTicketID = id
	}
}

func markHITL(ctx context.Context) {
	if st := turnState(ctx); st != nil {
		st.HITL = true
	}
}

func noteTurn(ctx context.Context, note string) {
	if st := turnState(ctx); st != nil {
		st.Note = note
	}
}

// WithVerdict returns a context carrying the verdict an action runs under.
func WithVerdict(ctx context.Context, v protocol.Verdict) context.Context {
	return context.WithValue(ctx, verdictKey, v)
}

// VerdictFromContext returns the verdict set by WithVerdict.
func VerdictFromContext(ctx context.Context) (protocol.Verdict, bool) {
	v, ok := ctx.Value(verdictKey).(protocol.Verdict)
	return v, ok
}

// WithCustomerMessage returns a context carrying the customer text of the turn.
func WithCustomerMessage(ctx context.Context, text string) context.Context {
	return context.WithValue(ctx, customerKey, text)
}

// CustomerMessageFromContext returns the text set by WithCustomerMessage.
func CustomerMessageFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(customerKey).(string); ok {
		return v
	}
	return ""
}
