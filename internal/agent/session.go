package agent

import (
	"context"
	"fmt"
	"time"

	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/pkg/protocol"
)

// Snapshot returns a read-only copy of the session.
func (a *Agent) Snapshot(ctx context.Context) (protocol.Snapshot, error) {
	tickets, err := a.opts.Store.List(ctx, ticket.Filter{})
	if err != nil {
		return protocol.Snapshot{}, fmt.Errorf("agent: snapshot: %w", err)
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	return protocol.Snapshot{
		Messages:       append([]protocol.Message{}, a.messages...),
		Tickets:        tickets,
		IsProcessing:   a.processing,
		HITLRequired:   a.hitl,
		ActiveTicketID: a.activeTicket,
		Guardrails:     a.Guardrails(),
	}, nil
}

// Messages returns the conversation so far.
func (a *Agent) Messages() []protocol.Message {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]protocol.Message{}, a.messages...)
}

// HITLPendingSince reports when the current human escalation started. ok is
// false when no escalation is pending.
func (a *Agent) HITLPendingSince() (since time.Time, ok bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.hitlSince, a.hitl
}

// ResolveHITL records that a human took over and clears the escalation flag.
// It reports false if no escalation was pending.
func (a *Agent) ResolveHITL(ctx context.Context, note string) bool {
	a.mu.Lock()
	if !a.hitl {
		a.mu.Unlock()
		return false
	}
	content := HumanJoinedText
	if note != "" {
		content += " " + note
	}
	a.messages = append(a.messages, a.newMessage(protocol.RoleSystem, content))
	a.hitl = false
	a.hitlSince = time.Time{}
	a.mu.Unlock()

	a.logger.Info("human escalation resolved")
	a.publish(ctx)
	return true
}

// Subscribe returns a channel receiving a snapshot after every session change.
// Slow subscribers only see the latest snapshot. Call cancel to unsubscribe.
func (a *Agent) Subscribe() (updates <-chan protocol.Snapshot, cancel func()) {
	ch := make(chan protocol.Snapshot, 1)

	a.subMu.Lock()
	id := a.nextID
	a.nextID++
	a.subs[id] = ch
	a.subMu.Unlock()

	return ch, func() {
		a.subMu.Lock()
		defer a.subMu.Unlock()
		if _, ok := a.subs[id]; ok {
			delete(a.subs, id)
			close(ch)
		}
	}
}

func (a *Agent) publish(ctx context.Context) {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	if len(a.subs) == 0 {
		return
	}

	snap, err := a.Snapshot(ctx)
	if err != nil {
		a.logger.Warn("snapshot for subscribers failed", "error", err)
		return
	}
	for _, ch := range a.subs {
		// Drop a stale pending snapshot in favour of the new one.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- snap:
		default:
		}
	}
}
