package agent

import (
	"context"
	"strings"
	"time"

	"github.com/rack-io/rack/internal/audit"
	"github.com/rack-io/rack/internal/metrics"
	"github.com/rack-io/rack/internal/tool"
	"github.com/rack-io/rack/pkg/protocol"
)

// Submit runs one conversation turn for the customer text and returns the
// message that closes it: the assistant reply, or a system error message when
// the model backend fails. Only ErrEmptyMessage and ErrBusy are returned as
// errors. The turn runs to completion even if ctx is cancelled.
func (a *Agent) Submit(ctx context.Context, text string) (protocol.Message, error) {
	if strings.TrimSpace(text) == "" {
		return protocol.Message{}, ErrEmptyMessage
	}

	a.mu.Lock()
	if a.processing {
		a.mu.Unlock()
		metrics.RecordTurn("busy")
		return protocol.Message{}, ErrBusy
	}
	a.processing = true
	a.messages = append(a.messages, a.newMessage(protocol.RoleUser, text))
	history := a.historyLocked()
	a.mu.Unlock()

	ctx = context.WithoutCancel(ctx)
	a.publish(ctx)
	start := time.Now()

	verdict := a.opts.Engine.Evaluate(text, "")
	metrics.RecordVerdict(string(verdict.Status), string(verdict.Risk))

	resp, err := a.callModel(ctx, history)
	if err != nil {
		a.logger.Error("model call failed", "provider", a.opts.Provider.Name(), "error", err)
		msg := a.newMessage(protocol.RoleSystem, OperationalErrorText)
		a.finish(ctx, msg, nil)
		metrics.RecordTurn("error")
		return msg, nil
	}

	var (
		actionText string
		isHITL     bool
		focus      string
	)
	dispatchCtx := tool.WithCustomerMessage(ctx, text)
	for _, call := range resp.ToolCalls {
		verdict = a.opts.Engine.Evaluate(text, call.Name)
		metrics.RecordVerdict(string(verdict.Status), string(verdict.Risk))

		res := a.opts.Dispatcher.Dispatch(dispatchCtx, call, verdict)
		// Only the last action's outcome is reported.
		actionText = res.Text
		isHITL = res.HITL
		if res.FocusTicketID != "" {
			focus = res.FocusTicketID
		}
	}

	content := actionText
	if content == "" {
		content = resp.Content
	}
	if content == "" {
		content = FallbackText
	}

	msg := a.newMessage(protocol.RoleAssistant, content)
	v := verdict.Clone()
	msg.Verdict = &v
	msg.IsHITL = isHITL

	a.mu.Lock()
	if focus != "" {
		a.activeTicket = focus
	}
	if isHITL && !a.hitl {
		a.hitlSince = a.now()
	}
	a.hitl = isHITL
	if !isHITL {
		a.hitlSince = time.Time{}
	}
	a.mu.Unlock()

	a.finish(ctx, msg, &v)
	metrics.RecordTurn("reply")
	a.logger.Info("turn complete",
		"message", msg.ID,
		"actions", len(resp.ToolCalls),
		"status", v.Status,
		"risk", v.Risk,
		"hitl", isHITL,
		"duration", time.Since(start),
	)
	return msg, nil
}

func (a *Agent) callModel(ctx context.Context, history []protocol.ChatMessage) (*protocol.ChatResponse, error) {
	ctx, cancel := context.WithTimeout(ctx, a.opts.ModelTimeout)
	defer cancel()

	a.logger.Debug("model request", "provider", a.opts.Provider.Name(), "messages", len(history))

	start := time.Now()
	resp, err := a.opts.Provider.Chat(ctx, protocol.ChatRequest{
		System:   a.opts.SystemPrompt,
		Messages: history,
		Tools:    a.opts.Dispatcher.Tools.Definitions(),
	})
	metrics.ModelLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		return nil, err
	}

	a.logger.Debug("model response",
		"content_len", len(resp.Content),
		"tool_calls", len(resp.ToolCalls),
		"tokens", resp.Usage.TotalTokens(),
	)
	return resp, nil
}

// finish appends the closing message, clears the processing flag and notifies
// subscribers.
func (a *Agent) finish(ctx context.Context, msg protocol.Message, v *protocol.Verdict) {
	a.mu.Lock()
	a.messages = append(a.messages, msg)
	a.processing = false
	a.mu.Unlock()

	if a.opts.Audit != nil && v != nil {
		a.opts.Audit.Record(audit.Entry{
			MessageID: msg.ID,
			Status:    v.Status,
			Risk:      v.Risk,
			Reasoning: v.Reasoning,
		})
	}
	a.publish(ctx)
}

// historyLocked maps the conversation to the two-speaker model history.
// Caller must hold a.mu.
func (a *Agent) historyLocked() []protocol.ChatMessage {
	out := make([]protocol.ChatMessage, len(a.messages))
	for i, m := range a.messages {
		role := protocol.ChatRoleUser
		if m.Role == protocol.RoleAssistant {
			role = protocol.ChatRoleModel
		}
		out[i] = protocol.ChatMessage{Role: role, Content: m.Content}
	}
	return out
}
