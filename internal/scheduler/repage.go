package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/rack-io/rack/internal/connector"
	"github.com/rack-io/rack/pkg/protocol"
)

// RepageJobName is the name the HITL re-page job is registered under.
const RepageJobName = "hitl-repage"

// EscalationSource exposes the pending human escalation of a session.
type EscalationSource interface {
	HITLPendingSince() (time.Time, bool)
	Messages() []protocol.Message
}

// Repager reminds supervisors about an escalation nobody has picked up.
type Repager struct {
	Source EscalationSource
	Pager  connector.Pager
	After  time.Duration // how long an escalation may wait before a reminder
	Logger *slog.Logger

	mu       sync.Mutex
	lastPage time.Time
	now      func() time.Time
}

// Run checks the session once. It pages at most once per After window.
func (r *Repager) Run(ctx context.Context) {
	since, pending := r.Source.HITLPendingSince()
	if !pending {
		return
	}

	now := time.Now()
	if r.now != nil {
		now = r.now()
	}

	r.mu.Lock()
	due := now.Sub(since) >= r.After &&
		(r.lastPage.Before(since) || now.Sub(r.lastPage) >= r.After)
	if due {
		r.lastPage = now
	}
	r.mu.Unlock()
	if !due {
		return
	}

	page := connector.Page{Reminder: true, Time: now.UTC()}
	msgs := r.Source.Messages()
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].IsHITL && msgs[i].Verdict != nil {
			page.Verdict = *msgs[i].Verdict
			if i > 0 && msgs[i-1].Role == protocol.RoleUser {
				page.Customer = msgs[i-1].Content
			}
			break
		}
	}

	logger := r.Logger
	if logger == nil {
		logger = slog.Default()
	}
	if err := r.Pager.Page(ctx, page); err != nil {
		logger.Error("hitl reminder page failed", "pending", now.Sub(since).Round(time.Second), "error", err)
		return
	}
	logger.Info("hitl reminder sent", "pending", now.Sub(since).Round(time.Second))
}
