package tool

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/rack-io/rack/internal/audit"
	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/metrics"
	"github.com/rack-io/rack/pkg/protocol"
)

// Recorder receives one audit entry per dispatched action.
type Recorder interface {
	Record(e audit.Entry)
}

// Dispatcher routes a model-requested action to execution, refusal, or human
// escalation according to the action's verdict.
type Dispatcher struct {
	Tools  *Registry
	Gate   *gate.Gate
	Audit  Recorder // optional
	Logger *slog.Logger
}

// Result is the outcome of one dispatched action.
type Result struct {
	Text          string
	Decision      gate.Decision
	PolicyID      string
	HITL          bool
	FocusTicketID string
}

// Dispatch runs call under verdict v. It never returns an error; failures are
// reported in the result text.
func (d *Dispatcher) Dispatch(ctx context.Context, call protocol.ToolCall, v protocol.Verdict) Result {
	logger := d.Logger
	if logger == nil {
		logger = slog.Default()
	}

	decision := d.Gate.Decide(call.Name, v)
	res := Result{Decision: decision.Decision, PolicyID: decision.PolicyID}

	ctx, st := WithTurnState(ctx)
	ctx = WithVerdict(ctx, v)

	start := time.Now()
	switch decision.Decision {
	case gate.Refuse:
		res.Text = RefusalMessage(v.Reasoning)

	case gate.Escalate:
		params := make(map[string]any, len(call.Arguments)+1)
		for k, val := range call.Arguments {
			params[k] = val
		}
		params["_action"] = call.Name
		if _, ok := params["reason"]; !ok {
			params["reason"] = v.Reasoning
		}
		text, err := d.Tools.Execute(ctx, EscalateName, params)
		if err != nil {
			// Without an escalation action registered the turn is still handed off.
			logger.Error("escalation action failed", "action", call.Name, "error", err)
			text = OversightMessage(v.Reasoning)
			st.HITL = true
		}
		res.Text = text

	default:
		text, err := d.Tools.Execute(ctx, call.Name, call.Arguments)
		if err != nil {
			text = fmt.Sprintf("Error: %v", err)
		}
		res.Text = text
	}

	res.HITL = st.HITL
	res.FocusTicketID = st.FocusTicketID

	logger.Info("action dispatched",
		"action", call.Name,
		"decision", res.Decision,
		"policy", res.PolicyID,
		"status", v.Status,
		"risk", v.Risk,
		"duration", time.Since(start),
	)
	metrics.RecordDispatch(call.Name, string(res.Decision))
	if d.Audit != nil {
		d.Audit.Record(audit.Entry{
			Action:    call.Name,
			Args:      call.Arguments,
			Status:    v.Status,
			Risk:      v.Risk,
			Reasoning: v.Reasoning,
			Decision:  string(res.Decision),
			PolicyID:  res.PolicyID,
			Note:      st.Note,
		})
	}
	return res
}
