// Package gate decides whether a model-requested action runs, is refused, or
// is handed to a human, based on the action's RACK verdict and a Cedar policy
// set.
package gate

import (
	"crypto/sha256"
	_ "embed"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"sync/atomic"

	"github.com/cedar-policy/cedar-go"

	"github.com/rack-io/rack/pkg/protocol"
)

//go:embed default.cedar
var defaultPolicy []byte

// Decision is the dispatch outcome for one action.
type Decision string

const (
	Execute  Decision = "execute"
	Refuse   Decision = "refuse"
	Escalate Decision = "escalate"
)

// Policy IDs reported for the built-in overrides.
const (
	BlockedPolicyID            = "blocked"
	EscalatedPolicyID          = "escalated"
	ExplicitEscalationPolicyID = "explicit-escalation"
)

// EscalateAction is the action that always takes the human escalation path.
const EscalateAction = "escalate_to_human"

// Result explains a decision.
type Result struct {
	Decision Decision `json:"decision"`
	PolicyID string   `json:"policy_id,omitempty"`
	Version  string   `json:"policy_version"`
}

// Gate evaluates actions against a Cedar policy set. The policy set can be
// swapped at runtime; evaluation never blocks on a reload.
type Gate struct {
	policies atomic.Pointer[policySet]
	path     string
	logger   *slog.Logger
}

type policySet struct {
	ps      *cedar.PolicySet
	version string
}

// New returns a gate using the built-in policy set.
func New(logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{logger: logger}
	if err := g.load("default.cedar", defaultPolicy); err != nil {
		return nil, err
	}
	return g, nil
}

// NewFromFile returns a gate loading its policy set from path.
func NewFromFile(path string, logger *slog.Logger) (*Gate, error) {
	if logger == nil {
		logger = slog.Default()
	}
	g := &Gate{path: path, logger: logger}
	if err := g.Reload(); err != nil {
		return nil, err
	}
	return g, nil
}

// Reload re-reads the policy file. On failure the previous set stays active.
func (g *Gate) Reload() error {
	if g.path == "" {
		return fmt.Errorf("gate: reload: no policy file configured")
	}
	data, err := os.ReadFile(g.path)
	if err != nil {
		return fmt.Errorf("gate: read %s: %w", g.path, err)
	}
	return g.load(g.path, data)
}

func (g *Gate) load(name string, data []byte) error {
	ps, err := cedar.NewPolicySetFromBytes(name, data)
	if err != nil {
		return fmt.Errorf("gate: parse %s: %w", name, err)
	}
	sum := sha256.Sum256(data)
	g.policies.Store(&policySet{ps: ps, version: hex.EncodeToString(sum[:])[:12]})
	return nil
}

// Version returns a short hash of the active policy source.
func (g *Gate) Version() string {
	if p := g.policies.Load(); p != nil {
		return p.version
	}
	return ""
}

// Decide evaluates the named action under verdict v. Regardless of the loaded
// policies, a blocked verdict is refused, and an escalated verdict or the
// escalation action is escalated.
func (g *Gate) Decide(action string, v protocol.Verdict) Result {
	p := g.policies.Load()

	req := cedar.Request{
		Principal: cedar.NewEntityUID("Agent", "support"),
		Action:    cedar.NewEntityUID("Action", cedar.String(action)),
		Resource:  cedar.NewEntityUID("Session", "default"),
		Context: cedar.NewRecord(cedar.RecordMap{
			"status":    cedar.String(v.Status),
			"risk":      cedar.String(v.Risk),
			"authority": cedar.Boolean(v.Authority),
		}),
	}

	decision, diag := cedar.Authorize(p.ps, cedar.EntityMap{}, req)

	res := Result{Version: p.version}
	var ids []string
	for _, reason := range diag.Reasons {
		id := string(reason.PolicyID)
		if pol := p.ps.Get(reason.PolicyID); pol != nil {
			if ann, ok := pol.Annotations()["id"]; ok {
				id = string(ann)
			}
		}
		ids = append(ids, id)
	}
	for _, e := range diag.Errors {
		g.logger.Warn("gate policy error", "policy", e.PolicyID, "error", e.Message)
	}
	if len(ids) > 0 {
		res.PolicyID = ids[0]
	}

	switch {
	case v.Status == protocol.StatusBlocked:
		res.Decision = Refuse
		res.PolicyID = BlockedPolicyID
	case v.Status == protocol.StatusEscalated:
		res.Decision = Escalate
		res.PolicyID = EscalatedPolicyID
	case action == EscalateAction:
		res.Decision = Escalate
		res.PolicyID = ExplicitEscalationPolicyID
	case decision == cedar.Allow:
		res.Decision = Execute
	case contains(ids, BlockedPolicyID):
		res.Decision = Refuse
		res.PolicyID = BlockedPolicyID
	default:
		res.Decision = Escalate
	}
	return res
}

func contains(ids []string, want string) bool {
	for _, id := range ids {
		if id == want {
			return true
		}
	}
	return false
}
