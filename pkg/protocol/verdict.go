package protocol

import (
	"fmt"
	"slices"
)

// RiskLevel grades how sensitive a request is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// VerdictStatus is the overall outcome of a RACK evaluation.
type VerdictStatus string

const (
	StatusAllowed   VerdictStatus = "allowed"
	StatusBlocked   VerdictStatus = "blocked"
	StatusEscalated VerdictStatus = "escalated"
)

// Verdict is the result of evaluating a message (and optional action intent)
// against the Risk, Authority, Control and Knowledge checks.
type Verdict struct {
	Risk              RiskLevel     `json:"risk"`
	Authority         bool          `json:"authority"`
	ControlLimits     []string      `json:"controlLimits"`
	KnowledgeBaseUsed []string      `json:"knowledgeBaseUsed"`
	Status            VerdictStatus `json:"status"`
	Reasoning         string        `json:"reasoning"`
}

// Clone returns a deep copy of v.
func (v Verdict) Clone() Verdict {
	v.ControlLimits = slices.Clone(v.ControlLimits)
	v.KnowledgeBaseUsed = slices.Clone(v.KnowledgeBaseUsed)
	return v
}

// Badge renders the short compliance label shown next to assistant replies.
func (v Verdict) Badge() string {
	return fmt.Sprintf("RACK: %s | Risk: %s", v.Status, v.Risk)
}
