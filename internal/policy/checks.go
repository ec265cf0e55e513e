package policy

import "github.com/rack-io/rack/pkg/protocol"

// Names attached to the default verdict.
const (
	LimitBasicSupport = "Basic Support Access"
	SourceGeneralDocs = "General Docs"
)

// Reasoning strings, one per check plus the default.
const (
	ReasonDefault   = "Request is within standard operational parameters."
	ReasonFinancial = "Financial request detected. Monitoring for limits."
	ReasonAuthority = "Account deletion requires specific administrative authority not granted to AI."
	ReasonThreshold = "Refund amount exceeds $50 threshold. Escalating to human authority."
	ReasonLegal     = "Legal threats or inquiries require immediate human-in-the-loop intervention."
)

// RefundAction is the only intent the control check applies to.
const RefundAction = "issue_refund"

// Token vocabularies. Matching is plain substring containment on lowercased
// text, so "100" also matches "1000" and "all" matches "call".
var (
	FinancialTokens   = []string{"refund", "money", "billing"}
	DestructiveTokens = []string{"delete", "cancel account"}
	AmountTokens      = []string{"large", "100", "all"}
	LegalTokens       = []string{"legal", "sue"}
)

// CheckRisk raises risk to medium for financial topics. Status is unchanged.
func CheckRisk(v protocol.Verdict, in Input) protocol.Verdict {
	if containsAny(in.Text, FinancialTokens) {
		v.Risk = protocol.RiskMedium
		v.Reasoning = ReasonFinancial
	}
	return v
}

// CheckAuthority blocks destructive account actions.
func CheckAuthority(v protocol.Verdict, in Input) protocol.Verdict {
	if containsAny(in.Text, DestructiveTokens) {
		v.Authority = false
		v.Status = protocol.StatusBlocked
		v.Reasoning = ReasonAuthority
	}
	return v
}

// CheckControl escalates refunds above the autonomous limit. It only runs for
// the refund intent and overrides a blocked status.
func CheckControl(v protocol.Verdict, in Input) protocol.Verdict {
	if in.Intent != RefundAction {
		return v
	}
	if containsAny(in.Text, AmountTokens) {
		v.Status = protocol.StatusEscalated
		v.Risk = protocol.RiskHigh
		v.Reasoning = ReasonThreshold
	}
	return v
}

// CheckKnowledge escalates legal topics unconditionally.
func CheckKnowledge(v protocol.Verdict, in Input) protocol.Verdict {
	if containsAny(in.Text, LegalTokens) {
		v.Status = protocol.StatusEscalated
		v.Reasoning = ReasonLegal
	}
	return v
}
