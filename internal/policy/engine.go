// Package policy implements the RACK evaluation engine: an ordered chain of
// Risk, Authority, Control and Knowledge checks that turns a customer message
// and an optional action intent into a Verdict.
package policy

import (
	"strings"

	"github.com/rack-io/rack/pkg/protocol"
)

// Engine evaluates a message and an optional action intent. An empty intent
// means no action was requested.
type Engine interface {
	Evaluate(message, intent string) protocol.Verdict
}

// Input is what every check sees. Text is already lowercased.
type Input struct {
	Text   string
	Intent string
}

// Check inspects the input and returns a possibly updated verdict. Checks must
// not modify the slices of the verdict they receive.
type Check func(v protocol.Verdict, in Input) protocol.Verdict

// Keyword is the keyword-matching Engine. Checks run in order and never
// short-circuit, so later checks override fields set by earlier ones.
type Keyword struct {
	checks []Check
}

// NewKeyword returns an engine running the given checks in order. With no
// arguments it runs the standard RACK chain.
func NewKeyword(checks ...Check) *Keyword {
	if len(checks) == 0 {
		checks = Checks()
	}
	return &Keyword{checks: checks}
}

// Checks returns the standard RACK chain: risk, authority, control, knowledge.
func Checks() []Check {
	return []Check{CheckRisk, CheckAuthority, CheckControl, CheckKnowledge}
}

// Default returns the verdict for a request that trips no check.
func Default() protocol.Verdict {
	return protocol.Verdict{
		Risk:              protocol.RiskLow,
		Authority:         true,
		ControlLimits:     []string{LimitBasicSupport},
		KnowledgeBaseUsed: []string{SourceGeneralDocs},
		Status:            protocol.StatusAllowed,
		Reasoning:         ReasonDefault,
	}
}

// Evaluate runs every check over the lowercased message.
func (k *Keyword) Evaluate(message, intent string) protocol.Verdict {
	in := Input{Text: strings.ToLower(message), Intent: intent}
	v := Default()
	for _, check := range k.checks {
		v = check(v, in)
	}
	return v.Clone()
}

func containsAny(text string, tokens []string) bool {
	for _, tok := range tokens {
		if strings.Contains(text, tok) {
			return true
		}
	}
	return false
}
