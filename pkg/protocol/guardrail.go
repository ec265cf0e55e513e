package protocol

// GuardrailCategory is the RACK axis a guardrail belongs to.
type GuardrailCategory string

const (
	CategoryRisk      GuardrailCategory = "risk"
	CategoryAuthority GuardrailCategory = "authority"
	CategoryControl   GuardrailCategory = "control"
	CategoryKnowledge GuardrailCategory = "knowledge"
)

// GuardrailAction is what happens when a guardrail is hit.
type GuardrailAction string

const (
	GuardrailBlock    GuardrailAction = "block"
	GuardrailWarn     GuardrailAction = "warn"
	GuardrailEscalate GuardrailAction = "escalate"
)

// Guardrail is a human-readable policy rule displayed for compliance review.
type Guardrail struct {
	ID       string            `json:"id" yaml:"id"`
	Category GuardrailCategory `json:"category" yaml:"category"`
	Rule     string            `json:"rule" yaml:"rule"`
	Action   GuardrailAction   `json:"action" yaml:"action"`
}

// Snapshot is a read-only view of the session for presentation.
type Snapshot struct {
	Messages       []Message   `json:"messages"`
	Tickets        []*Ticket   `json:"tickets"`
	IsProcessing   bool        `json:"isProcessing"`
	HITLRequired   bool        `json:"hitlRequired"`
	ActiveTicketID string      `json:"activeTicketId,omitempty"`
	Guardrails     []Guardrail `json:"guardrails"`
}
