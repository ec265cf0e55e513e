package protocol

import "time"

// Role identifies who authored a conversation message.
type Role string

const (
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleSystem    Role = "system"
)

// Message is one entry in the support conversation. Messages are immutable
// once appended.
type Message struct {
	ID        string    `json:"id"`
	Role      Role      `json:"role"`
	Content   string    `json:"content"`
	Timestamp time.Time `json:"timestamp"`
	Verdict   *Verdict  `json:"rackEvaluation,omitempty"`
	IsHITL    bool      `json:"isHitl,omitempty"`
}
