// Package provider adapts model backends to a single chat interface.
package provider

import (
	"context"

	"github.com/rack-io/rack/pkg/protocol"
)

// Provider is the abstraction over LLM APIs.
type Provider interface {
	Chat(ctx context.Context, req protocol.ChatRequest) (*protocol.ChatResponse, error)
	Name() string
}

// nativeRole maps a history role to a backend's role vocabulary. Anything that
// is not the model's own turn is sent as the user.
func nativeRole(role, assistant string) string {
	if role == protocol.ChatRoleModel {
		return assistant
	}
	return "user"
}
