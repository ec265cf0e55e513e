// Package agent runs the support conversation: it evaluates each customer
// message under the RACK policy, calls the model backend, and dispatches the
// actions the model requests.
package agent

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rack-io/rack/internal/policy"
	"github.com/rack-io/rack/internal/provider"
	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/internal/tool"
	"github.com/rack-io/rack/pkg/protocol"
)

var (
	// ErrBusy is returned when a turn is submitted while another is in flight.
	ErrBusy = errors.New("agent: a turn is already in progress")
	// ErrEmptyMessage is returned for blank customer input.
	ErrEmptyMessage = errors.New("agent: message is empty")
)

// Fixed reply texts.
const (
	OperationalErrorText = "Operational Error: Connection to the intelligence engine timed out. " +
		"Please try again or contact system administration."
	FallbackText    = "I'm sorry, I couldn't generate a response."
	HumanJoinedText = "Human agent joined the conversation."
)

const defaultModelTimeout = 60 * time.Second

// Options configures an Agent. SystemPrompt and Guardrails come from seed
// data; the rest are collaborators.
type Options struct {
	SystemPrompt string
	Guardrails   []protocol.Guardrail

	Engine     policy.Engine
	Dispatcher *tool.Dispatcher
	Provider   provider.Provider
	Store      ticket.Store
	Audit      tool.Recorder // optional

	Logger       *slog.Logger
	ModelTimeout time.Duration
}

// Agent owns one support session.
type Agent struct {
	opts   Options
	logger *slog.Logger

	mu           sync.Mutex
	messages     []protocol.Message
	processing   bool
	hitl         bool
	hitlSince    time.Time
	activeTicket string

	subMu  sync.Mutex
	subs   map[int]chan protocol.Snapshot
	nextID int

	now   func() time.Time
	newID func() string
}

// New creates an Agent.
func New(opts Options) (*Agent, error) {
	if opts.Engine == nil {
		return nil, fmt.Errorf("agent: policy engine is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("agent: dispatcher is required")
	}
	if opts.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if opts.Store == nil {
		return nil, fmt.Errorf("agent: ticket store is required")
	}
	if opts.ModelTimeout <= 0 {
		opts.ModelTimeout = defaultModelTimeout
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Agent{
		opts:   opts,
		logger: logger,
		subs:   make(map[int]chan protocol.Snapshot),
		now:    func() time.Time { return time.Now().UTC() },
		newID:  uuid.NewString,
	}, nil
}

// Guardrails returns the static guardrail list.
func (a *Agent) Guardrails() []protocol.Guardrail {
	return append([]protocol.Guardrail(nil), a.opts.Guardrails...)
}

// Evaluate runs the policy engine without touching the session.
func (a *Agent) Evaluate(message, intent string) protocol.Verdict {
	return a.opts.Engine.Evaluate(message, intent)
}

func (a *Agent) newMessage(role protocol.Role, content string) protocol.Message {
	return protocol.Message{
		ID:        a.newID(),
		Role:      role,
		Content:   content,
		Timestamp: a.now(),
	}
}
