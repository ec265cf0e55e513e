// Package mcp exposes the RACK policy engine as Model Context Protocol tools
// so other agents can check a request before acting on it.
package mcp

import (
	"context"
	"fmt"
	"log/slog"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/policy"
	"github.com/rack-io/rack/pkg/protocol"
)

// Tool names.
const (
	EvaluateToolName   = "rack_evaluate"
	GuardrailsToolName = "rack_guardrails"
)

// Server wraps the MCP SDK server.
type Server struct {
	MCPServer *sdkmcp.Server

	engine     policy.Engine
	gate       *gate.Gate
	guardrails []protocol.Guardrail
	log        *slog.Logger
}

// NewServer creates an MCP server with the RACK tools registered. g may be
// nil, in which case evaluations carry no dispatch decision.
func NewServer(engine policy.Engine, g *gate.Gate, guardrails []protocol.Guardrail, version string) *Server {
	s := &Server{
		MCPServer: sdkmcp.NewServer(
			&sdkmcp.Implementation{Name: "rack", Version: version},
			nil,
		),
		engine:     engine,
		gate:       g,
		guardrails: guardrails,
		log:        slog.Default().With("component", "rack-mcp"),
	}
	s.registerTools()
	return s
}

// Run serves the tools over stdio until ctx is cancelled or the client
// disconnects.
func (s *Server) Run(ctx context.Context) error {
	return s.MCPServer.Run(ctx, &sdkmcp.StdioTransport{})
}

func (s *Server) registerTools() {
	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name: EvaluateToolName,
		Description: "Evaluate a customer message, and optionally the action an agent intends to take, " +
			"against the RACK (Risk, Authority, Control, Knowledge) policy. Returns the verdict and compliance badge.",
	}, s.handleEvaluate)

	sdkmcp.AddTool(s.MCPServer, &sdkmcp.Tool{
		Name:        GuardrailsToolName,
		Description: "List the guardrails the RACK policy enforces.",
	}, s.handleGuardrails)
}

// --- Tool input/output types ---

type evaluateInput struct {
	Message string `json:"message" jsonschema:"the customer message to evaluate"`
	Intent  string `json:"intent,omitempty" jsonschema:"action the agent intends to take, e.g. issue_refund"`
}

type evaluateOutput struct {
	Verdict  protocol.Verdict `json:"verdict"`
	Badge    string           `json:"badge"`
	Decision gate.Decision    `json:"decision,omitempty"`
	PolicyID string           `json:"policy_id,omitempty"`
}

type guardrailsInput struct{}

type guardrailsOutput struct {
	Guardrails []protocol.Guardrail `json:"guardrails"`
}

// --- Tool handlers ---

func (s *Server) handleEvaluate(_ context.Context, _ *sdkmcp.CallToolRequest, input evaluateInput) (*sdkmcp.CallToolResult, evaluateOutput, error) {
	if input.Message == "" {
		return nil, evaluateOutput{}, fmt.Errorf("message is required")
	}

	v := s.engine.Evaluate(input.Message, input.Intent)
	out := evaluateOutput{Verdict: v, Badge: v.Badge()}
	if s.gate != nil && input.Intent != "" {
		res := s.gate.Decide(input.Intent, v)
		out.Decision = res.Decision
		out.PolicyID = res.PolicyID
	}
	s.log.Debug("evaluated", "intent", input.Intent, "status", v.Status, "risk", v.Risk)
	return nil, out, nil
}

func (s *Server) handleGuardrails(_ context.Context, _ *sdkmcp.CallToolRequest, _ guardrailsInput) (*sdkmcp.CallToolResult, guardrailsOutput, error) {
	return nil, guardrailsOutput{Guardrails: s.guardrails}, nil
}
