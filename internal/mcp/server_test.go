package mcp_test

import (
	"context"
	"encoding/json"
	"testing"

	sdkmcp "github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/rack-io/rack/internal/gate"
	"github.com/rack-io/rack/internal/mcp"
	"github.com/rack-io/rack/internal/policy"
	"github.com/rack-io/rack/pkg/protocol"
)

func connectInMemory(t *testing.T, ctx context.Context, srv *mcp.Server) *sdkmcp.ClientSession {
	t.Helper()
	t1, t2 := sdkmcp.NewInMemoryTransports()
	if _, err := srv.MCPServer.Connect(ctx, t1, nil); err != nil {
		t.Fatalf("server.Connect: %v", err)
	}
	client := sdkmcp.NewClient(&sdkmcp.Implementation{Name: "test-client", Version: "v0.0.1"}, nil)
	session, err := client.Connect(ctx, t2, nil)
	if err != nil {
		t.Fatalf("client.Connect: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

func callTool(t *testing.T, ctx context.Context, session *sdkmcp.ClientSession, name string, args map[string]any, out any) {
	t.Helper()
	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{Name: name, Arguments: args})
	if err != nil {
		t.Fatalf("CallTool(%s): %v", name, err)
	}
	if res.IsError {
		t.Fatalf("CallTool(%s) returned error: %v", name, res.Content)
	}
	for _, c := range res.Content {
		if tc, ok := c.(*sdkmcp.TextContent); ok {
			if err := json.Unmarshal([]byte(tc.Text), out); err != nil {
				t.Fatalf("unmarshal tool result: %v (text: %s)", err, tc.Text)
			}
			return
		}
	}
	t.Fatalf("no text content in tool result")
}

func newServer(t *testing.T) *mcp.Server {
	t.Helper()
	g, err := gate.New(nil)
	if err != nil {
		t.Fatal(err)
	}
	guardrails := []protocol.Guardrail{
		{ID: "g1", Category: protocol.CategoryRisk, Rule: "No PII disclosure", Action: protocol.GuardrailBlock},
		{ID: "g2", Category: protocol.CategoryControl, Rule: "Refunds > $50 require approval", Action: protocol.GuardrailEscalate},
	}
	return mcp.NewServer(policy.NewKeyword(), g, guardrails, "test")
}

func TestListTools(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newServer(t))

	res, err := session.ListTools(ctx, nil)
	if err != nil {
		t.Fatalf("ListTools: %v", err)
	}
	names := map[string]bool{}
	for _, tool := range res.Tools {
		names[tool.Name] = true
	}
	for _, want := range []string{mcp.EvaluateToolName, mcp.GuardrailsToolName} {
		if !names[want] {
			t.Errorf("missing tool %q", want)
		}
	}
}

type evaluateResult struct {
	Verdict  protocol.Verdict `json:"verdict"`
	Badge    string           `json:"badge"`
	Decision string           `json:"decision"`
	PolicyID string           `json:"policy_id"`
}

func TestEvaluate_Allowed(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newServer(t))

	var out evaluateResult
	callTool(t, ctx, session, mcp.EvaluateToolName, map[string]any{"message": "where is my order?"}, &out)

	if out.Verdict.Status != protocol.StatusAllowed {
		t.Errorf("status = %q, want allowed", out.Verdict.Status)
	}
	if out.Badge != "RACK: allowed | Risk: low" {
		t.Errorf("badge = %q", out.Badge)
	}
	if out.Decision != "" {
		t.Errorf("decision without intent = %q", out.Decision)
	}
}

func TestEvaluate_RefundEscalates(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newServer(t))

	var out evaluateResult
	callTool(t, ctx, session, mcp.EvaluateToolName, map[string]any{
		"message": "I want a refund of 100 dollars",
		"intent":  policy.RefundAction,
	}, &out)

	if out.Verdict.Status != protocol.StatusEscalated {
		t.Errorf("status = %q, want escalated", out.Verdict.Status)
	}
	if out.Decision != string(gate.Escalate) {
		t.Errorf("decision = %q, want escalate", out.Decision)
	}
}

func TestEvaluate_MissingMessage(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newServer(t))

	res, err := session.CallTool(ctx, &sdkmcp.CallToolParams{
		Name:      mcp.EvaluateToolName,
		Arguments: map[string]any{"message": ""},
	})
	if err == nil && !res.IsError {
		t.Fatal("expected error for empty message")
	}
}

func TestGuardrails(t *testing.T) {
	ctx := context.Background()
	session := connectInMemory(t, ctx, newServer(t))

	var out struct {
		Guardrails []protocol.Guardrail `json:"guardrails"`
	}
	callTool(t, ctx, session, mcp.GuardrailsToolName, map[string]any{}, &out)

	if len(out.Guardrails) != 2 || out.Guardrails[1].ID != "g2" {
		t.Errorf("guardrails = %+v", out.Guardrails)
	}
}
