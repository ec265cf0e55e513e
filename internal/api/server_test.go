package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"

	"github.com/rack-io/rack/internal/agent"
	"github.com/rack-io/rack/internal/audit"
	"github.com/rack-io/rack/internal/ticket"
	"github.com/rack-io/rack/pkg/protocol"
)

// mockService implements Service for testing.
type mockService struct {
	mu         sync.Mutex
	submitted  []string
	submitErr  error
	pending    bool
	resolved   []string
	guardrails []protocol.Guardrail
	updates    chan protocol.Snapshot
}

func (m *mockService) Snapshot(_ context.Context) (protocol.Snapshot, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	snap := protocol.Snapshot{HITLRequired: m.pending, Guardrails: m.guardrails}
	for _, s := range m.submitted {
		snap.Messages = append(snap.Messages, protocol.Message{Role: protocol.RoleUser, Content: s})
	}
	return snap, nil
}

func (m *mockService) Submit(_ context.Context, text string) (protocol.Message, error) {
	if m.submitErr != nil {
		return protocol.Message{}, m.submitErr
	}
	if strings.TrimSpace(text) == "" {
		return protocol.Message{}, agent.ErrEmptyMessage
	}
	m.mu.Lock()
	m.submitted = append(m.submitted, text)
	m.mu.Unlock()
	return protocol.Message{ID: "m1", Role: protocol.RoleAssistant, Content: "reply to " + text}, nil
}

func (m *mockService) Guardrails() []protocol.Guardrail { return m.guardrails }

func (m *mockService) Evaluate(message, intent string) protocol.Verdict {
	if intent == "issue_refund" {
		return protocol.Verdict{Status: protocol.StatusEscalated, Risk: protocol.RiskHigh, Reasoning: "refund"}
	}
	return protocol.Verdict{Status: protocol.StatusAllowed, Risk: protocol.RiskLow, Reasoning: "ok"}
}

func (m *mockService) ResolveHITL(_ context.Context, note string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.pending {
		return false
	}
	m.pending = false
	m.resolved = append(m.resolved, note)
	return true
}

func (m *mockService) Subscribe() (<-chan protocol.Snapshot, func()) {
	if m.updates == nil {
		m.updates = make(chan protocol.Snapshot, 1)
	}
	return m.updates, func() {}
}

func newTestStore(t *testing.T) ticket.Store {
	t.Helper()
	store, err := ticket.NewSQLiteStore(ticket.MemoryDSN)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { store.Close() })
	ctx := context.Background()
	now := time.Now().UTC()
	for _, tk := range []*protocol.Ticket{
		{ID: "TKT-1001", CustomerName: "Alice", Subject: "Billing", Status: protocol.TicketOpen, Priority: protocol.PriorityHigh, CreatedAt: now, LastUpdate: now},
		{ID: "TKT-1002", CustomerName: "Bob", Subject: "Login", Status: protocol.TicketInProgress, Priority: protocol.PriorityMedium, CreatedAt: now, LastUpdate: now},
	} {
		if err := store.Save(ctx, tk); err != nil {
			t.Fatal(err)
		}
	}
	return store
}

func newTestServer(t *testing.T, svc Service, key string) *Server {
	t.Helper()
	trail := audit.New(10)
	trail.Record(audit.Entry{Action: "update_ticket", Status: protocol.StatusAllowed, Risk: protocol.RiskLow})
	trail.Record(audit.Entry{Action: "issue_refund", Status: protocol.StatusEscalated, Risk: protocol.RiskHigh})
	return NewServer(svc, newTestStore(t), Config{Host: "127.0.0.1", Port: 0, Key: key}, nil, trail)
}

func serve(srv *Server, method, path, body string) *httptest.ResponseRecorder {
	var req *http.Request
	if body != "" {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set("Content-Type", "application/json")
	} else {
		req = httptest.NewRequest(method, path, nil)
	}
	w := httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/health", "")

	if w.Code != http.StatusOK {
		t.Errorf("status = %d", w.Code)
	}
	var body map[string]string
	json.NewDecoder(w.Body).Decode(&body)
	if body["status"] != "ok" {
		t.Errorf("body = %v", body)
	}
}

func TestSession(t *testing.T) {
	srv := newTestServer(t, &mockService{pending: true}, "")
	w := serve(srv, "GET", "/api/session", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var snap protocol.Snapshot
	json.NewDecoder(w.Body).Decode(&snap)
	if !snap.HITLRequired {
		t.Error("expected hitlRequired")
	}
}

func TestPostMessage(t *testing.T) {
	svc := &mockService{}
	srv := newTestServer(t, svc, "")
	w := serve(srv, "POST", "/api/messages", `{"content":"hello"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	var resp postMessageResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Message.Content != "reply to hello" {
		t.Errorf("message = %q", resp.Message.Content)
	}
	if len(resp.Snapshot.Messages) != 1 {
		t.Errorf("snapshot messages = %d", len(resp.Snapshot.Messages))
	}
}

func TestPostMessage_Errors(t *testing.T) {
	tests := []struct {
		name string
		svc  *mockService
		body string
		want int
	}{
		{"empty content", &mockService{}, `{"content":"   "}`, http.StatusBadRequest},
		{"invalid json", &mockService{}, `{content`, http.StatusBadRequest},
		{"busy", &mockService{submitErr: agent.ErrBusy}, `{"content":"hi"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := newTestServer(t, tt.svc, "")
			w := serve(srv, "POST", "/api/messages", tt.body)
			if w.Code != tt.want {
				t.Errorf("status = %d, want %d", w.Code, tt.want)
			}
		})
	}
}

func TestListTickets(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/tickets?status=open&limit=10", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var tickets []protocol.Ticket
	json.NewDecoder(w.Body).Decode(&tickets)
	if len(tickets) != 1 || tickets[0].ID != "TKT-1001" {
		t.Errorf("tickets = %+v", tickets)
	}
}

func TestListTickets_InvalidStatus(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/tickets?status=pending", "")

	if w.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", w.Code)
	}
}

func TestGetTicket(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/tickets/TKT-1002", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var tk protocol.Ticket
	json.NewDecoder(w.Body).Decode(&tk)
	if tk.CustomerName != "Bob" {
		t.Errorf("customer = %q", tk.CustomerName)
	}
}

func TestGetTicket_NotFound(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/tickets/nope", "")

	if w.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Code)
	}
}

func TestGuardrails(t *testing.T) {
	svc := &mockService{guardrails: []protocol.Guardrail{{ID: "g1", Category: protocol.CategoryRisk}}}
	srv := newTestServer(t, svc, "")
	w := serve(srv, "GET", "/api/guardrails", "")

	var got []protocol.Guardrail
	json.NewDecoder(w.Body).Decode(&got)
	if len(got) != 1 || got[0].ID != "g1" {
		t.Errorf("guardrails = %+v", got)
	}
}

func TestEvaluate(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "POST", "/api/evaluate", `{"message":"refund me","intent":"issue_refund"}`)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	var resp evaluateResponse
	json.NewDecoder(w.Body).Decode(&resp)
	if resp.Verdict.Status != protocol.StatusEscalated {
		t.Errorf("status = %q", resp.Verdict.Status)
	}
	if resp.Badge != "RACK: escalated | Risk: high" {
		t.Errorf("badge = %q", resp.Badge)
	}
}

func TestAudit(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "GET", "/api/audit?status=escalated", "")

	var entries []audit.Entry
	json.NewDecoder(w.Body).Decode(&entries)
	if len(entries) != 1 || entries[0].Action != "issue_refund" {
		t.Errorf("entries = %+v", entries)
	}
}

func TestResolveHITL(t *testing.T) {
	svc := &mockService{pending: true}
	srv := newTestServer(t, svc, "")

	w := serve(srv, "POST", "/api/hitl/resolve", `{"note":"refund approved"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if len(svc.resolved) != 1 || svc.resolved[0] != "refund approved" {
		t.Errorf("resolved = %v", svc.resolved)
	}

	w = serve(srv, "POST", "/api/hitl/resolve", "")
	if w.Code != http.StatusConflict {
		t.Errorf("second resolve status = %d, want 409", w.Code)
	}
}

func TestStream(t *testing.T) {
	svc := &mockService{updates: make(chan protocol.Snapshot, 1)}
	srv := newTestServer(t, svc, "secret-key")
	ts := httptest.NewServer(srv.Handler())
	defer ts.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/stream?token=secret-key"
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close(websocket.StatusNormalClosure, "")

	var first protocol.Snapshot
	if err := wsjson.Read(ctx, conn, &first); err != nil {
		t.Fatalf("read initial: %v", err)
	}
	if first.IsProcessing {
		t.Error("initial snapshot should be idle")
	}

	svc.updates <- protocol.Snapshot{IsProcessing: true}
	var next protocol.Snapshot
	if err := wsjson.Read(ctx, conn, &next); err != nil {
		t.Fatalf("read update: %v", err)
	}
	if !next.IsProcessing {
		t.Error("expected pushed snapshot")
	}
}

func TestAuth_Required(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "secret-key")

	// No auth header
	w := serve(srv, "GET", "/api/session", "")
	if w.Code != http.StatusUnauthorized {
		t.Errorf("no auth: status = %d, want 401", w.Code)
	}

	// Wrong key
	req := httptest.NewRequest("GET", "/api/session", nil)
	req.Header.Set("Authorization", "Bearer wrong-key")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("wrong key: status = %d, want 401", w.Code)
	}

	// Correct key
	req = httptest.NewRequest("GET", "/api/session", nil)
	req.Header.Set("Authorization", "Bearer secret-key")
	w = httptest.NewRecorder()
	srv.Handler().ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Errorf("correct key: status = %d, want 200", w.Code)
	}
}

func TestHealth_NoAuth(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "secret-key")
	w := serve(srv, "GET", "/api/health", "")

	// Health should NOT require auth
	if w.Code != http.StatusOK {
		t.Errorf("health should not require auth, status = %d", w.Code)
	}
}

func TestMetrics(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "secret-key")
	w := serve(srv, "GET", "/metrics", "")

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d", w.Code)
	}
	if !strings.Contains(w.Body.String(), "go_goroutines") {
		t.Error("expected default Go collector output")
	}
}

func TestCORS(t *testing.T) {
	srv := newTestServer(t, &mockService{}, "")
	w := serve(srv, "OPTIONS", "/api/session", "")

	if w.Code != http.StatusNoContent {
		t.Errorf("OPTIONS status = %d, want 204", w.Code)
	}
	if got := w.Header().Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("CORS origin = %q", got)
	}
}
