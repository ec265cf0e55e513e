package webhook

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/rack-io/rack/internal/connector"
	"github.com/rack-io/rack/pkg/protocol"
)

var _ connector.Pager = (*Pager)(nil)

func testPage() connector.Page {
	return connector.Page{
		Action:   "escalate_to_human",
		TicketID: "TKT-1002",
		Verdict:  protocol.Verdict{Status: protocol.StatusEscalated, Risk: protocol.RiskLow, Reasoning: "needs a human"},
	}
}

func TestPage_SignedPayload(t *testing.T) {
	var got Payload
	var sig, auth string
	var raw []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		raw, _ = io.ReadAll(r.Body)
		json.Unmarshal(raw, &got)
		sig = r.Header.Get(SignatureHeader)
		auth = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	p, err := New(Config{URL: srv.URL, Secret: "s3cret", BearerToken: "tok"}, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	if err := p.Page(context.Background(), testPage()); err != nil {
		t.Fatalf("Page: %v", err)
	}

	if got.Action != "escalate_to_human" || got.TicketID != "TKT-1002" {
		t.Errorf("unexpected payload %+v", got)
	}
	if got.Verdict.Status != protocol.StatusEscalated {
		t.Errorf("expected escalated verdict, got %q", got.Verdict.Status)
	}
	if got.Time.IsZero() {
		t.Error("expected time to be stamped")
	}
	if !VerifySignature(raw, "s3cret", sig) {
		t.Errorf("signature %q does not verify", sig)
	}
	if auth != "Bearer tok" {
		t.Errorf("expected bearer token, got %q", auth)
	}
}

func TestPage_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusBadGateway)
	}))
	defer srv.Close()

	p, _ := New(Config{URL: srv.URL}, nil)
	err := p.Page(context.Background(), testPage())
	if err == nil || !strings.Contains(err.Error(), "502") {
		t.Errorf("expected status 502 error, got %v", err)
	}
}

func TestNew_RequiresURL(t *testing.T) {
	if _, err := New(Config{}, nil); err == nil {
		t.Error("expected error without url")
	}
}

func TestVerifySignature(t *testing.T) {
	body := []byte(`{"title":"x"}`)
	sig := ComputeSignature(body, "k")
	if !strings.HasPrefix(sig, "sha256=") {
		t.Errorf("expected sha256= prefix, got %q", sig)
	}
	if !VerifySignature(body, "k", sig) {
		t.Error("expected signature to verify")
	}
	if VerifySignature(body, "other", sig) {
		t.Error("expected wrong secret to fail")
	}
	if VerifySignature([]byte("tampered"), "k", sig) {
		t.Error("expected tampered body to fail")
	}
}
