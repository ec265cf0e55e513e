package webhook

import (
	"bytes"
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/rack-io/rack/internal/connector"
	"github.com/rack-io/rack/pkg/protocol"
)

// SignatureHeader carries the HMAC-SHA256 signature of the request body.
const SignatureHeader = "X-Rack-Signature-256"

// Config holds webhook pager configuration.
type Config struct {
	URL         string
	Secret      string // optional HMAC-SHA256 signing secret
	BearerToken string // optional Authorization bearer token
	Timeout     time.Duration
}

// Payload is the JSON body posted to the webhook.
type Payload struct {
	Title    string           `json:"title"`
	Text     string           `json:"text"`
	Action   string           `json:"action,omitempty"`
	TicketID string           `json:"ticket_id,omitempty"`
	Reminder bool             `json:"reminder"`
	Verdict  protocol.Verdict `json:"verdict"`
	Time     time.Time        `json:"time"`
}

// Pager posts escalation notices to an HTTP endpoint.
type Pager struct {
	cfg    Config
	client *http.Client
	logger *slog.Logger
}

// New creates a webhook pager.
func New(cfg Config, logger *slog.Logger) (*Pager, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("webhook: url is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Pager{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.Timeout},
		logger: logger,
	}, nil
}

func (p *Pager) Name() string { return "webhook" }

func (p *Pager) Page(ctx context.Context, pg connector.Page) error {
	ts := pg.Time
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	body, err := json.Marshal(Payload{
		Title:    pg.Title(),
		Text:     pg.Text(),
		Action:   pg.Action,
		TicketID: pg.TicketID,
		Reminder: pg.Reminder,
		Verdict:  pg.Verdict,
		Time:     ts,
	})
	if err != nil {
		return fmt.Errorf("webhook: marshal: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.cfg.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("webhook: create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if p.cfg.Secret != "" {
		req.Header.Set(SignatureHeader, ComputeSignature(body, p.cfg.Secret))
	}
	if p.cfg.BearerToken != "" {
		req.Header.Set("Authorization", "Bearer "+p.cfg.BearerToken)
	}

	resp, err := p.client.Do(req)
	if err != nil {
		return fmt.Errorf("webhook: post: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<10))
		return fmt.Errorf("webhook: status %d: %s", resp.StatusCode, bytes.TrimSpace(msg))
	}
	p.logger.Info("supervisor paged", "url", p.cfg.URL, "reminder", pg.Reminder)
	return nil
}

// ComputeSignature returns "sha256=<hex>" for body signed with secret.
func ComputeSignature(body []byte, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write(body)
	return "sha256=" + hex.EncodeToString(mac.Sum(nil))
}

// VerifySignature checks a signature produced by ComputeSignature.
func VerifySignature(body []byte, secret, signature string) bool {
	expected := ComputeSignature(body, secret)
	return hmac.Equal([]byte(expected), []byte(signature))
}
