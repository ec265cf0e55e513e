package config

import (
	"context"
	_ "embed"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/rack-io/rack/pkg/protocol"
)

//go:embed seed.yaml
var defaultSeed []byte

// Seed is the initial session state handed to the orchestrator.
type Seed struct {
	SystemPrompt string               `yaml:"system_prompt"`
	Tickets      []protocol.Ticket    `yaml:"tickets"`
	Guardrails   []protocol.Guardrail `yaml:"guardrails"`
}

// DefaultSeed returns the built-in seed.
func DefaultSeed() (*Seed, error) {
	return ParseSeed(defaultSeed, time.Now().UTC())
}

// LoadSeed reads a seed from a local file or an http(s) URL. An empty source
// returns the built-in seed.
func LoadSeed(ctx context.Context, source, token string) (*Seed, error) {
	if source == "" {
		return DefaultSeed()
	}
	if isURL(source) {
		return FetchSeed(ctx, source, token)
	}
	data, err := os.ReadFile(source)
	if err != nil {
		return nil, fmt.Errorf("config: read seed %s: %w", source, err)
	}
	return ParseSeed(data, time.Now().UTC())
}

// FetchSeed downloads a seed document. token, if set, is sent as a bearer token.
func FetchSeed(ctx context.Context, url, token string) (*Seed, error) {
	ctx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("config: seed request: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	req.Header.Set("Accept", "application/yaml")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("config: fetch seed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("config: read seed response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("config: fetch seed: HTTP %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return ParseSeed(body, time.Now().UTC())
}

// ParseSeed decodes and validates a YAML seed. Tickets with no timestamps
// get now.
func ParseSeed(data []byte, now time.Time) (*Seed, error) {
	var s Seed
	if err := yaml.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("config: parse seed: %w", err)
	}
	for i := range s.Tickets {
		t := &s.Tickets[i]
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		if t.LastUpdate.IsZero() {
			t.LastUpdate = t.CreatedAt
		}
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// Validate checks ticket and guardrail fields.
func (s *Seed) Validate() error {
	var errs []string

	if strings.TrimSpace(s.SystemPrompt) == "" {
		errs = append(errs, "system_prompt is required")
	}

	seen := make(map[string]bool, len(s.Tickets))
	for i, t := range s.Tickets {
		if t.ID == "" {
			errs = append(errs, fmt.Sprintf("tickets[%d].id is required", i))
		} else if seen[t.ID] {
			errs = append(errs, fmt.Sprintf("tickets[%d].id %q is duplicated", i, t.ID))
		}
		seen[t.ID] = true
		if !t.Status.Valid() {
			errs = append(errs, fmt.Sprintf("tickets[%d].status %q is invalid", i, t.Status))
		}
		if !t.Priority.Valid() {
			errs = append(errs, fmt.Sprintf("tickets[%d].priority %q is invalid", i, t.Priority))
		}
	}

	for i, g := range s.Guardrails {
		if g.ID == "" {
			errs = append(errs, fmt.Sprintf("guardrails[%d].id is required", i))
		}
		switch g.Action {
		case protocol.GuardrailBlock, protocol.GuardrailWarn, protocol.GuardrailEscalate:
		default:
			errs = append(errs, fmt.Sprintf("guardrails[%d].action %q is invalid", i, g.Action))
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("seed validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
