// Package audit keeps a bounded, queryable trail of policy decisions and can
// mirror each entry to a JSON-lines sink.
package audit

import (
	"encoding/json"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/rack-io/rack/pkg/protocol"
)

// Entry records one evaluated turn or dispatched action.
type Entry struct {
	Time      time.Time              `json:"time"`
	MessageID string                 `json:"message_id,omitempty"`
	Action    string                 `json:"action,omitempty"`
	Args      map[string]any         `json:"args,omitempty"`
	Status    protocol.VerdictStatus `json:"status"`
	Risk      protocol.RiskLevel     `json:"risk"`
	Reasoning string                 `json:"reasoning"`
	Decision  string                 `json:"decision,omitempty"`
	PolicyID  string                 `json:"policy_id,omitempty"`
	Note      string                 `json:"note,omitempty"`
}

// Query filters entries. Zero values match everything.
type Query struct {
	Since  time.Time
	Status protocol.VerdictStatus
	Action string
	Limit  int // newest entries win when limited
}

// Trail is a thread-safe ring buffer of audit entries.
type Trail struct {
	mu      sync.Mutex
	entries []Entry
	size    int
	pos     int
	count   int

	sink   *json.Encoder
	logger *slog.Logger
}

// New creates a trail holding up to size entries.
func New(size int) *Trail {
	if size <= 0 {
		size = 1000
	}
	return &Trail{
		entries: make([]Entry, size),
		size:    size,
		logger:  slog.Default(),
	}
}

// WithSink mirrors every recorded entry to w as one JSON object per line.
func (t *Trail) WithSink(w io.Writer, logger *slog.Logger) *Trail {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.sink = json.NewEncoder(w)
	if logger != nil {
		t.logger = logger
	}
	return t
}

// Record appends an entry, stamping its time if unset.
func (t *Trail) Record(e Entry) {
	if e.Time.IsZero() {
		e.Time = time.Now().UTC()
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	t.entries[t.pos] = e
	t.pos = (t.pos + 1) % t.size
	if t.count < t.size {
		t.count++
	}

	if t.sink != nil {
		if err := t.sink.Encode(e); err != nil {
			t.logger.Error("audit sink write failed", "error", err, "action", e.Action)
		}
	}
}

// Query returns matching entries, oldest first.
func (t *Trail) Query(q Query) []Entry {
	t.mu.Lock()
	defer t.mu.Unlock()

	start := 0
	if t.count == t.size {
		start = t.pos
	}

	result := []Entry{}
	for i := 0; i < t.count; i++ {
		e := t.entries[(start+i)%t.size]
		if !q.Since.IsZero() && e.Time.Before(q.Since) {
			continue
		}
		if q.Status != "" && e.Status != q.Status {
			continue
		}
		if q.Action != "" && e.Action != q.Action {
			continue
		}
		result = append(result, e)
	}

	if q.Limit > 0 && len(result) > q.Limit {
		result = result[len(result)-q.Limit:]
	}
	return result
}

// Len returns the number of entries currently held.
func (t *Trail) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.count
}
