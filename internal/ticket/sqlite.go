package ticket

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "modernc.org/sqlite"

	"github.com/rack-io/rack/pkg/protocol"
)

// MemoryDSN keeps the database in process memory; nothing survives a restart.
const MemoryDSN = ":memory:"

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore opens a SQLite database and runs migrations. Use MemoryDSN
// for a process-local store.
func NewSQLiteStore(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("ticket store: open: %w", err)
	}
	// Each connection to an in-memory database is a separate database.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db, now: time.Now}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *SQLiteStore) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS tickets (
			seq           INTEGER PRIMARY KEY AUTOINCREMENT,
			id            TEXT NOT NULL UNIQUE,
			customer_name TEXT NOT NULL,
			subject       TEXT NOT NULL,
			description   TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL DEFAULT 'open',
			priority      TEXT NOT NULL DEFAULT 'medium',
			assignee      TEXT NOT NULL DEFAULT '',
			created_at    TEXT NOT NULL,
			last_update   TEXT NOT NULL
		);

		CREATE INDEX IF NOT EXISTS idx_tickets_status ON tickets(status);
		CREATE INDEX IF NOT EXISTS idx_tickets_priority ON tickets(priority);
	`)
	if err != nil {
		return fmt.Errorf("ticket store: migrate: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Save(ctx context.Context, t *protocol.Ticket) error {
	if t.ID == "" {
		return fmt.Errorf("ticket store: save: id is required")
	}
	created := t.CreatedAt
	if created.IsZero() {
		created = s.now()
	}
	updated := t.LastUpdate
	if updated.IsZero() {
		updated = created
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, customer_name, subject, description, status, priority, assignee, created_at, last_update)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			customer_name=excluded.customer_name, subject=excluded.subject, description=excluded.description,
			status=excluded.status, priority=excluded.priority, assignee=excluded.assignee,
			last_update=excluded.last_update
	`, t.ID, t.CustomerName, t.Subject, t.Description, string(t.Status), string(t.Priority), t.Assignee,
		created.Format(time.RFC3339Nano), updated.Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("ticket store: save: %w", err)
	}
	return nil
}

const selectColumns = "SELECT id, customer_name, subject, description, status, priority, assignee, created_at, last_update FROM tickets"

func (s *SQLiteStore) Get(ctx context.Context, id string) (*protocol.Ticket, error) {
	row := s.db.QueryRowContext(ctx, selectColumns+" WHERE id = ?", id)
	t, err := scanTicket(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
		}
		return nil, fmt.Errorf("ticket store: get: %w", err)
	}
	return t, nil
}

func (s *SQLiteStore) List(ctx context.Context, filter Filter) ([]*protocol.Ticket, error) {
	query := selectColumns + " WHERE 1=1"
	var args []any

	if filter.Status != nil {
		query += " AND status = ?"
		args = append(args, string(*filter.Status))
	}
	if filter.Priority != nil {
		query += " AND priority = ?"
		args = append(args, string(*filter.Priority))
	}
	if filter.Query != "" {
		query += " AND (subject LIKE ? OR description LIKE ? OR customer_name LIKE ?)"
		pattern := "%" + filter.Query + "%"
		args = append(args, pattern, pattern, pattern)
	}
	query += " ORDER BY seq"
	if filter.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: list: %w", err)
	}
	defer rows.Close()

	tickets := []*protocol.Ticket{}
	for rows.Next() {
		t, err := scanTicket(rows)
		if err != nil {
			return nil, fmt.Errorf("ticket store: list scan: %w", err)
		}
		tickets = append(tickets, t)
	}
	return tickets, rows.Err()
}

func (s *SQLiteStore) Update(ctx context.Context, id string, patch Patch) (*protocol.Ticket, error) {
	query := "UPDATE tickets SET last_update = ?"
	args := []any{s.now().Format(time.RFC3339Nano)}
	if patch.Status != nil {
		query += ", status = ?"
		args = append(args, string(*patch.Status))
	}
	if patch.Priority != nil {
		query += ", priority = ?"
		args = append(args, string(*patch.Priority))
	}
	query += " WHERE id = ?"
	args = append(args, id)

	result, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("ticket store: update: %w", err)
	}
	n, _ := result.RowsAffected()
	if n == 0 {
		return nil, fmt.Errorf("ticket %q: %w", id, ErrNotFound)
	}
	return s.Get(ctx, id)
}

// Close releases the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// --- helpers ---

type scannable interface {
	Scan(dest ...any) error
}

func scanTicket(row scannable) (*protocol.Ticket, error) {
	var t protocol.Ticket
	var status, priority, createdAt, lastUpdate string

	err := row.Scan(&t.ID, &t.CustomerName, &t.Subject, &t.Description, &status, &priority,
		&t.Assignee, &createdAt, &lastUpdate)
	if err != nil {
		return nil, err
	}
	t.Status = protocol.TicketStatus(status)
	t.Priority = protocol.TicketPriority(priority)
	t.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	t.LastUpdate, _ = time.Parse(time.RFC3339Nano, lastUpdate)
	return &t, nil
}
