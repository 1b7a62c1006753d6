package audit

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store persists audit events to SQLite.
type Store struct {
	db *sql.DB
}

// OpenStore opens (or creates) the journal table in the database at path.
func OpenStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_journal=WAL&_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open audit store: %w", err)
	}
	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) migrate() error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS audit_events (
			event_id      TEXT PRIMARY KEY,
			session_id    TEXT NOT NULL,
			category      TEXT NOT NULL,
			operation     TEXT NOT NULL,
			user_name     TEXT NOT NULL DEFAULT '',
			status        TEXT NOT NULL,
			error_kind    TEXT NOT NULL DEFAULT '',
			error_message TEXT NOT NULL DEFAULT '',
			started_at    INTEGER NOT NULL,
			duration_ms   INTEGER NOT NULL
		);
		CREATE INDEX IF NOT EXISTS idx_audit_started ON audit_events(started_at);
	`)
	if err != nil {
		return fmt.Errorf("migrate audit store: %w", err)
	}
	return nil
}

// Save persists an audit event.
func (s *Store) Save(ctx context.Context, e *Event) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_events
			(event_id, session_id, category, operation, user_name, status,
			 error_kind, error_message, started_at, duration_ms)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.EventID, e.SessionID, string(e.Category), e.Operation, e.User, string(e.Status),
		e.ErrorKind, e.ErrorMessage, e.StartedAt.UnixMilli(), e.DurationMs,
	)
	if err != nil {
		return fmt.Errorf("save audit event: %w", err)
	}
	return nil
}

// QueryFilter defines filters for querying audit events.
type QueryFilter struct {
	Category Category
	Status   Status
	Since    time.Time
	Limit    int
}

// Query returns matching events, newest first.
func (s *Store) Query(ctx context.Context, filter QueryFilter) ([]Event, error) {
	var conditions []string
	var args []any

	if filter.Category != "" {
		conditions = append(conditions, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.Status != "" {
		conditions = append(conditions, "status = ?")
		args = append(args, string(filter.Status))
	}
	if !filter.Since.IsZero() {
		conditions = append(conditions, "started_at >= ?")
		args = append(args, filter.Since.UnixMilli())
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = 100
	}
	args = append(args, limit)

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	rows, err := s.db.QueryContext(ctx, fmt.Sprintf(`
		SELECT event_id, session_id, category, operation, user_name, status,
		       error_kind, error_message, started_at, duration_ms
		FROM audit_events
		%s
		ORDER BY started_at DESC, rowid DESC
		LIMIT ?`, where), args...)
	if err != nil {
		return nil, fmt.Errorf("query audit events: %w", err)
	}
	defer rows.Close()

	var events []Event
	for rows.Next() {
		var e Event
		var category, status string
		var started int64
		if err := rows.Scan(&e.EventID, &e.SessionID, &category, &e.Operation, &e.User, &status,
			&e.ErrorKind, &e.ErrorMessage, &started, &e.DurationMs); err != nil {
			return nil, fmt.Errorf("scan audit event: %w", err)
		}
		e.Category = Category(category)
		e.Status = Status(status)
		e.StartedAt = time.UnixMilli(started)
		e.Duration = time.Duration(e.DurationMs) * time.Millisecond
		e.CompletedAt = e.StartedAt.Add(e.Duration)
		events = append(events, e)
	}
	return events, rows.Err()
}

// Errors returns recent failed events.
func (s *Store) Errors(ctx context.Context, limit int) ([]Event, error) {
	return s.Query(ctx, QueryFilter{Status: StatusError, Limit: limit})
}

// CategoryStats counts events in one category.
type CategoryStats struct {
	Total  int
	Errors int
}

// Stats summarizes the journal.
type Stats struct {
	Total         int
	Success       int
	Errors        int
	Refused       int
	AvgDurationMs float64
	MaxDurationMs int64
	ByCategory    map[Category]CategoryStats
}

// Stats returns journal statistics.
func (s *Store) Stats(ctx context.Context) (*Stats, error) {
	st := &Stats{ByCategory: make(map[Category]CategoryStats)}

	err := s.db.QueryRowContext(ctx, `
		SELECT count(*),
		       coalesce(sum(CASE WHEN status = 'success' THEN 1 ELSE 0 END), 0),
		       coalesce(sum(CASE WHEN status = 'error' THEN 1 ELSE 0 END), 0),
		       coalesce(sum(CASE WHEN status = 'refused' THEN 1 ELSE 0 END), 0),
		       coalesce(avg(duration_ms), 0),
		       coalesce(max(duration_ms), 0)
		FROM audit_events`).Scan(&st.Total, &st.Success, &st.Errors, &st.Refused, &st.AvgDurationMs, &st.MaxDurationMs)
	if err != nil {
		return nil, fmt.Errorf("audit stats: %w", err)
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT category, count(*),
		       sum(CASE WHEN status = 'error' THEN 1 ELSE 0 END)
		FROM audit_events
		GROUP BY category`)
	if err != nil {
		return nil, fmt.Errorf("audit stats by category: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var cat string
		var cs CategoryStats
		if err := rows.Scan(&cat, &cs.Total, &cs.Errors); err != nil {
			return nil, fmt.Errorf("scan audit stats: %w", err)
		}
		st.ByCategory[Category(cat)] = cs
	}
	return st, rows.Err()
}

// Prune deletes all but the newest keep events.
func (s *Store) Prune(ctx context.Context, keep int) (int64, error) {
	res, err := s.db.ExecContext(ctx, `
		DELETE FROM audit_events
		WHERE event_id NOT IN (
			SELECT event_id FROM audit_events ORDER BY started_at DESC, rowid DESC LIMIT ?
		)`, keep)
	if err != nil {
		return 0, fmt.Errorf("prune audit events: %w", err)
	}
	return res.RowsAffected()
}

// Ping verifies the database is reachable.
func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}
