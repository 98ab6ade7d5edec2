package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// Journal is a write-only audit log of suspend-policy changes, backed by
// SQLite. The daemon only appends to it; the history and tui commands
// read it. It is never consulted to rebuild state after a restart.
type Journal struct {
	db *sql.DB
}

// Entry is one recorded policy event.
type Entry struct {
	ID     int64
	Time   time.Time
	Player string // bus name of the tracked player, if any
	Status string // playback status that triggered the event
	Action string // "inhibit" or "restore"
	OK     bool   // whether the settings writes succeeded
	Detail string // error text on failure, empty otherwise
}

// Open creates or opens a journal database at the given path.
func Open(dbPath string) (*Journal, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// A single writer (the daemon) plus occasional readers; one
	// connection keeps modernc/sqlite simple and consistent.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA busy_timeout = 10000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA journal_mode = WAL",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	schema := `
		CREATE TABLE IF NOT EXISTS policy_events (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			occurred_at INTEGER NOT NULL,
			player TEXT,
			status TEXT NOT NULL,
			action TEXT NOT NULL,
			ok BOOLEAN NOT NULL,
			detail TEXT
		);

		CREATE INDEX IF NOT EXISTS idx_occurred_at ON policy_events(occurred_at);
	`
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db != nil {
		return j.db.Close()
	}
	return nil
}

// Record appends a policy event.
func (j *Journal) Record(ctx context.Context, e Entry) (int64, error) {
	when := e.Time
	if when.IsZero() {
		when = time.Now()
	}

	query := `
		INSERT INTO policy_events (occurred_at, player, status, action, ok, detail)
		VALUES (?, ?, ?, ?, ?, ?)
	`
	result, err := j.db.ExecContext(ctx, query,
		when.Unix(),
		e.Player,
		e.Status,
		e.Action,
		e.OK,
		e.Detail,
	)
	if err != nil {
		return 0, fmt.Errorf("failed to insert policy event: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get insert id: %w", err)
	}
	return id, nil
}

// Recent returns the newest events, newest first.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	query := `
		SELECT id, occurred_at, COALESCE(player, ''), status, action, ok, COALESCE(detail, '')
		FROM policy_events
		ORDER BY occurred_at DESC, id DESC
	`
	if limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", limit)
	}

	rows, err := j.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query policy events: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var occurredAt int64

		if err := rows.Scan(&e.ID, &occurredAt, &e.Player, &e.Status, &e.Action, &e.OK, &e.Detail); err != nil {
			return nil, fmt.Errorf("failed to scan policy event: %w", err)
		}
		e.Time = time.Unix(occurredAt, 0)
		entries = append(entries, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating policy events: %w", err)
	}
	return entries, nil
}

// Prune removes events older than maxAge to keep the journal bounded.
func (j *Journal) Prune(ctx context.Context, maxAge time.Duration) (int64, error) {
	cutoff := time.Now().Add(-maxAge).Unix()

	result, err := j.db.ExecContext(ctx, "DELETE FROM policy_events WHERE occurred_at < ?", cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune policy events: %w", err)
	}

	deleted, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to get rows affected: %w", err)
	}
	return deleted, nil
}

// Count returns the number of recorded events.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var count int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM policy_events").Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count policy events: %w", err)
	}
	return count, nil
}
