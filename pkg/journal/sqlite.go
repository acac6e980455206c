package journal

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultLimit is used by Recent when limit is not positive.
const DefaultLimit = 50

// SQLiteRepository implements Repository using SQLite.
type SQLiteRepository struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteRepository opens the journal at dbPath, creating it if needed.
// The dbPath can be a file path or ":memory:".
func NewSQLiteRepository(dbPath string) (*SQLiteRepository, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	repo, err := NewRepository(db)
	if err != nil {
		db.Close()
		return nil, err
	}
	return repo, nil
}

// NewRepository wraps an open database and brings its schema up to date.
func NewRepository(db *sql.DB) (*SQLiteRepository, error) {
	repo := &SQLiteRepository{db: db, now: time.Now}
	if err := repo.migrate(); err != nil {
		return nil, fmt.Errorf("failed to migrate journal: %w", err)
	}
	return repo, nil
}

func (r *SQLiteRepository) migrate() error {
	var currentVersion int
	err := r.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_version").Scan(&currentVersion)
	if err != nil {
		// No schema_version table yet.
		if _, err := r.db.Exec(Schema); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
		_, err = r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", SchemaVersion)
		return err
	}

	for v := currentVersion + 1; v <= SchemaVersion; v++ {
		migration, ok := Migrations[v]
		if !ok {
			continue
		}
		if _, err := r.db.Exec(migration); err != nil {
			return fmt.Errorf("failed to run migration %d: %w", v, err)
		}
		if _, err := r.db.Exec("INSERT INTO schema_version (version) VALUES (?)", v); err != nil {
			return fmt.Errorf("failed to record migration %d: %w", v, err)
		}
	}
	return nil
}

// Close closes the database connection.
func (r *SQLiteRepository) Close() error {
	return r.db.Close()
}

// Record inserts e and sets its ID. A zero CreatedAt is set to now.
func (r *SQLiteRepository) Record(ctx context.Context, e *Event) error {
	if e.CreatedAt.IsZero() {
		e.CreatedAt = r.now().UTC()
	}

	var online sql.NullBool
	if e.Online != nil {
		online = sql.NullBool{Bool: *e.Online, Valid: true}
	}
	var lastSeen sql.NullInt64
	if e.LastSeenAge != nil {
		lastSeen = sql.NullInt64{Int64: int64(*e.LastSeenAge / time.Second), Valid: true}
	}

	result, err := r.db.ExecContext(ctx, `
		INSERT INTO events (session_id, worker, kind, online, last_seen_seconds, failures, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		e.SessionID, e.Worker, string(e.Kind), online, lastSeen, e.Failures, e.Message, e.CreatedAt)
	if err != nil {
		return fmt.Errorf("record %s event for %s: %w", e.Kind, e.Worker, err)
	}
	e.ID, _ = result.LastInsertId()
	return nil
}

// Recent returns up to limit events, newest first.
func (r *SQLiteRepository) Recent(ctx context.Context, worker string, limit int) ([]*Event, error) {
	if limit <= 0 {
		limit = DefaultLimit
	}

	query := `
		SELECT id, session_id, worker, kind, online, last_seen_seconds, failures, message, created_at
		FROM events`
	args := []interface{}{}
	if worker != "" {
		query += " WHERE worker = ?"
		args = append(args, worker)
	}
	query += " ORDER BY created_at DESC, id DESC LIMIT ?"
	args = append(args, limit)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []*Event
	for rows.Next() {
		e := &Event{}
		var (
			kind     string
			online   sql.NullBool
			lastSeen sql.NullInt64
			message  sql.NullString
		)
		if err := rows.Scan(&e.ID, &e.SessionID, &e.Worker, &kind, &online, &lastSeen,
			&e.Failures, &message, &e.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Kind = Kind(kind)
		e.Message = message.String
		if online.Valid {
			v := online.Bool
			e.Online = &v
		}
		if lastSeen.Valid {
			age := time.Duration(lastSeen.Int64) * time.Second
			e.LastSeenAge = &age
		}
		events = append(events, e)
	}
	return events, rows.Err()
}

var _ Repository = (*SQLiteRepository)(nil)
