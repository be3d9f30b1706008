package session

// The journal is a SQLite-backed append-only record of turns. It lets the memory store
// survive restarts and evictions; it is never the source of truth for a live session.

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/comigor/askdata-go/internal/logger"
)

// Journal persists turns to a SQLite file.
type Journal struct {
	db *sql.DB
}

// OpenJournal opens (or creates) the journal database at path.
func OpenJournal(ctx context.Context, path string) (*Journal, error) {
	db, err := sql.Open("sqlite", "file:"+path+"?_pragma=busy_timeout(10000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	if _, err = db.ExecContext(ctx, `CREATE TABLE IF NOT EXISTS turns (
        id INTEGER PRIMARY KEY AUTOINCREMENT,
        session_id TEXT NOT NULL,
        role TEXT NOT NULL,
        content TEXT NOT NULL,
        created_at INTEGER NOT NULL
    );`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal table: %w", err)
	}
	if _, err = db.ExecContext(ctx, `CREATE INDEX IF NOT EXISTS turns_session_id ON turns (session_id, id);`); err != nil {
		db.Close()
		return nil, fmt.Errorf("create journal index: %w", err)
	}
	logger.L.Info("session journal initialized", "path", path)
	return &Journal{db: db}, nil
}

// Record appends turns for a session in one transaction.
func (j *Journal) Record(ctx context.Context, sessionID string, turns ...Turn) error {
	tx, err := j.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, t := range turns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO turns (session_id, role, content, created_at) VALUES (?,?,?,?);`,
			sessionID, string(t.Role), t.Content, t.Timestamp.UnixNano()); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// Load returns all turns of a session in insertion order.
func (j *Journal) Load(ctx context.Context, sessionID string) ([]Turn, error) {
	rows, err := j.db.QueryContext(ctx,
		`SELECT role, content, created_at FROM turns WHERE session_id = ? ORDER BY id ASC;`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []Turn
	for rows.Next() {
		var (
			t    Turn
			role string
			ts   int64
		)
		if err := rows.Scan(&role, &t.Content, &ts); err != nil {
			return nil, err
		}
		t.Role = Role(role)
		t.Timestamp = time.Unix(0, ts).UTC()
		out = append(out, t)
	}
	return out, rows.Err()
}

// Close closes the underlying database.
func (j *Journal) Close() error {
	return j.db.Close()
}
