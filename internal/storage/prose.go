package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Prose kinds stored as blobs.
const (
	ProseChapter = "chapter"
	ProseScene   = "scene"
)

const proseSchema = `
CREATE TABLE IF NOT EXISTS prose (
	kind       TEXT NOT NULL,
	id         TEXT NOT NULL,
	body       TEXT NOT NULL,
	words      INTEGER NOT NULL,
	updated_at INTEGER NOT NULL,
	PRIMARY KEY (kind, id)
)`

// ProseStore keeps chapter and scene prose out of Redis in a SQLite file.
type ProseStore struct {
	db *sql.DB
}

// OpenProseStore opens (or creates) the SQLite database at dsn. A dsn
// without a "file:" prefix is treated as a path.
func OpenProseStore(dsn string) (*ProseStore, error) {
	if strings.TrimSpace(dsn) == "" {
		return nil, fmt.Errorf("prose dsn is required")
	}
	if !strings.HasPrefix(dsn, "file:") {
		dsn = "file:" + dsn
	}
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(proseSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create prose table: %w", err)
	}
	return &ProseStore{db: db}, nil
}

func (p *ProseStore) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close releases the SQLite connection.
func (p *ProseStore) Close() error {
	if p == nil || p.db == nil {
		return nil
	}
	return p.db.Close()
}

// Put upserts the prose for (kind, id).
func (p *ProseStore) Put(ctx context.Context, kind, id, body string) error {
	_, err := p.db.ExecContext(ctx, `
INSERT INTO prose (kind, id, body, words, updated_at) VALUES (?, ?, ?, ?, ?)
ON CONFLICT (kind, id) DO UPDATE SET body = excluded.body, words = excluded.words, updated_at = excluded.updated_at`,
		kind, id, body, len(strings.Fields(body)), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("put %s prose %s: %w", kind, id, err)
	}
	return nil
}

// Get returns "" when nothing is stored.
func (p *ProseStore) Get(ctx context.Context, kind, id string) (string, error) {
	var body string
	err := p.db.QueryRowContext(ctx, `SELECT body FROM prose WHERE kind = ? AND id = ?`, kind, id).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("get %s prose %s: %w", kind, id, err)
	}
	return body, nil
}

func (p *ProseStore) Delete(ctx context.Context, kind, id string) error {
	if _, err := p.db.ExecContext(ctx, `DELETE FROM prose WHERE kind = ? AND id = ?`, kind, id); err != nil {
		return fmt.Errorf("delete %s prose %s: %w", kind, id, err)
	}
	return nil
}
