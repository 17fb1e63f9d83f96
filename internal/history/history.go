// Package history provides a SQLite-backed store for past research queries
// and user feedback. Answers are persisted across server restarts; recent
// queries are injected into the planner context on subsequent requests, and
// feedback rows link back to the query they rate.
package history

import (
	"context"
	"crypto/rand"
	"database/sql"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver
)

// ErrNotFound is returned when a query or feedback row does not exist.
var ErrNotFound = errors.New("history: not found")

// Record is a persisted research query and its synthesized answer.
type Record struct {
	ID         string    `json:"id"`
	Query      string    `json:"query"`
	Answer     string    `json:"answer"`
	Reasoning  string    `json:"reasoning,omitempty"`
	AgentsUsed []string  `json:"agents_used,omitempty"`
	Confidence float64   `json:"confidence"`
	CreatedAt  time.Time `json:"created_at"`
}

// Feedback is a user rating attached to a past query.
type Feedback struct {
	ID        string    `json:"id"`
	QueryID   string    `json:"query_id"`
	Rating    int       `json:"rating"`
	Comment   string    `json:"comment,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Store persists research queries and feedback. Implementations must be
// safe for concurrent use.
type Store interface {
	// SaveQuery persists a completed query and returns its assigned ID.
	SaveQuery(ctx context.Context, rec *Record) (string, error)
	// Recent returns the most recent n records, ordered oldest-first so
	// they can be folded into the planner context directly.
	Recent(ctx context.Context, n int) ([]Record, error)
	// List returns one page of records, newest-first, plus the total count.
	// Pages are 1-based.
	List(ctx context.Context, page, size int) ([]Record, int, error)
	// Get returns the record with the given ID, or ErrNotFound.
	Get(ctx context.Context, id string) (*Record, error)
	// SaveFeedback attaches a rating to an existing query. Returns
	// ErrNotFound when the query ID is unknown.
	SaveFeedback(ctx context.Context, fb *Feedback) (string, error)
	// Close releases any resources held by the store.
	Close() error
}

// SQLiteStore is a Store backed by a local SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// DefaultDBPath returns the default path for the history database.
// It resolves to ~/.prodscout/history.db, creating the directory if needed.
func DefaultDBPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("history: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".prodscout")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("history: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "history.db"), nil
}

// Open opens (or creates) a SQLiteStore at the given path and runs the schema
// migration. Use ":memory:" for an in-memory database in tests.
func Open(path string) (*SQLiteStore, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("history: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent writes.
	db.SetMaxOpenConns(1)

	s := &SQLiteStore{db: db}
	if err := s.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

// migrate creates the schema if it does not already exist.
func (s *SQLiteStore) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS queries (
    id           TEXT    PRIMARY KEY,
    query        TEXT    NOT NULL,
    answer       TEXT    NOT NULL,
    reasoning    TEXT    NOT NULL DEFAULT '',
    agents_used  TEXT    NOT NULL DEFAULT '[]',  -- JSON array of worker names
    confidence   REAL    NOT NULL DEFAULT 0,
    created_at   INTEGER NOT NULL                -- Unix timestamp (seconds)
);
CREATE INDEX IF NOT EXISTS idx_queries_created
    ON queries (created_at);
CREATE TABLE IF NOT EXISTS feedback (
    id           TEXT    PRIMARY KEY,
    query_id     TEXT    NOT NULL REFERENCES queries(id),
    rating       INTEGER NOT NULL CHECK(rating BETWEEN 1 AND 5),
    comment      TEXT    NOT NULL DEFAULT '',
    created_at   INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_feedback_query
    ON feedback (query_id);
`
	if _, err := s.db.Exec(ddl); err != nil {
		return fmt.Errorf("history: migrate: %w", err)
	}
	return nil
}

// newID returns a random 32-character hex identifier.
func newID() string {
	var b [16]byte
	if _, err := rand.Read(b[:]); err != nil {
		// crypto/rand failure means the platform RNG is broken; fall back
		// to a timestamp so inserts still get unique-enough IDs.
		return fmt.Sprintf("%032x", time.Now().UnixNano())
	}
	return hex.EncodeToString(b[:])
}

// SaveQuery persists a completed query and returns its assigned ID.
func (s *SQLiteStore) SaveQuery(ctx context.Context, rec *Record) (string, error) {
	id := rec.ID
	if id == "" {
		id = newID()
	}
	agents, err := json.Marshal(rec.AgentsUsed)
	if err != nil {
		return "", fmt.Errorf("history: marshal agents: %w", err)
	}
	created := rec.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	const q = `INSERT INTO queries (id, query, answer, reasoning, agents_used, confidence, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, rec.Query, rec.Answer, rec.Reasoning, string(agents), rec.Confidence, created.Unix()); err != nil {
		return "", fmt.Errorf("history: save query: %w", err)
	}
	return id, nil
}

// Recent returns the most recent n records, ordered oldest-first.
// Uses a subquery to select the tail then re-order for injection.
func (s *SQLiteStore) Recent(ctx context.Context, n int) ([]Record, error) {
	const q = `
SELECT id, query, answer, reasoning, agents_used, confidence, created_at FROM (
    SELECT rowid AS rid, id, query, answer, reasoning, agents_used, confidence, created_at
    FROM   queries
    ORDER  BY created_at DESC, rid DESC
    LIMIT  ?
) ORDER BY created_at ASC, rid ASC`

	rows, err := s.db.QueryContext(ctx, q, n)
	if err != nil {
		return nil, fmt.Errorf("history: recent: %w", err)
	}
	defer rows.Close()
	return scanRecords(rows)
}

// List returns one page of records, newest-first, plus the total count.
func (s *SQLiteStore) List(ctx context.Context, page, size int) ([]Record, int, error) {
	if page < 1 {
		page = 1
	}
	if size < 1 {
		size = 20
	}

	var total int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM queries`).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("history: count: %w", err)
	}

	const q = `
SELECT id, query, answer, reasoning, agents_used, confidence, created_at
FROM   queries
ORDER  BY created_at DESC, rowid DESC
LIMIT  ? OFFSET ?`

	rows, err := s.db.QueryContext(ctx, q, size, (page-1)*size)
	if err != nil {
		return nil, 0, fmt.Errorf("history: list: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, 0, err
	}
	return recs, total, nil
}

// Get returns the record with the given ID, or ErrNotFound.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Record, error) {
	const q = `
SELECT id, query, answer, reasoning, agents_used, confidence, created_at
FROM   queries WHERE id = ?`

	rows, err := s.db.QueryContext(ctx, q, id)
	if err != nil {
		return nil, fmt.Errorf("history: get: %w", err)
	}
	defer rows.Close()

	recs, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}
	if len(recs) == 0 {
		return nil, ErrNotFound
	}
	return &recs[0], nil
}

// SaveFeedback attaches a rating to an existing query.
func (s *SQLiteStore) SaveFeedback(ctx context.Context, fb *Feedback) (string, error) {
	if fb.Rating < 1 || fb.Rating > 5 {
		return "", fmt.Errorf("history: rating must be between 1 and 5, got %d", fb.Rating)
	}

	// Check the query exists first so callers can distinguish a missing
	// query from a constraint failure.
	var exists int
	err := s.db.QueryRowContext(ctx, `SELECT 1 FROM queries WHERE id = ?`, fb.QueryID).Scan(&exists)
	if errors.Is(err, sql.ErrNoRows) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("history: feedback lookup: %w", err)
	}

	id := fb.ID
	if id == "" {
		id = newID()
	}
	created := fb.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	const q = `INSERT INTO feedback (id, query_id, rating, comment, created_at) VALUES (?, ?, ?, ?, ?)`
	if _, err := s.db.ExecContext(ctx, q, id, fb.QueryID, fb.Rating, fb.Comment, created.Unix()); err != nil {
		return "", fmt.Errorf("history: save feedback: %w", err)
	}
	return id, nil
}

// Close releases the database connection pool.
func (s *SQLiteStore) Close() error {
	if err := s.db.Close(); err != nil {
		return fmt.Errorf("history: close: %w", err)
	}
	return nil
}

func scanRecords(rows *sql.Rows) ([]Record, error) {
	var recs []Record
	for rows.Next() {
		var r Record
		var agents string
		var ts int64
		if err := rows.Scan(&r.ID, &r.Query, &r.Answer, &r.Reasoning, &agents, &r.Confidence, &ts); err != nil {
			return nil, fmt.Errorf("history: scan: %w", err)
		}
		if agents != "" && agents != "null" {
			if err := json.Unmarshal([]byte(agents), &r.AgentsUsed); err != nil {
				return nil, fmt.Errorf("history: unmarshal agents: %w", err)
			}
		}
		r.CreatedAt = time.Unix(ts, 0)
		recs = append(recs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("history: rows: %w", err)
	}
	return recs, nil
}
