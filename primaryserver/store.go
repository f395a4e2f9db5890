package primaryserver

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jacokyle01/analysis-session/models"
)

// Store keeps finished results by job ID.
type Store interface {
	Put(ctx context.Context, r models.Result) error
	Get(ctx context.Context, jobID string) (models.Result, bool, error)
	Close() error
}

// MemoryStore is a Store that lives only as long as the process.
type MemoryStore struct {
	mu      sync.RWMutex
	results map[string]models.Result
}

// NewMemoryStore returns an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{results: make(map[string]models.Result)}
}

func (m *MemoryStore) Put(_ context.Context, r models.Result) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.results[r.JobID] = r
	return nil
}

func (m *MemoryStore) Get(_ context.Context, jobID string) (models.Result, bool, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	r, ok := m.results[jobID]
	return r, ok, nil
}

func (m *MemoryStore) Close() error { return nil }

const resultsSchema = `
CREATE TABLE IF NOT EXISTS results (
	job_id     TEXT PRIMARY KEY,
	best_move  TEXT NOT NULL,
	depth      INTEGER NOT NULL,
	body       TEXT NOT NULL,
	created_at INTEGER NOT NULL
)`

// SQLiteStore persists results in a SQLite database.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLiteStore opens (creating if needed) the results database at path.
func OpenSQLiteStore(ctx context.Context, path string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// One connection keeps ":memory:" databases coherent and serializes
	// writers.
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, "PRAGMA busy_timeout=5000"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout on %s: %w", path, err)
	}
	if _, err := db.ExecContext(ctx, resultsSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create results table in %s: %w", path, err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Put(ctx context.Context, r models.Result) error {
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode result: %w", err)
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO results (job_id, best_move, depth, body, created_at)
VALUES (?, ?, ?, ?, ?)
ON CONFLICT(job_id) DO UPDATE SET
	best_move = excluded.best_move,
	depth = excluded.depth,
	body = excluded.body`,
		r.JobID, r.BestMove, r.Depth, string(body), time.Now().Unix())
	if err != nil {
		return fmt.Errorf("insert result %s: %w", r.JobID, err)
	}
	return nil
}

func (s *SQLiteStore) Get(ctx context.Context, jobID string) (models.Result, bool, error) {
	var body string
	err := s.db.QueryRowContext(ctx, `SELECT body FROM results WHERE job_id = ?`, jobID).Scan(&body)
	if errors.Is(err, sql.ErrNoRows) {
		return models.Result{}, false, nil
	}
	if err != nil {
		return models.Result{}, false, fmt.Errorf("query result %s: %w", jobID, err)
	}
	var r models.Result
	if err := json.Unmarshal([]byte(body), &r); err != nil {
		return models.Result{}, false, fmt.Errorf("decode result %s: %w", jobID, err)
	}
	return r, true, nil
}

func (s *SQLiteStore) Close() error { return s.db.Close() }
