// Package store persists analysis results so runs can be listed and
// compared later. One row per run; the task tree is stored as a JSON
// payload, with the counts denormalized for cheap listing.
package store

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"loglens/internal/engine"
)

// ErrRunNotFound is returned by LoadRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// RunStore is a sqlite-backed archive of analysis runs.
type RunStore struct {
	db   *sql.DB
	path string
}

// RunMeta is the listing row for one stored run.
type RunMeta struct {
	ID          string    `json:"id"`
	Source      string    `json:"source"`
	CreatedAt   time.Time `json:"created_at"`
	TaskCount   int       `json:"task_count"`
	AuxCount    int       `json:"aux_count"`
	Controllers int       `json:"controllers"`
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id TEXT PRIMARY KEY,
	source TEXT NOT NULL,
	created_at INTEGER NOT NULL,
	task_count INTEGER NOT NULL,
	aux_count INTEGER NOT NULL,
	controller_count INTEGER NOT NULL,
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at DESC);
`

// Open initializes the database at path, creating the directory and schema
// as needed.
func Open(path string) (*RunStore, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create store directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	for _, pragma := range []string{
		"PRAGMA busy_timeout = 5000",
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
	} {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("apply %q: %w", pragma, err)
		}
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("initialize schema: %w", err)
	}
	return &RunStore{db: db, path: path}, nil
}

// SaveRun stores one result and returns the new run id.
func (s *RunStore) SaveRun(source string, res *engine.Result) (string, error) {
	payload, err := json.Marshal(res)
	if err != nil {
		return "", fmt.Errorf("encode result: %w", err)
	}
	id := uuid.NewString()
	_, err = s.db.Exec(
		`INSERT INTO runs (id, source, created_at, task_count, aux_count, controller_count, payload)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, source, time.Now().UnixMilli(),
		len(res.Tasks), len(res.AuxLogs), len(res.Controllers), payload,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}
	return id, nil
}

// ListRuns returns the newest runs first. A non-positive limit lists all.
func (s *RunStore) ListRuns(limit int) ([]RunMeta, error) {
	q := `SELECT id, source, created_at, task_count, aux_count, controller_count
	      FROM runs ORDER BY created_at DESC`
	var args []interface{}
	if limit > 0 {
		q += " LIMIT ?"
		args = append(args, limit)
	}
	rows, err := s.db.Query(q, args...)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var out []RunMeta
	for rows.Next() {
		var m RunMeta
		var createdMS int64
		if err := rows.Scan(&m.ID, &m.Source, &createdMS, &m.TaskCount, &m.AuxCount, &m.Controllers); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		m.CreatedAt = time.UnixMilli(createdMS)
		out = append(out, m)
	}
	return out, rows.Err()
}

// LoadRun decodes one stored result.
func (s *RunStore) LoadRun(id string) (*engine.Result, error) {
	var payload []byte
	err := s.db.QueryRow(`SELECT payload FROM runs WHERE id = ?`, id).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", id, err)
	}
	var res engine.Result
	if err := json.Unmarshal(payload, &res); err != nil {
		return nil, fmt.Errorf("decode run %s: %w", id, err)
	}
	return &res, nil
}

// Close releases the database handle.
func (s *RunStore) Close() error {
	return s.db.Close()
}
