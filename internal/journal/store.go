// Package journal persists a run journal of scrape attempts for operator
// inspection. The credential itself is never written here.
package journal

import (
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite" // Pure Go SQLite driver

	"github.com/creatorstats/qptrd/internal/outcome"
)

// Entry is one recorded scrape attempt.
type Entry struct {
	ID         string    `json:"id"`
	GameID     string    `json:"game_id"`
	Success    bool      `json:"success"`
	Method     string    `json:"method"`
	ReasonCode string    `json:"reason_code"`
	QPTR       string    `json:"qptr,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the SQLite-backed journal.
type Store struct {
	db     *sql.DB
	logger *slog.Logger
}

// Open creates or opens the journal database. Pass ":memory:" for an
// ephemeral journal.
func Open(dbPath string, logger *slog.Logger) (*Store, error) {
	var connStr string
	if dbPath == ":memory:" {
		connStr = "file::memory:?cache=shared&_timeout=5000&_busy_timeout=5000"
	} else {
		dir := filepath.Dir(dbPath)
		if dir != "" && dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create directory: %w", err)
			}
		}
		connStr = dbPath + "?_journal=WAL&_timeout=5000&_busy_timeout=5000"
	}

	db, err := sql.Open("sqlite", connStr)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite is single-writer
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	s := &Store{db: db, logger: logger}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	logger.Info("run journal initialized", "path", dbPath)
	return s, nil
}

func (s *Store) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS runs (
		id TEXT PRIMARY KEY,
		game_id TEXT NOT NULL DEFAULT '',
		success INTEGER NOT NULL DEFAULT 0,
		method TEXT NOT NULL DEFAULT '',
		reason_code TEXT NOT NULL DEFAULT '',
		qptr TEXT NOT NULL DEFAULT '',
		duration_ms INTEGER NOT NULL DEFAULT 0,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_runs_created_at ON runs(created_at);
	CREATE INDEX IF NOT EXISTS idx_runs_game_id ON runs(game_id);
	`
	_, err := s.db.Exec(schema)
	return err
}

// Record appends one attempt derived from its outcome.
func (s *Store) Record(gameID string, o *outcome.Outcome, elapsed time.Duration) error {
	entry := Entry{
		ID:         ulid.Make().String(),
		GameID:     gameID,
		Success:    o.Success,
		Method:     string(o.Method),
		ReasonCode: string(o.Reason),
		QPTR:       o.Artifact,
		DurationMS: elapsed.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}

	query := `
	INSERT INTO runs (id, game_id, success, method, reason_code, qptr, duration_ms, created_at)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := s.db.Exec(query,
		entry.ID,
		entry.GameID,
		boolToInt(entry.Success),
		entry.Method,
		entry.ReasonCode,
		entry.QPTR,
		entry.DurationMS,
		entry.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("failed to record run: %w", err)
	}

	s.logger.Debug("run journaled", "id", entry.ID, "reason_code", entry.ReasonCode)
	return nil
}

// Recent returns the latest n entries, newest first.
func (s *Store) Recent(n int) ([]Entry, error) {
	query := `
	SELECT id, game_id, success, method, reason_code, qptr, duration_ms, created_at
	FROM runs
	ORDER BY created_at DESC, id DESC
	LIMIT ?
	`
	rows, err := s.db.Query(query, n)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var (
			e         Entry
			success   int
			createdAt string
		)
		if err := rows.Scan(&e.ID, &e.GameID, &success, &e.Method, &e.ReasonCode, &e.QPTR, &e.DurationMS, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Success = success != 0
		if t, perr := time.Parse(time.RFC3339, createdAt); perr == nil {
			e.CreatedAt = t
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
