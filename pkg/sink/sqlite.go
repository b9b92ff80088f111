package sink

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/vnykmshr/prioflow/pkg/task"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id         TEXT PRIMARY KEY,
	pipeline   TEXT NOT NULL,
	started_at TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS records (
	id          INTEGER PRIMARY KEY AUTOINCREMENT,
	run_id      TEXT NOT NULL,
	seq         INTEGER NOT NULL,
	name        TEXT NOT NULL,
	priority    INTEGER NOT NULL,
	status      TEXT NOT NULL,
	worker_id   INTEGER NOT NULL,
	duration_ns INTEGER NOT NULL,
	error       TEXT NOT NULL DEFAULT '',
	created_at  TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_records_run ON records(run_id, seq);
`

// SQLite persists completion records as an audit trail. Records written
// outside a run are stored under an empty run id.
type SQLite struct {
	db  *sql.DB
	log zerolog.Logger

	mu    sync.Mutex
	runID string
	seq   int
}

// OpenSQLite opens (or creates) the database at path and applies the
// schema. Use ":memory:" for a throwaway database.
func OpenSQLite(ctx context.Context, path string, logger zerolog.Logger) (*SQLite, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", path, err)
	}
	// The logger is the only writer, and ":memory:" databases are private
	// to one connection.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, "PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma wal: %w", err)
	}
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &SQLite{
		db:  db,
		log: logger.With().Str("component", "sqlite-sink").Logger(),
	}, nil
}

// BeginRun implements RunScoped. Sequence numbers restart at 1.
func (s *SQLite) BeginRun(ctx context.Context, pipeline, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO runs (id, pipeline, started_at) VALUES (?, ?, ?)`,
		runID, pipeline, time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	s.runID = runID
	s.seq = 0
	s.log.Debug().Str("run_id", runID).Msg("run started")
	return nil
}

// Consume implements Sink.
func (s *SQLite) Consume(ctx context.Context, rec task.Record) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.seq++
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO records (run_id, seq, name, priority, status, worker_id, duration_ns, error, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		s.runID, s.seq, rec.Task.Name, int(rec.Task.Priority), string(rec.Status),
		rec.WorkerID, int64(rec.Duration), rec.Err, time.Now().UTC().Format(time.RFC3339Nano),
	)
	if err != nil {
		return fmt.Errorf("insert record %q: %w", rec.Task.Name, err)
	}
	return nil
}

// Records returns the records stored for runID in arrival order.
func (s *SQLite) Records(ctx context.Context, runID string) ([]task.Record, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT name, priority, status, worker_id, duration_ns, error
		 FROM records WHERE run_id = ? ORDER BY seq`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []task.Record
	for rows.Next() {
		var (
			rec      task.Record
			priority int
			status   string
			duration int64
		)
		if err := rows.Scan(&rec.Task.Name, &priority, &status, &rec.WorkerID, &duration, &rec.Err); err != nil {
			return nil, err
		}
		rec.Task.Priority = task.Priority(priority)
		rec.Status = task.Status(status)
		rec.Duration = time.Duration(duration)
		out = append(out, rec)
	}
	return out, rows.Err()
}

// LastRun returns the id of the most recently started run, or "" when
// none is stored.
func (s *SQLite) LastRun(ctx context.Context) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM runs ORDER BY started_at DESC, rowid DESC LIMIT 1`).Scan(&id)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return id, err
}

// Close closes the database.
func (s *SQLite) Close() error {
	return s.db.Close()
}
