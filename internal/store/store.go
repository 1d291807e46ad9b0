// Package store implements the Sample Record Store (spec.md §4.3): an
// append-only accumulation of every Batch produced during a run, with an
// optional SQLite-backed persistent form scoped to exactly that one run
// (cross-run history is an explicit non-goal). Schema and transactional
// save pattern are adapted from the teacher's internal/storage/sqlite.go.
package store

import (
	"database/sql"
	"fmt"
	"sync"

	_ "github.com/mattn/go-sqlite3"

	"github.com/jpequegn/wasmbench/internal/measure"
)

// Store accumulates Batches as they complete. Safe for concurrent
// AppendBatch calls from the Orchestrator's worker pool.
type Store struct {
	mu      sync.Mutex
	batches []measure.Batch
}

func New() *Store {
	return &Store{}
}

// AppendBatch records one cell's finished Batch. Batches never merge: each
// call adds exactly one entry, in whatever order cells complete.
func (s *Store) AppendBatch(b measure.Batch) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.batches = append(s.batches, b)
}

// Snapshot returns every recorded Batch, in append order.
func (s *Store) Snapshot() []measure.Batch {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]measure.Batch, len(s.batches))
	copy(out, s.batches)
	return out
}

// SQLiteSink persists a Store's batches to a single-run SQLite database, a
// durability option for raw.json's samples (spec.md §6). It intentionally
// carries no query surface for prior runs: each file is scoped to one run,
// matching the store's own non-goal.
type SQLiteSink struct {
	db *sql.DB
}

// NewSQLiteSink opens (creating if absent) a SQLite database at path and
// prepares its schema.
func NewSQLiteSink(path string) (*SQLiteSink, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("opening sample database: %w", err)
	}
	sink := &SQLiteSink{db: db}
	if err := sink.init(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return sink, nil
}

func (s *SQLiteSink) init() error {
	schema := `
	CREATE TABLE IF NOT EXISTS batches (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		cell_id TEXT NOT NULL,
		terminal TEXT NOT NULL,
		error TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_batches_cell_id ON batches(cell_id);

	CREATE TABLE IF NOT EXISTS samples (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		batch_id INTEGER NOT NULL,
		iteration INTEGER NOT NULL,
		elapsed_ns INTEGER NOT NULL,
		memory_before INTEGER NOT NULL,
		memory_after INTEGER NOT NULL,
		digest INTEGER NOT NULL,
		success INTEGER NOT NULL,
		error_kind TEXT,
		FOREIGN KEY (batch_id) REFERENCES batches(id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_samples_batch_id ON samples(batch_id);
	`
	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("creating sample store schema: %w", err)
	}
	return nil
}

// Close releases the underlying database connection.
func (s *SQLiteSink) Close() error {
	return s.db.Close()
}

// Persist writes every Batch in store to the database inside one
// transaction per Batch, so a mid-write failure on one cell never corrupts
// another cell's already-committed samples.
func (s *SQLiteSink) Persist(batches []measure.Batch) error {
	for _, b := range batches {
		if err := s.persistBatch(b); err != nil {
			return fmt.Errorf("persisting batch %s: %w", b.CellID, err)
		}
	}
	return nil
}

func (s *SQLiteSink) persistBatch(b measure.Batch) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("beginning transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var errMsg string
	if b.Err != nil {
		errMsg = b.Err.Error()
	}

	res, err := tx.Exec(
		`INSERT INTO batches (cell_id, terminal, error) VALUES (?, ?, ?)`,
		b.CellID, string(b.Terminal), errMsg,
	)
	if err != nil {
		return fmt.Errorf("inserting batch: %w", err)
	}

	batchID, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("reading batch id: %w", err)
	}

	stmt, err := tx.Prepare(
		`INSERT INTO samples (batch_id, iteration, elapsed_ns, memory_before, memory_after, digest, success, error_kind)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("preparing sample insert: %w", err)
	}
	defer stmt.Close()

	for _, sample := range b.Samples {
		success := 0
		if sample.Success {
			success = 1
		}
		if _, err := stmt.Exec(
			batchID, sample.Iteration, sample.Elapsed.Nanoseconds(),
			sample.MemoryBefore, sample.MemoryAfter, sample.Digest,
			success, sample.ErrorKind,
		); err != nil {
			return fmt.Errorf("inserting sample: %w", err)
		}
	}

	return tx.Commit()
}
