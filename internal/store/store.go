package store

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Store is the SQLite run manifest: one row per tudump run and one per
// dump it launched.
type Store struct {
	db *sql.DB
}

// NewStore opens a SQLite database at dbPath with WAL mode enabled.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=ON&_busy_timeout=30000")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Migrate creates the manifest tables. Idempotent.
func (s *Store) Migrate() error {
	_, err := s.db.Exec(schemaDDL)
	if err != nil {
		return fmt.Errorf("migrate: %w", err)
	}
	return nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS runs (
  id              INTEGER PRIMARY KEY,
  database_path   TEXT NOT NULL,
  standard        TEXT NOT NULL,
  output_dir      TEXT NOT NULL,
  tool            TEXT NOT NULL,
  filter          TEXT NOT NULL DEFAULT '',
  db_hash_before  TEXT,
  db_hash_after   TEXT,
  action_count    INTEGER NOT NULL DEFAULT 0,
  started_at      TIMESTAMP NOT NULL,
  finished_at     TIMESTAMP
);

CREATE TABLE IF NOT EXISTS dumps (
  id              INTEGER PRIMARY KEY,
  run_id          INTEGER NOT NULL REFERENCES runs(id),
  ordinal         INTEGER NOT NULL,
  file            TEXT NOT NULL,
  directory       TEXT NOT NULL,
  command         TEXT NOT NULL,
  artifact        TEXT NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_dumps_run ON dumps(run_id, ordinal);
`

// BeginRun inserts run and sets run.ID.
func (s *Store) BeginRun(run *Run) (int64, error) {
	res, err := s.db.Exec(
		`INSERT INTO runs (database_path, standard, output_dir, tool, filter, db_hash_before, db_hash_after, action_count, started_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.DatabasePath, run.Standard, run.OutputDir, run.Tool, run.Filter,
		hashText(run.HashBefore), hashText(run.HashAfter), run.ActionCount, run.StartedAt,
	)
	if err != nil {
		return 0, fmt.Errorf("begin run: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("begin run: last insert id: %w", err)
	}
	run.ID = id
	return id, nil
}

// RecordDumps inserts the dumps of one run in a single transaction.
func (s *Store) RecordDumps(runID int64, dumps []*Dump) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("record dumps: begin: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(
		`INSERT INTO dumps (run_id, ordinal, file, directory, command, artifact) VALUES (?, ?, ?, ?, ?, ?)`,
	)
	if err != nil {
		return fmt.Errorf("record dumps: prepare: %w", err)
	}
	defer stmt.Close()

	for _, d := range dumps {
		res, err := stmt.Exec(runID, d.Ordinal, d.File, d.Directory, d.Command, d.Artifact)
		if err != nil {
			return fmt.Errorf("record dumps: insert %s: %w", d.File, err)
		}
		id, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("record dumps: last insert id: %w", err)
		}
		d.ID = id
		d.RunID = runID
	}
	return tx.Commit()
}

// FinishRun stamps the run's finish time.
func (s *Store) FinishRun(runID int64, at time.Time) error {
	res, err := s.db.Exec("UPDATE runs SET finished_at = ? WHERE id = ?", at, runID)
	if err != nil {
		return fmt.Errorf("finish run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("finish run: no run with id %d", runID)
	}
	return nil
}

// Runs returns every recorded run, oldest first.
func (s *Store) Runs() ([]*Run, error) {
	rows, err := s.db.Query(
		`SELECT id, database_path, standard, output_dir, tool, filter, db_hash_before, db_hash_after,
		        action_count, started_at, finished_at
		 FROM runs ORDER BY id`,
	)
	if err != nil {
		return nil, fmt.Errorf("runs: %w", err)
	}
	defer rows.Close()

	var runs []*Run
	for rows.Next() {
		r := &Run{}
		var before, after sql.NullString
		var finished sql.NullTime
		if err := rows.Scan(&r.ID, &r.DatabasePath, &r.Standard, &r.OutputDir, &r.Tool, &r.Filter,
			&before, &after, &r.ActionCount, &r.StartedAt, &finished); err != nil {
			return nil, fmt.Errorf("runs: scan: %w", err)
		}
		r.HashBefore = parseHash(before)
		r.HashAfter = parseHash(after)
		if finished.Valid {
			t := finished.Time
			r.FinishedAt = &t
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// DumpsByRun returns the dumps of a run in launch order.
func (s *Store) DumpsByRun(runID int64) ([]*Dump, error) {
	rows, err := s.db.Query(
		"SELECT id, run_id, ordinal, file, directory, command, artifact FROM dumps WHERE run_id = ? ORDER BY ordinal",
		runID,
	)
	if err != nil {
		return nil, fmt.Errorf("dumps by run: %w", err)
	}
	defer rows.Close()

	var dumps []*Dump
	for rows.Next() {
		d := &Dump{}
		if err := rows.Scan(&d.ID, &d.RunID, &d.Ordinal, &d.File, &d.Directory, &d.Command, &d.Artifact); err != nil {
			return nil, fmt.Errorf("dumps by run: scan: %w", err)
		}
		dumps = append(dumps, d)
	}
	return dumps, rows.Err()
}
