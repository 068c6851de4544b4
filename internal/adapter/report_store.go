package adapter

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	// Registers the pure-Go "sqlite" driver.
	_ "modernc.org/sqlite"

	m "gooze.dev/pkg/grafter/internal/model"
)

// ErrRunNotFound is returned when a run id is not in the store.
var ErrRunNotFound = errors.New("run not found")

// ReportStore persists repair runs: their header, per-step log and per-program
// results.
type ReportStore interface {
	BeginRun(ctx context.Context, run m.Run) error
	SaveSteps(ctx context.Context, steps []m.Step) error
	FinishRun(ctx context.Context, runID string, status m.RunStatus, finishedAt time.Time) error
	SaveResults(ctx context.Context, runID string, results []m.Result) error
	ListRuns(ctx context.Context) ([]m.Run, error)
	GetRun(ctx context.Context, runID string) (m.Run, error)
	LoadResults(ctx context.Context, runID string) ([]m.Result, error)
	Close() error
}

const schema = `
CREATE TABLE IF NOT EXISTS runs (
	id          TEXT PRIMARY KEY,
	problem     TEXT NOT NULL,
	seed        INTEGER NOT NULL,
	generations INTEGER NOT NULL,
	population  INTEGER NOT NULL,
	formula     TEXT NOT NULL,
	started_at  TEXT NOT NULL,
	finished_at TEXT,
	status      TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_runs_started_at ON runs(started_at DESC);

CREATE TABLE IF NOT EXISTS steps (
	run_id     TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	generation INTEGER NOT NULL,
	p1_id      TEXT NOT NULL,
	p1_code    TEXT NOT NULL,
	p1_trace   TEXT NOT NULL,
	p2_id      TEXT NOT NULL,
	p2_code    TEXT NOT NULL,
	p2_trace   TEXT NOT NULL,
	varmap     TEXT NOT NULL,
	testcase   TEXT NOT NULL,
	suspicious TEXT NOT NULL,
	crossover  TEXT NOT NULL,
	mutation   TEXT NOT NULL,
	patch      TEXT NOT NULL,
	fitness    REAL NOT NULL,
	solution   INTEGER NOT NULL,
	time_sec   REAL NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_steps_run ON steps(run_id, generation);

CREATE TABLE IF NOT EXISTS results (
	run_id           TEXT NOT NULL REFERENCES runs(id) ON DELETE CASCADE,
	instance_id      TEXT NOT NULL,
	solved           INTEGER NOT NULL,
	buggy            TEXT NOT NULL,
	first_patch      TEXT,
	first_generation INTEGER,
	min_patch        TEXT,
	min_generation   INTEGER,
	rps              REAL,
	PRIMARY KEY (run_id, instance_id)
);
`

// SQLiteReportStore is a ReportStore backed by a local sqlite database.
type SQLiteReportStore struct {
	conn *sql.DB
	path string
}

// OpenSQLiteReportStore opens or creates the database at path, creating its
// parent directory and schema as needed.
func OpenSQLiteReportStore(ctx context.Context, path string) (*SQLiteReportStore, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, fmt.Errorf("failed to create store directory: %w", err)
		}
	}

	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open run store: %w", err)
	}

	// One writer; WAL lets `grafter view` read while a run is recording.
	conn.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA synchronous=NORMAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}

	for _, pragma := range pragmas {
		if _, err := conn.ExecContext(ctx, pragma); err != nil {
			_ = conn.Close()
			return nil, fmt.Errorf("failed to set pragma: %w", err)
		}
	}

	if _, err := conn.ExecContext(ctx, schema); err != nil {
		_ = conn.Close()
		return nil, fmt.Errorf("failed to initialize run schema: %w", err)
	}

	slog.Debug("Run store opened", "path", path)

	return &SQLiteReportStore{conn: conn, path: path}, nil
}

// Close closes the database connection.
func (s *SQLiteReportStore) Close() error {
	if s.conn != nil {
		return s.conn.Close()
	}

	return nil
}

// BeginRun inserts a run header.
func (s *SQLiteReportStore) BeginRun(ctx context.Context, run m.Run) error {
	_, err := s.conn.ExecContext(ctx, `
		INSERT INTO runs (id, problem, seed, generations, population, formula, started_at, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID,
		string(run.Problem),
		int64(run.Seed), //nolint:gosec // seeds round-trip through the same conversion
		run.Generations,
		run.Population,
		run.Formula,
		run.StartedAt.UTC().Format(time.RFC3339Nano),
		string(run.Status),
	)
	if err != nil {
		return fmt.Errorf("failed to begin run: %w", err)
	}

	return nil
}

// SaveSteps appends steps in a single transaction.
func (s *SQLiteReportStore) SaveSteps(ctx context.Context, steps []m.Step) error {
	if len(steps) == 0 {
		return nil
	}

	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO steps (run_id, generation, p1_id, p1_code, p1_trace, p2_id, p2_code, p2_trace,
			varmap, testcase, suspicious, crossover, mutation, patch, fitness, solution, time_sec)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare step insert: %w", err)
	}

	defer func() {
		_ = stmt.Close()
	}()

	for _, step := range steps {
		cols, err := encodeStepColumns(step)
		if err != nil {
			return err
		}

		_, err = stmt.ExecContext(ctx,
			step.RunID,
			step.Generation,
			step.Parent1.String(),
			step.Parent1Source,
			cols.p1Trace,
			step.Parent2.String(),
			step.Parent2Source,
			cols.p2Trace,
			cols.names,
			step.TestCaseText,
			cols.suspicious,
			cols.crossover,
			cols.mutation,
			step.Patch,
			step.Fitness,
			step.Solution,
			step.Duration.Seconds(),
		)
		if err != nil {
			return fmt.Errorf("failed to save step: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit steps: %w", err)
	}

	return nil
}

type stepColumns struct {
	p1Trace, p2Trace, names, suspicious, crossover, mutation string
}

func encodeStepColumns(step m.Step) (stepColumns, error) {
	var cols stepColumns

	fields := []struct {
		dst *string
		v   any
	}{
		{&cols.p1Trace, nonNil(step.Parent1Trace)},
		{&cols.p2Trace, nonNil(step.Parent2Trace)},
		{&cols.names, step.Names},
		{&cols.suspicious, nonNil(step.Suspicious)},
		{&cols.crossover, nonNil(step.Crossover)},
		{&cols.mutation, nonNil(step.Mutation)},
	}

	for _, f := range fields {
		data, err := json.Marshal(f.v)
		if err != nil {
			return stepColumns{}, fmt.Errorf("failed to encode step column: %w", err)
		}

		*f.dst = string(data)
	}

	if step.Names == nil {
		cols.names = "{}"
	}

	return cols, nil
}

// nonNil makes empty lists encode as [] rather than null.
func nonNil[T any](list []T) []T {
	if list == nil {
		return []T{}
	}

	return list
}

// FinishRun records the end of a run.
func (s *SQLiteReportStore) FinishRun(ctx context.Context, runID string, status m.RunStatus, finishedAt time.Time) error {
	res, err := s.conn.ExecContext(ctx,
		`UPDATE runs SET status = ?, finished_at = ? WHERE id = ?`,
		string(status), finishedAt.UTC().Format(time.RFC3339Nano), runID,
	)
	if err != nil {
		return fmt.Errorf("failed to finish run: %w", err)
	}

	if rows, _ := res.RowsAffected(); rows == 0 {
		return fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return nil
}

// SaveResults stores per-program results, replacing earlier rows of the run.
func (s *SQLiteReportStore) SaveResults(ctx context.Context, runID string, results []m.Result) error {
	tx, err := s.conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}

	defer func() {
		_ = tx.Rollback()
	}()

	for _, r := range results {
		_, err := tx.ExecContext(ctx, `
			INSERT OR REPLACE INTO results (run_id, instance_id, solved, buggy, first_patch,
				first_generation, min_patch, min_generation, rps)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID,
			r.InstanceID,
			r.Solved,
			r.Buggy,
			nullString(r.Solved, r.FirstPatch),
			nullInt(r.Solved, r.FirstGeneration),
			nullString(r.Solved, r.MinPatch),
			nullInt(r.Solved, r.MinGeneration),
			nullFloat(r.Solved, r.RPS),
		)
		if err != nil {
			return fmt.Errorf("failed to save result %s: %w", r.InstanceID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit results: %w", err)
	}

	return nil
}

const runColumns = `id, problem, seed, generations, population, formula, started_at, finished_at, status`

// ListRuns returns every run, newest first.
func (s *SQLiteReportStore) ListRuns(ctx context.Context) ([]m.Run, error) {
	rows, err := s.conn.QueryContext(ctx, `SELECT `+runColumns+` FROM runs ORDER BY started_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var runs []m.Run

	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}

		runs = append(runs, run)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}

	return runs, nil
}

// GetRun loads one run header.
func (s *SQLiteReportStore) GetRun(ctx context.Context, runID string) (m.Run, error) {
	row := s.conn.QueryRowContext(ctx, `SELECT `+runColumns+` FROM runs WHERE id = ?`, runID)

	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return m.Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}

	return run, err
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRun(row scanner) (m.Run, error) {
	var (
		run             m.Run
		problem, status string
		startedAt       string
		finishedAt      sql.NullString
		seed            int64
	)

	err := row.Scan(&run.ID, &problem, &seed, &run.Generations, &run.Population, &run.Formula,
		&startedAt, &finishedAt, &status)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return m.Run{}, err
		}

		return m.Run{}, fmt.Errorf("failed to scan run: %w", err)
	}

	run.Problem = m.Path(problem)
	run.Seed = uint64(seed) //nolint:gosec // inverse of BeginRun
	run.Status = m.RunStatus(status)

	if t, err := time.Parse(time.RFC3339Nano, startedAt); err == nil {
		run.StartedAt = t
	}

	if finishedAt.Valid {
		if t, err := time.Parse(time.RFC3339Nano, finishedAt.String); err == nil {
			run.FinishedAt = t
		}
	}

	return run, nil
}

// LoadResults returns the results of a run ordered by instance id.
func (s *SQLiteReportStore) LoadResults(ctx context.Context, runID string) ([]m.Result, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT instance_id, solved, buggy, first_patch, first_generation, min_patch, min_generation, rps
		FROM results WHERE run_id = ? ORDER BY instance_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	defer func() {
		_ = rows.Close()
	}()

	var results []m.Result

	for rows.Next() {
		var (
			r                    m.Result
			firstPatch, minPatch sql.NullString
			firstGen, minGen     sql.NullInt64
			rps                  sql.NullFloat64
		)

		if err := rows.Scan(&r.InstanceID, &r.Solved, &r.Buggy, &firstPatch, &firstGen, &minPatch, &minGen, &rps); err != nil {
			return nil, fmt.Errorf("failed to scan result: %w", err)
		}

		r.FirstPatch = firstPatch.String
		r.FirstGeneration = int(firstGen.Int64)
		r.MinPatch = minPatch.String
		r.MinGeneration = int(minGen.Int64)
		r.RPS = rps.Float64

		results = append(results, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to load results: %w", err)
	}

	return results, nil
}

func nullString(valid bool, s string) sql.NullString {
	return sql.NullString{String: s, Valid: valid}
}

func nullInt(valid bool, i int) sql.NullInt64 {
	return sql.NullInt64{Int64: int64(i), Valid: valid}
}

func nullFloat(valid bool, f float64) sql.NullFloat64 {
	return sql.NullFloat64{Float64: f, Valid: valid}
}
