package tracking

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	_ "modernc.org/sqlite"

	fireErrors "github.com/ezoic/firearea/pkg/errors"
	"github.com/ezoic/firearea/pkg/log"
)

// schema is valid for both SQLite and PostgreSQL. Timestamps are Unix nanoseconds.
var schema = []string{
	`CREATE TABLE IF NOT EXISTS experiments (
		id         TEXT PRIMARY KEY,
		name       TEXT NOT NULL UNIQUE,
		created_at BIGINT NOT NULL
	)`,
	`CREATE TABLE IF NOT EXISTS runs (
		id            TEXT PRIMARY KEY,
		experiment_id TEXT NOT NULL REFERENCES experiments(id),
		name          TEXT NOT NULL,
		status        TEXT NOT NULL,
		start_time    BIGINT NOT NULL,
		end_time      BIGINT
	)`,
	`CREATE TABLE IF NOT EXISTS params (
		run_id TEXT NOT NULL REFERENCES runs(id),
		key    TEXT NOT NULL,
		value  TEXT NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS metrics (
		run_id TEXT NOT NULL REFERENCES runs(id),
		key    TEXT NOT NULL,
		value  DOUBLE PRECISION NOT NULL,
		PRIMARY KEY (run_id, key)
	)`,
	`CREATE TABLE IF NOT EXISTS artifacts (
		run_id        TEXT NOT NULL REFERENCES runs(id),
		name          TEXT NOT NULL,
		envelope      TEXT NOT NULL,
		input_example TEXT,
		PRIMARY KEY (run_id, name)
	)`,
}

// SQLStore is a Store backed by database/sql through sqlx.
type SQLStore struct {
	db     *sqlx.DB
	logger log.Logger
}

// OpenSQLite opens (or creates) a SQLite database. Use ":memory:" for a
// private in-memory store.
func OpenSQLite(ctx context.Context, path string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "sqlite", path)
	if err != nil {
		return nil, fireErrors.Wrapf(err, "open sqlite %q", path)
	}
	// One connection keeps an in-memory database alive and avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)
	if _, err := db.ExecContext(ctx, `PRAGMA foreign_keys = ON`); err != nil {
		db.Close()
		return nil, fireErrors.Wrap(err, "enable foreign keys")
	}
	return newSQLStore(ctx, db)
}

// OpenPostgres connects with lib/pq using a postgres:// URL.
func OpenPostgres(ctx context.Context, dsn string) (*SQLStore, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fireErrors.Wrap(err, "connect postgres")
	}
	return newSQLStore(ctx, db)
}

// NewSQLStore wraps an existing connection and creates the schema.
// Queries are written with ? placeholders and rebound for the driver.
func NewSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	return newSQLStore(ctx, db)
}

func newSQLStore(ctx context.Context, db *sqlx.DB) (*SQLStore, error) {
	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			db.Close()
			return nil, fireErrors.Wrap(err, "create schema")
		}
	}
	return &SQLStore{db: db, logger: log.GetLoggerWithName("tracking.sql")}, nil
}

func (s *SQLStore) GetOrCreateExperiment(ctx context.Context, name string) (*Experiment, error) {
	if name == "" {
		return nil, fireErrors.NewValueError("GetOrCreateExperiment", "empty experiment name")
	}
	insert := s.db.Rebind(`INSERT INTO experiments (id, name, created_at) VALUES (?, ?, ?) ON CONFLICT (name) DO NOTHING`)
	if _, err := s.db.ExecContext(ctx, insert, uuid.NewString(), name, time.Now().UnixNano()); err != nil {
		return nil, fireErrors.Wrapf(err, "create experiment %q", name)
	}

	var row struct {
		ID        string `db:"id"`
		Name      string `db:"name"`
		CreatedAt int64  `db:"created_at"`
	}
	query := s.db.Rebind(`SELECT id, name, created_at FROM experiments WHERE name = ?`)
	if err := s.db.GetContext(ctx, &row, query, name); err != nil {
		return nil, fireErrors.Wrapf(err, "get experiment %q", name)
	}
	return &Experiment{ID: row.ID, Name: row.Name, CreatedAt: fromNanos(row.CreatedAt)}, nil
}

func (s *SQLStore) CreateRun(ctx context.Context, experimentID, runName string) (*Run, error) {
	var exp Experiment
	var created int64
	query := s.db.Rebind(`SELECT id, name, created_at FROM experiments WHERE id = ?`)
	if err := s.db.QueryRowxContext(ctx, query, experimentID).Scan(&exp.ID, &exp.Name, &created); err != nil {
		if fireErrors.Is(err, sql.ErrNoRows) {
			return nil, fireErrors.Newf("experiment %q does not exist", experimentID)
		}
		return nil, fireErrors.Wrap(err, "look up experiment")
	}
	exp.CreatedAt = fromNanos(created)

	run := newRun(&exp, uuid.NewString(), runName, time.Now().UTC())
	insert := s.db.Rebind(`INSERT INTO runs (id, experiment_id, name, status, start_time) VALUES (?, ?, ?, ?, ?)`)
	if _, err := s.db.ExecContext(ctx, insert, run.ID, run.ExperimentID, run.Name, string(run.Status), run.StartTime.UnixNano()); err != nil {
		return nil, fireErrors.Wrap(err, "insert run")
	}
	s.logger.Debug("Run created", log.RunIDKey, run.ID, log.ExperimentKey, exp.Name)
	return run, nil
}

func (s *SQLStore) LogParams(ctx context.Context, runID string, params map[string]string) error {
	return s.inRunTx(ctx, runID, func(tx *sqlx.Tx) error {
		stmt := tx.Rebind(`INSERT INTO params (run_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value`)
		for k, v := range params {
			if _, err := tx.ExecContext(ctx, stmt, runID, k, v); err != nil {
				return fireErrors.Wrapf(err, "log param %q", k)
			}
		}
		return nil
	})
}

func (s *SQLStore) LogMetrics(ctx context.Context, runID string, metrics map[string]float64) error {
	return s.inRunTx(ctx, runID, func(tx *sqlx.Tx) error {
		stmt := tx.Rebind(`INSERT INTO metrics (run_id, key, value) VALUES (?, ?, ?)
			ON CONFLICT (run_id, key) DO UPDATE SET value = excluded.value`)
		for k, v := range metrics {
			if _, err := tx.ExecContext(ctx, stmt, runID, k, v); err != nil {
				return fireErrors.Wrapf(err, "log metric %q", k)
			}
		}
		return nil
	})
}

func (s *SQLStore) LogModel(ctx context.Context, runID string, artifact Artifact) error {
	if artifact.Name == "" || len(artifact.Envelope) == 0 {
		return fireErrors.NewValueError("LogModel", "artifact needs a name and an envelope")
	}
	return s.inRunTx(ctx, runID, func(tx *sqlx.Tx) error {
		var example sql.NullString
		if len(artifact.InputExample) > 0 {
			example = sql.NullString{String: string(artifact.InputExample), Valid: true}
		}
		stmt := tx.Rebind(`INSERT INTO artifacts (run_id, name, envelope, input_example) VALUES (?, ?, ?, ?)
			ON CONFLICT (run_id, name) DO UPDATE SET envelope = excluded.envelope, input_example = excluded.input_example`)
		_, err := tx.ExecContext(ctx, stmt, runID, artifact.Name, string(artifact.Envelope), example)
		return fireErrors.Wrapf(err, "log model %q", artifact.Name)
	})
}

func (s *SQLStore) FinishRun(ctx context.Context, runID string, status RunStatus) error {
	stmt := s.db.Rebind(`UPDATE runs SET status = ?, end_time = ? WHERE id = ?`)
	res, err := s.db.ExecContext(ctx, stmt, string(status), time.Now().UnixNano(), runID)
	if err != nil {
		return fireErrors.Wrap(err, "finish run")
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fireErrors.Wrapf(ErrRunNotFound, "finish run %s", runID)
	}
	return nil
}

type runRow struct {
	ID             string        `db:"id"`
	ExperimentID   string        `db:"experiment_id"`
	ExperimentName string        `db:"experiment_name"`
	Name           string        `db:"name"`
	Status         string        `db:"status"`
	StartTime      int64         `db:"start_time"`
	EndTime        sql.NullInt64 `db:"end_time"`
}

const selectRuns = `SELECT r.id, r.experiment_id, e.name AS experiment_name, r.name, r.status, r.start_time, r.end_time
	FROM runs r JOIN experiments e ON e.id = r.experiment_id`

func (s *SQLStore) ListRuns(ctx context.Context, experimentName string) ([]*Run, error) {
	var rows []runRow
	query := s.db.Rebind(selectRuns + ` WHERE e.name = ? ORDER BY r.start_time, r.id`)
	if err := s.db.SelectContext(ctx, &rows, query, experimentName); err != nil {
		return nil, fireErrors.Wrapf(err, "list runs of %q", experimentName)
	}
	runs := make([]*Run, 0, len(rows))
	for _, row := range rows {
		run, err := s.hydrate(ctx, row)
		if err != nil {
			return nil, err
		}
		runs = append(runs, run)
	}
	return runs, nil
}

func (s *SQLStore) GetRun(ctx context.Context, runID string) (*Run, error) {
	var row runRow
	query := s.db.Rebind(selectRuns + ` WHERE r.id = ?`)
	if err := s.db.GetContext(ctx, &row, query, runID); err != nil {
		if fireErrors.Is(err, sql.ErrNoRows) {
			return nil, fireErrors.Wrapf(ErrRunNotFound, "get run %s", runID)
		}
		return nil, fireErrors.Wrap(err, "get run")
	}
	return s.hydrate(ctx, row)
}

// Close closes the underlying connection pool.
func (s *SQLStore) Close() error {
	return s.db.Close()
}

func (s *SQLStore) hydrate(ctx context.Context, row runRow) (*Run, error) {
	run := &Run{
		ID:             row.ID,
		ExperimentID:   row.ExperimentID,
		ExperimentName: row.ExperimentName,
		Name:           row.Name,
		Status:         RunStatus(row.Status),
		StartTime:      fromNanos(row.StartTime),
		Params:         map[string]string{},
		Metrics:        map[string]float64{},
	}
	if row.EndTime.Valid {
		run.EndTime = fromNanos(row.EndTime.Int64)
	}

	var params []struct {
		Key   string `db:"key"`
		Value string `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &params, s.db.Rebind(`SELECT key, value FROM params WHERE run_id = ?`), row.ID); err != nil {
		return nil, fireErrors.Wrap(err, "load params")
	}
	for _, p := range params {
		run.Params[p.Key] = p.Value
	}

	var metrics []struct {
		Key   string  `db:"key"`
		Value float64 `db:"value"`
	}
	if err := s.db.SelectContext(ctx, &metrics, s.db.Rebind(`SELECT key, value FROM metrics WHERE run_id = ?`), row.ID); err != nil {
		return nil, fireErrors.Wrap(err, "load metrics")
	}
	for _, m := range metrics {
		run.Metrics[m.Key] = m.Value
	}

	var artifacts []struct {
		Name         string         `db:"name"`
		Envelope     string         `db:"envelope"`
		InputExample sql.NullString `db:"input_example"`
	}
	if err := s.db.SelectContext(ctx, &artifacts, s.db.Rebind(`SELECT name, envelope, input_example FROM artifacts WHERE run_id = ? ORDER BY name`), row.ID); err != nil {
		return nil, fireErrors.Wrap(err, "load artifacts")
	}
	for _, a := range artifacts {
		art := Artifact{Name: a.Name, Envelope: []byte(a.Envelope)}
		if a.InputExample.Valid {
			art.InputExample = []byte(a.InputExample.String)
		}
		run.Artifacts = append(run.Artifacts, art)
	}
	return run, nil
}

// inRunTx runs fn in a transaction after checking that runID exists.
func (s *SQLStore) inRunTx(ctx context.Context, runID string, fn func(tx *sqlx.Tx) error) (err error) {
	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fireErrors.Wrap(err, "begin transaction")
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	var exists int
	if err = tx.GetContext(ctx, &exists, tx.Rebind(`SELECT COUNT(*) FROM runs WHERE id = ?`), runID); err != nil {
		return fireErrors.Wrap(err, "look up run")
	}
	if exists == 0 {
		return fireErrors.Wrapf(ErrRunNotFound, "run %s", runID)
	}
	if err = fn(tx); err != nil {
		return err
	}
	return fireErrors.Wrap(tx.Commit(), "commit")
}

func fromNanos(n int64) time.Time {
	return time.Unix(0, n).UTC()
}
