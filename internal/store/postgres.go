package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/JonMunkholm/stocksync/internal/core"
)

// DBTX is the interface for database operations.
// Satisfied by both *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(context.Context, string, ...interface{}) (pgconn.CommandTag, error)
	Query(context.Context, string, ...interface{}) (pgx.Rows, error)
	QueryRow(context.Context, string, ...interface{}) pgx.Row
}

const schema = `
CREATE TABLE IF NOT EXISTS import_runs (
	id            TEXT PRIMARY KEY,
	file_name     TEXT NOT NULL,
	requested_by  TEXT NOT NULL DEFAULT '',
	started_at    TIMESTAMPTZ NOT NULL,
	finished_at   TIMESTAMPTZ NOT NULL,
	total         INTEGER NOT NULL,
	succeeded     INTEGER NOT NULL,
	failed        INTEGER NOT NULL,
	skipped       INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS import_runs_started_at_idx ON import_runs (started_at DESC);

CREATE TABLE IF NOT EXISTS import_outcomes (
	run_id        TEXT NOT NULL REFERENCES import_runs (id) ON DELETE CASCADE,
	line          INTEGER NOT NULL,
	sku           TEXT NOT NULL,
	status        TEXT NOT NULL,
	new_quantity  INTEGER,
	error_detail  TEXT NOT NULL DEFAULT '',
	PRIMARY KEY (run_id, line)
);
`

var outcomeColumns = []string{"run_id", "line", "sku", "status", "new_quantity", "error_detail"}

// PostgresStore is a core.HistoryStore backed by PostgreSQL.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// NewPostgresStore wraps pool. Call EnsureSchema before first use.
func NewPostgresStore(pool *pgxpool.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// EnsureSchema creates the history tables if they do not exist.
func (s *PostgresStore) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schema); err != nil {
		return fmt.Errorf("create history schema: %w", err)
	}
	return nil
}

// SaveRun writes the run header and bulk-copies its outcomes in one
// transaction. Saving an existing id replaces it.
func (s *PostgresStore) SaveRun(ctx context.Context, run core.ImportRun) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM import_runs WHERE id = $1`, run.ID); err != nil {
		return fmt.Errorf("replace run %s: %w", run.ID, err)
	}

	_, err = tx.Exec(ctx, `
		INSERT INTO import_runs (id, file_name, requested_by, started_at, finished_at, total, succeeded, failed, skipped)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		run.ID, run.FileName, run.RequestedBy, run.StartedAt, run.FinishedAt,
		run.Summary.Total, run.Summary.Succeeded, run.Summary.Failed, run.Summary.Skipped,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", run.ID, err)
	}

	if len(run.Outcomes) > 0 {
		rows := make([][]any, len(run.Outcomes))
		for i, o := range run.Outcomes {
			qty := pgtype.Int4{}
			if o.NewQuantity != nil {
				qty = pgtype.Int4{Int32: int32(*o.NewQuantity), Valid: true}
			}
			rows[i] = []any{run.ID, o.Line, o.SKU, string(o.Status), qty, o.ErrorDetail}
		}
		if _, err := tx.CopyFrom(ctx, pgx.Identifier{"import_outcomes"}, outcomeColumns, pgx.CopyFromRows(rows)); err != nil {
			return fmt.Errorf("copy outcomes for %s: %w", run.ID, err)
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit run %s: %w", run.ID, err)
	}
	return nil
}

// ListRuns returns the newest runs first without their outcomes.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]core.ImportRun, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, file_name, requested_by, started_at, finished_at, total, succeeded, failed, skipped
		FROM import_runs
		ORDER BY started_at DESC, id
		LIMIT $1`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []core.ImportRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun returns a run with its outcomes in line order.
func (s *PostgresStore) GetRun(ctx context.Context, id string) (core.ImportRun, error) {
	return getRun(ctx, s.pool, id)
}

func getRun(ctx context.Context, db DBTX, id string) (core.ImportRun, error) {
	row := db.QueryRow(ctx, `
		SELECT id, file_name, requested_by, started_at, finished_at, total, succeeded, failed, skipped
		FROM import_runs WHERE id = $1`, id)
	run, err := scanRun(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return core.ImportRun{}, fmt.Errorf("history run %s: %w", id, core.ErrImportNotFound)
		}
		return core.ImportRun{}, fmt.Errorf("get run %s: %w", id, err)
	}

	rows, err := db.Query(ctx, `
		SELECT line, sku, status, new_quantity, error_detail
		FROM import_outcomes WHERE run_id = $1 ORDER BY line`, id)
	if err != nil {
		return core.ImportRun{}, fmt.Errorf("get outcomes %s: %w", id, err)
	}
	defer rows.Close()

	for rows.Next() {
		var (
			o      core.ReconciliationOutcome
			status string
			qty    pgtype.Int4
		)
		if err := rows.Scan(&o.Line, &o.SKU, &status, &qty, &o.ErrorDetail); err != nil {
			return core.ImportRun{}, fmt.Errorf("scan outcome: %w", err)
		}
		o.Status = core.OutcomeStatus(status)
		if qty.Valid {
			n := int(qty.Int32)
			o.NewQuantity = &n
		}
		run.Outcomes = append(run.Outcomes, o)
	}
	return run, rows.Err()
}

// PruneRuns deletes runs started before the cutoff; outcomes cascade.
func (s *PostgresStore) PruneRuns(ctx context.Context, before time.Time) (int64, error) {
	tag, err := s.pool.Exec(ctx, `DELETE FROM import_runs WHERE started_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("prune runs: %w", err)
	}
	return tag.RowsAffected(), nil
}

// Ping checks the database connection.
func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

func scanRun(row pgx.Row) (core.ImportRun, error) {
	var run core.ImportRun
	err := row.Scan(
		&run.ID, &run.FileName, &run.RequestedBy, &run.StartedAt, &run.FinishedAt,
		&run.Summary.Total, &run.Summary.Succeeded, &run.Summary.Failed, &run.Summary.Skipped,
	)
	return run, err
}
