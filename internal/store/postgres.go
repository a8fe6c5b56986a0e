package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

const postgresSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id           TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	command          TEXT NOT NULL,
	created_at       TIMESTAMPTZ NOT NULL,
	runner_requested TEXT,
	runner_selected  TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at, job_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs (created_at, job_id);
`

// postgresStore is the row-locking engine: claims use a single
// UPDATE ... WHERE job_id = (SELECT ... FOR UPDATE SKIP LOCKED) RETURNING
// statement the way original_source/app/runner.py's _claim_job_postgres
// does, relying on Postgres's own row lock instead of a held connection.
type postgresStore struct {
	db *sql.DB
}

func openPostgres(ctx context.Context, databaseURL string) (Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("store: open postgres: %w", err)
	}
	db.SetMaxOpenConns(16)

	if _, err := db.ExecContext(ctx, postgresSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &postgresStore{db: db}, nil
}

func (s *postgresStore) InsertQueued(ctx context.Context, row model.Row) error {
	createdAt := row.CreatedAt.UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, status, command, created_at, runner_requested, runner_selected)
		VALUES ($1, $2, $3, $4, $5, $6)
	`, row.JobID, model.StatusQueued, row.Command, createdAt, runnerPtrString(row.RunnerRequested), runnerPtrString(row.RunnerSelected))
	if err != nil {
		return fmt.Errorf("store: insert queued: %w", err)
	}
	return nil
}

func (s *postgresStore) ClaimOldestQueued(ctx context.Context) (jobID, command string, ok bool, err error) {
	row := s.db.QueryRowContext(ctx, `
		UPDATE jobs
		SET status = 'running', runner_selected = COALESCE(runner_selected, 'shell')
		WHERE job_id = (
			SELECT job_id FROM jobs
			WHERE status = 'queued'
			ORDER BY created_at ASC, job_id ASC
			FOR UPDATE SKIP LOCKED
			LIMIT 1
		)
		RETURNING job_id, command
	`)
	if err = row.Scan(&jobID, &command); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("store: claim oldest queued: %w", err)
	}
	return jobID, command, true, nil
}

func (s *postgresStore) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = $1 WHERE job_id = $2`, status, jobID)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *postgresStore) GetByID(ctx context.Context, jobID string) (model.Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, command, created_at, runner_requested, runner_selected
		FROM jobs WHERE job_id = $1
	`, jobID)
	return scanPgRow(row)
}

func (s *postgresStore) List(ctx context.Context, filter Filter) ([]model.Row, *Cursor, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var conds []string
	var args []any
	argN := 1
	next := func(v any) string {
		args = append(args, v)
		placeholder := fmt.Sprintf("$%d", argN)
		argN++
		return placeholder
	}

	if filter.Status != "" {
		conds = append(conds, "status = "+next(filter.Status))
	}
	if filter.Query != "" {
		conds = append(conds, "command LIKE "+next("%"+filter.Query+"%"))
	}
	if filter.Cursor != nil {
		a := next(filter.Cursor.CreatedAt.UTC())
		b := next(filter.Cursor.JobID)
		conds = append(conds, fmt.Sprintf("(created_at, job_id) < (%s, %s)", a, b))
	}

	query := "SELECT job_id, status, command, created_at, runner_requested, runner_selected FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC, job_id DESC LIMIT %s", next(limit+1))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		var r model.Row
		var requested, selected sql.NullString
		if err := rows.Scan(&r.JobID, &r.Status, &r.Command, &r.CreatedAt, &requested, &selected); err != nil {
			return nil, nil, fmt.Errorf("store: scan row: %w", err)
		}
		r.CreatedAt = r.CreatedAt.UTC()
		if requested.Valid {
			v := model.Runner(requested.String)
			r.RunnerRequested = &v
		}
		if selected.Valid {
			v := model.Runner(selected.String)
			r.RunnerSelected = &v
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: list iterate: %w", err)
	}

	var nextCursor *Cursor
	if len(out) > limit {
		last := out[limit-1]
		nextCursor = &Cursor{CreatedAt: last.CreatedAt, JobID: last.JobID}
		out = out[:limit]
	}
	return out, nextCursor, nil
}

func (s *postgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *postgresStore) Close() error {
	return s.db.Close()
}

func scanPgRow(row *sql.Row) (model.Row, error) {
	var r model.Row
	var requested, selected sql.NullString
	if err := row.Scan(&r.JobID, &r.Status, &r.Command, &r.CreatedAt, &requested, &selected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Row{}, ErrNotFound
		}
		return model.Row{}, fmt.Errorf("store: scan row: %w", err)
	}
	r.CreatedAt = r.CreatedAt.UTC()
	if requested.Valid {
		v := model.Runner(requested.String)
		r.RunnerRequested = &v
	}
	if selected.Valid {
		v := model.Runner(selected.String)
		r.RunnerSelected = &v
	}
	return r, nil
}
