package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS jobs (
	job_id           TEXT PRIMARY KEY,
	status           TEXT NOT NULL,
	command          TEXT NOT NULL,
	created_at       TEXT NOT NULL,
	runner_requested TEXT,
	runner_selected  TEXT
);
CREATE INDEX IF NOT EXISTS idx_jobs_status_created ON jobs (status, created_at, job_id);
CREATE INDEX IF NOT EXISTS idx_jobs_created ON jobs (created_at, job_id);
`

// sqliteStore is the serialized engine: one *sql.DB with a forced
// connection pool of one, claiming with a raw BEGIN IMMEDIATE / COMMIT
// pair on a held *sql.Conn the way original_source/app/runner.py's
// _claim_job_sqlite does.
type sqliteStore struct {
	db *sql.DB
}

func openSQLite(ctx context.Context, databaseURL string) (Store, error) {
	dsn := strings.TrimPrefix(databaseURL, "sqlite://")
	if dsn == "" {
		return nil, fmt.Errorf("store: sqlite DATABASE_URL missing a file path")
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("store: open sqlite: %w", err)
	}
	// A single physical connection keeps the claim's BEGIN IMMEDIATE from
	// ever racing a second connection inside this same process; cross
	// process contention is what BEGIN IMMEDIATE itself serializes.
	db.SetMaxOpenConns(1)

	if _, err := db.ExecContext(ctx, sqliteSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("store: create schema: %w", err)
	}
	return &sqliteStore{db: db}, nil
}

func (s *sqliteStore) InsertQueued(ctx context.Context, row model.Row) error {
	// created_at is truncated to whole seconds to match the pagination
	// cursor's resolution (spec.md §4.1).
	createdAt := row.CreatedAt.UTC().Truncate(time.Second)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO jobs (job_id, status, command, created_at, runner_requested, runner_selected)
		VALUES (?, ?, ?, ?, ?, ?)
	`, row.JobID, model.StatusQueued, row.Command, formatTime(createdAt), runnerPtrString(row.RunnerRequested), runnerPtrString(row.RunnerSelected))
	if err != nil {
		return fmt.Errorf("store: insert queued: %w", err)
	}
	return nil
}

func (s *sqliteStore) ClaimOldestQueued(ctx context.Context) (jobID, command string, ok bool, err error) {
	conn, err := s.db.Conn(ctx)
	if err != nil {
		return "", "", false, fmt.Errorf("store: acquire conn: %w", err)
	}
	defer conn.Close()

	if _, err = conn.ExecContext(ctx, "BEGIN IMMEDIATE"); err != nil {
		return "", "", false, fmt.Errorf("store: begin immediate: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = conn.ExecContext(context.Background(), "ROLLBACK")
		}
	}()

	row := conn.QueryRowContext(ctx, `
		SELECT job_id, command FROM jobs
		WHERE status = 'queued'
		ORDER BY created_at ASC, job_id ASC
		LIMIT 1
	`)
	if err = row.Scan(&jobID, &command); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			if _, cerr := conn.ExecContext(ctx, "COMMIT"); cerr != nil {
				return "", "", false, fmt.Errorf("store: commit empty claim: %w", cerr)
			}
			committed = true
			return "", "", false, nil
		}
		return "", "", false, fmt.Errorf("store: select oldest queued: %w", err)
	}

	res, err := conn.ExecContext(ctx, `
		UPDATE jobs
		SET status = ?, runner_selected = COALESCE(runner_selected, ?)
		WHERE job_id = ? AND status = 'queued'
	`, model.StatusRunning, model.RunnerShell, jobID)
	if err != nil {
		return "", "", false, fmt.Errorf("store: claim update: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", "", false, fmt.Errorf("store: claim rows affected: %w", err)
	}
	if n != 1 {
		return "", "", false, fmt.Errorf("store: claim raced unexpectedly for %s", jobID)
	}

	if _, err = conn.ExecContext(ctx, "COMMIT"); err != nil {
		return "", "", false, fmt.Errorf("store: commit claim: %w", err)
	}
	committed = true
	return jobID, command, true, nil
}

func (s *sqliteStore) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	res, err := s.db.ExecContext(ctx, `UPDATE jobs SET status = ? WHERE job_id = ?`, status, jobID)
	if err != nil {
		return fmt.Errorf("store: update status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *sqliteStore) GetByID(ctx context.Context, jobID string) (model.Row, error) {
	row := s.db.QueryRowContext(ctx, `
		SELECT job_id, status, command, created_at, runner_requested, runner_selected
		FROM jobs WHERE job_id = ?
	`, jobID)
	return scanRow(row)
}

func (s *sqliteStore) List(ctx context.Context, filter Filter) ([]model.Row, *Cursor, error) {
	limit := filter.Limit
	if limit <= 0 {
		limit = 20
	}

	var conds []string
	var args []any
	if filter.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, filter.Status)
	}
	if filter.Query != "" {
		conds = append(conds, "command LIKE ?")
		args = append(args, "%"+filter.Query+"%")
	}
	if filter.Cursor != nil {
		conds = append(conds, "(created_at, job_id) < (?, ?)")
		args = append(args, formatTime(filter.Cursor.CreatedAt), filter.Cursor.JobID)
	}

	query := "SELECT job_id, status, command, created_at, runner_requested, runner_selected FROM jobs"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY created_at DESC, job_id DESC LIMIT ?"
	args = append(args, limit+1)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, nil, fmt.Errorf("store: list: %w", err)
	}
	defer rows.Close()

	var out []model.Row
	for rows.Next() {
		r, err := scanRowsRow(rows)
		if err != nil {
			return nil, nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, nil, fmt.Errorf("store: list iterate: %w", err)
	}

	var next *Cursor
	if len(out) > limit {
		last := out[limit-1]
		next = &Cursor{CreatedAt: last.CreatedAt, JobID: last.JobID}
		out = out[:limit]
	}
	return out, next, nil
}

func (s *sqliteStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqliteStore) Close() error {
	return s.db.Close()
}

func formatTime(t time.Time) string {
	return t.UTC().Format(time.RFC3339Nano)
}

func runnerPtrString(r *model.Runner) any {
	if r == nil {
		return nil
	}
	return string(*r)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRow(row *sql.Row) (model.Row, error) {
	var r model.Row
	var createdAt string
	var requested, selected sql.NullString
	if err := row.Scan(&r.JobID, &r.Status, &r.Command, &createdAt, &requested, &selected); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Row{}, ErrNotFound
		}
		return model.Row{}, fmt.Errorf("store: scan row: %w", err)
	}
	return finishScan(r, createdAt, requested, selected)
}

func scanRowsRow(rows *sql.Rows) (model.Row, error) {
	var r model.Row
	var createdAt string
	var requested, selected sql.NullString
	if err := rows.Scan(&r.JobID, &r.Status, &r.Command, &createdAt, &requested, &selected); err != nil {
		return model.Row{}, fmt.Errorf("store: scan row: %w", err)
	}
	return finishScan(r, createdAt, requested, selected)
}

func finishScan(r model.Row, createdAt string, requested, selected sql.NullString) (model.Row, error) {
	t, err := time.Parse(time.RFC3339Nano, createdAt)
	if err != nil {
		t, err = time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return model.Row{}, fmt.Errorf("store: parse created_at %q: %w", createdAt, err)
		}
	}
	r.CreatedAt = t.UTC()
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
