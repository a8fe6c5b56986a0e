package store

import (
	"context"
	"database/sql"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/stretchr/testify/suite"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

type PostgresStoreSuite struct {
	suite.Suite
	mock sqlmock.Sqlmock
	st   *postgresStore
}

func (s *PostgresStoreSuite) SetupTest() {
	db, mock, err := sqlmock.New(sqlmock.QueryMatcherOption(sqlmock.QueryMatcherRegexp))
	s.Require().NoError(err)
	s.mock = mock
	s.st = &postgresStore{db: db}
}

func (s *PostgresStoreSuite) TearDownTest() {
	s.Require().NoError(s.mock.ExpectationsWereMet())
}

func (s *PostgresStoreSuite) TestClaimOldestQueuedFound() {
	rows := sqlmock.NewRows([]string{"job_id", "command"}).AddRow("job_a", "echo a")
	s.mock.ExpectQuery(`UPDATE jobs`).WillReturnRows(rows)

	jobID, command, ok, err := s.st.ClaimOldestQueued(context.Background())
	s.Require().NoError(err)
	s.True(ok)
	s.Equal("job_a", jobID)
	s.Equal("echo a", command)
}

func (s *PostgresStoreSuite) TestClaimOldestQueuedEmpty() {
	s.mock.ExpectQuery(`UPDATE jobs`).WillReturnError(sql.ErrNoRows)

	_, _, ok, err := s.st.ClaimOldestQueued(context.Background())
	s.Require().NoError(err)
	s.False(ok)
}

func (s *PostgresStoreSuite) TestGetByIDNotFound() {
	s.mock.ExpectQuery(`SELECT job_id, status, command, created_at, runner_requested, runner_selected`).
		WillReturnError(sql.ErrNoRows)

	_, err := s.st.GetByID(context.Background(), "job_missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestUpdateStatusNotFound() {
	s.mock.ExpectExec(`UPDATE jobs SET status`).
		WithArgs(model.StatusFailed, "job_missing").
		WillReturnResult(sqlmock.NewResult(0, 0))

	err := s.st.UpdateStatus(context.Background(), "job_missing", model.StatusFailed)
	s.ErrorIs(err, ErrNotFound)
}

func (s *PostgresStoreSuite) TestListBuildsCursorWhenMoreRowsExist() {
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	rows := sqlmock.NewRows([]string{"job_id", "status", "command", "created_at", "runner_requested", "runner_selected"}).
		AddRow("job_b", model.StatusQueued, "echo b", now.Add(time.Minute), nil, nil).
		AddRow("job_a", model.StatusQueued, "echo a", now, nil, nil)

	s.mock.ExpectQuery(`SELECT job_id, status, command, created_at, runner_requested, runner_selected FROM jobs ORDER BY created_at DESC, job_id DESC LIMIT \$1`).
		WithArgs(2).
		WillReturnRows(rows)

	out, next, err := s.st.List(context.Background(), Filter{Limit: 1})
	s.Require().NoError(err)
	s.Require().Len(out, 1)
	s.Equal("job_b", out[0].JobID)
	s.Require().NotNil(next)
	s.Equal("job_b", next.JobID)
}

func TestPostgresStoreSuite(t *testing.T) {
	suite.Run(t, new(PostgresStoreSuite))
}

