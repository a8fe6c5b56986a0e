package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/escossio/sandbox-orchestrator/internal/model"
)

type SQLiteStoreSuite struct {
	suite.Suite
	ctx context.Context
	st  Store
}

func (s *SQLiteStoreSuite) SetupTest() {
	s.ctx = context.Background()
	st, err := Open(s.ctx, "sqlite://file::memory:?cache=shared")
	s.Require().NoError(err)
	s.st = st
}

func (s *SQLiteStoreSuite) TearDownTest() {
	s.Require().NoError(s.st.Close())
}

func (s *SQLiteStoreSuite) insert(jobID, command string, createdAt time.Time) {
	s.Require().NoError(s.st.InsertQueued(s.ctx, model.Row{
		JobID:     jobID,
		Command:   command,
		CreatedAt: createdAt,
	}))
}

func (s *SQLiteStoreSuite) TestClaimOldestQueuedOrdering() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.insert("job_b", "echo b", base.Add(2*time.Second))
	s.insert("job_a", "echo a", base.Add(1*time.Second))

	jobID, command, ok, err := s.st.ClaimOldestQueued(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("job_a", jobID)
	s.Equal("echo a", command)

	row, err := s.st.GetByID(s.ctx, "job_a")
	s.Require().NoError(err)
	s.Equal(model.StatusRunning, row.Status)
}

func (s *SQLiteStoreSuite) TestClaimOldestQueuedExhausted() {
	_, _, ok, err := s.st.ClaimOldestQueued(s.ctx)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SQLiteStoreSuite) TestClaimDoesNotReturnSameJobTwice() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.insert("job_only", "echo only", base)

	jobID, _, ok, err := s.st.ClaimOldestQueued(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)
	s.Equal("job_only", jobID)

	_, _, ok, err = s.st.ClaimOldestQueued(s.ctx)
	s.Require().NoError(err)
	s.False(ok)
}

func (s *SQLiteStoreSuite) TestUpdateStatusNotFound() {
	err := s.st.UpdateStatus(s.ctx, "job_missing", model.StatusFailed)
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteStoreSuite) TestGetByIDNotFound() {
	_, err := s.st.GetByID(s.ctx, "job_missing")
	s.ErrorIs(err, ErrNotFound)
}

func (s *SQLiteStoreSuite) TestListPagination() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	for i := 0; i < 5; i++ {
		s.insert(
			"job_"+string(rune('a'+i)),
			"echo",
			base.Add(time.Duration(i)*time.Minute),
		)
	}

	rows, next, err := s.st.List(s.ctx, Filter{Limit: 2})
	s.Require().NoError(err)
	s.Len(rows, 2)
	s.Require().NotNil(next)
	// newest first
	s.Equal("job_e", rows[0].JobID)
	s.Equal("job_d", rows[1].JobID)

	rows2, next2, err := s.st.List(s.ctx, Filter{Limit: 2, Cursor: next})
	s.Require().NoError(err)
	s.Len(rows2, 2)
	s.Equal("job_c", rows2[0].JobID)
	s.Equal("job_b", rows2[1].JobID)
	s.NotNil(next2)

	rows3, next3, err := s.st.List(s.ctx, Filter{Limit: 2, Cursor: next2})
	s.Require().NoError(err)
	s.Len(rows3, 1)
	s.Equal("job_a", rows3[0].JobID)
	s.Nil(next3)
}

func (s *SQLiteStoreSuite) TestListFilterByStatus() {
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	s.insert("job_running", "echo", base)
	s.insert("job_queued", "echo", base.Add(time.Second))

	_, _, ok, err := s.st.ClaimOldestQueued(s.ctx)
	s.Require().NoError(err)
	s.Require().True(ok)

	rows, _, err := s.st.List(s.ctx, Filter{Status: string(model.StatusRunning), Limit: 10})
	s.Require().NoError(err)
	s.Require().Len(rows, 1)
	s.Equal("job_running", rows[0].JobID)
}

func TestSQLiteStoreSuite(t *testing.T) {
	suite.Run(t, new(SQLiteStoreSuite))
}

func TestSQLiteOpenRejectsMissingPath(t *testing.T) {
	_, err := Open(context.Background(), "sqlite://")
	require.Error(t, err)
}
