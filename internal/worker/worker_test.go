package worker

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"

	"github.com/escossio/sandbox-orchestrator/internal/jobstate"
	"github.com/escossio/sandbox-orchestrator/internal/model"
	"github.com/escossio/sandbox-orchestrator/internal/store"
)

// fakeStore is a minimal in-memory store.Store used only to exercise the
// worker's claim/update sequencing without a real database.
type fakeStore struct {
	mu   sync.Mutex
	rows map[string]model.Row
	order []string
}

func newFakeStore() *fakeStore {
	return &fakeStore{rows: make(map[string]model.Row)}
}

func (f *fakeStore) seed(jobID, command string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[jobID] = model.Row{JobID: jobID, Status: model.StatusQueued, Command: command, CreatedAt: time.Now().UTC()}
	f.order = append(f.order, jobID)
}

func (f *fakeStore) InsertQueued(ctx context.Context, row model.Row) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[row.JobID] = row
	f.order = append(f.order, row.JobID)
	return nil
}

func (f *fakeStore) ClaimOldestQueued(ctx context.Context) (string, string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range f.order {
		r := f.rows[id]
		if r.Status == model.StatusQueued {
			r.Status = model.StatusRunning
			f.rows[id] = r
			return r.JobID, r.Command, true, nil
		}
	}
	return "", "", false, nil
}

func (f *fakeStore) UpdateStatus(ctx context.Context, jobID string, status model.Status) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[jobID]
	if !ok {
		return store.ErrNotFound
	}
	r.Status = status
	f.rows[jobID] = r
	return nil
}

func (f *fakeStore) GetByID(ctx context.Context, jobID string) (model.Row, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.rows[jobID]
	if !ok {
		return model.Row{}, store.ErrNotFound
	}
	return r, nil
}

func (f *fakeStore) List(ctx context.Context, filter store.Filter) ([]model.Row, *store.Cursor, error) {
	return nil, nil, nil
}

func (f *fakeStore) Ping(ctx context.Context) error { return nil }
func (f *fakeStore) Close() error                   { return nil }

type WorkerSuite struct {
	suite.Suite
	jobsRoot string
	logDir   string
	fs       *fakeStore
	w        *Worker
}

func (s *WorkerSuite) SetupTest() {
	s.jobsRoot = s.T().TempDir()
	s.logDir = s.T().TempDir()
	s.fs = newFakeStore()
	s.w = New(Config{
		Store:         s.fs,
		JobsRoot:      s.jobsRoot,
		LogDir:        s.logDir,
		PollInterval:  10 * time.Millisecond,
		RunnerTimeout: time.Second,
		Logger:        slog.New(slog.NewTextHandler(io.Discard, nil)),
	})
}

func (s *WorkerSuite) TestTickRunsSucceedingCommand() {
	s.fs.seed("job_ok", "echo hello")

	claimed := s.w.Tick(context.Background())
	s.True(claimed)

	row, err := s.fs.GetByID(context.Background(), "job_ok")
	s.Require().NoError(err)
	s.Equal(model.StatusSucceeded, row.Status)

	doc, err := jobstate.New(s.jobsRoot, "job_ok").ReadDocument()
	s.Require().NoError(err)
	s.Equal(model.StatusSucceeded, doc.Status)
	s.Require().Len(doc.Attempts, 1)
	s.Require().NotNil(doc.Attempts[0].ExitCode)
	s.Equal(0, *doc.Attempts[0].ExitCode)

	sharedLog, err := os.ReadFile(filepath.Join(s.logDir, "worker.ndjson"))
	s.Require().NoError(err)
	s.Contains(string(sharedLog), "job_ok")
}

func (s *WorkerSuite) TestTickRunsFailingCommand() {
	s.fs.seed("job_fail", "exit 7")

	claimed := s.w.Tick(context.Background())
	s.True(claimed)

	row, err := s.fs.GetByID(context.Background(), "job_fail")
	s.Require().NoError(err)
	s.Equal(model.StatusFailed, row.Status)

	doc, err := jobstate.New(s.jobsRoot, "job_fail").ReadDocument()
	s.Require().NoError(err)
	s.Equal(model.StatusFailed, doc.Status)
	s.Require().NotNil(doc.Attempts[0].ExitCode)
	s.Equal(7, *doc.Attempts[0].ExitCode)
}

func (s *WorkerSuite) TestTickHandlesTimeout() {
	s.w.runnerTimeout = 50 * time.Millisecond
	s.fs.seed("job_slow", "sleep 5")

	claimed := s.w.Tick(context.Background())
	s.True(claimed)

	doc, err := jobstate.New(s.jobsRoot, "job_slow").ReadDocument()
	s.Require().NoError(err)
	s.Equal(model.StatusFailed, doc.Status)
	s.Require().NotNil(doc.Attempts[0].ExitCode)
	s.Equal(124, *doc.Attempts[0].ExitCode)
	s.Contains(doc.Attempts[0].ErrorSummary, "runtime limit")
}

func (s *WorkerSuite) TestTickFalseWhenQueueEmpty() {
	s.False(s.w.Tick(context.Background()))
}

func (s *WorkerSuite) TestTickBuildsArtifactManifest() {
	dir := jobstate.New(s.jobsRoot, "job_artifacts")
	s.Require().NoError(dir.Ensure())

	s.fs.mu.Lock()
	s.fs.rows["job_artifacts"] = model.Row{
		JobID:     "job_artifacts",
		Status:    model.StatusQueued,
		Command:   "echo data > " + dir.ArtifactsDir() + "/out.txt",
		CreatedAt: time.Now().UTC(),
	}
	s.fs.order = append(s.fs.order, "job_artifacts")
	s.fs.mu.Unlock()

	claimed := s.w.Tick(context.Background())
	s.True(claimed)

	doc, err := dir.ReadDocument()
	s.Require().NoError(err)
	s.Require().Len(doc.ArtifactsManifest, 1)
	s.Equal("out.txt", doc.ArtifactsManifest[0].Name)
}

func TestWorkerSuite(t *testing.T) {
	suite.Run(t, new(WorkerSuite))
}

func TestRunCapturesTimeout(t *testing.T) {
	res := run(context.Background(), "job_timeout", "/tmp", "sleep 1", 20*time.Millisecond)
	require.True(t, res.TimedOut)
	require.Equal(t, 124, res.ExitCode)
	require.Contains(t, res.Stderr, "timeout after")
}

func TestRunExposesJobEnvironment(t *testing.T) {
	res := run(context.Background(), "job_env", "/tmp/artifacts-x", "echo $JOB_ID $JOB_ARTIFACTS_DIR $RUNNER_ARTIFACTS_DIR", time.Second)
	require.Equal(t, 0, res.ExitCode)
	require.Contains(t, res.Stdout, "job_env /tmp/artifacts-x /tmp/artifacts-x")
}
