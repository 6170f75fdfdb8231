package index

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/meghashyamc/caseindex/db/kvdb"
	"github.com/stretchr/testify/require"
)

type stubRebuilder struct {
	release chan struct{}
	userIDs chan *int64
	err     error
}

func (s *stubRebuilder) wait() {
	if s.release != nil {
		<-s.release
	}
}

func (s *stubRebuilder) RebuildIndex(ctx context.Context) (*BuildReport, error) {
	s.wait()
	s.userIDs <- nil
	if s.err != nil {
		return &BuildReport{}, s.err
	}
	return &BuildReport{Users: 2, Indexed: 5, Failures: []RecordFailure{{EntityType: "note", EntityID: 3, Reason: "bad"}}}, nil
}

func (s *stubRebuilder) RebuildIndexForUser(ctx context.Context, userID int64) (*BuildReport, error) {
	s.wait()
	s.userIDs <- &userID
	return &BuildReport{Users: 1, Indexed: 2}, nil
}

func setupJobs(t *testing.T, rebuilder Rebuilder) *Jobs {
	t.Helper()
	store, err := kvdb.New(newTestLogger(), filepath.Join(t.TempDir(), "kv.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	return NewJobs(ctx, newTestLogger(), rebuilder, store)
}

func waitForStatus(t *testing.T, jobs *Jobs, requestID string, want string) *JobStatus {
	t.Helper()
	var status *JobStatus
	require.Eventually(t, func() bool {
		var err error
		status, err = jobs.Status(requestID)
		return err == nil && status.Status == want
	}, 5*time.Second, 10*time.Millisecond)
	return status
}

func TestJobsRunFullRebuild(t *testing.T) {
	assert := require.New(t)
	rebuilder := &stubRebuilder{userIDs: make(chan *int64, 1)}
	jobs := setupJobs(t, rebuilder)

	requestID, err := jobs.Submit(nil)
	assert.NoError(err)
	assert.NotEmpty(requestID)

	status := waitForStatus(t, jobs, requestID, JobCompleted)
	assert.Equal(5, status.Indexed)
	assert.Len(status.Failures, 1)
	assert.NotNil(status.StartedAt)
	assert.NotNil(status.FinishedAt)
	assert.Nil(<-rebuilder.userIDs)
}

func TestJobsRunUserRebuild(t *testing.T) {
	assert := require.New(t)
	rebuilder := &stubRebuilder{userIDs: make(chan *int64, 1)}
	jobs := setupJobs(t, rebuilder)

	userID := int64(7)
	requestID, err := jobs.Submit(&userID)
	assert.NoError(err)

	status := waitForStatus(t, jobs, requestID, JobCompleted)
	assert.Equal(2, status.Indexed)
	assert.Equal(int64(7), *status.UserID)
	assert.Equal(int64(7), *<-rebuilder.userIDs)
}

func TestJobsRecordFailure(t *testing.T) {
	assert := require.New(t)
	rebuilder := &stubRebuilder{userIDs: make(chan *int64, 1), err: errors.New("source offline")}
	jobs := setupJobs(t, rebuilder)

	requestID, err := jobs.Submit(nil)
	assert.NoError(err)

	status := waitForStatus(t, jobs, requestID, JobFailed)
	assert.Equal("source offline", status.Error)
	assert.Zero(status.Indexed)
}

func TestJobsRejectConcurrentRebuild(t *testing.T) {
	assert := require.New(t)
	rebuilder := &stubRebuilder{release: make(chan struct{}), userIDs: make(chan *int64, 2)}
	jobs := setupJobs(t, rebuilder)

	first, err := jobs.Submit(nil)
	assert.NoError(err)

	_, err = jobs.Submit(nil)
	assert.ErrorIs(err, ErrRebuildInProgress)

	close(rebuilder.release)
	waitForStatus(t, jobs, first, JobCompleted)

	assert.Eventually(func() bool {
		_, err := jobs.Submit(nil)
		return err == nil
	}, 5*time.Second, 10*time.Millisecond)
}

func TestJobsUnknownRequest(t *testing.T) {
	jobs := setupJobs(t, &stubRebuilder{userIDs: make(chan *int64, 1)})
	_, err := jobs.Status("missing")
	require.ErrorIs(t, err, kvdb.ErrNotFound)
}

type blockingRebuilder struct {
	started chan struct{}
}

func (b *blockingRebuilder) RebuildIndex(ctx context.Context) (*BuildReport, error) {
	close(b.started)
	<-ctx.Done()
	return nil, ctx.Err()
}

func (b *blockingRebuilder) RebuildIndexForUser(ctx context.Context, userID int64) (*BuildReport, error) {
	return b.RebuildIndex(ctx)
}

func TestJobsWaitStoresStatusOfCancelledRebuild(t *testing.T) {
	assert := require.New(t)
	store, err := kvdb.New(newTestLogger(), filepath.Join(t.TempDir(), "kv.db"))
	assert.NoError(err)
	defer store.Close()

	ctx, cancel := context.WithCancel(context.Background())
	rebuilder := &blockingRebuilder{started: make(chan struct{})}
	jobs := NewJobs(ctx, newTestLogger(), rebuilder, store)

	requestID, err := jobs.Submit(nil)
	assert.NoError(err)
	<-rebuilder.started

	cancel()
	jobs.Wait()

	status, err := jobs.Status(requestID)
	assert.NoError(err)
	assert.Equal(JobFailed, status.Status)
	assert.Contains(status.Error, context.Canceled.Error())
	assert.NotNil(status.FinishedAt)

	_, err = jobs.Submit(nil)
	assert.ErrorIs(err, ErrJobsStopped)
}
