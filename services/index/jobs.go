package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/caseindex/db/kvdb"
	"github.com/meghashyamc/caseindex/logger"
)

const maxRebuildTime = 2 * time.Hour

const (
	JobQueued    = "queued"
	JobRunning   = "running"
	JobCompleted = "completed"
	JobFailed    = "failed"
)

var (
	ErrRebuildInProgress = errors.New("index rebuild already in progress")
	ErrJobsStopped       = errors.New("rebuild jobs stopped")
)

// StatusStore persists job status between requests.
type StatusStore interface {
	Set(bucket string, key string, value string) error
	Get(bucket string, key string) (string, error)
}

// Rebuilder is the part of the builder a job runs.
type Rebuilder interface {
	RebuildIndex(ctx context.Context) (*BuildReport, error)
	RebuildIndexForUser(ctx context.Context, userID int64) (*BuildReport, error)
}

type JobStatus struct {
	RequestID  string          `json:"request_id"`
	UserID     *int64          `json:"user_id,omitempty"`
	Status     string          `json:"status"`
	Indexed    int             `json:"indexed"`
	Failures   []RecordFailure `json:"failures,omitempty"`
	Error      string          `json:"error,omitempty"`
	StartedAt  *time.Time      `json:"started_at,omitempty"`
	FinishedAt *time.Time      `json:"finished_at,omitempty"`
}

type rebuildRequest struct {
	requestID string
	userID    *int64
}

// Jobs runs rebuilds in the background, one at a time.
type Jobs struct {
	logger    logger.Logger
	rebuilder Rebuilder
	store     StatusStore
	requestsC chan rebuildRequest
	stopped   chan struct{}

	mu       sync.Mutex
	busy     bool
	stopping bool
}

func NewJobs(ctx context.Context, logger logger.Logger, rebuilder Rebuilder, store StatusStore) *Jobs {
	jobs := &Jobs{
		logger:    logger,
		rebuilder: rebuilder,
		store:     store,
		requestsC: make(chan rebuildRequest, 1),
		stopped:   make(chan struct{}),
	}

	go jobs.run(ctx)
	return jobs
}

// Submit queues a rebuild of every user, or of one user when userID is set.
func (j *Jobs) Submit(userID *int64) (string, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	if j.stopping {
		return "", ErrJobsStopped
	}

	if j.busy {
		j.logger.Warn("request to rebuild while a rebuild is already in progress")
		return "", ErrRebuildInProgress
	}

	requestID := uuid.New().String()
	if err := j.setStatus(JobStatus{RequestID: requestID, UserID: userID, Status: JobQueued}); err != nil {
		return "", err
	}

	j.busy = true
	j.requestsC <- rebuildRequest{requestID: requestID, userID: userID}
	return requestID, nil
}

// Status retrieves the progress of a rebuild request.
func (j *Jobs) Status(requestID string) (*JobStatus, error) {
	value, err := j.store.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		return nil, fmt.Errorf("request not found: %w", err)
	}

	var status JobStatus
	if err := json.Unmarshal([]byte(value), &status); err != nil {
		return nil, fmt.Errorf("invalid status value: %w", err)
	}
	return &status, nil
}

// Wait blocks until the worker has returned, which happens once the context
// passed to NewJobs is done and any running rebuild has stored its status.
func (j *Jobs) Wait() {
	<-j.stopped
}

func (j *Jobs) run(ctx context.Context) {
	defer close(j.stopped)
	for {
		select {
		case req := <-j.requestsC:
			status := j.execute(ctx, req)
			j.mu.Lock()
			j.busy = false
			j.mu.Unlock()
			if err := j.setStatus(status); err != nil {
				j.logger.Error("failed to update request status", "request_id", req.requestID, "err", err.Error())
			}
		case <-ctx.Done():
			j.logger.Info("rebuild jobs stopped", "reason", ctx.Err())
			j.mu.Lock()
			j.stopping = true
			j.mu.Unlock()
			j.abandonQueued(ctx.Err())
			return
		}
	}
}

// execute runs one rebuild and returns its final status. The caller stores
// it after clearing busy.
func (j *Jobs) execute(ctx context.Context, req rebuildRequest) JobStatus {
	jobCtx, cancel := context.WithTimeout(ctx, maxRebuildTime)
	defer cancel()

	started := time.Now().UTC()
	status := JobStatus{RequestID: req.requestID, UserID: req.userID, Status: JobRunning, StartedAt: &started}
	if err := j.setStatus(status); err != nil {
		j.logger.Error("failed to update request status", "request_id", req.requestID, "err", err.Error())
	}

	var report *BuildReport
	var err error
	if req.userID != nil {
		report, err = j.rebuilder.RebuildIndexForUser(jobCtx, *req.userID)
	} else {
		report, err = j.rebuilder.RebuildIndex(jobCtx)
	}

	finished := time.Now().UTC()
	status.FinishedAt = &finished
	status.Status = JobCompleted
	if report != nil {
		status.Indexed = report.Indexed
		status.Failures = report.Failures
	}
	if err != nil {
		j.logger.Error("rebuild request failed", "request_id", req.requestID, "err", err.Error())
		status.Status = JobFailed
		status.Error = err.Error()
		status.Indexed = 0
	}
	return status
}

func (j *Jobs) abandonQueued(reason error) {
	select {
	case req := <-j.requestsC:
		finished := time.Now().UTC()
		status := JobStatus{RequestID: req.requestID, UserID: req.userID, Status: JobFailed, Error: fmt.Sprintf("%s: %s", ErrJobsStopped, reason), FinishedAt: &finished}
		if err := j.setStatus(status); err != nil {
			j.logger.Error("failed to update request status", "request_id", req.requestID, "err", err.Error())
		}
	default:
	}
}

func (j *Jobs) setStatus(status JobStatus) error {
	data, err := json.Marshal(status)
	if err != nil {
		return fmt.Errorf("failed to marshal request status: %w", err)
	}
	if err := j.store.Set(kvdb.RequestsBucket, status.RequestID, string(data)); err != nil {
		j.logger.Error("failed to set request status", "request_id", status.RequestID, "err", err.Error())
		return err
	}
	return nil
}
