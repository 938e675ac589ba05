// Package catalog defines the durable Job/Execution model and the store
// contract the dispatch and execution cores rely on.
package catalog

import (
	"context"
	"errors"
	"time"
)

// ExecutionType enumerates the delivery guarantees a job can request.
// AT_LEAST_ONCE is the only variant implemented; the type is kept open for
// future variants per spec.
type ExecutionType string

const (
	AtLeastOnce ExecutionType = "AT_LEAST_ONCE"
)

// ExecutionStatus is the terminal outcome of a firing's attempt sequence.
type ExecutionStatus string

const (
	StatusSuccess ExecutionStatus = "SUCCESS"
	StatusFailed  ExecutionStatus = "FAILED"
)

var (
	// ErrJobNotFound is returned when a job_id does not resolve to a row.
	ErrJobNotFound = errors.New("job not found")
	// ErrInvalidSchedule surfaces a CRON expression that failed to parse.
	ErrInvalidSchedule = errors.New("invalid cron schedule")
	// ErrInvalidURL surfaces an api_url that is not an absolute http(s) URL.
	ErrInvalidURL = errors.New("invalid api_url")
	// ErrStoreUnavailable wraps a transactional failure against the backing store.
	ErrStoreUnavailable = errors.New("catalog store unavailable")
)

// Job is a persistent record describing what to run and on what schedule.
type Job struct {
	JobID         string
	Schedule      string
	APIURL        string
	ExecutionType ExecutionType
	Active        bool
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// Execution is a persistent record of one attempt sequence for one firing.
type Execution struct {
	ExecutionID     string
	JobID           string
	ScheduledTime   time.Time
	ActualStartTime time.Time
	Status          ExecutionStatus
	HTTPStatus      *int
	DurationMs      *int64
	ErrorMessage    *string
	CreatedAt       time.Time
}

// DriftMs returns actual_start_time - scheduled_time in milliseconds.
func (e *Execution) DriftMs() int64 {
	return e.ActualStartTime.Sub(e.ScheduledTime).Milliseconds()
}

// JobUpdate carries a partial update to a Job; nil fields are left unchanged.
type JobUpdate struct {
	Schedule *string
	APIURL   *string
	Active   *bool
}

// Stats summarizes a job's execution history.
type Stats struct {
	Total         int64
	Success       int64
	Failure       int64
	SuccessRate   float64
	AvgDurationMs *float64
	AvgDriftMs    *float64
}

// Store is the durable catalog contract. Implementations must make
// Create/Update/Delete/RecordExecution atomic: either commit fully or roll
// back. RecordExecution must be idempotent on ExecutionID collision.
type Store interface {
	ListActive(ctx context.Context) ([]*Job, error)
	Get(ctx context.Context, jobID string) (*Job, error)
	Create(ctx context.Context, schedule, apiURL string, executionType ExecutionType) (*Job, error)
	// CreatePlaceholder inserts an inactive job row for ad-hoc/debug firings
	// that must satisfy the executions->jobs foreign key without being
	// picked up by reconciliation.
	CreatePlaceholder(ctx context.Context, jobID, apiURL string) (*Job, error)
	Update(ctx context.Context, jobID string, update JobUpdate) (*Job, error)
	Delete(ctx context.Context, jobID string) (bool, error)

	RecordExecution(ctx context.Context, exec *Execution) error
	ListExecutions(ctx context.Context, jobID string, limit int) ([]*Execution, error)
	GetLatestExecution(ctx context.Context, jobID string) (*Execution, error)
	Stats(ctx context.Context, jobID string) (*Stats, error)

	Close() error
}
