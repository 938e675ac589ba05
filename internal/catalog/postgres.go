package catalog

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/nandlabs/jobsched/internal/cron"
	"github.com/nandlabs/jobsched/uuid"
)

// PostgresStore is the durable catalog implementation backed by a
// connection-pooled Postgres database, grounded on the pgx-based stores in
// the retrieval pack's goclaw agent repo.
type PostgresStore struct {
	pool *pgxpool.Pool
}

// OpenPostgresStore connects to dsn and returns a ready-to-use store. The
// caller is responsible for running migrations before first use (see
// cmd/jobsched).
func OpenPostgresStore(ctx context.Context, dsn string) (*PostgresStore, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return &PostgresStore{pool: pool}, nil
}

func (s *PostgresStore) Close() error {
	s.pool.Close()
	return nil
}

func (s *PostgresStore) ListActive(ctx context.Context) ([]*Job, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT job_id, schedule, api_url, execution_type, active, created_at, updated_at
		FROM jobs WHERE active = true`)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

func (s *PostgresStore) Get(ctx context.Context, jobID string) (*Job, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT job_id, schedule, api_url, execution_type, active, created_at, updated_at
		FROM jobs WHERE job_id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrJobNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return j, nil
}

func (s *PostgresStore) Create(ctx context.Context, schedule, apiURL string, executionType ExecutionType) (*Job, error) {
	if !cron.Validate(schedule) {
		return nil, ErrInvalidSchedule
	}
	if err := validateAPIURL(apiURL); err != nil {
		return nil, err
	}
	if executionType == "" {
		executionType = AtLeastOnce
	}
	id, err := uuid.V4()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	job := &Job{
		JobID:         id.String(),
		Schedule:      schedule,
		APIURL:        apiURL,
		ExecutionType: executionType,
		Active:        true,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, schedule, api_url, execution_type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`,
		job.JobID, job.Schedule, job.APIURL, job.ExecutionType, job.Active, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return job, nil
}

func (s *PostgresStore) CreatePlaceholder(ctx context.Context, jobID, apiURL string) (*Job, error) {
	now := time.Now().UTC()
	job := &Job{
		JobID:         jobID,
		Schedule:      "*/1 * * * * *",
		APIURL:        apiURL,
		ExecutionType: AtLeastOnce,
		Active:        false,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	_, err := s.pool.Exec(ctx, `
		INSERT INTO jobs (job_id, schedule, api_url, execution_type, active, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (job_id) DO NOTHING`,
		job.JobID, job.Schedule, job.APIURL, job.ExecutionType, job.Active, job.CreatedAt, job.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return job, nil
}

func (s *PostgresStore) Update(ctx context.Context, jobID string, update JobUpdate) (*Job, error) {
	if update.Schedule != nil && !cron.Validate(*update.Schedule) {
		return nil, ErrInvalidSchedule
	}
	if update.APIURL != nil {
		if err := validateAPIURL(*update.APIURL); err != nil {
			return nil, err
		}
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer tx.Rollback(ctx)

	_, err = tx.Exec(ctx, `
		UPDATE jobs SET
			schedule = COALESCE($2, schedule),
			api_url = COALESCE($3, api_url),
			active = COALESCE($4, active),
			updated_at = now()
		WHERE job_id = $1`,
		jobID, update.Schedule, update.APIURL, update.Active)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	row := tx.QueryRow(ctx, `
		SELECT job_id, schedule, api_url, execution_type, active, created_at, updated_at
		FROM jobs WHERE job_id = $1`, jobID)
	j, err := scanJob(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return j, nil
}

func (s *PostgresStore) Delete(ctx context.Context, jobID string) (bool, error) {
	tag, err := s.pool.Exec(ctx, `UPDATE jobs SET active = false, updated_at = now() WHERE job_id = $1`, jobID)
	if err != nil {
		return false, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return tag.RowsAffected() > 0, nil
}

func (s *PostgresStore) RecordExecution(ctx context.Context, exec *Execution) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO job_executions
			(execution_id, job_id, scheduled_time, actual_start_time, status, http_status, duration_ms, error_message, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		ON CONFLICT (execution_id) DO NOTHING`,
		exec.ExecutionID, exec.JobID, exec.ScheduledTime, exec.ActualStartTime, exec.Status,
		exec.HTTPStatus, exec.DurationMs, exec.ErrorMessage, exec.CreatedAt)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return nil
}

func (s *PostgresStore) ListExecutions(ctx context.Context, jobID string, limit int) ([]*Execution, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.pool.Query(ctx, `
		SELECT execution_id, job_id, scheduled_time, actual_start_time, status, http_status, duration_ms, error_message, created_at
		FROM job_executions WHERE job_id = $1 ORDER BY created_at DESC LIMIT $2`, jobID, limit)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	defer rows.Close()

	var execs []*Execution
	for rows.Next() {
		e, err := scanExecution(rows)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
		}
		execs = append(execs, e)
	}
	return execs, rows.Err()
}

func (s *PostgresStore) GetLatestExecution(ctx context.Context, jobID string) (*Execution, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT execution_id, job_id, scheduled_time, actual_start_time, status, http_status, duration_ms, error_message, created_at
		FROM job_executions WHERE job_id = $1 ORDER BY created_at DESC LIMIT 1`, jobID)
	e, err := scanExecution(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}
	return e, nil
}

// Stats computes the summary directly in SQL: success_rate rounded to two
// decimals, duration/drift averages over non-null samples only.
func (s *PostgresStore) Stats(ctx context.Context, jobID string) (*Stats, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT
			count(*) AS total,
			count(*) FILTER (WHERE status = 'SUCCESS') AS success,
			count(*) FILTER (WHERE status = 'FAILED') AS failure,
			avg(duration_ms) FILTER (WHERE duration_ms IS NOT NULL) AS avg_duration_ms,
			avg(extract(epoch FROM (actual_start_time - scheduled_time)) * 1000) AS avg_drift_ms
		FROM job_executions WHERE job_id = $1`, jobID)

	var total, success, failure int64
	var avgDuration, avgDrift *float64
	if err := row.Scan(&total, &success, &failure, &avgDuration, &avgDrift); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrStoreUnavailable, err)
	}

	stats := &Stats{
		Total:         total,
		Success:       success,
		Failure:       failure,
		AvgDurationMs: avgDuration,
		AvgDriftMs:    avgDrift,
	}
	if total > 0 {
		stats.SuccessRate = round2(float64(success) / float64(total) * 100)
	}
	return stats, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanJob(row rowScanner) (*Job, error) {
	j := &Job{}
	err := row.Scan(&j.JobID, &j.Schedule, &j.APIURL, &j.ExecutionType, &j.Active, &j.CreatedAt, &j.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return j, nil
}

func scanExecution(row rowScanner) (*Execution, error) {
	e := &Execution{}
	err := row.Scan(&e.ExecutionID, &e.JobID, &e.ScheduledTime, &e.ActualStartTime, &e.Status,
		&e.HTTPStatus, &e.DurationMs, &e.ErrorMessage, &e.CreatedAt)
	if err != nil {
		return nil, err
	}
	return e, nil
}
