package catalog

import (
	"context"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/nandlabs/jobsched/internal/cron"
	"github.com/nandlabs/jobsched/uuid"
)

// InMemoryStore is a single-process catalog implementation, suitable for
// tests and for running the scheduler without a database. It mirrors the
// copy-on-read/copy-on-write discipline of the teacher's in-memory storage.
type InMemoryStore struct {
	mu         sync.RWMutex
	jobs       map[string]*Job
	executions map[string][]*Execution
}

// NewInMemoryStore creates an empty in-memory catalog.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		jobs:       make(map[string]*Job),
		executions: make(map[string][]*Execution),
	}
}

func validateAPIURL(apiURL string) error {
	u, err := url.Parse(apiURL)
	if err != nil || !u.IsAbs() || (u.Scheme != "http" && u.Scheme != "https") {
		return ErrInvalidURL
	}
	return nil
}

func (s *InMemoryStore) ListActive(_ context.Context) ([]*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var active []*Job
	for _, j := range s.jobs {
		if j.Active {
			cp := *j
			active = append(active, &cp)
		}
	}
	return active, nil
}

func (s *InMemoryStore) Get(_ context.Context, jobID string) (*Job, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, ErrJobNotFound
	}
	cp := *j
	return &cp, nil
}

func (s *InMemoryStore) Create(_ context.Context, schedule, apiURL string, executionType ExecutionType) (*Job, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	cp := *job
	return &cp, nil
}

func (s *InMemoryStore) CreatePlaceholder(_ context.Context, jobID, apiURL string) (*Job, error) {
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

	s.mu.Lock()
	defer s.mu.Unlock()
	s.jobs[job.JobID] = job
	cp := *job
	return &cp, nil
}

func (s *InMemoryStore) Update(_ context.Context, jobID string, update JobUpdate) (*Job, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return nil, nil
	}
	if update.Schedule != nil {
		if !cron.Validate(*update.Schedule) {
			return nil, ErrInvalidSchedule
		}
		j.Schedule = *update.Schedule
	}
	if update.APIURL != nil {
		if err := validateAPIURL(*update.APIURL); err != nil {
			return nil, err
		}
		j.APIURL = *update.APIURL
	}
	if update.Active != nil {
		j.Active = *update.Active
	}
	j.UpdatedAt = time.Now().UTC()
	cp := *j
	return &cp, nil
}

func (s *InMemoryStore) Delete(_ context.Context, jobID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	j, ok := s.jobs[jobID]
	if !ok {
		return false, nil
	}
	j.Active = false
	j.UpdatedAt = time.Now().UTC()
	return true, nil
}

func (s *InMemoryStore) RecordExecution(_ context.Context, exec *Execution) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, e := range s.executions[exec.JobID] {
		if e.ExecutionID == exec.ExecutionID {
			// Idempotent: a retried record after a transient failure is a no-op.
			return nil
		}
	}
	cp := *exec
	s.executions[exec.JobID] = append(s.executions[exec.JobID], &cp)
	return nil
}

func (s *InMemoryStore) ListExecutions(_ context.Context, jobID string, limit int) ([]*Execution, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := append([]*Execution(nil), s.executions[jobID]...)
	sort.Slice(all, func(i, j int) bool {
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	if limit > 0 && len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (s *InMemoryStore) GetLatestExecution(ctx context.Context, jobID string) (*Execution, error) {
	execs, err := s.ListExecutions(ctx, jobID, 1)
	if err != nil {
		return nil, err
	}
	if len(execs) == 0 {
		return nil, nil
	}
	return execs[0], nil
}

func (s *InMemoryStore) Stats(_ context.Context, jobID string) (*Stats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	stats := &Stats{}
	var durationSum, driftSum float64
	var durationCount, driftCount int64

	for _, e := range s.executions[jobID] {
		stats.Total++
		switch e.Status {
		case StatusSuccess:
			stats.Success++
		case StatusFailed:
			stats.Failure++
		}
		if e.DurationMs != nil {
			durationSum += float64(*e.DurationMs)
			durationCount++
		}
		if !e.ActualStartTime.IsZero() {
			driftSum += float64(e.DriftMs())
			driftCount++
		}
	}
	if stats.Total > 0 {
		stats.SuccessRate = round2(float64(stats.Success) / float64(stats.Total) * 100)
	}
	if durationCount > 0 {
		avg := durationSum / float64(durationCount)
		stats.AvgDurationMs = &avg
	}
	if driftCount > 0 {
		avg := driftSum / float64(driftCount)
		stats.AvgDriftMs = &avg
	}
	return stats, nil
}

func (s *InMemoryStore) Close() error {
	return nil
}

func round2(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
