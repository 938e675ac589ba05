package catalog

import (
	"context"
	"testing"
	"time"
)

func TestCreateValidatesScheduleAndURL(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	if _, err := s.Create(ctx, "not a schedule", "http://example.com/hook", AtLeastOnce); err != ErrInvalidSchedule {
		t.Errorf("Create(bad schedule) error = %v, want ErrInvalidSchedule", err)
	}
	if _, err := s.Create(ctx, "0 * * * * *", "not-a-url", AtLeastOnce); err != ErrInvalidURL {
		t.Errorf("Create(bad url) error = %v, want ErrInvalidURL", err)
	}
	if _, err := s.Create(ctx, "0 * * * * *", "ftp://example.com/hook", AtLeastOnce); err != ErrInvalidURL {
		t.Errorf("Create(non-http scheme) error = %v, want ErrInvalidURL", err)
	}

	job, err := s.Create(ctx, "0 * * * * *", "http://example.com/hook", "")
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	if job.JobID == "" {
		t.Error("Create did not assign a job ID")
	}
	if job.ExecutionType != AtLeastOnce {
		t.Errorf("Create defaulted ExecutionType = %q, want %q", job.ExecutionType, AtLeastOnce)
	}
	if !job.Active {
		t.Error("Create() job.Active = false, want true")
	}
}

func TestGetReturnsCopyNotAlias(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	job, _ := s.Create(ctx, "0 * * * * *", "http://example.com/hook", AtLeastOnce)

	got, err := s.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	got.APIURL = "http://mutated.invalid/"

	again, err := s.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get returned error: %v", err)
	}
	if again.APIURL != "http://example.com/hook" {
		t.Errorf("Get() returned an aliased Job; mutating the result mutated the store: %q", again.APIURL)
	}
}

func TestGetNotFound(t *testing.T) {
	s := NewInMemoryStore()
	if _, err := s.Get(context.Background(), "missing"); err != ErrJobNotFound {
		t.Errorf("Get(missing) error = %v, want ErrJobNotFound", err)
	}
}

func TestListActiveExcludesSoftDeleted(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	a, _ := s.Create(ctx, "0 * * * * *", "http://example.com/a", AtLeastOnce)
	_, _ = s.Create(ctx, "0 * * * * *", "http://example.com/b", AtLeastOnce)

	if _, err := s.Delete(ctx, a.JobID); err != nil {
		t.Fatalf("Delete returned error: %v", err)
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive returned error: %v", err)
	}
	if len(active) != 1 {
		t.Fatalf("ListActive() returned %d jobs, want 1", len(active))
	}
	if active[0].APIURL != "http://example.com/b" {
		t.Errorf("ListActive() returned %q, want the non-deleted job", active[0].APIURL)
	}
}

func TestDeleteIsSoftAndPreservesRow(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	job, _ := s.Create(ctx, "0 * * * * *", "http://example.com/hook", AtLeastOnce)

	ok, err := s.Delete(ctx, job.JobID)
	if err != nil || !ok {
		t.Fatalf("Delete() = (%v, %v), want (true, nil)", ok, err)
	}

	got, err := s.Get(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Get after delete returned error: %v", err)
	}
	if got.Active {
		t.Error("Get after Delete: Active = true, want false")
	}

	if ok, err := s.Delete(ctx, "missing"); err != nil || ok {
		t.Errorf("Delete(missing) = (%v, %v), want (false, nil)", ok, err)
	}
}

func TestUpdatePartial(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	job, _ := s.Create(ctx, "0 * * * * *", "http://example.com/hook", AtLeastOnce)

	newURL := "http://example.com/new-hook"
	updated, err := s.Update(ctx, job.JobID, JobUpdate{APIURL: &newURL})
	if err != nil {
		t.Fatalf("Update returned error: %v", err)
	}
	if updated.APIURL != newURL {
		t.Errorf("Update() APIURL = %q, want %q", updated.APIURL, newURL)
	}
	if updated.Schedule != job.Schedule {
		t.Errorf("Update() left Schedule unchanged at %q, got %q", job.Schedule, updated.Schedule)
	}

	badSchedule := "garbage"
	if _, err := s.Update(ctx, job.JobID, JobUpdate{Schedule: &badSchedule}); err != ErrInvalidSchedule {
		t.Errorf("Update(bad schedule) error = %v, want ErrInvalidSchedule", err)
	}
}

func TestRecordExecutionIsIdempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	job, _ := s.Create(ctx, "0 * * * * *", "http://example.com/hook", AtLeastOnce)

	status := http200()
	exec := &Execution{
		ExecutionID:     "exec-1",
		JobID:           job.JobID,
		ScheduledTime:   time.Now().UTC(),
		ActualStartTime: time.Now().UTC(),
		Status:          StatusSuccess,
		HTTPStatus:      &status,
		CreatedAt:       time.Now().UTC(),
	}

	if err := s.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("RecordExecution returned error: %v", err)
	}
	// A retried record of the same execution_id must be a no-op, not a
	// duplicate row.
	if err := s.RecordExecution(ctx, exec); err != nil {
		t.Fatalf("RecordExecution (retry) returned error: %v", err)
	}

	execs, err := s.ListExecutions(ctx, job.JobID, 0)
	if err != nil {
		t.Fatalf("ListExecutions returned error: %v", err)
	}
	if len(execs) != 1 {
		t.Fatalf("ListExecutions() returned %d rows, want 1 after duplicate RecordExecution", len(execs))
	}
}

func TestStatsComputesSuccessRateAndAverages(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()
	job, _ := s.Create(ctx, "0 * * * * *", "http://example.com/hook", AtLeastOnce)

	scheduled := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	ok200 := 200
	failed500 := 500
	dur1 := int64(100)
	dur2 := int64(300)

	_ = s.RecordExecution(ctx, &Execution{
		ExecutionID: "e1", JobID: job.JobID, Status: StatusSuccess,
		ScheduledTime: scheduled, ActualStartTime: scheduled.Add(50 * time.Millisecond),
		HTTPStatus: &ok200, DurationMs: &dur1, CreatedAt: scheduled,
	})
	_ = s.RecordExecution(ctx, &Execution{
		ExecutionID: "e2", JobID: job.JobID, Status: StatusFailed,
		ScheduledTime: scheduled, ActualStartTime: scheduled.Add(150 * time.Millisecond),
		HTTPStatus: &failed500, DurationMs: &dur2, CreatedAt: scheduled.Add(time.Second),
	})

	stats, err := s.Stats(ctx, job.JobID)
	if err != nil {
		t.Fatalf("Stats returned error: %v", err)
	}
	if stats.Total != 2 || stats.Success != 1 || stats.Failure != 1 {
		t.Errorf("Stats() totals = %+v, want Total=2 Success=1 Failure=1", stats)
	}
	if stats.SuccessRate != 50 {
		t.Errorf("Stats().SuccessRate = %v, want 50", stats.SuccessRate)
	}
	if stats.AvgDurationMs == nil || *stats.AvgDurationMs != 200 {
		t.Errorf("Stats().AvgDurationMs = %v, want 200", stats.AvgDurationMs)
	}
	if stats.AvgDriftMs == nil || *stats.AvgDriftMs != 100 {
		t.Errorf("Stats().AvgDriftMs = %v, want 100", stats.AvgDriftMs)
	}
}

func TestCreatePlaceholderIsInactive(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	job, err := s.CreatePlaceholder(ctx, "debug-job-1", "http://example.com/hook")
	if err != nil {
		t.Fatalf("CreatePlaceholder returned error: %v", err)
	}
	if job.Active {
		t.Error("CreatePlaceholder() job.Active = true, want false (must not be picked up by reconciliation)")
	}

	active, err := s.ListActive(ctx)
	if err != nil {
		t.Fatalf("ListActive returned error: %v", err)
	}
	if len(active) != 0 {
		t.Errorf("ListActive() returned %d jobs, want 0 (placeholder must stay inactive)", len(active))
	}
}

func http200() int { return 200 }
