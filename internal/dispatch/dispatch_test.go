package dispatch

import (
	"context"
	"testing"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
)

type fakeFirer struct {
	submissions chan submission
	accept      bool
}

type submission struct {
	jobID         string
	apiURL        string
	scheduledTime time.Time
}

func newFakeFirer() *fakeFirer {
	return &fakeFirer{submissions: make(chan submission, 16), accept: true}
}

func (f *fakeFirer) Submit(jobID, apiURL string, scheduledTime time.Time) bool {
	if !f.accept {
		return false
	}
	f.submissions <- submission{jobID, apiURL, scheduledTime}
	return true
}

// listActiveOnlyStore satisfies catalog.Store but only ListActive matters
// for these tests; it lets a malformed schedule reach refreshSchedule
// without going through Create's own validation, simulating a row that was
// valid when written but whose schedule grammar changed underneath it.
type listActiveOnlyStore struct {
	catalog.Store
	jobs []*catalog.Job
}

func (s *listActiveOnlyStore) ListActive(context.Context) ([]*catalog.Job, error) {
	return s.jobs, nil
}

func TestRefreshScheduleSkipsMalformedSchedule(t *testing.T) {
	store := &listActiveOnlyStore{
		jobs: []*catalog.Job{
			{JobID: "good-job", Schedule: "0 * * * * *", APIURL: "http://example.com/good", Active: true},
			{JobID: "bad-job", Schedule: "not a schedule", APIURL: "http://example.com/bad", Active: true},
		},
	}

	core := New(store, newFakeFirer(), time.Hour)
	core.refreshSchedule(context.Background())

	if core.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1 (malformed schedule must be skipped, not crash refresh)", core.queue.Len())
	}
}

func TestDispatchDueFiresAndReschedules(t *testing.T) {
	store := catalog.NewInMemoryStore()
	ctx := context.Background()
	job, err := store.Create(ctx, "* * * * * *", "http://example.com/hook", catalog.AtLeastOnce)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	firer := newFakeFirer()
	core := New(store, firer, time.Hour)
	core.refreshSchedule(ctx)

	if core.queue.Len() != 1 {
		t.Fatalf("queue length after refresh = %d, want 1", core.queue.Len())
	}

	// Force the single entry due now.
	core.mu.Lock()
	core.queue[0].fireAt = time.Now().Add(-time.Second)
	core.mu.Unlock()

	core.dispatchDue()

	select {
	case sub := <-firer.submissions:
		if sub.jobID != job.JobID {
			t.Errorf("submitted jobID = %q, want %q", sub.jobID, job.JobID)
		}
	case <-time.After(time.Second):
		t.Fatal("dispatchDue did not submit the due entry")
	}

	if core.queue.Len() != 1 {
		t.Errorf("queue length after dispatch = %d, want 1 (job must be rescheduled, not dropped)", core.queue.Len())
	}
	core.mu.Lock()
	rescheduled := core.queue[0].fireAt
	core.mu.Unlock()
	if !rescheduled.After(time.Now().Add(-time.Second)) {
		t.Errorf("rescheduled fireAt = %v, want a future instant", rescheduled)
	}
}

func TestDispatchDueLeavesNotYetDueEntries(t *testing.T) {
	store := catalog.NewInMemoryStore()
	ctx := context.Background()
	if _, err := store.Create(ctx, "0 0 0 1 1 *", "http://example.com/hook", catalog.AtLeastOnce); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	firer := newFakeFirer()
	core := New(store, firer, time.Hour)
	core.refreshSchedule(ctx)

	core.dispatchDue()

	select {
	case sub := <-firer.submissions:
		t.Fatalf("dispatchDue fired a not-yet-due entry: %+v", sub)
	default:
	}
	if core.queue.Len() != 1 {
		t.Errorf("queue length = %d, want 1 (not-yet-due entry must remain queued)", core.queue.Len())
	}
}

func TestRefreshNowReplacesQueue(t *testing.T) {
	store := catalog.NewInMemoryStore()
	ctx := context.Background()

	core := New(store, newFakeFirer(), time.Hour)
	core.ctx = ctx
	core.refreshSchedule(ctx)
	if core.queue.Len() != 0 {
		t.Fatalf("queue length = %d, want 0 before any job exists", core.queue.Len())
	}

	if _, err := store.Create(ctx, "0 * * * * *", "http://example.com/hook", catalog.AtLeastOnce); err != nil {
		t.Fatalf("Create returned error: %v", err)
	}
	core.RefreshNow()

	if core.queue.Len() != 1 {
		t.Errorf("queue length after RefreshNow = %d, want 1", core.queue.Len())
	}
}
