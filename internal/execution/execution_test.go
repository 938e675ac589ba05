package execution

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
)

func newTestPool(t *testing.T, store catalog.Store, maxRetries int) *Pool {
	t.Helper()
	return New(store, Config{
		Workers:        2,
		QueueSize:      8,
		RequestTimeout: 5 * time.Second,
		MaxRetries:     maxRetries,
	})
}

func TestExecuteSyncRecordsSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := catalog.NewInMemoryStore()
	job, err := store.Create(context.Background(), "* * * * * *", srv.URL, catalog.AtLeastOnce)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	pool := newTestPool(t, store, 3)
	exec, err := pool.ExecuteSync(context.Background(), job.JobID, srv.URL, time.Now())
	if err != nil {
		t.Fatalf("ExecuteSync returned error: %v", err)
	}
	if exec.Status != catalog.StatusSuccess {
		t.Errorf("ExecuteSync status = %q, want %q", exec.Status, catalog.StatusSuccess)
	}
	if exec.HTTPStatus == nil || *exec.HTTPStatus != http.StatusOK {
		t.Errorf("ExecuteSync HTTPStatus = %v, want 200", exec.HTTPStatus)
	}

	recorded, err := store.GetLatestExecution(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetLatestExecution returned error: %v", err)
	}
	if recorded == nil || recorded.ExecutionID != exec.ExecutionID {
		t.Error("ExecuteSync did not durably record the execution")
	}
}

func TestExecuteSyncRecordsApplicationFailure(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("boom"))
	}))
	defer srv.Close()

	store := catalog.NewInMemoryStore()
	job, err := store.Create(context.Background(), "* * * * * *", srv.URL, catalog.AtLeastOnce)
	if err != nil {
		t.Fatalf("Create returned error: %v", err)
	}

	pool := newTestPool(t, store, 3)
	exec, err := pool.ExecuteSync(context.Background(), job.JobID, srv.URL, time.Now())
	if err != nil {
		t.Fatalf("ExecuteSync returned error: %v", err)
	}
	if exec.Status != catalog.StatusFailed {
		t.Errorf("ExecuteSync status = %q, want %q", exec.Status, catalog.StatusFailed)
	}
	if exec.HTTPStatus == nil || *exec.HTTPStatus != http.StatusInternalServerError {
		t.Errorf("ExecuteSync HTTPStatus = %v, want 500", exec.HTTPStatus)
	}
	if exec.ErrorMessage == nil {
		t.Error("ExecuteSync did not record an error message for a non-2xx response")
	}
}

func TestExecuteSyncMakesExactlyOneAttempt(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := catalog.NewInMemoryStore()
	job, _ := store.Create(context.Background(), "* * * * * *", srv.URL, catalog.AtLeastOnce)

	pool := newTestPool(t, store, 5)
	if _, err := pool.ExecuteSync(context.Background(), job.JobID, srv.URL, time.Now()); err != nil {
		t.Fatalf("ExecuteSync returned error: %v", err)
	}
	if calls != 1 {
		t.Errorf("server received %d calls, want exactly 1 (ExecuteSync must not retry)", calls)
	}
}

func TestRunFiringRetriesUntilSuccess(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		if calls < 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	store := catalog.NewInMemoryStore()
	job, _ := store.Create(context.Background(), "* * * * * *", srv.URL, catalog.AtLeastOnce)

	pool := newTestPool(t, store, 3)
	pool.runFiring(firing{jobID: job.JobID, apiURL: srv.URL, scheduledTime: time.Now()})

	if calls != 2 {
		t.Errorf("server received %d calls, want 2 (one failure, one success)", calls)
	}
	recorded, err := store.GetLatestExecution(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetLatestExecution returned error: %v", err)
	}
	if recorded == nil || recorded.Status != catalog.StatusSuccess {
		t.Errorf("recorded execution status = %v, want SUCCESS after eventual success", recorded)
	}
}

func TestRunFiringRecordsFailureAfterExhaustingRetries(t *testing.T) {
	var calls int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	store := catalog.NewInMemoryStore()
	job, _ := store.Create(context.Background(), "* * * * * *", srv.URL, catalog.AtLeastOnce)

	pool := newTestPool(t, store, 1) // maxAttempts = 2
	pool.runFiring(firing{jobID: job.JobID, apiURL: srv.URL, scheduledTime: time.Now()})

	if calls != 2 {
		t.Errorf("server received %d calls, want 2 (max_retries=1 => 2 attempts)", calls)
	}
	recorded, err := store.GetLatestExecution(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("GetLatestExecution returned error: %v", err)
	}
	if recorded == nil || recorded.Status != catalog.StatusFailed {
		t.Errorf("recorded execution status = %v, want FAILED after exhausting retries", recorded)
	}
}

func TestSubmitDropsWhenQueueFull(t *testing.T) {
	store := catalog.NewInMemoryStore()
	pool := New(store, Config{Workers: 0, QueueSize: 1, RequestTimeout: time.Second, MaxRetries: 0})

	if !pool.Submit("job-1", "http://example.com", time.Now()) {
		t.Fatal("first Submit into an empty queue should succeed")
	}
	if pool.Submit("job-2", "http://example.com", time.Now()) {
		t.Error("Submit into a full queue should return false, not block or silently drop without signaling")
	}
}
