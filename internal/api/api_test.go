package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net"
	"net/http"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/internal/dispatch"
	"github.com/nandlabs/jobsched/internal/execution"
	"github.com/nandlabs/jobsched/internal/registry"
	"github.com/nandlabs/jobsched/rest/server"
	"github.com/nandlabs/jobsched/uuid"
)

// nextPort hands out distinct ports for each test server. server.Options
// keeps ListenPort as an int16, so candidates are kept well under 32768
// rather than trusting whatever the OS ephemeral range (often above it)
// hands back from a ":0" listen.
var nextPort int32 = 21000

func freePort(t *testing.T) int {
	t.Helper()
	for i := 0; i < 100; i++ {
		port := int(atomic.AddInt32(&nextPort, 1))
		l, err := net.Listen("tcp", "127.0.0.1:"+strconv.Itoa(port))
		if err != nil {
			continue
		}
		l.Close()
		return port
	}
	t.Fatal("freePort: could not find an available port")
	return 0
}

// startTestServer wires a fresh in-memory catalog store, execution core, and
// dispatch core into the registry and registers the REST routes on a real
// HTTP server listening on localhost, mirroring cmd/jobsched/main.go's wiring.
func startTestServer(t *testing.T) (baseURL string, store catalog.Store) {
	t.Helper()

	store = catalog.NewInMemoryStore()
	registry.SetCatalogStore(store)

	pool := execution.New(store, execution.Config{
		Workers: 1, QueueSize: 4, RequestTimeout: time.Second, MaxRetries: 0,
	})
	registry.SetExecutionCore(pool)

	core := dispatch.New(store, pool, time.Hour)
	registry.SetDispatchCore(core)

	id, err := uuid.V4()
	if err != nil {
		t.Fatalf("uuid.V4(): %v", err)
	}
	port := freePort(t)
	srv, err := server.NewServer(&server.Options{
		Id:         id.String(),
		ListenHost: "127.0.0.1",
		ListenPort: int16(port),
	})
	if err != nil {
		t.Fatalf("NewServer: %v", err)
	}
	if err := RegisterRoutes(srv); err != nil {
		t.Fatalf("RegisterRoutes: %v", err)
	}
	if err := srv.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	t.Cleanup(func() {
		srv.Stop()
		registry.SetCatalogStore(nil)
		registry.SetExecutionCore(nil)
		registry.SetDispatchCore(nil)
	})

	baseURL = "http://127.0.0.1:" + strconv.Itoa(port)
	waitUntilUp(t, baseURL)
	return baseURL, store
}

func waitUntilUp(t *testing.T, baseURL string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if resp, err := http.Get(baseURL + "/jobs"); err == nil {
			resp.Body.Close()
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("test server did not come up in time")
}

func TestCreateAndGetJob(t *testing.T) {
	baseURL, _ := startTestServer(t)

	body := `{"schedule":"0 * * * * *","api_url":"http://example.com/hook"}`
	resp, err := http.Post(baseURL+"/jobs", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("POST /jobs status = %d, want %d", resp.StatusCode, http.StatusCreated)
	}

	var created jobResponse
	if err := json.NewDecoder(resp.Body).Decode(&created); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if created.JobID == "" {
		t.Fatal("created job has empty job_id")
	}
	if created.NextRunTime == "" {
		t.Error("created job has empty next_run_time")
	}
	if created.ScheduleDesc == "" {
		t.Error("created job has empty schedule_description")
	}

	getResp, err := http.Get(baseURL + "/jobs/" + created.JobID)
	if err != nil {
		t.Fatalf("GET /jobs/:id: %v", err)
	}
	defer getResp.Body.Close()
	if getResp.StatusCode != http.StatusOK {
		t.Fatalf("GET /jobs/:id status = %d, want %d", getResp.StatusCode, http.StatusOK)
	}
	var fetched jobResponse
	if err := json.NewDecoder(getResp.Body).Decode(&fetched); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if fetched.JobID != created.JobID {
		t.Errorf("fetched job_id = %q, want %q", fetched.JobID, created.JobID)
	}
}

func TestGetJobNotFound(t *testing.T) {
	baseURL, _ := startTestServer(t)

	resp, err := http.Get(baseURL + "/jobs/does-not-exist")
	if err != nil {
		t.Fatalf("GET /jobs/:id: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /jobs/:id (missing) status = %d, want %d", resp.StatusCode, http.StatusNotFound)
	}
}

func TestCreateJobRejectsInvalidSchedule(t *testing.T) {
	baseURL, _ := startTestServer(t)

	body := `{"schedule":"nonsense","api_url":"http://example.com/hook"}`
	resp, err := http.Post(baseURL+"/jobs", "application/json", bytes.NewBufferString(body))
	if err != nil {
		t.Fatalf("POST /jobs: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("POST /jobs (bad schedule) status = %d, want %d", resp.StatusCode, http.StatusBadRequest)
	}
}

func TestDeleteJobIsSoft(t *testing.T) {
	baseURL, store := startTestServer(t)

	job, err := store.Create(context.Background(), "0 * * * * *", "http://example.com/hook", catalog.AtLeastOnce)
	if err != nil {
		t.Fatalf("store.Create: %v", err)
	}

	req, _ := http.NewRequest(http.MethodDelete, baseURL+"/jobs/"+job.JobID, nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("DELETE /jobs/:id: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /jobs/:id status = %d, want %d", resp.StatusCode, http.StatusNoContent)
	}

	got, err := store.Get(context.Background(), job.JobID)
	if err != nil {
		t.Fatalf("store.Get after delete: %v", err)
	}
	if got.Active {
		t.Error("job is still Active after DELETE, want soft-deleted")
	}
}

func TestExecutionStatsForUnknownJobIsEmpty(t *testing.T) {
	baseURL, _ := startTestServer(t)

	resp, err := http.Get(baseURL + "/executions/unknown-job/stats")
	if err != nil {
		t.Fatalf("GET /executions/:job_id/stats: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET stats status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var stats catalog.Stats
	if err := json.NewDecoder(resp.Body).Decode(&stats); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if stats.Total != 0 {
		t.Errorf("Total = %d, want 0 for a job with no executions", stats.Total)
	}
}
