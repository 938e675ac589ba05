// Package execution implements the bounded worker pool that performs the
// outbound HTTP firings for due jobs, with retry/backoff and durable
// recording of every attempt sequence's outcome.
package execution

import (
	"context"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/l3"
	"github.com/nandlabs/jobsched/lifecycle"
	"github.com/nandlabs/jobsched/rest"
	restclient "github.com/nandlabs/jobsched/rest/client"
	"github.com/nandlabs/jobsched/uuid"
)

var logger = l3.Get()

// maxBackoff is the per-interval cap on attempt backoff, per contract.
const maxBackoff = 30 * time.Second

// maxErrorBodyChars bounds how much of a non-2xx response body is kept as
// the recorded last_error.
const maxErrorBodyChars = 200

// firing is one unit of work submitted by the dispatch core.
type firing struct {
	jobID         string
	apiURL        string
	scheduledTime time.Time
}

// outboundBody is the JSON payload posted to a job's api_url.
type outboundBody struct {
	JobID         string `json:"job_id"`
	ExecutionID   string `json:"execution_id"`
	ScheduledTime string `json:"scheduled_time"`
	ActualTime    string `json:"actual_time"`
}

// Pool is the execution core: a bounded worker pool plus the HTTP client and
// retry policy used for every firing it handles.
type Pool struct {
	store catalog.Store

	workers       int
	queueSize     int
	requestTimeout time.Duration
	maxRetries    int

	queue chan firing
	wg    sync.WaitGroup

	httpClient *restclient.Client
	comp       *lifecycle.SimpleComponent
}

// Config collects the execution core's tunables, sourced from environment
// variables by internal/appconfig.
type Config struct {
	Workers        int
	QueueSize      int
	RequestTimeout time.Duration
	MaxRetries     int
}

// New constructs an execution core bound to store for terminal recording.
func New(store catalog.Store, cfg Config) *Pool {
	p := &Pool{
		store:          store,
		workers:        cfg.Workers,
		queueSize:      cfg.QueueSize,
		requestTimeout: cfg.RequestTimeout,
		maxRetries:     cfg.MaxRetries,
		queue:          make(chan firing, cfg.QueueSize),
		httpClient:     restclient.NewClient().ReqTimeout(uint(cfg.RequestTimeout / time.Second)),
	}
	p.comp = &lifecycle.SimpleComponent{
		CompId:    "execution-core",
		StartFunc: p.start,
		StopFunc:  p.stop,
	}
	return p
}

// Component exposes the execution core as a lifecycle.Component.
func (p *Pool) Component() lifecycle.Component {
	return p.comp
}

func (p *Pool) start() error {
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
	logger.InfoF("execution core started (workers=%d, queue_size=%d, max_retries=%d)", p.workers, p.queueSize, p.maxRetries)
	return nil
}

func (p *Pool) stop() error {
	close(p.queue)
	p.wg.Wait()
	logger.Info("execution core stopped")
	return nil
}

// Submit enqueues a firing for asynchronous execution. It returns false
// without blocking when the queue is full — the caller (dispatch core) logs
// the drop and does not retry it.
func (p *Pool) Submit(jobID, apiURL string, scheduledTime time.Time) bool {
	select {
	case p.queue <- firing{jobID: jobID, apiURL: apiURL, scheduledTime: scheduledTime}:
		return true
	default:
		return false
	}
}

// ExecuteSync performs exactly one attempt outside the worker pool and
// returns the resulting Execution, without retry. It backs the supplemental
// POST /debug/execute_sync endpoint.
func (p *Pool) ExecuteSync(ctx context.Context, jobID, apiURL string, scheduledTime time.Time) (*catalog.Execution, error) {
	execID, err := uuid.V4()
	if err != nil {
		return nil, err
	}
	exec := p.attemptOnce(jobID, execID.String(), apiURL, scheduledTime, 1)
	if err := p.store.RecordExecution(ctx, exec); err != nil {
		return nil, err
	}
	return exec, nil
}

func (p *Pool) worker() {
	defer p.wg.Done()
	for f := range p.queue {
		p.runFiring(f)
	}
}

// runFiring performs the full attempt budget for one firing and records the
// terminal outcome exactly once.
func (p *Pool) runFiring(f firing) {
	execID, err := uuid.V4()
	if err != nil {
		logger.ErrorF("execution: failed to generate execution id for job %s: %v", f.jobID, err)
		return
	}

	maxAttempts := p.maxRetries + 1
	var exec *catalog.Execution

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		exec = p.attemptOnce(f.jobID, execID.String(), f.apiURL, f.scheduledTime, attempt)
		if exec.Status == catalog.StatusSuccess || attempt == maxAttempts {
			break
		}
		backoff := time.Duration(1<<uint(attempt)) * time.Second
		if backoff > maxBackoff {
			backoff = maxBackoff
		}
		logger.WarnF("execution: job %s attempt %d failed, retrying in %s", f.jobID, attempt, backoff)
		time.Sleep(backoff)
	}

	if err := p.store.RecordExecution(context.Background(), exec); err != nil {
		logger.ErrorF("execution: failed to record execution for job %s: %v", f.jobID, err)
	}
}

// attemptOnce performs a single outbound POST and classifies the result into
// a terminal-looking Execution; callers decide whether to retry.
func (p *Pool) attemptOnce(jobID, execID, apiURL string, scheduledTime time.Time, attempt int) *catalog.Execution {
	actualStart := time.Now().UTC()
	body := outboundBody{
		JobID:         jobID,
		ExecutionID:   execID,
		ScheduledTime: scheduledTime.UTC().Format(time.RFC3339),
		ActualTime:    actualStart.Format(time.RFC3339),
	}

	req := p.httpClient.NewRequest(apiURL, "POST").
		SetContentType(rest.JSONContentType).
		SetBody(body)

	resp, err := p.httpClient.Execute(req)
	if err != nil {
		msg := err.Error()
		logger.DebugF("execution: job %s attempt %d transport error: %v", jobID, attempt, err)
		return &catalog.Execution{
			ExecutionID:     execID,
			JobID:           jobID,
			ScheduledTime:   scheduledTime,
			ActualStartTime: actualStart,
			Status:          catalog.StatusFailed,
			ErrorMessage:    &msg,
			CreatedAt:       time.Now().UTC(),
		}
	}

	status := resp.Raw().StatusCode
	if status >= 200 && status < 300 {
		resp.Raw().Body.Close()
		duration := time.Since(actualStart).Milliseconds()
		return &catalog.Execution{
			ExecutionID:     execID,
			JobID:           jobID,
			ScheduledTime:   scheduledTime,
			ActualStartTime: actualStart,
			Status:          catalog.StatusSuccess,
			HTTPStatus:      &status,
			DurationMs:      &duration,
			CreatedAt:       time.Now().UTC(),
		}
	}

	snippet := truncatedBody(resp)
	msg := fmt.Sprintf("server responded with status %d: %s", status, snippet)
	logger.DebugF("execution: job %s attempt %d application failure: %s", jobID, attempt, msg)
	return &catalog.Execution{
		ExecutionID:     execID,
		JobID:           jobID,
		ScheduledTime:   scheduledTime,
		ActualStartTime: actualStart,
		Status:          catalog.StatusFailed,
		HTTPStatus:      &status,
		ErrorMessage:    &msg,
		CreatedAt:       time.Now().UTC(),
	}
}

func truncatedBody(resp *restclient.Response) string {
	defer resp.Raw().Body.Close()
	buf := make([]byte, maxErrorBodyChars)
	n, _ := io.ReadFull(resp.Raw().Body, buf)
	return string(buf[:n])
}
