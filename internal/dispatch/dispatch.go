// Package dispatch implements the in-memory priority-queue scheduler that
// decides when each active job is due and hands it to the execution core.
package dispatch

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"github.com/nandlabs/jobsched/internal/catalog"
	"github.com/nandlabs/jobsched/internal/cron"
	"github.com/nandlabs/jobsched/l3"
	"github.com/nandlabs/jobsched/lifecycle"
)

var logger = l3.Get()

// Firer hands a due firing off to the execution core. Submit returns false
// when the firing was dropped (the execution core's queue was full); the
// dispatch core logs the drop but does not retry it locally — the job will
// simply be due again at its next scheduled instant.
type Firer interface {
	Submit(jobID, apiURL string, scheduledTime time.Time) bool
}

// pollFloor bounds how long the loop ever sleeps when the heap is empty,
// mirroring the 1-second ceiling in original_source's scheduler loop.
const pollFloor = time.Second

// Core is the dispatch core: it owns the in-memory heap of next-fire
// instants for every active job and a background loop that fires jobs as
// they become due, refreshing its view of the catalog on a fixed interval.
type Core struct {
	mu    sync.Mutex
	queue entryHeap

	store           catalog.Store
	firer           Firer
	refreshInterval time.Duration

	wake   chan struct{}
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	comp *lifecycle.SimpleComponent
}

// New constructs a dispatch core. refreshInterval governs how often the
// catalog is re-read for added, removed, or edited jobs.
func New(store catalog.Store, firer Firer, refreshInterval time.Duration) *Core {
	c := &Core{
		store:           store,
		firer:           firer,
		refreshInterval: refreshInterval,
		wake:            make(chan struct{}, 1),
	}
	c.comp = &lifecycle.SimpleComponent{
		CompId:    "dispatch-core",
		StartFunc: c.start,
		StopFunc:  c.stop,
	}
	return c
}

// Component exposes the dispatch core as a lifecycle.Component for
// registration with a lifecycle.ComponentManager.
func (c *Core) Component() lifecycle.Component {
	return c.comp
}

func (c *Core) start() error {
	c.ctx, c.cancel = context.WithCancel(context.Background())
	c.refreshSchedule(c.ctx)

	c.wg.Add(1)
	go c.run()

	logger.InfoF("dispatch core started (refresh_interval=%s)", c.refreshInterval)
	return nil
}

func (c *Core) stop() error {
	c.cancel()
	c.wg.Wait()
	logger.Info("dispatch core stopped")
	return nil
}

// RefreshNow forces an immediate catalog reload, used by the
// POST /debug/refresh_schedule endpoint.
func (c *Core) RefreshNow() {
	c.refreshSchedule(c.ctx)
	c.signalWake()
}

func (c *Core) signalWake() {
	select {
	case c.wake <- struct{}{}:
	default:
	}
}

// refreshSchedule reloads active jobs from the catalog and rebuilds the
// heap from scratch, matching the clear-and-rebuild discipline of
// Scheduler.refresh_schedule.
func (c *Core) refreshSchedule(ctx context.Context) {
	jobs, err := c.store.ListActive(ctx)
	if err != nil {
		logger.ErrorF("dispatch: failed to load active jobs: %v", err)
		return
	}

	now := time.Now()
	next := make(entryHeap, 0, len(jobs))
	for _, job := range jobs {
		fireAt, err := cron.Next(job.Schedule, now)
		if err != nil {
			logger.ErrorF("dispatch: skipping job %s: invalid schedule %q: %v", job.JobID, job.Schedule, err)
			continue
		}
		next = append(next, &scheduledEntry{
			jobID:    job.JobID,
			schedule: job.Schedule,
			apiURL:   job.APIURL,
			fireAt:   fireAt,
		})
	}
	heap.Init(&next)

	c.mu.Lock()
	c.queue = next
	c.mu.Unlock()

	logger.InfoF("dispatch: schedule refreshed with %d job(s)", len(next))
}

// nextWakeDuration returns how long to sleep until the earliest due entry,
// capped at pollFloor when the heap is empty so a refresh is never missed
// by more than one second, mirroring the Python loop's 1-second idle sleep.
func (c *Core) nextWakeDuration() time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.queue) == 0 {
		return pollFloor
	}
	d := time.Until(c.queue[0].fireAt)
	if d <= 0 {
		return 0
	}
	if d > pollFloor {
		return pollFloor
	}
	return d
}

// run is the dispatch loop: a refresh ticker on a fixed cadence plus a
// short-period timer that checks for due entries, generalizing the
// teacher's wake-channel/timer idiom to the catalog-polling semantics of
// the Python reference scheduler.
func (c *Core) run() {
	defer c.wg.Done()

	refreshTicker := time.NewTicker(c.refreshInterval)
	defer refreshTicker.Stop()

	timer := time.NewTimer(c.nextWakeDuration())
	defer timer.Stop()

	resetTimer := func() {
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.nextWakeDuration())
	}

	for {
		select {
		case <-c.ctx.Done():
			return

		case <-refreshTicker.C:
			c.refreshSchedule(c.ctx)
			resetTimer()

		case <-c.wake:
			resetTimer()

		case <-timer.C:
			c.dispatchDue()
			resetTimer()
		}
	}
}

// dispatchDue pops and fires every entry whose fireAt has passed, then
// reschedules each for its next occurrence.
func (c *Core) dispatchDue() {
	now := time.Now()
	for {
		c.mu.Lock()
		if len(c.queue) == 0 || c.queue[0].fireAt.After(now) {
			c.mu.Unlock()
			return
		}
		entry := heap.Pop(&c.queue).(*scheduledEntry)
		c.mu.Unlock()

		logger.InfoF("dispatch: firing job %s (scheduled_time=%s)", entry.jobID, entry.fireAt)
		if !c.firer.Submit(entry.jobID, entry.apiURL, entry.fireAt) {
			logger.ErrorF("dispatch: execution queue full, dropped firing for job %s", entry.jobID)
		}

		nextFire, err := cron.Next(entry.schedule, now)
		if err != nil {
			logger.ErrorF("dispatch: failed to reschedule job %s: %v", entry.jobID, err)
			continue
		}
		entry.fireAt = nextFire
		c.mu.Lock()
		heap.Push(&c.queue, entry)
		c.mu.Unlock()
	}
}
