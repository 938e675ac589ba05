package dispatch

import (
	"container/heap"
	"time"
)

// scheduledEntry is one job's next scheduled fire instant, ordered into the
// dispatch heap by fire time with job_id as a lexicographic tiebreak.
type scheduledEntry struct {
	jobID    string
	schedule string
	apiURL   string
	fireAt   time.Time
	index    int // maintained by container/heap
}

// entryHeap is a min-heap of scheduledEntry ordered by fireAt, tie-broken by
// jobID, mirroring the ordering original_source's ScheduledJob.__lt__ gives
// its Python heapq-backed scheduler.
type entryHeap []*scheduledEntry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if !h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].fireAt.Before(h[j].fireAt)
	}
	return h[i].jobID < h[j].jobID
}

func (h entryHeap) Swap(i, j int) {
	h[i], h[j] = h[j], h[i]
	h[i].index = i
	h[j].index = j
}

func (h *entryHeap) Push(x any) {
	e := x.(*scheduledEntry)
	e.index = len(*h)
	*h = append(*h, e)
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	e := old[n-1]
	old[n-1] = nil
	e.index = -1
	*h = old[:n-1]
	return e
}

var _ heap.Interface = (*entryHeap)(nil)
