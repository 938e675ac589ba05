package dispatch

import (
	"container/heap"
	"testing"
	"time"
)

func TestEntryHeapOrdersByFireTimeThenJobID(t *testing.T) {
	base := time.Date(2026, 7, 31, 10, 0, 0, 0, time.UTC)
	h := &entryHeap{}
	heap.Init(h)

	heap.Push(h, &scheduledEntry{jobID: "b", fireAt: base.Add(time.Minute)})
	heap.Push(h, &scheduledEntry{jobID: "z", fireAt: base})
	heap.Push(h, &scheduledEntry{jobID: "a", fireAt: base})
	heap.Push(h, &scheduledEntry{jobID: "c", fireAt: base.Add(-time.Minute)})

	var order []string
	for h.Len() > 0 {
		order = append(order, heap.Pop(h).(*scheduledEntry).jobID)
	}

	want := []string{"c", "a", "z", "b"}
	if len(order) != len(want) {
		t.Fatalf("pop order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("pop order = %v, want %v", order, want)
			break
		}
	}
}

func TestEntryHeapMaintainsIndexOnSwap(t *testing.T) {
	h := &entryHeap{}
	heap.Init(h)
	e1 := &scheduledEntry{jobID: "1", fireAt: time.Now()}
	e2 := &scheduledEntry{jobID: "2", fireAt: time.Now().Add(time.Second)}
	heap.Push(h, e1)
	heap.Push(h, e2)

	for i, e := range *h {
		if e.index != i {
			t.Errorf("entry %s index = %d, want %d", e.jobID, e.index, i)
		}
	}
}
