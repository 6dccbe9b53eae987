package quiescer

import "time"

// entry is one scheduled firing: a monotonic deadline plus a wrap-tolerant id
// used to recognise (and ignore) superseded schedules (§4.3).
type entry struct {
	fireAt time.Time
	id     uint64
}

// entryHeap is a min-heap over entry ordered by fireAt, id as tiebreaker.
// Implements container/heap.Interface.
type entryHeap []entry

func (h entryHeap) Len() int { return len(h) }

func (h entryHeap) Less(i, j int) bool {
	if h[i].fireAt.Equal(h[j].fireAt) {
		return h[i].id < h[j].id
	}

	return h[i].fireAt.Before(h[j].fireAt)
}

func (h entryHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *entryHeap) Push(x any) {
	*h = append(*h, x.(entry))
}

func (h *entryHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]

	return item
}
