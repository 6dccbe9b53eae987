// Package quiescer coalesces bursts of unit events into a single
// RescanRequest after a configured delay of silence (§4.3).
package quiescer

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"jigctl/internal/app/bus"
	"jigctl/internal/config"
	"jigctl/internal/config/logger"
)

// scheduleAction is a producer-submitted instruction: either "schedule a new
// firing" or "ignore a previously scheduled one" (superseded by a later
// event). Both go through the same queue so the worker only ever touches the
// heap and ignore-set from its own goroutine.
type scheduleAction struct {
	schedule bool
	id       uint64
	fireAt   time.Time
}

// Quiescer subscribes to the bus and republishes a single RescanRequest once
// `delay` has passed without any further non-rescan event.
type Quiescer struct {
	delay time.Duration
	bus   bus.EventBus
	log   logger.Logger

	mu        sync.Mutex
	cond      *sync.Cond
	pending   []scheduleAction
	heap      entryHeap
	ignored   map[uint64]struct{}
	nextID    uint64
	hasActive bool
	activeID  uint64
	closed    bool
}

// New builds a Quiescer. delay comes from cfg.Timeouts.Quiesce.
func New(cfg *config.Config, b bus.EventBus, log logger.Logger) *Quiescer {
	q := &Quiescer{
		delay:   cfg.Timeouts.Quiesce,
		bus:     b,
		log:     log,
		heap:    entryHeap{},
		ignored: map[uint64]struct{}{},
	}
	q.cond = sync.NewCond(&q.mu)

	return q
}

// Run subscribes to the bus and blocks until ctx is done. It must be run on
// its own goroutine (§4.3: "one per quiescer timer").
func (q *Quiescer) Run(ctx context.Context) {
	var wg sync.WaitGroup

	wg.Add(1)

	go func() {
		defer wg.Done()
		q.worker()
	}()

	ch := q.bus.Subscribe(ctx)

	for ev := range ch {
		if isRescanEvent(ev) {
			continue
		}

		q.reschedule()
	}

	q.stop()
	wg.Wait()
}

func isRescanEvent(ev bus.Event) bool {
	switch ev.Kind {
	case bus.EventRescanRequest, bus.EventRescanStart, bus.EventRescanFinish:
		return true
	default:
		return false
	}
}

// reschedule supersedes any in-flight timer: the previous id is marked
// ignored rather than pulled out of the heap (§4.3), and a new one is
// scheduled delay in the future.
func (q *Quiescer) reschedule() {
	q.mu.Lock()

	id := q.nextID
	q.nextID++ // wraps on overflow; ignore-set membership does not depend on ordering

	q.pending = append(q.pending, scheduleAction{schedule: true, id: id, fireAt: time.Now().Add(q.delay)})

	if q.hasActive {
		q.pending = append(q.pending, scheduleAction{schedule: false, id: q.activeID})
	}

	q.hasActive = true
	q.activeID = id

	q.mu.Unlock()
	q.cond.Broadcast()
}

func (q *Quiescer) stop() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// worker is the single thread that owns the heap and ignore-set. It drains
// the action queue, fires every due, non-ignored entry, and otherwise blocks
// on the condition variable until the earliest pending deadline or a new
// action arrives (§4.3: "wait-timeout equal to time until the earliest
// non-ignored entry, or unbounded when empty").
func (q *Quiescer) worker() {
	q.mu.Lock()
	defer q.mu.Unlock()

	for {
		q.drainPending()

		if q.closed && q.heap.Len() == 0 {
			return
		}

		fired := q.popDue()
		if fired {
			q.hasActive = false

			q.mu.Unlock()
			q.bus.Publish(bus.RescanRequestEvent())
			q.mu.Lock()

			continue
		}

		if q.closed {
			return
		}

		if q.heap.Len() == 0 {
			q.cond.Wait()
			continue
		}

		q.waitUntil(q.heap[0].fireAt)
	}
}

func (q *Quiescer) drainPending() {
	for _, a := range q.pending {
		if a.schedule {
			heap.Push(&q.heap, entry{fireAt: a.fireAt, id: a.id})
		} else {
			q.ignored[a.id] = struct{}{}
		}
	}

	q.pending = q.pending[:0]
}

// popDue pops every entry whose fire time has arrived, dropping ignored ones,
// and reports whether a non-ignored entry fired.
func (q *Quiescer) popDue() bool {
	now := time.Now()
	fired := false

	for q.heap.Len() > 0 && !q.heap[0].fireAt.After(now) {
		e := heap.Pop(&q.heap).(entry)

		if _, ok := q.ignored[e.id]; ok {
			delete(q.ignored, e.id)
			continue
		}

		fired = true
	}

	return fired
}

// waitUntil blocks the worker (lock held) until `deadline` or the next
// Broadcast, whichever comes first. Waking early and finding nothing due is
// harmless: the loop simply recomputes.
func (q *Quiescer) waitUntil(deadline time.Time) {
	wait := time.Until(deadline)
	if wait <= 0 {
		return
	}

	timer := time.AfterFunc(wait, func() {
		q.cond.Broadcast()
	})

	q.cond.Wait()
	timer.Stop()
}
