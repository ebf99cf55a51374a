// Package bundlemgr implements the bundle manager of §4.12: a
// priority queue over Opportunities keyed by (priority, profit_per_gas,
// discovery_time), a simulate-then-submit pipeline, and a per-bundle
// lifecycle tracker. The heap discipline is adapted from the
// teacher's pkg/queue/priority_queue.go (gas-price max-heap over
// transactions); here the ordering key is an Opportunity's priority
// tuple instead of raw gas price.
package bundlemgr

import (
	"container/heap"
	"sync"
	"time"

	"github.com/mev-engine/mev-searcher/pkg/types"
)

var priorityRank = map[types.Priority]int{
	types.PriorityUrgent: 3,
	types.PriorityHigh:   2,
	types.PriorityMedium: 1,
	types.PriorityLow:    0,
}

// opportunityHeap orders Opportunities by (priority desc, profit_per_gas
// desc, discovery_time asc) — the same "compare primary, break tie on
// secondary, then FIFO" shape as the teacher's TransactionHeap.
type opportunityHeap []*types.Opportunity

func (h opportunityHeap) Len() int { return len(h) }

func (h opportunityHeap) Less(i, j int) bool {
	pi, pj := priorityRank[h[i].Priority], priorityRank[h[j].Priority]
	if pi != pj {
		return pi > pj
	}
	ppgCmp := h[i].ProfitPerGas().Cmp(h[j].ProfitPerGas())
	if ppgCmp != 0 {
		return ppgCmp > 0
	}
	return h[i].Timestamp.Before(h[j].Timestamp)
}

func (h opportunityHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *opportunityHeap) Push(x interface{}) {
	*h = append(*h, x.(*types.Opportunity))
}

func (h *opportunityHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a thread-safe priority queue over Opportunities, enforcing
// the §4.12 dedupe guarantee: at most one in-flight opportunity per
// (strategy, target block, key).
type Queue struct {
	mu       sync.Mutex
	heap     opportunityHeap
	inFlight map[string]bool
}

// NewQueue builds an empty Queue.
func NewQueue() *Queue {
	q := &Queue{inFlight: make(map[string]bool)}
	heap.Init(&q.heap)
	return q
}

// Push enqueues opp unless an opportunity with the same dedupeKey is
// already in flight.
func (q *Queue) Push(opp *types.Opportunity, dedupeKey string) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.inFlight[dedupeKey] {
		return false
	}
	q.inFlight[dedupeKey] = true
	heap.Push(&q.heap, opp)
	return true
}

// Pop removes and returns the highest-priority Opportunity, or nil if
// the queue is empty.
func (q *Queue) Pop() *types.Opportunity {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.heap.Len() == 0 {
		return nil
	}
	return heap.Pop(&q.heap).(*types.Opportunity)
}

// Release clears the in-flight marker for dedupeKey once the bundle
// reaches a terminal state (included, missed, or reverted).
func (q *Queue) Release(dedupeKey string) {
	q.mu.Lock()
	defer q.mu.Unlock()
	delete(q.inFlight, dedupeKey)
}

// Len reports the number of queued (not yet dequeued) opportunities.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.heap.Len()
}

// DropStale removes and discards queued opportunities that have
// expired before a bundle could be built for them.
func (q *Queue) DropStale(currentBlock uint64, now time.Time) int {
	q.mu.Lock()
	defer q.mu.Unlock()

	kept := q.heap[:0]
	dropped := 0
	for _, opp := range q.heap {
		if opp.IsExpired(currentBlock, now) {
			dropped++
			continue
		}
		kept = append(kept, opp)
	}
	q.heap = kept
	heap.Init(&q.heap)
	return dropped
}
