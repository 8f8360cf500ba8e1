package printing

import (
	"container/heap"
	"sync"
	"time"
)

// attempt is a print job waiting for its next try.
type attempt struct {
	Due      time.Time
	Job      Job
	Attempts int
	LastErr  string
}

// Queue is a priority queue of attempts ordered by due time
type Queue struct {
	attempts []*attempt
	mutex    sync.Mutex
}

// attemptHeap implements heap.Interface and holds attempts
type attemptHeap []*attempt

func (h attemptHeap) Len() int           { return len(h) }
func (h attemptHeap) Less(i, j int) bool { return h[i].Due.Before(h[j].Due) }
func (h attemptHeap) Swap(i, j int)      { h[i], h[j] = h[j], h[i] }

func (h *attemptHeap) Push(x interface{}) {
	*h = append(*h, x.(*attempt))
}

func (h *attemptHeap) Pop() interface{} {
	old := *h
	n := len(old)
	x := old[n-1]
	*h = old[0 : n-1]
	return x
}

func NewQueue() *Queue {
	return &Queue{attempts: make([]*attempt, 0)}
}

func (q *Queue) Enqueue(a *attempt) {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	heap.Push((*attemptHeap)(&q.attempts), a)
}

// Peek returns the earliest attempt without removing it
func (q *Queue) Peek() *attempt {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	if len(q.attempts) == 0 {
		return nil
	}
	return q.attempts[0]
}

func (q *Queue) Len() int {
	q.mutex.Lock()
	defer q.mutex.Unlock()
	return len(q.attempts)
}

// DequeueDue removes and returns up to maxBatchSize attempts due at or
// before now, earliest first.
func (q *Queue) DequeueDue(now time.Time, maxBatchSize int) []*attempt {
	q.mutex.Lock()
	defer q.mutex.Unlock()

	var batch []*attempt
	for len(q.attempts) > 0 && len(batch) < maxBatchSize && !q.attempts[0].Due.After(now) {
		batch = append(batch, heap.Pop((*attemptHeap)(&q.attempts)).(*attempt))
	}
	return batch
}
