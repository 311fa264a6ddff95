// Package queue implements the task-admission priority queue: a max-heap
// over pending task IDs ordered by priority, then insertion time, then ID.
package queue

import (
	"container/heap"
	"time"

	"github.com/muhammad1505/idm-open/internal/task"
)

// Item is one pending admission request.
type Item struct {
	TaskID     task.ID
	Priority   int32
	InsertedAt int64
}

// NewItem stamps the current time as InsertedAt.
func NewItem(id task.ID, priority int32) Item {
	return Item{TaskID: id, Priority: priority, InsertedAt: time.Now().Unix()}
}

// less reports whether a dequeues before b: higher priority first, then
// older insertion time, then lower task ID, for determinism.
func less(a, b Item) bool {
	if a.Priority != b.Priority {
		return a.Priority > b.Priority
	}
	if a.InsertedAt != b.InsertedAt {
		return a.InsertedAt < b.InsertedAt
	}
	return lessID(a.TaskID, b.TaskID)
}

func lessID(a, b task.ID) bool {
	for i := range a {
		if a[i] != b[i] {
			return a[i] < b[i]
		}
	}
	return false
}

type itemHeap []Item

func (h itemHeap) Len() int            { return len(h) }
func (h itemHeap) Less(i, j int) bool  { return less(h[i], h[j]) }
func (h itemHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *itemHeap) Push(x any)         { *h = append(*h, x.(Item)) }
func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// Queue is a priority+FIFO admission queue, safe for use by a single owner
// (the engine serializes access behind its own mutex).
type Queue struct {
	heap itemHeap
}

// New returns an empty queue.
func New() *Queue {
	q := &Queue{heap: itemHeap{}}
	heap.Init(&q.heap)
	return q
}

// Push inserts item, preserving heap order.
func (q *Queue) Push(item Item) {
	heap.Push(&q.heap, item)
}

// Pop removes and returns the highest-priority item, or false if empty.
func (q *Queue) Pop() (Item, bool) {
	if q.heap.Len() == 0 {
		return Item{}, false
	}
	return heap.Pop(&q.heap).(Item), true
}

// Len reports the number of pending items.
func (q *Queue) Len() int {
	return q.heap.Len()
}

// IsEmpty reports whether the queue holds no items.
func (q *Queue) IsEmpty() bool {
	return q.heap.Len() == 0
}
