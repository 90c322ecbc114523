// Package lfq provides a bounded multi-producer multi-consumer FIFO queue.
//
// The queue is a ring of cells, each carrying a sequence counter. A producer
// claims the enqueue position with a CAS once the cell's sequence equals the
// position, stores the item and publishes it by advancing the sequence to
// pos+1. A consumer claims the dequeue position once the sequence equals pos+1,
// takes the item and frees the cell by advancing the sequence to pos+cap.
// Neither side ever blocks: Push reports false when the ring is full and Pop
// reports false when it is empty.
//
//	q := lfq.New[string](128)
//	if !q.Push("peek 0x100 4\r\n") {
//	    // full: drop or retry later
//	}
//	line, ok := q.Pop()
package lfq

import (
	"sync/atomic"
)

// DefaultCapacity is used by callers that do not configure a size.
const DefaultCapacity = 128

const cacheLine = 64

type cell[T any] struct {
	seq  atomic.Uint64
	item T
}

type paddedPos struct {
	v atomic.Uint64
	_ [cacheLine - 8]byte
}

// Queue is a fixed-capacity lock-free FIFO. The zero value is not usable;
// construct with New.
type Queue[T any] struct {
	_     [cacheLine]byte
	enq   paddedPos
	deq   paddedPos
	cells []cell[T]
	size  uint64
}

// New returns a queue holding at most capacity items. It panics when
// capacity is not positive.
func New[T any](capacity int) *Queue[T] {
	if capacity <= 0 {
		panic("lfq: capacity must be positive")
	}
	q := &Queue[T]{
		cells: make([]cell[T], capacity),
		size:  uint64(capacity),
	}
	for i := range q.cells {
		q.cells[i].seq.Store(uint64(i))
	}
	return q
}

// Push appends item. It returns false without blocking when the queue is full.
func (q *Queue[T]) Push(item T) bool {
	pos := q.enq.v.Load()
	for {
		c := &q.cells[pos%q.size]
		seq := c.seq.Load()
		switch diff := int64(seq - pos); {
		case diff == 0:
			if q.enq.v.CompareAndSwap(pos, pos+1) {
				c.item = item
				c.seq.Store(pos + 1)
				return true
			}
			pos = q.enq.v.Load()
		case diff < 0:
			return false
		default:
			pos = q.enq.v.Load()
		}
	}
}

// Pop removes the oldest item. It returns false without blocking when the
// queue is empty.
func (q *Queue[T]) Pop() (T, bool) {
	var zero T
	pos := q.deq.v.Load()
	for {
		c := &q.cells[pos%q.size]
		seq := c.seq.Load()
		switch diff := int64(seq - (pos + 1)); {
		case diff == 0:
			if q.deq.v.CompareAndSwap(pos, pos+1) {
				item := c.item
				c.item = zero
				c.seq.Store(pos + q.size)
				return item, true
			}
			pos = q.deq.v.Load()
		case diff < 0:
			return zero, false
		default:
			pos = q.deq.v.Load()
		}
	}
}

// Clear pops until the queue reports empty. Items pushed concurrently may
// survive the call.
func (q *Queue[T]) Clear() {
	for {
		if _, ok := q.Pop(); !ok {
			return
		}
	}
}

// Empty is advisory: the answer may be stale by the time it is used.
func (q *Queue[T]) Empty() bool {
	pos := q.deq.v.Load()
	return int64(q.cells[pos%q.size].seq.Load()-(pos+1)) < 0
}

// Full is advisory: the answer may be stale by the time it is used.
func (q *Queue[T]) Full() bool {
	pos := q.enq.v.Load()
	return int64(q.cells[pos%q.size].seq.Load()-pos) < 0
}

// Len approximates the number of queued items.
func (q *Queue[T]) Len() int {
	enq := q.enq.v.Load()
	deq := q.deq.v.Load()
	if enq <= deq {
		return 0
	}
	n := enq - deq
	if n > q.size {
		n = q.size
	}
	return int(n)
}

// Cap returns the fixed capacity.
func (q *Queue[T]) Cap() int { return int(q.size) }
