// Package controlq holds the outbound control-message queue and the single
// writer task that owns the control socket's write side.
package controlq

import (
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/droidcast/droidcast/internal/scrcpy/protocol"
)

const (
	// Soft capacity for droppable messages; non-droppables do not count
	droppableCapacity = 60
	// Extra slots only non-droppable messages may occupy
	reservedSlots = 4
	// Hard ceiling on the queue as a whole
	totalCapacity = droppableCapacity + reservedSlots
)

// ErrQueueFull is returned when the queue is at the hard capacity and holds
// nothing droppable to make room with.
var ErrQueueFull = errors.New("control queue full")

// ErrQueueClosed is returned once the queue has shut down
var ErrQueueClosed = errors.New("control queue closed")

// Queue is a bounded FIFO with a drop policy: a droppable message evicts the
// oldest droppable entry once the droppable count reaches the soft capacity;
// UHID create and destroy messages never evict each other and expand into the
// reserved slots, bounded only by the hard total capacity.
type Queue struct {
	mu        sync.Mutex
	cond      *sync.Cond
	items     []*protocol.ControlMessage
	droppable int
	dropped   uint64
	closed    bool
}

func New() *Queue {
	q := &Queue{}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Enqueue adds a message according to the drop policy
func (q *Queue) Enqueue(m *protocol.ControlMessage) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}

	if m.Droppable() {
		if q.droppable >= droppableCapacity || len(q.items) >= totalCapacity {
			if !q.evictOldestDroppable() {
				return ErrQueueFull
			}
		}
		q.droppable++
	} else if len(q.items) >= totalCapacity {
		if !q.evictOldestDroppable() {
			return ErrQueueFull
		}
	}

	q.items = append(q.items, m)
	q.cond.Signal()
	return nil
}

// evictOldestDroppable removes the first droppable entry, preserving order of
// the rest. Returns false when every entry is non-droppable.
func (q *Queue) evictOldestDroppable() bool {
	for i, item := range q.items {
		if item.Droppable() {
			q.items = append(q.items[:i], q.items[i+1:]...)
			q.droppable--
			q.dropped++
			return true
		}
	}
	return false
}

// Dequeue pops the oldest message, waiting up to timeout. The second return
// is false on timeout or close with an empty queue.
func (q *Queue) Dequeue(timeout time.Duration) (*protocol.ControlMessage, bool) {
	deadline := time.Now().Add(timeout)
	q.mu.Lock()
	defer q.mu.Unlock()

	for len(q.items) == 0 {
		if q.closed {
			return nil, false
		}
		remaining := time.Until(deadline)
		if remaining <= 0 {
			return nil, false
		}
		timer := time.AfterFunc(remaining, q.cond.Broadcast)
		q.cond.Wait()
		timer.Stop()
	}

	m := q.items[0]
	q.items = q.items[1:]
	if m.Droppable() {
		q.droppable--
	}
	return m, true
}

// Len returns the number of queued messages
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Dropped returns how many droppable messages were evicted
func (q *Queue) Dropped() uint64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.dropped
}

// Close wakes all waiters; queued messages can still be drained
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Closed reports whether Close has been called
func (q *Queue) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}
