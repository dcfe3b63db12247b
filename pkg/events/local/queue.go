package local

import (
	"context"
	"sync"

	"github.com/veesix-networks/aasbus/pkg/events"
)

// OverflowPolicy decides what a bounded queue does with a publish that finds
// it full. It has no effect on an unbounded queue.
type OverflowPolicy int

const (
	OverflowBlock OverflowPolicy = iota
	OverflowReject
)

func (p OverflowPolicy) String() string {
	switch p {
	case OverflowBlock:
		return "block"
	case OverflowReject:
		return "reject"
	default:
		return "unknown"
	}
}

func ParseOverflowPolicy(s string) (OverflowPolicy, bool) {
	switch s {
	case "", "block":
		return OverflowBlock, true
	case "reject":
		return OverflowReject, true
	default:
		return OverflowBlock, false
	}
}

// queue is a FIFO with many producers and exactly one consumer. capacity 0
// means unbounded.
type queue struct {
	mu       sync.Mutex
	notEmpty *sync.Cond
	items    []*events.Message
	head     int
	capacity int
	policy   OverflowPolicy
	halted   bool

	// reports whether the caller is the consumer; a full queue never blocks
	// its own consumer
	consumer func() bool

	// closed and replaced whenever a slot frees up, waking blocked producers
	space chan struct{}
}

func newQueue(capacity int, policy OverflowPolicy) *queue {
	if capacity < 0 {
		capacity = 0
	}
	q := &queue{
		capacity: capacity,
		policy:   policy,
		space:    make(chan struct{}),
	}
	q.notEmpty = sync.NewCond(&q.mu)
	return q
}

func (q *queue) lenLocked() int {
	return len(q.items) - q.head
}

func (q *queue) len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.lenLocked()
}

// push appends msg. On a full bounded queue it either fails with
// ErrQueueFull or waits for space until ctx is done or the queue is halted.
// The consumer itself is never made to wait: its push goes over capacity.
func (q *queue) push(ctx context.Context, msg *events.Message) error {
	for {
		q.mu.Lock()
		if q.capacity == 0 || q.lenLocked() < q.capacity {
			q.appendLocked(msg)
			return nil
		}
		if q.policy == OverflowReject {
			q.mu.Unlock()
			return events.ErrQueueFull
		}
		if q.halted {
			q.mu.Unlock()
			return events.ErrBusClosed
		}
		if q.consumer != nil && q.consumer() {
			q.appendLocked(msg)
			return nil
		}
		wait := q.space
		q.mu.Unlock()

		select {
		case <-wait:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// appendLocked adds msg and releases q.mu.
func (q *queue) appendLocked(msg *events.Message) {
	q.items = append(q.items, msg)
	q.mu.Unlock()
	q.notEmpty.Signal()
}

// pop blocks until a message is available or the queue is halted. ok is
// false only when halted.
func (q *queue) pop() (*events.Message, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.lenLocked() == 0 && !q.halted {
		q.notEmpty.Wait()
	}
	if q.halted {
		return nil, false
	}

	msg := q.items[q.head]
	q.items[q.head] = nil
	q.head++
	if q.head == len(q.items) {
		q.items = q.items[:0]
		q.head = 0
	} else if q.head > 1024 && q.head*2 > len(q.items) {
		q.items = append(q.items[:0:0], q.items[q.head:]...)
		q.head = 0
	}

	if q.capacity > 0 {
		close(q.space)
		q.space = make(chan struct{})
	}
	return msg, true
}

// halt makes pop return immediately, even with messages pending, and fails
// producers waiting for space with ErrBusClosed.
func (q *queue) halt() {
	q.mu.Lock()
	q.halted = true
	if q.capacity > 0 {
		close(q.space)
		q.space = make(chan struct{})
	}
	q.mu.Unlock()
	q.notEmpty.Broadcast()
}

func (q *queue) resume() {
	q.mu.Lock()
	q.halted = false
	q.mu.Unlock()
}

// drain drops every pending message and returns how many were dropped.
func (q *queue) drain() int {
	q.mu.Lock()
	defer q.mu.Unlock()

	n := q.lenLocked()
	q.items = nil
	q.head = 0
	if n > 0 && q.capacity > 0 {
		close(q.space)
		q.space = make(chan struct{})
	}
	return n
}
