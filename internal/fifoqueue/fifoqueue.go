package fifoqueue

import (
	"fmt"
	mathbits "math/bits"

	"github.com/ef-ds/deque"
)

// FifoQueue is a FIFO queue with an optional max capacity and a length
// observer. Elements pushed beyond the capacity are dropped and reported by
// Push. By default the capacity is the largest `int` value.
//
// The queue is NOT concurrency safe: it belongs to the single goroutine that
// drives its owner.
type FifoQueue[T any] struct {
	queue          deque.Deque
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// ConstructorOption is an optional argument of NewFifoQueue.
type ConstructorOption func(*config) error

type config struct {
	maxCapacity    int
	lengthObserver QueueLengthObserver
}

// QueueLengthObserver is called with the new length every time it changes.
// It must be non-blocking.
type QueueLengthObserver func(int)

// WithCapacity sets the max number of elements the queue can hold.
func WithCapacity(capacity int) ConstructorOption {
	return func(c *config) error {
		if capacity < 1 {
			return fmt.Errorf("capacity for fifo queue must be positive")
		}
		c.maxCapacity = capacity
		return nil
	}
}

// WithLengthObserver registers the callback invoked on length changes.
func WithLengthObserver(callback QueueLengthObserver) ConstructorOption {
	return func(c *config) error {
		if callback == nil {
			return fmt.Errorf("nil is not a valid QueueLengthObserver")
		}
		c.lengthObserver = callback
		return nil
	}
}

func NewFifoQueue[T any](options ...ConstructorOption) (*FifoQueue[T], error) {
	c := config{
		maxCapacity:    1<<(mathbits.UintSize-1) - 1,
		lengthObserver: func(int) { /* noop */ },
	}
	for _, opt := range options {
		if err := opt(&c); err != nil {
			return nil, fmt.Errorf("failed to apply constructor option to fifo queue: %w", err)
		}
	}
	return &FifoQueue[T]{
		maxCapacity:    c.maxCapacity,
		lengthObserver: c.lengthObserver,
	}, nil
}

// Push appends the element to the tail of the queue. It returns false if the
// queue is full and the element was dropped.
func (q *FifoQueue[T]) Push(element T) bool {
	if q.queue.Len() >= q.maxCapacity {
		return false
	}
	q.queue.PushBack(element)
	q.lengthObserver(q.queue.Len())
	return true
}

// PushAll pushes the elements in order and returns how many were dropped.
func (q *FifoQueue[T]) PushAll(elements []T) (dropped int) {
	for _, e := range elements {
		if !q.Push(e) {
			dropped++
		}
	}
	return dropped
}

// Front peeks at the head of the queue without removing it.
func (q *FifoQueue[T]) Front() (T, bool) {
	v, ok := q.queue.Front()
	if !ok {
		var zero T
		return zero, false
	}
	return v.(T), true
}

// Pop removes and returns the head of the queue.
func (q *FifoQueue[T]) Pop() (T, bool) {
	v, ok := q.queue.PopFront()
	if !ok {
		var zero T
		return zero, false
	}
	q.lengthObserver(q.queue.Len())
	return v.(T), true
}

func (q *FifoQueue[T]) Len() int {
	return q.queue.Len()
}
