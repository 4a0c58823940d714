// Package queue provides a small generic FIFO used to buffer audio
// chunks between the capture callback and finalization.
package queue

// Queue is a generic FIFO queue.
type Queue[T any] struct {
	items []T
}

// New creates an empty queue.
func New[T any]() *Queue[T] {
	return &Queue[T]{}
}

// Enqueue appends an element.
func (q *Queue[T]) Enqueue(item T) {
	q.items = append(q.items, item)
}

// Dequeue removes and returns the front element; the boolean is false
// when the queue was empty.
func (q *Queue[T]) Dequeue() (T, bool) {
	if len(q.items) == 0 {
		var zero T
		return zero, false
	}
	item := q.items[0]
	q.items = q.items[1:]
	return item, true
}

// Drain removes and returns all queued elements in order.
func (q *Queue[T]) Drain() []T {
	out := q.items
	q.items = nil
	return out
}

// Len returns the number of queued elements.
func (q *Queue[T]) Len() int {
	return len(q.items)
}
