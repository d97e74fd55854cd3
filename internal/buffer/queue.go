// Package buffer provides the growable outbound queue that sits between a
// room's actor goroutine and a connection's writer goroutine. Producers
// never block: the queue doubles its ring once it is 70% full.
package buffer

import "sync"

// Queue is a thread-safe FIFO with any number of producers and one
// consumer.
type Queue[T any] struct {
	mu     sync.Mutex
	cond   *sync.Cond
	ring   []T
	head   int
	count  int
	closed bool

	pushed  int64
	popped  int64
	resizes int
}

// NewQueue creates a queue with the given initial capacity.
func NewQueue[T any](initialCapacity int) *Queue[T] {
	if initialCapacity < 2 {
		initialCapacity = 2
	}
	q := &Queue[T]{ring: make([]T, initialCapacity)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Push appends item. It reports false once the queue is closed.
func (q *Queue[T]) Push(item T) bool {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return false
	}
	if (q.count+1)*10 >= len(q.ring)*7 {
		q.grow()
	}

	q.ring[(q.head+q.count)%len(q.ring)] = item
	q.count++
	q.pushed++
	q.cond.Signal()
	return true
}

// Pop blocks until an item is available. It returns false when the queue
// is closed and drained.
func (q *Queue[T]) Pop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// TryPop returns the head item without waiting.
func (q *Queue[T]) TryPop() (T, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		var zero T
		return zero, false
	}
	return q.take(), true
}

// PopAll blocks like Pop, then returns every queued item up to max
// (0 means no limit). It returns nil when the queue is closed and drained.
func (q *Queue[T]) PopAll(max int) []T {
	q.mu.Lock()
	defer q.mu.Unlock()

	for q.count == 0 && !q.closed {
		q.cond.Wait()
	}
	n := q.count
	if max > 0 && n > max {
		n = max
	}
	if n == 0 {
		return nil
	}

	items := make([]T, n)
	for i := range items {
		items[i] = q.take()
	}
	return items
}

// Close stops accepting items. Queued items can still be popped.
func (q *Queue[T]) Close() {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.closed = true
	q.cond.Broadcast()
}

func (q *Queue[T]) Closed() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.closed
}

func (q *Queue[T]) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Stats is a point-in-time view of a queue.
type Stats struct {
	Len      int
	Capacity int
	Pushed   int64
	Popped   int64
	Resizes  int
}

func (q *Queue[T]) Stats() Stats {
	q.mu.Lock()
	defer q.mu.Unlock()
	return Stats{
		Len:      q.count,
		Capacity: len(q.ring),
		Pushed:   q.pushed,
		Popped:   q.popped,
		Resizes:  q.resizes,
	}
}

// take must be called with the lock held and count > 0.
func (q *Queue[T]) take() T {
	var zero T
	item := q.ring[q.head]
	q.ring[q.head] = zero
	q.head = (q.head + 1) % len(q.ring)
	q.count--
	q.popped++
	return item
}

// grow must be called with the lock held.
func (q *Queue[T]) grow() {
	ring := make([]T, len(q.ring)*2)
	n := copy(ring, q.ring[q.head:])
	if n < q.count {
		copy(ring[n:], q.ring[:q.count-n])
	}
	q.ring = ring
	q.head = 0
	q.resizes++
}
