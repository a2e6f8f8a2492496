package sink

import (
	"runtime"
	"sync"
	"sync/atomic"
)

// node is a single element of the queue
type node[T interface{}] struct {
	value *T
	next  atomic.Pointer[node[T]]
}

// mpscQueue is an unbounded lock-free multi-producer single-consumer queue.
// Producers append with CAS on the tail, the single consumer goroutine
// hands every item to the deliver function.
//
// Under concurrent pushes the order is the order in which the CAS succeeded,
// items pushed by one goroutine are always delivered in push order.
type mpscQueue[T interface{}] struct {
	head     atomic.Pointer[node[T]]
	tail     atomic.Pointer[node[T]]
	deliver  func(*T)
	consumer sync.WaitGroup
	closed   atomic.Bool

	// cond is used by the consumer to sleep while the queue is empty
	mu   sync.Mutex
	cond *sync.Cond
}

// newMPSCQueue creates the queue and starts its consumer goroutine
func newMPSCQueue[T interface{}](deliver func(*T)) *mpscQueue[T] {
	sentinel := &node[T]{}

	q := &mpscQueue[T]{
		deliver: deliver,
	}
	q.cond = sync.NewCond(&q.mu)
	q.head.Store(sentinel)
	q.tail.Store(sentinel)

	q.consumer.Add(1)
	go q.consume()

	return q
}

// push appends value. Returns false if value is nil or the queue is closed.
func (q *mpscQueue[T]) push(value *T) bool {
	if value == nil || q.closed.Load() {
		return false
	}

	newNode := &node[T]{value: value}
	var backoff uint8 = 0

	for {
		tailNode := q.tail.Load()
		next := tailNode.next.Load()
		if next == nil {
			if tailNode.next.CompareAndSwap(nil, newNode) {
				// another producer may already have advanced the tail, that's fine
				q.tail.CompareAndSwap(tailNode, newNode)
				q.wake()
				return true
			}
		} else {
			// help a producer that appended but did not move the tail yet
			q.tail.CompareAndSwap(tailNode, next)
		}

		// spin at low contention, yield at high contention
		if backoff < 10 {
			backoff++
			for i := 0; i < 1<<backoff; i++ {
				runtime.Gosched()
			}
		}
		runtime.Gosched()
	}
}

// wake signals the consumer. The lock is held so the signal cannot fall
// between the consumers emptiness check and its Wait.
func (q *mpscQueue[T]) wake() {
	q.mu.Lock()
	q.cond.Signal()
	q.mu.Unlock()
}

// consume delivers items until the queue is closed and drained
func (q *mpscQueue[T]) consume() {
	defer q.consumer.Done()

	for {
		hasItems := false

		for {
			head := q.head.Load()
			next := head.next.Load()
			if next == nil {
				break
			}
			hasItems = true

			value := next.value
			q.head.Store(next)
			q.deliver(value)

			// help go gc
			next.value = nil
		}

		if !hasItems && q.closed.Load() {
			return
		}

		if !hasItems {
			q.mu.Lock()
			if q.head.Load().next.Load() == nil && !q.closed.Load() {
				q.cond.Wait()
			}
			q.mu.Unlock()
		}
	}
}

// close stops accepting items and blocks until every queued item was delivered
func (q *mpscQueue[T]) close() {
	if !q.closed.CompareAndSwap(false, true) {
		return
	}
	q.wake()
	q.consumer.Wait()
}

// size returns an approximate number of queued items. O(n), debugging only.
func (q *mpscQueue[T]) size() int {
	count := 0
	current := q.head.Load()
	for {
		next := current.next.Load()
		if next == nil {
			break
		}
		count++
		current = next
	}
	return count
}
