package pipeline

import (
	"sync"
	"sync/atomic"

	log "github.com/echocat/slf4g"

	"github.com/sweeney/jawtalk/internal/logic"
)

// DefaultQueueCapacity holds a few seconds of readings at typical sample rates.
const DefaultQueueCapacity = 256

// Queue is a fixed-capacity FIFO between the acquisition goroutine and the
// single pipeline consumer. Push never blocks: when full, the oldest reading
// is overwritten and counted as dropped.
type Queue struct {
	mu       sync.Mutex
	buf      []logic.Reading
	capacity int
	head     int // next write position
	count    int
	overflow bool // true if any reading was dropped since last drain

	dropped atomic.Uint64
	ready   chan struct{}
}

// NewQueue creates a Queue. Capacities below one are raised to one.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		buf:      make([]logic.Reading, capacity),
		capacity: capacity,
		ready:    make(chan struct{}, 1),
	}
}

// Push appends r and reports whether an older reading was dropped to make room.
func (q *Queue) Push(r logic.Reading) bool {
	q.mu.Lock()
	dropped := false
	if q.count == q.capacity {
		if !q.overflow {
			log.With("capacity", q.capacity).Warn("Reading queue full, dropping oldest.")
			q.overflow = true
		}
		// Overwrite oldest: head is already pointing at it
		q.buf[q.head] = r
		q.head = (q.head + 1) % q.capacity
		q.dropped.Add(1)
		dropped = true
	} else {
		q.buf[q.head] = r
		q.head = (q.head + 1) % q.capacity
		q.count++
	}
	q.mu.Unlock()

	select {
	case q.ready <- struct{}{}:
	default:
	}
	return dropped
}

// Ready is signalled after pushes. One signal may cover many readings, so
// consumers should Drain when it fires.
func (q *Queue) Ready() <-chan struct{} {
	return q.ready
}

// Drain removes and returns all queued readings, oldest first.
func (q *Queue) Drain() []logic.Reading {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.count == 0 {
		return nil
	}
	result := make([]logic.Reading, q.count)
	// Oldest item is at (head - count) mod capacity
	start := (q.head - q.count + q.capacity) % q.capacity
	for i := 0; i < q.count; i++ {
		result[i] = q.buf[(start+i)%q.capacity]
	}
	q.count = 0
	q.head = 0
	q.overflow = false
	return result
}

// Len returns the number of queued readings.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

// Capacity returns the queue's fixed size.
func (q *Queue) Capacity() int {
	return q.capacity
}

// Dropped returns how many readings were discarded under backpressure.
func (q *Queue) Dropped() uint64 {
	return q.dropped.Load()
}
