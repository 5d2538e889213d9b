package pipeline

import (
	"sync"
	"time"

	"github.com/mintsentry/mintsentry/internal/solana"
)

// DetectionEvent is one candidate token-creation transaction pulled off the
// log stream. Ownership moves from the queue to the worker on dequeue.
type DetectionEvent struct {
	Signature  solana.Signature `json:"signature"`
	Slot       uint64           `json:"slot"`
	DetectedAt time.Time        `json:"detected_at"`
	Logs       []string         `json:"logs"`

	// Mint is set when the listener could extract it from the log lines;
	// otherwise the worker resolves it from the transaction.
	Mint solana.Pubkey `json:"mint,omitempty"`
}

// Queue is a bounded FIFO of detection events. A full queue rejects new
// entries; it never evicts and never blocks the producer. Single producer,
// single consumer; the mutex exists for cross-goroutine visibility.
type Queue struct {
	mu     sync.Mutex
	events []DetectionEvent
	cap    int
}

// NewQueue creates a queue with fixed capacity.
func NewQueue(capacity int) *Queue {
	if capacity < 1 {
		capacity = 1
	}
	return &Queue{
		events: make([]DetectionEvent, 0, capacity),
		cap:    capacity,
	}
}

// Enqueue appends an event. Returns false if the queue is full.
func (q *Queue) Enqueue(ev DetectionEvent) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) >= q.cap {
		return false
	}
	q.events = append(q.events, ev)
	return true
}

// Dequeue removes and returns the oldest event.
func (q *Queue) Dequeue() (DetectionEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return DetectionEvent{}, false
	}
	ev := q.events[0]
	q.events = q.events[1:]
	return ev, true
}

// Peek returns the oldest event without removing it. The age gate inspects
// the head in place: the event never leaves the queue, so a concurrent
// producer can never push the depth past capacity, and the head keeps its
// order against later-enqueued events.
func (q *Queue) Peek() (DetectionEvent, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.events) == 0 {
		return DetectionEvent{}, false
	}
	return q.events[0], true
}

// Len returns the current depth.
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.events)
}

// Cap returns the fixed capacity.
func (q *Queue) Cap() int {
	return q.cap
}
