package pipeline

import (
	"sync"
	"sync/atomic"

	"github.com/mintsentry/mintsentry/internal/solana"
)

// State is the shared detection state owned jointly by the listener and the
// worker: the processed-signature set plus running counters. It is an
// explicit, injectable object so tests can reset it; nothing here is a
// package-level singleton.
type State struct {
	mu    sync.Mutex
	seen  map[solana.Signature]struct{}
	order []solana.Signature // FIFO eviction order
	cap   int

	// Counters.
	notifications atomic.Int64 // raw stream messages inspected
	duplicates    atomic.Int64 // suppressed by the processed set
	detections    atomic.Int64 // classified as creation events
	queueDrops    atomic.Int64 // rejected by a full queue
	analyses      atomic.Int64 // analyses completed
	analysisFails atomic.Int64 // analyses aborted (bad identity, resolver failure)
}

// defaultProcessedCap bounds the processed set; above it the oldest
// signatures are evicted. Replayed notifications older than the window can
// re-enter, which is the documented trade-off of a bounded set.
const defaultProcessedCap = 100_000

// NewState creates detection state with the given processed-set bound
// (0 = default).
func NewState(processedCap int) *State {
	if processedCap <= 0 {
		processedCap = defaultProcessedCap
	}
	return &State{
		seen: make(map[solana.Signature]struct{}),
		cap:  processedCap,
	}
}

// MarkProcessed records a signature. Returns false if it was already known.
func (s *State) MarkProcessed(sig solana.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.seen[sig]; ok {
		return false
	}
	if len(s.order) >= s.cap {
		oldest := s.order[0]
		s.order = s.order[1:]
		delete(s.seen, oldest)
	}
	s.seen[sig] = struct{}{}
	s.order = append(s.order, sig)
	return true
}

// Seen reports whether a signature is in the processed set.
func (s *State) Seen(sig solana.Signature) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.seen[sig]
	return ok
}

// Reset clears the processed set and all counters.
func (s *State) Reset() {
	s.mu.Lock()
	s.seen = make(map[solana.Signature]struct{})
	s.order = nil
	s.mu.Unlock()
	s.notifications.Store(0)
	s.duplicates.Store(0)
	s.detections.Store(0)
	s.queueDrops.Store(0)
	s.analyses.Store(0)
	s.analysisFails.Store(0)
}

// StateStats is a snapshot of the pipeline counters.
type StateStats struct {
	ProcessedSetSize int   `json:"processed_set_size"`
	Notifications    int64 `json:"notifications"`
	Duplicates       int64 `json:"duplicates"`
	Detections       int64 `json:"detections"`
	QueueDrops       int64 `json:"queue_drops"`
	Analyses         int64 `json:"analyses"`
	AnalysisFails    int64 `json:"analysis_fails"`
}

// Stats returns a snapshot of the counters.
func (s *State) Stats() StateStats {
	s.mu.Lock()
	size := len(s.seen)
	s.mu.Unlock()
	return StateStats{
		ProcessedSetSize: size,
		Notifications:    s.notifications.Load(),
		Duplicates:       s.duplicates.Load(),
		Detections:       s.detections.Load(),
		QueueDrops:       s.queueDrops.Load(),
		Analyses:         s.analyses.Load(),
		AnalysisFails:    s.analysisFails.Load(),
	}
}
