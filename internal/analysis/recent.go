package analysis

import "sync"

// RecentBuffer keeps the last N analyses in memory for the HTTP surface.
// Oldest entries are overwritten; nothing is ever persisted.
type RecentBuffer struct {
	mu      sync.Mutex
	entries []*TokenAnalysis
	next    int
	full    bool
}

// NewRecentBuffer creates a ring holding up to size analyses.
func NewRecentBuffer(size int) *RecentBuffer {
	if size < 1 {
		size = 1
	}
	return &RecentBuffer{entries: make([]*TokenAnalysis, size)}
}

// Add records an analysis, overwriting the oldest when full.
func (b *RecentBuffer) Add(ta *TokenAnalysis) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.entries[b.next] = ta
	b.next = (b.next + 1) % len(b.entries)
	if b.next == 0 {
		b.full = true
	}
}

// List returns the stored analyses, newest first.
func (b *RecentBuffer) List() []*TokenAnalysis {
	b.mu.Lock()
	defer b.mu.Unlock()

	size := b.next
	if b.full {
		size = len(b.entries)
	}
	out := make([]*TokenAnalysis, 0, size)
	for i := 1; i <= size; i++ {
		idx := (b.next - i + len(b.entries)) % len(b.entries)
		out = append(out, b.entries[idx])
	}
	return out
}

// Len returns the number of stored analyses.
func (b *RecentBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.full {
		return len(b.entries)
	}
	return b.next
}
