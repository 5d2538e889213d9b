package pipeline

import (
	"context"
	"strings"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Detection Listener — classifies stream notifications and feeds the queue
// ---------------------------------------------------------------------------

// ListenerConfig configures the detection listener.
type ListenerConfig struct {
	// Markers whose presence identifies a token-creation transaction.
	CreationMarkers []string `yaml:"creation_markers"`
	// Markers whose presence marks a transaction as noise (swaps, transfers,
	// burns) even when a creation marker also appears.
	NoiseMarkers []string `yaml:"noise_markers"`
}

// DefaultListenerConfig returns markers for SPL token mint creation.
func DefaultListenerConfig() ListenerConfig {
	return ListenerConfig{
		CreationMarkers: []string{
			"Instruction: InitializeMint",
			"Instruction: InitializeMint2",
		},
		NoiseMarkers: []string{
			"Instruction: Swap",
			"Instruction: Transfer",
			"Instruction: Burn",
		},
	}
}

// Listener consumes raw log events, deduplicates by signature, classifies
// creation transactions, and enqueues detection events. It never blocks:
// a full queue means the detection is dropped and counted.
type Listener struct {
	config ListenerConfig
	state  *State
	queue  *Queue
}

// NewListener creates a detection listener over shared state and queue.
func NewListener(config ListenerConfig, state *State, queue *Queue) *Listener {
	return &Listener{
		config: config,
		state:  state,
		queue:  queue,
	}
}

// Run consumes events until the channel closes or ctx is cancelled.
func (l *Listener) Run(ctx context.Context, events <-chan solana.LogEvent) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				log.Info().Msg("listener: stream closed")
				return
			}
			l.Handle(ev)
		}
	}
}

// Handle processes a single notification.
func (l *Listener) Handle(ev solana.LogEvent) {
	l.state.notifications.Add(1)

	if ev.Signature == "" {
		return
	}

	// Dedup first: replayed notifications after a reconnect are common.
	if l.state.Seen(ev.Signature) {
		l.state.duplicates.Add(1)
		return
	}

	if !l.IsCreationEvent(ev.Logs) {
		return
	}

	l.state.MarkProcessed(ev.Signature)
	l.state.detections.Add(1)

	detection := DetectionEvent{
		Signature:  ev.Signature,
		Slot:       ev.Slot,
		DetectedAt: ev.DetectedAt,
		Logs:       ev.Logs,
		Mint:       extractMint(ev.Logs),
	}

	if !l.queue.Enqueue(detection) {
		l.state.queueDrops.Add(1)
		log.Warn().
			Str("sig", shortSig(ev.Signature)).
			Int("queue_len", l.queue.Len()).
			Msg("listener: queue full, detection dropped")
		return
	}

	log.Info().
		Str("sig", shortSig(ev.Signature)).
		Uint64("slot", ev.Slot).
		Int("queue_len", l.queue.Len()).
		Msg("listener: NEW TOKEN DETECTED")
}

// IsCreationEvent checks logs for a creation marker with no noise markers.
func (l *Listener) IsCreationEvent(logs []string) bool {
	hasCreation := false
	for _, line := range logs {
		for _, noise := range l.config.NoiseMarkers {
			if strings.Contains(line, noise) {
				return false
			}
		}
		for _, marker := range l.config.CreationMarkers {
			if strings.Contains(line, marker) {
				hasCreation = true
			}
		}
	}
	return hasCreation
}

// extractMint scans log lines for an explicit mint mention. Many token
// programs log the new mint as "mint=<base58>" or "Mint: <base58>"; when
// absent the worker resolves it from the transaction instead.
func extractMint(logs []string) solana.Pubkey {
	for _, line := range logs {
		for _, prefix := range []string{"mint=", "Mint: ", "mint: "} {
			idx := strings.Index(line, prefix)
			if idx < 0 {
				continue
			}
			rest := line[idx+len(prefix):]
			if end := strings.IndexAny(rest, " \t,"); end >= 0 {
				rest = rest[:end]
			}
			candidate := solana.Pubkey(rest)
			if solana.ValidateMint(candidate) == nil {
				return candidate
			}
		}
	}
	return ""
}

func shortSig(sig solana.Signature) string {
	s := string(sig)
	if len(s) > 12 {
		return s[:12]
	}
	return s
}
