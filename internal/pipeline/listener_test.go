package pipeline

import (
	"testing"
	"time"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func creationEvent(sig string) solana.LogEvent {
	return solana.LogEvent{
		Signature:  solana.Signature(sig),
		Slot:       100,
		DetectedAt: time.Now(),
		Logs: []string{
			"Program TokenkegQfeZyiNwAJbNbGKPFXCWuBvf9Ss623VQ5DA invoke [1]",
			"Program log: Instruction: InitializeMint",
		},
	}
}

func newTestListener(queueCap int) (*Listener, *State, *Queue) {
	state := NewState(0)
	queue := NewQueue(queueCap)
	return NewListener(DefaultListenerConfig(), state, queue), state, queue
}

func TestListener_CreationEventEnqueued(t *testing.T) {
	l, state, queue := newTestListener(10)

	l.Handle(creationEvent("sig-a"))

	assert.Equal(t, 1, queue.Len())
	stats := state.Stats()
	assert.Equal(t, int64(1), stats.Notifications)
	assert.Equal(t, int64(1), stats.Detections)

	got, ok := queue.Dequeue()
	require.True(t, ok)
	assert.Equal(t, solana.Signature("sig-a"), got.Signature)
}

func TestListener_NoiseIgnored(t *testing.T) {
	l, state, queue := newTestListener(10)

	l.Handle(solana.LogEvent{
		Signature: "sig-swap",
		Logs: []string{
			"Program log: Instruction: InitializeMint",
			"Program log: Instruction: Swap",
		},
	})
	l.Handle(solana.LogEvent{
		Signature: "sig-transfer",
		Logs:      []string{"Program log: Instruction: Transfer"},
	})

	assert.Equal(t, 0, queue.Len())
	assert.Equal(t, int64(0), state.Stats().Detections)
}

func TestListener_DuplicateSignatureSuppressed(t *testing.T) {
	l, state, queue := newTestListener(10)

	l.Handle(creationEvent("sig-a"))
	l.Handle(creationEvent("sig-a"))
	l.Handle(creationEvent("sig-a"))

	assert.Equal(t, 1, queue.Len())
	stats := state.Stats()
	assert.Equal(t, int64(1), stats.Detections)
	assert.Equal(t, int64(2), stats.Duplicates)
}

func TestListener_QueueFullDropsAndCounts(t *testing.T) {
	l, state, queue := newTestListener(2)

	l.Handle(creationEvent("sig-a"))
	l.Handle(creationEvent("sig-b"))
	l.Handle(creationEvent("sig-c")) // queue full: dropped

	assert.Equal(t, 2, queue.Len())
	stats := state.Stats()
	assert.Equal(t, int64(3), stats.Detections)
	assert.Equal(t, int64(1), stats.QueueDrops)

	// The dropped signature is still marked processed: a replay must not
	// sneak it in later.
	assert.True(t, state.Seen("sig-c"))
}

func TestListener_EmptySignatureIgnored(t *testing.T) {
	l, _, queue := newTestListener(10)

	l.Handle(solana.LogEvent{Signature: "", Logs: []string{"Program log: Instruction: InitializeMint"}})

	assert.Equal(t, 0, queue.Len())
}

func TestExtractMint(t *testing.T) {
	mint := string(solana.SOLMint)

	t.Run("equals form", func(t *testing.T) {
		got := extractMint([]string{"Program log: initialized mint=" + mint + " decimals=9"})
		assert.Equal(t, solana.SOLMint, got)
	})

	t.Run("colon form", func(t *testing.T) {
		got := extractMint([]string{"Program log: Mint: " + mint})
		assert.Equal(t, solana.SOLMint, got)
	})

	t.Run("invalid candidate rejected", func(t *testing.T) {
		got := extractMint([]string{"Program log: mint=0OIl-not-base58"})
		assert.Equal(t, solana.Pubkey(""), got)
	})

	t.Run("absent", func(t *testing.T) {
		got := extractMint([]string{"Program log: Instruction: InitializeMint"})
		assert.Equal(t, solana.Pubkey(""), got)
	})
}
