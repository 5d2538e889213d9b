package analysis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testMint = solana.SOLMint

type fakeCheck struct {
	name  string
	score float64
	sev   Severity
	err   error
	delay time.Duration
	panic bool
}

func (f *fakeCheck) Name() string { return f.name }

func (f *fakeCheck) Run(ctx context.Context, mint solana.Pubkey) (*CheckResult, error) {
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if f.panic {
		panic("boom")
	}
	if f.err != nil {
		return nil, f.err
	}
	r := NewCheckResult(f.name)
	r.Score = f.score
	r.Severity = f.sev
	return r, nil
}

func newTestOrchestrator(timeoutMs int, checks ...Check) *Orchestrator {
	return NewOrchestrator(OrchestratorConfig{DefaultCheckTimeoutMs: timeoutMs}, checks, NewAggregator(nil))
}

func TestOrchestrator_InvalidMintFailsFast(t *testing.T) {
	o := newTestOrchestrator(1000, &fakeCheck{name: "a"})

	_, err := o.Analyze(context.Background(), "not-a-mint")
	require.Error(t, err)
}

func TestOrchestrator_AllChecksRecorded(t *testing.T) {
	o := newTestOrchestrator(1000,
		&fakeCheck{name: "a", score: 10},
		&fakeCheck{name: "b", score: 30},
		&fakeCheck{name: "c", score: 50},
	)

	ta, err := o.Analyze(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, ta.Checks, 3)
	assert.NotEmpty(t, ta.ID)
	assert.Equal(t, solana.Pubkey(testMint), ta.Mint)
	assert.NotEqual(t, SafetyLevel(""), ta.SafetyLevel)
}

func TestOrchestrator_TimeoutYieldsSkippedResult(t *testing.T) {
	o := newTestOrchestrator(50,
		&fakeCheck{name: "slow", delay: 5 * time.Second},
		&fakeCheck{name: "fast", score: 10},
	)

	ta, err := o.Analyze(context.Background(), testMint)
	require.NoError(t, err)

	slow := ta.Checks["slow"]
	require.NotNil(t, slow)
	assert.True(t, slow.Skipped)
	assert.InDelta(t, NeutralScore, slow.Score, 0.001)
	require.NotEmpty(t, slow.Warnings)
	assert.Contains(t, slow.Warnings[0], "timed out")

	// The fast check's signal carries the verdict alone.
	assert.InDelta(t, 10.0, ta.RiskScore, 0.001)
	assert.Equal(t, int64(1), o.Stats().CheckTimeouts)
}

func TestOrchestrator_CheckErrorPenalizedNotFatal(t *testing.T) {
	o := newTestOrchestrator(1000,
		&fakeCheck{name: "broken", err: errors.New("rpc exploded")},
		&fakeCheck{name: "ok", score: 0},
	)

	ta, err := o.Analyze(context.Background(), testMint)
	require.NoError(t, err)

	broken := ta.Checks["broken"]
	require.NotNil(t, broken)
	assert.False(t, broken.Skipped)
	assert.InDelta(t, failureScore, broken.Score, 0.001)
	assert.Equal(t, SeverityHigh, broken.Severity)
	require.NotEmpty(t, broken.Issues)
	assert.Equal(t, int64(1), o.Stats().CheckFailures)
}

func TestOrchestrator_PanicIsolatedToOneCheck(t *testing.T) {
	o := newTestOrchestrator(1000,
		&fakeCheck{name: "bomb", panic: true},
		&fakeCheck{name: "ok", score: 20},
	)

	ta, err := o.Analyze(context.Background(), testMint)
	require.NoError(t, err)
	require.Len(t, ta.Checks, 2)

	bomb := ta.Checks["bomb"]
	require.NotNil(t, bomb)
	assert.InDelta(t, failureScore, bomb.Score, 0.001)
	require.NotEmpty(t, bomb.Issues)
	assert.Contains(t, bomb.Issues[0], "panicked")
}

func TestOrchestrator_PerCheckTimeoutOverride(t *testing.T) {
	cfg := OrchestratorConfig{
		DefaultCheckTimeoutMs: 50,
		CheckTimeoutsMs:       map[string]int{"slow": 1000},
	}
	o := NewOrchestrator(cfg, []Check{
		&fakeCheck{name: "slow", delay: 200 * time.Millisecond, score: 40},
	}, NewAggregator(nil))

	ta, err := o.Analyze(context.Background(), testMint)
	require.NoError(t, err)
	assert.False(t, ta.Checks["slow"].Skipped)
	assert.InDelta(t, 40.0, ta.Checks["slow"].Score, 0.001)
}
