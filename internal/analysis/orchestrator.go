package analysis

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Orchestrator — runs the check battery concurrently with per-check timeouts
// ---------------------------------------------------------------------------

// failureScore is the conservative penalty recorded when a check errors out.
// Unknown is treated as risky, but not as damning as a confirmed finding.
const failureScore = 70.0

// OrchestratorConfig configures check execution.
type OrchestratorConfig struct {
	// DefaultCheckTimeoutMs bounds each check unless overridden per check.
	DefaultCheckTimeoutMs int `yaml:"default_check_timeout_ms"`
	// CheckTimeoutsMs overrides the timeout for named checks.
	CheckTimeoutsMs map[string]int `yaml:"check_timeouts_ms"`
}

// DefaultOrchestratorConfig returns execution defaults. The honeypot check
// gets extra headroom: it makes two quote round-trips.
func DefaultOrchestratorConfig() OrchestratorConfig {
	return OrchestratorConfig{
		DefaultCheckTimeoutMs: 10_000,
		CheckTimeoutsMs: map[string]int{
			"honeypot": 20_000,
		},
	}
}

// Orchestrator fans the registered checks out over a mint and aggregates the
// results. One slow or broken check never takes the whole analysis down: a
// timeout yields a skipped result, an error yields a penalized one.
type Orchestrator struct {
	config     OrchestratorConfig
	checks     []Check
	aggregator *Aggregator

	analyses      atomic.Int64
	checkTimeouts atomic.Int64
	checkFailures atomic.Int64
}

// NewOrchestrator wires the check battery to an aggregator.
func NewOrchestrator(config OrchestratorConfig, checks []Check, aggregator *Aggregator) *Orchestrator {
	if config.DefaultCheckTimeoutMs <= 0 {
		config.DefaultCheckTimeoutMs = 10_000
	}
	if aggregator == nil {
		aggregator = NewAggregator(nil)
	}
	return &Orchestrator{
		config:     config,
		checks:     checks,
		aggregator: aggregator,
	}
}

// Analyze runs every check against the mint and returns the composite
// verdict. The only hard failure is an invalid mint identity; everything
// downstream degrades per check.
func (o *Orchestrator) Analyze(ctx context.Context, mint solana.Pubkey) (*TokenAnalysis, error) {
	if err := solana.ValidateMint(mint); err != nil {
		return nil, fmt.Errorf("analysis: %w", err)
	}

	start := time.Now()
	ta := NewTokenAnalysis(mint)

	var (
		wg sync.WaitGroup
		mu sync.Mutex
	)
	for _, check := range o.checks {
		wg.Add(1)
		go func(c Check) {
			defer wg.Done()
			res := o.runCheck(ctx, c, mint)
			mu.Lock()
			ta.Checks[c.Name()] = res
			mu.Unlock()
		}(check)
	}
	wg.Wait()

	o.aggregator.Aggregate(ta)
	ta.Duration = time.Since(start)
	o.analyses.Add(1)

	log.Debug().
		Str("mint", string(mint)).
		Int("checks", len(ta.Checks)).
		Float64("risk_score", ta.RiskScore).
		Dur("took", ta.Duration).
		Msg("analysis: aggregated")

	return ta, nil
}

// runCheck executes one check inside its timeout budget, converting panics
// to failures and timeouts to skips.
func (o *Orchestrator) runCheck(ctx context.Context, c Check, mint solana.Pubkey) *CheckResult {
	timeout := time.Duration(o.config.DefaultCheckTimeoutMs) * time.Millisecond
	if ms, ok := o.config.CheckTimeoutsMs[c.Name()]; ok && ms > 0 {
		timeout = time.Duration(ms) * time.Millisecond
	}
	checkCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	start := time.Now()

	type outcome struct {
		res *CheckResult
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- outcome{err: fmt.Errorf("check panicked: %v", r)}
			}
		}()
		res, err := c.Run(checkCtx, mint)
		done <- outcome{res: res, err: err}
	}()

	var out outcome
	select {
	case <-checkCtx.Done():
		return o.skippedResult(c.Name(), timeout, start)
	case out = <-done:
	}

	if out.err != nil {
		if errors.Is(out.err, context.DeadlineExceeded) {
			return o.skippedResult(c.Name(), timeout, start)
		}
		o.checkFailures.Add(1)
		log.Warn().Err(out.err).Str("check", c.Name()).Str("mint", string(mint)).Msg("analysis: check failed")

		res := NewCheckResult(c.Name())
		res.Score = failureScore
		res.AddIssue(fmt.Sprintf("check could not complete: %v", out.err), SeverityHigh)
		res.Duration = time.Since(start)
		return res
	}

	res := out.res
	if res == nil {
		res = NewCheckResult(c.Name())
	}
	res.Duration = time.Since(start)
	return res
}

func (o *Orchestrator) skippedResult(name string, timeout time.Duration, start time.Time) *CheckResult {
	o.checkTimeouts.Add(1)
	log.Warn().Str("check", name).Dur("timeout", timeout).Msg("analysis: check timed out, skipping")

	res := NewCheckResult(name)
	res.Skipped = true
	res.Score = NeutralScore
	res.AddWarning(fmt.Sprintf("timed out after %s", timeout))
	res.Duration = time.Since(start)
	return res
}

// OrchestratorStats is a counters snapshot.
type OrchestratorStats struct {
	Analyses      int64 `json:"analyses"`
	CheckTimeouts int64 `json:"check_timeouts"`
	CheckFailures int64 `json:"check_failures"`
}

// Stats returns execution counters.
func (o *Orchestrator) Stats() OrchestratorStats {
	return OrchestratorStats{
		Analyses:      o.analyses.Load(),
		CheckTimeouts: o.checkTimeouts.Load(),
		CheckFailures: o.checkFailures.Load(),
	}
}
