package pipeline

import (
	"context"
	"fmt"
	"sync/atomic"
	"time"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog/log"
)

// ---------------------------------------------------------------------------
// Worker — single-flight, age-gated consumer of the detection queue
// ---------------------------------------------------------------------------

// WorkerConfig configures the analysis worker.
type WorkerConfig struct {
	// PollIntervalMs is the scheduler tick.
	PollIntervalMs int `yaml:"poll_interval_ms"`

	// MinPendingAgeS is how long a detection must sit before analysis, giving
	// on-chain state (pool initialization, metadata writes) time to settle.
	MinPendingAgeS int `yaml:"min_pending_age_s"`
}

// DefaultWorkerConfig returns scheduler defaults.
func DefaultWorkerConfig() WorkerConfig {
	return WorkerConfig{
		PollIntervalMs: 500,
		MinPendingAgeS: 20,
	}
}

func (c WorkerConfig) minPendingAge() time.Duration {
	return time.Duration(c.MinPendingAgeS) * time.Second
}

// Analyzer runs the full check battery for one mint.
type Analyzer interface {
	Analyze(ctx context.Context, mint solana.Pubkey) (*analysis.TokenAnalysis, error)
}

// OnAnalysis receives each completed analysis record.
type OnAnalysis func(ctx context.Context, ta *analysis.TokenAnalysis)

// Worker drains the queue one event at a time. At most one analysis is in
// flight; events younger than MinPendingAge stay at the head of the queue
// untouched.
type Worker struct {
	config   WorkerConfig
	queue    *Queue
	state    *State
	rpc      solana.RPCClient
	analyzer Analyzer
	onDone   OnAnalysis

	inFlight atomic.Bool
	paused   atomic.Bool
}

// NewWorker creates the queue consumer.
func NewWorker(config WorkerConfig, queue *Queue, state *State, rpc solana.RPCClient, analyzer Analyzer, onDone OnAnalysis) *Worker {
	if config.PollIntervalMs <= 0 {
		config.PollIntervalMs = 500
	}
	return &Worker{
		config:   config,
		queue:    queue,
		state:    state,
		rpc:      rpc,
		analyzer: analyzer,
		onDone:   onDone,
	}
}

// Run ticks until ctx is cancelled.
func (w *Worker) Run(ctx context.Context) {
	interval := time.Duration(w.config.PollIntervalMs) * time.Millisecond
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	log.Info().
		Int("min_pending_age_s", w.config.MinPendingAgeS).
		Int("poll_interval_ms", w.config.PollIntervalMs).
		Msg("worker: started")

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("worker: stopped")
			return
		case <-ticker.C:
			w.step(ctx)
		}
	}
}

// step runs one scheduler cycle. Exposed for tests.
func (w *Worker) step(ctx context.Context) {
	if w.paused.Load() || w.inFlight.Load() {
		return
	}

	// Peek before dequeuing: a too-young head stays in the queue, holding
	// its slot and its place. The worker is the only consumer, so the head
	// cannot change between the peek and the dequeue.
	ev, ok := w.queue.Peek()
	if !ok {
		return
	}
	if age := time.Since(ev.DetectedAt); age < w.config.minPendingAge() {
		return
	}
	if ev, ok = w.queue.Dequeue(); !ok {
		return
	}

	w.inFlight.Store(true)
	go func() {
		defer w.inFlight.Store(false)
		w.process(ctx, ev)
	}()
}

func (w *Worker) process(ctx context.Context, ev DetectionEvent) {
	start := time.Now()

	mint, err := w.resolveMint(ctx, ev)
	if err != nil {
		w.state.analysisFails.Add(1)
		log.Warn().Err(err).Str("sig", shortSig(ev.Signature)).Msg("worker: cannot resolve mint, skipping")
		return
	}

	ta, err := w.analyzer.Analyze(ctx, mint)
	if err != nil {
		w.state.analysisFails.Add(1)
		log.Error().Err(err).Str("mint", string(mint)).Msg("worker: analysis aborted")
		return
	}

	w.state.analyses.Add(1)

	log.Info().
		Str("mint", string(mint)).
		Str("sig", shortSig(ev.Signature)).
		Float64("risk_score", ta.RiskScore).
		Str("safety", string(ta.SafetyLevel)).
		Int64("analysis_ms", time.Since(start).Milliseconds()).
		Int64("wait_ms", start.Sub(ev.DetectedAt).Milliseconds()).
		Msg("worker: analysis complete")

	if w.onDone != nil {
		w.onDone(ctx, ta)
	}
}

// resolveMint finds the token identity for a detection: the listener may
// already have parsed it from the logs; otherwise the transaction is fetched
// and scanned.
func (w *Worker) resolveMint(ctx context.Context, ev DetectionEvent) (solana.Pubkey, error) {
	if ev.Mint != "" {
		if err := solana.ValidateMint(ev.Mint); err != nil {
			return "", err
		}
		return ev.Mint, nil
	}

	tx, err := w.rpc.GetTransaction(ctx, ev.Signature)
	if err != nil {
		return "", fmt.Errorf("worker: fetch tx %s: %w", ev.Signature, err)
	}
	if mint := extractMint(tx.Logs); mint != "" {
		return mint, nil
	}
	return "", fmt.Errorf("worker: tx %s carries no resolvable mint", ev.Signature)
}

// InFlight reports whether an analysis is currently running.
func (w *Worker) InFlight() bool {
	return w.inFlight.Load()
}

// Pause stops admission of new analyses; in-flight work completes.
func (w *Worker) Pause() { w.paused.Store(true) }

// Resume re-enables admission.
func (w *Worker) Resume() { w.paused.Store(false) }

// Paused reports the pause flag.
func (w *Worker) Paused() bool { return w.paused.Load() }
