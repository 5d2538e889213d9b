package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/mintsentry/mintsentry/internal/adapters/jupiter"
	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/checks"
	"github.com/mintsentry/mintsentry/internal/config"
	"github.com/mintsentry/mintsentry/internal/observability"
	"github.com/mintsentry/mintsentry/internal/pipeline"
	"github.com/mintsentry/mintsentry/internal/solana"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

func main() {
	// 1. Parse flags.
	configPath := flag.String("config", "config/config.yaml", "Path to configuration file")
	stubMode := flag.Bool("stub", false, "Use stub RPC and quote clients (no network)")
	flag.Parse()

	// 2. Load configuration. A missing file at the default path falls back
	// to built-in defaults so `-stub` works out of the box.
	cfg, err := config.Load(*configPath)
	if err != nil {
		if !errors.Is(err, os.ErrNotExist) {
			fmt.Fprintf(os.Stderr, "FATAL: failed to load config from %s: %v\n", *configPath, err)
			os.Exit(1)
		}
		cfg = config.Default()
	}

	// 3. Setup logging.
	setupLogging(cfg.General)
	if err != nil {
		log.Warn().Str("path", *configPath).Msg("Config file not found, using built-in defaults")
	}

	log.Info().Msg("=============================================")
	log.Info().Msg("MintSentry - New Token Triage - Starting")
	log.Info().Msg("DETECT -> QUEUE -> AGE-GATE -> ANALYZE -> VERDICT")
	log.Info().Msg("=============================================")

	log.Info().
		Str("instance_id", cfg.General.InstanceID).
		Bool("stub_mode", *stubMode).
		Int("queue_capacity", cfg.Pipeline.QueueCapacity).
		Int("min_pending_age_s", cfg.Pipeline.Worker.MinPendingAgeS).
		Int("default_check_timeout_ms", cfg.Analysis.Orchestrator.DefaultCheckTimeoutMs).
		Msg("Configuration loaded")

	// 4. Create Solana RPC client.
	var rpc solana.RPCClient
	var liveRPC *solana.LiveRPCClient
	if *stubMode {
		rpc = solana.NewStubRPCClient()
		log.Info().Msg("Solana RPC: STUB mode")
	} else {
		liveRPC = solana.NewLiveRPCClient(cfg.RPC)
		rpc = liveRPC
		defer liveRPC.Close()

		// Verify RPC connectivity.
		healthCtx, healthCancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := rpc.Health(healthCtx); err != nil {
			log.Warn().Err(err).Str("endpoint", cfg.RPC.Endpoint).
				Msg("Solana RPC health check failed (continuing, may be rate-limited)")
		} else {
			log.Info().Str("endpoint", cfg.RPC.Endpoint).Msg("Solana RPC: LIVE - connected")
		}
		healthCancel()
	}

	// 5. Create quote client.
	var quotes jupiter.QuoteClient
	var liveQuotes *jupiter.APIClient
	if *stubMode {
		quotes = jupiter.NewStubQuoteClient()
		log.Info().Msg("Jupiter quotes: STUB mode")
	} else {
		liveQuotes = jupiter.NewAPIClient()
		quotes = liveQuotes
		log.Info().Msg("Jupiter quotes: LIVE")
	}

	// 6. Assemble the check battery and the orchestrator.
	battery := checks.BuildAll(cfg.Checks, rpc, quotes)
	aggregator := analysis.NewAggregator(cfg.Analysis.Weights)
	orchestrator := analysis.NewOrchestrator(cfg.Analysis.Orchestrator, battery, aggregator)
	log.Info().Int("checks", len(battery)).Msg("Analysis orchestrator initialized")

	// 7. Metrics + recent-analysis buffer.
	var metrics *observability.Metrics
	if cfg.Metrics.Enabled {
		metrics = observability.NewMetrics("mintsentry")
		log.Info().Msg("Prometheus metrics enabled")
	}
	recent := analysis.NewRecentBuffer(cfg.Analysis.RecentBufferSize)

	onAnalysis := func(ctx context.Context, ta *analysis.TokenAnalysis) {
		recent.Add(ta)
		if metrics == nil {
			return
		}
		metrics.AnalysesTotal.WithLabelValues(string(ta.SafetyLevel)).Inc()
		metrics.AnalysisDuration.Observe(ta.Duration.Seconds())
		metrics.RiskScore.Observe(ta.RiskScore)
		for name, result := range ta.Checks {
			metrics.CheckDuration.WithLabelValues(name).Observe(result.Duration.Seconds())
		}
	}

	// 8. Create the detection pipeline: shared state, bounded queue,
	// listener, single-flight worker.
	state := pipeline.NewState(cfg.Pipeline.ProcessedSetCap)
	queue := pipeline.NewQueue(cfg.Pipeline.QueueCapacity)
	listener := pipeline.NewListener(cfg.Pipeline.Listener, state, queue)
	worker := pipeline.NewWorker(cfg.Pipeline.Worker, queue, state, rpc, orchestrator, onAnalysis)

	// 9. Health monitor.
	monitor := observability.NewHealthMonitor()
	monitor.Register("queue", func(ctx context.Context) (observability.Status, string) {
		if queue.Len() >= queue.Cap() {
			return observability.StatusDegraded, "detection queue full, new detections are dropped"
		}
		return observability.StatusHealthy, ""
	})
	if liveRPC != nil {
		monitor.Register("rpc", func(ctx context.Context) (observability.Status, string) {
			if liveRPC.Stats().CircuitOpen {
				return observability.StatusDegraded, "circuit breaker open"
			}
			probeCtx, probeCancel := context.WithTimeout(ctx, 5*time.Second)
			defer probeCancel()
			if err := liveRPC.Health(probeCtx); err != nil {
				return observability.StatusUnhealthy, err.Error()
			}
			return observability.StatusHealthy, ""
		})
	}

	// 10. Setup context and shutdown signal.
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		log.Warn().Str("signal", sig.String()).Msg("Shutdown signal received")
		cancel()
	}()

	// 11. Start services.
	var wg sync.WaitGroup

	// Start the log stream (non-stub only) and the listener over it.
	var stream *solana.LogStream
	if *stubMode {
		log.Info().Msg("Stub mode: no websocket stream, detection queue stays empty")
	} else {
		stream = solana.NewLogStream(cfg.Stream)
		streamEvents, err := stream.Start(ctx)
		if err != nil {
			log.Fatal().Err(err).Msg("Log stream failed to start")
		}
		monitor.Register("stream", func(ctx context.Context) (observability.Status, string) {
			if !stream.Stats().Connected {
				return observability.StatusDegraded, "websocket disconnected, reconnecting"
			}
			return observability.StatusHealthy, ""
		})
		wg.Add(1)
		go func() {
			defer wg.Done()
			listener.Run(ctx, streamEvents)
		}()
	}

	// Start the worker.
	wg.Add(1)
	go func() {
		defer wg.Done()
		worker.Run(ctx)
	}()

	// Start the health monitor.
	wg.Add(1)
	go func() {
		defer wg.Done()
		monitor.Run(ctx, 30*time.Second)
	}()

	// Start HTTP surface: health, stats, recent analyses, control, metrics.
	wg.Add(1)
	go func() {
		defer wg.Done()
		mux := http.NewServeMux()

		// ── Health ──
		mux.HandleFunc("/health", func(w http.ResponseWriter, _ *http.Request) {
			health := monitor.Snapshot()
			w.Header().Set("Content-Type", "application/json")
			if health.Status == observability.StatusUnhealthy {
				w.WriteHeader(http.StatusServiceUnavailable)
			}
			json.NewEncoder(w).Encode(health)
		})

		// ── Stats ──
		mux.HandleFunc("/stats", func(w http.ResponseWriter, _ *http.Request) {
			combined := map[string]any{
				"pipeline":     state.Stats(),
				"queue_len":    queue.Len(),
				"queue_cap":    queue.Cap(),
				"orchestrator": orchestrator.Stats(),
				"paused":       worker.Paused(),
				"in_flight":    worker.InFlight(),
			}
			if stream != nil {
				combined["stream"] = stream.Stats()
			}
			if liveRPC != nil {
				combined["rpc"] = liveRPC.Stats()
			}
			if liveQuotes != nil {
				combined["jupiter"] = liveQuotes.APIStats()
			}
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(combined)
		})

		// ── Recent analyses ──
		mux.HandleFunc("/analyses/recent", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(recent.List())
		})

		// ── Control Plane ──
		mux.HandleFunc("/control/pause", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			worker.Pause()
			log.Warn().Msg("[CONTROL] Worker PAUSED - no new analyses")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"paused"}`)
		})

		mux.HandleFunc("/control/resume", func(w http.ResponseWriter, r *http.Request) {
			if r.Method != http.MethodPost {
				http.Error(w, "POST only", http.StatusMethodNotAllowed)
				return
			}
			worker.Resume()
			log.Info().Msg("[CONTROL] Worker RESUMED")
			w.Header().Set("Content-Type", "application/json")
			fmt.Fprintf(w, `{"status":"running"}`)
		})

		mux.HandleFunc("/control/status", func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			json.NewEncoder(w).Encode(map[string]any{
				"paused":      worker.Paused(),
				"in_flight":   worker.InFlight(),
				"queue_len":   queue.Len(),
				"instance_id": cfg.General.InstanceID,
			})
		})

		// ── Prometheus ──
		if metrics != nil {
			mux.Handle("/metrics", metrics.Handler())
		}

		addr := fmt.Sprintf(":%d", cfg.Metrics.Port)
		server := &http.Server{
			Addr:              addr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}

		log.Info().Str("addr", addr).Msg("HTTP server started (health + stats + control)")

		go func() {
			<-ctx.Done()
			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer shutdownCancel()
			server.Shutdown(shutdownCtx)
		}()

		if srvErr := server.ListenAndServe(); srvErr != nil && srvErr != http.ErrServerClosed {
			log.Error().Err(srvErr).Msg("HTTP server error")
		}
	}()

	// Periodic stats logging + metric gauge sync.
	wg.Add(1)
	go func() {
		defer wg.Done()
		msync := newMetricSync(metrics)
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				ps := state.Stats()
				orchStats := orchestrator.Stats()
				logEvt := log.Info().
					Int64("notifications", ps.Notifications).
					Int64("detections", ps.Detections).
					Int64("duplicates", ps.Duplicates).
					Int64("queue_drops", ps.QueueDrops).
					Int("queue_len", queue.Len()).
					Int64("analyses", ps.Analyses).
					Int64("analysis_fails", ps.AnalysisFails).
					Int64("check_timeouts", orchStats.CheckTimeouts).
					Bool("paused", worker.Paused())
				if stream != nil {
					logEvt = logEvt.Int64("reconnects", stream.Stats().Reconnects)
				}
				logEvt.Msg("[STATS]")

				msync.apply(ps, orchStats, queue, stream, liveRPC)
			}
		}
	}()

	log.Info().Msg("MintSentry - Running")
	log.Info().Msg("Pipeline: Stream -> Listener -> Queue -> Worker -> Orchestrator -> Verdict")

	// 12. Block until shutdown.
	<-ctx.Done()

	// 13. Graceful shutdown.
	log.Info().Msg("Shutting down...")
	wg.Wait()

	// Final stats.
	finalStats := state.Stats()
	log.Info().
		Int64("notifications", finalStats.Notifications).
		Int64("detections", finalStats.Detections).
		Int64("duplicates", finalStats.Duplicates).
		Int64("queue_drops", finalStats.QueueDrops).
		Int64("analyses", finalStats.Analyses).
		Int64("analysis_fails", finalStats.AnalysisFails).
		Msg("MintSentry - Final Statistics")

	log.Info().Msg("MintSentry - Shutdown complete")
}

// metricSync turns cumulative atomic counters into Prometheus counter
// increments and keeps the gauges current. Histograms and the per-verdict
// counter are fed directly from the analysis callback instead.
type metricSync struct {
	metrics *observability.Metrics
	prev    struct {
		notifications, duplicates, detections, queueDrops int64
		analysisFails, checkTimeouts, checkFailures       int64
		streamReconnects, streamDrops                     int64
		rpcRequests, rpcErrors                            int64
	}
}

func newMetricSync(m *observability.Metrics) *metricSync {
	return &metricSync{metrics: m}
}

func (s *metricSync) apply(ps pipeline.StateStats, orchStats analysis.OrchestratorStats, queue *pipeline.Queue, stream *solana.LogStream, rpc *solana.LiveRPCClient) {
	if s.metrics == nil {
		return
	}
	m := s.metrics

	add := func(c interface{ Add(float64) }, now int64, prev *int64) {
		if delta := now - *prev; delta > 0 {
			c.Add(float64(delta))
		}
		*prev = now
	}

	add(m.NotificationsTotal, ps.Notifications, &s.prev.notifications)
	add(m.DuplicatesTotal, ps.Duplicates, &s.prev.duplicates)
	add(m.DetectionsTotal, ps.Detections, &s.prev.detections)
	add(m.QueueDropsTotal, ps.QueueDrops, &s.prev.queueDrops)
	add(m.AnalysisFails, ps.AnalysisFails, &s.prev.analysisFails)
	add(m.CheckTimeouts, orchStats.CheckTimeouts, &s.prev.checkTimeouts)
	add(m.CheckFailures, orchStats.CheckFailures, &s.prev.checkFailures)

	m.QueueDepth.Set(float64(queue.Len()))

	if stream != nil {
		ss := stream.Stats()
		add(m.ReconnectsTotal, ss.Reconnects, &s.prev.streamReconnects)
		add(m.StreamDropsTotal, ss.Drops, &s.prev.streamDrops)
	}
	if rpc != nil {
		rs := rpc.Stats()
		add(m.RPCRequestsTotal, rs.RequestCount, &s.prev.rpcRequests)
		add(m.RPCErrorsTotal, rs.ErrorCount, &s.prev.rpcErrors)
		m.RPCCreditsLeft.Set(float64(rs.CreditsLeft))
	}
}

func setupLogging(general config.GeneralConfig) {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnixMicro
	level, err := zerolog.ParseLevel(general.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)

	if general.LogFormat == "text" {
		log.Logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout}).
			With().Timestamp().Str("service", "mintsentry").
			Str("instance", general.InstanceID).Logger()
	} else {
		log.Logger = zerolog.New(os.Stdout).
			With().Timestamp().Str("service", "mintsentry").
			Str("instance", general.InstanceID).Logger()
	}
}
