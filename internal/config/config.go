package config

import (
	"fmt"
	"os"

	"github.com/mintsentry/mintsentry/internal/analysis"
	"github.com/mintsentry/mintsentry/internal/checks"
	"github.com/mintsentry/mintsentry/internal/pipeline"
	"github.com/mintsentry/mintsentry/internal/solana"
	"gopkg.in/yaml.v3"
)

// Config is the root configuration structure for mintsentry.
type Config struct {
	General  GeneralConfig           `yaml:"general"`
	RPC      solana.RPCConfig        `yaml:"rpc"`
	Stream   solana.LogStreamConfig  `yaml:"stream"`
	Pipeline PipelineConfig          `yaml:"pipeline"`
	Analysis AnalysisConfig          `yaml:"analysis"`
	Checks   checks.Config           `yaml:"checks"`
	Metrics  MetricsConfig           `yaml:"metrics"`
}

type GeneralConfig struct {
	InstanceID  string `yaml:"instance_id"`
	Environment string `yaml:"environment"` // production|staging|development
	LogLevel    string `yaml:"log_level"`
	LogFormat   string `yaml:"log_format"` // json|text
}

type PipelineConfig struct {
	// QueueCapacity bounds the detection backlog; overflow detections are
	// dropped, never queued late.
	QueueCapacity int `yaml:"queue_capacity"`
	// ProcessedSetCap bounds the dedup set (0 = default).
	ProcessedSetCap int                     `yaml:"processed_set_cap"`
	Listener        pipeline.ListenerConfig `yaml:"listener"`
	Worker          pipeline.WorkerConfig   `yaml:"worker"`
}

type AnalysisConfig struct {
	Orchestrator analysis.OrchestratorConfig `yaml:"orchestrator"`
	// Weights overrides the per-check aggregation weights.
	Weights analysis.Weights `yaml:"weights"`
	// RecentBufferSize bounds the in-memory ring of recent analyses served
	// over HTTP.
	RecentBufferSize int `yaml:"recent_buffer_size"`
}

type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// Load reads and parses a YAML configuration file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	// Expand environment variables
	expanded := os.ExpandEnv(string(data))

	cfg := &Config{}
	if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}

	applyDefaults(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	applyDefaults(cfg)
	return cfg
}

func applyDefaults(cfg *Config) {
	if cfg.General.InstanceID == "" {
		cfg.General.InstanceID = "mintsentry-1"
	}
	if cfg.General.Environment == "" {
		cfg.General.Environment = "development"
	}
	if cfg.General.LogLevel == "" {
		cfg.General.LogLevel = "info"
	}
	if cfg.General.LogFormat == "" {
		cfg.General.LogFormat = "json"
	}

	def := solana.DefaultRPCConfig()
	if cfg.RPC.Endpoint == "" {
		cfg.RPC.Endpoint = def.Endpoint
	}
	if cfg.RPC.WSEndpoint == "" {
		cfg.RPC.WSEndpoint = def.WSEndpoint
	}
	if cfg.RPC.Timeout == 0 {
		cfg.RPC.Timeout = def.Timeout
	}
	if cfg.RPC.MaxRetries == 0 {
		cfg.RPC.MaxRetries = def.MaxRetries
	}
	if cfg.RPC.RateLimitRPS == 0 {
		cfg.RPC.RateLimitRPS = def.RateLimitRPS
	}
	if cfg.RPC.MaxConcurrent == 0 {
		cfg.RPC.MaxConcurrent = def.MaxConcurrent
	}

	stream := solana.DefaultLogStreamConfig()
	if cfg.Stream.WSEndpoint == "" {
		cfg.Stream.WSEndpoint = cfg.RPC.WSEndpoint
	}
	if len(cfg.Stream.ProgramIDs) == 0 {
		cfg.Stream.ProgramIDs = stream.ProgramIDs
	}
	if cfg.Stream.ReconnectDelayMs == 0 {
		cfg.Stream.ReconnectDelayMs = stream.ReconnectDelayMs
	}
	if cfg.Stream.PingIntervalS == 0 {
		cfg.Stream.PingIntervalS = stream.PingIntervalS
	}

	if cfg.Pipeline.QueueCapacity == 0 {
		cfg.Pipeline.QueueCapacity = 256
	}
	if len(cfg.Pipeline.Listener.CreationMarkers) == 0 {
		cfg.Pipeline.Listener = pipeline.DefaultListenerConfig()
	}
	worker := pipeline.DefaultWorkerConfig()
	if cfg.Pipeline.Worker.PollIntervalMs == 0 {
		cfg.Pipeline.Worker.PollIntervalMs = worker.PollIntervalMs
	}
	if cfg.Pipeline.Worker.MinPendingAgeS == 0 {
		cfg.Pipeline.Worker.MinPendingAgeS = worker.MinPendingAgeS
	}

	orch := analysis.DefaultOrchestratorConfig()
	if cfg.Analysis.Orchestrator.DefaultCheckTimeoutMs == 0 {
		cfg.Analysis.Orchestrator.DefaultCheckTimeoutMs = orch.DefaultCheckTimeoutMs
	}
	if cfg.Analysis.Orchestrator.CheckTimeoutsMs == nil {
		cfg.Analysis.Orchestrator.CheckTimeoutsMs = orch.CheckTimeoutsMs
	}
	if cfg.Analysis.Weights == nil {
		cfg.Analysis.Weights = analysis.DefaultWeights()
	}
	if cfg.Analysis.RecentBufferSize == 0 {
		cfg.Analysis.RecentBufferSize = 100
	}

	if cfg.Metrics.Port == 0 {
		cfg.Metrics.Port = 9090
	}
}

// Validate rejects configurations that cannot run.
func (c *Config) Validate() error {
	if c.Pipeline.QueueCapacity < 1 {
		return fmt.Errorf("config: pipeline.queue_capacity must be >= 1")
	}
	if c.Pipeline.Worker.MinPendingAgeS < 0 {
		return fmt.Errorf("config: pipeline.worker.min_pending_age_s must be >= 0")
	}
	if c.Analysis.Orchestrator.DefaultCheckTimeoutMs < 1000 {
		return fmt.Errorf("config: analysis.orchestrator.default_check_timeout_ms must be >= 1000")
	}
	for name, w := range c.Analysis.Weights {
		if w <= 0 {
			return fmt.Errorf("config: analysis.weights[%s] must be positive", name)
		}
	}
	if c.RPC.RequestCredits < 0 {
		return fmt.Errorf("config: rpc.request_credits must be >= 0")
	}
	return nil
}
