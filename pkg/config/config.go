package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete application configuration
type Config struct {
	Ollama        OllamaConfig        `yaml:"ollama"`
	Retrieval     RetrievalConfig     `yaml:"retrieval"`
	Orchestrator  OrchestratorConfig  `yaml:"orchestrator"`
	Specialist    SpecialistConfig    `yaml:"specialist"`
	Storage       StorageConfig       `yaml:"storage"`
	Observability ObservabilityConfig `yaml:"observability"`
}

// OllamaConfig contains Ollama-specific configuration
type OllamaConfig struct {
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	TopP        float64 `yaml:"top_p,omitempty"`
	TopK        int     `yaml:"top_k,omitempty"`
	Timeout     string  `yaml:"timeout"`
	TokenBudget int64   `yaml:"token_budget,omitempty"`
}

// RetrievalConfig contains document search backend configuration
type RetrievalConfig struct {
	BaseURL       string        `yaml:"base_url"`
	MaxCandidates int           `yaml:"max_candidates"`
	Timeout       string        `yaml:"timeout"`
	MaxRetries    int           `yaml:"max_retries"`
	BreakerConfig BreakerConfig `yaml:"circuit_breaker"`
}

// BreakerConfig tunes the retrieval circuit breaker
type BreakerConfig struct {
	Enabled          bool   `yaml:"enabled"`
	FailureThreshold int    `yaml:"failure_threshold"`
	SuccessThreshold int    `yaml:"success_threshold"`
	OpenDuration     string `yaml:"open_duration"`
}

// OrchestratorConfig contains research job lifecycle configuration
type OrchestratorConfig struct {
	MaxIterations  int    `yaml:"max_iterations"`
	MaxReflections int    `yaml:"max_reflections"`
	JobTimeout     string `yaml:"job_timeout"`
}

// SpecialistConfig contains sub-agent execution configuration
type SpecialistConfig struct {
	MaxConcurrent int    `yaml:"max_concurrent"`
	TaskTimeout   string `yaml:"task_timeout"`
}

// StorageConfig contains job store configuration
type StorageConfig struct {
	Type    string `yaml:"type"` // "memory"
	MaxJobs int    `yaml:"max_jobs,omitempty"`
	TTL     string `yaml:"ttl,omitempty"`
}

// ObservabilityConfig contains observability configuration
type ObservabilityConfig struct {
	Tracing TracingConfig `yaml:"tracing"`
	Metrics MetricsConfig `yaml:"metrics"`
	Logging LoggingConfig `yaml:"logging"`
}

// TracingConfig contains tracing configuration
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled"`
	Endpoint     string  `yaml:"endpoint"`
	SamplingRate float64 `yaml:"sampling_rate"`
	Insecure     bool    `yaml:"insecure"`
}

// MetricsConfig contains metrics configuration
type MetricsConfig struct {
	Enabled bool `yaml:"enabled"`
	Port    int  `yaml:"port"`
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`  // "debug", "info", "warn", "error"
	Format string `yaml:"format"` // "json", "text"
	Output string `yaml:"output"` // "stdout", "file"
}

// Load loads configuration from a file
func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	config := &Config{}
	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	config.applyDefaults()
	config.overrideFromEnv()

	if err := config.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return config, nil
}

// LoadOrDefault loads configuration from a file or returns default config
func LoadOrDefault(path string) *Config {
	config, err := Load(path)
	if err != nil {
		config = Default()
	}
	return config
}

// Default returns default configuration
func Default() *Config {
	return &Config{
		Ollama: OllamaConfig{
			BaseURL:     "http://localhost:11434",
			Model:       "llama3.2",
			Temperature: 0.7,
			MaxTokens:   4096,
			Timeout:     "2m",
			TokenBudget: 500_000,
		},
		Retrieval: RetrievalConfig{
			BaseURL:       "http://localhost:8000",
			MaxCandidates: 10,
			Timeout:       "30s",
			MaxRetries:    3,
			BreakerConfig: BreakerConfig{
				Enabled:          true,
				FailureThreshold: 5,
				SuccessThreshold: 2,
				OpenDuration:     "30s",
			},
		},
		Orchestrator: OrchestratorConfig{
			MaxIterations:  6,
			MaxReflections: 1,
			JobTimeout:     "10m",
		},
		Specialist: SpecialistConfig{
			MaxConcurrent: 5,
			TaskTimeout:   "2m",
		},
		Storage: StorageConfig{
			Type:    "memory",
			MaxJobs: 1000,
			TTL:     "24h",
		},
		Observability: ObservabilityConfig{
			Tracing: TracingConfig{
				Enabled:      true,
				Endpoint:     "localhost:4318",
				SamplingRate: 1.0,
				Insecure:     true,
			},
			Metrics: MetricsConfig{
				Enabled: true,
				Port:    2223,
			},
			Logging: LoggingConfig{
				Level:  "info",
				Format: "json",
				Output: "stdout",
			},
		},
	}
}

// applyDefaults applies default values to missing fields
func (c *Config) applyDefaults() {
	defaults := Default()

	if c.Ollama.BaseURL == "" {
		c.Ollama.BaseURL = defaults.Ollama.BaseURL
	}
	if c.Ollama.Model == "" {
		c.Ollama.Model = defaults.Ollama.Model
	}
	if c.Ollama.Temperature == 0 {
		c.Ollama.Temperature = defaults.Ollama.Temperature
	}
	if c.Ollama.MaxTokens == 0 {
		c.Ollama.MaxTokens = defaults.Ollama.MaxTokens
	}
	if c.Ollama.Timeout == "" {
		c.Ollama.Timeout = defaults.Ollama.Timeout
	}

	if c.Retrieval.BaseURL == "" {
		c.Retrieval.BaseURL = defaults.Retrieval.BaseURL
	}
	if c.Retrieval.MaxCandidates == 0 {
		c.Retrieval.MaxCandidates = defaults.Retrieval.MaxCandidates
	}
	if c.Retrieval.Timeout == "" {
		c.Retrieval.Timeout = defaults.Retrieval.Timeout
	}
	if c.Retrieval.MaxRetries == 0 {
		c.Retrieval.MaxRetries = defaults.Retrieval.MaxRetries
	}
	if c.Retrieval.BreakerConfig.FailureThreshold == 0 {
		c.Retrieval.BreakerConfig.FailureThreshold = defaults.Retrieval.BreakerConfig.FailureThreshold
	}
	if c.Retrieval.BreakerConfig.SuccessThreshold == 0 {
		c.Retrieval.BreakerConfig.SuccessThreshold = defaults.Retrieval.BreakerConfig.SuccessThreshold
	}
	if c.Retrieval.BreakerConfig.OpenDuration == "" {
		c.Retrieval.BreakerConfig.OpenDuration = defaults.Retrieval.BreakerConfig.OpenDuration
	}

	if c.Orchestrator.MaxIterations == 0 {
		c.Orchestrator.MaxIterations = defaults.Orchestrator.MaxIterations
	}
	if c.Orchestrator.MaxReflections == 0 {
		c.Orchestrator.MaxReflections = defaults.Orchestrator.MaxReflections
	}
	if c.Orchestrator.JobTimeout == "" {
		c.Orchestrator.JobTimeout = defaults.Orchestrator.JobTimeout
	}

	if c.Specialist.MaxConcurrent == 0 {
		c.Specialist.MaxConcurrent = defaults.Specialist.MaxConcurrent
	}
	if c.Specialist.TaskTimeout == "" {
		c.Specialist.TaskTimeout = defaults.Specialist.TaskTimeout
	}

	if c.Storage.Type == "" {
		c.Storage.Type = defaults.Storage.Type
	}
	if c.Storage.MaxJobs == 0 {
		c.Storage.MaxJobs = defaults.Storage.MaxJobs
	}

	if c.Observability.Tracing.Endpoint == "" {
		c.Observability.Tracing.Endpoint = defaults.Observability.Tracing.Endpoint
	}
	if c.Observability.Tracing.SamplingRate == 0 {
		c.Observability.Tracing.SamplingRate = defaults.Observability.Tracing.SamplingRate
	}
	if c.Observability.Metrics.Port == 0 {
		c.Observability.Metrics.Port = defaults.Observability.Metrics.Port
	}
	if c.Observability.Logging.Level == "" {
		c.Observability.Logging.Level = defaults.Observability.Logging.Level
	}
	if c.Observability.Logging.Format == "" {
		c.Observability.Logging.Format = defaults.Observability.Logging.Format
	}
	if c.Observability.Logging.Output == "" {
		c.Observability.Logging.Output = defaults.Observability.Logging.Output
	}
}

// overrideFromEnv overrides configuration from environment variables
func (c *Config) overrideFromEnv() {
	if url := os.Getenv("OLLAMA_BASE_URL"); url != "" {
		c.Ollama.BaseURL = url
	}
	if model := os.Getenv("OLLAMA_MODEL"); model != "" {
		c.Ollama.Model = model
	}

	if url := os.Getenv("RETRIEVAL_BASE_URL"); url != "" {
		c.Retrieval.BaseURL = url
	}

	if n := os.Getenv("SPECIALIST_MAX_CONCURRENT"); n != "" {
		var v int
		if _, err := fmt.Sscanf(n, "%d", &v); err != nil || v < 1 {
			log.Printf("Invalid SPECIALIST_MAX_CONCURRENT value: %s, using default: %d", n, c.Specialist.MaxConcurrent)
		} else {
			c.Specialist.MaxConcurrent = v
		}
	}

	if endpoint := os.Getenv("OTEL_EXPORTER_OTLP_ENDPOINT"); endpoint != "" {
		c.Observability.Tracing.Endpoint = endpoint
	}
}

// validate validates the configuration
func (c *Config) validate() error {
	if c.Ollama.BaseURL == "" {
		return fmt.Errorf("ollama base_url is required")
	}
	if c.Ollama.Model == "" {
		return fmt.Errorf("ollama model is required")
	}

	if c.Retrieval.BaseURL == "" {
		return fmt.Errorf("retrieval base_url is required")
	}
	if c.Retrieval.MaxCandidates < 1 {
		return fmt.Errorf("retrieval max_candidates must be at least 1")
	}

	if c.Orchestrator.MaxIterations < 1 {
		return fmt.Errorf("orchestrator max_iterations must be at least 1")
	}
	if c.Orchestrator.MaxReflections < 0 {
		return fmt.Errorf("orchestrator max_reflections must not be negative")
	}

	if c.Specialist.MaxConcurrent < 1 {
		return fmt.Errorf("specialist max_concurrent must be at least 1")
	}

	if _, err := time.ParseDuration(c.Specialist.TaskTimeout); err != nil {
		return fmt.Errorf("invalid specialist task_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Orchestrator.JobTimeout); err != nil {
		return fmt.Errorf("invalid orchestrator job_timeout: %w", err)
	}
	if _, err := time.ParseDuration(c.Retrieval.Timeout); err != nil {
		return fmt.Errorf("invalid retrieval timeout: %w", err)
	}

	return nil
}

// Save saves the configuration to a file
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// TaskTimeout returns the parsed per-task timeout.
func (c *Config) TaskTimeout() time.Duration {
	d, err := time.ParseDuration(c.Specialist.TaskTimeout)
	if err != nil {
		return 2 * time.Minute
	}
	return d
}

// JobTimeout returns the parsed per-job timeout.
func (c *Config) JobTimeout() time.Duration {
	d, err := time.ParseDuration(c.Orchestrator.JobTimeout)
	if err != nil {
		return 10 * time.Minute
	}
	return d
}

// IsProduction returns true if running in production environment
func (c *Config) IsProduction() bool {
	env := os.Getenv("ENVIRONMENT")
	return strings.ToLower(env) == "production" || strings.ToLower(env) == "prod"
}
