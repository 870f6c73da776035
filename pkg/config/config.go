package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// Embedding providers supported by the vector database module config.
const (
	ProviderOpenAI = "openai"
	ProviderOllama = "ollama"
)

// Defaults applied when the config file omits optional fields.
const (
	DefaultCollectionName = "MailDoc"
	DefaultQueueMaxSize   = 100
	DefaultWorkerThreads  = 4
	DefaultPollInterval   = 2.0
	DefaultLogLevel       = "info"
)

// PathsConfig holds the staging directories and the ledger file location
type PathsConfig struct {
	WaitDir    string `yaml:"wait_dir"`
	RunDir     string `yaml:"run_dir"`
	BuggyDir   string `yaml:"buggy_dir"`
	SQLitePath string `yaml:"sqlite_path"`
}

// EmbeddingConfig holds the server-side vectorizer settings
type EmbeddingConfig struct {
	Provider         string `yaml:"provider"`
	Model            string `yaml:"model"`
	VectorDimensions int    `yaml:"vector_dimensions"`
}

// WeaviateConfig holds vector database connection settings
type WeaviateConfig struct {
	Host           string          `yaml:"host"`
	APIKey         string          `yaml:"api_key"`
	CollectionName string          `yaml:"collection_name"`
	Embedding      EmbeddingConfig `yaml:"embedding"`
}

// QueueConfig holds work queue settings
type QueueConfig struct {
	MaxSize int `yaml:"maxsize"`
}

// WorkerConfig holds worker pool settings
type WorkerConfig struct {
	Threads      int     `yaml:"threads"`
	PollInterval float64 `yaml:"poll_interval"`
}

// LoggingConfig holds logger settings
type LoggingConfig struct {
	Level string `yaml:"level"`
	JSON  bool   `yaml:"json"`
}

// MetricsConfig holds the optional Prometheus endpoint settings.
// An empty ListenAddr disables the metrics server.
type MetricsConfig struct {
	ListenAddr string `yaml:"listen_addr"`
}

// Config is the root configuration for the mailvec pipeline
type Config struct {
	Paths    PathsConfig    `yaml:"paths"`
	Weaviate WeaviateConfig `yaml:"weaviate"`
	Queue    QueueConfig    `yaml:"queue"`
	Worker   WorkerConfig   `yaml:"worker"`
	Logging  LoggingConfig  `yaml:"logging"`
	Metrics  MetricsConfig  `yaml:"metrics"`
}

// Load reads and validates a YAML config file
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	cfg.applyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Weaviate.CollectionName == "" {
		c.Weaviate.CollectionName = DefaultCollectionName
	}
	if c.Queue.MaxSize <= 0 {
		c.Queue.MaxSize = DefaultQueueMaxSize
	}
	if c.Worker.Threads <= 0 {
		c.Worker.Threads = DefaultWorkerThreads
	}
	if c.Worker.PollInterval <= 0 {
		c.Worker.PollInterval = DefaultPollInterval
	}
	if c.Logging.Level == "" {
		c.Logging.Level = DefaultLogLevel
	}
}

// Validate checks that all required fields are present and consistent
func (c *Config) Validate() error {
	if c.Paths.WaitDir == "" {
		return fmt.Errorf("paths.wait_dir is required")
	}
	if c.Paths.RunDir == "" {
		return fmt.Errorf("paths.run_dir is required")
	}
	if c.Paths.BuggyDir == "" {
		return fmt.Errorf("paths.buggy_dir is required")
	}
	if c.Paths.SQLitePath == "" {
		return fmt.Errorf("paths.sqlite_path is required")
	}
	if c.Weaviate.Host == "" {
		return fmt.Errorf("weaviate.host is required")
	}
	if c.Weaviate.Embedding.Model == "" {
		return fmt.Errorf("weaviate.embedding.model is required")
	}
	if c.Weaviate.Embedding.VectorDimensions <= 0 {
		return fmt.Errorf("weaviate.embedding.vector_dimensions must be positive")
	}
	switch c.Weaviate.Embedding.Provider {
	case ProviderOpenAI, ProviderOllama:
	default:
		return fmt.Errorf("weaviate.embedding.provider must be %q or %q, got %q",
			ProviderOpenAI, ProviderOllama, c.Weaviate.Embedding.Provider)
	}
	return nil
}
