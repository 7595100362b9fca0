package config

import (
	"fmt"
	"os"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"
)

// Config represents the application configuration
type Config struct {
	Source   S3Config      `yaml:"source"`
	Target   S3Config      `yaml:"target"`
	API      APIConfig     `yaml:"api"`
	Pipeline Pipeline      `yaml:"pipeline"`
	Metrics  MetricsConfig `yaml:"metrics"`
	Manifest string        `yaml:"manifest"`
	Journal  string        `yaml:"journal"`
	LogLevel string        `yaml:"log_level"`
}

// S3Config represents S3-compatible storage configuration
type S3Config struct {
	Endpoint  string `yaml:"endpoint"`
	AccessKey string `yaml:"access_key"`
	SecretKey string `yaml:"secret_key"`
	Secure    bool   `yaml:"secure"`
}

// APIConfig represents the metadata registration API configuration
type APIConfig struct {
	BaseURL        string `yaml:"base_url"`
	Token          string `yaml:"token"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	Retries        int    `yaml:"retries"`
	BackoffMs      int    `yaml:"backoff_ms"`
}

// Pipeline represents pipeline-specific configuration
type Pipeline struct {
	Bucket             string `yaml:"bucket"`
	TransferWorkers    int    `yaml:"transfer_workers"`
	MetadataWorkers    int    `yaml:"metadata_workers"`
	QueueDepth         int    `yaml:"queue_depth"`
	MultipartThreshold int64  `yaml:"multipart_threshold"`
	PartSize           int64  `yaml:"part_size"`
	Retries            int    `yaml:"retries"`
	RetryBackoffMs     int    `yaml:"retry_backoff_ms"`
}

// MetricsConfig represents the metrics listener configuration
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled"`
	Addr    string `yaml:"addr"`
}

// Load loads configuration from file and command line flags
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	cfg := &Config{
		LogLevel: "info",
		API: APIConfig{
			TimeoutSeconds: 30,
			Retries:        3,
			BackoffMs:      500,
		},
		Pipeline: Pipeline{
			// Registration is the slow stage, so it gets the larger pool.
			TransferWorkers:    4,
			MetadataWorkers:    8,
			MultipartThreshold: 104857600, // 100MB
			PartSize:           67108864,  // 64MB
			Retries:            5,
			RetryBackoffMs:     500,
		},
		Metrics: MetricsConfig{
			Addr: ":8080",
		},
	}

	if configFile != "" {
		if err := loadFromFile(cfg, configFile); err != nil {
			return nil, fmt.Errorf("failed to load config file: %w", err)
		}
	}

	if err := loadFromFlags(cfg, flags); err != nil {
		return nil, fmt.Errorf("failed to load flags: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func loadFromFile(cfg *Config, filename string) error {
	data, err := os.ReadFile(filename)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func loadFromFlags(cfg *Config, flags *pflag.FlagSet) error {
	if flags.Changed("src-endpoint") {
		cfg.Source.Endpoint, _ = flags.GetString("src-endpoint")
	}
	if flags.Changed("src-access-key") {
		cfg.Source.AccessKey, _ = flags.GetString("src-access-key")
	}
	if flags.Changed("src-secret-key") {
		cfg.Source.SecretKey, _ = flags.GetString("src-secret-key")
	}
	if flags.Changed("src-secure") {
		cfg.Source.Secure, _ = flags.GetBool("src-secure")
	}

	if flags.Changed("dst-endpoint") {
		cfg.Target.Endpoint, _ = flags.GetString("dst-endpoint")
	}
	if flags.Changed("dst-access-key") {
		cfg.Target.AccessKey, _ = flags.GetString("dst-access-key")
	}
	if flags.Changed("dst-secret-key") {
		cfg.Target.SecretKey, _ = flags.GetString("dst-secret-key")
	}
	if flags.Changed("dst-secure") {
		cfg.Target.Secure, _ = flags.GetBool("dst-secure")
	}

	if flags.Changed("api-url") {
		cfg.API.BaseURL, _ = flags.GetString("api-url")
	}
	if flags.Changed("api-token") {
		cfg.API.Token, _ = flags.GetString("api-token")
	}
	if flags.Changed("api-timeout") {
		cfg.API.TimeoutSeconds, _ = flags.GetInt("api-timeout")
	}

	if flags.Changed("bucket") {
		cfg.Pipeline.Bucket, _ = flags.GetString("bucket")
	}
	if flags.Changed("transfer-workers") {
		cfg.Pipeline.TransferWorkers, _ = flags.GetInt("transfer-workers")
	}
	if flags.Changed("metadata-workers") {
		cfg.Pipeline.MetadataWorkers, _ = flags.GetInt("metadata-workers")
	}
	if flags.Changed("queue-depth") {
		cfg.Pipeline.QueueDepth, _ = flags.GetInt("queue-depth")
	}
	if flags.Changed("multipart-threshold") {
		cfg.Pipeline.MultipartThreshold, _ = flags.GetInt64("multipart-threshold")
	}
	if flags.Changed("part-size") {
		cfg.Pipeline.PartSize, _ = flags.GetInt64("part-size")
	}
	if flags.Changed("retries") {
		cfg.Pipeline.Retries, _ = flags.GetInt("retries")
	}
	if flags.Changed("retry-backoff-ms") {
		cfg.Pipeline.RetryBackoffMs, _ = flags.GetInt("retry-backoff-ms")
	}

	if flags.Changed("manifest") {
		cfg.Manifest, _ = flags.GetString("manifest")
	}
	if flags.Changed("journal") {
		cfg.Journal, _ = flags.GetString("journal")
	}
	if flags.Changed("metrics") {
		cfg.Metrics.Enabled, _ = flags.GetBool("metrics")
	}
	if flags.Changed("metrics-addr") {
		cfg.Metrics.Addr, _ = flags.GetString("metrics-addr")
	}
	if flags.Changed("log-level") {
		cfg.LogLevel, _ = flags.GetString("log-level")
	}

	return nil
}

func (c *Config) validate() error {
	if c.Source.Endpoint == "" {
		return fmt.Errorf("source endpoint is required")
	}
	if c.Source.AccessKey == "" {
		return fmt.Errorf("source access key is required")
	}
	if c.Source.SecretKey == "" {
		return fmt.Errorf("source secret key is required")
	}

	if c.Target.Endpoint == "" {
		return fmt.Errorf("target endpoint is required")
	}
	if c.Target.AccessKey == "" {
		return fmt.Errorf("target access key is required")
	}
	if c.Target.SecretKey == "" {
		return fmt.Errorf("target secret key is required")
	}

	if c.API.BaseURL == "" {
		return fmt.Errorf("api base url is required")
	}

	if c.Pipeline.Bucket == "" {
		return fmt.Errorf("destination bucket is required")
	}
	if c.Manifest == "" {
		return fmt.Errorf("manifest is required")
	}

	if c.Pipeline.TransferWorkers <= 0 {
		return fmt.Errorf("transfer workers must be positive")
	}
	if c.Pipeline.MetadataWorkers <= 0 {
		return fmt.Errorf("metadata workers must be positive")
	}
	if c.Pipeline.QueueDepth < 0 {
		return fmt.Errorf("queue depth cannot be negative")
	}

	if c.Pipeline.PartSize < 5*1024*1024 { // 5MB minimum for S3
		return fmt.Errorf("part size must be at least 5MB")
	}

	return nil
}
