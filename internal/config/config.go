// Package config loads service configuration from defaults, an optional
// YAML file and GRADER_* environment overrides, in that order of
// precedence.
package config

import (
	"fmt"
	"net"
	"os"
	"strconv"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/answerlab/go-grader/internal/domain"
	"github.com/answerlab/go-grader/internal/retry"
)

// Environment variable names recognized by Load.
const (
	envHost                = "GRADER_HOST"
	envPort                = "GRADER_PORT"
	envConfidenceThreshold = "GRADER_CONFIDENCE_THRESHOLD"
	envSimilarityThreshold = "GRADER_SIMILARITY_THRESHOLD"
	envMaxTextLength       = "GRADER_MAX_TEXT_LENGTH"
	envEmbeddingEnabled    = "GRADER_EMBEDDING_ENABLED"
	envEmbeddingEndpoint   = "GRADER_EMBEDDING_ENDPOINT"
	envDatasetPath         = "GRADER_DATASET_PATH"
	envAuditPath           = "GRADER_AUDIT_PATH"
	envLogLevel            = "GRADER_LOG_LEVEL"
	envLogFormat           = "GRADER_LOG_FORMAT"
)

var validate = validator.New(validator.WithRequiredStructEnabled())

// Config holds every setting of the grading service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Evaluation EvaluationConfig `yaml:"evaluation"`
	Embedding  EmbeddingConfig  `yaml:"embedding"`
	Dataset    DatasetConfig    `yaml:"dataset"`
	Audit      AuditConfig      `yaml:"audit"`
	Logging    LoggingConfig    `yaml:"logging"`
}

// ServerConfig describes the HTTP listener.
type ServerConfig struct {
	Host                   string `yaml:"host"                     validate:"required"`
	Port                   int    `yaml:"port"                     validate:"min=1,max=65535"`
	ReadTimeoutSeconds     int    `yaml:"read_timeout_seconds"     validate:"min=1"`
	WriteTimeoutSeconds    int    `yaml:"write_timeout_seconds"    validate:"min=1"`
	ShutdownTimeoutSeconds int    `yaml:"shutdown_timeout_seconds" validate:"min=1"`
}

// Addr returns the host:port the server binds to.
func (c ServerConfig) Addr() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// ReadTimeout returns the HTTP read timeout.
func (c ServerConfig) ReadTimeout() time.Duration {
	return time.Duration(c.ReadTimeoutSeconds) * time.Second
}

// WriteTimeout returns the HTTP write timeout.
func (c ServerConfig) WriteTimeout() time.Duration {
	return time.Duration(c.WriteTimeoutSeconds) * time.Second
}

// ShutdownTimeout returns the graceful-shutdown budget.
func (c ServerConfig) ShutdownTimeout() time.Duration {
	return time.Duration(c.ShutdownTimeoutSeconds) * time.Second
}

// EvaluationConfig tunes the grading pipeline.
type EvaluationConfig struct {
	ConfidenceThreshold   float64 `yaml:"confidence_threshold"     validate:"gt=0,lte=1"`
	SimilarityThreshold   float64 `yaml:"similarity_threshold"     validate:"gte=0,lte=1"`
	MaxTextLength         int     `yaml:"max_text_length"          validate:"min=1"`
	EnsembleSoftTimeoutMs int     `yaml:"ensemble_soft_timeout_ms" validate:"min=1"`
}

// EnsembleSoftTimeout returns the soft wall-clock budget for the
// ensemble stage.
func (c EvaluationConfig) EnsembleSoftTimeout() time.Duration {
	return time.Duration(c.EnsembleSoftTimeoutMs) * time.Millisecond
}

// EmbeddingConfig describes the optional embedding backend.
type EmbeddingConfig struct {
	Enabled        bool        `yaml:"enabled"`
	Endpoint       string      `yaml:"endpoint"        validate:"required_if=Enabled true,omitempty,url"`
	TimeoutSeconds int         `yaml:"timeout_seconds" validate:"min=1"`
	Retry          RetryConfig `yaml:"retry"`
}

// Timeout returns the per-attempt HTTP timeout.
func (c EmbeddingConfig) Timeout() time.Duration {
	return time.Duration(c.TimeoutSeconds) * time.Second
}

// RetryConfig tunes retries against the embedding backend.
type RetryConfig struct {
	MaxAttempts       int     `yaml:"max_attempts"        validate:"min=1"`
	InitialIntervalMs int     `yaml:"initial_interval_ms" validate:"min=1"`
	MaxIntervalMs     int     `yaml:"max_interval_ms"     validate:"min=1"`
	Multiplier        float64 `yaml:"multiplier"          validate:"gte=1"`
	UseJitter         bool    `yaml:"use_jitter"`
}

// Policy converts the configuration into a retry policy.
func (c RetryConfig) Policy() retry.Policy {
	return retry.Policy{
		MaxAttempts:     c.MaxAttempts,
		InitialInterval: time.Duration(c.InitialIntervalMs) * time.Millisecond,
		MaxInterval:     time.Duration(c.MaxIntervalMs) * time.Millisecond,
		Multiplier:      c.Multiplier,
		UseJitter:       c.UseJitter,
	}
}

// DatasetConfig locates the validation-case database.
type DatasetConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// AuditConfig locates the review audit log.
type AuditConfig struct {
	Path string `yaml:"path" validate:"required"`
}

// LoggingConfig tunes structured logging.
type LoggingConfig struct {
	Level  string `yaml:"level"  validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Host:                   "0.0.0.0",
			Port:                   5001,
			ReadTimeoutSeconds:     10,
			WriteTimeoutSeconds:    30,
			ShutdownTimeoutSeconds: 10,
		},
		Evaluation: EvaluationConfig{
			ConfidenceThreshold:   0.7,
			SimilarityThreshold:   0.5,
			MaxTextLength:         10000,
			EnsembleSoftTimeoutMs: 5000,
		},
		Embedding: EmbeddingConfig{
			Enabled:        false,
			Endpoint:       "",
			TimeoutSeconds: 15,
			Retry: RetryConfig{
				MaxAttempts:       3,
				InitialIntervalMs: 200,
				MaxIntervalMs:     2000,
				Multiplier:        2.0,
				UseJitter:         true,
			},
		},
		Dataset: DatasetConfig{Path: "data/grader.db"},
		Audit:   AuditConfig{Path: "logs/evaluations.jsonl"},
		Logging: LoggingConfig{Level: "info", Format: "text"},
	}
}

// Load builds the effective configuration: defaults, then the YAML file
// at path if one is given, then environment overrides. The result is
// validated before it is returned.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
		// Unmarshal into the defaults so absent keys keep their values.
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	if err := cfg.applyEnvOverrides(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the configuration against its constraints.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidConfig, err)
	}
	return nil
}

func (c *Config) applyEnvOverrides() error {
	if v := os.Getenv(envHost); v != "" {
		c.Server.Host = v
	}
	if v := os.Getenv(envPort); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envPort, err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv(envConfidenceThreshold); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envConfidenceThreshold, err)
		}
		c.Evaluation.ConfidenceThreshold = threshold
	}
	if v := os.Getenv(envSimilarityThreshold); v != "" {
		threshold, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envSimilarityThreshold, err)
		}
		c.Evaluation.SimilarityThreshold = threshold
	}
	if v := os.Getenv(envMaxTextLength); v != "" {
		length, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envMaxTextLength, err)
		}
		c.Evaluation.MaxTextLength = length
	}
	if v := os.Getenv(envEmbeddingEnabled); v != "" {
		enabled, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("parse %s: %w", envEmbeddingEnabled, err)
		}
		c.Embedding.Enabled = enabled
	}
	if v := os.Getenv(envEmbeddingEndpoint); v != "" {
		c.Embedding.Endpoint = v
	}
	if v := os.Getenv(envDatasetPath); v != "" {
		c.Dataset.Path = v
	}
	if v := os.Getenv(envAuditPath); v != "" {
		c.Audit.Path = v
	}
	if v := os.Getenv(envLogLevel); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv(envLogFormat); v != "" {
		c.Logging.Format = v
	}
	return nil
}
