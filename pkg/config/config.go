package config

import (
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

var validate = validator.New()

// Config represents nbayes configuration
type Config struct {
	// Input files
	Data DataConfig `yaml:"data"`

	// Model settings
	Learning LearningConfig `yaml:"learning"`

	// Redis count mirror
	Redis RedisConfig `yaml:"redis"`

	// Logging settings
	Logging LoggingConfig `yaml:"logging"`

	// Prometheus textfile output
	Metrics MetricsConfig `yaml:"metrics"`
}

// DataConfig contains dataset file locations
type DataConfig struct {
	TrainData    string `yaml:"train_data"`
	TrainClasses string `yaml:"train_classes"`
	TestData     string `yaml:"test_data"`
	TestClasses  string `yaml:"test_classes"`
	Vocabulary   string `yaml:"vocabulary"`
}

// LearningConfig contains model settings
type LearningConfig struct {
	// What to do with values outside an established domain: reject or skip
	UnknownValues string `yaml:"unknown_values" validate:"oneof=reject skip"`

	// Attribute value that marks an unknown position in a query
	MissingValue int `yaml:"missing_value"`

	// Feed training data in batches of this size, 0 = one batch
	BatchSize int `yaml:"batch_size" validate:"gte=0"`

	// Optional explicit domain shared by every attribute, e.g. [0, 1]
	Domain []int `yaml:"domain,omitempty"`

	// Optional explicit class set
	Classes []int `yaml:"classes,omitempty"`
}

// RedisConfig contains Redis mirror settings
type RedisConfig struct {
	Enabled     bool   `yaml:"enabled"`
	RedisURL    string `yaml:"redis_url" validate:"required_if=Enabled true"`
	KeyPrefix   string `yaml:"key_prefix" validate:"required_if=Enabled true"`
	DatabaseNum int    `yaml:"database_num" validate:"gte=0,lte=15"`
	KeyTTL      string `yaml:"key_ttl"` // Duration string like "168h", empty = no expiry
	BatchSize   int    `yaml:"batch_size" validate:"gte=0"`
}

// LoggingConfig contains logging settings
type LoggingConfig struct {
	Level  string `yaml:"level" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" validate:"oneof=text json"`
	File   string `yaml:"file"` // log file path, empty = stderr
}

// MetricsConfig contains metrics settings
type MetricsConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Textfile  string `yaml:"textfile" validate:"required_if=Enabled true"`
	Namespace string `yaml:"namespace" validate:"required"`
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Data: DataConfig{
			TrainData:    "mails.data",
			TrainClasses: "mails.class",
			TestData:     "mails_test.data",
			TestClasses:  "mails_test.class",
			Vocabulary:   "vocab.txt",
		},
		Learning: LearningConfig{
			UnknownValues: "reject",
			MissingValue:  -1,
			BatchSize:     0,
		},
		Redis: RedisConfig{
			Enabled:     false,
			RedisURL:    "redis://localhost:6379",
			KeyPrefix:   "nbayes",
			DatabaseNum: 0,
			KeyTTL:      "168h",
			BatchSize:   500,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
		Metrics: MetricsConfig{
			Enabled:   false,
			Textfile:  "nbayes.prom",
			Namespace: "nbayes",
		},
	}
}

// LoadConfig loads configuration from file
func LoadConfig(configPath string) (*Config, error) {
	// Start with defaults
	config := DefaultConfig()

	// If no config file specified, return defaults
	if configPath == "" {
		return config, nil
	}

	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", configPath)
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, config); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return config, nil
}

// SaveConfig saves configuration to file
func (c *Config) SaveConfig(configPath string) error {
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return err
	}

	if slices.Contains(c.Learning.Domain, c.Learning.MissingValue) {
		return fmt.Errorf("missing_value %d is part of the attribute domain", c.Learning.MissingValue)
	}

	if c.Redis.KeyTTL != "" {
		if _, err := time.ParseDuration(c.Redis.KeyTTL); err != nil {
			return fmt.Errorf("invalid redis key_ttl %q: %w", c.Redis.KeyTTL, err)
		}
	}

	return nil
}

// RedisKeyTTL returns the parsed key TTL, zero when unset
func (c *Config) RedisKeyTTL() time.Duration {
	if c.Redis.KeyTTL == "" {
		return 0
	}
	d, _ := time.ParseDuration(c.Redis.KeyTTL)
	return d
}
