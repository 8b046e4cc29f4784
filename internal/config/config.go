// Package config handles configuration loading and validation.
package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
)

// Config holds all application configuration.
type Config struct {
	// Prediction configuration
	Prediction PredictionConfig `yaml:"prediction"`

	// Judge configuration
	Judge JudgeConfig `yaml:"judge"`

	// Match configuration
	Match MatchConfig `yaml:"match"`

	// Extract configuration
	Extract ExtractConfig `yaml:"extract"`

	// Split configuration
	Split SplitConfig `yaml:"split"`

	// Evaluation configuration
	Eval EvalConfig `yaml:"eval"`

	// Cache configuration
	Cache CacheConfig `yaml:"cache"`

	// Bus configuration
	Bus BusConfig `yaml:"bus"`

	// Logging configuration
	Log LogConfig `yaml:"log"`
}

// PredictionConfig holds settings for the external diagnosis-prediction capability.
type PredictionConfig struct {
	BaseURL    string        `envconfig:"CDI_PREDICT_BASE_URL" yaml:"base_url"`
	APIKey     string        `envconfig:"CDI_PREDICT_API_KEY" yaml:"api_key"`
	Model      string        `envconfig:"CDI_PREDICT_MODEL" yaml:"model"`
	Timeout    time.Duration `envconfig:"CDI_PREDICT_TIMEOUT" yaml:"timeout"`
	MaxRetries int           `envconfig:"CDI_PREDICT_MAX_RETRIES" yaml:"max_retries"`
	// RatePerMinute caps outgoing calls. 0 disables the limiter.
	RatePerMinute int `envconfig:"CDI_PREDICT_RATE_PER_MINUTE" yaml:"rate_per_minute"`
	// FilterDocumented drops predictions already present in the narrative's
	// diagnosis sections.
	FilterDocumented bool `envconfig:"CDI_PREDICT_FILTER_DOCUMENTED" yaml:"filter_documented"`
}

// JudgeConfig holds settings for the optional semantic-equivalence capability.
type JudgeConfig struct {
	Enabled bool          `envconfig:"CDI_JUDGE_ENABLED" yaml:"enabled"`
	Model   string        `envconfig:"CDI_JUDGE_MODEL" yaml:"model"`
	Timeout time.Duration `envconfig:"CDI_JUDGE_TIMEOUT" yaml:"timeout"`
}

// MatchConfig holds label-set matcher settings.
type MatchConfig struct {
	// Threshold is the minimum similarity for a candidate pair.
	Threshold float64 `envconfig:"CDI_MATCH_THRESHOLD" yaml:"threshold"`
	// SynonymsFile points at a YAML synonym table for the normalizer.
	// Empty uses the built-in clinical equivalence groups.
	SynonymsFile string `envconfig:"CDI_SYNONYMS_FILE" yaml:"synonyms_file"`
}

// ExtractConfig holds checklist/query extraction settings.
type ExtractConfig struct {
	// AllSections processes every recognized checklist section instead of
	// only the first.
	AllSections bool `envconfig:"CDI_EXTRACT_ALL_SECTIONS" yaml:"all_sections"`
	// MinMentionLen discards extracted mention text shorter than this.
	MinMentionLen int `envconfig:"CDI_EXTRACT_MIN_MENTION_LEN" yaml:"min_mention_len"`
}

// SplitConfig holds stratified split settings.
type SplitConfig struct {
	Train      float64 `envconfig:"CDI_SPLIT_TRAIN" yaml:"train"`
	Validation float64 `envconfig:"CDI_SPLIT_VALIDATION" yaml:"validation"`
	Test       float64 `envconfig:"CDI_SPLIT_TEST" yaml:"test"`
	Seed       int64   `envconfig:"CDI_SPLIT_SEED" yaml:"seed"`
	// RequireAllSplits makes the splitter fail when a category cannot place
	// at least one case in every partition.
	RequireAllSplits bool `envconfig:"CDI_SPLIT_REQUIRE_ALL" yaml:"require_all_splits"`
}

// EvalConfig holds batch evaluation settings.
type EvalConfig struct {
	Workers         int    `envconfig:"CDI_EVAL_WORKERS" yaml:"workers"`
	OutputDir       string `envconfig:"CDI_EVAL_OUTPUT_DIR" yaml:"output_dir"`
	CheckpointFile  string `envconfig:"CDI_EVAL_CHECKPOINT" yaml:"checkpoint_file"`
	CheckpointEvery int    `envconfig:"CDI_EVAL_CHECKPOINT_EVERY" yaml:"checkpoint_every"`
}

// CacheConfig holds cache settings for prediction and judgment results.
type CacheConfig struct {
	Type     string `envconfig:"CDI_CACHE_TYPE" yaml:"type"`
	Size     int    `envconfig:"CDI_CACHE_SIZE" yaml:"size"`
	RedisURL string `envconfig:"CDI_REDIS_URL" yaml:"redis_url"`
}

// BusConfig holds event bus settings.
type BusConfig struct {
	Type         string `envconfig:"CDI_BUS_TYPE" yaml:"type"`
	KafkaBrokers string `envconfig:"CDI_KAFKA_BROKERS" yaml:"kafka_brokers"`
	KafkaGroup   string `envconfig:"CDI_KAFKA_GROUP" yaml:"kafka_group"`
}

// LogConfig holds logging settings.
type LogConfig struct {
	Level  string `envconfig:"CDI_LOG_LEVEL" yaml:"level"`
	Format string `envconfig:"CDI_LOG_FORMAT" yaml:"format"`
}

// Load loads configuration from environment variables and optional config file.
func Load(configPath string) (*Config, error) {
	cfg := &Config{}

	// Set defaults first
	setDefaults(cfg)

	// Load from YAML file if provided (overrides defaults)
	if configPath != "" {
		if err := loadFromFile(cfg, configPath); err != nil {
			return nil, fmt.Errorf("loading config file: %w", err)
		}
	}

	// Override with environment variables (highest priority)
	if err := envconfig.Process("", cfg); err != nil {
		return nil, fmt.Errorf("processing env config: %w", err)
	}

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

// LoadFromEnv loads configuration from environment variables only.
func LoadFromEnv() (*Config, error) {
	return Load("")
}

func loadFromFile(cfg *Config, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, cfg)
}

func setDefaults(cfg *Config) {
	cfg.Prediction = PredictionConfig{
		Model:            "gpt-4.1",
		Timeout:          120 * time.Second,
		MaxRetries:       5,
		RatePerMinute:    60,
		FilterDocumented: true,
	}

	cfg.Judge = JudgeConfig{
		Enabled: false,
		Model:   "gpt-5-nano",
		Timeout: 30 * time.Second,
	}

	cfg.Match = MatchConfig{
		Threshold: 0.5,
	}

	cfg.Extract = ExtractConfig{
		AllSections:   false,
		MinMentionLen: 4,
	}

	cfg.Split = SplitConfig{
		Train:      0.8,
		Validation: 0.1,
		Test:       0.1,
		Seed:       42,
	}

	cfg.Eval = EvalConfig{
		Workers:         4,
		OutputDir:       "results",
		CheckpointEvery: 10,
	}

	cfg.Cache = CacheConfig{
		Type:     "memory",
		Size:     10000,
		RedisURL: "redis://localhost:6379",
	}

	cfg.Bus = BusConfig{
		Type: "memory",
	}

	cfg.Log = LogConfig{
		Level:  "info",
		Format: "text",
	}
}

// Validate validates the configuration.
func (c *Config) Validate() error {
	var errs []string

	// Prediction validation
	if c.Prediction.Timeout <= 0 {
		errs = append(errs, "prediction timeout must be positive")
	}

	if c.Prediction.MaxRetries < 0 {
		errs = append(errs, "prediction max_retries cannot be negative")
	}

	if c.Prediction.RatePerMinute < 0 {
		errs = append(errs, "prediction rate_per_minute cannot be negative")
	}

	// Match validation
	if c.Match.Threshold < 0 || c.Match.Threshold > 1 {
		errs = append(errs, "match threshold must be between 0 and 1")
	}

	// Split validation
	sum := c.Split.Train + c.Split.Validation + c.Split.Test
	if sum < 0.999 || sum > 1.001 {
		errs = append(errs, fmt.Sprintf("split proportions must sum to 1, got %.3f", sum))
	}

	if c.Split.Train <= 0 || c.Split.Validation <= 0 || c.Split.Test <= 0 {
		errs = append(errs, "split proportions must all be positive")
	}

	// Eval validation
	if c.Eval.Workers < 1 {
		errs = append(errs, "eval workers must be at least 1")
	}

	if c.Eval.CheckpointEvery < 1 {
		errs = append(errs, "eval checkpoint_every must be at least 1")
	}

	// Cache validation
	validCacheTypes := map[string]bool{"memory": true, "redis": true, "none": true}
	if !validCacheTypes[c.Cache.Type] {
		errs = append(errs, fmt.Sprintf("invalid cache type: %s (must be memory, redis, or none)", c.Cache.Type))
	}

	// Bus validation
	validBusTypes := map[string]bool{"memory": true, "kafka": true}
	if !validBusTypes[c.Bus.Type] {
		errs = append(errs, fmt.Sprintf("invalid bus type: %s (must be memory or kafka)", c.Bus.Type))
	}

	// Log validation
	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
	if !validLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("invalid log level: %s (must be debug, info, warn, or error)", c.Log.Level))
	}

	validFormats := map[string]bool{"text": true, "json": true}
	if !validFormats[c.Log.Format] {
		errs = append(errs, fmt.Sprintf("invalid log format: %s (must be text or json)", c.Log.Format))
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}

	return nil
}
