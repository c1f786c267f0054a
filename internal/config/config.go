// Package config loads the Meemo server configuration from YAML and
// environment variables.
package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Addr        string   `yaml:"addr"`
	APIKey      string   `yaml:"api_key"`
	CORSOrigins []string `yaml:"cors_origins"`
}

// ModelConfig holds generation model settings.
type ModelConfig struct {
	Name        string  `yaml:"name"`
	Temperature float64 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
}

// CourseConfig selects the curriculum taught to every session.
type CourseConfig struct {
	Topic string `yaml:"topic"`
	// File points at a YAML course definition. Empty means the
	// built-in curriculum for Topic.
	File  string `yaml:"file"`
	Watch bool   `yaml:"watch"`
}

// RateLimitConfig throttles the generation port globally.
type RateLimitConfig struct {
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	Burst             int     `yaml:"burst"`
}

// RetryConfig bounds generation retries per node invocation.
type RetryConfig struct {
	MaxAttempts     int           `yaml:"max_attempts"`
	InitialInterval time.Duration `yaml:"initial_interval"`
	BackoffFactor   float64       `yaml:"backoff_factor"`
	MaxInterval     time.Duration `yaml:"max_interval"`
}

// SessionConfig selects and tunes the session store backend.
type SessionConfig struct {
	// Backend is one of "memory", "postgres", "etcd".
	Backend       string        `yaml:"backend"`
	TTL           time.Duration `yaml:"ttl"`
	SweepSchedule string        `yaml:"sweep_schedule"`
	PostgresDSN   string        `yaml:"postgres_dsn"`
	EtcdEndpoints []string      `yaml:"etcd_endpoints"`
}

// AssetsConfig points at the premade visual asset bucket.
type AssetsConfig struct {
	S3Bucket string `yaml:"s3_bucket"`
	S3Prefix string `yaml:"s3_prefix"`
	S3Region string `yaml:"s3_region"`
}

// PolicyConfig tunes the routing heuristics the state machine treats
// as configurable rather than hard-coded.
type PolicyConfig struct {
	// QuestionExpr is an expr-lang expression over {text, stage}
	// deciding whether an utterance looks like a question.
	QuestionExpr string `yaml:"question_expr"`
	// UseClassifier additionally consults the LLM intent classifier.
	UseClassifier bool     `yaml:"use_classifier"`
	SkipKeywords  []string `yaml:"skip_keywords"`
}

// Config is the complete server configuration.
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Model     ModelConfig     `yaml:"model"`
	Course    CourseConfig    `yaml:"course"`
	RateLimit RateLimitConfig `yaml:"rate_limit"`
	Retry     RetryConfig     `yaml:"retry"`
	Session   SessionConfig   `yaml:"session"`
	Assets    AssetsConfig    `yaml:"assets"`
	Policy    PolicyConfig    `yaml:"policy"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Addr:        ":8080",
			CORSOrigins: []string{"http://localhost:3000", "http://localhost:5173"},
		},
		Model: ModelConfig{
			Name:        "claude-sonnet-4-20250514",
			Temperature: 0.7,
			MaxTokens:   2048,
		},
		Course: CourseConfig{Topic: "Cell Biology"},
		RateLimit: RateLimitConfig{
			RequestsPerSecond: 2.0,
			Burst:             10,
		},
		Retry: RetryConfig{
			MaxAttempts:     3,
			InitialInterval: time.Second,
			BackoffFactor:   2.0,
			MaxInterval:     10 * time.Second,
		},
		Session: SessionConfig{
			Backend:       "memory",
			TTL:           0,
			SweepSchedule: "@every 10m",
		},
		Policy: PolicyConfig{
			QuestionExpr: `text contains "?"`,
			SkipKeywords: []string{"skip", "let's start", "lets start", "no goal"},
		},
	}
}

// Load reads configuration from path, falling back to defaults for any
// omitted field, then applies environment overrides. An empty path
// returns the defaults with environment overrides applied.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config: %w", err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// applyEnv overrides select fields from MEEMO_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("MEEMO_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
	if v := os.Getenv("MEEMO_API_KEY"); v != "" {
		cfg.Server.APIKey = v
	}
	if v := os.Getenv("MEEMO_MODEL"); v != "" {
		cfg.Model.Name = v
	}
	if v := os.Getenv("MEEMO_COURSE"); v != "" {
		cfg.Course.Topic = v
	}
	if v := os.Getenv("MEEMO_SESSION_BACKEND"); v != "" {
		cfg.Session.Backend = v
	}
	if v := os.Getenv("MEEMO_POSTGRES_DSN"); v != "" {
		cfg.Session.PostgresDSN = v
	}
	if v := os.Getenv("MEEMO_RATE_LIMIT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil && f > 0 {
			cfg.RateLimit.RequestsPerSecond = f
		}
	}
}

// Validate checks for configuration mistakes that should stop startup.
func (c *Config) Validate() error {
	switch c.Session.Backend {
	case "memory", "postgres", "etcd":
	default:
		return fmt.Errorf("unknown session backend %q", c.Session.Backend)
	}
	if c.Session.Backend == "postgres" && c.Session.PostgresDSN == "" {
		return fmt.Errorf("session backend postgres requires postgres_dsn")
	}
	if c.Session.Backend == "etcd" && len(c.Session.EtcdEndpoints) == 0 {
		return fmt.Errorf("session backend etcd requires etcd_endpoints")
	}
	if c.Retry.MaxAttempts < 1 {
		return fmt.Errorf("retry max_attempts must be >= 1")
	}
	if c.RateLimit.RequestsPerSecond <= 0 {
		return fmt.Errorf("rate_limit requests_per_second must be > 0")
	}
	return nil
}
