// Package config loads advisor configuration from defaults, an optional
// YAML file and ADVISOR_ environment variables, in that order.
package config

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"
)

// PathEnvVar overrides the config file location.
const PathEnvVar = "CONFIG_PATH"

// EnvPrefix is stripped from environment keys: ADVISOR_LLM_MODEL sets
// llm.model.
const EnvPrefix = "ADVISOR_"

// DefaultPaths are searched in order when CONFIG_PATH is unset.
var DefaultPaths = []string{"advisor.yaml", "advisor.yml", "/etc/advisor/advisor.yaml"}

type Config struct {
	Server   ServerConfig   `koanf:"server"`
	LLM      LLMConfig      `koanf:"llm"`
	Pricing  PricingConfig  `koanf:"pricing"`
	Budget   BudgetConfig   `koanf:"budget"`
	Registry RegistryConfig `koanf:"registry"`
	Neo4j    Neo4jConfig    `koanf:"neo4j"`
	Qdrant   QdrantConfig   `koanf:"qdrant"`
	Embed    EmbedConfig    `koanf:"embed"`
	NATS     NATSConfig     `koanf:"nats"`
	Redis    RedisConfig    `koanf:"redis"`
	History  HistoryConfig  `koanf:"history"`
	Log      LogConfig      `koanf:"log"`
}

type ServerConfig struct {
	Addr         string        `koanf:"addr" validate:"required"`
	ReadTimeout  time.Duration `koanf:"read_timeout" validate:"gt=0"`
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"gt=0"`
}

// LLMConfig selects the generator backend and the extraction policy.
type LLMConfig struct {
	Provider    string        `koanf:"provider" validate:"oneof=ollama gemini openai"`
	BaseURL     string        `koanf:"base_url"`
	Model       string        `koanf:"model" validate:"required"`
	APIKey      string        `koanf:"api_key"`
	Timeout     time.Duration `koanf:"timeout" validate:"gt=0"`
	MaxAttempts int           `koanf:"max_attempts" validate:"gte=3,lte=10"`
	Backoff     time.Duration `koanf:"backoff" validate:"gte=0"`
	RPS         float64       `koanf:"rps" validate:"gte=0"`
	Burst       int           `koanf:"burst" validate:"gte=0"`

	Propose       bool `koanf:"propose"`
	MaxCandidates int  `koanf:"max_candidates" validate:"gt=0"`

	BreakerThreshold int           `koanf:"breaker_threshold" validate:"gte=0"`
	BreakerCooldown  time.Duration `koanf:"breaker_cooldown" validate:"gte=0"`

	// Summary* select a different backend for the final summary; empty
	// values reuse the main one.
	SummaryProvider string `koanf:"summary_provider" validate:"omitempty,oneof=ollama gemini openai"`
	SummaryModel    string `koanf:"summary_model"`
	SummaryAPIKey   string `koanf:"summary_api_key"`
}

type BracketConfig struct {
	UpToYear int     `koanf:"up_to_year" yaml:"up_to_year" validate:"gte=0"`
	Rate     float64 `koanf:"rate" yaml:"rate" validate:"gt=0,lt=1"`
}

// PricingConfig overrides the default depreciation policy. Zero values keep
// the defaults.
type PricingConfig struct {
	RefYear  int             `koanf:"ref_year" validate:"gte=0"`
	Floor    float64         `koanf:"floor" validate:"gte=0"`
	Band     float64         `koanf:"band" validate:"gte=0,lte=0.5"`
	Brackets []BracketConfig `koanf:"brackets" validate:"dive"`
}

type BudgetConfig struct {
	LowerTolerance float64 `koanf:"lower_tolerance" validate:"gte=0,lt=1"`
	UpperTolerance float64 `koanf:"upper_tolerance" validate:"gte=0"`
}

type RegistryConfig struct {
	Source string `koanf:"source" validate:"oneof=csv neo4j"`
	Path   string `koanf:"path" validate:"required_if=Source csv"`
}

type Neo4jConfig struct {
	URI      string `koanf:"uri"`
	User     string `koanf:"user"`
	Password string `koanf:"password"`
}

// QdrantConfig enables semantic model resolution when Addr is set.
type QdrantConfig struct {
	Addr       string  `koanf:"addr"`
	Collection string  `koanf:"collection" validate:"required"`
	MinScore   float64 `koanf:"min_score" validate:"gt=0,lte=1"`
	Dims       int     `koanf:"dims" validate:"gt=0"`
}

type EmbedConfig struct {
	BaseURL string `koanf:"base_url"`
	Model   string `koanf:"model" validate:"required"`
}

// NATSConfig enables run publishing when URL is set.
type NATSConfig struct {
	URL     string `koanf:"url"`
	Subject string `koanf:"subject" validate:"required"`
}

// RedisConfig enables the shared enrichment cache when Addr is set.
// Otherwise an in-process cache is used.
type RedisConfig struct {
	Addr     string        `koanf:"addr"`
	Password string        `koanf:"password"`
	DB       int           `koanf:"db" validate:"gte=0"`
	TTL      time.Duration `koanf:"ttl" validate:"gte=0"`
}

type HistoryConfig struct {
	DBPath string `koanf:"db_path"`
}

type LogConfig struct {
	Level  string `koanf:"level" validate:"oneof=debug info warn error"`
	Format string `koanf:"format" validate:"oneof=text json"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Addr: ":8080", ReadTimeout: 10 * time.Second, WriteTimeout: 5 * time.Minute},
		LLM: LLMConfig{
			Provider:         "ollama",
			BaseURL:          "http://localhost:11434",
			Model:            "llama3.1:8b",
			Timeout:          45 * time.Second,
			MaxAttempts:      5,
			Backoff:          500 * time.Millisecond,
			RPS:              2,
			Burst:            2,
			Propose:          true,
			MaxCandidates:    25,
			BreakerThreshold: 5,
			BreakerCooldown:  30 * time.Second,
		},
		Pricing:  PricingConfig{Floor: 5000, Band: 0.10},
		Budget:   BudgetConfig{LowerTolerance: 0.13, UpperTolerance: 0.13},
		Registry: RegistryConfig{Source: "csv", Path: "data/registry.csv"},
		Neo4j:    Neo4jConfig{URI: "bolt://localhost:7687", User: "neo4j"},
		Qdrant:   QdrantConfig{Collection: "vehicle_models", MinScore: 0.82, Dims: 768},
		Embed:    EmbedConfig{BaseURL: "http://localhost:11434", Model: "nomic-embed-text"},
		NATS:     NATSConfig{Subject: "advisor.runs"},
		Redis:    RedisConfig{TTL: 24 * time.Hour},
		History:  HistoryConfig{DBPath: "advisor-history.db"},
		Log:      LogConfig{Level: "info", Format: "text"},
	}
}

// Load reads the configuration. path overrides file discovery; an explicit
// path that does not exist is an error.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(Default(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("config: load defaults: %w", err)
	}

	if path == "" {
		path = findFile()
	} else if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("config: load %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("config: load env: %w", err)
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("config: unmarshal: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func findFile() string {
	if p := os.Getenv(PathEnvVar); p != "" {
		return p
	}
	for _, p := range DefaultPaths {
		if _, err := os.Stat(p); err == nil {
			return p
		}
	}
	return ""
}

// envKey maps ADVISOR_LLM_MAX_ATTEMPTS to llm.max_attempts. Only the first
// underscore separates the section.
func envKey(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	return strings.Replace(key, "_", ".", 1)
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field ranges and cross-field rules.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	for i := 1; i < len(c.Pricing.Brackets); i++ {
		prev, cur := c.Pricing.Brackets[i-1], c.Pricing.Brackets[i]
		if cur.UpToYear != 0 && cur.UpToYear <= prev.UpToYear {
			return errors.New("config: pricing brackets must ascend")
		}
	}
	if c.LLM.Provider != "ollama" && c.LLM.APIKey == "" {
		return fmt.Errorf("config: llm.api_key is required for %s", c.LLM.Provider)
	}
	return nil
}

// SlogLevel returns the configured log level.
func (c *Config) SlogLevel() slog.Level {
	var l slog.Level
	if err := l.UnmarshalText([]byte(c.Log.Level)); err != nil {
		return slog.LevelInfo
	}
	return l
}

// Logger builds the process logger.
func (c *Config) Logger() *slog.Logger {
	opts := &slog.HandlerOptions{Level: c.SlogLevel()}
	if c.Log.Format == "json" {
		return slog.New(slog.NewJSONHandler(os.Stderr, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stderr, opts))
}
