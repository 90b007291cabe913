package config

import (
	"log/slog"
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeFile(t *testing.T, body string) string {
	t.Helper()
	p := filepath.Join(t.TempDir(), "advisor.yaml")
	if err := os.WriteFile(p, []byte(body), 0o600); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestDefaultIsValid(t *testing.T) {
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
	if cfg.Budget.UpperTolerance != 0.13 || cfg.LLM.MaxAttempts != 5 || cfg.Pricing.Band != 0.10 {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestLoadLayers(t *testing.T) {
	t.Chdir(t.TempDir())
	p := writeFile(t, `
llm:
  model: qwen2.5:7b
  max_attempts: 4
  timeout: 20s
pricing:
  ref_year: 2025
  brackets:
    - up_to_year: 5
      rate: 0.12
    - up_to_year: 0
      rate: 0.2
budget:
  upper_tolerance: 0.15
`)
	t.Setenv("ADVISOR_LLM_MAX_ATTEMPTS", "6")
	t.Setenv("ADVISOR_NATS_URL", "nats://bus:4222")
	t.Setenv("ADVISOR_REDIS_TTL", "2h")

	cfg, err := Load(p)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.LLM.Model != "qwen2.5:7b" || cfg.LLM.Timeout != 20*time.Second {
		t.Errorf("file values not applied: %+v", cfg.LLM)
	}
	if cfg.LLM.MaxAttempts != 6 {
		t.Errorf("env should win over file, got %d", cfg.LLM.MaxAttempts)
	}
	if cfg.NATS.URL != "nats://bus:4222" || cfg.Redis.TTL != 2*time.Hour {
		t.Errorf("env values not applied: %+v %+v", cfg.NATS, cfg.Redis)
	}
	if len(cfg.Pricing.Brackets) != 2 || cfg.Pricing.Brackets[0].Rate != 0.12 || cfg.Pricing.RefYear != 2025 {
		t.Errorf("pricing = %+v", cfg.Pricing)
	}
	if cfg.Budget.UpperTolerance != 0.15 || cfg.Budget.LowerTolerance != 0.13 {
		t.Errorf("budget = %+v", cfg.Budget)
	}
	if cfg.Server.Addr != ":8080" {
		t.Errorf("defaults lost: %+v", cfg.Server)
	}
}

func TestLoadWithoutFile(t *testing.T) {
	t.Chdir(t.TempDir())
	t.Setenv(PathEnvVar, "")
	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Registry.Source != "csv" {
		t.Fatalf("registry = %+v", cfg.Registry)
	}
	if _, err := Load(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Fatal("explicit missing file should fail")
	}
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(*Config){
		"provider":      func(c *Config) { c.LLM.Provider = "palm" },
		"attempts low":  func(c *Config) { c.LLM.MaxAttempts = 2 },
		"attempts high": func(c *Config) { c.LLM.MaxAttempts = 11 },
		"tolerance":     func(c *Config) { c.Budget.LowerTolerance = 1 },
		"band":          func(c *Config) { c.Pricing.Band = 0.6 },
		"bracket rate":  func(c *Config) { c.Pricing.Brackets = []BracketConfig{{UpToYear: 5, Rate: 1.2}} },
		"bracket order": func(c *Config) {
			c.Pricing.Brackets = []BracketConfig{{UpToYear: 10, Rate: 0.1}, {UpToYear: 5, Rate: 0.1}}
		},
		"registry path":   func(c *Config) { c.Registry.Path = "" },
		"registry source": func(c *Config) { c.Registry.Source = "xlsx" },
		"api key":         func(c *Config) { c.LLM.Provider = "gemini" },
		"log level":       func(c *Config) { c.Log.Level = "loud" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			if cfg.Validate() == nil {
				t.Fatal("expected validation error")
			}
		})
	}

	cfg := Default()
	cfg.Registry = RegistryConfig{Source: "neo4j"}
	if err := cfg.Validate(); err != nil {
		t.Fatalf("neo4j registry needs no path: %v", err)
	}
}

func TestEnvKey(t *testing.T) {
	for in, want := range map[string]string{
		"ADVISOR_LLM_MAX_ATTEMPTS":       "llm.max_attempts",
		"ADVISOR_HISTORY_DB_PATH":        "history.db_path",
		"ADVISOR_BUDGET_UPPER_TOLERANCE": "budget.upper_tolerance",
	} {
		if got := envKey(in); got != want {
			t.Errorf("envKey(%s) = %s, want %s", in, got, want)
		}
	}
}

func TestSlogLevel(t *testing.T) {
	cfg := Default()
	cfg.Log.Level = "debug"
	if cfg.SlogLevel() != slog.LevelDebug {
		t.Fatal("debug")
	}
	cfg.Log.Level = "bogus"
	if cfg.SlogLevel() != slog.LevelInfo {
		t.Fatal("fallback to info")
	}
}
