package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/harrison/mender/internal/models"
)

func assertEqual(t *testing.T, field string, got, want interface{}) {
	t.Helper()
	if !reflect.DeepEqual(got, want) {
		t.Errorf("%s = %v, want %v", field, got, want)
	}
}

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatalf("failed to write test config: %v", err)
	}
	return path
}

// TestDefaultConfig verifies default configuration values
func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	assertEqual(t, "LogLevel", cfg.LogLevel, "info")
	assertEqual(t, "Engine.Deadline", cfg.Engine.Deadline, 60*time.Second)
	assertEqual(t, "Engine.IterativeRounds", cfg.Engine.IterativeRounds, 3)
	assertEqual(t, "ai-iterative timeout", cfg.Engine.StrategyTimeouts[models.StrategyAIIterative], 90*time.Second)
	assertEqual(t, "State.Cooldown", cfg.State.Cooldown, 30*time.Second)
	assertEqual(t, "State.MaxAttempts", cfg.State.MaxAttempts, 3)
	assertEqual(t, "State.HistorySize", cfg.State.HistorySize, 50)
	assertEqual(t, "State.TTL", cfg.State.TTL, 5*time.Minute)
	assertEqual(t, "Analytics.Enabled", cfg.Analytics.Enabled, true)
	assertEqual(t, "Analytics.RecentSize", cfg.Analytics.RecentSize, 100)
	assertEqual(t, "Agent.MaxAttempts", cfg.Agent.MaxAttempts, 3)
	assertEqual(t, "Agent.SettleDelay", cfg.Agent.SettleDelay, 500*time.Millisecond)
	assertEqual(t, "LLM.Provider", cfg.LLM.Provider, "claude")

	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

// TestLoadConfig_FullMatrixCoversAllFields ensures every field can be
// overridden via YAML.
func TestLoadConfig_FullMatrixCoversAllFields(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join("testdata", "full-config.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}

	assertEqual(t, "LogLevel", cfg.LogLevel, "debug")

	t.Run("Engine", func(t *testing.T) {
		assertEqual(t, "Deadline", cfg.Engine.Deadline, 2*time.Minute)
		assertEqual(t, "IterativeRounds", cfg.Engine.IterativeRounds, 5)
		assertEqual(t, "RoundTimeout", cfg.Engine.RoundTimeout, 40*time.Second)
		assertEqual(t, "ai-quick", cfg.Engine.StrategyTimeouts[models.StrategyAIQuick], 10*time.Second)
		assertEqual(t, "local-simple", cfg.Engine.StrategyTimeouts[models.StrategyLocalSimple], time.Second)
		assertEqual(t, "ai-full keeps default", cfg.Engine.StrategyTimeouts[models.StrategyAIFull], 45*time.Second)
		assertEqual(t, "Skip", cfg.Engine.Skip, []models.FixStrategy{models.StrategyAIRegenerate})
	})

	t.Run("State", func(t *testing.T) {
		assertEqual(t, "Path", cfg.State.Path, "/tmp/mender/state.json")
		assertEqual(t, "Cooldown", cfg.State.Cooldown, time.Minute)
		assertEqual(t, "MaxAttempts", cfg.State.MaxAttempts, 4)
		assertEqual(t, "HistorySize", cfg.State.HistorySize, 20)
		assertEqual(t, "TTL", cfg.State.TTL, 10*time.Minute)
	})

	t.Run("Analytics", func(t *testing.T) {
		assertEqual(t, "Enabled", cfg.Analytics.Enabled, false)
		assertEqual(t, "DBPath", cfg.Analytics.DBPath, "/tmp/mender/analytics.db")
		assertEqual(t, "RecentSize", cfg.Analytics.RecentSize, 25)
	})

	t.Run("Agent", func(t *testing.T) {
		assertEqual(t, "MaxAttempts", cfg.Agent.MaxAttempts, 5)
		assertEqual(t, "SettleDelay", cfg.Agent.SettleDelay, time.Second)
	})

	t.Run("LLM", func(t *testing.T) {
		assertEqual(t, "Provider", cfg.LLM.Provider, "gemini")
		assertEqual(t, "Model", cfg.LLM.Model, "gemini-2.5-pro")
		assertEqual(t, "ClaudePath", cfg.LLM.ClaudePath, "/usr/local/bin/claude")
		assertEqual(t, "APIKey", cfg.LLM.APIKey, "test-key")
		assertEqual(t, "Timeout", cfg.LLM.Timeout, 2*time.Minute)
		assertEqual(t, "RequestsPerMinute", cfg.LLM.RequestsPerMinute, 0)
		assertEqual(t, "Burst", cfg.LLM.Burst, 4)
	})

	if err := cfg.Validate(); err != nil {
		t.Errorf("full config should validate: %v", err)
	}
}

// TestLoadConfigMissingFile returns defaults when the file is absent
func TestLoadConfigMissingFile(t *testing.T) {
	cfg, err := LoadConfig(filepath.Join(t.TempDir(), "nope.yaml"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	assertEqual(t, "config", cfg, DefaultConfig())
}

// TestLoadConfigPartialMerge keeps defaults for fields the file omits
func TestLoadConfigPartialMerge(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, "agent:\n  max_attempts: 7\nstate:\n  path: \"\"\n"))
	if err != nil {
		t.Fatalf("LoadConfig() error = %v", err)
	}
	assertEqual(t, "Agent.MaxAttempts", cfg.Agent.MaxAttempts, 7)
	assertEqual(t, "Agent.SettleDelay", cfg.Agent.SettleDelay, 500*time.Millisecond)
	assertEqual(t, "State.Path", cfg.State.Path, "")
	assertEqual(t, "Analytics.Enabled", cfg.Analytics.Enabled, true)
	assertEqual(t, "LLM.RequestsPerMinute", cfg.LLM.RequestsPerMinute, 20)
}

// TestLoadConfigErrors covers malformed files and values
func TestLoadConfigErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"malformed yaml", "engine: [unclosed", "failed to parse config file"},
		{"bad duration", "engine:\n  deadline: soon\n", "invalid engine.deadline format"},
		{"bad strategy timeout", "engine:\n  strategy_timeouts:\n    ai-quick: fast\n", "invalid engine.strategy_timeouts.ai-quick"},
		{"unknown timeout strategy", "engine:\n  strategy_timeouts:\n    ai-magic: 1s\n", "unknown strategy \"ai-magic\""},
		{"unknown skip strategy", "engine:\n  skip: [teleport]\n", "unknown strategy \"teleport\" in engine.skip"},
		{"bad settle delay", "agent:\n  settle_delay: 5 parsecs\n", "invalid agent.settle_delay format"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadConfig(writeConfig(t, tt.content))
			if err == nil {
				t.Fatal("LoadConfig() error = nil, want error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("error = %q, want substring %q", err, tt.wantErr)
			}
		})
	}
}

// TestValidate rejects out-of-range values
func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"log level", func(c *Config) { c.LogLevel = "loud" }, "invalid log_level"},
		{"deadline", func(c *Config) { c.Engine.Deadline = 0 }, "engine.deadline"},
		{"rounds", func(c *Config) { c.Engine.IterativeRounds = 0 }, "engine.iterative_rounds"},
		{"strategy timeout", func(c *Config) { c.Engine.StrategyTimeouts[models.StrategyAIFull] = -1 }, "engine.strategy_timeouts.ai-full"},
		{"state attempts", func(c *Config) { c.State.MaxAttempts = 0 }, "state.max_attempts"},
		{"state ttl", func(c *Config) { c.State.TTL = 0 }, "state.ttl"},
		{"analytics path", func(c *Config) { c.Analytics.DBPath = "" }, "analytics.db_path"},
		{"agent attempts", func(c *Config) { c.Agent.MaxAttempts = -2 }, "agent.max_attempts"},
		{"settle", func(c *Config) { c.Agent.SettleDelay = -time.Second }, "agent.settle_delay"},
		{"provider", func(c *Config) { c.LLM.Provider = "oracle" }, "invalid llm.provider"},
		{"rpm", func(c *Config) { c.LLM.RequestsPerMinute = -1 }, "llm.requests_per_minute"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			err := cfg.Validate()
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() = %v, want error containing %q", err, tt.wantErr)
			}
		})
	}

	t.Run("disabled analytics ignores path", func(t *testing.T) {
		cfg := DefaultConfig()
		cfg.Analytics.Enabled = false
		cfg.Analytics.DBPath = ""
		if err := cfg.Validate(); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

// TestMergeWithFlags lets flags override the file
func TestMergeWithFlags(t *testing.T) {
	cfg := DefaultConfig()
	level, provider := "debug", "none"
	cfg.MergeWithFlags(&level, &provider, []models.FixStrategy{models.StrategyAIQuick})

	assertEqual(t, "LogLevel", cfg.LogLevel, "debug")
	assertEqual(t, "Provider", cfg.LLM.Provider, "none")
	assertEqual(t, "AgentOptions.Skip", cfg.AgentOptions().Skip, []models.FixStrategy{models.StrategyAIQuick})

	cfg.MergeWithFlags(nil, nil, nil)
	assertEqual(t, "LogLevel unchanged", cfg.LogLevel, "debug")
}

// TestOptions converts sections into component configs
func TestOptions(t *testing.T) {
	cfg := DefaultConfig()
	cfg.State.MaxAttempts = 9
	cfg.LLM.Model = "opus"

	assertEqual(t, "engine deadline", cfg.EngineOptions().Deadline, cfg.Engine.Deadline)
	assertEqual(t, "state max attempts", cfg.StateOptions().MaxAttempts, 9)
	assertEqual(t, "analytics key", cfg.AnalyticsOptions().Key, "fix-analytics")
	assertEqual(t, "agent settle", cfg.AgentOptions().SettleDelay, 500*time.Millisecond)
	assertEqual(t, "llm model", cfg.LLMOptions().Model, "opus")
}

// TestLoadConfigFromDir reads .mender/config.yaml
func TestLoadConfigFromDir(t *testing.T) {
	dir := t.TempDir()
	if err := os.MkdirAll(filepath.Join(dir, ".mender"), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, ".mender", "config.yaml"), []byte("log_level: warn\n"), 0644); err != nil {
		t.Fatal(err)
	}
	cfg, err := LoadConfigFromDir(dir)
	if err != nil {
		t.Fatalf("LoadConfigFromDir() error = %v", err)
	}
	assertEqual(t, "LogLevel", cfg.LogLevel, "warn")
}

// TestGetMenderHome prefers MENDER_HOME
func TestGetMenderHome(t *testing.T) {
	t.Run("env", func(t *testing.T) {
		want := filepath.Join(t.TempDir(), "custom")
		t.Setenv("MENDER_HOME", want)
		got, err := GetMenderHome("/unused")
		if err != nil {
			t.Fatal(err)
		}
		assertEqual(t, "home", got, want)
		if _, err := os.Stat(want); err != nil {
			t.Errorf("home directory not created: %v", err)
		}
	})
	t.Run("project dir", func(t *testing.T) {
		t.Setenv("MENDER_HOME", "")
		dir := t.TempDir()
		got, err := GetMenderHome(dir)
		if err != nil {
			t.Fatal(err)
		}
		assertEqual(t, "home", got, filepath.Join(dir, ".mender"))
	})
}

// TestResolvePaths anchors relative paths
func TestResolvePaths(t *testing.T) {
	t.Setenv("MENDER_HOME", "")
	cfg := DefaultConfig()
	cfg.Analytics.DBPath = "stats.db"
	cfg.ResolvePaths("/proj", "/proj/.mender")

	assertEqual(t, "State.Path", cfg.State.Path, filepath.Join("/proj", ".mender", "state.json"))
	assertEqual(t, "Analytics.DBPath", cfg.Analytics.DBPath, filepath.Join("/proj/.mender", "stats.db"))

	abs := DefaultConfig()
	abs.State.Path = "/var/state.json"
	abs.ResolvePaths("/proj", "/home")
	assertEqual(t, "absolute", abs.State.Path, "/var/state.json")
}
