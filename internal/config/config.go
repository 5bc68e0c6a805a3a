package config

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/harrison/mender/internal/agent"
	"github.com/harrison/mender/internal/analytics"
	"github.com/harrison/mender/internal/engine"
	"github.com/harrison/mender/internal/fixstate"
	"github.com/harrison/mender/internal/llm"
	"github.com/harrison/mender/internal/models"
)

// EngineConfig bounds one Fix Engine run
type EngineConfig struct {
	// Deadline is the overall time limit of one run
	Deadline time.Duration

	// StrategyTimeouts overrides the per-strategy timer, keyed by strategy name
	StrategyTimeouts map[models.FixStrategy]time.Duration

	// IterativeRounds is the number of ai-iterative rounds
	IterativeRounds int

	// RoundTimeout is the time limit of one ai-iterative round
	RoundTimeout time.Duration

	// Skip lists strategies never attempted
	Skip []models.FixStrategy
}

// StateConfig configures attempt deduplication
type StateConfig struct {
	// Path is the JSON file the fix state is persisted to ("" keeps it in memory)
	Path        string
	Cooldown    time.Duration
	MaxAttempts int
	HistorySize int
	TTL         time.Duration
}

// AnalyticsConfig configures the fix analytics store
type AnalyticsConfig struct {
	// Enabled turns recording on
	Enabled bool

	// DBPath is the SQLite database path
	DBPath string

	// RecentSize is the capacity of the recent-attempts ring
	RecentSize int
}

// AgentConfig bounds one fix session
type AgentConfig struct {
	MaxAttempts int
	SettleDelay time.Duration
}

// LLMConfig selects the language model behind the AI strategies
type LLMConfig struct {
	// Provider is one of none, claude, gemini
	Provider          string
	Model             string
	ClaudePath        string
	APIKey            string
	Timeout           time.Duration
	RequestsPerMinute int
	Burst             int
}

// Config represents mender configuration options
type Config struct {
	// LogLevel sets the logging verbosity (trace, debug, info, warn, error)
	LogLevel string

	Engine    EngineConfig
	State     StateConfig
	Analytics AnalyticsConfig
	Agent     AgentConfig
	LLM       LLMConfig
}

// DefaultConfig returns a Config with sensible default values
func DefaultConfig() *Config {
	e := engine.DefaultConfig()
	s := fixstate.DefaultConfig()
	a := agent.DefaultConfig()
	return &Config{
		LogLevel: "info",
		Engine: EngineConfig{
			Deadline:         e.Deadline,
			StrategyTimeouts: e.StrategyTimeouts,
			IterativeRounds:  e.IterativeRounds,
			RoundTimeout:     e.RoundTimeout,
		},
		State: StateConfig{
			Path:        filepath.Join(".mender", "state.json"),
			Cooldown:    s.Cooldown,
			MaxAttempts: s.MaxAttempts,
			HistorySize: s.HistorySize,
			TTL:         s.TTL,
		},
		Analytics: AnalyticsConfig{
			Enabled:    true,
			DBPath:     filepath.Join(".mender", "analytics.db"),
			RecentSize: analytics.DefaultConfig().RecentSize,
		},
		Agent: AgentConfig{
			MaxAttempts: a.MaxAttempts,
			SettleDelay: a.SettleDelay,
		},
		LLM: LLMConfig{
			Provider:          llm.ProviderClaude,
			ClaudePath:        "claude",
			Timeout:           90 * time.Second,
			RequestsPerMinute: 20,
			Burst:             2,
		},
	}
}

// yamlConfig mirrors the file layout. Durations are strings and pointers
// mark fields whose zero value is meaningful.
type yamlConfig struct {
	LogLevel string `yaml:"log_level"`
	Engine   struct {
		Deadline         string            `yaml:"deadline"`
		StrategyTimeouts map[string]string `yaml:"strategy_timeouts"`
		IterativeRounds  int               `yaml:"iterative_rounds"`
		RoundTimeout     string            `yaml:"round_timeout"`
		Skip             []string          `yaml:"skip"`
	} `yaml:"engine"`
	State struct {
		Path        *string `yaml:"path"`
		Cooldown    string  `yaml:"cooldown"`
		MaxAttempts int     `yaml:"max_attempts"`
		HistorySize int     `yaml:"history_size"`
		TTL         string  `yaml:"ttl"`
	} `yaml:"state"`
	Analytics struct {
		Enabled    *bool  `yaml:"enabled"`
		DBPath     string `yaml:"db_path"`
		RecentSize int    `yaml:"recent_size"`
	} `yaml:"analytics"`
	Agent struct {
		MaxAttempts int    `yaml:"max_attempts"`
		SettleDelay string `yaml:"settle_delay"`
	} `yaml:"agent"`
	LLM struct {
		Provider          string `yaml:"provider"`
		Model             string `yaml:"model"`
		ClaudePath        string `yaml:"claude_path"`
		APIKey            string `yaml:"api_key"`
		Timeout           string `yaml:"timeout"`
		RequestsPerMinute *int   `yaml:"requests_per_minute"`
		Burst             int    `yaml:"burst"`
	} `yaml:"llm"`
}

// LoadConfig loads configuration from the specified file path
// If the file doesn't exist, returns default configuration without error
// If the file exists but is malformed, returns an error
func LoadConfig(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return cfg, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var y yamlConfig
	if err := yaml.Unmarshal(data, &y); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	// Apply non-zero values from file (merging with defaults)
	if y.LogLevel != "" {
		cfg.LogLevel = y.LogLevel
	}

	durations := []struct {
		key string
		raw string
		dst *time.Duration
	}{
		{"engine.deadline", y.Engine.Deadline, &cfg.Engine.Deadline},
		{"engine.round_timeout", y.Engine.RoundTimeout, &cfg.Engine.RoundTimeout},
		{"state.cooldown", y.State.Cooldown, &cfg.State.Cooldown},
		{"state.ttl", y.State.TTL, &cfg.State.TTL},
		{"agent.settle_delay", y.Agent.SettleDelay, &cfg.Agent.SettleDelay},
		{"llm.timeout", y.LLM.Timeout, &cfg.LLM.Timeout},
	}
	for _, d := range durations {
		if d.raw == "" {
			continue
		}
		v, err := time.ParseDuration(d.raw)
		if err != nil {
			return nil, fmt.Errorf("invalid %s format %q: %w", d.key, d.raw, err)
		}
		*d.dst = v
	}

	if len(y.Engine.StrategyTimeouts) > 0 {
		timeouts := make(map[models.FixStrategy]time.Duration, len(cfg.Engine.StrategyTimeouts))
		for s, d := range cfg.Engine.StrategyTimeouts {
			timeouts[s] = d
		}
		names := make([]string, 0, len(y.Engine.StrategyTimeouts))
		for name := range y.Engine.StrategyTimeouts {
			names = append(names, name)
		}
		sort.Strings(names)
		for _, name := range names {
			s, ok := models.ParseStrategy(name)
			if !ok {
				return nil, fmt.Errorf("unknown strategy %q in engine.strategy_timeouts", name)
			}
			raw := y.Engine.StrategyTimeouts[name]
			d, err := time.ParseDuration(raw)
			if err != nil {
				return nil, fmt.Errorf("invalid engine.strategy_timeouts.%s format %q: %w", name, raw, err)
			}
			timeouts[s] = d
		}
		cfg.Engine.StrategyTimeouts = timeouts
	}
	for _, name := range y.Engine.Skip {
		s, ok := models.ParseStrategy(name)
		if !ok {
			return nil, fmt.Errorf("unknown strategy %q in engine.skip", name)
		}
		cfg.Engine.Skip = append(cfg.Engine.Skip, s)
	}
	if y.Engine.IterativeRounds != 0 {
		cfg.Engine.IterativeRounds = y.Engine.IterativeRounds
	}

	// state.path is explicitly set if present in YAML, even if empty
	if y.State.Path != nil {
		cfg.State.Path = *y.State.Path
	}
	if y.State.MaxAttempts != 0 {
		cfg.State.MaxAttempts = y.State.MaxAttempts
	}
	if y.State.HistorySize != 0 {
		cfg.State.HistorySize = y.State.HistorySize
	}

	if y.Analytics.Enabled != nil {
		cfg.Analytics.Enabled = *y.Analytics.Enabled
	}
	if y.Analytics.DBPath != "" {
		cfg.Analytics.DBPath = y.Analytics.DBPath
	}
	if y.Analytics.RecentSize != 0 {
		cfg.Analytics.RecentSize = y.Analytics.RecentSize
	}

	if y.Agent.MaxAttempts != 0 {
		cfg.Agent.MaxAttempts = y.Agent.MaxAttempts
	}

	if y.LLM.Provider != "" {
		cfg.LLM.Provider = y.LLM.Provider
	}
	if y.LLM.Model != "" {
		cfg.LLM.Model = y.LLM.Model
	}
	if y.LLM.ClaudePath != "" {
		cfg.LLM.ClaudePath = y.LLM.ClaudePath
	}
	if y.LLM.APIKey != "" {
		cfg.LLM.APIKey = y.LLM.APIKey
	}
	// requests_per_minute: 0 disables rate limiting, so presence matters
	if y.LLM.RequestsPerMinute != nil {
		cfg.LLM.RequestsPerMinute = *y.LLM.RequestsPerMinute
	}
	if y.LLM.Burst != 0 {
		cfg.LLM.Burst = y.LLM.Burst
	}

	return cfg, nil
}

// LoadConfigFromDir loads configuration from .mender/config.yaml in the specified directory
// If the directory or file doesn't exist, returns default configuration without error
func LoadConfigFromDir(dir string) (*Config, error) {
	return LoadConfig(filepath.Join(dir, ".mender", "config.yaml"))
}

// MergeWithFlags merges CLI flags into the configuration
// Non-nil flag values override configuration values
func (c *Config) MergeWithFlags(logLevel *string, provider *string, skip []models.FixStrategy) {
	if logLevel != nil {
		c.LogLevel = *logLevel
	}
	if provider != nil {
		c.LLM.Provider = *provider
	}
	c.Engine.Skip = append(c.Engine.Skip, skip...)
}

// Validate validates the configuration values
// Returns an error if any values are invalid
func (c *Config) Validate() error {
	validLevels := map[string]bool{
		"trace": true,
		"debug": true,
		"info":  true,
		"warn":  true,
		"error": true,
	}
	if !validLevels[c.LogLevel] {
		return fmt.Errorf("invalid log_level %q, must be one of: trace, debug, info, warn, error", c.LogLevel)
	}

	if c.Engine.Deadline <= 0 {
		return fmt.Errorf("engine.deadline must be > 0, got %v", c.Engine.Deadline)
	}
	if c.Engine.IterativeRounds <= 0 {
		return fmt.Errorf("engine.iterative_rounds must be > 0, got %d", c.Engine.IterativeRounds)
	}
	if c.Engine.RoundTimeout <= 0 {
		return fmt.Errorf("engine.round_timeout must be > 0, got %v", c.Engine.RoundTimeout)
	}
	for s, d := range c.Engine.StrategyTimeouts {
		if d <= 0 {
			return fmt.Errorf("engine.strategy_timeouts.%s must be > 0, got %v", s, d)
		}
	}

	if c.State.Cooldown < 0 {
		return fmt.Errorf("state.cooldown must be >= 0, got %v", c.State.Cooldown)
	}
	if c.State.MaxAttempts <= 0 {
		return fmt.Errorf("state.max_attempts must be > 0, got %d", c.State.MaxAttempts)
	}
	if c.State.HistorySize <= 0 {
		return fmt.Errorf("state.history_size must be > 0, got %d", c.State.HistorySize)
	}
	if c.State.TTL <= 0 {
		return fmt.Errorf("state.ttl must be > 0, got %v", c.State.TTL)
	}

	if c.Analytics.Enabled {
		if c.Analytics.DBPath == "" {
			return fmt.Errorf("analytics.db_path cannot be empty when analytics is enabled")
		}
		if c.Analytics.RecentSize <= 0 {
			return fmt.Errorf("analytics.recent_size must be > 0, got %d", c.Analytics.RecentSize)
		}
	}

	if c.Agent.MaxAttempts <= 0 {
		return fmt.Errorf("agent.max_attempts must be > 0, got %d", c.Agent.MaxAttempts)
	}
	if c.Agent.SettleDelay < 0 {
		return fmt.Errorf("agent.settle_delay must be >= 0, got %v", c.Agent.SettleDelay)
	}

	switch c.LLM.Provider {
	case llm.ProviderNone, llm.ProviderClaude, llm.ProviderGemini:
	default:
		return fmt.Errorf("invalid llm.provider %q, must be one of: none, claude, gemini", c.LLM.Provider)
	}
	if c.LLM.RequestsPerMinute < 0 {
		return fmt.Errorf("llm.requests_per_minute must be >= 0, got %d", c.LLM.RequestsPerMinute)
	}

	return nil
}

// EngineOptions converts the engine section.
func (c *Config) EngineOptions() engine.Config {
	return engine.Config{
		Deadline:         c.Engine.Deadline,
		StrategyTimeouts: c.Engine.StrategyTimeouts,
		IterativeRounds:  c.Engine.IterativeRounds,
		RoundTimeout:     c.Engine.RoundTimeout,
	}
}

// StateOptions converts the state section.
func (c *Config) StateOptions() fixstate.Config {
	return fixstate.Config{
		Cooldown:    c.State.Cooldown,
		MaxAttempts: c.State.MaxAttempts,
		HistorySize: c.State.HistorySize,
		TTL:         c.State.TTL,
	}
}

// AnalyticsOptions converts the analytics section.
func (c *Config) AnalyticsOptions() analytics.Config {
	a := analytics.DefaultConfig()
	a.RecentSize = c.Analytics.RecentSize
	return a
}

// AgentOptions converts the agent section. Engine skips are carried along.
func (c *Config) AgentOptions() agent.Config {
	return agent.Config{
		MaxAttempts: c.Agent.MaxAttempts,
		SettleDelay: c.Agent.SettleDelay,
		Skip:        c.Engine.Skip,
	}
}

// LLMOptions converts the llm section.
func (c *Config) LLMOptions() llm.Config {
	return llm.Config{
		Provider:          c.LLM.Provider,
		Model:             c.LLM.Model,
		ClaudePath:        c.LLM.ClaudePath,
		APIKey:            c.LLM.APIKey,
		Timeout:           c.LLM.Timeout,
		RequestsPerMinute: c.LLM.RequestsPerMinute,
		Burst:             c.LLM.Burst,
	}
}
