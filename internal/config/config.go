/*
Package config handles loading and validating planning-agent configuration.

Configuration comes from an optional YAML file overlaid with PLANNING_*
environment variables, e.g. PLANNING_RL_LEARNING_RATE=0.5 overrides
rl.learning_rate. Defaults are applied first, so an empty environment and a
missing file still yield a runnable configuration.
*/
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// envPrefix is the prefix for environment variable overrides.
const envPrefix = "PLANNING_"

// Config is the root configuration.
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Database  DatabaseConfig  `koanf:"database"`
	Retention RetentionConfig `koanf:"retention"`
	RL        RLConfig        `koanf:"rl"`
}

// ServerConfig configures the feedback REST API.
type ServerConfig struct {
	// Host is the listen address.
	Host string `koanf:"host"`

	// Port is the listen port.
	Port int `koanf:"port"`

	// AllowAllOrigins relaxes CORS for local development.
	AllowAllOrigins bool `koanf:"allow_all_origins"`
}

// DatabaseConfig configures the SQLite store.
type DatabaseConfig struct {
	// Path is the SQLite database file path.
	Path string `koanf:"path"`
}

// RetentionConfig configures execution history pruning.
type RetentionConfig struct {
	// Days is how long execution records are kept. Zero disables pruning.
	// Policy rows are never pruned.
	Days int `koanf:"days"`
}

// RLConfig holds the learning hyperparameters.
type RLConfig struct {
	// Enabled gates policy updates and the learned ranking term. Disabled,
	// executions are still persisted for audit and statistics.
	Enabled bool `koanf:"enabled"`

	// LearningRate is α in (0, 1].
	LearningRate float64 `koanf:"learning_rate"`

	// DiscountFactor is γ in [0, 1).
	DiscountFactor float64 `koanf:"discount_factor"`

	// ExplorationRate is ε in [0, 1].
	ExplorationRate float64 `koanf:"exploration_rate"`

	// MinSamples is the execution count below which a tool's success rate
	// does not influence ranking.
	MinSamples int `koanf:"min_samples"`
}

// Default returns the baseline configuration.
func Default() *Config {
	home, err := os.UserHomeDir()
	if err != nil {
		home = "."
	}
	return &Config{
		Server: ServerConfig{
			Host: "127.0.0.1",
			Port: 8080,
		},
		Database: DatabaseConfig{
			Path: filepath.Join(home, ".planning-agent", "planning_agent.db"),
		},
		Retention: RetentionConfig{
			Days: 90,
		},
		RL: RLConfig{
			Enabled:         true,
			LearningRate:    0.3,
			DiscountFactor:  0.95,
			ExplorationRate: 0.1,
			MinSamples:      3,
		},
	}
}

// Load reads configuration from the given YAML file (if it exists), then
// overlays PLANNING_* environment variables. An empty path skips the file.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	cfg := Default()

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, fmt.Errorf("reading config %s: %w", path, err)
			}
		} else if !os.IsNotExist(err) {
			return nil, fmt.Errorf("accessing config %s: %w", path, err)
		}
	}

	// PLANNING_RL_LEARNING_RATE -> rl.learning_rate. Only the first
	// underscore separates the section from the key.
	if err := k.Load(env.Provider(envPrefix, ".", func(s string) string {
		return strings.Replace(strings.ToLower(strings.TrimPrefix(s, envPrefix)), "_", ".", 1)
	}), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that the configuration contains usable values.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be in 1-65535, got %d", c.Server.Port)
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}
	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be non-negative, got %d", c.Retention.Days)
	}
	if c.RL.LearningRate <= 0 || c.RL.LearningRate > 1 {
		return fmt.Errorf("rl.learning_rate must be in (0, 1], got %v", c.RL.LearningRate)
	}
	if c.RL.DiscountFactor < 0 || c.RL.DiscountFactor >= 1 {
		return fmt.Errorf("rl.discount_factor must be in [0, 1), got %v", c.RL.DiscountFactor)
	}
	if c.RL.ExplorationRate < 0 || c.RL.ExplorationRate > 1 {
		return fmt.Errorf("rl.exploration_rate must be in [0, 1], got %v", c.RL.ExplorationRate)
	}
	if c.RL.MinSamples < 0 {
		return fmt.Errorf("rl.min_samples must be non-negative, got %d", c.RL.MinSamples)
	}
	return nil
}
