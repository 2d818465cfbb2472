package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds all mnemo configuration. Values come from the environment;
// every threshold the drafts disagreed on is exposed here rather than baked in.
type Config struct {
	Server   ServerConfig
	Database DatabaseConfig
	Engine   EngineConfig
	Redis    RedisConfig
}

type ServerConfig struct {
	Bind string `env:"MNEMO_BIND" envDefault:"127.0.0.1"`
	Port int    `env:"MNEMO_PORT" envDefault:"3001"`
}

type DatabaseConfig struct {
	Path string `env:"MNEMO_DB"` // empty = resolved via store.DefaultDBPath()
}

type EngineConfig struct {
	MaxContentChars     int     `env:"MNEMO_MAX_CONTENT_CHARS" envDefault:"10000"`
	DecayRatePerDay     float64 `env:"MNEMO_DECAY_RATE" envDefault:"0.1"`
	PruneThreshold      float64 `env:"MNEMO_PRUNE_THRESHOLD" envDefault:"0.5"`
	SimilarityThreshold float64 `env:"MNEMO_SIMILARITY_THRESHOLD" envDefault:"0.75"`
	NoiseThreshold      float64 `env:"MNEMO_RECALL_NOISE" envDefault:"0.1"`
	ReflectionBonus     float64 `env:"MNEMO_REFLECTION_BONUS" envDefault:"0.25"`
	HighWeightThreshold float64 `env:"MNEMO_HIGH_WEIGHT" envDefault:"0.7"`
	MaxMerges           int     `env:"MNEMO_MAX_MERGES" envDefault:"100"`

	// ConsolidateEvery enables the background consolidation scheduler
	// when set to a positive duration. Zero disables it.
	ConsolidateEvery time.Duration `env:"MNEMO_CONSOLIDATE_INTERVAL" envDefault:"0"`
}

type RedisConfig struct {
	Addr    string `env:"MNEMO_REDIS_ADDR"` // empty = notifications disabled
	Channel string `env:"MNEMO_REDIS_CHANNEL" envDefault:"memory_created"`
}

// ConfigurationError reports invalid or missing startup configuration.
// It is fatal: a process with a bad config must not serve traffic.
type ConfigurationError struct {
	Setting string
	Reason  string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration %s: %s", e.Setting, e.Reason)
}

// Load reads configuration from the environment and validates it.
func Load() (Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks every setting a bad environment could break.
func (c *Config) Validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return &ConfigurationError{"MNEMO_PORT", fmt.Sprintf("port %d out of range", c.Server.Port)}
	}
	if c.Engine.MaxContentChars <= 0 {
		return &ConfigurationError{"MNEMO_MAX_CONTENT_CHARS", "must be positive"}
	}
	if c.Engine.DecayRatePerDay < 0 {
		return &ConfigurationError{"MNEMO_DECAY_RATE", "must not be negative"}
	}
	for _, t := range []struct {
		setting string
		value   float64
	}{
		{"MNEMO_PRUNE_THRESHOLD", c.Engine.PruneThreshold},
		{"MNEMO_SIMILARITY_THRESHOLD", c.Engine.SimilarityThreshold},
		{"MNEMO_RECALL_NOISE", c.Engine.NoiseThreshold},
		{"MNEMO_REFLECTION_BONUS", c.Engine.ReflectionBonus},
		{"MNEMO_HIGH_WEIGHT", c.Engine.HighWeightThreshold},
	} {
		if t.value < 0 || t.value > 1 {
			return &ConfigurationError{t.setting, fmt.Sprintf("%g outside [0, 1]", t.value)}
		}
	}
	if c.Engine.MaxMerges <= 0 {
		return &ConfigurationError{"MNEMO_MAX_MERGES", "must be positive"}
	}
	if c.Engine.ConsolidateEvery < 0 {
		return &ConfigurationError{"MNEMO_CONSOLIDATE_INTERVAL", "must not be negative"}
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}
