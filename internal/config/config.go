// Package config defines service configuration structures and loading hooks.
//
// Conventions:
// - Provide New() to build a Config with defaults.
// - Nested sections reuse the koanf-tagged config types of the domain packages.
// - External errors are wrapped with this package's sentinel errors.
package config

import (
	"fmt"
	"runtime"

	"github.com/okian/pacer/internal/domain/policy"
	"github.com/okian/pacer/internal/domain/simulator"
)

// Config contains process configuration.
type Config struct {
	// LogLevel controls verbosity: debug, info, warn, error.
	LogLevel string `koanf:"log_level"`

	// LogFormat selects the log handler: text or json.
	LogFormat string `koanf:"log_format"`

	// Addr configures the HTTP listen address, e.g. ":8080".
	Addr string `koanf:"addr"`

	// QueueSize bounds the in-memory simulation job queue.
	QueueSize int `koanf:"queue_size"`

	// WorkerCount sets the number of simulation workers.
	WorkerCount int `koanf:"worker_count"`

	// StoreSize caps how many campaign policies are kept in memory.
	StoreSize int `koanf:"store_size"`

	// MaxSimulations caps the campaigns of one batch request.
	MaxSimulations int `koanf:"max_simulations"`

	// Policy tunes the three decision strategies.
	Policy policy.Config `koanf:"policy"`

	// Simulator configures the environment model of simulated campaigns.
	Simulator simulator.Config `koanf:"simulator"`
}

// New creates a Config with defaults.
func New() *Config {
	return &Config{
		LogLevel:       "info",
		LogFormat:      "text",
		Addr:           ":9080",
		QueueSize:      10_000,
		WorkerCount:    runtime.NumCPU(),
		StoreSize:      10_000,
		MaxSimulations: 1_000,
		Policy:         policy.DefaultConfig(),
		Simulator:      simulator.DefaultConfig(),
	}
}

// Validate rejects values the service cannot run with.
func (c *Config) Validate() error {
	switch {
	case c.Addr == "":
		return fmt.Errorf("%w: addr must not be empty", ErrInvalidConfig)
	case c.LogFormat != "text" && c.LogFormat != "json":
		return fmt.Errorf("%w: log_format %q must be text or json", ErrInvalidConfig, c.LogFormat)
	case c.QueueSize <= 0:
		return fmt.Errorf("%w: queue_size %d must be positive", ErrInvalidConfig, c.QueueSize)
	case c.WorkerCount <= 0:
		return fmt.Errorf("%w: worker_count %d must be positive", ErrInvalidConfig, c.WorkerCount)
	case c.StoreSize <= 0:
		return fmt.Errorf("%w: store_size %d must be positive", ErrInvalidConfig, c.StoreSize)
	case c.MaxSimulations <= 0:
		return fmt.Errorf("%w: max_simulations %d must be positive", ErrInvalidConfig, c.MaxSimulations)
	}
	if err := c.Policy.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if err := c.Simulator.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	return nil
}
