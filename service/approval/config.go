package approval

import (
	"fmt"
	"time"
)

// Config controls the approval background jobs.
type Config struct {
	// PollInterval is how often the criteria poll visits waiting
	// ticket-backed instances.
	PollInterval time.Duration `json:"pollInterval,omitempty" yaml:"pollInterval,omitempty"`

	// PollWorkers bounds how many instances are polled concurrently.
	PollWorkers int `json:"pollWorkers,omitempty" yaml:"pollWorkers,omitempty"`

	// ExpirationInitialDelay postpones the first expiration sweep after
	// startup.
	ExpirationInitialDelay time.Duration `json:"expirationInitialDelay,omitempty" yaml:"expirationInitialDelay,omitempty"`

	// ExpirationPeriod is the fixed interval between sweeps; worst-case
	// expiration latency equals this period.
	ExpirationPeriod time.Duration `json:"expirationPeriod,omitempty" yaml:"expirationPeriod,omitempty"`
}

// DefaultConfig returns the recommended job cadence.
func DefaultConfig() Config {
	return Config{
		PollInterval:           30 * time.Second,
		PollWorkers:            4,
		ExpirationInitialDelay: 5 * time.Minute,
		ExpirationPeriod:       10 * time.Minute,
	}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.PollInterval <= 0 {
		return fmt.Errorf("pollInterval must be positive, got %v", c.PollInterval)
	}
	if c.PollWorkers <= 0 {
		return fmt.Errorf("pollWorkers must be positive, got %v", c.PollWorkers)
	}
	if c.ExpirationPeriod <= 0 {
		return fmt.Errorf("expirationPeriod must be positive, got %v", c.ExpirationPeriod)
	}
	if c.ExpirationInitialDelay < 0 {
		return fmt.Errorf("expirationInitialDelay must not be negative, got %v", c.ExpirationInitialDelay)
	}
	return nil
}
