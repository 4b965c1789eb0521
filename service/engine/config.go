package engine

import "fmt"

// Config represents the orchestration driver configuration.
type Config struct {
	// WorkerCount is the number of workers consuming ready node executions.
	WorkerCount int `json:"workerCount,omitempty" yaml:"workerCount,omitempty"`
}

// DefaultConfig returns the default driver configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Validate checks the configuration for invalid values.
func (c *Config) Validate() error {
	if c.WorkerCount <= 0 {
		return fmt.Errorf("workerCount must be positive, got %v", c.WorkerCount)
	}
	return nil
}
