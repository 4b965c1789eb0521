package facilitor

import (
	"fmt"

	"github.com/viant/facilitor/service/approval"
	"github.com/viant/facilitor/service/engine"
	"github.com/viant/facilitor/service/messaging"
)

// Supported storage and queue backends.
const (
	VendorMemory messaging.Vendor = "memory"
	VendorFS     messaging.Vendor = "fs"
)

// Config is a serialisable representation of the service configuration. It
// can be populated from JSON or YAML; nested zero values inherit the package
// defaults.
type Config struct {
	Engine   engine.Config   `json:"engine" yaml:"engine"`
	Approval approval.Config `json:"approval" yaml:"approval"`
	Queue    BackendConfig   `json:"queue" yaml:"queue"`
	Store    BackendConfig   `json:"store" yaml:"store"`
}

// BackendConfig selects a backend for the node execution queue or store.
// The zero value means in-memory; the fs vendor persists under BasePath so
// executions survive a restart.
type BackendConfig struct {
	Vendor   messaging.Vendor `json:"vendor,omitempty" yaml:"vendor,omitempty"`
	BasePath string           `json:"basePath,omitempty" yaml:"basePath,omitempty"`
}

// Validate checks the backend selection.
func (c *BackendConfig) Validate(name string) error {
	switch c.Vendor {
	case "", VendorMemory:
		return nil
	case VendorFS:
		if c.BasePath == "" {
			return fmt.Errorf("%s: fs vendor requires basePath", name)
		}
		return nil
	}
	return fmt.Errorf("%s: unsupported vendor %q", name, c.Vendor)
}

// DefaultConfig returns a Config populated with the package defaults.
func DefaultConfig() *Config {
	return &Config{
		Engine:   engine.DefaultConfig(),
		Approval: approval.DefaultConfig(),
	}
}

// Validate returns an error describing invalid settings or nil.
func (c *Config) Validate() error {
	if c == nil {
		return nil
	}
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Queue.Validate("queue"); err != nil {
		return err
	}
	if err := c.Store.Validate("store"); err != nil {
		return err
	}
	return c.Approval.Validate()
}
