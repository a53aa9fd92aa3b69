package extension

import "github.com/xraph/mantle/store"

// Config holds the mantle extension configuration.
// Fields can be set programmatically via Option functions or loaded from
// YAML configuration files (under "extensions.mantle" or "mantle" keys).
type Config struct {
	// DisableMigrate skips store migrations when the engine binds its store.
	DisableMigrate bool `json:"disable_migrate" mapstructure:"disable_migrate" yaml:"disable_migrate"`

	// Discriminator is the document field recording the owning type
	// (default: "_type").
	Discriminator string `json:"discriminator" mapstructure:"discriminator" yaml:"discriminator"`

	// DisableMetrics skips the Prometheus plugin even when a registerer
	// was given.
	DisableMetrics bool `json:"disable_metrics" mapstructure:"disable_metrics" yaml:"disable_metrics"`

	// Audit enables the audit log plugin.
	Audit bool `json:"audit" mapstructure:"audit" yaml:"audit"`

	// RequireConfig requires config to be present in YAML files.
	// If true and no config is found, Register returns an error.
	RequireConfig bool `json:"-" yaml:"-"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	return Config{
		Discriminator: store.DefaultDiscriminator,
	}
}
