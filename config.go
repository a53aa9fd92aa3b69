package mantle

import "github.com/xraph/mantle/store"

// Config holds configuration for the mantle engine.
type Config struct {
	// Discriminator is the document field that records which type owns
	// a document. Defaults to "_type".
	Discriminator string `json:"discriminator,omitempty"`

	// AutoMigrate runs the store's migrations when it is bound.
	// Defaults to true.
	AutoMigrate *bool `json:"auto_migrate,omitempty"`
}

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() Config {
	t := true
	return Config{
		Discriminator: store.DefaultDiscriminator,
		AutoMigrate:   &t,
	}
}

func (c Config) discriminator() string {
	if c.Discriminator == "" {
		return store.DefaultDiscriminator
	}
	return c.Discriminator
}

func (c Config) autoMigrate() bool { return c.AutoMigrate == nil || *c.AutoMigrate }
