package config

import (
	"fmt"

	"github.com/rs/zerolog"
)

// LoggingConfig controls process logging.
type LoggingConfig struct {
	// Level is a zerolog level name: debug, info, warn, error.
	Level string `json:"level"`
	// Format is json or console; empty follows APP_ENV.
	Format string `json:"format"`
	// File additionally writes rotated JSON logs.
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
}

// SetDefaults applies sane defaults.
func (c *LoggingConfig) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.File != "" {
		if c.MaxSizeMB <= 0 {
			c.MaxSizeMB = 50
		}
		if c.MaxBackups <= 0 {
			c.MaxBackups = 5
		}
	}
}

// Validate checks the level and format names.
func (c LoggingConfig) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logging: %w", err)
	}
	switch c.Format {
	case "", "json", "console":
		return nil
	}
	return fmt.Errorf("logging: unknown format %q", c.Format)
}
