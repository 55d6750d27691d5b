package config

import (
	"fmt"

	"github.com/kilianp07/wildguard/infra/ledger"
	"github.com/kilianp07/wildguard/infra/mqtt"
)

// MQTTConfig enables the field-sensor bridge.
type MQTTConfig struct {
	Enabled bool `json:"enabled"`
	mqtt.Config `json:",squash"`
}

// SetDefaults applies sane defaults.
func (c *MQTTConfig) SetDefaults() {
	if c.Enabled {
		c.Config.SetDefaults()
	}
}

// Validate requires a broker when enabled.
func (c MQTTConfig) Validate() error {
	if c.Enabled && c.Broker == "" {
		return fmt.Errorf("mqtt: broker required")
	}
	return nil
}

// Ledger backends.
const (
	LedgerMemory = "memory"
	LedgerRedis  = "redis"
)

// LedgerConfig selects the dispatch ledger.
type LedgerConfig struct {
	Type  string        `json:"type"`
	Redis ledger.Config `json:"redis"`
}

// SetDefaults applies sane defaults.
func (c *LedgerConfig) SetDefaults() {
	if c.Type == "" {
		c.Type = LedgerMemory
	}
	c.Redis.SetDefaults()
}

// Validate checks the backend name.
func (c LedgerConfig) Validate() error {
	switch c.Type {
	case LedgerMemory:
		return nil
	case LedgerRedis:
		if c.Redis.Addr == "" {
			return fmt.Errorf("ledger: redis.addr required")
		}
		return nil
	default:
		return fmt.Errorf("ledger: unknown type %s", c.Type)
	}
}
