// Package config loads the wildguard service configuration from a YAML or
// JSON file with K_-prefixed environment overrides.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/wildguard/api/incidents"
	"github.com/kilianp07/wildguard/core/dispatch"
	"github.com/kilianp07/wildguard/core/eventlog"
	"github.com/kilianp07/wildguard/core/geo"
	"github.com/kilianp07/wildguard/core/metrics"
	"github.com/kilianp07/wildguard/core/model"
	"github.com/kilianp07/wildguard/infra/alert"
	"github.com/kilianp07/wildguard/infra/content"
	"github.com/kilianp07/wildguard/internal/broker"
)

type Config struct {
	Boundary  model.Boundary   `json:"boundary"`
	Terrain   geo.TerrainTable `json:"terrain"`
	Stations  []model.Station  `json:"stations"`
	Places    []geo.Place      `json:"places"`
	Dispatch  dispatch.Config  `json:"dispatch"`
	Broker    broker.Config    `json:"broker"`
	MQTT      MQTTConfig       `json:"mqtt"`
	Content   content.Config   `json:"content"`
	EventLog  eventlog.Config  `json:"event_log"`
	Metrics   metrics.Config   `json:"metrics"`
	Ledger    LedgerConfig     `json:"ledger"`
	API       APIConfig        `json:"api"`
	Alerts    alert.Config     `json:"alerts"`
	Sentry    SentryConfig     `json:"sentry"`
	Logging   LoggingConfig    `json:"logging"`
	StageTOMS int              `json:"stage_timeout_ms"`
}

// APIConfig enables the HTTP API.
type APIConfig struct {
	Enabled bool `json:"enabled"`
	incidents.Config `json:",squash"`
}

// LoadEnvFile loads variables from path into the process environment without
// overriding existing ones. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("load %s: %w", path, err)
	}
	return nil
}

func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// K_MQTT__BROKER overrides mqtt.broker.
	if err := k.Load(env.Provider("K_", "__", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section's zero values.
func (c *Config) SetDefaults() {
	if len(c.Terrain) == 0 {
		c.Terrain = geo.DefaultTerrain()
	}
	if c.StageTOMS <= 0 {
		c.StageTOMS = 10000
	}
	c.Dispatch.SetDefaults()
	c.Broker.SetDefaults()
	c.MQTT.SetDefaults()
	c.Content.SetDefaults()
	c.Ledger.SetDefaults()
	c.Logging.SetDefaults()
	c.Sentry.SetDefaults(c.Boundary.Name)
	if c.API.Addr == "" {
		c.API.Addr = ":8080"
	}
}

// Validate checks every section. Roster and terrain problems wrap
// geo.ErrConfiguration.
func (c Config) Validate() error {
	if err := validateBoundary(c.Boundary); err != nil {
		return err
	}
	if err := c.Terrain.Validate(); err != nil {
		return err
	}
	if err := geo.ValidateRoster(c.Stations, c.Terrain); err != nil {
		return err
	}
	for _, s := range c.Stations {
		if !c.Boundary.Contains(s.Location) {
			return fmt.Errorf("%w: station %s lies outside %s", geo.ErrConfiguration, s.ID, c.Boundary.Name)
		}
	}
	checks := []func() error{
		c.Dispatch.Validate,
		c.MQTT.Validate,
		c.Content.Validate,
		c.Ledger.Validate,
		c.Alerts.Validate,
		c.Logging.Validate,
	}
	for _, check := range checks {
		if err := check(); err != nil {
			return err
		}
	}
	return nil
}

func validateBoundary(b model.Boundary) error {
	if b.MinLat >= b.MaxLat || b.MinLon >= b.MaxLon {
		return fmt.Errorf("%w: boundary %q is empty", geo.ErrConfiguration, b.Name)
	}
	if b.MinLat < -90 || b.MaxLat > 90 || b.MinLon < -180 || b.MaxLon > 180 {
		return fmt.Errorf("%w: boundary %q out of range", geo.ErrConfiguration, b.Name)
	}
	return nil
}
