package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/ottoq/ottoq/core/bundling"
	"github.com/ottoq/ottoq/core/engine"
	"github.com/ottoq/ottoq/core/metrics"
	"github.com/ottoq/ottoq/infra/mqtt"
)

// Config is the full engine configuration.
type Config struct {
	Engine     Engine          `json:"engine"`
	Bundling   bundling.Config `json:"bundling"`
	Depot      Depot           `json:"depot"`
	Thresholds []Threshold     `json:"thresholds"`
	Pricing    []Pricing       `json:"pricing"`
	MQTT       MQTT            `json:"mqtt"`
	Metrics    metrics.Config  `json:"metrics"`
}

// Engine mirrors engine.Config for unmarshalling.
type Engine = engine.Config

// MQTT wraps the connector config with an enable switch: the engine can run
// fully in-process for simulation.
type MQTT struct {
	Enabled     bool `json:"enabled"`
	mqtt.Config `json:",squash"`
}

// Load reads the configuration file (json or yaml), applies K_ environment
// overrides and validates the result.
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
	// Optional environment overrides
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

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Engine.SetDefaults()
	c.Bundling.SetDefaults()
	c.MQTT.SetDefaults()
	if len(c.Thresholds) == 0 {
		c.Thresholds = DefaultThresholds()
	}
	if len(c.Pricing) == 0 {
		c.Pricing = DefaultPricing()
	}
}

// Validate checks every section.
func (c *Config) Validate() error {
	if err := c.Engine.Validate(); err != nil {
		return err
	}
	if err := c.Depot.Validate(); err != nil {
		return err
	}
	catalog, err := c.Catalog()
	if err != nil {
		return err
	}
	for _, t := range catalog {
		if err := t.Validate(); err != nil {
			return err
		}
	}
	schedule, err := c.Schedule()
	if err != nil {
		return err
	}
	for _, p := range schedule {
		if err := p.Validate(); err != nil {
			return err
		}
	}
	return nil
}
