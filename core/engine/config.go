package engine

import "fmt"

// Config holds scan-loop parameters.
type Config struct {
	ScanIntervalSeconds int     `json:"scan_interval_seconds"`
	OfferUrgency        float64 `json:"offer_urgency"`         // needs above this urgency become offers
	AutoAdmitUrgency    float64 `json:"auto_admit_urgency"`    // autonomous vehicles above this are admitted
	SurgeMultiplier     float64 `json:"surge_multiplier"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.ScanIntervalSeconds <= 0 {
		c.ScanIntervalSeconds = 30
	}
	if c.OfferUrgency <= 0 {
		c.OfferUrgency = 70
	}
	if c.AutoAdmitUrgency <= 0 {
		c.AutoAdmitUrgency = 90
	}
	if c.SurgeMultiplier <= 0 {
		c.SurgeMultiplier = 1
	}
}

// Validate checks the configuration is sound.
func (c Config) Validate() error {
	if c.ScanIntervalSeconds <= 0 {
		return fmt.Errorf("engine: scan interval must be positive")
	}
	if c.OfferUrgency > 100 || c.AutoAdmitUrgency > 100 {
		return fmt.Errorf("engine: urgency bounds must be within 0-100")
	}
	return nil
}
