package config

import (
	"fmt"

	"github.com/ottoq/ottoq/core/model"
)

// Threshold is one service catalog entry as configured.
type Threshold struct {
	Service         string  `json:"service"`
	Trigger         string  `json:"trigger"`
	Value           float64 `json:"value"`
	Unit            string  `json:"unit"`
	MileageValue    float64 `json:"mileage_value"`
	PriorityWeight  float64 `json:"priority_weight"`
	DurationMinutes int     `json:"duration_minutes"`
}

// Pricing is one energy rate band as configured.
type Pricing struct {
	Name      string   `json:"name"`
	StartHour int      `json:"start_hour"`
	EndHour   int      `json:"end_hour"`
	Rate      float64  `json:"rate_per_kwh"`
	Days      []string `json:"days"`
}

// Catalog converts the thresholds section into the model catalog.
func (c Config) Catalog() ([]model.ServiceThreshold, error) {
	out := make([]model.ServiceThreshold, 0, len(c.Thresholds))
	for _, t := range c.Thresholds {
		typ, err := model.ParseServiceType(t.Service)
		if err != nil {
			return nil, fmt.Errorf("thresholds: %w", err)
		}
		unit, err := model.ParseThresholdUnit(t.Unit)
		if err != nil {
			return nil, fmt.Errorf("thresholds: %w", err)
		}
		out = append(out, model.ServiceThreshold{
			Type:            typ,
			Trigger:         t.Trigger,
			Value:           t.Value,
			Unit:            unit,
			MileageValue:    t.MileageValue,
			PriorityWeight:  t.PriorityWeight,
			DurationMinutes: t.DurationMinutes,
		})
	}
	return out, nil
}

// Schedule converts the pricing section into the model schedule.
func (c Config) Schedule() (model.PricingSchedule, error) {
	out := make(model.PricingSchedule, 0, len(c.Pricing))
	for _, p := range c.Pricing {
		out = append(out, model.EnergyPricingPeriod{
			Name:       p.Name,
			StartHour:  p.StartHour,
			EndHour:    p.EndHour,
			RatePerKWh: p.Rate,
			Days:       p.Days,
		})
	}
	return out, nil
}

// DefaultThresholds is the built-in service catalog.
func DefaultThresholds() []Threshold {
	return []Threshold{
		{Service: "charge", Trigger: "soc below 30%", Value: 30, Unit: "percent", PriorityWeight: 10, DurationMinutes: 45},
		{Service: "detail_clean", Trigger: "14 days since last clean", Value: 14, Unit: "days", PriorityWeight: 3, DurationMinutes: 30},
		{Service: "tire_rotation", Trigger: "5000 miles since rotation", Value: 5000, Unit: "miles", PriorityWeight: 6, DurationMinutes: 40},
		{Service: "battery_health_check", Trigger: "90 days since last check", Value: 90, Unit: "days", PriorityWeight: 8, DurationMinutes: 60},
		{Service: "full_service", Trigger: "180 days or 12000 miles", Value: 180, Unit: "days", MileageValue: 12000, PriorityWeight: 7, DurationMinutes: 120},
	}
}

// DefaultPricing is the built-in time-of-day schedule. The off-peak band
// wraps past midnight.
func DefaultPricing() []Pricing {
	return []Pricing{
		{Name: "off_peak", StartHour: 22, EndHour: 5, Rate: 0.06},
		{Name: "shoulder", StartHour: 6, EndHour: 15, Rate: 0.10},
		{Name: "peak", StartHour: 16, EndHour: 21, Rate: 0.14},
	}
}
