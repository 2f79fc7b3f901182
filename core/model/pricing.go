package model

import "fmt"

// EnergyPricingPeriod describes one time-of-day rate band. StartHour and
// EndHour are hours of day (0-23); a period may wrap past midnight, in which
// case StartHour > EndHour.
type EnergyPricingPeriod struct {
	Name       string
	StartHour  int
	EndHour    int
	RatePerKWh float64
	Days       []string // applicable weekdays, empty means every day
}

// Validate checks the period definition.
func (p EnergyPricingPeriod) Validate() error {
	if p.StartHour < 0 || p.StartHour > 23 || p.EndHour < 0 || p.EndHour > 23 {
		return fmt.Errorf("period %s: hours must be within 0-23", p.Name)
	}
	if p.RatePerKWh <= 0 {
		return fmt.Errorf("period %s: rate must be positive", p.Name)
	}
	return nil
}

// Contains reports whether the given hour of day falls inside the period.
// Wrapping periods match hours on either side of midnight.
func (p EnergyPricingPeriod) Contains(hour int) bool {
	if p.StartHour <= p.EndHour {
		return hour >= p.StartHour && hour <= p.EndHour
	}
	return hour >= p.StartHour || hour <= p.EndHour
}

// PricingSchedule is the depot's full set of rate bands.
type PricingSchedule []EnergyPricingPeriod

// RateFor returns the rate active at the given hour of day. If no period
// matches, the peak rate is returned as a conservative default.
func (s PricingSchedule) RateFor(hour int) float64 {
	for _, p := range s {
		if p.Contains(hour) {
			return p.RatePerKWh
		}
	}
	return s.PeakRate()
}

// PeakRate returns the highest rate in the schedule, 0 for an empty schedule.
func (s PricingSchedule) PeakRate() float64 {
	peak := 0.0
	for _, p := range s {
		if p.RatePerKWh > peak {
			peak = p.RatePerKWh
		}
	}
	return peak
}

// Cheapest returns the periods sorted ascending by rate without mutating the
// schedule.
func (s PricingSchedule) Cheapest() []EnergyPricingPeriod {
	out := make([]EnergyPricingPeriod, len(s))
	copy(out, s)
	for i := 1; i < len(out); i++ {
		for j := i; j > 0 && out[j].RatePerKWh < out[j-1].RatePerKWh; j-- {
			out[j], out[j-1] = out[j-1], out[j]
		}
	}
	return out
}

// DemandWindow is one hour of the rolling 24h demand forecast.
type DemandWindow struct {
	Hour      string // label, e.g. "14:00"
	Needed    int
	Available int
	Deficit   int // max(0, Needed-Available), computed after surge scaling
}
