package bundling

import (
	"sort"
	"time"

	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/core/urgency"
)

// Bundle is one recommended depot visit covering several service needs for
// the same vehicle.
type Bundle struct {
	VehicleID string
	Needs     []model.ServiceNeed // ordered shortest estimated duration first
	Visit     time.Time           // earliest predicted-need date in the bundle
	Estimated time.Duration
}

// ChargeAdvice recommends when a vehicle should start charging.
type ChargeAdvice struct {
	VehicleID string
	Start     time.Time
	Period    string  // pricing period name, empty when charging immediately
	Rate      float64 // $/kWh at the recommended start
	Immediate bool    // true when urgency dominates cost
}

// Config holds bundling policy parameters.
type Config struct {
	WindowHours int     `json:"window_hours"` // max spread of predicted-need dates in one visit
	SoCFloor    float64 `json:"soc_floor"`    // charge advice below this SoC
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.WindowHours <= 0 {
		c.WindowHours = 72
	}
	if c.SoCFloor <= 0 {
		c.SoCFloor = 40
	}
}

// Advisor groups needs and times charging.
type Advisor struct {
	cfg     Config
	engine  *urgency.Engine
	pricing model.PricingSchedule
}

// NewAdvisor builds an advisor over the urgency engine's catalog and the
// depot pricing schedule.
func NewAdvisor(cfg Config, engine *urgency.Engine, pricing model.PricingSchedule) *Advisor {
	cfg.SetDefaults()
	return &Advisor{cfg: cfg, engine: engine, pricing: pricing}
}

// Bundles groups the queue's needs per vehicle. Needs whose predicted-need
// dates lie within the configured window of the vehicle's most urgent need
// join that visit; later needs start a second visit on a later scan.
func (a *Advisor) Bundles(queue []model.ServiceNeed) []Bundle {
	window := time.Duration(a.cfg.WindowHours) * time.Hour
	byVehicle := make(map[string][]model.ServiceNeed)
	var order []string
	for _, n := range queue {
		if _, seen := byVehicle[n.VehicleID]; !seen {
			order = append(order, n.VehicleID)
		}
		byVehicle[n.VehicleID] = append(byVehicle[n.VehicleID], n)
	}

	bundles := make([]Bundle, 0, len(order))
	for _, id := range order {
		needs := byVehicle[id]
		anchor := needs[0].PredictedNeed
		var included []model.ServiceNeed
		for _, n := range needs {
			if n.PredictedNeed.Sub(anchor) <= window && anchor.Sub(n.PredictedNeed) <= window {
				included = append(included, n)
			}
		}
		b := Bundle{VehicleID: id, Needs: a.sortSteps(included), Visit: anchor}
		for _, n := range b.Needs {
			if th, ok := a.engine.Threshold(n.Type); ok {
				b.Estimated += th.EstimatedDuration()
			}
			if n.PredictedNeed.Before(b.Visit) {
				b.Visit = n.PredictedNeed
			}
		}
		bundles = append(bundles, b)
	}
	return bundles
}

// sortSteps orders bundled needs shortest estimated duration first, urgency
// breaking ties so critical short work never waits behind equal-length work.
func (a *Advisor) sortSteps(needs []model.ServiceNeed) []model.ServiceNeed {
	out := make([]model.ServiceNeed, len(needs))
	copy(out, needs)
	sort.SliceStable(out, func(i, j int) bool {
		di, dj := a.duration(out[i].Type), a.duration(out[j].Type)
		if di != dj {
			return di < dj
		}
		return out[i].Urgency > out[j].Urgency
	})
	return out
}

func (a *Advisor) duration(t model.ServiceType) time.Duration {
	if th, ok := a.engine.Threshold(t); ok {
		return th.EstimatedDuration()
	}
	return time.Hour
}

// AdviseCharge picks a charge-start time for a vehicle below the SoC floor.
// It prefers the cheapest pricing period whose window lets the session
// finish before the deadline, falls back to the next-cheapest that fits and
// finally to immediate charging when urgency dominates cost.
func (a *Advisor) AdviseCharge(v model.Vehicle, deadline time.Time, sessionLen time.Duration, now time.Time) (ChargeAdvice, bool) {
	if !v.NeedsCharge(a.cfg.SoCFloor) {
		return ChargeAdvice{}, false
	}
	advice := ChargeAdvice{VehicleID: v.ID}
	for _, p := range a.pricing.Cheapest() {
		start, ok := nextWindowStart(p, now)
		if !ok {
			continue
		}
		if !start.Add(sessionLen).After(deadline) {
			advice.Start = start
			advice.Period = p.Name
			advice.Rate = p.RatePerKWh
			return advice, true
		}
	}
	advice.Start = now
	advice.Rate = a.pricing.RateFor(now.Hour())
	advice.Immediate = true
	return advice, true
}

// nextWindowStart returns the next time at or after now that falls inside
// the period, handling wrap past midnight.
func nextWindowStart(p model.EnergyPricingPeriod, now time.Time) (time.Time, bool) {
	if p.Contains(now.Hour()) {
		return now, true
	}
	day := time.Date(now.Year(), now.Month(), now.Day(), p.StartHour, 0, 0, 0, now.Location())
	if day.After(now) {
		return day, true
	}
	return day.Add(24 * time.Hour), true
}
