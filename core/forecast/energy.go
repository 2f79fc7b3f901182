package forecast

import (
	"sort"
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// monthlyDays is the extrapolation multiplier for monthly savings: daily
// savings times a fixed 30-day month.
const monthlyDays = 30

// ChargeSession is one charging occupancy on a charge stall. End is zero
// while the session is in flight.
type ChargeSession struct {
	VehicleID string
	StallID   string
	PowerKW   float64
	Start     time.Time
	End       time.Time
}

// Ledger records completed and in-flight charge sessions.
type Ledger struct {
	mu       sync.Mutex
	sessions []ChargeSession
}

// NewLedger returns an empty ledger.
func NewLedger() *Ledger { return &Ledger{} }

// Open records the start of a charge session.
func (l *Ledger) Open(vehicleID, stallID string, powerKW float64, start time.Time) {
	l.mu.Lock()
	l.sessions = append(l.sessions, ChargeSession{
		VehicleID: vehicleID,
		StallID:   stallID,
		PowerKW:   powerKW,
		Start:     start,
	})
	l.mu.Unlock()
}

// Close marks the newest open session for the vehicle as ended.
func (l *Ledger) Close(vehicleID string, end time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for i := len(l.sessions) - 1; i >= 0; i-- {
		s := &l.sessions[i]
		if s.VehicleID == vehicleID && s.End.IsZero() {
			s.End = end
			return
		}
	}
}

// Sessions returns a copy of all recorded sessions, oldest first.
func (l *Ledger) Sessions() []ChargeSession {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]ChargeSession, len(l.sessions))
	copy(out, l.sessions)
	sort.SliceStable(out, func(i, j int) bool { return out[i].Start.Before(out[j].Start) })
	return out
}

// ActiveCount returns the number of in-flight sessions at t.
func (l *Ledger) ActiveCount(t time.Time) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	n := 0
	for _, s := range l.sessions {
		if !s.Start.After(t) && (s.End.IsZero() || s.End.After(t)) {
			n++
		}
	}
	return n
}

// EnergyReport summarises realized charge cost against the all-peak
// baseline.
type EnergyReport struct {
	TotalKWh       float64 `json:"total_kwh"`
	TotalCost      float64 `json:"total_cost"`
	AvgRate        float64 `json:"avg_rate"`
	PeakCost       float64 `json:"peak_cost"`
	SavingsUSD     float64 `json:"savings_usd"`
	SavingsPct     float64 `json:"savings_pct"`
	MonthlySavings float64 `json:"monthly_savings"`
}

// ComputeEnergy prices every session hour-by-hour against the schedule.
// In-flight sessions are priced up to now. Pricing periods match by hour of
// day, so bands wrapping past midnight price correctly. Savings against the
// all-peak baseline are clamped at zero; the monthly projection scales the
// daily savings rate over a fixed 30-day month.
func ComputeEnergy(sessions []ChargeSession, pricing model.PricingSchedule, now time.Time) EnergyReport {
	var rep EnergyReport
	if len(sessions) == 0 || len(pricing) == 0 {
		return rep
	}

	var spanStart, spanEnd time.Time
	for _, s := range sessions {
		end := s.End
		if end.IsZero() || end.After(now) {
			end = now
		}
		if !end.After(s.Start) {
			continue
		}
		if spanStart.IsZero() || s.Start.Before(spanStart) {
			spanStart = s.Start
		}
		if end.After(spanEnd) {
			spanEnd = end
		}
		for cur := s.Start; cur.Before(end); {
			hourEnd := cur.Truncate(time.Hour).Add(time.Hour)
			if hourEnd.After(end) {
				hourEnd = end
			}
			kwh := s.PowerKW * hourEnd.Sub(cur).Hours()
			rep.TotalKWh += kwh
			rep.TotalCost += kwh * pricing.RateFor(cur.Hour())
			cur = hourEnd
		}
	}

	if rep.TotalKWh > 0 {
		rep.AvgRate = rep.TotalCost / rep.TotalKWh
	}
	rep.PeakCost = rep.TotalKWh * pricing.PeakRate()
	rep.SavingsUSD = rep.PeakCost - rep.TotalCost
	if rep.SavingsUSD < 0 {
		rep.SavingsUSD = 0
	}
	if rep.PeakCost > 0 {
		rep.SavingsPct = rep.SavingsUSD / rep.PeakCost * 100
	}
	if days := spanEnd.Sub(spanStart).Hours() / 24; days > 0 {
		daily := rep.SavingsUSD / days
		if days < 1 {
			daily = rep.SavingsUSD
		}
		rep.MonthlySavings = daily * monthlyDays
	}
	return rep
}
