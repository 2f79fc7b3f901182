package urgency

import (
	"fmt"
	"sort"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

const (
	// ScoreWarning is the score reached exactly at the threshold.
	ScoreWarning = 70
	// ScoreOverdue is the score reached at 1.3x the threshold.
	ScoreOverdue = 90
	// CriticalSoC forces a charge score of 100 regardless of the catalog.
	CriticalSoC = 10.0

	overdueRatio = 1.3
)

// Engine computes service needs from telemetry and the threshold catalog.
type Engine struct {
	catalog map[model.ServiceType]model.ServiceThreshold
}

// NewEngine builds an engine over the given catalog. Entries with the same
// service type overwrite earlier ones.
func NewEngine(catalog []model.ServiceThreshold) (*Engine, error) {
	m := make(map[model.ServiceType]model.ServiceThreshold, len(catalog))
	for _, t := range catalog {
		if err := t.Validate(); err != nil {
			return nil, err
		}
		m[t.Type] = t
	}
	return &Engine{catalog: m}, nil
}

// Threshold returns the catalog entry for a service type.
func (e *Engine) Threshold(t model.ServiceType) (model.ServiceThreshold, bool) {
	th, ok := e.catalog[t]
	return th, ok
}

// Score maps an elapsed/threshold ratio onto the 0-100 urgency scale. The
// curve is saturating: exactly at threshold scores ScoreWarning, 1.3x the
// threshold scores ScoreOverdue, beyond that it flattens toward 100.
func Score(ratio float64) float64 {
	switch {
	case ratio <= 0:
		return 0
	case ratio < 1:
		return ratio * ScoreWarning
	case ratio < overdueRatio:
		return ScoreWarning + (ratio-1)/(overdueRatio-1)*(ScoreOverdue-ScoreWarning)
	default:
		s := ScoreOverdue + (ratio-overdueRatio)*25
		if s > 100 {
			return 100
		}
		return s
	}
}

// NeedsFor computes one ServiceNeed per applicable catalog entry for the
// vehicle. Vehicles that have never received a time- or mileage-based
// service are treated as due from their first telemetry report.
func (e *Engine) NeedsFor(v model.Vehicle, now time.Time) []model.ServiceNeed {
	needs := make([]model.ServiceNeed, 0, len(e.catalog))
	for _, t := range model.AllServiceTypes() {
		th, ok := e.catalog[t]
		if !ok {
			continue
		}
		if n, ok := e.needFor(v, th, now); ok {
			needs = append(needs, n)
		}
	}
	return needs
}

func (e *Engine) needFor(v model.Vehicle, th model.ServiceThreshold, now time.Time) (model.ServiceNeed, bool) {
	n := model.ServiceNeed{
		VehicleID:  v.ID,
		Type:       th.Type,
		DaysSince:  -1,
		MilesSince: -1,
	}

	var ratio float64
	switch th.Unit {
	case model.UnitPercent:
		// Charge urgency: the lower the SoC, the higher the score.
		if v.SoC <= 0 || v.SoC <= CriticalSoC {
			ratio = overdueRatio + 1 // saturate
			n.Reason = fmt.Sprintf("soc %.0f%% critically low", v.SoC)
		} else {
			ratio = th.Value / v.SoC
			n.Reason = fmt.Sprintf("soc %.0f%% vs %s", v.SoC, th.Trigger)
		}
		n.PredictedNeed = predictChargeNeed(v, th, now)
	case model.UnitDays:
		last, ok := v.LastServiceAt(th.Type)
		if !ok {
			ratio = 1
			n.Reason = "never serviced"
			n.PredictedNeed = now
			break
		}
		n.DaysSince = now.Sub(last).Hours() / 24
		ratio = n.DaysSince / th.Value
		n.Reason = fmt.Sprintf("%.0f days since last %s", n.DaysSince, th.Type)
		n.PredictedNeed = last.Add(time.Duration(th.Value*24) * time.Hour)
		// Secondary mileage trigger, when the catalog carries one.
		if th.MileageValue > 0 {
			if mr, miles, ok := mileageRatio(v, th, now); ok && mr > ratio {
				ratio = mr
				n.MilesSince = miles
				n.Reason = fmt.Sprintf("%.0f miles since last %s", miles, th.Type)
			}
		}
	case model.UnitMiles:
		mr, miles, ok := mileageRatio(v, th, now)
		if !ok {
			ratio = 1
			n.Reason = "never serviced"
			n.PredictedNeed = now
			break
		}
		n.MilesSince = miles
		ratio = mr
		n.Reason = fmt.Sprintf("%.0f of %.0f miles", miles, th.Value)
		n.PredictedNeed = predictMileageNeed(v, th, miles, now)
	default:
		return n, false
	}

	n.Urgency = Score(ratio)
	n.Overdue = ratio >= 1
	if n.PredictedNeed.IsZero() {
		n.PredictedNeed = now
	}
	return n, true
}

// mileageRatio returns elapsed/threshold for mileage triggers. The elapsed
// distance is approximated from the odometer and the average daily distance
// when no per-service odometer snapshot exists.
func mileageRatio(v model.Vehicle, th model.ServiceThreshold, now time.Time) (ratio, miles float64, ok bool) {
	last, has := v.LastServiceAt(th.Type)
	if !has {
		return 0, 0, false
	}
	days := now.Sub(last).Hours() / 24
	if days < 0 {
		days = 0
	}
	miles = days * v.DailyMiles
	limit := th.MileageValue
	if th.Unit == model.UnitMiles {
		limit = th.Value
	}
	if limit <= 0 {
		return 0, miles, false
	}
	return miles / limit, miles, true
}

func predictMileageNeed(v model.Vehicle, th model.ServiceThreshold, elapsed float64, now time.Time) time.Time {
	if v.DailyMiles <= 0 {
		return now
	}
	remaining := th.Value - elapsed
	if remaining <= 0 {
		return now
	}
	return now.Add(time.Duration(remaining/v.DailyMiles*24) * time.Hour)
}

// predictChargeNeed estimates when the vehicle drains to the charge
// threshold assuming its average daily consumption.
func predictChargeNeed(v model.Vehicle, th model.ServiceThreshold, now time.Time) time.Time {
	if v.SoC <= th.Value {
		return now
	}
	if v.DailyMiles <= 0 || v.RangeMiles <= 0 || v.SoC <= 0 {
		return now.Add(24 * time.Hour)
	}
	milesPerPct := v.RangeMiles / v.SoC
	spareMiles := (v.SoC - th.Value) * milesPerPct
	return now.Add(time.Duration(spareMiles/v.DailyMiles*24) * time.Hour)
}

// BuildQueue orders needs into the depot-wide priority queue: urgency
// descending, then earlier predicted-need date, then catalog priority weight
// descending, then vehicle id. The ordering is total and deterministic.
func (e *Engine) BuildQueue(needs []model.ServiceNeed) []model.ServiceNeed {
	q := make([]model.ServiceNeed, len(needs))
	copy(q, needs)
	sort.SliceStable(q, func(i, j int) bool {
		a, b := q[i], q[j]
		if a.Urgency != b.Urgency {
			return a.Urgency > b.Urgency
		}
		if !a.PredictedNeed.Equal(b.PredictedNeed) {
			return a.PredictedNeed.Before(b.PredictedNeed)
		}
		wa := e.catalog[a.Type].PriorityWeight
		wb := e.catalog[b.Type].PriorityWeight
		if wa != wb {
			return wa > wb
		}
		if a.VehicleID != b.VehicleID {
			return a.VehicleID < b.VehicleID
		}
		return a.Type < b.Type
	})
	return q
}

// Scan computes and orders needs for a whole fleet. An empty fleet or empty
// catalog yields an empty, well-formed queue.
func (e *Engine) Scan(fleet []model.Vehicle, now time.Time) []model.ServiceNeed {
	var all []model.ServiceNeed
	for _, v := range fleet {
		if v.Status == model.StatusOffline {
			continue
		}
		all = append(all, e.NeedsFor(v, now)...)
	}
	return e.BuildQueue(all)
}
