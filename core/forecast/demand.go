package forecast

import (
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// Horizon is the length of the rolling demand forecast.
const Horizon = 24

// Capacity answers how many stalls of a type are expected free at a given
// time. The allocator satisfies this.
type Capacity interface {
	FreeBy(typ model.StallType, t time.Time) int
}

// Demand builds the rolling 24h demand forecast.
type Demand struct {
	capacity Capacity

	mu    sync.RWMutex
	surge float64 // multiplier applied to needed counts, 1 when unset
}

// NewDemand returns a forecaster over the given capacity source.
func NewDemand(capacity Capacity) *Demand {
	return &Demand{capacity: capacity, surge: 1}
}

// SetSurge sets the externally toggled surge multiplier. Values at or below
// zero reset to 1.
func (d *Demand) SetSurge(m float64) {
	if m <= 0 {
		m = 1
	}
	d.mu.Lock()
	d.surge = m
	d.mu.Unlock()
}

// Surge returns the active multiplier.
func (d *Demand) Surge() float64 {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.surge
}

// Windows computes one DemandWindow per hour of the horizon. The surge
// multiplier scales needed counts before the deficit subtraction.
func (d *Demand) Windows(queue []model.ServiceNeed, now time.Time) []model.DemandWindow {
	surge := d.Surge()
	start := now.Truncate(time.Hour)
	windows := make([]model.DemandWindow, 0, Horizon)
	for h := 0; h < Horizon; h++ {
		from := start.Add(time.Duration(h) * time.Hour)
		to := from.Add(time.Hour)

		needed := 0
		types := make(map[model.StallType]bool)
		for _, n := range queue {
			if n.PredictedNeed.Before(from) && h > 0 {
				continue
			}
			// Overdue needs pile into the first window.
			inWindow := !n.PredictedNeed.Before(from) && n.PredictedNeed.Before(to)
			if h == 0 && n.PredictedNeed.Before(to) {
				inWindow = true
			}
			if !inWindow {
				continue
			}
			needed++
			for _, st := range n.Type.StallsFor() {
				types[st] = true
			}
		}
		needed = int(math.Ceil(float64(needed) * surge))

		available := 0
		if len(types) > 0 {
			for t := range types {
				available += d.capacity.FreeBy(t, from)
			}
		} else if d.capacity != nil {
			for _, t := range []model.StallType{
				model.StallFastCharge, model.StallStandardCharge,
				model.StallDetailClean, model.StallServiceBay,
			} {
				available += d.capacity.FreeBy(t, from)
			}
		}

		deficit := needed - available
		if deficit < 0 {
			deficit = 0
		}
		windows = append(windows, model.DemandWindow{
			Hour:      fmt.Sprintf("%02d:00", from.Hour()),
			Needed:    needed,
			Available: available,
			Deficit:   deficit,
		})
	}
	return windows
}

// PeakDeficit returns the largest deficit across the horizon.
func PeakDeficit(windows []model.DemandWindow) int {
	peak := 0
	for _, w := range windows {
		if w.Deficit > peak {
			peak = w.Deficit
		}
	}
	return peak
}
