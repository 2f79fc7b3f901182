package urgency

import (
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// Tracker remembers the last-seen urgency per (vehicle, service type) and
// reports boundary crossings between scans. The map is bounded: entries for
// vehicles that disappear from the scan are dropped.
type Tracker struct {
	mu   sync.Mutex
	last map[trackerKey]float64
}

type trackerKey struct {
	vehicleID string
	service   model.ServiceType
}

// NewTracker returns an empty tracker.
func NewTracker() *Tracker {
	return &Tracker{last: make(map[trackerKey]float64)}
}

// Observe records the scan's needs and returns alerts for scores that newly
// crossed the warning or overdue boundary since the previous scan.
func (t *Tracker) Observe(needs []model.ServiceNeed, now time.Time) []model.UrgencyAlert {
	t.mu.Lock()
	defer t.mu.Unlock()

	var alerts []model.UrgencyAlert
	seen := make(map[trackerKey]float64, len(needs))
	for _, n := range needs {
		k := trackerKey{n.VehicleID, n.Type}
		prev, had := t.last[k]
		seen[k] = n.Urgency
		if !had {
			continue
		}
		if boundary, crossed := crossing(prev, n.Urgency); crossed {
			alerts = append(alerts, model.UrgencyAlert{
				VehicleID: n.VehicleID,
				Type:      n.Type,
				Service:   n.Type.String(),
				Previous:  prev,
				Current:   n.Urgency,
				Boundary:  boundary,
				Time:      now,
			})
		}
	}
	t.last = seen
	return alerts
}

func crossing(prev, cur float64) (string, bool) {
	if prev < ScoreOverdue && cur >= ScoreOverdue {
		return "overdue", true
	}
	if prev < ScoreWarning && cur >= ScoreWarning {
		return "warning", true
	}
	return "", false
}
