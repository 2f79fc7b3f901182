package urgency

import (
	"testing"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

func testCatalog() []model.ServiceThreshold {
	return []model.ServiceThreshold{
		{Type: model.ServiceCharge, Trigger: "soc_below_30", Value: 30, Unit: model.UnitPercent, PriorityWeight: 10, DurationMinutes: 45},
		{Type: model.ServiceDetailClean, Trigger: "days_14", Value: 14, Unit: model.UnitDays, PriorityWeight: 3, DurationMinutes: 30},
		{Type: model.ServiceTireRotation, Trigger: "miles_5000", Value: 5000, Unit: model.UnitMiles, PriorityWeight: 6, DurationMinutes: 40},
		{Type: model.ServiceBatteryHealthCheck, Trigger: "days_90", Value: 90, Unit: model.UnitDays, PriorityWeight: 8, DurationMinutes: 60},
	}
}

func TestScoreCurve(t *testing.T) {
	cases := []struct {
		name  string
		ratio float64
		want  float64
	}{
		{"zero", 0, 0},
		{"half", 0.5, 35},
		{"at threshold", 1, 70},
		{"overdue boundary", 1.3, 90},
		{"deep overdue", 1.7, 100},
		{"negative", -2, 0},
	}
	for _, c := range cases {
		if got := Score(c.ratio); got != c.want {
			t.Errorf("%s: Score(%v) = %v, want %v", c.name, c.ratio, got, c.want)
		}
	}
}

func TestScoreBounds(t *testing.T) {
	for r := -1.0; r < 10; r += 0.05 {
		s := Score(r)
		if s < 0 || s > 100 {
			t.Fatalf("Score(%v) = %v outside [0,100]", r, s)
		}
	}
}

func TestScoreMonotonic(t *testing.T) {
	prev := -1.0
	for r := 0.0; r < 5; r += 0.01 {
		s := Score(r)
		if s < prev {
			t.Fatalf("score decreased at ratio %v: %v < %v", r, s, prev)
		}
		prev = s
	}
}

func TestCriticalSoCSaturates(t *testing.T) {
	eng, err := NewEngine(testCatalog())
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	now := time.Now()
	v := model.Vehicle{
		ID: "av-9", Category: model.CategoryAutonomousFleet,
		BatteryKWh: 75, SoC: 8, RangeMiles: 20, DailyMiles: 100,
		Status: model.StatusActive,
	}
	needs := eng.NeedsFor(v, now)
	var charge *model.ServiceNeed
	for i := range needs {
		if needs[i].Type == model.ServiceCharge {
			charge = &needs[i]
		}
	}
	if charge == nil {
		t.Fatal("expected a charge need")
	}
	if charge.Urgency != 100 {
		t.Errorf("critical SoC should score 100, got %v", charge.Urgency)
	}
	if !charge.Overdue {
		t.Error("critical SoC charge need should be overdue")
	}
}

func TestChargeRatioAboveThreshold(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	v := model.Vehicle{
		ID: "av-1", Category: model.CategoryAutonomousFleet,
		BatteryKWh: 75, SoC: 60, RangeMiles: 150, DailyMiles: 80,
		Status: model.StatusActive,
	}
	needs := eng.NeedsFor(v, time.Now())
	for _, n := range needs {
		if n.Type != model.ServiceCharge {
			continue
		}
		// ratio 30/60 = 0.5, below threshold
		if n.Overdue {
			t.Error("healthy SoC should not be overdue")
		}
		if n.Urgency >= ScoreWarning {
			t.Errorf("healthy SoC urgency %v should be below warning", n.Urgency)
		}
	}
}

func TestDaysOverdue(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	now := time.Now()
	v := model.Vehicle{
		ID: "mv-1", Category: model.CategoryMemberOwned,
		BatteryKWh: 60, SoC: 80, RangeMiles: 200, DailyMiles: 30,
		Status: model.StatusActive,
		LastServiced: map[model.ServiceType]time.Time{
			model.ServiceDetailClean: now.Add(-21 * 24 * time.Hour),
		},
	}
	needs := eng.NeedsFor(v, now)
	for _, n := range needs {
		if n.Type != model.ServiceDetailClean {
			continue
		}
		// 21/14 = 1.5, beyond the overdue boundary
		if !n.Overdue {
			t.Error("21 days against a 14 day threshold must be overdue")
		}
		if n.Urgency < ScoreOverdue {
			t.Errorf("urgency %v below overdue score", n.Urgency)
		}
		if n.DaysSince < 20.9 || n.DaysSince > 21.1 {
			t.Errorf("days since = %v, want ~21", n.DaysSince)
		}
	}
}

func TestNeverServicedIsDue(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	now := time.Now()
	v := model.Vehicle{
		ID: "av-2", Category: model.CategoryAutonomousFleet,
		BatteryKWh: 75, SoC: 90, RangeMiles: 220, DailyMiles: 50,
		Status: model.StatusActive,
	}
	needs := eng.NeedsFor(v, now)
	for _, n := range needs {
		if n.Type == model.ServiceDetailClean || n.Type == model.ServiceBatteryHealthCheck {
			if !n.Overdue {
				t.Errorf("%s: never-serviced vehicle should be due", n.Type)
			}
			if n.Urgency != ScoreWarning {
				t.Errorf("%s: never-serviced urgency = %v, want %v", n.Type, n.Urgency, ScoreWarning)
			}
		}
	}
}

func TestQueueOrderDeterministic(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	now := time.Unix(1700000000, 0)
	needs := []model.ServiceNeed{
		{VehicleID: "b", Type: model.ServiceDetailClean, Urgency: 70, PredictedNeed: now},
		{VehicleID: "a", Type: model.ServiceCharge, Urgency: 95, PredictedNeed: now},
		{VehicleID: "c", Type: model.ServiceTireRotation, Urgency: 70, PredictedNeed: now.Add(-time.Hour)},
		{VehicleID: "a", Type: model.ServiceBatteryHealthCheck, Urgency: 70, PredictedNeed: now},
	}
	q := eng.BuildQueue(needs)
	if q[0].VehicleID != "a" || q[0].Type != model.ServiceCharge {
		t.Fatalf("highest urgency must lead, got %s/%s", q[0].VehicleID, q[0].Type)
	}
	// Equal urgency: earlier predicted need wins.
	if q[1].VehicleID != "c" {
		t.Fatalf("earlier predicted need should rank second, got %s", q[1].VehicleID)
	}
	// Equal urgency and date: higher priority weight wins (battery check 8 > clean 3).
	if q[2].Type != model.ServiceBatteryHealthCheck {
		t.Fatalf("priority weight tiebreak failed, got %s", q[2].Type)
	}
	// Same input, same order, every time.
	for i := 0; i < 10; i++ {
		again := eng.BuildQueue(needs)
		for j := range q {
			if q[j].VehicleID != again[j].VehicleID || q[j].Type != again[j].Type {
				t.Fatalf("ordering not deterministic at index %d", j)
			}
		}
	}
}

func TestScanSkipsOffline(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	now := time.Now()
	fleet := []model.Vehicle{
		{ID: "on", Category: model.CategoryAutonomousFleet, BatteryKWh: 75, SoC: 5, RangeMiles: 10, DailyMiles: 80, Status: model.StatusActive},
		{ID: "off", Category: model.CategoryAutonomousFleet, BatteryKWh: 75, SoC: 5, RangeMiles: 10, DailyMiles: 80, Status: model.StatusOffline},
	}
	q := eng.Scan(fleet, now)
	for _, n := range q {
		if n.VehicleID == "off" {
			t.Fatal("offline vehicle must not be scored")
		}
	}
	if len(q) == 0 {
		t.Fatal("online vehicle should produce needs")
	}
}

func TestScanEmptyFleet(t *testing.T) {
	eng, _ := NewEngine(testCatalog())
	q := eng.Scan(nil, time.Now())
	if len(q) != 0 {
		t.Fatalf("empty fleet should yield empty queue, got %d", len(q))
	}
}
