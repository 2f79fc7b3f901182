package bundling

import (
	"testing"
	"time"

	"github.com/ottoq/ottoq/core/model"
	"github.com/ottoq/ottoq/core/urgency"
)

func testAdvisor(t *testing.T) *Advisor {
	t.Helper()
	eng, err := urgency.NewEngine([]model.ServiceThreshold{
		{Type: model.ServiceCharge, Trigger: "soc_below_30", Value: 30, Unit: model.UnitPercent, PriorityWeight: 10, DurationMinutes: 45},
		{Type: model.ServiceDetailClean, Trigger: "days_14", Value: 14, Unit: model.UnitDays, PriorityWeight: 3, DurationMinutes: 30},
		{Type: model.ServiceTireRotation, Trigger: "miles_5000", Value: 5000, Unit: model.UnitMiles, PriorityWeight: 6, DurationMinutes: 40},
	})
	if err != nil {
		t.Fatalf("engine: %v", err)
	}
	pricing := model.PricingSchedule{
		{Name: "off_peak", StartHour: 22, EndHour: 5, RatePerKWh: 0.06},
		{Name: "shoulder", StartHour: 6, EndHour: 15, RatePerKWh: 0.10},
		{Name: "peak", StartHour: 16, EndHour: 21, RatePerKWh: 0.14},
	}
	return NewAdvisor(Config{WindowHours: 72, SoCFloor: 40}, eng, pricing)
}

func TestBundlesGroupPerVehicle(t *testing.T) {
	a := testAdvisor(t)
	now := time.Unix(1700000000, 0)
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, Urgency: 95, PredictedNeed: now},
		{VehicleID: "v2", Type: model.ServiceDetailClean, Urgency: 80, PredictedNeed: now},
		{VehicleID: "v1", Type: model.ServiceTireRotation, Urgency: 72, PredictedNeed: now.Add(24 * time.Hour)},
	}
	bundles := a.Bundles(queue)
	if len(bundles) != 2 {
		t.Fatalf("got %d bundles, want 2", len(bundles))
	}
	// Queue order is preserved: the most urgent vehicle's bundle leads.
	if bundles[0].VehicleID != "v1" || len(bundles[0].Needs) != 2 {
		t.Fatalf("bundle 0 = %s with %d needs", bundles[0].VehicleID, len(bundles[0].Needs))
	}
	if bundles[0].Estimated != 85*time.Minute {
		t.Errorf("estimated = %v, want 85m", bundles[0].Estimated)
	}
	if !bundles[0].Visit.Equal(now) {
		t.Errorf("visit = %v, want %v", bundles[0].Visit, now)
	}
}

func TestBundleStepsShortestFirst(t *testing.T) {
	a := testAdvisor(t)
	now := time.Unix(1700000000, 0)
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, Urgency: 95, PredictedNeed: now},       // 45m
		{VehicleID: "v1", Type: model.ServiceDetailClean, Urgency: 60, PredictedNeed: now},  // 30m
		{VehicleID: "v1", Type: model.ServiceTireRotation, Urgency: 70, PredictedNeed: now}, // 40m
	}
	bundles := a.Bundles(queue)
	if len(bundles) != 1 {
		t.Fatalf("got %d bundles", len(bundles))
	}
	got := bundles[0].Needs
	want := []model.ServiceType{model.ServiceDetailClean, model.ServiceTireRotation, model.ServiceCharge}
	for i, typ := range want {
		if got[i].Type != typ {
			t.Fatalf("step %d = %s, want %s", i, got[i].Type, typ)
		}
	}
}

func TestBundleWindowExcludesFarNeeds(t *testing.T) {
	a := testAdvisor(t)
	now := time.Unix(1700000000, 0)
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, Urgency: 95, PredictedNeed: now},
		{VehicleID: "v1", Type: model.ServiceDetailClean, Urgency: 20, PredictedNeed: now.Add(10 * 24 * time.Hour)},
	}
	bundles := a.Bundles(queue)
	if len(bundles[0].Needs) != 1 {
		t.Fatalf("need 10 days out must not join a 72h window, got %d needs", len(bundles[0].Needs))
	}
}

func TestAdviseChargePrefersCheapWindow(t *testing.T) {
	a := testAdvisor(t)
	// 10:00, shoulder band. Deadline far out, so off-peak at 22:00 fits.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	v := model.Vehicle{ID: "v1", BatteryKWh: 75, SoC: 35, RangeMiles: 90, DailyMiles: 60, Status: model.StatusActive}

	advice, ok := a.AdviseCharge(v, now.Add(48*time.Hour), 45*time.Minute, now)
	if !ok {
		t.Fatal("expected charge advice below the floor")
	}
	if advice.Period != "off_peak" || advice.Rate != 0.06 {
		t.Fatalf("advice = %+v, want off_peak at 0.06", advice)
	}
	if advice.Start.Hour() != 22 {
		t.Fatalf("start hour = %d, want 22", advice.Start.Hour())
	}
	if advice.Immediate {
		t.Fatal("cheap-window advice must not be immediate")
	}
}

func TestAdviseChargeFallsBackWhenDeadlineTight(t *testing.T) {
	a := testAdvisor(t)
	// 10:00 with a 4h deadline: off-peak (22:00) misses, shoulder is active
	// now and fits.
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	v := model.Vehicle{ID: "v1", BatteryKWh: 75, SoC: 20, RangeMiles: 50, DailyMiles: 60, Status: model.StatusActive}

	advice, ok := a.AdviseCharge(v, now.Add(4*time.Hour), 45*time.Minute, now)
	if !ok {
		t.Fatal("expected advice")
	}
	if advice.Period != "shoulder" {
		t.Fatalf("period = %q, want shoulder", advice.Period)
	}
	if !advice.Start.Equal(now) {
		t.Fatalf("start = %v, want now", advice.Start)
	}
}

func TestAdviseChargeImmediateWhenNothingFits(t *testing.T) {
	a := testAdvisor(t)
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	v := model.Vehicle{ID: "v1", BatteryKWh: 75, SoC: 6, RangeMiles: 15, DailyMiles: 60, Status: model.StatusActive}

	// Deadline already passed: no window fits, charge right now.
	advice, ok := a.AdviseCharge(v, now.Add(-time.Hour), 45*time.Minute, now)
	if !ok {
		t.Fatal("expected advice")
	}
	if !advice.Immediate {
		t.Fatalf("advice = %+v, want immediate", advice)
	}
	if !advice.Start.Equal(now) {
		t.Fatalf("start = %v", advice.Start)
	}
}

func TestAdviseChargeSkipsHealthySoC(t *testing.T) {
	a := testAdvisor(t)
	v := model.Vehicle{ID: "v1", BatteryKWh: 75, SoC: 80, RangeMiles: 200, DailyMiles: 60, Status: model.StatusActive}
	if _, ok := a.AdviseCharge(v, time.Now().Add(24*time.Hour), time.Hour, time.Now()); ok {
		t.Fatal("no advice expected above the SoC floor")
	}
}
