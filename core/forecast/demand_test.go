package forecast

import (
	"testing"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// fixedCapacity answers every FreeBy query with the same count per type.
type fixedCapacity map[model.StallType]int

func (c fixedCapacity) FreeBy(typ model.StallType, _ time.Time) int { return c[typ] }

func TestWindowsHorizonLength(t *testing.T) {
	d := NewDemand(fixedCapacity{})
	windows := d.Windows(nil, time.Now())
	if len(windows) != Horizon {
		t.Fatalf("got %d windows, want %d", len(windows), Horizon)
	}
	for _, w := range windows {
		if w.Deficit < 0 {
			t.Fatalf("window %s has negative deficit", w.Hour)
		}
	}
}

func TestOverduePilesIntoFirstWindow(t *testing.T) {
	d := NewDemand(fixedCapacity{model.StallFastCharge: 1})
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, Urgency: 100, Overdue: true, PredictedNeed: now.Add(-3 * time.Hour)},
		{VehicleID: "v2", Type: model.ServiceCharge, Urgency: 95, Overdue: true, PredictedNeed: now.Add(-time.Hour)},
		{VehicleID: "v3", Type: model.ServiceCharge, Urgency: 40, PredictedNeed: now.Add(5 * time.Hour)},
	}
	windows := d.Windows(queue, now)
	if windows[0].Needed != 2 {
		t.Fatalf("first window needed = %d, want 2 overdue", windows[0].Needed)
	}
	if windows[0].Available != 1 {
		t.Fatalf("first window available = %d, want 1", windows[0].Available)
	}
	if windows[5].Needed != 1 {
		t.Fatalf("window +5h needed = %d, want 1", windows[5].Needed)
	}
	// Past-due needs must not reappear in later windows.
	for _, w := range windows[1:5] {
		if w.Needed != 0 {
			t.Fatalf("window %s needed = %d, want 0", w.Hour, w.Needed)
		}
	}
}

func TestChargeDemandCountsStandardChargers(t *testing.T) {
	d := NewDemand(fixedCapacity{model.StallStandardCharge: 2})
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, Urgency: 100, Overdue: true, PredictedNeed: now},
	}
	windows := d.Windows(queue, now)
	if windows[0].Available != 2 {
		t.Fatalf("available = %d, want the standard chargers counted", windows[0].Available)
	}
	if windows[0].Deficit != 0 {
		t.Fatalf("deficit = %d, want 0 with idle charge capacity", windows[0].Deficit)
	}
}

func TestSurgeAppliedBeforeDeficit(t *testing.T) {
	d := NewDemand(fixedCapacity{model.StallFastCharge: 6})
	now := time.Date(2026, 8, 31, 10, 0, 0, 0, time.UTC)
	queue := make([]model.ServiceNeed, 0, 10)
	for i := 0; i < 10; i++ {
		queue = append(queue, model.ServiceNeed{
			VehicleID: string(rune('a' + i)), Type: model.ServiceCharge,
			PredictedNeed: now.Add(10 * time.Minute),
		})
	}

	base := d.Windows(queue, now)
	if base[0].Deficit != 4 {
		t.Fatalf("deficit without surge = %d, want 4", base[0].Deficit)
	}

	d.SetSurge(2)
	surged := d.Windows(queue, now)
	// ceil(10*2) - 6, scaled before the subtraction, not after.
	if surged[0].Needed != 20 {
		t.Fatalf("surged needed = %d, want 20", surged[0].Needed)
	}
	if surged[0].Deficit != 14 {
		t.Fatalf("surged deficit = %d, want 14", surged[0].Deficit)
	}
}

func TestSurgeResetBelowOne(t *testing.T) {
	d := NewDemand(fixedCapacity{})
	d.SetSurge(-3)
	if d.Surge() != 1 {
		t.Fatalf("surge = %v, want 1", d.Surge())
	}
}

func TestDeficitClampedAtZero(t *testing.T) {
	d := NewDemand(fixedCapacity{model.StallFastCharge: 50})
	now := time.Now()
	queue := []model.ServiceNeed{
		{VehicleID: "v1", Type: model.ServiceCharge, PredictedNeed: now},
	}
	windows := d.Windows(queue, now)
	if windows[0].Deficit != 0 {
		t.Fatalf("deficit = %d, want 0 with surplus capacity", windows[0].Deficit)
	}
}

func TestPeakDeficit(t *testing.T) {
	windows := []model.DemandWindow{
		{Hour: "10:00", Deficit: 2},
		{Hour: "11:00", Deficit: 7},
		{Hour: "12:00", Deficit: 0},
	}
	if got := PeakDeficit(windows); got != 7 {
		t.Fatalf("peak = %d, want 7", got)
	}
	if got := PeakDeficit(nil); got != 0 {
		t.Fatalf("empty peak = %d", got)
	}
}
