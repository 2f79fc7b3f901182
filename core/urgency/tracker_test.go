package urgency

import (
	"testing"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

func need(id string, typ model.ServiceType, urgency float64) model.ServiceNeed {
	return model.ServiceNeed{VehicleID: id, Type: typ, Urgency: urgency}
}

func TestTrackerWarningCrossing(t *testing.T) {
	tr := NewTracker()
	now := time.Now()

	alerts := tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 65)}, now)
	if len(alerts) != 0 {
		t.Fatalf("first observation must not alert, got %d", len(alerts))
	}

	alerts = tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 72)}, now)
	if len(alerts) != 1 {
		t.Fatalf("expected one warning alert, got %d", len(alerts))
	}
	if alerts[0].Boundary != "warning" {
		t.Errorf("boundary = %q, want warning", alerts[0].Boundary)
	}
	if alerts[0].Previous != 65 || alerts[0].Current != 72 {
		t.Errorf("scores = %v -> %v", alerts[0].Previous, alerts[0].Current)
	}
}

func TestTrackerOverdueCrossing(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 85)}, now)
	alerts := tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 92)}, now)
	if len(alerts) != 1 || alerts[0].Boundary != "overdue" {
		t.Fatalf("expected an overdue alert, got %+v", alerts)
	}
}

func TestTrackerJumpReportsOverdueOnly(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 40)}, now)
	// A single scan can jump past both boundaries. The higher one wins.
	alerts := tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 100)}, now)
	if len(alerts) != 1 || alerts[0].Boundary != "overdue" {
		t.Fatalf("expected one overdue alert, got %+v", alerts)
	}
}

func TestTrackerNoRepeatAlerts(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 60)}, now)
	tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 75)}, now)
	alerts := tr.Observe([]model.ServiceNeed{need("v1", model.ServiceCharge, 80)}, now)
	if len(alerts) != 0 {
		t.Fatalf("staying above warning must not re-alert, got %d", len(alerts))
	}
}

func TestTrackerDropsVanishedVehicles(t *testing.T) {
	tr := NewTracker()
	now := time.Now()
	tr.Observe([]model.ServiceNeed{need("gone", model.ServiceCharge, 80)}, now)
	tr.Observe(nil, now)
	// The vehicle reappears above the boundary; with its history dropped this
	// counts as a first observation again.
	alerts := tr.Observe([]model.ServiceNeed{need("gone", model.ServiceCharge, 95)}, now)
	if len(alerts) != 0 {
		t.Fatalf("history should have been dropped, got %d alerts", len(alerts))
	}
}
