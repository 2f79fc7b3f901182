package cmd

import (
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// demoFleet returns a small synthetic fleet for the simulate and forecast
// commands.
func demoFleet(now time.Time) []model.Vehicle {
	day := 24 * time.Hour
	return []model.Vehicle{
		{
			ID: "av-001", Category: model.CategoryAutonomousFleet,
			BatteryKWh: 75, SoC: 8, RangeMiles: 20, Odometer: 31200, DailyMiles: 120,
			Status: model.StatusActive,
			LastServiced: map[model.ServiceType]time.Time{
				model.ServiceDetailClean:  now.Add(-16 * day),
				model.ServiceTireRotation: now.Add(-35 * day),
			},
		},
		{
			ID: "av-002", Category: model.CategoryAutonomousFleet,
			BatteryKWh: 75, SoC: 64, RangeMiles: 170, Odometer: 18400, DailyMiles: 95,
			Status: model.StatusActive,
			LastServiced: map[model.ServiceType]time.Time{
				model.ServiceDetailClean:        now.Add(-3 * day),
				model.ServiceBatteryHealthCheck: now.Add(-100 * day),
			},
		},
		{
			ID: "mv-101", Category: model.CategoryMemberOwned,
			BatteryKWh: 60, SoC: 22, RangeMiles: 55, Odometer: 42100, DailyMiles: 40,
			Status: model.StatusActive,
			LastServiced: map[model.ServiceType]time.Time{
				model.ServiceFullService: now.Add(-170 * day),
			},
		},
	}
}
