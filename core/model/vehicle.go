package model

import (
	"fmt"
	"time"
)

// VehicleCategory distinguishes member-owned vehicles from the autonomous fleet.
type VehicleCategory int

const (
	CategoryMemberOwned VehicleCategory = iota
	CategoryAutonomousFleet
)

func (c VehicleCategory) String() string {
	switch c {
	case CategoryMemberOwned:
		return "member_owned"
	case CategoryAutonomousFleet:
		return "autonomous_fleet"
	default:
		return "unknown"
	}
}

// VehicleStatus is the lifecycle status of a vehicle relative to the depot.
type VehicleStatus int

const (
	StatusActive VehicleStatus = iota
	StatusInService
	StatusCharging
	StatusStaged
	StatusOffline
)

func (s VehicleStatus) String() string {
	switch s {
	case StatusActive:
		return "active"
	case StatusInService:
		return "in_service"
	case StatusCharging:
		return "charging"
	case StatusStaged:
		return "staged"
	case StatusOffline:
		return "offline"
	default:
		return "unknown"
	}
}

// Vehicle is the engine's view of a fleet vehicle. Urgency and pipeline
// records reference vehicles by ID only.
type Vehicle struct {
	ID           string
	Category     VehicleCategory
	BatteryKWh   float64 // total battery capacity in kWh
	SoC          float64 // state of charge in percent, 0-100
	RangeMiles   float64
	Odometer     float64
	DailyMiles   float64 // average daily distance
	Status       VehicleStatus
	LastServiced map[ServiceType]time.Time
}

// Validate checks that the vehicle record is sound.
func (v Vehicle) Validate() error {
	if v.ID == "" {
		return fmt.Errorf("vehicle id must not be empty")
	}
	if v.BatteryKWh <= 0 {
		return fmt.Errorf("vehicle %s: battery capacity must be positive", v.ID)
	}
	if v.SoC < 0 || v.SoC > 100 {
		return fmt.Errorf("vehicle %s: soc %.1f out of range", v.ID, v.SoC)
	}
	return nil
}

// LastServiceAt returns the last-service time for the given type and whether
// the vehicle has ever received that service.
func (v Vehicle) LastServiceAt(t ServiceType) (time.Time, bool) {
	ts, ok := v.LastServiced[t]
	return ts, ok
}

// NeedsCharge reports whether the vehicle's SoC is at or below the floor.
func (v Vehicle) NeedsCharge(floor float64) bool {
	return v.SoC <= floor
}

// Telemetry is an asynchronous telemetry push from a collaborator.
type Telemetry struct {
	VehicleID string    `json:"vehicle_id"`
	SoC       float64   `json:"soc"`
	Odometer  float64   `json:"odometer"`
	Range     float64   `json:"range_miles"`
	Healthy   bool      `json:"healthy"`
	Time      time.Time `json:"time"`
}
