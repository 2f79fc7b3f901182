package model

import (
	"fmt"
	"time"
)

// ServiceType enumerates the closed set of depot services.
type ServiceType int

const (
	ServiceCharge ServiceType = iota
	ServiceDetailClean
	ServiceTireRotation
	ServiceBatteryHealthCheck
	ServiceFullService
)

// String returns a human-readable representation of the service type.
func (t ServiceType) String() string {
	switch t {
	case ServiceCharge:
		return "charge"
	case ServiceDetailClean:
		return "detail_clean"
	case ServiceTireRotation:
		return "tire_rotation"
	case ServiceBatteryHealthCheck:
		return "battery_health_check"
	case ServiceFullService:
		return "full_service"
	default:
		return "unknown"
	}
}

// ParseServiceType converts a configuration string into a ServiceType.
func ParseServiceType(s string) (ServiceType, error) {
	switch s {
	case "charge":
		return ServiceCharge, nil
	case "detail_clean":
		return ServiceDetailClean, nil
	case "tire_rotation":
		return ServiceTireRotation, nil
	case "battery_health_check":
		return ServiceBatteryHealthCheck, nil
	case "full_service":
		return ServiceFullService, nil
	default:
		return 0, fmt.Errorf("unknown service type %q", s)
	}
}

// AllServiceTypes lists every service type in catalog order.
func AllServiceTypes() []ServiceType {
	return []ServiceType{
		ServiceCharge,
		ServiceDetailClean,
		ServiceTireRotation,
		ServiceBatteryHealthCheck,
		ServiceFullService,
	}
}

// StallsFor returns the stall types a service of this type can run in, in
// allocation preference order. A charge step runs in any charge stall, fast
// chargers first.
func (t ServiceType) StallsFor() []StallType {
	switch t {
	case ServiceCharge:
		return []StallType{StallFastCharge, StallStandardCharge}
	case ServiceDetailClean:
		return []StallType{StallDetailClean}
	case ServiceTireRotation, ServiceBatteryHealthCheck, ServiceFullService:
		return []StallType{StallServiceBay}
	default:
		return []StallType{StallStaging}
	}
}

// ThresholdUnit describes how a threshold value is measured.
type ThresholdUnit int

const (
	UnitDays ThresholdUnit = iota
	UnitMiles
	UnitPercent
)

func (u ThresholdUnit) String() string {
	switch u {
	case UnitDays:
		return "days"
	case UnitMiles:
		return "miles"
	case UnitPercent:
		return "percent"
	default:
		return "unknown"
	}
}

// ParseThresholdUnit converts a configuration string into a ThresholdUnit.
func ParseThresholdUnit(s string) (ThresholdUnit, error) {
	switch s {
	case "days":
		return UnitDays, nil
	case "miles":
		return UnitMiles, nil
	case "percent":
		return UnitPercent, nil
	default:
		return 0, fmt.Errorf("unknown threshold unit %q", s)
	}
}

// ServiceThreshold is one catalog entry describing when a service becomes
// due. The catalog is loaded at startup and treated as immutable.
type ServiceThreshold struct {
	Type            ServiceType
	Trigger         string // human-readable trigger condition
	Value           float64
	Unit            ThresholdUnit
	MileageValue    float64 // secondary mileage trigger, 0 if none
	PriorityWeight  float64 // tie-break strength, higher wins
	DurationMinutes int     // estimated service duration
}

// Validate checks the catalog entry is sound.
func (t ServiceThreshold) Validate() error {
	if t.Value <= 0 {
		return fmt.Errorf("threshold %s: value must be positive", t.Type)
	}
	if t.DurationMinutes <= 0 {
		return fmt.Errorf("threshold %s: duration must be positive", t.Type)
	}
	return nil
}

// EstimatedDuration returns the catalog duration as a time.Duration.
func (t ServiceThreshold) EstimatedDuration() time.Duration {
	return time.Duration(t.DurationMinutes) * time.Minute
}

// ServiceNeed is a derived record describing how due a service is for one
// vehicle. Needs are recomputed on every scan; the catalog and telemetry
// remain the source of truth.
type ServiceNeed struct {
	VehicleID     string
	Type          ServiceType
	DaysSince     float64 // negative if never serviced
	MilesSince    float64 // negative if not mileage-tracked
	Urgency       float64 // 0-100
	Overdue       bool
	Reason        string
	PredictedNeed time.Time
}
