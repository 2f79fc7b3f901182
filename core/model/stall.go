package model

import (
	"fmt"
	"time"
)

// StallType identifies the kind of physical depot resource a stall provides.
type StallType int

const (
	StallFastCharge StallType = iota
	StallStandardCharge
	StallDetailClean
	StallServiceBay
	StallStaging
)

func (t StallType) String() string {
	switch t {
	case StallFastCharge:
		return "fast_charge"
	case StallStandardCharge:
		return "standard_charge"
	case StallDetailClean:
		return "detail_clean"
	case StallServiceBay:
		return "service_bay"
	case StallStaging:
		return "staging"
	default:
		return "unknown"
	}
}

// ParseStallType converts a configuration string into a StallType.
func ParseStallType(s string) (StallType, error) {
	switch s {
	case "fast_charge":
		return StallFastCharge, nil
	case "standard_charge":
		return StallStandardCharge, nil
	case "detail_clean":
		return StallDetailClean, nil
	case "service_bay":
		return StallServiceBay, nil
	case "staging":
		return StallStaging, nil
	default:
		return 0, fmt.Errorf("unknown stall type %q", s)
	}
}

// IsCharge reports whether the stall delivers charging power.
func (t StallType) IsCharge() bool {
	return t == StallFastCharge || t == StallStandardCharge
}

// StallStatus is the occupancy state of a stall.
type StallStatus int

const (
	StallAvailable StallStatus = iota
	StallOccupied
	StallReserved
	StallMaintenance
)

func (s StallStatus) String() string {
	switch s {
	case StallAvailable:
		return "available"
	case StallOccupied:
		return "occupied"
	case StallReserved:
		return "reserved"
	case StallMaintenance:
		return "maintenance"
	default:
		return "unknown"
	}
}

// DepotStall is one physical resource slot. A stall holds at most one
// vehicle at a time; CurrentVehicle is non-empty iff the status is occupied
// or reserved.
type DepotStall struct {
	ID             string
	DepotID        string
	Number         int
	Type           StallType
	Status         StallStatus
	CurrentVehicle string
	PowerKW        float64 // charge stalls only, 0 otherwise
	SessionStart   time.Time
	EstimatedDone  time.Time
}

// Validate checks the stall record is internally consistent.
func (s DepotStall) Validate() error {
	if s.ID == "" {
		return fmt.Errorf("stall id must not be empty")
	}
	occupied := s.Status == StallOccupied || s.Status == StallReserved
	if occupied && s.CurrentVehicle == "" {
		return fmt.Errorf("stall %s: %s without a vehicle", s.ID, s.Status)
	}
	if !occupied && s.CurrentVehicle != "" {
		return fmt.Errorf("stall %s: vehicle %s assigned while %s", s.ID, s.CurrentVehicle, s.Status)
	}
	if s.Type.IsCharge() && s.PowerKW <= 0 {
		return fmt.Errorf("stall %s: charge stall requires a power rating", s.ID)
	}
	return nil
}
