package model

import "time"

// TransitionEvent is one immutable entry of the append-only pipeline audit
// feed.
type TransitionEvent struct {
	ID        string    `json:"id"`
	VehicleID string    `json:"vehicle_id"`
	From      string    `json:"from"`
	To        string    `json:"to"`
	Step      string    `json:"step,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// UrgencyAlert signals that a vehicle's service urgency crossed a scoring
// boundary since the previous scan.
type UrgencyAlert struct {
	VehicleID string      `json:"vehicle_id"`
	Type      ServiceType `json:"-"`
	Service   string      `json:"service"`
	Previous  float64     `json:"previous"`
	Current   float64     `json:"current"`
	Boundary  string      `json:"boundary"` // "warning" or "overdue"
	Time      time.Time   `json:"time"`
}
