package config

import (
	"fmt"

	"github.com/ottoq/ottoq/core/model"
)

// Depot describes the stall inventory.
type Depot struct {
	ID     string  `json:"id"`
	Stalls []Stall `json:"stalls"`
}

// Stall is one inventory entry.
type Stall struct {
	ID      string  `json:"id"`
	Number  int     `json:"number"`
	Type    string  `json:"type"`
	PowerKW float64 `json:"power_kw"`
}

// Validate checks the inventory definition.
func (d Depot) Validate() error {
	if len(d.Stalls) == 0 {
		return nil // empty inventory is a valid, zero-capacity depot
	}
	if d.ID == "" {
		return fmt.Errorf("depot: id is required when stalls are defined")
	}
	for _, s := range d.Stalls {
		if _, err := model.ParseStallType(s.Type); err != nil {
			return fmt.Errorf("depot stall %s: %w", s.ID, err)
		}
	}
	return nil
}

// Inventory converts the section into model stalls.
func (d Depot) Inventory() ([]model.DepotStall, error) {
	out := make([]model.DepotStall, 0, len(d.Stalls))
	for _, s := range d.Stalls {
		typ, err := model.ParseStallType(s.Type)
		if err != nil {
			return nil, err
		}
		st := model.DepotStall{
			ID:      s.ID,
			DepotID: d.ID,
			Number:  s.Number,
			Type:    typ,
			Status:  model.StallAvailable,
			PowerKW: s.PowerKW,
		}
		if err := st.Validate(); err != nil {
			return nil, err
		}
		out = append(out, st)
	}
	return out, nil
}
