package fleet

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// historyCap bounds the per-vehicle odometer history ring.
const historyCap = 96

type odoSample struct {
	at       time.Time
	odometer float64
}

// Store is the in-memory fleet registry.
type Store struct {
	mu      sync.RWMutex
	data    map[string]model.Vehicle
	history map[string][]odoSample
}

// NewStore returns an empty registry.
func NewStore() *Store {
	return &Store{
		data:    make(map[string]model.Vehicle),
		history: make(map[string][]odoSample),
	}
}

// Upsert registers or replaces a vehicle record.
func (s *Store) Upsert(v model.Vehicle) error {
	if err := v.Validate(); err != nil {
		return err
	}
	s.mu.Lock()
	if v.LastServiced == nil {
		v.LastServiced = make(map[model.ServiceType]time.Time)
	}
	s.data[v.ID] = v
	s.mu.Unlock()
	return nil
}

// ApplyTelemetry merges a telemetry push into the vehicle record and
// appends to its odometer history. Telemetry for unknown vehicles is
// rejected; registration happens through Upsert.
func (s *Store) ApplyTelemetry(t model.Telemetry) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.data[t.VehicleID]
	if !ok {
		return fmt.Errorf("fleet: telemetry for unknown vehicle %s", t.VehicleID)
	}
	v.SoC = t.SoC
	if t.Odometer > v.Odometer {
		v.Odometer = t.Odometer
	}
	if t.Range > 0 {
		v.RangeMiles = t.Range
	}
	if !t.Healthy {
		v.Status = model.StatusOffline
	} else if v.Status == model.StatusOffline {
		v.Status = model.StatusActive
	}

	at := t.Time
	if at.IsZero() {
		at = time.Now()
	}
	h := append(s.history[t.VehicleID], odoSample{at: at, odometer: v.Odometer})
	if len(h) > historyCap {
		h = h[len(h)-historyCap:]
	}
	s.history[t.VehicleID] = h
	if daily, ok := estimateDailyMiles(h); ok {
		v.DailyMiles = daily
	}
	s.data[t.VehicleID] = v
	return nil
}

// RecordService stamps the vehicle's last-service time for a service type.
func (s *Store) RecordService(vehicleID string, t model.ServiceType, at time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	v, ok := s.data[vehicleID]
	if !ok {
		return
	}
	if v.LastServiced == nil {
		v.LastServiced = make(map[model.ServiceType]time.Time)
	}
	v.LastServiced[t] = at
	s.data[vehicleID] = v
}

// SetStatus updates the vehicle lifecycle status.
func (s *Store) SetStatus(vehicleID string, st model.VehicleStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if v, ok := s.data[vehicleID]; ok {
		v.Status = st
		s.data[vehicleID] = v
	}
}

// Get returns a copy of the vehicle record.
func (s *Store) Get(vehicleID string) (model.Vehicle, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	v, ok := s.data[vehicleID]
	return v, ok
}

// List returns all vehicles ordered by id.
func (s *Store) List() []model.Vehicle {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]model.Vehicle, 0, len(s.data))
	for _, v := range s.data {
		out = append(out, v)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

// Len returns the number of registered vehicles.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.data)
}
