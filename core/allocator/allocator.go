package allocator

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/ottoq/ottoq/core/model"
)

// ErrConflict is returned when a conditional claim loses to a concurrent
// claimer or the stall is otherwise not available. Callers retry on the
// next scan.
var ErrConflict = errors.New("allocator: stall not available")

// ErrUnknownStall is returned for stall ids absent from the table.
var ErrUnknownStall = errors.New("allocator: unknown stall")

// Allocator is the authoritative stall table. All mutation goes through
// Claim, Reserve, Release and SetMaintenance; callers only ever see copies.
type Allocator struct {
	mu     sync.Mutex
	stalls map[string]*model.DepotStall
}

// New builds an allocator from the depot inventory.
func New(inventory []model.DepotStall) (*Allocator, error) {
	m := make(map[string]*model.DepotStall, len(inventory))
	for _, s := range inventory {
		if err := s.Validate(); err != nil {
			return nil, err
		}
		if _, dup := m[s.ID]; dup {
			return nil, fmt.Errorf("allocator: duplicate stall id %s", s.ID)
		}
		cp := s
		m[s.ID] = &cp
	}
	return &Allocator{stalls: m}, nil
}

// Claim atomically transitions one free stall compatible with the step to
// occupied and records the vehicle and session window. Types are tried in
// preference order. A stall already reserved for the vehicle wins over any
// open stall, so a held reservation is consumed rather than left dangling.
// ErrConflict is returned when no compatible stall is free.
func (a *Allocator) Claim(types []model.StallType, vehicleID string, start time.Time, estimated time.Duration) (model.DepotStall, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	sorted := a.sorted()
	for _, typ := range types {
		for _, s := range sorted {
			if s.Type == typ && s.Status == model.StallReserved && s.CurrentVehicle == vehicleID {
				return a.occupy(s, vehicleID, start, estimated), nil
			}
		}
	}
	for _, typ := range types {
		for _, s := range sorted {
			if s.Type != typ || s.Status != model.StallAvailable {
				continue
			}
			return a.occupy(s, vehicleID, start, estimated), nil
		}
	}
	return model.DepotStall{}, ErrConflict
}

// ClaimStall performs the conditional claim on one specific stall. Exactly
// one concurrent caller can win the available->occupied transition.
func (a *Allocator) ClaimStall(stallID, vehicleID string, start time.Time, estimated time.Duration) (model.DepotStall, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stalls[stallID]
	if !ok {
		return model.DepotStall{}, ErrUnknownStall
	}
	if s.Status != model.StallAvailable &&
		!(s.Status == model.StallReserved && s.CurrentVehicle == vehicleID) {
		return model.DepotStall{}, ErrConflict
	}
	return a.occupy(s, vehicleID, start, estimated), nil
}

func (a *Allocator) occupy(s *model.DepotStall, vehicleID string, start time.Time, estimated time.Duration) model.DepotStall {
	s.Status = model.StallOccupied
	s.CurrentVehicle = vehicleID
	s.SessionStart = start
	s.EstimatedDone = start.Add(estimated)
	return *s
}

// Reserve holds an available stall compatible with the step for a vehicle
// ahead of the next scan, typically after an accepted booking offer. The hold
// lapses at until unless claimed first.
func (a *Allocator) Reserve(types []model.StallType, vehicleID string, until time.Time) (model.DepotStall, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for _, typ := range types {
		for _, s := range a.sorted() {
			if s.Type != typ || s.Status != model.StallAvailable {
				continue
			}
			s.Status = model.StallReserved
			s.CurrentVehicle = vehicleID
			s.EstimatedDone = until
			return *s, nil
		}
	}
	return model.DepotStall{}, ErrConflict
}

// ExpireReservations releases reserved stalls whose hold deadline has passed
// and returns the freed stall ids.
func (a *Allocator) ExpireReservations(now time.Time) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var freed []string
	for _, s := range a.stalls {
		if s.Status == model.StallReserved && !s.EstimatedDone.IsZero() && now.After(s.EstimatedDone) {
			a.clear(s)
			freed = append(freed, s.ID)
		}
	}
	sort.Strings(freed)
	return freed
}

// Release returns an occupied or reserved stall to the pool. Releasing an
// already-available stall is a no-op.
func (a *Allocator) Release(stallID string) error {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stalls[stallID]
	if !ok {
		return ErrUnknownStall
	}
	if s.Status == model.StallMaintenance {
		return fmt.Errorf("allocator: stall %s is in maintenance", stallID)
	}
	a.clear(s)
	return nil
}

// ReleaseVehicle releases every stall held by the vehicle, used when a
// pipeline is cancelled.
func (a *Allocator) ReleaseVehicle(vehicleID string) []string {
	a.mu.Lock()
	defer a.mu.Unlock()

	var freed []string
	for _, s := range a.stalls {
		if s.CurrentVehicle == vehicleID && s.Status != model.StallMaintenance {
			a.clear(s)
			freed = append(freed, s.ID)
		}
	}
	sort.Strings(freed)
	return freed
}

// SetMaintenance flips a stall in or out of maintenance. Forcing an occupied
// stall into maintenance displaces its vehicle: the displaced vehicle id is
// returned so the pipeline can requeue the interrupted step.
func (a *Allocator) SetMaintenance(stallID string, down bool) (displaced string, err error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	s, ok := a.stalls[stallID]
	if !ok {
		return "", ErrUnknownStall
	}
	if down {
		displaced = s.CurrentVehicle
		s.Status = model.StallMaintenance
		s.CurrentVehicle = ""
		s.SessionStart = time.Time{}
		s.EstimatedDone = time.Time{}
		return displaced, nil
	}
	if s.Status == model.StallMaintenance {
		a.clear(s)
	}
	return "", nil
}

// Snapshot returns a copy of every stall, ordered by depot and number.
func (a *Allocator) Snapshot() []model.DepotStall {
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]model.DepotStall, 0, len(a.stalls))
	for _, s := range a.sorted() {
		out = append(out, *s)
	}
	return out
}

// CountFree returns the number of available stalls of the given type.
func (a *Allocator) CountFree(typ model.StallType) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, s := range a.stalls {
		if s.Type == typ && s.Status == model.StallAvailable {
			n++
		}
	}
	return n
}

// FreeBy returns how many stalls of the given type are expected free at t:
// currently available plus occupied stalls whose session is estimated to
// complete before t.
func (a *Allocator) FreeBy(typ model.StallType, t time.Time) int {
	a.mu.Lock()
	defer a.mu.Unlock()

	n := 0
	for _, s := range a.stalls {
		if s.Type != typ {
			continue
		}
		switch s.Status {
		case model.StallAvailable:
			n++
		case model.StallOccupied:
			if !s.EstimatedDone.IsZero() && s.EstimatedDone.Before(t) {
				n++
			}
		}
	}
	return n
}

func (a *Allocator) clear(s *model.DepotStall) {
	s.Status = model.StallAvailable
	s.CurrentVehicle = ""
	s.SessionStart = time.Time{}
	s.EstimatedDone = time.Time{}
}

// sorted returns stalls ordered by depot id then stall number so claim
// order is deterministic.
func (a *Allocator) sorted() []*model.DepotStall {
	out := make([]*model.DepotStall, 0, len(a.stalls))
	for _, s := range a.stalls {
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].DepotID != out[j].DepotID {
			return out[i].DepotID < out[j].DepotID
		}
		return out[i].Number < out[j].Number
	})
	return out
}
