package booking

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ottoq/ottoq/core/model"
)

// ErrUnknownOffer is returned for offer ids the service never issued.
var ErrUnknownOffer = errors.New("booking: unknown offer")

// ErrOfferClosed is returned when an outcome arrives for a non-pending offer.
var ErrOfferClosed = errors.New("booking: offer already closed")

// OfferStatus tracks a member-facing offer.
type OfferStatus int

const (
	OfferPending OfferStatus = iota
	OfferAccepted
	OfferDeclined
	OfferExpired
	OfferRescheduled
)

func (s OfferStatus) String() string {
	switch s {
	case OfferPending:
		return "pending"
	case OfferAccepted:
		return "accepted"
	case OfferDeclined:
		return "declined"
	case OfferExpired:
		return "expired"
	case OfferRescheduled:
		return "rescheduled"
	default:
		return "unknown"
	}
}

// Offer is a member-facing service proposal.
type Offer struct {
	ID        string            `json:"id"`
	VehicleID string            `json:"vehicle_id"`
	Type      model.ServiceType `json:"-"`
	Service   string            `json:"service"`
	Slot      time.Time         `json:"slot"`
	Urgency   float64           `json:"urgency"`
	Status    OfferStatus       `json:"-"`
	Created   time.Time         `json:"created"`
}

// Preferences are per-member booking rules.
type Preferences struct {
	AutoAccept    bool          // silently auto-schedule instead of offering
	LeadTime      time.Duration // minimum notice before the proposed slot
	SuppressAfter time.Duration // how long a declined need stays muted
}

// Reserver reserves a stall ahead of the scan for an accepted offer. The
// allocator satisfies this.
type Reserver interface {
	Reserve(types []model.StallType, vehicleID string, until time.Time) (model.DepotStall, error)
}

// Notifier pushes offers toward the member-facing layer.
type Notifier interface {
	PublishOffer(Offer) error
}

// Service issues offers and records their outcomes.
type Service struct {
	mu       sync.Mutex
	offers   map[string]*Offer
	prefs    map[string]Preferences
	suppress map[suppressKey]time.Time
	reserver Reserver
	notifier Notifier
}

type suppressKey struct {
	vehicleID string
	service   model.ServiceType
}

// NewService builds the booking boundary. notifier may be nil for silent
// operation.
func NewService(reserver Reserver, notifier Notifier) *Service {
	return &Service{
		offers:   make(map[string]*Offer),
		prefs:    make(map[string]Preferences),
		suppress: make(map[suppressKey]time.Time),
		reserver: reserver,
		notifier: notifier,
	}
}

// SetPreferences stores a member's booking rules.
func (s *Service) SetPreferences(vehicleID string, p Preferences) {
	s.mu.Lock()
	s.prefs[vehicleID] = p
	s.mu.Unlock()
}

// Suppressed reports whether the need is muted following a decline or
// expiry. Muting ends when the window elapses; the need then re-enters
// consideration as soon as it is re-predicted.
func (s *Service) Suppressed(vehicleID string, t model.ServiceType, now time.Time) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	until, ok := s.suppress[suppressKey{vehicleID, t}]
	if !ok {
		return false
	}
	if now.After(until) {
		delete(s.suppress, suppressKey{vehicleID, t})
		return false
	}
	return true
}

// Propose turns a need into an offer for the given slot. Members with
// auto-accept skip the offer and get a reservation directly. It returns the
// issued offer, or nil when the need was auto-scheduled or already pending.
func (s *Service) Propose(need model.ServiceNeed, slot, now time.Time) (*Offer, error) {
	s.mu.Lock()
	pref := s.prefs[need.VehicleID]
	for _, o := range s.offers {
		if o.VehicleID == need.VehicleID && o.Type == need.Type && o.Status == OfferPending {
			s.mu.Unlock()
			return nil, nil
		}
	}
	s.mu.Unlock()

	if pref.LeadTime > 0 && slot.Sub(now) < pref.LeadTime {
		slot = now.Add(pref.LeadTime)
	}

	if pref.AutoAccept {
		if s.reserver != nil {
			if _, err := s.reserver.Reserve(need.Type.StallsFor(), need.VehicleID, slot); err != nil {
				return nil, fmt.Errorf("booking: auto-schedule %s for %s: %w", need.Type, need.VehicleID, err)
			}
		}
		return nil, nil
	}

	o := &Offer{
		ID:        uuid.NewString(),
		VehicleID: need.VehicleID,
		Type:      need.Type,
		Service:   need.Type.String(),
		Slot:      slot,
		Urgency:   need.Urgency,
		Status:    OfferPending,
		Created:   now,
	}
	s.mu.Lock()
	s.offers[o.ID] = o
	s.mu.Unlock()
	if s.notifier != nil {
		if err := s.notifier.PublishOffer(*o); err != nil {
			return o, fmt.Errorf("booking: publish offer %s: %w", o.ID, err)
		}
	}
	return o, nil
}

// Accept records acceptance and reserves a stall ahead of the next scan.
func (s *Service) Accept(offerID string) error {
	o, err := s.close(offerID, OfferAccepted)
	if err != nil {
		return err
	}
	if s.reserver != nil {
		if _, err := s.reserver.Reserve(o.Type.StallsFor(), o.VehicleID, o.Slot); err != nil {
			return fmt.Errorf("booking: reserve for %s: %w", o.VehicleID, err)
		}
	}
	return nil
}

// Decline records a decline and mutes the need until re-predicted.
func (s *Service) Decline(offerID string, now time.Time) error {
	o, err := s.close(offerID, OfferDeclined)
	if err != nil {
		return err
	}
	s.muteNeed(o, now)
	return nil
}

// Expire times out a pending offer, muting the need like a decline.
func (s *Service) Expire(offerID string, now time.Time) error {
	o, err := s.close(offerID, OfferExpired)
	if err != nil {
		return err
	}
	s.muteNeed(o, now)
	return nil
}

// Reschedule moves a pending offer to a new slot, reissuing it.
func (s *Service) Reschedule(offerID string, slot, now time.Time) (*Offer, error) {
	old, err := s.close(offerID, OfferRescheduled)
	if err != nil {
		return nil, err
	}
	need := model.ServiceNeed{
		VehicleID: old.VehicleID,
		Type:      old.Type,
		Urgency:   old.Urgency,
	}
	return s.Propose(need, slot, now)
}

// Offers returns all offers ordered by creation time.
func (s *Service) Offers() []Offer {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]Offer, 0, len(s.offers))
	for _, o := range s.offers {
		out = append(out, *o)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].Created.Equal(out[j].Created) {
			return out[i].Created.Before(out[j].Created)
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (s *Service) close(offerID string, st OfferStatus) (Offer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.offers[offerID]
	if !ok {
		return Offer{}, ErrUnknownOffer
	}
	if o.Status != OfferPending {
		return Offer{}, fmt.Errorf("%w: %s is %s", ErrOfferClosed, offerID, o.Status)
	}
	o.Status = st
	return *o, nil
}

func (s *Service) muteNeed(o Offer, now time.Time) {
	window := s.prefs[o.VehicleID].SuppressAfter
	if window <= 0 {
		window = 24 * time.Hour
	}
	s.mu.Lock()
	s.suppress[suppressKey{o.VehicleID, o.Type}] = now.Add(window)
	s.mu.Unlock()
}
