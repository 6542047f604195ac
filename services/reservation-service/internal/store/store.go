// Package store keeps the full appointment collection in process memory.
// Records are appended and patched, never removed; durable persistence is
// deliberately out of scope.
package store

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/carebook/services/reservation-service/internal/model"
	"github.com/carebook/carebook/services/reservation-service/internal/timeslot"
)

type Store struct {
	mu    sync.Mutex
	appts []model.Appointment
}

func New() *Store {
	return &Store{}
}

// Partial is the insert shape for a generated slot. The store assigns the
// id; hold fields start absent.
type Partial struct {
	ProviderID string
	StartTime  time.Time
	EndTime    time.Time
}

// Filter selects appointments whose start AND end both fall inclusively
// within [Start, End]. Empty ProviderID/ClientID match everything.
type Filter struct {
	ProviderID string
	ClientID   string
	Start      time.Time
	End        time.Time
}

// Patch carries the fields a mutation may set; nil fields are left as-is.
type Patch struct {
	ClientID    *string
	ReservedAt  *time.Time
	ConfirmedAt *time.Time
}

// InsertMany appends one record per partial in order and returns the
// created records with assigned ids and normalized (UTC) timestamps.
func (s *Store) InsertMany(partials []Partial) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	created := make([]model.Appointment, 0, len(partials))
	for _, p := range partials {
		appt := model.Appointment{
			ID:         uuid.NewString(),
			ProviderID: p.ProviderID,
			StartTime:  p.StartTime.UTC(),
			EndTime:    p.EndTime.UTC(),
		}
		s.appts = append(s.appts, appt)
		created = append(created, appt)
	}
	return created
}

func (s *Store) Query(f Filter) []model.Appointment {
	s.mu.Lock()
	defer s.mu.Unlock()

	var out []model.Appointment
	for _, appt := range s.appts {
		if f.ProviderID != "" && appt.ProviderID != f.ProviderID {
			continue
		}
		if f.ClientID != "" && (appt.ClientID == nil || *appt.ClientID != f.ClientID) {
			continue
		}
		if !timeslot.Within(appt.StartTime, f.Start, f.End) || !timeslot.Within(appt.EndTime, f.Start, f.End) {
			continue
		}
		out = append(out, appt)
	}
	return out
}

func (s *Store) GetByID(id string) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, appt := range s.appts {
		if appt.ID == id {
			return appt, true
		}
	}
	return model.Appointment{}, false
}

// UpdateByID merges the set fields of the patch into the stored record,
// normalizing patched timestamps to UTC.
func (s *Store) UpdateByID(id string, p Patch) (model.Appointment, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.appts {
		if s.appts[i].ID != id {
			continue
		}
		if p.ClientID != nil {
			clientID := *p.ClientID
			s.appts[i].ClientID = &clientID
		}
		if p.ReservedAt != nil {
			reservedAt := p.ReservedAt.UTC()
			s.appts[i].ReservedAt = &reservedAt
		}
		if p.ConfirmedAt != nil {
			confirmedAt := p.ConfirmedAt.UTC()
			s.appts[i].ConfirmedAt = &confirmedAt
		}
		return s.appts[i], true
	}
	return model.Appointment{}, false
}
