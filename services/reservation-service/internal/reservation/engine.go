// Package reservation drives the slot lifecycle: availability windows are
// decomposed into fixed-length slots, clients place a timed hold on a slot
// and then confirm it. Hold expiry is computed at read time from the
// clock; nothing sweeps expired holds in the background.
package reservation

import (
	"log/slog"
	"time"

	"github.com/carebook/carebook/services/reservation-service/internal/directory"
	"github.com/carebook/carebook/services/reservation-service/internal/model"
	"github.com/carebook/carebook/services/reservation-service/internal/store"
	"github.com/carebook/carebook/services/reservation-service/internal/timeslot"
)

// Config carries the engine tunables. These are compiled-in defaults, not
// deployment knobs; Clock exists so tests can pin the current time.
type Config struct {
	SlotLengthMinutes  int
	HoldTimeoutMinutes int
	LeadTimeHours      int
	Clock              func() time.Time
}

func DefaultConfig() Config {
	return Config{
		SlotLengthMinutes:  30,
		HoldTimeoutMinutes: 30,
		LeadTimeHours:      24,
	}
}

type Engine struct {
	store  *store.Store
	dir    directory.Directory
	cfg    Config
	logger *slog.Logger
	now    func() time.Time
}

func New(st *store.Store, dir directory.Directory, cfg Config, logger *slog.Logger) *Engine {
	def := DefaultConfig()
	if cfg.SlotLengthMinutes <= 0 {
		cfg.SlotLengthMinutes = def.SlotLengthMinutes
	}
	if cfg.HoldTimeoutMinutes <= 0 {
		cfg.HoldTimeoutMinutes = def.HoldTimeoutMinutes
	}
	if cfg.LeadTimeHours <= 0 {
		cfg.LeadTimeHours = def.LeadTimeHours
	}
	now := cfg.Clock
	if now == nil {
		now = func() time.Time { return time.Now().UTC() }
	}
	return &Engine{store: st, dir: dir, cfg: cfg, logger: logger, now: now}
}

// CreateAppointments validates the provider and window, then decomposes
// [start, end) into contiguous slots and persists them in one bulk insert.
// All checks run before any write; a failure persists nothing.
func (e *Engine) CreateAppointments(providerID, startRaw, endRaw string) ([]model.Appointment, error) {
	if err := e.requireProvider(providerID); err != nil {
		return nil, err
	}
	start, end, err := e.parseWindow(startRaw, endRaw)
	if err != nil {
		return nil, err
	}
	if existing := e.availableWithin(providerID, start, end); len(existing) != 0 {
		return nil, conflict("appointments have already been created for this provider and time span")
	}

	slotLen := time.Duration(e.cfg.SlotLengthMinutes) * time.Minute
	var partials []store.Partial
	for t := start; t.Before(end); t = t.Add(slotLen) {
		partials = append(partials, store.Partial{
			ProviderID: providerID,
			StartTime:  t,
			EndTime:    t.Add(slotLen),
		})
	}
	created := e.store.InsertMany(partials)
	e.logger.Info("availability created",
		"provider_id", providerID,
		"start_time", start.Format(time.RFC3339),
		"end_time", end.Format(time.RFC3339),
		"slots", len(created),
	)
	return created, nil
}

// AvailableAppointments lists the currently reservable slots inside the
// window, for one provider or (with an empty providerID) for all of them.
// Hold fields are scrubbed so callers cannot observe who reserved a slot
// whose hold has lapsed.
func (e *Engine) AvailableAppointments(providerID, startRaw, endRaw string) ([]model.Appointment, error) {
	start, end, err := e.parseWindow(startRaw, endRaw)
	if err != nil {
		return nil, err
	}
	return e.availableWithin(providerID, start, end), nil
}

// Reserve places a hold on the slot for the client. A missing id and a
// slot that is merely unavailable produce the same error on purpose;
// callers get no signal about which it was.
func (e *Engine) Reserve(appointmentID, clientID string) (model.Appointment, error) {
	appt, ok := e.store.GetByID(appointmentID)
	if !ok || !e.isAvailable(appt, e.now()) {
		return model.Appointment{}, badRequest("appointment is no longer available")
	}

	reservedAt := e.now()
	updated, ok := e.store.UpdateByID(appointmentID, store.Patch{ClientID: &clientID, ReservedAt: &reservedAt})
	if !ok {
		return model.Appointment{}, badRequest("appointment is no longer available")
	}
	e.logger.Info("appointment reserved", "appointment_id", appointmentID, "client_id", clientID)
	return updated, nil
}

// Confirm finalizes a held slot. Only the holding client may confirm; the
// hold's expiry is not re-checked here, identity match is the sole gate.
func (e *Engine) Confirm(appointmentID, clientID string) (model.Appointment, error) {
	appt, ok := e.store.GetByID(appointmentID)
	if !ok {
		return model.Appointment{}, notFound("appointment not found")
	}
	if appt.ClientID == nil || *appt.ClientID != clientID {
		return model.Appointment{}, forbidden("appointment cannot be confirmed")
	}

	confirmedAt := e.now()
	updated, ok := e.store.UpdateByID(appointmentID, store.Patch{ConfirmedAt: &confirmedAt})
	if !ok {
		return model.Appointment{}, notFound("appointment not found")
	}
	e.logger.Info("appointment confirmed", "appointment_id", appointmentID, "client_id", clientID)
	return updated, nil
}

// isAvailable is the single source of truth for "reservable now": never
// confirmed, no live hold, and at least the lead-time blackout before the
// slot starts.
func (e *Engine) isAvailable(appt model.Appointment, now time.Time) bool {
	if appt.ConfirmedAt != nil {
		return false
	}
	if appt.ReservedAt != nil && timeslot.WholeMinutes(*appt.ReservedAt, now) <= e.cfg.HoldTimeoutMinutes {
		return false
	}
	return timeslot.WholeHours(now, appt.StartTime) >= e.cfg.LeadTimeHours
}

func (e *Engine) availableWithin(providerID string, start, end time.Time) []model.Appointment {
	records := e.store.Query(store.Filter{ProviderID: providerID, Start: start, End: end})
	now := e.now()

	available := make([]model.Appointment, 0, len(records))
	for _, appt := range records {
		if !e.isAvailable(appt, now) {
			continue
		}
		appt.ClientID = nil
		appt.ReservedAt = nil
		available = append(available, appt)
	}
	return available
}

func (e *Engine) requireProvider(providerID string) error {
	user, ok := e.dir.FindByID(providerID)
	if !ok || user.Role != directory.RoleProvider {
		return notFound("provider does not exist")
	}
	return nil
}

func (e *Engine) parseWindow(startRaw, endRaw string) (time.Time, time.Time, error) {
	start, err := e.parseSlotTime(startRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	end, err := e.parseSlotTime(endRaw)
	if err != nil {
		return time.Time{}, time.Time{}, err
	}
	return start, end, nil
}

func (e *Engine) parseSlotTime(raw string) (time.Time, error) {
	t, err := timeslot.Parse(raw)
	if err != nil {
		return time.Time{}, invalidInput("invalid date string detected")
	}
	if !timeslot.Aligned(t, e.cfg.SlotLengthMinutes) {
		return time.Time{}, invalidInput("start and end time values must be in %d minute increments", e.cfg.SlotLengthMinutes)
	}
	return timeslot.Truncate(t), nil
}
