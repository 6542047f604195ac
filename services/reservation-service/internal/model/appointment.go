package model

import "time"

// Appointment is one bookable slot carved out of a provider's declared
// availability window. StartTime/EndTime are fixed at creation; the hold
// fields are nil until a client reserves or confirms the slot. Records are
// never deleted — an expired hold simply stops counting at read time.
type Appointment struct {
	ID          string
	ProviderID  string
	StartTime   time.Time
	EndTime     time.Time
	ClientID    *string
	ReservedAt  *time.Time
	ConfirmedAt *time.Time
}
