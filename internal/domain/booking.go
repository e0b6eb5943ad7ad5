package domain

import "time"

// Booking is the permanent allocation created from a successfully
// converted reservation. Exactly one booking may exist per reservation.
type Booking struct {
	ID             string
	ReservationID  string
	SessionID      string
	OrganizationID string
	Spots          int
	CustomerEmail  string
	CreatedAt      time.Time
}
