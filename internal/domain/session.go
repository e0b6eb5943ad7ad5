package domain

import "time"

// Session is a bookable time-slot instance with finite capacity.
// Rows are created by the external schedule generator and are never
// deleted; retired sessions are closed instead. capacity_remaining is
// mutated only through versioned conditional updates.
type Session struct {
	ID                string
	ActivityID        string
	VenueID           string
	OrganizationID    string
	StartsAt          time.Time
	EndsAt            time.Time
	CapacityTotal     int
	CapacityRemaining int
	PriceAtGeneration float64
	IsClosed          bool
	Version           int64
}

// Available reports whether the session can accept new reservations.
func (s Session) Available() bool {
	return !s.IsClosed && s.CapacityRemaining > 0
}
