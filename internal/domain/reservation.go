package domain

import "time"

type ReservationStatus string

const (
	ReservationStatusPending   ReservationStatus = "pending"
	ReservationStatusConverted ReservationStatus = "converted"
	ReservationStatusCancelled ReservationStatus = "cancelled"
	ReservationStatusExpired   ReservationStatus = "expired"
)

// Reservation is a temporary hold on part of a session's capacity,
// pending payment. While pending and unexpired its spots are already
// excluded from the session's remaining capacity. Transitions out of
// pending are one-way and terminal.
type Reservation struct {
	ID                      string
	SessionID               string
	OrganizationID          string
	CustomerEmail           string
	SpotsReserved           int
	CheckoutSessionID       string
	SessionVersionAtReserve int64
	Status                  ReservationStatus
	ExpiresAt               time.Time
	CreatedAt               time.Time
	ConvertedAt             *time.Time
	BookingID               string
}

// ExpiredAt reports whether the reservation's hold has lapsed at t.
func (r Reservation) ExpiredAt(t time.Time) bool {
	return !r.ExpiresAt.After(t)
}
