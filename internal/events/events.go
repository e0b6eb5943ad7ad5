package events

import (
	"context"
	"time"
)

// Type labels a reservation lifecycle transition.
type Type string

const (
	TypeReservationCreated   Type = "reservation.created"
	TypeReservationCancelled Type = "reservation.cancelled"
	TypeReservationConverted Type = "reservation.converted"
	TypeReservationExpired   Type = "reservation.expired"
)

// ReservationEvent is published after a lifecycle transition commits.
// Consumers (notification senders, analytics) are outside this service.
type ReservationEvent struct {
	Type           Type      `json:"type"`
	ReservationID  string    `json:"reservation_id"`
	SessionID      string    `json:"session_id"`
	OrganizationID string    `json:"organization_id"`
	Spots          int       `json:"spots"`
	BookingID      string    `json:"booking_id,omitempty"`
	OccurredAt     time.Time `json:"occurred_at"`
}

// Publisher emits reservation lifecycle events. Publishing is
// best-effort: callers log failures and never roll back the
// transition that produced the event.
type Publisher interface {
	Publish(ctx context.Context, evt ReservationEvent) error
	Close() error
}

type noopPublisher struct{}

// NewNoop returns a publisher that discards events; used when no
// broker is configured.
func NewNoop() Publisher {
	return noopPublisher{}
}

func (noopPublisher) Publish(context.Context, ReservationEvent) error { return nil }

func (noopPublisher) Close() error { return nil }
