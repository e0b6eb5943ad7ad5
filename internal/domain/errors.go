package domain

import "errors"

var (
	ErrSessionNotFound      = errors.New("session not found")
	ErrReservationNotFound  = errors.New("reservation not found")
	ErrSessionClosed        = errors.New("session is closed")
	ErrVersionConflict      = errors.New("session version conflict")
	ErrInsufficientCapacity = errors.New("insufficient capacity")
	ErrContention           = errors.New("reservation retries exhausted")
	ErrAlreadyFinalized     = errors.New("reservation already finalized")
	ErrReservationExpired   = errors.New("reservation expired")
	ErrCapacityOvershoot    = errors.New("capacity release exceeds total")
	ErrInvalidSpots         = errors.New("invalid spot count")
	ErrInvalidCapacity      = errors.New("invalid capacity")
	ErrInvalidTimeRange     = errors.New("invalid time range")
	ErrInvalidTTL           = errors.New("invalid reservation ttl")
	ErrInvalidID            = errors.New("invalid id")
	ErrMissingReference     = errors.New("reservation reference required")
	ErrDuplicateCheckoutRef = errors.New("checkout session already referenced")
)
