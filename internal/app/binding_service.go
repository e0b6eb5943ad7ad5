package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketingadvisorai/bookingtms-core/internal/clock"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
	"github.com/marketingadvisorai/bookingtms-core/internal/events"
)

type BindingReservationStore interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetReservationByCheckoutRef(ctx context.Context, checkoutSessionID string) (domain.Reservation, error)
	MarkConverted(ctx context.Context, reservationID, bookingID string, now time.Time) (bool, error)
}

type BindingBookingStore interface {
	CreateBooking(ctx context.Context, b domain.Booking) error
	GetBookingByReservationID(ctx context.Context, reservationID string) (*domain.Booking, error)
}

// BindingService turns a paid reservation into a permanent booking.
// Capacity was already decremented when the reservation was created,
// so binding never touches capacity — it flips the reservation status
// and records the booking, atomically and idempotently.
type BindingService struct {
	reservations BindingReservationStore
	bookings     BindingBookingStore
	clock        clock.Clock
	publisher    events.Publisher
	logger       zerolog.Logger
}

func NewBindingService(reservations BindingReservationStore, bookings BindingBookingStore, clk clock.Clock, publisher events.Publisher, logger zerolog.Logger) *BindingService {
	return &BindingService{
		reservations: reservations,
		bookings:     bookings,
		clock:        clk,
		publisher:    publisher,
		logger:       logger,
	}
}

// BindInput identifies the reservation either directly or through the
// payment provider's checkout-session reference.
type BindInput struct {
	ReservationID     string
	CheckoutSessionID string
}

// BindResult reports the booking. Created is false on a replayed
// invocation (duplicate webhook): the stored booking is returned and
// nothing is written.
type BindResult struct {
	Booking     domain.Booking
	Reservation domain.Reservation
	Created     bool
}

func (s *BindingService) Bind(ctx context.Context, in BindInput) (BindResult, error) {
	if in.ReservationID == "" && in.CheckoutSessionID == "" {
		return BindResult{}, domain.ErrMissingReference
	}

	now := s.clock.Now()
	var result BindResult

	err := s.reservations.WithTx(ctx, func(txCtx context.Context) error {
		var (
			res domain.Reservation
			err error
		)
		if in.ReservationID != "" {
			res, err = s.reservations.GetReservation(txCtx, in.ReservationID)
		} else {
			res, err = s.reservations.GetReservationByCheckoutRef(txCtx, in.CheckoutSessionID)
		}
		if err != nil {
			return err
		}

		existing, err := s.bookings.GetBookingByReservationID(txCtx, res.ID)
		if err != nil {
			return err
		}
		if existing != nil {
			result = BindResult{Booking: *existing, Reservation: res, Created: false}
			return nil
		}

		if res.Status != domain.ReservationStatusPending {
			return domain.ErrAlreadyFinalized
		}
		if res.ExpiredAt(now) {
			return domain.ErrReservationExpired
		}

		booking := domain.Booking{
			ID:             newID(),
			ReservationID:  res.ID,
			SessionID:      res.SessionID,
			OrganizationID: res.OrganizationID,
			Spots:          res.SpotsReserved,
			CustomerEmail:  res.CustomerEmail,
			CreatedAt:      now,
		}

		if err := s.bookings.CreateBooking(txCtx, booking); err != nil {
			// A concurrent bind may have landed first; replay its result.
			if err == domain.ErrAlreadyFinalized {
				winner, err2 := s.bookings.GetBookingByReservationID(txCtx, res.ID)
				if err2 != nil {
					return err2
				}
				if winner != nil {
					result = BindResult{Booking: *winner, Reservation: res, Created: false}
					return nil
				}
			}
			return err
		}

		ok, err := s.reservations.MarkConverted(txCtx, res.ID, booking.ID, now)
		if err != nil {
			return err
		}
		if !ok {
			// The guard missed between our read and the flip: the
			// reservation was finalized or lapsed concurrently.
			fresh, err := s.reservations.GetReservation(txCtx, res.ID)
			if err != nil {
				return err
			}
			if fresh.Status == domain.ReservationStatusPending && fresh.ExpiredAt(now) {
				return domain.ErrReservationExpired
			}
			return domain.ErrAlreadyFinalized
		}

		res.Status = domain.ReservationStatusConverted
		res.ConvertedAt = &now
		res.BookingID = booking.ID
		result = BindResult{Booking: booking, Reservation: res, Created: true}
		return nil
	})
	if err != nil {
		return BindResult{}, err
	}

	if result.Created {
		s.publishConverted(ctx, result)
	}
	return result, nil
}

func (s *BindingService) publishConverted(ctx context.Context, result BindResult) {
	evt := events.ReservationEvent{
		Type:           events.TypeReservationConverted,
		ReservationID:  result.Reservation.ID,
		SessionID:      result.Reservation.SessionID,
		OrganizationID: result.Reservation.OrganizationID,
		Spots:          result.Reservation.SpotsReserved,
		BookingID:      result.Booking.ID,
		OccurredAt:     s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("reservation_id", result.Reservation.ID).
			Str("booking_id", result.Booking.ID).
			Msg("failed to publish conversion event")
	}
}
