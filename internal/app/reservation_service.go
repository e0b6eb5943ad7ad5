package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketingadvisorai/bookingtms-core/internal/clock"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
	"github.com/marketingadvisorai/bookingtms-core/internal/events"
)

type ReservationRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	CreateReservation(ctx context.Context, res domain.Reservation) error
	GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error)
	GetReservationByCheckoutRef(ctx context.Context, checkoutSessionID string) (domain.Reservation, error)
	MarkCancelled(ctx context.Context, reservationID string) (bool, error)
}

// ReservationService creates and cancels time-boxed reservations. A
// reservation soft-holds capacity: the spots are taken from the
// session at creation time and given back on cancel or expiry, never
// at conversion.
type ReservationService struct {
	repo      ReservationRepository
	capacity  *CapacityService
	clock     clock.Clock
	publisher events.Publisher
	logger    zerolog.Logger
	ttl       time.Duration
}

const (
	defaultReservationTTL = 15 * time.Minute
	minReservationTTL     = time.Minute
	maxReservationTTL     = 2 * time.Hour

	// Version conflicts resolve on re-read, so a short bounded loop
	// with no backoff is enough.
	maxReserveAttempts = 4
)

func NewReservationService(repo ReservationRepository, capacity *CapacityService, clk clock.Clock, publisher events.Publisher, logger zerolog.Logger, opts ...ReservationServiceOption) *ReservationService {
	svc := &ReservationService{
		repo:      repo,
		capacity:  capacity,
		clock:     clk,
		publisher: publisher,
		logger:    logger,
		ttl:       defaultReservationTTL,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReservationServiceOption func(*ReservationService)

// WithReservationTTL overrides the default hold duration.
func WithReservationTTL(d time.Duration) ReservationServiceOption {
	return func(s *ReservationService) {
		if d > 0 {
			s.ttl = d
		}
	}
}

type CreateReservationInput struct {
	SessionID         string
	OrganizationID    string
	Spots             int
	CustomerEmail     string
	CheckoutSessionID string
	// TTL overrides the service default when non-zero; bounded to
	// [1m, 2h] so a bad caller cannot lock inventory up indefinitely.
	TTL time.Duration
}

// CreateReservation reserves capacity and records the hold in one
// transaction. On version conflict it re-reads the session and
// retries up to maxReserveAttempts before giving up with
// ErrContention.
func (s *ReservationService) CreateReservation(ctx context.Context, in CreateReservationInput) (domain.Reservation, error) {
	if in.SessionID == "" || in.OrganizationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	if in.Spots <= 0 {
		return domain.Reservation{}, domain.ErrInvalidSpots
	}

	ttl := s.ttl
	if in.TTL != 0 {
		if in.TTL < minReservationTTL || in.TTL > maxReservationTTL {
			return domain.Reservation{}, domain.ErrInvalidTTL
		}
		ttl = in.TTL
	}

	now := s.clock.Now()

	for attempt := 0; attempt < maxReserveAttempts; attempt++ {
		sess, err := s.capacity.Session(ctx, in.SessionID)
		if err != nil {
			return domain.Reservation{}, err
		}
		if sess.IsClosed {
			return domain.Reservation{}, domain.ErrSessionClosed
		}

		reservation := domain.Reservation{
			ID:                      newID(),
			SessionID:               in.SessionID,
			OrganizationID:          in.OrganizationID,
			CustomerEmail:           in.CustomerEmail,
			SpotsReserved:           in.Spots,
			CheckoutSessionID:       in.CheckoutSessionID,
			SessionVersionAtReserve: sess.Version,
			Status:                  domain.ReservationStatusPending,
			ExpiresAt:               now.Add(ttl),
			CreatedAt:               now,
		}

		err = s.repo.WithTx(ctx, func(txCtx context.Context) error {
			if _, err := s.capacity.Reserve(txCtx, in.SessionID, in.Spots, sess.Version); err != nil {
				return err
			}
			return s.repo.CreateReservation(txCtx, reservation)
		})
		if err == domain.ErrVersionConflict {
			continue
		}
		if err != nil {
			return domain.Reservation{}, err
		}

		s.publish(ctx, events.TypeReservationCreated, reservation)
		return reservation, nil
	}

	return domain.Reservation{}, domain.ErrContention
}

// CancelReservation releases a pending hold. Any reservation that has
// already left pending fails with ErrAlreadyFinalized; the guarded
// status flip guarantees the released spots are returned exactly once.
func (s *ReservationService) CancelReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}

	var cancelled domain.Reservation
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		res, err := s.repo.GetReservation(txCtx, reservationID)
		if err != nil {
			return err
		}

		ok, err := s.repo.MarkCancelled(txCtx, reservationID)
		if err != nil {
			return err
		}
		if !ok {
			return domain.ErrAlreadyFinalized
		}

		if _, err := s.capacity.Release(txCtx, res.SessionID, res.SpotsReserved); err != nil {
			return err
		}

		res.Status = domain.ReservationStatusCancelled
		cancelled = res
		return nil
	})
	if err != nil {
		return domain.Reservation{}, err
	}

	s.publish(ctx, events.TypeReservationCancelled, cancelled)
	return cancelled, nil
}

// CancelByCheckoutRef cancels the pending reservation attached to a
// payment checkout session, for webhook payloads that carry only the
// provider's reference.
func (s *ReservationService) CancelByCheckoutRef(ctx context.Context, checkoutSessionID string) (domain.Reservation, error) {
	if checkoutSessionID == "" {
		return domain.Reservation{}, domain.ErrMissingReference
	}
	res, err := s.repo.GetReservationByCheckoutRef(ctx, checkoutSessionID)
	if err != nil {
		return domain.Reservation{}, err
	}
	return s.CancelReservation(ctx, res.ID)
}

// GetReservation exposes reservation state to transport (countdown
// display during checkout).
func (s *ReservationService) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	if reservationID == "" {
		return domain.Reservation{}, domain.ErrInvalidID
	}
	return s.repo.GetReservation(ctx, reservationID)
}

func (s *ReservationService) publish(ctx context.Context, t events.Type, res domain.Reservation) {
	evt := events.ReservationEvent{
		Type:           t,
		ReservationID:  res.ID,
		SessionID:      res.SessionID,
		OrganizationID: res.OrganizationID,
		Spots:          res.SpotsReserved,
		BookingID:      res.BookingID,
		OccurredAt:     s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("type", string(t)).
			Str("reservation_id", res.ID).
			Msg("failed to publish reservation event")
	}
}
