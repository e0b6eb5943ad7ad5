package app

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/marketingadvisorai/bookingtms-core/internal/clock"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
	"github.com/marketingadvisorai/bookingtms-core/internal/events"
)

type ReaperRepository interface {
	WithTx(ctx context.Context, fn func(ctx context.Context) error) error
	ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error)
	MarkExpired(ctx context.Context, reservationID string) (bool, error)
}

// ReaperService sweeps reservations whose hold lapsed without being
// converted or cancelled, returning their capacity to the session.
// The sweep is idempotent and schedule-agnostic: the bundled ticker,
// an external cron hitting the trigger endpoint, and tests all call
// the same Sweep.
type ReaperService struct {
	repo      ReaperRepository
	capacity  *CapacityService
	clock     clock.Clock
	publisher events.Publisher
	logger    zerolog.Logger
	batchSize int
}

const defaultReaperBatchSize = 100

func NewReaperService(repo ReaperRepository, capacity *CapacityService, clk clock.Clock, publisher events.Publisher, logger zerolog.Logger, opts ...ReaperServiceOption) *ReaperService {
	svc := &ReaperService{
		repo:      repo,
		capacity:  capacity,
		clock:     clk,
		publisher: publisher,
		logger:    logger,
		batchSize: defaultReaperBatchSize,
	}
	for _, opt := range opts {
		opt(svc)
	}
	return svc
}

type ReaperServiceOption func(*ReaperService)

// WithReaperBatchSize overrides how many rows a sweep pages through at
// a time.
func WithReaperBatchSize(n int) ReaperServiceOption {
	return func(s *ReaperService) {
		if n > 0 {
			s.batchSize = n
		}
	}
}

// SweepResult aggregates one sweep invocation.
type SweepResult struct {
	Cleaned          int
	CapacityReleased int
}

// Sweep expires every pending reservation past its deadline. Each row
// is handled in its own transaction: the status guard must land before
// any capacity is released, so a concurrent convert or cancel makes
// the row a no-op rather than a double release. A failing row is
// logged and skipped; it never aborts the sweep.
func (s *ReaperService) Sweep(ctx context.Context) (SweepResult, error) {
	now := s.clock.Now()
	var result SweepResult

	for {
		batch, err := s.repo.ListExpiredPending(ctx, now, s.batchSize)
		if err != nil {
			return result, err
		}
		if len(batch) == 0 {
			break
		}

		progressed := 0
		for _, res := range batch {
			reaped, err := s.reapOne(ctx, res)
			if err != nil {
				s.logger.Error().Err(err).
					Str("reservation_id", res.ID).
					Str("session_id", res.SessionID).
					Msg("skipping reservation during expiry sweep")
				continue
			}
			if !reaped {
				// Lost the race to a concurrent convert/cancel.
				progressed++
				continue
			}

			progressed++
			result.Cleaned++
			result.CapacityReleased += res.SpotsReserved
			s.publishExpired(ctx, res)
		}

		// Rows that failed stay pending and would be re-listed; stop
		// paging once a full pass made no progress.
		if len(batch) < s.batchSize || progressed == 0 {
			break
		}
	}

	if result.Cleaned > 0 {
		s.logger.Info().
			Int("cleaned", result.Cleaned).
			Int("capacity_released", result.CapacityReleased).
			Msg("expiry sweep completed")
	}
	return result, nil
}

func (s *ReaperService) reapOne(ctx context.Context, res domain.Reservation) (bool, error) {
	var reaped bool
	err := s.repo.WithTx(ctx, func(txCtx context.Context) error {
		ok, err := s.repo.MarkExpired(txCtx, res.ID)
		if err != nil {
			return err
		}
		if !ok {
			return nil
		}
		if _, err := s.capacity.Release(txCtx, res.SessionID, res.SpotsReserved); err != nil {
			return err
		}
		reaped = true
		return nil
	})
	return reaped, err
}

func (s *ReaperService) publishExpired(ctx context.Context, res domain.Reservation) {
	evt := events.ReservationEvent{
		Type:           events.TypeReservationExpired,
		ReservationID:  res.ID,
		SessionID:      res.SessionID,
		OrganizationID: res.OrganizationID,
		Spots:          res.SpotsReserved,
		OccurredAt:     s.clock.Now(),
	}
	if err := s.publisher.Publish(ctx, evt); err != nil {
		s.logger.Warn().Err(err).
			Str("reservation_id", res.ID).
			Msg("failed to publish expiry event")
	}
}
