package app

import (
	"context"
	"time"

	"github.com/marketingadvisorai/bookingtms-core/internal/clock"
	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

type ScheduleRepository interface {
	CreateSession(ctx context.Context, s domain.Session) error
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
	CloseSession(ctx context.Context, sessionID string) (bool, error)
	ListSessions(ctx context.Context, organizationID string) ([]domain.Session, error)
}

// ScheduleService is the admin surface the external schedule generator
// uses to insert session rows and retire them. New sessions always
// start at full remaining capacity with version zero.
type ScheduleService struct {
	repo  ScheduleRepository
	clock clock.Clock
}

func NewScheduleService(repo ScheduleRepository, clk clock.Clock) *ScheduleService {
	return &ScheduleService{
		repo:  repo,
		clock: clk,
	}
}

type CreateSessionInput struct {
	ActivityID        string
	VenueID           string
	OrganizationID    string
	StartsAt          time.Time
	EndsAt            time.Time
	Capacity          int
	PriceAtGeneration float64
}

func (s *ScheduleService) CreateSession(ctx context.Context, in CreateSessionInput) (domain.Session, error) {
	if in.ActivityID == "" || in.VenueID == "" || in.OrganizationID == "" {
		return domain.Session{}, domain.ErrInvalidID
	}
	if in.Capacity < 0 {
		return domain.Session{}, domain.ErrInvalidCapacity
	}
	if !in.EndsAt.After(in.StartsAt) {
		return domain.Session{}, domain.ErrInvalidTimeRange
	}

	sess := domain.Session{
		ID:                newID(),
		ActivityID:        in.ActivityID,
		VenueID:           in.VenueID,
		OrganizationID:    in.OrganizationID,
		StartsAt:          in.StartsAt.UTC(),
		EndsAt:            in.EndsAt.UTC(),
		CapacityTotal:     in.Capacity,
		CapacityRemaining: in.Capacity,
		PriceAtGeneration: in.PriceAtGeneration,
	}

	if err := s.repo.CreateSession(ctx, sess); err != nil {
		return domain.Session{}, err
	}
	return sess, nil
}

// CloseSession retires a session: future reserves fail, existing
// reservations still cancel, convert, or expire normally. Closing an
// already-closed session is a no-op.
func (s *ScheduleService) CloseSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrInvalidID
	}
	if _, err := s.repo.CloseSession(ctx, sessionID); err != nil {
		return domain.Session{}, err
	}
	return s.repo.GetSession(ctx, sessionID)
}

func (s *ScheduleService) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	if sessionID == "" {
		return domain.Session{}, domain.ErrInvalidID
	}
	return s.repo.GetSession(ctx, sessionID)
}

func (s *ScheduleService) ListSessions(ctx context.Context, organizationID string) ([]domain.Session, error) {
	if organizationID == "" {
		return nil, domain.ErrInvalidID
	}
	return s.repo.ListSessions(ctx, organizationID)
}
