package app

import (
	"context"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

// CapacityStore is the storage contract for versioned capacity
// mutations. ReserveSpots must be a single conditional update keyed on
// (id, version); ok=false reports a missed predicate without saying
// why — Reserve classifies it.
type CapacityStore interface {
	ReserveSpots(ctx context.Context, sessionID string, spots int, expectedVersion int64) (version int64, remaining int, ok bool, err error)
	ReleaseSpots(ctx context.Context, sessionID string, spots int) (version int64, remaining int, err error)
	GetSession(ctx context.Context, sessionID string) (domain.Session, error)
}

// CapacityService is the sole mutator of session capacity. All writes
// go through optimistic concurrency control; callers retry on
// ErrVersionConflict against a freshly read version.
type CapacityService struct {
	store CapacityStore
}

func NewCapacityService(store CapacityStore) *CapacityService {
	return &CapacityService{store: store}
}

// CapacityResult reports the session state after a successful mutation.
type CapacityResult struct {
	NewVersion int64
	Remaining  int
}

// Reserve takes spots from a session, conditioned on the caller's
// last-known version. A missed predicate is classified in order:
// missing session, closed session, stale version (retryable), then
// insufficient capacity (permanent).
func (s *CapacityService) Reserve(ctx context.Context, sessionID string, spots int, expectedVersion int64) (CapacityResult, error) {
	if spots <= 0 {
		return CapacityResult{}, domain.ErrInvalidSpots
	}

	version, remaining, ok, err := s.store.ReserveSpots(ctx, sessionID, spots, expectedVersion)
	if err != nil {
		return CapacityResult{}, err
	}
	if !ok {
		sess, err := s.store.GetSession(ctx, sessionID)
		if err != nil {
			return CapacityResult{}, err
		}
		if sess.IsClosed {
			return CapacityResult{}, domain.ErrSessionClosed
		}
		if sess.Version != expectedVersion {
			return CapacityResult{}, domain.ErrVersionConflict
		}
		return CapacityResult{}, domain.ErrInsufficientCapacity
	}
	return CapacityResult{NewVersion: version, Remaining: remaining}, nil
}

// Release returns spots to a session. No version match is required: a
// blind increment is commutative and safe. An increment that would
// exceed capacity_total is an internal-consistency error, surfaced as
// ErrCapacityOvershoot and never clamped.
func (s *CapacityService) Release(ctx context.Context, sessionID string, spots int) (CapacityResult, error) {
	if spots <= 0 {
		return CapacityResult{}, domain.ErrInvalidSpots
	}

	version, remaining, err := s.store.ReleaseSpots(ctx, sessionID, spots)
	if err != nil {
		return CapacityResult{}, err
	}
	return CapacityResult{NewVersion: version, Remaining: remaining}, nil
}

// Session reads the current session state, typically to pick up the
// version for a subsequent Reserve.
func (s *CapacityService) Session(ctx context.Context, sessionID string) (domain.Session, error) {
	return s.store.GetSession(ctx, sessionID)
}
