package app

import (
	"context"
	"sync"
	"time"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
	"github.com/marketingadvisorai/bookingtms-core/internal/events"
)

// fakeStore is an in-memory stand-in for the postgres repositories.
// It implements the CAS semantics the services rely on, guarded by a
// mutex so concurrency tests exercise real interleavings.
type fakeStore struct {
	mu           sync.Mutex
	sessions     map[string]*domain.Session
	reservations map[string]*domain.Reservation
	bookings     map[string]*domain.Booking // keyed by reservation id

	// conflictsLeft injects reserve races: each consumed conflict bumps
	// the session version as if a concurrent writer had won.
	conflictsLeft int
	releaseErrFor map[string]error
}

func newFakeStore(sessions ...domain.Session) *fakeStore {
	f := &fakeStore{
		sessions:      make(map[string]*domain.Session),
		reservations:  make(map[string]*domain.Reservation),
		bookings:      make(map[string]*domain.Booking),
		releaseErrFor: make(map[string]error),
	}
	for _, s := range sessions {
		sess := s
		f.sessions[s.ID] = &sess
	}
	return f
}

func (f *fakeStore) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
}

func (f *fakeStore) ReserveSpots(_ context.Context, sessionID string, spots int, expectedVersion int64) (int64, int, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, exists := f.sessions[sessionID]
	if !exists {
		return 0, 0, false, nil
	}
	if f.conflictsLeft > 0 {
		f.conflictsLeft--
		s.Version++
		return 0, 0, false, nil
	}
	if s.IsClosed || s.Version != expectedVersion || s.CapacityRemaining < spots {
		return 0, 0, false, nil
	}
	s.CapacityRemaining -= spots
	s.Version++
	return s.Version, s.CapacityRemaining, true, nil
}

func (f *fakeStore) ReleaseSpots(_ context.Context, sessionID string, spots int) (int64, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.releaseErrFor[sessionID]; err != nil {
		return 0, 0, err
	}
	s, exists := f.sessions[sessionID]
	if !exists {
		return 0, 0, domain.ErrSessionNotFound
	}
	if s.CapacityRemaining+spots > s.CapacityTotal {
		return 0, 0, domain.ErrCapacityOvershoot
	}
	s.CapacityRemaining += spots
	s.Version++
	return s.Version, s.CapacityRemaining, nil
}

func (f *fakeStore) GetSession(_ context.Context, sessionID string) (domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	s, exists := f.sessions[sessionID]
	if !exists {
		return domain.Session{}, domain.ErrSessionNotFound
	}
	return *s, nil
}

func (f *fakeStore) CreateSession(_ context.Context, s domain.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	sess := s
	f.sessions[s.ID] = &sess
	return nil
}

func (f *fakeStore) CloseSession(_ context.Context, sessionID string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, exists := f.sessions[sessionID]
	if !exists {
		return false, domain.ErrSessionNotFound
	}
	if !s.IsClosed {
		s.IsClosed = true
		s.Version++
	}
	return true, nil
}

func (f *fakeStore) ListSessions(_ context.Context, organizationID string) ([]domain.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []domain.Session
	for _, s := range f.sessions {
		if s.OrganizationID == organizationID {
			out = append(out, *s)
		}
	}
	return out, nil
}

func (f *fakeStore) CreateReservation(_ context.Context, res domain.Reservation) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if res.CheckoutSessionID != "" {
		for _, existing := range f.reservations {
			if existing.CheckoutSessionID == res.CheckoutSessionID {
				return domain.ErrDuplicateCheckoutRef
			}
		}
	}
	r := res
	f.reservations[res.ID] = &r
	return nil
}

func (f *fakeStore) GetReservation(_ context.Context, reservationID string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, exists := f.reservations[reservationID]
	if !exists {
		return domain.Reservation{}, domain.ErrReservationNotFound
	}
	return *r, nil
}

func (f *fakeStore) GetReservationByCheckoutRef(_ context.Context, checkoutSessionID string) (domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	for _, r := range f.reservations {
		if r.CheckoutSessionID == checkoutSessionID {
			return *r, nil
		}
	}
	return domain.Reservation{}, domain.ErrReservationNotFound
}

func (f *fakeStore) MarkCancelled(_ context.Context, reservationID string) (bool, error) {
	return f.transition(reservationID, func(r *domain.Reservation) bool {
		if r.Status != domain.ReservationStatusPending {
			return false
		}
		r.Status = domain.ReservationStatusCancelled
		return true
	})
}

func (f *fakeStore) MarkExpired(_ context.Context, reservationID string) (bool, error) {
	return f.transition(reservationID, func(r *domain.Reservation) bool {
		if r.Status != domain.ReservationStatusPending {
			return false
		}
		r.Status = domain.ReservationStatusExpired
		return true
	})
}

func (f *fakeStore) MarkConverted(_ context.Context, reservationID, bookingID string, now time.Time) (bool, error) {
	return f.transition(reservationID, func(r *domain.Reservation) bool {
		if r.Status != domain.ReservationStatusPending || !r.ExpiresAt.After(now) {
			return false
		}
		r.Status = domain.ReservationStatusConverted
		at := now
		r.ConvertedAt = &at
		r.BookingID = bookingID
		return true
	})
}

func (f *fakeStore) transition(reservationID string, apply func(*domain.Reservation) bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	r, exists := f.reservations[reservationID]
	if !exists {
		return false, nil
	}
	return apply(r), nil
}

func (f *fakeStore) ListExpiredPending(_ context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	var out []domain.Reservation
	for _, r := range f.reservations {
		if r.Status == domain.ReservationStatusPending && r.ExpiresAt.Before(now) {
			out = append(out, *r)
			if len(out) == limit {
				break
			}
		}
	}
	return out, nil
}

func (f *fakeStore) CreateBooking(_ context.Context, b domain.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, exists := f.bookings[b.ReservationID]; exists {
		return domain.ErrAlreadyFinalized
	}
	booking := b
	f.bookings[b.ReservationID] = &booking
	return nil
}

func (f *fakeStore) GetBookingByReservationID(_ context.Context, reservationID string) (*domain.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	b, exists := f.bookings[reservationID]
	if !exists {
		return nil, nil
	}
	booking := *b
	return &booking, nil
}

func (f *fakeStore) session(id string) domain.Session {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.sessions[id]
}

func (f *fakeStore) reservation(id string) domain.Reservation {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.reservations[id]
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []events.ReservationEvent
}

func (p *capturePublisher) Publish(_ context.Context, evt events.ReservationEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, evt)
	return nil
}

func (p *capturePublisher) Close() error { return nil }

func (p *capturePublisher) byType(t events.Type) []events.ReservationEvent {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []events.ReservationEvent
	for _, evt := range p.events {
		if evt.Type == t {
			out = append(out, evt)
		}
	}
	return out
}
