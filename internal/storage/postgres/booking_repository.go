package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

// BookingRepository persists bookings. The unique index on
// reservation_id enforces the one-booking-per-reservation relation and
// backs the binder's idempotency under duplicate webhook delivery.
type BookingRepository struct {
	pool *pgxpool.Pool
}

func NewBookingRepository(pool *pgxpool.Pool) *BookingRepository {
	return &BookingRepository{pool: pool}
}

func (r *BookingRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *BookingRepository) CreateBooking(ctx context.Context, b domain.Booking) error {
	const stmt = `
INSERT INTO bookings (id, reservation_id, session_id, organization_id, spots, customer_email, created_at)
VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''), $7)`

	_, err := r.exec(ctx, stmt,
		b.ID,
		b.ReservationID,
		b.SessionID,
		b.OrganizationID,
		b.Spots,
		b.CustomerEmail,
		b.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrAlreadyFinalized
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetBookingByReservationID(ctx context.Context, reservationID string) (*domain.Booking, error) {
	const query = `
SELECT id, reservation_id, session_id, organization_id, spots, COALESCE(customer_email, ''), created_at
FROM bookings
WHERE reservation_id = $1`

	var b domain.Booking
	err := r.queryRow(ctx, query, reservationID).Scan(
		&b.ID,
		&b.ReservationID,
		&b.SessionID,
		&b.OrganizationID,
		&b.Spots,
		&b.CustomerEmail,
		&b.CreatedAt,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return nil, nil
		}
		return nil, fmt.Errorf("get booking: %w", err)
	}
	return &b, nil
}

func (r *BookingRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *BookingRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
