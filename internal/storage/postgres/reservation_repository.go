package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

const reservationColumns = `id, session_id, organization_id, customer_email, spots_reserved,
checkout_session_id, session_version_at_reserve, status, expires_at, created_at, converted_at, booking_id`

// ReservationRepository persists reservations. Every transition out of
// pending is a status-guarded conditional UPDATE; the guard losing the
// race reports it without side effects.
type ReservationRepository struct {
	pool *pgxpool.Pool
}

func NewReservationRepository(pool *pgxpool.Pool) *ReservationRepository {
	return &ReservationRepository{pool: pool}
}

func (r *ReservationRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

func (r *ReservationRepository) CreateReservation(ctx context.Context, res domain.Reservation) error {
	const stmt = `
INSERT INTO reservations (id, session_id, organization_id, customer_email, spots_reserved,
	checkout_session_id, session_version_at_reserve, status, expires_at, created_at)
VALUES ($1, $2, $3, NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9, $10)`

	_, err := r.exec(ctx, stmt,
		res.ID,
		res.SessionID,
		res.OrganizationID,
		res.CustomerEmail,
		res.SpotsReserved,
		res.CheckoutSessionID,
		res.SessionVersionAtReserve,
		res.Status,
		res.ExpiresAt,
		res.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrDuplicateCheckoutRef
		}
		if isForeignKeyViolation(err) {
			return domain.ErrSessionNotFound
		}
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create reservation: %w", err)
	}
	return nil
}

func (r *ReservationRepository) GetReservation(ctx context.Context, reservationID string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`
	return r.getOne(ctx, query, reservationID)
}

// GetReservationByCheckoutRef resolves a reservation from the external
// payment-session reference carried by webhook payloads.
func (r *ReservationRepository) GetReservationByCheckoutRef(ctx context.Context, checkoutSessionID string) (domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + ` FROM reservations WHERE checkout_session_id = $1`
	return r.getOne(ctx, query, checkoutSessionID)
}

func (r *ReservationRepository) getOne(ctx context.Context, query, arg string) (domain.Reservation, error) {
	res, err := scanReservation(r.queryRow(ctx, query, arg))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Reservation{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Reservation{}, domain.ErrReservationNotFound
		}
		return domain.Reservation{}, fmt.Errorf("get reservation: %w", err)
	}
	return res, nil
}

// MarkCancelled flips pending → cancelled. false means the row was not
// pending (or does not exist); nothing was written.
func (r *ReservationRepository) MarkCancelled(ctx context.Context, reservationID string) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = $2
WHERE id = $1 AND status = $3`

	tag, err := r.exec(ctx, stmt, reservationID, domain.ReservationStatusCancelled, domain.ReservationStatusPending)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark cancelled: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkConverted flips pending → converted, recording the booking and
// conversion time. The predicate also requires the hold to be alive at
// now: an expired-but-unreaped reservation never converts.
func (r *ReservationRepository) MarkConverted(ctx context.Context, reservationID, bookingID string, now time.Time) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = $2, converted_at = $4, booking_id = $5
WHERE id = $1 AND status = $3 AND expires_at > $4`

	tag, err := r.exec(ctx, stmt,
		reservationID,
		domain.ReservationStatusConverted,
		domain.ReservationStatusPending,
		now,
		bookingID,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark converted: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

// MarkExpired flips pending → expired. The reaper only releases
// capacity for rows where this guard actually landed.
func (r *ReservationRepository) MarkExpired(ctx context.Context, reservationID string) (bool, error) {
	const stmt = `
UPDATE reservations
SET status = $2
WHERE id = $1 AND status = $3`

	tag, err := r.exec(ctx, stmt, reservationID, domain.ReservationStatusExpired, domain.ReservationStatusPending)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("mark expired: %w", err)
	}
	return tag.RowsAffected() == 1, nil
}

func (r *ReservationRepository) ListExpiredPending(ctx context.Context, now time.Time, limit int) ([]domain.Reservation, error) {
	query := `SELECT ` + reservationColumns + `
FROM reservations
WHERE status = $1 AND expires_at < $2
ORDER BY expires_at
LIMIT $3`

	rows, err := r.query(ctx, query, domain.ReservationStatusPending, now, limit)
	if err != nil {
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	defer rows.Close()

	var out []domain.Reservation
	for rows.Next() {
		res, err := scanReservation(rows)
		if err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		out = append(out, res)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list expired pending: %w", err)
	}
	return out, nil
}

func scanReservation(row pgx.Row) (domain.Reservation, error) {
	var (
		res         domain.Reservation
		email       *string
		checkoutRef *string
		bookingID   *string
	)
	err := row.Scan(
		&res.ID,
		&res.SessionID,
		&res.OrganizationID,
		&email,
		&res.SpotsReserved,
		&checkoutRef,
		&res.SessionVersionAtReserve,
		&res.Status,
		&res.ExpiresAt,
		&res.CreatedAt,
		&res.ConvertedAt,
		&bookingID,
	)
	if err != nil {
		return domain.Reservation{}, err
	}
	if email != nil {
		res.CustomerEmail = *email
	}
	if checkoutRef != nil {
		res.CheckoutSessionID = *checkoutRef
	}
	if bookingID != nil {
		res.BookingID = *bookingID
	}
	return res, nil
}

func (r *ReservationRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *ReservationRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *ReservationRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
