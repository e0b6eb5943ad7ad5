package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/marketingadvisorai/bookingtms-core/internal/domain"
)

const sessionColumns = `id, activity_id, venue_id, organization_id, starts_at, ends_at,
capacity_total, capacity_remaining, price_at_generation, is_closed, version`

// SessionRepository persists sessions. Capacity mutations are single
// conditional UPDATEs; there is no code path that writes
// capacity_remaining from a previously read value.
type SessionRepository struct {
	pool *pgxpool.Pool
}

func NewSessionRepository(pool *pgxpool.Pool) *SessionRepository {
	return &SessionRepository{pool: pool}
}

func (r *SessionRepository) WithTx(ctx context.Context, fn func(ctx context.Context) error) error {
	return withTx(ctx, r.pool, fn)
}

// ReserveSpots decrements remaining capacity and bumps the version in
// one conditional UPDATE keyed on (id, version). ok is false when the
// predicate matched no row: missing session, closed session, stale
// version, or not enough capacity — the caller classifies which.
func (r *SessionRepository) ReserveSpots(ctx context.Context, sessionID string, spots int, expectedVersion int64) (version int64, remaining int, ok bool, err error) {
	const stmt = `
UPDATE sessions
SET capacity_remaining = capacity_remaining - $2, version = version + 1
WHERE id = $1 AND version = $3 AND is_closed = FALSE AND capacity_remaining >= $2
RETURNING version, capacity_remaining`

	err = r.queryRow(ctx, stmt, sessionID, spots, expectedVersion).Scan(&version, &remaining)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, 0, false, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return 0, 0, false, nil
		}
		return 0, 0, false, fmt.Errorf("reserve spots: %w", err)
	}
	return version, remaining, true, nil
}

// ReleaseSpots returns spots to a session with a blind atomic
// increment. The capacity-bounds CHECK rejects an increment past
// capacity_total; that surfaces as ErrCapacityOvershoot rather than a
// clamped write.
func (r *SessionRepository) ReleaseSpots(ctx context.Context, sessionID string, spots int) (version int64, remaining int, err error) {
	const stmt = `
UPDATE sessions
SET capacity_remaining = capacity_remaining + $2, version = version + 1
WHERE id = $1
RETURNING version, capacity_remaining`

	err = r.queryRow(ctx, stmt, sessionID, spots).Scan(&version, &remaining)
	if err != nil {
		if isInvalidUUID(err) {
			return 0, 0, domain.ErrInvalidID
		}
		if isCheckViolation(err) {
			return 0, 0, domain.ErrCapacityOvershoot
		}
		if err == pgx.ErrNoRows {
			return 0, 0, domain.ErrSessionNotFound
		}
		return 0, 0, fmt.Errorf("release spots: %w", err)
	}
	return version, remaining, nil
}

func (r *SessionRepository) GetSession(ctx context.Context, sessionID string) (domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE id = $1`

	s, err := scanSession(r.queryRow(ctx, query, sessionID))
	if err != nil {
		if isInvalidUUID(err) {
			return domain.Session{}, domain.ErrInvalidID
		}
		if err == pgx.ErrNoRows {
			return domain.Session{}, domain.ErrSessionNotFound
		}
		return domain.Session{}, fmt.Errorf("get session: %w", err)
	}
	return s, nil
}

// CreateSession inserts a session row on behalf of the external
// schedule generator: full capacity remaining, version zero, open.
func (r *SessionRepository) CreateSession(ctx context.Context, s domain.Session) error {
	const stmt = `
INSERT INTO sessions (id, activity_id, venue_id, organization_id, starts_at, ends_at,
	capacity_total, capacity_remaining, price_at_generation, is_closed, version)
VALUES ($1, $2, $3, $4, $5, $6, $7, $7, $8, FALSE, 0)`

	_, err := r.exec(ctx, stmt,
		s.ID,
		s.ActivityID,
		s.VenueID,
		s.OrganizationID,
		s.StartsAt,
		s.EndsAt,
		s.CapacityTotal,
		s.PriceAtGeneration,
	)
	if err != nil {
		if isInvalidUUID(err) {
			return domain.ErrInvalidID
		}
		return fmt.Errorf("create session: %w", err)
	}
	return nil
}

// CloseSession marks a session closed and bumps its version. Closing
// an already-closed session is a no-op that still reports found=true.
func (r *SessionRepository) CloseSession(ctx context.Context, sessionID string) (bool, error) {
	const stmt = `
UPDATE sessions
SET is_closed = TRUE, version = version + 1
WHERE id = $1 AND is_closed = FALSE`

	tag, err := r.exec(ctx, stmt, sessionID)
	if err != nil {
		if isInvalidUUID(err) {
			return false, domain.ErrInvalidID
		}
		return false, fmt.Errorf("close session: %w", err)
	}
	if tag.RowsAffected() == 0 {
		s, err := r.GetSession(ctx, sessionID)
		if err != nil {
			return false, err
		}
		return s.IsClosed, nil
	}
	return true, nil
}

func (r *SessionRepository) ListSessions(ctx context.Context, organizationID string) ([]domain.Session, error) {
	query := `SELECT ` + sessionColumns + ` FROM sessions WHERE organization_id = $1 ORDER BY starts_at`

	rows, err := r.query(ctx, query, organizationID)
	if err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var out []domain.Session
	for rows.Next() {
		s, err := scanSession(rows)
		if err != nil {
			return nil, fmt.Errorf("scan session: %w", err)
		}
		out = append(out, s)
	}
	if err := rows.Err(); err != nil {
		if isInvalidUUID(err) {
			return nil, domain.ErrInvalidID
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	return out, nil
}

func scanSession(row pgx.Row) (domain.Session, error) {
	var s domain.Session
	err := row.Scan(
		&s.ID,
		&s.ActivityID,
		&s.VenueID,
		&s.OrganizationID,
		&s.StartsAt,
		&s.EndsAt,
		&s.CapacityTotal,
		&s.CapacityRemaining,
		&s.PriceAtGeneration,
		&s.IsClosed,
		&s.Version,
	)
	return s, err
}

func (r *SessionRepository) exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Exec(ctx, sql, args...)
	}
	return r.pool.Exec(ctx, sql, args...)
}

func (r *SessionRepository) query(ctx context.Context, sql string, args ...any) (pgx.Rows, error) {
	if tx := txFromContext(ctx); tx != nil {
		return tx.Query(ctx, sql, args...)
	}
	return r.pool.Query(ctx, sql, args...)
}

func (r *SessionRepository) queryRow(ctx context.Context, sql string, args ...any) pgx.Row {
	if tx := txFromContext(ctx); tx != nil {
		return tx.QueryRow(ctx, sql, args...)
	}
	return r.pool.QueryRow(ctx, sql, args...)
}
