package lockout

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/fridakids/salon-api/libs/db"
)

// Repository persists lockout state per email, unknown accounts included,
// so attackers cannot probe which emails exist by the throttling behavior.
type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Get(ctx context.Context, email string) (State, error) {
	var st State
	var lastFailure, lockedUntil *time.Time
	err := r.pool.QueryRow(ctx, `
		SELECT failures, last_failure_at, locked_until
		FROM login_attempts
		WHERE email = $1
	`, email).Scan(&st.Failures, &lastFailure, &lockedUntil)
	if errors.Is(err, pgx.ErrNoRows) {
		return State{}, nil
	}
	if err != nil {
		return State{}, err
	}
	if lastFailure != nil {
		st.LastFailure = *lastFailure
	}
	if lockedUntil != nil {
		st.LockedUntil = *lockedUntil
	}
	return st, nil
}

func (r *Repository) Put(ctx context.Context, email string, st State) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO login_attempts (email, failures, last_failure_at, locked_until)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (email) DO UPDATE
		SET failures = EXCLUDED.failures,
			last_failure_at = EXCLUDED.last_failure_at,
			locked_until = EXCLUDED.locked_until
	`, email, st.Failures, nullTime(st.LastFailure), nullTime(st.LockedUntil))
	return err
}

func (r *Repository) Clear(ctx context.Context, email string) error {
	_, err := r.pool.Exec(ctx, `DELETE FROM login_attempts WHERE email = $1`, email)
	return err
}

func nullTime(t time.Time) *time.Time {
	if t.IsZero() {
		return nil
	}
	return &t
}
