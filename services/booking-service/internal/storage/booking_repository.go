// Package storage is the pgx implementation of the booking store. Raw SQL,
// no ORM. The partial unique index on (date, slot, staff) for scheduled rows
// is the authoritative conflict guard; everything else is reads.
package storage

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/fridakids/salon-api/libs/db"
	"github.com/fridakids/salon-api/libs/outbox"
	"github.com/fridakids/salon-api/services/booking-service/internal/booking"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

type Repository struct {
	pool   *db.Pool
	outbox *outbox.Repository
}

func NewRepository(pool *db.Pool, outboxRepo *outbox.Repository) *Repository {
	return &Repository{pool: pool, outbox: outboxRepo}
}

func (r *Repository) WithinTx(ctx context.Context, fn func(booking.Tx) error) error {
	tx, err := r.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := fn(&txRepo{tx: tx, outbox: r.outbox}); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

const apptColumns = `id, date, slot, service, staff, child_name, user_id, status, starts_at, amount, COALESCE(payment_method, ''), created_at, updated_at`

func (r *Repository) ListByUser(ctx context.Context, userID string) ([]model.Appointment, error) {
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE user_id = $1
		ORDER BY starts_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

func (r *Repository) ListByDate(ctx context.Context, date string) ([]model.Appointment, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE date = $1
		ORDER BY starts_at
	`, d)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return scanAppointments(rows)
}

// CompleteDue flips every scheduled appointment whose start time is at or
// before the cutoff to completed. Used by the sweep worker.
func (r *Repository) CompleteDue(ctx context.Context, cutoff time.Time) (int64, error) {
	tag, err := r.pool.Exec(ctx, `
		UPDATE appointments
		SET status = $1, updated_at = now()
		WHERE status = $2 AND starts_at <= $3
	`, model.StatusCompleted, model.StatusScheduled, cutoff)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}

type txRepo struct {
	tx     pgx.Tx
	outbox *outbox.Repository
}

func (t *txRepo) ScheduledSlots(ctx context.Context, date, staff, excludeID string) (map[string]struct{}, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := t.tx.Query(ctx, `
		SELECT slot
		FROM appointments
		WHERE date = $1 AND staff = $2 AND status = $3 AND id::text <> $4
	`, d, staff, model.StatusScheduled, excludeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	slots := make(map[string]struct{})
	for rows.Next() {
		var slot string
		if err := rows.Scan(&slot); err != nil {
			return nil, err
		}
		// Rows written before slot normalization may carry padding;
		// availability trims both sides, so trim here too.
		slots[strings.TrimSpace(slot)] = struct{}{}
	}
	return slots, rows.Err()
}

func (t *txRepo) Insert(ctx context.Context, appt model.Appointment) error {
	d, err := parseDate(appt.Date)
	if err != nil {
		return err
	}
	_, err = t.tx.Exec(ctx, `
		INSERT INTO appointments
			(id, date, slot, service, staff, child_name, user_id, status, starts_at, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`, appt.ID, d, appt.Slot, appt.Service, appt.Staff, appt.ChildName, appt.UserID,
		appt.Status, appt.StartsAt, appt.CreatedAt, appt.UpdatedAt)
	if isSlotConflict(err) {
		return booking.ErrSlotTaken
	}
	return err
}

func (t *txRepo) Get(ctx context.Context, id string) (model.Appointment, error) {
	if _, err := uuid.Parse(id); err != nil {
		return model.Appointment{}, booking.ErrNotFound
	}
	row := t.tx.QueryRow(ctx, `
		SELECT `+apptColumns+`
		FROM appointments
		WHERE id = $1
		FOR UPDATE
	`, id)
	appt, err := scanAppointment(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Appointment{}, booking.ErrNotFound
	}
	return appt, err
}

func (t *txRepo) Update(ctx context.Context, appt model.Appointment) error {
	d, err := parseDate(appt.Date)
	if err != nil {
		return err
	}
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET date = $2, slot = $3, service = $4, staff = $5, child_name = $6,
			starts_at = $7, updated_at = $8
		WHERE id = $1
	`, appt.ID, d, appt.Slot, appt.Service, appt.Staff, appt.ChildName, appt.StartsAt, appt.UpdatedAt)
	if isSlotConflict(err) {
		return booking.ErrSlotTaken
	}
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *txRepo) Delete(ctx context.Context, id string) error {
	tag, err := t.tx.Exec(ctx, `DELETE FROM appointments WHERE id = $1`, id)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *txRepo) Complete(ctx context.Context, id string, amount *float64, paymentMethod string) error {
	tag, err := t.tx.Exec(ctx, `
		UPDATE appointments
		SET status = $2, amount = $3, payment_method = $4, updated_at = now()
		WHERE id = $1
	`, id, model.StatusCompleted, amount, paymentMethod)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return booking.ErrNotFound
	}
	return nil
}

func (t *txRepo) InsertEvent(ctx context.Context, evt outbox.Event) error {
	return t.outbox.Insert(ctx, t.tx, evt)
}

// isSlotConflict reports whether err is the scheduled-slot unique index
// firing.
func isSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == "uq_appointments_scheduled_slot"
}

func parseDate(date string) (time.Time, error) {
	return time.Parse(model.DateLayout, date)
}

func scanAppointment(row pgx.Row) (model.Appointment, error) {
	var a model.Appointment
	var d time.Time
	err := row.Scan(&a.ID, &d, &a.Slot, &a.Service, &a.Staff, &a.ChildName, &a.UserID,
		&a.Status, &a.StartsAt, &a.Amount, &a.PaymentMethod, &a.CreatedAt, &a.UpdatedAt)
	if err != nil {
		return model.Appointment{}, err
	}
	a.Date = d.Format(model.DateLayout)
	return a, nil
}

func scanAppointments(rows pgx.Rows) ([]model.Appointment, error) {
	var out []model.Appointment
	for rows.Next() {
		appt, err := scanAppointment(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, appt)
	}
	return out, rows.Err()
}
