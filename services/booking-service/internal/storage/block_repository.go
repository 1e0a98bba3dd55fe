package storage

import (
	"context"
	"time"

	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

func (r *Repository) DayBlocks(ctx context.Context, date string) ([]model.DayBlock, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, staff
		FROM day_blocks
		WHERE date = $1
	`, d)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.DayBlock
	for rows.Next() {
		var b model.DayBlock
		var bd time.Time
		if err := rows.Scan(&b.ID, &bd, &b.Staff); err != nil {
			return nil, err
		}
		b.Date = bd.Format(model.DateLayout)
		out = append(out, b)
	}
	return out, rows.Err()
}

func (r *Repository) TimeBlocks(ctx context.Context, date string) ([]model.TimeBlock, error) {
	d, err := parseDate(date)
	if err != nil {
		return nil, err
	}
	rows, err := r.pool.Query(ctx, `
		SELECT id, date, slot, staff
		FROM time_blocks
		WHERE date = $1
	`, d)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []model.TimeBlock
	for rows.Next() {
		var b model.TimeBlock
		var bd time.Time
		if err := rows.Scan(&b.ID, &bd, &b.Slot, &b.Staff); err != nil {
			return nil, err
		}
		b.Date = bd.Format(model.DateLayout)
		out = append(out, b)
	}
	return out, rows.Err()
}

// AddDayBlock is idempotent: blocking an already blocked day is a no-op.
func (r *Repository) AddDayBlock(ctx context.Context, date, staff string) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO day_blocks (date, staff)
		VALUES ($1, $2)
		ON CONFLICT (date, staff) DO NOTHING
	`, d, staff)
	return err
}

func (r *Repository) RemoveDayBlock(ctx context.Context, date, staff string) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		DELETE FROM day_blocks WHERE date = $1 AND staff = $2
	`, d, staff)
	return err
}

func (r *Repository) AddTimeBlock(ctx context.Context, date, slot, staff string) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		INSERT INTO time_blocks (date, slot, staff)
		VALUES ($1, $2, $3)
		ON CONFLICT (date, slot, staff) DO NOTHING
	`, d, slot, staff)
	return err
}

func (r *Repository) RemoveTimeBlock(ctx context.Context, date, slot, staff string) error {
	d, err := parseDate(date)
	if err != nil {
		return err
	}
	_, err = r.pool.Exec(ctx, `
		DELETE FROM time_blocks WHERE date = $1 AND slot = $2 AND staff = $3
	`, d, slot, staff)
	return err
}
