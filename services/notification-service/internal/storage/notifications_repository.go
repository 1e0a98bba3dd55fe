package storage

import (
	"context"

	"github.com/fridakids/salon-api/libs/db"
)

// Notification is the delivery log: one row per attempted email, sent or
// failed. Booking flow never waits on any of this.
type Notification struct {
	EventID   string
	EventType string
	Recipient string
	Subject   string
	Status    string
	Error     string
}

const (
	StatusSent   = "sent"
	StatusFailed = "failed"
)

type Repository struct {
	pool *db.Pool
}

func NewRepository(pool *db.Pool) *Repository {
	return &Repository{pool: pool}
}

func (r *Repository) Insert(ctx context.Context, n Notification) error {
	_, err := r.pool.Exec(ctx, `
		INSERT INTO notifications (event_id, event_type, recipient, subject, status, error)
		VALUES ($1, $2, $3, $4, $5, NULLIF($6, ''))
	`, n.EventID, n.EventType, n.Recipient, n.Subject, n.Status, n.Error)
	return err
}
