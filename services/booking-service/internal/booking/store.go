package booking

import (
	"context"

	"github.com/fridakids/salon-api/libs/outbox"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

// Store is the persistence surface the booking service needs. The production
// implementation lives in internal/storage on pgx; tests use an in-memory
// fake.
type Store interface {
	// WithinTx runs fn in a single transaction. fn returning an error
	// rolls everything back.
	WithinTx(ctx context.Context, fn func(Tx) error) error

	ListByUser(ctx context.Context, userID string) ([]model.Appointment, error)
	ListByDate(ctx context.Context, date string) ([]model.Appointment, error)
	DayBlocks(ctx context.Context, date string) ([]model.DayBlock, error)
	TimeBlocks(ctx context.Context, date string) ([]model.TimeBlock, error)
}

// Tx is the transactional slice of the store. Insert must return ErrSlotTaken
// when the (date, slot, staff, scheduled) unique index rejects the row; that
// index, not ScheduledSlots, is what actually closes the check-then-write
// race.
type Tx interface {
	ScheduledSlots(ctx context.Context, date, staff, excludeID string) (map[string]struct{}, error)
	Insert(ctx context.Context, appt model.Appointment) error
	Get(ctx context.Context, id string) (model.Appointment, error)
	Update(ctx context.Context, appt model.Appointment) error
	Delete(ctx context.Context, id string) error
	Complete(ctx context.Context, id string, amount *float64, paymentMethod string) error
	InsertEvent(ctx context.Context, evt outbox.Event) error
}
