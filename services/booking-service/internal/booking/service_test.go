package booking

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/fridakids/salon-api/libs/outbox"
	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
	"github.com/fridakids/salon-api/services/booking-service/internal/policy"
)

// fakeStore keeps everything in maps and gives WithinTx real rollback
// semantics so the batch atomicity tests mean something.
type fakeStore struct {
	appts      map[string]model.Appointment
	dayBlocks  []model.DayBlock
	timeBlocks []model.TimeBlock
	events     []outbox.Event

	// raceSlot simulates losing the unique-index race: Insert fails for
	// this slot even though ScheduledSlots did not report it.
	raceSlot string
}

func newFakeStore() *fakeStore {
	return &fakeStore{appts: make(map[string]model.Appointment)}
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(Tx) error) error {
	snapshot := make(map[string]model.Appointment, len(f.appts))
	for k, v := range f.appts {
		snapshot[k] = v
	}
	eventsLen := len(f.events)
	if err := fn(&fakeTx{store: f}); err != nil {
		f.appts = snapshot
		f.events = f.events[:eventsLen]
		return err
	}
	return nil
}

func (f *fakeStore) ListByUser(_ context.Context, userID string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) ListByDate(_ context.Context, date string) ([]model.Appointment, error) {
	var out []model.Appointment
	for _, a := range f.appts {
		if a.Date == date {
			out = append(out, a)
		}
	}
	return out, nil
}

func (f *fakeStore) DayBlocks(_ context.Context, date string) ([]model.DayBlock, error) {
	var out []model.DayBlock
	for _, b := range f.dayBlocks {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

func (f *fakeStore) TimeBlocks(_ context.Context, date string) ([]model.TimeBlock, error) {
	var out []model.TimeBlock
	for _, b := range f.timeBlocks {
		if b.Date == date {
			out = append(out, b)
		}
	}
	return out, nil
}

type fakeTx struct {
	store *fakeStore
}

func (t *fakeTx) ScheduledSlots(_ context.Context, date, staff, excludeID string) (map[string]struct{}, error) {
	out := make(map[string]struct{})
	for _, a := range t.store.appts {
		if a.Date == date && a.Staff == staff && a.Status == model.StatusScheduled && a.ID != excludeID {
			out[a.Slot] = struct{}{}
		}
	}
	return out, nil
}

func (t *fakeTx) Insert(_ context.Context, appt model.Appointment) error {
	if appt.Slot == t.store.raceSlot {
		return ErrSlotTaken
	}
	for _, a := range t.store.appts {
		if a.Date == appt.Date && a.Slot == appt.Slot && a.Staff == appt.Staff && a.Status == model.StatusScheduled {
			return ErrSlotTaken
		}
	}
	t.store.appts[appt.ID] = appt
	return nil
}

func (t *fakeTx) Get(_ context.Context, id string) (model.Appointment, error) {
	a, ok := t.store.appts[id]
	if !ok {
		return model.Appointment{}, ErrNotFound
	}
	return a, nil
}

func (t *fakeTx) Update(_ context.Context, appt model.Appointment) error {
	for _, a := range t.store.appts {
		if a.ID != appt.ID && a.Date == appt.Date && a.Slot == appt.Slot && a.Staff == appt.Staff && a.Status == model.StatusScheduled {
			return ErrSlotTaken
		}
	}
	t.store.appts[appt.ID] = appt
	return nil
}

func (t *fakeTx) Delete(_ context.Context, id string) error {
	delete(t.store.appts, id)
	return nil
}

func (t *fakeTx) Complete(_ context.Context, id string, amount *float64, paymentMethod string) error {
	a := t.store.appts[id]
	a.Status = model.StatusCompleted
	a.Amount = amount
	a.PaymentMethod = paymentMethod
	t.store.appts[id] = a
	return nil
}

func (t *fakeTx) InsertEvent(_ context.Context, evt outbox.Event) error {
	t.store.events = append(t.store.events, evt)
	return nil
}

// 2024-06-12 is a Wednesday; bookings target the Thursday after.
var (
	testNow  = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC)
	testDate = "2024-06-13"
)

func newService(store *fakeStore) *Service {
	return New(store, catalog.Default(), policy.Default(time.UTC), func() time.Time { return testNow })
}

var client = Actor{UserID: "user-1", Name: "Maria Silva", Email: "maria@example.com"}
var admin = Actor{UserID: "admin-1", Name: "Frida", Email: "frida@fridakids.com", Admin: true}

func book(t *testing.T, svc *Service, actor Actor, date, staff string, items ...BookItem) []model.Appointment {
	t.Helper()
	created, err := svc.Book(context.Background(), actor, BookRequest{
		Date: date, Staff: staff, Service: "Corte Infantil", Items: items,
	})
	if err != nil {
		t.Fatalf("Book failed: %v", err)
	}
	return created
}

func TestBook_SingleChild(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)

	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})
	if len(created) != 1 {
		t.Fatalf("expected 1 appointment, got %d", len(created))
	}
	a := created[0]
	if a.Status != model.StatusScheduled || a.ID == "" {
		t.Fatalf("unexpected appointment: %+v", a)
	}
	if a.StartsAt != time.Date(2024, 6, 13, 9, 30, 0, 0, time.UTC) {
		t.Fatalf("unexpected starts_at: %v", a.StartsAt)
	}

	if len(store.events) != 1 {
		t.Fatalf("expected 1 outbox event, got %d", len(store.events))
	}
	evt := store.events[0]
	if evt.EventType != EventBooked {
		t.Fatalf("unexpected event type %q", evt.EventType)
	}
	var payload AppointmentEvent
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.UserEmail != client.Email || len(payload.Items) != 1 || payload.Items[0].ChildName != "Lia" {
		t.Fatalf("unexpected payload: %+v", payload)
	}
}

func TestBook_BatchIsAtomic(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	book(t, svc, client, testDate, "Ana", BookItem{ChildName: "José", Slot: "10:00"})

	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{
			{ChildName: "Lia", Slot: "09:30"},
			{ChildName: "Bia", Slot: "10:00"},
		},
	})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(ce.Slots) != 1 || ce.Slots[0] != "10:00" {
		t.Fatalf("conflict should name the offending slot, got %v", ce.Slots)
	}
	// The free 09:30 slot must not have been taken by the failed batch.
	if len(store.appts) != 1 {
		t.Fatalf("expected no partial inserts, have %d appointments", len(store.appts))
	}
	if len(store.events) != 1 {
		t.Fatalf("failed batch must not emit events, have %d", len(store.events))
	}
}

func TestBook_LosingInsertRaceIsConflict(t *testing.T) {
	store := newFakeStore()
	store.raceSlot = "09:30"
	svc := newService(store)

	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	})
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(store.appts) != 0 || len(store.events) != 0 {
		t.Fatal("lost race must roll back everything")
	}
}

func TestBook_PaddedStoredSlotStillConflicts(t *testing.T) {
	store := newFakeStore()
	// Rows written before slot normalization can carry padding; they must
	// still count as taken.
	store.appts["old-1"] = model.Appointment{
		ID: "old-1", UserID: "user-2", Date: testDate, Slot: " 10:00 ",
		Staff: "Ana", Status: model.StatusScheduled,
	}
	svc := newService(store)

	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "10:00"}},
	})
	var ce *ConflictError
	if !errors.As(err, &ce) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
	if len(ce.Slots) != 1 || ce.Slots[0] != "10:00" {
		t.Fatalf("conflict should name the slot, got %v", ce.Slots)
	}
}

func TestBook_DuplicateSlotWithinBatch(t *testing.T) {
	svc := newService(newFakeStore())
	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{
			{ChildName: "Lia", Slot: "09:30"},
			{ChildName: "Bia", Slot: "09:30"},
		},
	})
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError for duplicate slots, got %v", err)
	}
}

func TestBook_SameSlotDifferentStaff(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})
	book(t, svc, client, testDate, "Frida", BookItem{ChildName: "Bia", Slot: "09:30"})
	if len(store.appts) != 2 {
		t.Fatalf("expected 2 appointments, got %d", len(store.appts))
	}
}

func TestBook_ClosedWeekday(t *testing.T) {
	svc := newService(newFakeStore())
	// 2024-06-16 is a Sunday.
	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: "2024-06-16", Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError, got %v", err)
	}

	if _, err := svc.Book(context.Background(), admin, BookRequest{
		Date: "2024-06-16", Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	}); err != nil {
		t.Fatalf("admin should book on closed weekdays: %v", err)
	}
}

func TestBook_ExtendedSlotIsAdminOnly(t *testing.T) {
	svc := newService(newFakeStore())
	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "19:00"}},
	})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError for client after-hours slot, got %v", err)
	}

	if _, err := svc.Book(context.Background(), admin, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "19:00"}},
	}); err != nil {
		t.Fatalf("admin after-hours booking should work: %v", err)
	}
}

func TestBook_SalonWideDayBlock(t *testing.T) {
	store := newFakeStore()
	store.dayBlocks = []model.DayBlock{{ID: "b1", Date: testDate}}
	svc := newService(store)

	req := BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	}
	if _, err := svc.Book(context.Background(), client, req); !IsConflict(err) {
		t.Fatalf("expected ConflictError on blocked day, got %v", err)
	}
	// Bypass is off by default; admins are blocked too.
	if _, err := svc.Book(context.Background(), admin, req); !IsConflict(err) {
		t.Fatalf("expected admin to be blocked with bypass off, got %v", err)
	}

	rules := policy.Default(time.UTC)
	rules.AdminBypassDayBlock = true
	svc = New(store, catalog.Default(), rules, func() time.Time { return testNow })
	if _, err := svc.Book(context.Background(), admin, req); err != nil {
		t.Fatalf("admin with bypass on should book through a salon-wide block: %v", err)
	}
	if _, err := svc.Book(context.Background(), client, req); !IsConflict(err) {
		t.Fatalf("clients are always blocked, got %v", err)
	}
}

func TestBook_TimeBlock(t *testing.T) {
	store := newFakeStore()
	store.timeBlocks = []model.TimeBlock{{ID: "t1", Date: testDate, Slot: "09:30", Staff: "Ana"}}
	svc := newService(store)

	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: testDate, Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	})
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError on blocked slot, got %v", err)
	}

	// The same slot with the other staff member is fine.
	book(t, svc, client, testDate, "Frida", BookItem{ChildName: "Lia", Slot: "09:30"})
}

func TestBook_SameDayPastSlot(t *testing.T) {
	svc := newService(newFakeStore())
	// testNow is 10:00; 09:30 today is gone.
	_, err := svc.Book(context.Background(), client, BookRequest{
		Date: "2024-06-12", Staff: "Ana", Service: "Corte Infantil",
		Items: []BookItem{{ChildName: "Lia", Slot: "09:30"}},
	})
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError for past same-day slot, got %v", err)
	}
}

func TestEdit_MoveToFreeSlot(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	updated, err := svc.Edit(context.Background(), client, EditRequest{
		ID: created[0].ID, Date: testDate, Slot: "11:00", Staff: "Ana",
		Service: "Penteado", ChildName: "Lia",
	})
	if err != nil {
		t.Fatalf("Edit failed: %v", err)
	}
	if updated.Slot != "11:00" || updated.Service != "Penteado" {
		t.Fatalf("unexpected update: %+v", updated)
	}

	evt := store.events[len(store.events)-1]
	if evt.EventType != EventEdited {
		t.Fatalf("expected edited event, got %q", evt.EventType)
	}
	var payload AppointmentEvent
	if err := json.Unmarshal(evt.Payload, &payload); err != nil {
		t.Fatalf("bad payload: %v", err)
	}
	if payload.Previous == nil || payload.Previous.Slot != "09:30" {
		t.Fatalf("edited event should carry the previous slot, got %+v", payload.Previous)
	}
}

func TestEdit_KeepingOwnSlotIsNotAConflict(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	// Same slot, different service. Must not conflict with itself.
	if _, err := svc.Edit(context.Background(), client, EditRequest{
		ID: created[0].ID, Date: testDate, Slot: "09:30", Staff: "Ana",
		Service: "Hidratação", ChildName: "Lia",
	}); err != nil {
		t.Fatalf("editing without moving should work: %v", err)
	}
}

func TestEdit_MoveToTakenSlot(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	book(t, svc, client, testDate, "Ana", BookItem{ChildName: "José", Slot: "10:00"})
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	_, err := svc.Edit(context.Background(), client, EditRequest{
		ID: created[0].ID, Date: testDate, Slot: "10:00", Staff: "Ana",
		Service: "Corte Infantil", ChildName: "Lia",
	})
	if !IsConflict(err) {
		t.Fatalf("expected ConflictError, got %v", err)
	}
}

func TestEdit_Ownership(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	other := Actor{UserID: "user-2", Name: "Outra", Email: "outra@example.com"}
	req := EditRequest{
		ID: created[0].ID, Date: testDate, Slot: "11:00", Staff: "Ana",
		Service: "Corte Infantil", ChildName: "Lia",
	}
	if _, err := svc.Edit(context.Background(), other, req); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}
	if _, err := svc.Edit(context.Background(), admin, req); err != nil {
		t.Fatalf("admin should edit any appointment: %v", err)
	}
}

func TestEdit_CompletedIsImmutable(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	amount := 80.0
	if err := svc.Complete(context.Background(), admin, created[0].ID, &amount, model.PaymentPix); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}

	_, err := svc.Edit(context.Background(), admin, EditRequest{
		ID: created[0].ID, Date: testDate, Slot: "11:00", Staff: "Ana",
		Service: "Corte Infantil", ChildName: "Lia",
	})
	if !IsValidation(err) {
		t.Fatalf("expected ValidationError editing a completed appointment, got %v", err)
	}
}

func TestCancel(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	other := Actor{UserID: "user-2"}
	if err := svc.Cancel(context.Background(), other, created[0].ID); !errors.Is(err, ErrForbidden) {
		t.Fatalf("expected ErrForbidden, got %v", err)
	}

	if err := svc.Cancel(context.Background(), client, created[0].ID); err != nil {
		t.Fatalf("Cancel failed: %v", err)
	}
	if len(store.appts) != 0 {
		t.Fatal("appointment should be gone")
	}
	evt := store.events[len(store.events)-1]
	if evt.EventType != EventCancelled {
		t.Fatalf("expected cancelled event, got %q", evt.EventType)
	}

	if err := svc.Cancel(context.Background(), client, created[0].ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound on double cancel, got %v", err)
	}
}

func TestComplete(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	created := book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})
	id := created[0].ID

	if err := svc.Complete(context.Background(), client, id, nil, ""); !errors.Is(err, ErrForbidden) {
		t.Fatalf("clients must not complete appointments, got %v", err)
	}
	if err := svc.Complete(context.Background(), admin, id, nil, "cheque"); !IsValidation(err) {
		t.Fatalf("expected ValidationError for unknown payment method, got %v", err)
	}

	amount := 75.5
	if err := svc.Complete(context.Background(), admin, id, &amount, model.PaymentCard); err != nil {
		t.Fatalf("Complete failed: %v", err)
	}
	a := store.appts[id]
	if a.Status != model.StatusCompleted || a.Amount == nil || *a.Amount != 75.5 || a.PaymentMethod != model.PaymentCard {
		t.Fatalf("unexpected completed appointment: %+v", a)
	}

	if err := svc.Complete(context.Background(), admin, id, &amount, model.PaymentCard); !IsValidation(err) {
		t.Fatalf("expected ValidationError completing twice, got %v", err)
	}
}

func TestAvailableSlots_ClosedDateIsEmptyNotError(t *testing.T) {
	svc := newService(newFakeStore())
	slots, err := svc.AvailableSlots(context.Background(), "2024-06-16", "Ana", false)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	if len(slots) != 0 {
		t.Fatalf("closed Sunday should have no slots, got %v", slots)
	}
}

func TestAvailableSlots_ReflectsBookings(t *testing.T) {
	store := newFakeStore()
	svc := newService(store)
	book(t, svc, client, testDate, "Ana", BookItem{ChildName: "Lia", Slot: "09:30"})

	slots, err := svc.AvailableSlots(context.Background(), testDate, "Ana", false)
	if err != nil {
		t.Fatalf("AvailableSlots failed: %v", err)
	}
	for _, s := range slots {
		if s == "09:30" {
			t.Fatal("booked slot still offered")
		}
	}
}
