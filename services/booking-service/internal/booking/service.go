// Package booking implements the salon's appointment core: availability,
// conflict-guarded creation (including multi-child batches), edits,
// cancellation and admin completion. All writes go through a single
// transaction per request and emit outbox events for the notification
// service.
package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/fridakids/salon-api/libs/outbox"
	"github.com/fridakids/salon-api/services/booking-service/internal/availability"
	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
	"github.com/fridakids/salon-api/services/booking-service/internal/policy"
)

type Service struct {
	store Store
	cat   catalog.Catalog
	rules policy.Rules
	now   func() time.Time
}

// New wires the booking service. now may be nil outside tests.
func New(store Store, cat catalog.Catalog, rules policy.Rules, now func() time.Time) *Service {
	if now == nil {
		now = time.Now
	}
	return &Service{store: store, cat: cat, rules: rules, now: now}
}

// Actor identifies the authenticated caller. Name and Email come from the
// JWT claims and ride along into event payloads so the notification service
// never needs the users table.
type Actor struct {
	UserID string
	Name   string
	Email  string
	Admin  bool
}

type BookItem struct {
	ChildName string
	Slot      string
}

type BookRequest struct {
	Date    string
	Staff   string
	Service string
	Items   []BookItem
}

// Book creates one appointment per item, all-or-nothing. When any slot is
// unavailable the whole batch is rejected with a ConflictError naming the
// offending slots.
func (s *Service) Book(ctx context.Context, actor Actor, req BookRequest) ([]model.Appointment, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Staff = strings.TrimSpace(req.Staff)
	req.Service = strings.TrimSpace(req.Service)

	if err := s.validateHeader(req.Date, req.Staff, req.Service, actor.Admin); err != nil {
		return nil, err
	}
	if len(req.Items) == 0 {
		return nil, validationf("informe ao menos uma criança")
	}
	seen := make(map[string]struct{}, len(req.Items))
	for i := range req.Items {
		req.Items[i].ChildName = strings.TrimSpace(req.Items[i].ChildName)
		req.Items[i].Slot = strings.TrimSpace(req.Items[i].Slot)
		it := req.Items[i]
		if it.ChildName == "" {
			return nil, validationf("nome da criança é obrigatório")
		}
		if !s.cat.Contains(it.Slot, actor.Admin) {
			return nil, validationf("horário inválido: %q", it.Slot)
		}
		if _, dup := seen[it.Slot]; dup {
			return nil, &ConflictError{Slots: []string{it.Slot}}
		}
		seen[it.Slot] = struct{}{}
	}

	slots := make([]string, 0, len(req.Items))
	for _, it := range req.Items {
		slots = append(slots, it.Slot)
	}
	if err := s.checkDayBlocks(ctx, req.Date, req.Staff, actor.Admin, slots); err != nil {
		return nil, err
	}
	timeBlocks, err := s.store.TimeBlocks(ctx, req.Date)
	if err != nil {
		return nil, fmt.Errorf("load time blocks: %w", err)
	}

	now := s.now().In(s.rules.Location)
	created := make([]model.Appointment, 0, len(req.Items))

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		taken, err := tx.ScheduledSlots(ctx, req.Date, req.Staff, "")
		if err != nil {
			return fmt.Errorf("scheduled slots: %w", err)
		}
		if conflicts := s.conflictingSlots(req.Date, req.Staff, slots, taken, timeBlocks, now); len(conflicts) > 0 {
			return &ConflictError{Slots: conflicts}
		}

		for _, it := range req.Items {
			appt, err := s.newAppointment(actor.UserID, req, it, now)
			if err != nil {
				return err
			}
			if err := tx.Insert(ctx, appt); err != nil {
				if errors.Is(err, ErrSlotTaken) {
					return &ConflictError{Slots: []string{it.Slot}}
				}
				return fmt.Errorf("insert appointment: %w", err)
			}
			created = append(created, appt)
		}

		evt := AppointmentEvent{
			UserID:    actor.UserID,
			UserName:  actor.Name,
			UserEmail: actor.Email,
			Date:      req.Date,
			Staff:     req.Staff,
			Service:   req.Service,
		}
		for _, a := range created {
			evt.Items = append(evt.Items, EventItem{AppointmentID: a.ID, ChildName: a.ChildName, Slot: a.Slot})
		}
		return s.insertEvent(ctx, tx, EventBooked, created[0].ID, evt)
	})
	if err != nil {
		return nil, err
	}
	return created, nil
}

type EditRequest struct {
	ID        string
	Date      string
	Slot      string
	Staff     string
	Service   string
	ChildName string
}

// Edit replaces every editable field of a scheduled appointment. Completed
// appointments are immutable.
func (s *Service) Edit(ctx context.Context, actor Actor, req EditRequest) (model.Appointment, error) {
	req.ID = strings.TrimSpace(req.ID)
	req.Date = strings.TrimSpace(req.Date)
	req.Slot = strings.TrimSpace(req.Slot)
	req.Staff = strings.TrimSpace(req.Staff)
	req.Service = strings.TrimSpace(req.Service)
	req.ChildName = strings.TrimSpace(req.ChildName)

	if req.ID == "" {
		return model.Appointment{}, validationf("id é obrigatório")
	}
	if err := s.validateHeader(req.Date, req.Staff, req.Service, actor.Admin); err != nil {
		return model.Appointment{}, err
	}
	if req.ChildName == "" {
		return model.Appointment{}, validationf("nome da criança é obrigatório")
	}
	if !s.cat.Contains(req.Slot, actor.Admin) {
		return model.Appointment{}, validationf("horário inválido: %q", req.Slot)
	}
	if err := s.checkDayBlocks(ctx, req.Date, req.Staff, actor.Admin, []string{req.Slot}); err != nil {
		return model.Appointment{}, err
	}
	timeBlocks, err := s.store.TimeBlocks(ctx, req.Date)
	if err != nil {
		return model.Appointment{}, fmt.Errorf("load time blocks: %w", err)
	}

	now := s.now().In(s.rules.Location)
	var updated model.Appointment

	err = s.store.WithinTx(ctx, func(tx Tx) error {
		appt, err := tx.Get(ctx, req.ID)
		if err != nil {
			return err
		}
		if !actor.Admin && appt.UserID != actor.UserID {
			return ErrForbidden
		}
		if appt.Status != model.StatusScheduled {
			return validationf("agendamento concluído não pode ser alterado")
		}

		taken, err := tx.ScheduledSlots(ctx, req.Date, req.Staff, appt.ID)
		if err != nil {
			return fmt.Errorf("scheduled slots: %w", err)
		}
		if conflicts := s.conflictingSlots(req.Date, req.Staff, []string{req.Slot}, taken, timeBlocks, now); len(conflicts) > 0 {
			return &ConflictError{Slots: conflicts}
		}

		prev := EventSnapshot{
			Date:      appt.Date,
			Slot:      appt.Slot,
			Staff:     appt.Staff,
			Service:   appt.Service,
			ChildName: appt.ChildName,
		}

		startsAt, err := model.StartsAt(req.Date, req.Slot, s.rules.Location)
		if err != nil {
			return validationf("data ou horário inválido")
		}
		appt.Date = req.Date
		appt.Slot = req.Slot
		appt.Staff = req.Staff
		appt.Service = req.Service
		appt.ChildName = req.ChildName
		appt.StartsAt = startsAt
		appt.UpdatedAt = now

		if err := tx.Update(ctx, appt); err != nil {
			if errors.Is(err, ErrSlotTaken) {
				return &ConflictError{Slots: []string{req.Slot}}
			}
			return fmt.Errorf("update appointment: %w", err)
		}
		updated = appt

		evt := AppointmentEvent{
			UserID:    actor.UserID,
			UserName:  actor.Name,
			UserEmail: actor.Email,
			Date:      appt.Date,
			Staff:     appt.Staff,
			Service:   appt.Service,
			Items:     []EventItem{{AppointmentID: appt.ID, ChildName: appt.ChildName, Slot: appt.Slot}},
			Previous:  &prev,
		}
		return s.insertEvent(ctx, tx, EventEdited, appt.ID, evt)
	})
	if err != nil {
		return model.Appointment{}, err
	}
	return updated, nil
}

// Cancel deletes a scheduled appointment. Completed appointments stay on the
// books as revenue history.
func (s *Service) Cancel(ctx context.Context, actor Actor, id string) error {
	id = strings.TrimSpace(id)
	if id == "" {
		return validationf("id é obrigatório")
	}

	return s.store.WithinTx(ctx, func(tx Tx) error {
		appt, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if !actor.Admin && appt.UserID != actor.UserID {
			return ErrForbidden
		}
		if appt.Status != model.StatusScheduled {
			return validationf("agendamento concluído não pode ser cancelado")
		}
		if err := tx.Delete(ctx, id); err != nil {
			return fmt.Errorf("delete appointment: %w", err)
		}

		evt := AppointmentEvent{
			UserID:    actor.UserID,
			UserName:  actor.Name,
			UserEmail: actor.Email,
			Date:      appt.Date,
			Staff:     appt.Staff,
			Service:   appt.Service,
			Items:     []EventItem{{AppointmentID: appt.ID, ChildName: appt.ChildName, Slot: appt.Slot}},
		}
		return s.insertEvent(ctx, tx, EventCancelled, appt.ID, evt)
	})
}

// Complete marks an appointment done and records how it was paid. Admin only.
func (s *Service) Complete(ctx context.Context, actor Actor, id string, amount *float64, paymentMethod string) error {
	if !actor.Admin {
		return ErrForbidden
	}
	id = strings.TrimSpace(id)
	if id == "" {
		return validationf("id é obrigatório")
	}
	paymentMethod = strings.TrimSpace(paymentMethod)
	if paymentMethod != "" {
		switch paymentMethod {
		case model.PaymentCard, model.PaymentPix, model.PaymentCash:
		default:
			return validationf("forma de pagamento inválida: %q", paymentMethod)
		}
	}
	if amount != nil && *amount < 0 {
		return validationf("valor não pode ser negativo")
	}

	return s.store.WithinTx(ctx, func(tx Tx) error {
		appt, err := tx.Get(ctx, id)
		if err != nil {
			return err
		}
		if appt.Status == model.StatusCompleted {
			return validationf("agendamento já concluído")
		}
		return tx.Complete(ctx, id, amount, paymentMethod)
	})
}

// ListMine returns the caller's appointments, upcoming first.
func (s *Service) ListMine(ctx context.Context, userID string) ([]model.Appointment, error) {
	return s.store.ListByUser(ctx, userID)
}

// Day returns every appointment on a date, sorted by staff then slot, for
// the admin day view.
func (s *Service) Day(ctx context.Context, date string) ([]model.Appointment, error) {
	date = strings.TrimSpace(date)
	if _, err := time.ParseInLocation(model.DateLayout, date, s.rules.Location); err != nil {
		return nil, validationf("data inválida: %q", date)
	}
	appts, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, err
	}
	sort.SliceStable(appts, func(i, j int) bool {
		if appts[i].Staff != appts[j].Staff {
			return appts[i].Staff < appts[j].Staff
		}
		return catalog.Minutes(appts[i].Slot) < catalog.Minutes(appts[j].Slot)
	})
	return appts, nil
}

// AvailableSlots reports the offerable slots for a (date, staff) pair. A
// closed or past date yields an empty list, not an error.
func (s *Service) AvailableSlots(ctx context.Context, date, staff string, admin bool) ([]string, error) {
	date = strings.TrimSpace(date)
	staff = strings.TrimSpace(staff)
	if _, err := time.ParseInLocation(model.DateLayout, date, s.rules.Location); err != nil {
		return nil, validationf("data inválida: %q", date)
	}
	if err := s.rules.CheckStaff(staff); err != nil {
		return nil, &ValidationError{Msg: err.Error()}
	}
	now := s.now().In(s.rules.Location)
	if err := s.rules.CheckDate(date, admin, now); err != nil {
		return []string{}, nil
	}

	booked, err := s.store.ListByDate(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load appointments: %w", err)
	}
	dayBlocks, err := s.store.DayBlocks(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load day blocks: %w", err)
	}
	timeBlocks, err := s.store.TimeBlocks(ctx, date)
	if err != nil {
		return nil, fmt.Errorf("load time blocks: %w", err)
	}

	slots := availability.AvailableSlots(s.cat, availability.Request{
		Date:       date,
		Staff:      staff,
		Admin:      admin,
		Booked:     booked,
		DayBlocks:  dayBlocks,
		TimeBlocks: timeBlocks,
		Now:        now,
	})
	if slots == nil {
		slots = []string{}
	}
	return slots, nil
}

func (s *Service) validateHeader(date, staff, service string, admin bool) error {
	if err := s.rules.CheckDate(date, admin, s.now().In(s.rules.Location)); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if err := s.rules.CheckStaff(staff); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	if err := s.rules.CheckService(service); err != nil {
		return &ValidationError{Msg: err.Error()}
	}
	return nil
}

// checkDayBlocks enforces whole-day closures at booking time. Staff-scoped
// blocks bind everyone including admins; salon-wide blocks bind admins only
// when the bypass knob is off.
func (s *Service) checkDayBlocks(ctx context.Context, date, staff string, admin bool, slots []string) error {
	blocks, err := s.store.DayBlocks(ctx, date)
	if err != nil {
		return fmt.Errorf("load day blocks: %w", err)
	}
	for _, b := range blocks {
		if b.Date != date {
			continue
		}
		blockStaff := strings.TrimSpace(b.Staff)
		if blockStaff == staff {
			return &ConflictError{Slots: slots}
		}
		if blockStaff == "" && !(admin && s.rules.AdminBypassDayBlock) {
			return &ConflictError{Slots: slots}
		}
	}
	return nil
}

// conflictingSlots returns the requested slots that are already taken,
// blocked or in the past on a same-day booking.
func (s *Service) conflictingSlots(date, staff string, requested []string, taken map[string]struct{}, timeBlocks []model.TimeBlock, now time.Time) []string {
	blocked := make(map[string]struct{})
	for _, b := range timeBlocks {
		if b.Date != date {
			continue
		}
		blockStaff := strings.TrimSpace(b.Staff)
		if blockStaff == "" || blockStaff == staff {
			blocked[strings.TrimSpace(b.Slot)] = struct{}{}
		}
	}

	occupied := make(map[string]struct{}, len(taken))
	for slot := range taken {
		occupied[strings.TrimSpace(slot)] = struct{}{}
	}

	sameDay := date == now.Format(model.DateLayout)
	nowMinutes := now.Hour()*60 + now.Minute()

	var conflicts []string
	for _, slot := range requested {
		if _, ok := occupied[slot]; ok {
			conflicts = append(conflicts, slot)
			continue
		}
		if _, ok := blocked[slot]; ok {
			conflicts = append(conflicts, slot)
			continue
		}
		if sameDay && catalog.Minutes(slot) <= nowMinutes {
			conflicts = append(conflicts, slot)
		}
	}
	return conflicts
}

func (s *Service) newAppointment(userID string, req BookRequest, it BookItem, now time.Time) (model.Appointment, error) {
	startsAt, err := model.StartsAt(req.Date, it.Slot, s.rules.Location)
	if err != nil {
		return model.Appointment{}, validationf("data ou horário inválido")
	}
	return model.Appointment{
		ID:        uuid.NewString(),
		Date:      req.Date,
		Slot:      it.Slot,
		Service:   req.Service,
		Staff:     req.Staff,
		ChildName: it.ChildName,
		UserID:    userID,
		Status:    model.StatusScheduled,
		StartsAt:  startsAt,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (s *Service) insertEvent(ctx context.Context, tx Tx, eventType, aggregateID string, payload AppointmentEvent) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	return tx.InsertEvent(ctx, outbox.Event{
		AggregateType: "appointment",
		AggregateID:   aggregateID,
		EventType:     eventType,
		Payload:       body,
	})
}
