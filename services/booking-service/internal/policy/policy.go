// Package policy holds the salon's booking rules that are configuration, not
// code: which weekdays the salon is closed, how far out clients may book, who
// works here and what they sell.
package policy

import (
	"fmt"
	"strings"
	"time"

	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

// Rules is the knob set for date, staff and service validation. The zero
// value rejects everything; build one with Default and override from config.
type Rules struct {
	// ClosedWeekdays are days the salon never opens. Admins may book on
	// them when AdminBypassWeekday is set.
	ClosedWeekdays map[time.Weekday]bool

	// CurrentYearOnly rejects client bookings dated outside the current
	// salon-local year.
	CurrentYearOnly bool

	// AdminBypassWeekday lets admins book on closed weekdays (walk-ins,
	// special events).
	AdminBypassWeekday bool

	// AdminBypassDayBlock lets admins book through a salon-wide day
	// block. Staff-scoped blocks are never bypassed.
	AdminBypassDayBlock bool

	// Location is the salon's local timezone, used for "today" and year
	// boundaries.
	Location *time.Location

	Staff    []string
	Services []string
}

func Default(loc *time.Location) Rules {
	if loc == nil {
		loc = time.UTC
	}
	return Rules{
		ClosedWeekdays: map[time.Weekday]bool{
			time.Sunday: true,
			time.Monday: true,
		},
		CurrentYearOnly:    true,
		AdminBypassWeekday: true,
		Location:           loc,
		Staff:              []string{"Frida", "Ana"},
		Services: []string{
			"Corte Infantil",
			"Corte + Penteado",
			"Penteado",
			"Hidratação",
			"Franja",
		},
	}
}

// CheckDate validates a booking date against the calendar rules. now must be
// salon-local. It does not consult day blocks; those come from storage and
// are the caller's concern.
func (r Rules) CheckDate(date string, admin bool, now time.Time) error {
	d, err := time.ParseInLocation(model.DateLayout, date, r.Location)
	if err != nil {
		return fmt.Errorf("data inválida: %q", date)
	}
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, r.Location)
	if d.Before(today) {
		return fmt.Errorf("não é possível agendar em datas passadas")
	}
	if r.CurrentYearOnly && !admin && d.Year() != now.Year() {
		return fmt.Errorf("agendamentos apenas para o ano atual")
	}
	if r.ClosedWeekdays[d.Weekday()] && !(admin && r.AdminBypassWeekday) {
		return fmt.Errorf("o salão está fechado neste dia da semana")
	}
	return nil
}

func (r Rules) CheckStaff(staff string) error {
	staff = strings.TrimSpace(staff)
	for _, s := range r.Staff {
		if s == staff {
			return nil
		}
	}
	return fmt.Errorf("profissional desconhecida: %q", staff)
}

func (r Rules) CheckService(service string) error {
	service = strings.TrimSpace(service)
	if service == "" {
		return fmt.Errorf("serviço é obrigatório")
	}
	if len(r.Services) == 0 {
		return nil
	}
	for _, s := range r.Services {
		if s == service {
			return nil
		}
	}
	return fmt.Errorf("serviço desconhecido: %q", service)
}
