package availability

import (
	"strings"
	"time"

	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

// Request carries everything AvailableSlots needs to decide what is offerable
// for one (date, staff) pair. Booked, DayBlocks and TimeBlocks must already be
// filtered to the requested date (any staff); Now is salon-local.
type Request struct {
	Date       string
	Staff      string
	Admin      bool
	Booked     []model.Appointment
	DayBlocks  []model.DayBlock
	TimeBlocks []model.TimeBlock
	Now        time.Time
}

// AvailableSlots returns the offerable slots for the request, in catalog
// order. An empty result is a normal outcome (fully booked day), not an
// error. Pure function of its inputs.
//
// Slot comparison trims whitespace on both sides: stored slots have been
// inconsistent about trailing spaces historically, and a stray space must
// never make a taken slot look free.
func AvailableSlots(cat catalog.Catalog, req Request) []string {
	staff := strings.TrimSpace(req.Staff)

	for _, b := range req.DayBlocks {
		if b.Date != req.Date {
			continue
		}
		blockStaff := strings.TrimSpace(b.Staff)
		if blockStaff == staff {
			return nil
		}
		if blockStaff == "" && !req.Admin {
			return nil
		}
	}

	taken := make(map[string]struct{})
	for _, a := range req.Booked {
		if a.Date == req.Date && a.Status == model.StatusScheduled && strings.TrimSpace(a.Staff) == staff {
			taken[strings.TrimSpace(a.Slot)] = struct{}{}
		}
	}
	for _, b := range req.TimeBlocks {
		if b.Date != req.Date {
			continue
		}
		blockStaff := strings.TrimSpace(b.Staff)
		if blockStaff == "" || blockStaff == staff {
			taken[strings.TrimSpace(b.Slot)] = struct{}{}
		}
	}

	sameDay := req.Date == req.Now.Format(model.DateLayout)
	nowMinutes := req.Now.Hour()*60 + req.Now.Minute()

	var slots []string
	for _, slot := range cat.Slots(req.Admin) {
		if _, ok := taken[slot]; ok {
			continue
		}
		if sameDay && catalog.Minutes(slot) <= nowMinutes {
			continue
		}
		slots = append(slots, slot)
	}
	return slots
}
