package catalog

import (
	"strings"
	"time"
)

// Catalog is the ordered, duplicate-free set of bookable time-of-day slots.
// Catalog order defines display and tie-break order everywhere.
//
// The standard slots are offered to every client; the extended slots are
// after-hours and offered to admins only.
type Catalog struct {
	standard []string
	extended []string
}

func New(standard, extended []string) Catalog {
	std := normalize(standard)
	seen := make(map[string]struct{}, len(std))
	for _, s := range std {
		seen[s] = struct{}{}
	}
	var ext []string
	for _, s := range normalize(extended) {
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		ext = append(ext, s)
	}
	return Catalog{standard: std, extended: ext}
}

// Default returns the salon's slot grid: half-hourly 09:00-18:30, with
// 19:00-20:00 reserved for admin-booked after-hours appointments.
func Default() Catalog {
	var std []string
	for h := 9; h <= 18; h++ {
		std = append(std, clock(h, 0), clock(h, 30))
	}
	return New(std, []string{"19:00", "19:30", "20:00"})
}

// Slots returns a fresh copy of the offerable slots in catalog order.
func (c Catalog) Slots(admin bool) []string {
	out := make([]string, 0, len(c.standard)+len(c.extended))
	out = append(out, c.standard...)
	if admin {
		out = append(out, c.extended...)
	}
	return out
}

func (c Catalog) Contains(slot string, admin bool) bool {
	slot = strings.TrimSpace(slot)
	for _, s := range c.Slots(admin) {
		if s == slot {
			return true
		}
	}
	return false
}

// Minutes converts a slot string to minutes since midnight.
// Returns -1 for anything that is not a valid clock string.
func Minutes(slot string) int {
	t, err := time.Parse("15:04", strings.TrimSpace(slot))
	if err != nil {
		return -1
	}
	return t.Hour()*60 + t.Minute()
}

func normalize(slots []string) []string {
	seen := make(map[string]struct{}, len(slots))
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		s = strings.TrimSpace(s)
		if s == "" || Minutes(s) < 0 {
			continue
		}
		if _, dup := seen[s]; dup {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}

func clock(h, m int) string {
	return time.Date(0, 1, 1, h, m, 0, 0, time.UTC).Format("15:04")
}
