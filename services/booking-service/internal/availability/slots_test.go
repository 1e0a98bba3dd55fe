package availability

import (
	"reflect"
	"testing"
	"time"

	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

var testCatalog = catalog.New([]string{"09:00", "09:30", "10:00"}, []string{"19:00"})

func scheduled(date, slot, staff string) model.Appointment {
	return model.Appointment{Date: date, Slot: slot, Staff: staff, Status: model.StatusScheduled}
}

func TestAvailableSlots_ExcludesBookedSlotForSameStaff(t *testing.T) {
	got := AvailableSlots(testCatalog, Request{
		Date:   "2024-06-11",
		Staff:  "Ana",
		Booked: []model.Appointment{scheduled("2024-06-11", "09:30", "Ana")},
		Now:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	want := []string{"09:00", "10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAvailableSlots_OtherStaffBookingDoesNotBlock(t *testing.T) {
	got := AvailableSlots(testCatalog, Request{
		Date:   "2024-06-11",
		Staff:  "Frida",
		Booked: []model.Appointment{scheduled("2024-06-11", "09:30", "Ana")},
		Now:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	want := []string{"09:00", "09:30", "10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAvailableSlots_TrimsStoredSlots(t *testing.T) {
	// Stored slots have carried stray whitespace; a padded slot must still
	// count as taken.
	got := AvailableSlots(testCatalog, Request{
		Date:   "2024-06-11",
		Staff:  "Ana",
		Booked: []model.Appointment{scheduled("2024-06-11", " 09:30 ", "Ana ")},
		Now:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	want := []string{"09:00", "10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAvailableSlots_CompletedAppointmentDoesNotBlock(t *testing.T) {
	appt := scheduled("2024-06-11", "09:30", "Ana")
	appt.Status = model.StatusCompleted
	got := AvailableSlots(testCatalog, Request{
		Date:   "2024-06-11",
		Staff:  "Ana",
		Booked: []model.Appointment{appt},
		Now:    time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	if len(got) != 3 {
		t.Fatalf("expected all 3 slots, got %v", got)
	}
}

func TestAvailableSlots_SalonWideDayBlock(t *testing.T) {
	req := Request{
		Date:      "2024-06-11",
		Staff:     "Ana",
		DayBlocks: []model.DayBlock{{Date: "2024-06-11"}},
		Now:       time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	if got := AvailableSlots(testCatalog, req); len(got) != 0 {
		t.Fatalf("salon-wide block should empty the day for clients, got %v", got)
	}

	req.Admin = true
	if got := AvailableSlots(testCatalog, req); len(got) == 0 {
		t.Fatal("salon-wide block should not suppress slots for admins")
	}
}

func TestAvailableSlots_StaffScopedDayBlock(t *testing.T) {
	req := Request{
		Date:      "2024-06-11",
		Staff:     "Ana",
		DayBlocks: []model.DayBlock{{Date: "2024-06-11", Staff: "Ana"}},
		Now:       time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	}
	if got := AvailableSlots(testCatalog, req); len(got) != 0 {
		t.Fatalf("staff-scoped block should empty Ana's day, got %v", got)
	}

	// Scoped blocks apply to admins too.
	req.Admin = true
	if got := AvailableSlots(testCatalog, req); len(got) != 0 {
		t.Fatalf("staff-scoped block should apply to admins, got %v", got)
	}

	req.Admin = false
	req.Staff = "Frida"
	if got := AvailableSlots(testCatalog, req); len(got) != 3 {
		t.Fatalf("block scoped to Ana should not affect Frida, got %v", got)
	}
}

func TestAvailableSlots_TimeBlocks(t *testing.T) {
	got := AvailableSlots(testCatalog, Request{
		Date:  "2024-06-11",
		Staff: "Ana",
		TimeBlocks: []model.TimeBlock{
			{Date: "2024-06-11", Slot: "09:00", Staff: "Ana"},
			{Date: "2024-06-11", Slot: "10:00"}, // salon-wide
			{Date: "2024-06-11", Slot: "09:30", Staff: "Frida"},
		},
		Now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	want := []string{"09:30"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAvailableSlots_SameDayKeepsOnlyStrictlyLaterSlots(t *testing.T) {
	got := AvailableSlots(testCatalog, Request{
		Date:  "2024-06-11",
		Staff: "Ana",
		Now:   time.Date(2024, 6, 11, 9, 30, 0, 0, time.UTC),
	})
	// 09:30 equals now, so it is out too.
	want := []string{"10:00"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestAvailableSlots_AdminSeesExtendedCatalog(t *testing.T) {
	now := time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC)
	client := AvailableSlots(testCatalog, Request{Date: "2024-06-11", Staff: "Ana", Now: now})
	admin := AvailableSlots(testCatalog, Request{Date: "2024-06-11", Staff: "Ana", Admin: true, Now: now})

	if len(client) != 3 {
		t.Fatalf("client should see 3 slots, got %v", client)
	}
	want := []string{"09:00", "09:30", "10:00", "19:00"}
	if !reflect.DeepEqual(admin, want) {
		t.Fatalf("admin should see extended catalog in order, got %v", admin)
	}
}

func TestAvailableSlots_FullyBookedDayIsEmptyNotError(t *testing.T) {
	got := AvailableSlots(testCatalog, Request{
		Date:  "2024-06-11",
		Staff: "Ana",
		Booked: []model.Appointment{
			scheduled("2024-06-11", "09:00", "Ana"),
			scheduled("2024-06-11", "09:30", "Ana"),
			scheduled("2024-06-11", "10:00", "Ana"),
		},
		Now: time.Date(2024, 6, 1, 8, 0, 0, 0, time.UTC),
	})
	if len(got) != 0 {
		t.Fatalf("expected empty slot list, got %v", got)
	}
}
