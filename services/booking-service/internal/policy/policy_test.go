package policy

import (
	"testing"
	"time"
)

var now = time.Date(2024, 6, 12, 10, 0, 0, 0, time.UTC) // a Wednesday

func rules() Rules { return Default(time.UTC) }

func TestCheckDate_PastDateRejected(t *testing.T) {
	if err := rules().CheckDate("2024-06-11", false, now); err == nil {
		t.Fatal("expected past date to be rejected")
	}
	if err := rules().CheckDate("2024-06-12", false, now); err != nil {
		t.Fatalf("today should be bookable: %v", err)
	}
}

func TestCheckDate_ClosedWeekdays(t *testing.T) {
	// 2024-06-16 is a Sunday, 2024-06-17 a Monday.
	for _, date := range []string{"2024-06-16", "2024-06-17"} {
		if err := rules().CheckDate(date, false, now); err == nil {
			t.Fatalf("expected %s to be rejected for clients", date)
		}
		if err := rules().CheckDate(date, true, now); err != nil {
			t.Fatalf("admin should bypass closed weekday %s: %v", date, err)
		}
	}

	r := rules()
	r.AdminBypassWeekday = false
	if err := r.CheckDate("2024-06-16", true, now); err == nil {
		t.Fatal("with bypass off, admins are bound by closed weekdays too")
	}
}

func TestCheckDate_CurrentYearOnly(t *testing.T) {
	if err := rules().CheckDate("2025-06-13", false, now); err == nil {
		t.Fatal("expected next-year date to be rejected for clients")
	}
	if err := rules().CheckDate("2025-06-13", true, now); err != nil {
		t.Fatalf("admins are not bound by the year guard: %v", err)
	}

	r := rules()
	r.CurrentYearOnly = false
	if err := r.CheckDate("2025-06-13", false, now); err != nil {
		t.Fatalf("with the guard off, next year is bookable: %v", err)
	}
}

func TestCheckDate_Malformed(t *testing.T) {
	for _, date := range []string{"", "13/06/2024", "2024-13-40"} {
		if err := rules().CheckDate(date, false, now); err == nil {
			t.Fatalf("expected %q to be rejected", date)
		}
	}
}

func TestCheckStaff(t *testing.T) {
	if err := rules().CheckStaff(" Ana "); err != nil {
		t.Fatalf("known staff with padding should pass: %v", err)
	}
	if err := rules().CheckStaff("Carlos"); err == nil {
		t.Fatal("unknown staff should be rejected")
	}
}

func TestCheckService(t *testing.T) {
	if err := rules().CheckService("Corte Infantil"); err != nil {
		t.Fatalf("known service should pass: %v", err)
	}
	if err := rules().CheckService(""); err == nil {
		t.Fatal("empty service should be rejected")
	}
	if err := rules().CheckService("Luzes"); err == nil {
		t.Fatal("unknown service should be rejected")
	}

	open := rules()
	open.Services = nil
	if err := open.CheckService("Qualquer coisa"); err != nil {
		t.Fatalf("empty service list accepts any non-empty name: %v", err)
	}
}
