package model

import (
	"fmt"
	"time"
)

const (
	StatusScheduled = "scheduled"
	StatusCompleted = "completed"
)

// Payment methods recorded by an admin when completing an appointment.
// Values match what the salon reports on (card machine, Pix, cash).
const (
	PaymentCard = "cartao"
	PaymentPix  = "pix"
	PaymentCash = "dinheiro"
)

const (
	DateLayout = "2006-01-02"
	SlotLayout = "15:04"
)

// Appointment is one scheduled service for one child. Date and Slot are kept
// as catalog strings; StartsAt is the derived salon-local instant used for
// ordering and the completion sweep.
type Appointment struct {
	ID            string
	Date          string
	Slot          string
	Service       string
	Staff         string
	ChildName     string
	UserID        string
	Status        string
	StartsAt      time.Time
	Amount        *float64
	PaymentMethod string
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DayBlock marks a whole date as unbookable. Empty Staff means salon-wide.
type DayBlock struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Staff string `json:"staff,omitempty"`
}

// TimeBlock marks a single slot as unbookable. Empty Staff means salon-wide.
type TimeBlock struct {
	ID    string `json:"id"`
	Date  string `json:"date"`
	Slot  string `json:"slot"`
	Staff string `json:"staff,omitempty"`
}

// StartsAt resolves a (date, slot) pair to an instant in the salon timezone.
func StartsAt(date, slot string, loc *time.Location) (time.Time, error) {
	d, err := time.ParseInLocation(DateLayout, date, loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q: %w", date, err)
	}
	c, err := time.Parse(SlotLayout, slot)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid slot %q: %w", slot, err)
	}
	return time.Date(d.Year(), d.Month(), d.Day(), c.Hour(), c.Minute(), 0, 0, loc), nil
}
