// Package handlers is the HTTP surface of the booking service. Handlers
// decode, pull the actor from the JWT claims, delegate to the booking
// service and map its errors onto statuses; no business rules live here.
package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"

	"github.com/fridakids/salon-api/libs/auth"
	"github.com/fridakids/salon-api/services/booking-service/internal/booking"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
)

type BookingHandler struct {
	svc    *booking.Service
	logger *slog.Logger
}

func NewBookingHandler(svc *booking.Service, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{svc: svc, logger: logger}
}

func actorFrom(r *http.Request) (booking.Actor, bool) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		return booking.Actor{}, false
	}
	return booking.Actor{
		UserID: claims.Sub,
		Name:   claims.Name,
		Email:  claims.Email,
		Admin:  claims.IsAdmin(),
	}, true
}

type bookItemRequest struct {
	ChildName string `json:"child_name"`
	Slot      string `json:"slot"`
}

type createBookingRequest struct {
	Date    string            `json:"date"`
	Staff   string            `json:"staff"`
	Service string            `json:"service"`
	Items   []bookItemRequest `json:"items"`
}

type appointmentItem struct {
	ID            string   `json:"id"`
	Date          string   `json:"date"`
	Slot          string   `json:"slot"`
	Service       string   `json:"service"`
	Staff         string   `json:"staff"`
	ChildName     string   `json:"child_name"`
	Status        string   `json:"status"`
	Amount        *float64 `json:"amount,omitempty"`
	PaymentMethod string   `json:"payment_method,omitempty"`
}

func toItem(a model.Appointment) appointmentItem {
	return appointmentItem{
		ID:            a.ID,
		Date:          a.Date,
		Slot:          a.Slot,
		Service:       a.Service,
		Staff:         a.Staff,
		ChildName:     a.ChildName,
		Status:        a.Status,
		Amount:        a.Amount,
		PaymentMethod: a.PaymentMethod,
	}
}

// Create books one or more appointments in a single atomic batch.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	items := make([]booking.BookItem, 0, len(req.Items))
	for _, it := range req.Items {
		items = append(items, booking.BookItem{ChildName: it.ChildName, Slot: it.Slot})
	}
	created, err := h.svc.Book(r.Context(), actor, booking.BookRequest{
		Date:    req.Date,
		Staff:   req.Staff,
		Service: req.Service,
		Items:   items,
	})
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}

	out := make([]appointmentItem, 0, len(created))
	for _, a := range created {
		out = append(out, toItem(a))
	}
	writeJSON(w, http.StatusCreated, map[string]any{"appointments": out})
}

// ListMine returns the caller's own appointments.
func (h *BookingHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	appts, err := h.svc.ListMine(r.Context(), actor.UserID)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	out := make([]appointmentItem, 0, len(appts))
	for _, a := range appts {
		out = append(out, toItem(a))
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointments": out})
}

type updateBookingRequest struct {
	ID        string `json:"id"`
	Date      string `json:"date"`
	Slot      string `json:"slot"`
	Staff     string `json:"staff"`
	Service   string `json:"service"`
	ChildName string `json:"child_name"`
}

func (h *BookingHandler) Update(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req updateBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	updated, err := h.svc.Edit(r.Context(), actor, booking.EditRequest{
		ID:        req.ID,
		Date:      req.Date,
		Slot:      req.Slot,
		Staff:     req.Staff,
		Service:   req.Service,
		ChildName: req.ChildName,
	})
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"appointment": toItem(updated)})
}

type cancelBookingRequest struct {
	ID string `json:"id"`
}

func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req cancelBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	if err := h.svc.Cancel(r.Context(), actor, req.ID); err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": "cancelled"})
}

// Slots answers GET /api/v1/slots?date=YYYY-MM-DD&staff=Name.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	date := strings.TrimSpace(r.URL.Query().Get("date"))
	staff := strings.TrimSpace(r.URL.Query().Get("staff"))
	slots, err := h.svc.AvailableSlots(r.Context(), date, staff, actor.Admin)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": date, "staff": staff, "slots": slots})
}
