package handlers

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/fridakids/salon-api/services/booking-service/internal/booking"
	"github.com/fridakids/salon-api/services/booking-service/internal/catalog"
	"github.com/fridakids/salon-api/services/booking-service/internal/model"
	"github.com/fridakids/salon-api/services/booking-service/internal/policy"
)

// BlockStore is the slice of the repository the admin handler needs to
// manage day and time blocks.
type BlockStore interface {
	DayBlocks(ctx context.Context, date string) ([]model.DayBlock, error)
	TimeBlocks(ctx context.Context, date string) ([]model.TimeBlock, error)
	AddDayBlock(ctx context.Context, date, staff string) error
	RemoveDayBlock(ctx context.Context, date, staff string) error
	AddTimeBlock(ctx context.Context, date, slot, staff string) error
	RemoveTimeBlock(ctx context.Context, date, slot, staff string) error
}

// AdminHandler serves the salon owner's endpoints. Routes are mounted
// behind auth.RequireAdmin, so handlers can assume an admin caller.
type AdminHandler struct {
	svc    *booking.Service
	blocks BlockStore
	cat    catalog.Catalog
	rules  policy.Rules
	logger *slog.Logger
}

func NewAdminHandler(svc *booking.Service, blocks BlockStore, cat catalog.Catalog, rules policy.Rules, logger *slog.Logger) *AdminHandler {
	return &AdminHandler{svc: svc, blocks: blocks, cat: cat, rules: rules, logger: logger}
}

type staffDay struct {
	Staff        string            `json:"staff"`
	Appointments []appointmentItem `json:"appointments"`
}

type dayResponse struct {
	Date          string             `json:"date"`
	Staff         []staffDay         `json:"staff"`
	Total         float64            `json:"total"`
	TotalByMethod map[string]float64 `json:"total_by_method"`
}

// Day answers GET /api/v1/admin/day?date=YYYY-MM-DD: every appointment on
// the date grouped per staff member, with revenue totals from completed
// appointments.
func (h *AdminHandler) Day(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	appts, err := h.svc.Day(r.Context(), date)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}

	resp := dayResponse{Date: date, TotalByMethod: map[string]float64{}}
	groups := make(map[string]int, len(h.rules.Staff))
	for _, name := range h.rules.Staff {
		groups[name] = len(resp.Staff)
		resp.Staff = append(resp.Staff, staffDay{Staff: name, Appointments: []appointmentItem{}})
	}
	// Appointments arrive sorted by staff then slot. Staff no longer on
	// the roster still get a group so nothing drops out of the view or
	// the totals.
	for _, a := range appts {
		idx, ok := groups[a.Staff]
		if !ok {
			idx = len(resp.Staff)
			groups[a.Staff] = idx
			resp.Staff = append(resp.Staff, staffDay{Staff: a.Staff, Appointments: []appointmentItem{}})
		}
		resp.Staff[idx].Appointments = append(resp.Staff[idx].Appointments, toItem(a))
		if a.Status == model.StatusCompleted && a.Amount != nil {
			resp.Total += *a.Amount
			method := a.PaymentMethod
			if method == "" {
				method = "outros"
			}
			resp.TotalByMethod[method] += *a.Amount
		}
	}
	writeJSON(w, http.StatusOK, resp)
}

type completeRequest struct {
	ID            string   `json:"id"`
	Amount        *float64 `json:"amount"`
	PaymentMethod string   `json:"payment_method"`
}

func (h *AdminHandler) Complete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	actor, ok := actorFrom(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}

	var req completeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	if err := h.svc.Complete(r.Context(), actor, req.ID, req.Amount, req.PaymentMethod); err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"status": model.StatusCompleted})
}

type blockRequest struct {
	Date  string `json:"date"`
	Slot  string `json:"slot"`
	Staff string `json:"staff"`
}

func (h *AdminHandler) validateBlock(req blockRequest, needSlot bool) (blockRequest, error) {
	req.Date = strings.TrimSpace(req.Date)
	req.Slot = strings.TrimSpace(req.Slot)
	req.Staff = strings.TrimSpace(req.Staff)

	if _, err := time.Parse(model.DateLayout, req.Date); err != nil {
		return req, &booking.ValidationError{Msg: "data inválida"}
	}
	// Empty staff means the whole salon.
	if req.Staff != "" {
		if err := h.rules.CheckStaff(req.Staff); err != nil {
			return req, &booking.ValidationError{Msg: err.Error()}
		}
	}
	if needSlot && !h.cat.Contains(req.Slot, true) {
		return req, &booking.ValidationError{Msg: "horário inválido"}
	}
	return req, nil
}

func (h *AdminHandler) blockEndpoint(needSlot bool, apply func(context.Context, blockRequest) error) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
			return
		}
		var req blockRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid json body", http.StatusBadRequest)
			return
		}
		req, err := h.validateBlock(req, needSlot)
		if err != nil {
			writeBookingError(w, h.logger, err)
			return
		}
		if err := apply(r.Context(), req); err != nil {
			writeBookingError(w, h.logger, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"status": "ok"})
	}
}

func (h *AdminHandler) AddDayBlock() http.HandlerFunc {
	return h.blockEndpoint(false, func(ctx context.Context, req blockRequest) error {
		return h.blocks.AddDayBlock(ctx, req.Date, req.Staff)
	})
}

func (h *AdminHandler) RemoveDayBlock() http.HandlerFunc {
	return h.blockEndpoint(false, func(ctx context.Context, req blockRequest) error {
		return h.blocks.RemoveDayBlock(ctx, req.Date, req.Staff)
	})
}

func (h *AdminHandler) AddTimeBlock() http.HandlerFunc {
	return h.blockEndpoint(true, func(ctx context.Context, req blockRequest) error {
		return h.blocks.AddTimeBlock(ctx, req.Date, req.Slot, req.Staff)
	})
}

func (h *AdminHandler) RemoveTimeBlock() http.HandlerFunc {
	return h.blockEndpoint(true, func(ctx context.Context, req blockRequest) error {
		return h.blocks.RemoveTimeBlock(ctx, req.Date, req.Slot, req.Staff)
	})
}

type blocksResponse struct {
	Date       string            `json:"date"`
	DayBlocks  []model.DayBlock  `json:"day_blocks"`
	TimeBlocks []model.TimeBlock `json:"time_blocks"`
}

// ListBlocks answers GET /api/v1/admin/blocks?date=YYYY-MM-DD.
func (h *AdminHandler) ListBlocks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	date := strings.TrimSpace(r.URL.Query().Get("date"))
	if _, err := time.Parse(model.DateLayout, date); err != nil {
		writeBookingError(w, h.logger, &booking.ValidationError{Msg: "data inválida"})
		return
	}
	dayBlocks, err := h.blocks.DayBlocks(r.Context(), date)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	timeBlocks, err := h.blocks.TimeBlocks(r.Context(), date)
	if err != nil {
		writeBookingError(w, h.logger, err)
		return
	}
	if dayBlocks == nil {
		dayBlocks = []model.DayBlock{}
	}
	if timeBlocks == nil {
		timeBlocks = []model.TimeBlock{}
	}
	writeJSON(w, http.StatusOK, blocksResponse{Date: date, DayBlocks: dayBlocks, TimeBlocks: timeBlocks})
}
