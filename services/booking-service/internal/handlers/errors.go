package handlers

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/fridakids/salon-api/services/booking-service/internal/booking"
)

type errorResponse struct {
	Error            string   `json:"error"`
	ConflictingSlots []string `json:"conflicting_slots,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// writeBookingError maps the booking error taxonomy onto HTTP statuses.
// Validation problems are 422, slot conflicts 409 with the offending slots
// listed, and anything unexpected a 503 so clients know to retry.
func writeBookingError(w http.ResponseWriter, logger *slog.Logger, err error) {
	var ve *booking.ValidationError
	if errors.As(err, &ve) {
		writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: ve.Msg})
		return
	}
	var ce *booking.ConflictError
	if errors.As(err, &ce) {
		writeJSON(w, http.StatusConflict, errorResponse{
			Error:            "horário indisponível",
			ConflictingSlots: ce.Slots,
		})
		return
	}
	switch {
	case errors.Is(err, booking.ErrNotFound):
		writeJSON(w, http.StatusNotFound, errorResponse{Error: "agendamento não encontrado"})
	case errors.Is(err, booking.ErrForbidden):
		writeJSON(w, http.StatusForbidden, errorResponse{Error: "acesso negado"})
	default:
		logger.Error("booking request failed", "err", err)
		writeJSON(w, http.StatusServiceUnavailable, errorResponse{Error: "serviço temporariamente indisponível"})
	}
}
