package booking

import (
	"errors"
	"fmt"
	"strings"
)

// ErrSlotTaken is returned by Tx.Insert when the scheduled-slot unique index
// rejects the row. The service wraps it into a ConflictError.
var ErrSlotTaken = errors.New("slot already taken")

var (
	ErrNotFound  = errors.New("appointment not found")
	ErrForbidden = errors.New("appointment belongs to another user")
)

// ValidationError means the request itself is malformed or breaks a salon
// rule. Messages are user-facing (pt-BR) and safe to return verbatim.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

func validationf(format string, args ...any) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// ConflictError means one or more requested slots are not available. Slots
// lists the offending ones so a multi-child request can tell the client
// exactly which child's slot to change.
type ConflictError struct {
	Slots []string
}

func (e *ConflictError) Error() string {
	return "horário indisponível: " + strings.Join(e.Slots, ", ")
}

func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func IsConflict(err error) bool {
	var ce *ConflictError
	return errors.As(err, &ce)
}
