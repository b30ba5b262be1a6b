package booking

import (
	"errors"
	"fmt"

	"github.com/google/uuid"

	"apptbook/internal/domain"
	"apptbook/internal/store"
)

var (
	ErrInactiveDay         = errors.New("inactive day")
	ErrOutsideHours        = errors.New("outside working hours")
	ErrSlotConflict        = errors.New("slot conflict")
	ErrAlreadyTerminal     = errors.New("appointment already completed or cancelled")
	ErrInvalidDuration     = errors.New("invalid duration")
	ErrInvalidInput        = errors.New("invalid input")
	ErrNotFound            = store.ErrNotFound
	ErrIdempotencyConflict = store.ErrIdempotencyConflict
	ErrInvalidAmount       = domain.ErrInvalidAmount
	ErrOverpayment         = domain.ErrOverpayment
)

// ValidationError is a rejected request. It unwraps to one of the sentinel
// errors above so callers can branch with errors.Is.
type ValidationError struct {
	Kind error
	msg  string
}

func (e *ValidationError) Error() string {
	return e.msg
}

func (e *ValidationError) Unwrap() error {
	return e.Kind
}

func validationError(kind error, format string, args ...any) error {
	return &ValidationError{Kind: kind, msg: fmt.Sprintf(format, args...)}
}

// ConflictError reports the appointment that occupies the requested span.
type ConflictError struct {
	ConflictingID uuid.UUID
	Date          string
	Start         domain.Clock
	End           domain.Clock
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("slot taken by appointment %s on %s %s-%s", e.ConflictingID, e.Date, e.Start, e.End)
}

func (e *ConflictError) Unwrap() error {
	return ErrSlotConflict
}

func conflictWith(a domain.Appointment) error {
	return &ConflictError{
		ConflictingID: a.ID,
		Date:          domain.FormatDate(a.Date),
		Start:         a.StartTime,
		End:           a.EndTime(),
	}
}

// ErrBusy means an appointment kept moving to other dates while its locks
// were being taken. The caller may retry.
var ErrBusy = errors.New("appointment changed concurrently")
