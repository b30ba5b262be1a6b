package rest

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/domain"
	"apptbook/internal/service/booking"
)

const maxBodyBytes = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code, details string) {
	writeJSON(w, status, ErrorResponse{Error: code, Details: details})
}

// validationCodes names the machine-readable error for each rejection kind.
var validationCodes = []struct {
	kind error
	code string
}{
	{booking.ErrInactiveDay, "inactive_day"},
	{booking.ErrOutsideHours, "outside_working_hours"},
	{booking.ErrInvalidDuration, "invalid_duration"},
	{booking.ErrOverpayment, "overpayment"},
	{booking.ErrInvalidAmount, "invalid_amount"},
	{booking.ErrInvalidInput, "invalid_input"},
}

// handleError writes the response for an error returned by the booking
// engine. Unexpected errors are logged and reported without detail.
func handleError(w http.ResponseWriter, r *http.Request, log *slog.Logger, err error) {
	var conflict *booking.ConflictError
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &conflict):
		writeJSON(w, http.StatusConflict, ErrorResponse{
			Error:   "slot_conflict",
			Details: conflict.Error(),
			Conflict: &ConflictDetail{
				AppointmentID: conflict.ConflictingID.String(),
				Date:          conflict.Date,
				StartTime:     conflict.Start.String(),
				EndTime:       conflict.End.String(),
			},
		})
	case errors.Is(err, booking.ErrAlreadyTerminal):
		writeError(w, http.StatusConflict, "already_terminal", err.Error())
	case errors.Is(err, booking.ErrIdempotencyConflict):
		writeError(w, http.StatusConflict, "idempotency_conflict", "idempotency key was already used for a different appointment")
	case errors.Is(err, booking.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.As(err, &vErr):
		code := "invalid_input"
		for _, vc := range validationCodes {
			if errors.Is(vErr.Kind, vc.kind) {
				code = vc.code
				break
			}
		}
		writeError(w, http.StatusUnprocessableEntity, code, vErr.Error())
	case errors.Is(err, booking.ErrBusy):
		w.Header().Set("Retry-After", "1")
		writeError(w, http.StatusServiceUnavailable, "busy", "appointment is being changed concurrently, please retry shortly")
	case errors.Is(err, context.DeadlineExceeded):
		writeError(w, http.StatusGatewayTimeout, "timeout", "request timed out")
	default:
		log.Error("request failed",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.String("request_id", GetRequestID(r.Context())),
			slog.Any("err", err),
		)
		writeError(w, http.StatusInternalServerError, "internal_error", "internal error")
	}
}

func badRequest(w http.ResponseWriter, code, details string) {
	writeError(w, http.StatusBadRequest, code, details)
}

func parseDate(w http.ResponseWriter, field, v string) (time.Time, bool) {
	d, err := domain.ParseDate(strings.TrimSpace(v))
	if err != nil {
		badRequest(w, "invalid_"+field, field+" must be a date in YYYY-MM-DD form")
		return time.Time{}, false
	}
	return d, true
}

func parseClock(w http.ResponseWriter, field, v string) (domain.Clock, bool) {
	c, err := domain.ParseClock(strings.TrimSpace(v))
	if err != nil {
		badRequest(w, "invalid_"+field, field+" must be a time in HH:MM form")
		return 0, false
	}
	return c, true
}

func parseID(w http.ResponseWriter, field, v string) (uuid.UUID, bool) {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		badRequest(w, "invalid_"+field, field+" must be a valid UUID")
		return uuid.Nil, false
	}
	return id, true
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		badRequest(w, "invalid_request_body", "could not parse JSON: "+err.Error())
		return false
	}
	return true
}
