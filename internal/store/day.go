package store

import (
	"context"
	"slices"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/domain"
)

// DayTx is the view of the appointment book inside InDayTransaction. Writes
// become visible to other callers only when the transaction function returns
// nil.
type DayTx interface {
	GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error)
	// InsertAppointment stores a new appointment. When an appointment with the
	// same id already exists it returns that record if it describes the same
	// booking and ErrIdempotencyConflict otherwise.
	InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error)
	DeleteAppointment(ctx context.Context, businessID string, id uuid.UUID) error

	// Calendar returns the working hours as of the transaction. They cannot
	// change until the transaction ends.
	HoursSource
}

// Repository persists appointments and working hours for many businesses.
type Repository interface {
	// InDayTransaction runs fn with exclusive access to the given dates of one
	// business. Dates are locked in ascending order and duplicates are ignored.
	// The business's working hours are held shared for the whole call.
	InDayTransaction(ctx context.Context, businessID string, dates []time.Time, fn func(ctx context.Context, tx DayTx) error) error

	GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error)
	ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error)

	HoursSource
	// UpsertWeekdayConfig waits for running day transactions of the business.
	UpsertWeekdayConfig(ctx context.Context, cfg domain.WeekdayConfig) (domain.WeekdayConfig, error)
	ListWeekdayConfigs(ctx context.Context, businessID string) ([]domain.WeekdayConfig, error)
}

// HoursSource loads the working-hours calendar of a business.
type HoursSource interface {
	Calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error)
}

// LockOrder returns the distinct calendar days of dates in ascending order.
func LockOrder(dates []time.Time) []time.Time {
	out := make([]time.Time, 0, len(dates))
	for _, d := range dates {
		day := domain.DateOf(d)
		dup := false
		for _, o := range out {
			if o.Equal(day) {
				dup = true
				break
			}
		}
		if !dup {
			out = append(out, day)
		}
	}
	slices.SortFunc(out, func(a, b time.Time) int { return a.Compare(b) })
	return out
}

// LockKey names the lock guarding one day of one business.
func LockKey(businessID string, date time.Time) string {
	return businessID + "|" + domain.FormatDate(date)
}

// HoursLockKey names the lock guarding the working hours of one business.
// Day transactions hold it shared and weekday upserts hold it exclusively.
func HoursLockKey(businessID string) string {
	return businessID + "|hours"
}
