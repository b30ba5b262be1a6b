package booking

import (
	"context"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/domain"
)

func (e *Engine) Get(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	if err := requireBusiness(businessID); err != nil {
		return domain.Appointment{}, err
	}
	if err := requireID(id, "appointment_id"); err != nil {
		return domain.Appointment{}, err
	}
	return e.repo.GetAppointment(ctx, businessID, id)
}

// ListDay returns every appointment of a date, cancelled ones included,
// ordered by start time.
func (e *Engine) ListDay(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error) {
	if err := requireBusiness(businessID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, validationError(ErrInvalidInput, "date is required")
	}
	return e.repo.ListAppointments(ctx, businessID, domain.DateOf(date))
}

// AvailableSlots lists the start times on date where a service of the given
// duration fits the working hours and no active appointment. A closed day
// yields no slots and no error.
func (e *Engine) AvailableSlots(ctx context.Context, businessID string, date time.Time, durationMinutes int) (slots []domain.Clock, err error) {
	ctx, span := e.startSpan(ctx, "AvailableSlots")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(businessID); err != nil {
		return nil, err
	}
	if date.IsZero() {
		return nil, validationError(ErrInvalidInput, "date is required")
	}
	if durationMinutes <= 0 {
		return nil, validationError(ErrInvalidDuration, "duration_minutes must be positive")
	}
	day := domain.DateOf(date)

	hours, err := e.calendar(ctx, businessID)
	if err != nil {
		return nil, err
	}
	if !hours.IsActive(day.Weekday()) {
		return []domain.Clock{}, nil
	}

	existing, err := e.repo.ListAppointments(ctx, businessID, day)
	if err != nil {
		return nil, err
	}

	slots = []domain.Clock{}
	for start := range domain.GenerateSlots(hours, day.Weekday(), durationMinutes, e.slotStep) {
		c := domain.Candidate{Date: day, Start: start, DurationMinutes: durationMinutes}
		if _, taken := e.detector.FindConflict(c, existing); taken {
			continue
		}
		slots = append(slots, start)
	}
	return slots, nil
}

// WorkingHours returns the configured weekdays of a business.
func (e *Engine) WorkingHours(ctx context.Context, businessID string) ([]domain.WeekdayConfig, error) {
	if err := requireBusiness(businessID); err != nil {
		return nil, err
	}
	return e.repo.ListWeekdayConfigs(ctx, businessID)
}

// SetWeekday creates or replaces the opening hours of one weekday.
func (e *Engine) SetWeekday(ctx context.Context, cfg domain.WeekdayConfig) (domain.WeekdayConfig, error) {
	if err := requireBusiness(cfg.BusinessID); err != nil {
		return domain.WeekdayConfig{}, err
	}
	if err := cfg.Validate(); err != nil {
		return domain.WeekdayConfig{}, validationError(ErrInvalidInput, "%s", err)
	}
	return e.repo.UpsertWeekdayConfig(ctx, cfg)
}
