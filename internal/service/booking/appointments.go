package booking

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"apptbook/internal/domain"
	"apptbook/internal/notify"
	"apptbook/internal/store"
)

const maxIdempotencyKeyLen = 256

type CreateInput struct {
	BusinessID      string
	ClientID        string
	ServiceID       string
	Date            time.Time
	StartTime       domain.Clock
	DurationMinutes int
	AmountTotal     int64
	AmountPaid      int64
	PaymentMethod   string
	Origin          domain.Origin
	TemplateID      *uuid.UUID
	Notes           string
	IdempotencyKey  string
}

// IdempotentID derives the appointment id used for a create request carrying
// an idempotency key.
func IdempotentID(businessID, key string) uuid.UUID {
	return uuid.NewSHA1(uuid.NameSpaceOID, []byte("apptbook:create_appointment:"+businessID+":"+key))
}

func (e *Engine) newAppointment(in CreateInput) (domain.Appointment, error) {
	if err := requireBusiness(in.BusinessID); err != nil {
		return domain.Appointment{}, err
	}
	clientID := strings.TrimSpace(in.ClientID)
	if clientID == "" {
		return domain.Appointment{}, validationError(ErrInvalidInput, "client_id is required")
	}
	serviceID := strings.TrimSpace(in.ServiceID)
	if serviceID == "" {
		return domain.Appointment{}, validationError(ErrInvalidInput, "service_id is required")
	}
	if in.Date.IsZero() {
		return domain.Appointment{}, validationError(ErrInvalidInput, "date is required")
	}
	if in.DurationMinutes <= 0 {
		return domain.Appointment{}, validationError(ErrInvalidDuration, "duration_minutes must be positive")
	}
	if !in.StartTime.Valid() || in.StartTime == domain.MinutesPerDay {
		return domain.Appointment{}, validationError(ErrInvalidInput, "start_time out of range")
	}
	if in.StartTime.Add(in.DurationMinutes) > domain.MinutesPerDay {
		return domain.Appointment{}, validationError(ErrOutsideHours, "%s plus %d minutes crosses midnight", in.StartTime, in.DurationMinutes)
	}

	origin := in.Origin
	if origin == "" {
		origin = domain.OriginManual
	}
	if !origin.Valid() {
		return domain.Appointment{}, validationError(ErrInvalidInput, "unknown origin %q", origin)
	}

	pay, err := domain.DerivePayment(in.AmountTotal, in.AmountPaid, domain.LifecycleScheduled)
	if err != nil {
		return domain.Appointment{}, paymentValidation(err)
	}

	appt := domain.Appointment{
		BusinessID:      in.BusinessID,
		ClientID:        clientID,
		ServiceID:       serviceID,
		Date:            domain.DateOf(in.Date),
		StartTime:       in.StartTime,
		DurationMinutes: in.DurationMinutes,
		AmountTotal:     in.AmountTotal,
		AmountPaid:      in.AmountPaid,
		AmountDue:       pay.AmountDue,
		PaymentMethod:   strings.TrimSpace(in.PaymentMethod),
		PaymentStatus:   pay.Status,
		LifecycleStatus: domain.LifecycleScheduled,
		Origin:          origin,
		TemplateID:      in.TemplateID,
		Notes:           in.Notes,
	}

	key := strings.TrimSpace(in.IdempotencyKey)
	if key != "" {
		if len(key) > maxIdempotencyKeyLen {
			return domain.Appointment{}, validationError(ErrInvalidInput, "idempotency_key too long")
		}
		appt.ID = IdempotentID(in.BusinessID, key)
	}
	return appt, nil
}

// Create books a new appointment. A request repeated with the same
// idempotency key returns the stored appointment.
func (e *Engine) Create(ctx context.Context, in CreateInput) (out domain.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "Create")
	defer func() { endSpan(span, err) }()

	appt, err := e.newAppointment(in)
	if err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(
		attribute.String("business_id", appt.BusinessID),
		attribute.String("date", domain.FormatDate(appt.Date)),
	)

	replay := false
	err = e.repo.InDayTransaction(ctx, appt.BusinessID, []time.Time{appt.Date}, func(ctx context.Context, tx store.DayTx) error {
		if appt.ID != uuid.Nil {
			prev, err := tx.GetAppointment(ctx, appt.BusinessID, appt.ID)
			switch {
			case err == nil:
				if !prev.SameBooking(appt) {
					return fmt.Errorf("%w: key already used for a different booking", ErrIdempotencyConflict)
				}
				replay = true
				out = prev
				return nil
			case !errors.Is(err, store.ErrNotFound):
				return err
			}
		}

		hours, err := tx.Calendar(ctx, appt.BusinessID)
		if err != nil {
			return err
		}
		existing, err := tx.ListAppointments(ctx, appt.BusinessID, appt.Date)
		if err != nil {
			return err
		}
		c := domain.Candidate{Date: appt.Date, Start: appt.StartTime, DurationMinutes: appt.DurationMinutes}
		if err := e.checkPlacement(hours, c, existing); err != nil {
			return err
		}
		out, err = tx.InsertAppointment(ctx, appt)
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if !replay {
		e.publish(ctx, notify.EventCreated, out)
	}
	return out, nil
}

type RescheduleInput struct {
	BusinessID    string
	AppointmentID uuid.UUID
	NewDate       time.Time
	NewStart      domain.Clock
}

// Reschedule moves a scheduled appointment. On any failure the stored
// appointment is unchanged.
func (e *Engine) Reschedule(ctx context.Context, in RescheduleInput) (out domain.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "Reschedule")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(in.BusinessID); err != nil {
		return domain.Appointment{}, err
	}
	if err := requireID(in.AppointmentID, "appointment_id"); err != nil {
		return domain.Appointment{}, err
	}
	if in.NewDate.IsZero() {
		return domain.Appointment{}, validationError(ErrInvalidInput, "new_date is required")
	}
	if !in.NewStart.Valid() || in.NewStart == domain.MinutesPerDay {
		return domain.Appointment{}, validationError(ErrInvalidInput, "new_start_time out of range")
	}
	newDate := domain.DateOf(in.NewDate)
	span.SetAttributes(
		attribute.String("business_id", in.BusinessID),
		attribute.String("appointment_id", in.AppointmentID.String()),
		attribute.String("date", domain.FormatDate(newDate)),
	)

	err = e.withAppointments(ctx, in.BusinessID, []uuid.UUID{in.AppointmentID}, []time.Time{newDate}, func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error {
		a := appts[0]
		if a.LifecycleStatus.Terminal() {
			return terminalError(a)
		}
		hours, err := tx.Calendar(ctx, in.BusinessID)
		if err != nil {
			return err
		}
		existing, err := tx.ListAppointments(ctx, in.BusinessID, newDate)
		if err != nil {
			return err
		}
		c := domain.Candidate{
			Date:            newDate,
			Start:           in.NewStart,
			DurationMinutes: a.DurationMinutes,
			Exclude:         []uuid.UUID{a.ID},
		}
		if err := e.checkPlacement(hours, c, existing); err != nil {
			return err
		}
		a.Date = newDate
		a.StartTime = in.NewStart
		out, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	e.publish(ctx, notify.EventRescheduled, out)
	return out, nil
}

type SwapInput struct {
	BusinessID string
	FirstID    uuid.UUID
	SecondID   uuid.UUID
}

// Swap exchanges the date and start time of two scheduled appointments. Each
// appointment keeps its own duration, so both new placements are validated
// in full before either is written.
func (e *Engine) Swap(ctx context.Context, in SwapInput) (first, second domain.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "Swap")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(in.BusinessID); err != nil {
		return domain.Appointment{}, domain.Appointment{}, err
	}
	if err := requireID(in.FirstID, "first_id"); err != nil {
		return domain.Appointment{}, domain.Appointment{}, err
	}
	if err := requireID(in.SecondID, "second_id"); err != nil {
		return domain.Appointment{}, domain.Appointment{}, err
	}
	if in.FirstID == in.SecondID {
		return domain.Appointment{}, domain.Appointment{}, validationError(ErrInvalidInput, "cannot swap an appointment with itself")
	}
	span.SetAttributes(
		attribute.String("business_id", in.BusinessID),
		attribute.String("first_id", in.FirstID.String()),
		attribute.String("second_id", in.SecondID.String()),
	)

	ids := []uuid.UUID{in.FirstID, in.SecondID}
	err = e.withAppointments(ctx, in.BusinessID, ids, nil, func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error {
		a, b := appts[0], appts[1]
		for _, x := range appts {
			if x.LifecycleStatus != domain.LifecycleScheduled {
				return terminalError(x)
			}
		}
		hours, err := tx.Calendar(ctx, in.BusinessID)
		if err != nil {
			return err
		}

		// A takes B's slot and B takes A's slot.
		movedA := a
		movedA.Date, movedA.StartTime = b.Date, b.StartTime
		movedB := b
		movedB.Date, movedB.StartTime = a.Date, a.StartTime

		for _, m := range []domain.Appointment{movedA, movedB} {
			existing, err := tx.ListAppointments(ctx, in.BusinessID, m.Date)
			if err != nil {
				return err
			}
			c := domain.Candidate{Date: m.Date, Start: m.StartTime, DurationMinutes: m.DurationMinutes, Exclude: ids}
			if err := e.checkPlacement(hours, c, existing); err != nil {
				return err
			}
		}
		if movedA.Date.Equal(movedB.Date) && domain.SpansOverlap(movedA.StartTime, movedA.EndTime(), movedB.StartTime, movedB.EndTime()) {
			return conflictWith(movedB)
		}

		if first, err = tx.UpdateAppointment(ctx, movedA); err != nil {
			return err
		}
		second, err = tx.UpdateAppointment(ctx, movedB)
		return err
	})
	if err != nil {
		return domain.Appointment{}, domain.Appointment{}, err
	}

	e.publish(ctx, notify.EventRescheduled, first)
	e.publish(ctx, notify.EventRescheduled, second)
	return first, second, nil
}

// Cancel marks a scheduled appointment cancelled. It stays stored but no
// longer blocks its slot.
func (e *Engine) Cancel(ctx context.Context, businessID string, id uuid.UUID) (out domain.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "Cancel")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(businessID); err != nil {
		return domain.Appointment{}, err
	}
	if err := requireID(id, "appointment_id"); err != nil {
		return domain.Appointment{}, err
	}
	span.SetAttributes(attribute.String("business_id", businessID), attribute.String("appointment_id", id.String()))

	err = e.withAppointments(ctx, businessID, []uuid.UUID{id}, nil, func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error {
		a := appts[0]
		if a.LifecycleStatus.Terminal() {
			return terminalError(a)
		}
		now := e.now()
		a.LifecycleStatus = domain.LifecycleCancelled
		a.CancelledAt = &now
		var err error
		out, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	e.publish(ctx, notify.EventCancelled, out)
	return out, nil
}

// Delete removes an appointment and its history.
func (e *Engine) Delete(ctx context.Context, businessID string, id uuid.UUID) (err error) {
	ctx, span := e.startSpan(ctx, "Delete")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(businessID); err != nil {
		return err
	}
	if err := requireID(id, "appointment_id"); err != nil {
		return err
	}
	return e.withAppointments(ctx, businessID, []uuid.UUID{id}, nil, func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error {
		return tx.DeleteAppointment(ctx, businessID, id)
	})
}
