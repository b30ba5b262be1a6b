package booking

import (
	"context"
	"errors"
	"strings"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"apptbook/internal/domain"
	"apptbook/internal/notify"
	"apptbook/internal/store"
)

type PaymentInput struct {
	BusinessID    string
	AppointmentID uuid.UUID
	// Amount is added to what was already paid, in minor units.
	Amount int64
	Method string
}

func paymentValidation(err error) error {
	if errors.Is(err, domain.ErrOverpayment) {
		return validationError(ErrOverpayment, "%s", err)
	}
	return validationError(ErrInvalidAmount, "%s", err)
}

// RegisterPayment records a payment against an appointment. Settling the
// full amount completes a scheduled appointment and credits loyalty points
// once. A zero amount changes nothing unless the appointment was already
// fully paid at creation, in which case it is settled the same way.
func (e *Engine) RegisterPayment(ctx context.Context, in PaymentInput) (out domain.Appointment, err error) {
	ctx, span := e.startSpan(ctx, "RegisterPayment")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(in.BusinessID); err != nil {
		return domain.Appointment{}, err
	}
	if err := requireID(in.AppointmentID, "appointment_id"); err != nil {
		return domain.Appointment{}, err
	}
	if in.Amount < 0 {
		return domain.Appointment{}, validationError(ErrInvalidAmount, "amount must not be negative")
	}
	span.SetAttributes(
		attribute.String("business_id", in.BusinessID),
		attribute.String("appointment_id", in.AppointmentID.String()),
		attribute.Int64("amount", in.Amount),
	)

	completed := false
	err = e.withAppointments(ctx, in.BusinessID, []uuid.UUID{in.AppointmentID}, nil, func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error {
		a := appts[0]
		out = a
		if a.LifecycleStatus.Terminal() {
			if in.Amount == 0 {
				return nil
			}
			return terminalError(a)
		}

		paid := a.AmountPaid + in.Amount
		st, err := domain.DerivePayment(a.AmountTotal, paid, a.LifecycleStatus)
		if err != nil {
			return paymentValidation(err)
		}
		// A zero amount only matters for an appointment that was fully paid
		// when it was created.
		if in.Amount == 0 && st.LifecycleHint == "" {
			return nil
		}
		before := a.LifecycleStatus
		a.AmountPaid = paid
		a.ApplyPayment(st)
		if m := strings.TrimSpace(in.Method); m != "" {
			a.PaymentMethod = m
		}
		completed = before == domain.LifecycleScheduled && a.LifecycleStatus == domain.LifecycleCompleted

		out, err = tx.UpdateAppointment(ctx, a)
		return err
	})
	if err != nil {
		return domain.Appointment{}, err
	}

	if completed {
		e.credit(ctx, out)
		e.publish(ctx, notify.EventPaymentCompleted, out)
	}
	return out, nil
}
