package domain

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAmount = errors.New("invalid amount")
	ErrOverpayment   = errors.New("amount paid exceeds amount total")
)

// PaymentState is the outcome of DerivePayment. LifecycleHint is empty when
// the lifecycle must stay as it is.
type PaymentState struct {
	AmountDue     int64
	Status        PaymentStatus
	LifecycleHint LifecycleStatus
}

// DerivePayment computes the amount due and payment status from the totals.
// Overpayment is rejected rather than capped so that entry mistakes surface.
// The hint only ever moves a scheduled appointment to completed.
func DerivePayment(total, paid int64, current LifecycleStatus) (PaymentState, error) {
	if total < 0 || paid < 0 {
		return PaymentState{}, fmt.Errorf("%w: total=%d paid=%d", ErrInvalidAmount, total, paid)
	}
	if paid > total {
		return PaymentState{}, fmt.Errorf("%w: paid=%d total=%d", ErrOverpayment, paid, total)
	}

	st := PaymentState{AmountDue: max(0, total-paid)}
	switch {
	case paid == 0:
		st.Status = PaymentOpen
	case paid < total:
		st.Status = PaymentPartial
	default:
		st.Status = PaymentPaid
	}
	if st.Status == PaymentPaid && current == LifecycleScheduled {
		st.LifecycleHint = LifecycleCompleted
	}
	return st, nil
}

// ApplyPayment writes a derived state onto the appointment.
func (a *Appointment) ApplyPayment(st PaymentState) {
	a.AmountDue = st.AmountDue
	a.PaymentStatus = st.Status
	if st.LifecycleHint != "" {
		a.LifecycleStatus = st.LifecycleHint
	}
}
