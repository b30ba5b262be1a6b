package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/attribute"

	"apptbook/internal/domain"
)

type SkippedOccurrence struct {
	Date   time.Time
	Reason error
}

type TemplateResult struct {
	Booked  []domain.Appointment
	Skipped []SkippedOccurrence
}

// BookTemplate books every occurrence of tpl between windowStart (inclusive)
// and windowEnd (exclusive). Each occurrence is booked on its own; one that
// is rejected (closed day, conflict, ...) is reported as skipped and does not
// stop the others. Re-running the same template over the same window does
// not double-book.
func (e *Engine) BookTemplate(ctx context.Context, tpl domain.AppointmentTemplate, windowStart, windowEnd time.Time) (res TemplateResult, err error) {
	ctx, span := e.startSpan(ctx, "BookTemplate")
	defer func() { endSpan(span, err) }()

	if err := requireBusiness(tpl.BusinessID); err != nil {
		return TemplateResult{}, err
	}
	if !windowEnd.After(windowStart) {
		return TemplateResult{}, validationError(ErrInvalidInput, "window_end must be after window_start")
	}
	if tpl.ID == uuid.Nil {
		tpl.ID = uuid.New()
	}
	dates, err := domain.TemplateDates(tpl, windowStart, windowEnd)
	if err != nil {
		if tpl.DurationMinutes <= 0 {
			return TemplateResult{}, validationError(ErrInvalidDuration, "%s", err)
		}
		return TemplateResult{}, validationError(ErrInvalidInput, "%s", err)
	}
	span.SetAttributes(
		attribute.String("business_id", tpl.BusinessID),
		attribute.String("template_id", tpl.ID.String()),
		attribute.Int("occurrences", len(dates)),
	)

	templateID := tpl.ID
	for _, d := range dates {
		appt, err := e.Create(ctx, CreateInput{
			BusinessID:      tpl.BusinessID,
			ClientID:        tpl.ClientID,
			ServiceID:       tpl.ServiceID,
			Date:            d,
			StartTime:       tpl.StartTime,
			DurationMinutes: tpl.DurationMinutes,
			AmountTotal:     tpl.AmountTotal,
			PaymentMethod:   tpl.PaymentMethod,
			Origin:          domain.OriginTemplate,
			TemplateID:      &templateID,
			Notes:           tpl.Notes,
			IdempotencyKey:  "template:" + templateID.String() + ":" + domain.FormatDate(d),
		})
		if err == nil {
			res.Booked = append(res.Booked, appt)
			continue
		}
		if rejected(err) {
			res.Skipped = append(res.Skipped, SkippedOccurrence{Date: d, Reason: err})
			continue
		}
		return res, err
	}
	return res, nil
}

// rejected reports whether err is a refusal of the request rather than a
// failure to process it.
func rejected(err error) bool {
	var vErr *ValidationError
	var cErr *ConflictError
	return errors.As(err, &vErr) || errors.As(err, &cErr) || errors.Is(err, ErrIdempotencyConflict)
}
