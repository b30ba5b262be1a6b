// Package booking validates and applies changes to the appointment book:
// creating, moving, swapping, cancelling and settling appointments.
package booking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"apptbook/internal/domain"
	"apptbook/internal/loyalty"
	"apptbook/internal/notify"
	"apptbook/internal/store"
)

// Notifier receives committed appointment events. Publish must not block.
type Notifier interface {
	Publish(ctx context.Context, e notify.Event) error
}

// LoyaltyCrediter is called once an appointment is fully paid. It must be
// idempotent per appointment id.
type LoyaltyCrediter interface {
	Credit(ctx context.Context, c loyalty.Credit) error
}

type Options struct {
	Detector          domain.ConflictDetector
	SlotStep          int
	Notifier          Notifier
	Loyalty           LoyaltyCrediter
	SideEffectTimeout time.Duration
	Logger            *slog.Logger
	Tracer            trace.Tracer
	Now               func() time.Time
}

type Engine struct {
	repo     store.Repository
	detector domain.ConflictDetector
	slotStep int
	notifier Notifier
	loyalty  LoyaltyCrediter

	sideEffectTimeout time.Duration
	log               *slog.Logger
	tracer            trace.Tracer
	now               func() time.Time

	mu     sync.Mutex
	closed bool
	wg     sync.WaitGroup
}

func NewEngine(repo store.Repository, opts Options) *Engine {
	e := &Engine{
		repo:              repo,
		detector:          opts.Detector,
		slotStep:          opts.SlotStep,
		notifier:          opts.Notifier,
		loyalty:           opts.Loyalty,
		sideEffectTimeout: opts.SideEffectTimeout,
		log:               opts.Logger,
		tracer:            opts.Tracer,
		now:               opts.Now,
	}
	if e.detector == nil {
		e.detector = domain.LinearDetector{}
	}
	if e.slotStep <= 0 {
		e.slotStep = domain.DefaultSlotStep
	}
	if e.sideEffectTimeout <= 0 {
		e.sideEffectTimeout = 10 * time.Second
	}
	if e.log == nil {
		e.log = slog.Default()
	}
	e.log = e.log.With(slog.String("component", "booking"))
	if e.tracer == nil {
		e.tracer = otel.Tracer("apptbook/internal/service/booking")
	}
	if e.now == nil {
		e.now = func() time.Time { return time.Now().UTC() }
	}
	return e
}

// Close waits for outstanding notification and loyalty calls. Side effects
// of operations committed after Close starts are dropped.
func (e *Engine) Close(ctx context.Context) error {
	e.mu.Lock()
	e.closed = true
	e.mu.Unlock()

	done := make(chan struct{})
	go func() {
		e.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (e *Engine) startSpan(ctx context.Context, name string) (context.Context, trace.Span) {
	return e.tracer.Start(ctx, "booking."+name)
}

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	span.End()
}

// checkPlacement runs the validation shared by every path that puts an
// appointment somewhere on the calendar.
func (e *Engine) checkPlacement(hours *domain.WorkingHours, c domain.Candidate, existing []domain.Appointment) error {
	if c.DurationMinutes <= 0 {
		return validationError(ErrInvalidDuration, "duration_minutes must be positive")
	}
	weekday := c.Date.Weekday()
	if !hours.IsActive(weekday) {
		return validationError(ErrInactiveDay, "%s is a %s, which is not a working day", domain.FormatDate(c.Date), weekday)
	}
	if !hours.SpanFits(weekday, c.Start, c.DurationMinutes) {
		return validationError(ErrOutsideHours, "%s", hours.ExplainSpan(weekday, c.Start, c.DurationMinutes))
	}
	if a, ok := e.detector.FindConflict(c, existing); ok {
		return conflictWith(a)
	}
	return nil
}

// calendar loads working hours for reads that take no locks. Mutations read
// them from their DayTx instead.
func (e *Engine) calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error) {
	return e.repo.Calendar(ctx, businessID)
}

const maxLockAttempts = 3

var errDateMoved = errors.New("appointment date moved")

// withAppointments locks the dates of the given appointments (plus extra)
// and hands fn the appointments as re-read under those locks. If one of them
// was moved to an unlocked date in between, locking starts over.
func (e *Engine) withAppointments(ctx context.Context, businessID string, ids []uuid.UUID, extra []time.Time, fn func(ctx context.Context, tx store.DayTx, appts []domain.Appointment) error) error {
	for attempt := 0; attempt < maxLockAttempts; attempt++ {
		dates := slices.Clone(extra)
		for _, id := range ids {
			a, err := e.repo.GetAppointment(ctx, businessID, id)
			if err != nil {
				return err
			}
			dates = append(dates, a.Date)
		}
		locked := store.LockOrder(dates)

		err := e.repo.InDayTransaction(ctx, businessID, locked, func(ctx context.Context, tx store.DayTx) error {
			appts := make([]domain.Appointment, 0, len(ids))
			for _, id := range ids {
				a, err := tx.GetAppointment(ctx, businessID, id)
				if err != nil {
					return err
				}
				if !slices.ContainsFunc(locked, a.Date.Equal) {
					return errDateMoved
				}
				appts = append(appts, a)
			}
			return fn(ctx, tx, appts)
		})
		if errors.Is(err, errDateMoved) {
			continue
		}
		return err
	}
	return ErrBusy
}

// afterCommit runs fn in the background. Failures are logged only. The
// background context keeps the span context of ctx so that sinks can
// propagate the trace.
func (e *Engine) afterCommit(ctx context.Context, effect string, appt domain.Appointment, fn func(ctx context.Context) error) {
	e.mu.Lock()
	if e.closed {
		e.mu.Unlock()
		e.log.Warn("post-commit side effect skipped, engine closed",
			slog.String("effect", effect),
			slog.String("appointment_id", appt.ID.String()),
		)
		return
	}
	e.wg.Add(1)
	e.mu.Unlock()

	sc := trace.SpanContextFromContext(ctx)
	go func() {
		defer e.wg.Done()
		ctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(context.Background(), sc), e.sideEffectTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			e.log.Warn("post-commit side effect failed",
				slog.String("effect", effect),
				slog.String("appointment_id", appt.ID.String()),
				slog.Any("err", err),
			)
		}
	}()
}

func (e *Engine) publish(ctx context.Context, typ notify.EventType, appt domain.Appointment) {
	if e.notifier == nil {
		return
	}
	ev := notify.NewEvent(typ, appt, e.now())
	e.afterCommit(ctx, "notify", appt, func(ctx context.Context) error {
		return e.notifier.Publish(ctx, ev)
	})
}

func (e *Engine) credit(ctx context.Context, appt domain.Appointment) {
	if e.loyalty == nil {
		return
	}
	cr := loyalty.Credit{
		BusinessID:    appt.BusinessID,
		ClientID:      appt.ClientID,
		AppointmentID: appt.ID,
		AmountPaid:    appt.AmountPaid,
	}
	e.afterCommit(ctx, "loyalty", appt, func(ctx context.Context) error {
		return e.loyalty.Credit(ctx, cr)
	})
}

func requireBusiness(businessID string) error {
	if businessID == "" {
		return validationError(ErrInvalidInput, "business_id is required")
	}
	return nil
}

func requireID(id uuid.UUID, field string) error {
	if id == uuid.Nil {
		return validationError(ErrInvalidInput, "%s is required", field)
	}
	return nil
}

func terminalError(a domain.Appointment) error {
	return fmt.Errorf("%w: appointment %s is %s", ErrAlreadyTerminal, a.ID, a.LifecycleStatus)
}
