package booking

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"

	"apptbook/internal/domain"
	"apptbook/internal/loyalty"
	"apptbook/internal/notify"
	"apptbook/internal/store"
	"apptbook/internal/store/memory"
)

const biz = "b1"

var (
	monday  = domain.NewDate(2026, 3, 2)
	tuesday = domain.NewDate(2026, 3, 3)
	sunday  = domain.NewDate(2026, 3, 8)
)

type recordingNotifier struct {
	mu     sync.Mutex
	events []notify.Event
	spans  []trace.SpanContext
	err    error
}

func (n *recordingNotifier) Publish(ctx context.Context, e notify.Event) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, e)
	n.spans = append(n.spans, trace.SpanContextFromContext(ctx))
	return n.err
}

func (n *recordingNotifier) types() []notify.EventType {
	n.mu.Lock()
	defer n.mu.Unlock()
	out := make([]notify.EventType, 0, len(n.events))
	for _, e := range n.events {
		out = append(out, e.Type)
	}
	return out
}

type countingCrediter struct {
	mu    sync.Mutex
	calls int
	inner *loyalty.Crediter
}

func (c *countingCrediter) Credit(ctx context.Context, cr loyalty.Credit) error {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()
	return c.inner.Credit(ctx, cr)
}

type fixture struct {
	engine   *Engine
	store    *memory.Store
	notifier *recordingNotifier
	credits  *countingCrediter
}

func clockPtr(s string) *domain.Clock {
	c := domain.MustParseClock(s)
	return &c
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	s := memory.New()
	for _, wd := range []time.Weekday{time.Monday, time.Tuesday} {
		_, err := s.UpsertWeekdayConfig(context.Background(), domain.WeekdayConfig{
			BusinessID: biz,
			Weekday:    wd,
			Active:     true,
			OpenTime:   domain.MustParseClock("08:00"),
			CloseTime:  domain.MustParseClock("18:00"),
			BreakStart: clockPtr("12:00"),
			BreakEnd:   clockPtr("13:00"),
		})
		if err != nil {
			t.Fatalf("UpsertWeekdayConfig: %v", err)
		}
	}

	f := &fixture{
		store:    s,
		notifier: &recordingNotifier{},
		credits:  &countingCrediter{inner: loyalty.NewCrediter(loyalty.NewMemoryLedger(), 100, quietLogger())},
	}
	f.engine = NewEngine(s, Options{
		Notifier: f.notifier,
		Loyalty:  f.credits,
		Logger:   quietLogger(),
	})
	return f
}

// settle waits for background side effects.
func (f *fixture) settle(t *testing.T) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := f.engine.Close(ctx); err != nil {
		t.Fatalf("Close: %v", err)
	}
}

func (f *fixture) book(t *testing.T, date time.Time, start string, duration int) domain.Appointment {
	t.Helper()
	a, err := f.engine.Create(context.Background(), CreateInput{
		BusinessID:      biz,
		ClientID:        "c1",
		ServiceID:       "s1",
		Date:            date,
		StartTime:       domain.MustParseClock(start),
		DurationMinutes: duration,
		AmountTotal:     5000,
	})
	if err != nil {
		t.Fatalf("Create %s %s: %v", domain.FormatDate(date), start, err)
	}
	return a
}

func (f *fixture) get(t *testing.T, id uuid.UUID) domain.Appointment {
	t.Helper()
	a, err := f.engine.Get(context.Background(), biz, id)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	return a
}

func TestCreate_ConflictCarriesConflictingAppointment(t *testing.T) {
	f := newFixture(t)
	first := f.book(t, monday, "10:00", 60)

	_, err := f.engine.Create(context.Background(), CreateInput{
		BusinessID:      biz,
		ClientID:        "c2",
		ServiceID:       "s1",
		Date:            monday,
		StartTime:       domain.MustParseClock("10:30"),
		DurationMinutes: 30,
	})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want %v", err, ErrSlotConflict)
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) {
		t.Fatalf("error type = %T, want *ConflictError", err)
	}
	if cErr.ConflictingID != first.ID || cErr.Start != first.StartTime || cErr.End != first.EndTime() {
		t.Fatalf("conflict = %+v, want appointment %s 10:00-11:00", cErr, first.ID)
	}

	// Back to back is fine.
	f.book(t, monday, "11:00", 60)
}

func TestCreate_Validation(t *testing.T) {
	f := newFixture(t)

	base := CreateInput{
		BusinessID:      biz,
		ClientID:        "c1",
		ServiceID:       "s1",
		Date:            monday,
		StartTime:       domain.MustParseClock("09:00"),
		DurationMinutes: 60,
		AmountTotal:     5000,
	}

	tests := []struct {
		name   string
		mutate func(in *CreateInput)
		want   error
	}{
		{"closed weekday", func(in *CreateInput) { in.Date = sunday }, ErrInactiveDay},
		{"before opening", func(in *CreateInput) { in.StartTime = domain.MustParseClock("07:30") }, ErrOutsideHours},
		{"after closing", func(in *CreateInput) { in.StartTime = domain.MustParseClock("17:30") }, ErrOutsideHours},
		{"straddles break", func(in *CreateInput) { in.StartTime = domain.MustParseClock("11:30") }, ErrOutsideHours},
		{"crosses midnight", func(in *CreateInput) { in.StartTime = domain.MustParseClock("23:30") }, ErrOutsideHours},
		{"zero duration", func(in *CreateInput) { in.DurationMinutes = 0 }, ErrInvalidDuration},
		{"negative paid", func(in *CreateInput) { in.AmountPaid = -1 }, ErrInvalidAmount},
		{"overpaid", func(in *CreateInput) { in.AmountPaid = 6000 }, ErrOverpayment},
		{"missing client", func(in *CreateInput) { in.ClientID = " " }, ErrInvalidInput},
		{"unknown origin", func(in *CreateInput) { in.Origin = "fax" }, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			in := base
			tt.mutate(&in)
			_, err := f.engine.Create(context.Background(), in)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			var vErr *ValidationError
			if !errors.As(err, &vErr) {
				t.Fatalf("error type = %T, want *ValidationError", err)
			}
		})
	}

	rows, _ := f.engine.ListDay(context.Background(), biz, monday)
	if len(rows) != 0 {
		t.Fatalf("rejected creates left %d rows", len(rows))
	}
}

func TestCreate_DerivesInitialPayment(t *testing.T) {
	f := newFixture(t)
	a, err := f.engine.Create(context.Background(), CreateInput{
		BusinessID:      biz,
		ClientID:        "c1",
		ServiceID:       "s1",
		Date:            monday,
		StartTime:       domain.MustParseClock("09:00"),
		DurationMinutes: 30,
		AmountTotal:     5000,
		AmountPaid:      1500,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.PaymentStatus != domain.PaymentPartial || a.AmountDue != 3500 || a.LifecycleStatus != domain.LifecycleScheduled {
		t.Fatalf("got status=%s due=%d lifecycle=%s", a.PaymentStatus, a.AmountDue, a.LifecycleStatus)
	}
	if a.Origin != domain.OriginManual {
		t.Fatalf("origin = %s, want manual", a.Origin)
	}
}

func TestCreate_IdempotencyKey(t *testing.T) {
	f := newFixture(t)
	in := CreateInput{
		BusinessID:      biz,
		ClientID:        "c1",
		ServiceID:       "s1",
		Date:            monday,
		StartTime:       domain.MustParseClock("09:00"),
		DurationMinutes: 30,
		IdempotencyKey:  "req-1",
	}

	first, err := f.engine.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if first.ID != IdempotentID(biz, "req-1") {
		t.Fatalf("id = %s, want deterministic id", first.ID)
	}
	again, err := f.engine.Create(context.Background(), in)
	if err != nil {
		t.Fatalf("replay: %v", err)
	}
	if again.ID != first.ID {
		t.Fatalf("replay id = %s, want %s", again.ID, first.ID)
	}

	in.StartTime = domain.MustParseClock("14:00")
	if _, err := f.engine.Create(context.Background(), in); !errors.Is(err, ErrIdempotencyConflict) {
		t.Fatalf("err = %v, want %v", err, ErrIdempotencyConflict)
	}

	f.settle(t)
	rows, _ := f.engine.ListDay(context.Background(), biz, monday)
	if len(rows) != 1 {
		t.Fatalf("len(rows) = %d, want 1", len(rows))
	}
	if got := f.notifier.types(); !slices.Equal(got, []notify.EventType{notify.EventCreated}) {
		t.Fatalf("events = %v, want one created event", got)
	}
}

func TestCreate_ConcurrentRequestsForOneSlot(t *testing.T) {
	f := newFixture(t)

	const workers = 16
	var (
		wg        sync.WaitGroup
		mu        sync.Mutex
		ok        int
		conflicts int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.engine.Create(context.Background(), CreateInput{
				BusinessID:      biz,
				ClientID:        uuid.NewString(),
				ServiceID:       "s1",
				Date:            monday,
				StartTime:       domain.MustParseClock("10:00"),
				DurationMinutes: 60,
			})
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				ok++
			case errors.Is(err, ErrSlotConflict):
				conflicts++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()

	if ok != 1 || conflicts != workers-1 {
		t.Fatalf("ok=%d conflicts=%d, want 1 and %d", ok, conflicts, workers-1)
	}
}

func TestReschedule(t *testing.T) {
	t.Run("moves within its own old slot", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "10:00", 60)

		moved, err := f.engine.Reschedule(context.Background(), RescheduleInput{
			BusinessID:    biz,
			AppointmentID: a.ID,
			NewDate:       monday,
			NewStart:      domain.MustParseClock("10:30"),
		})
		if err != nil {
			t.Fatalf("Reschedule: %v", err)
		}
		if moved.StartTime != domain.MustParseClock("10:30") {
			t.Fatalf("start = %s, want 10:30", moved.StartTime)
		}
		f.settle(t)
		if got := f.notifier.types(); !slices.Contains(got, notify.EventRescheduled) {
			t.Fatalf("events = %v, want a rescheduled event", got)
		}
	})

	t.Run("moves to another day", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "10:00", 60)

		moved, err := f.engine.Reschedule(context.Background(), RescheduleInput{
			BusinessID:    biz,
			AppointmentID: a.ID,
			NewDate:       tuesday,
			NewStart:      domain.MustParseClock("15:00"),
		})
		if err != nil {
			t.Fatalf("Reschedule: %v", err)
		}
		if !moved.Date.Equal(tuesday) {
			t.Fatalf("date = %s, want %s", moved.Date, tuesday)
		}
		if rows, _ := f.engine.ListDay(context.Background(), biz, monday); len(rows) != 0 {
			t.Fatalf("monday still has %d rows", len(rows))
		}
	})

	t.Run("failure leaves appointment untouched", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "09:00", 60)
		f.book(t, monday, "14:00", 60)

		for _, in := range []RescheduleInput{
			{BusinessID: biz, AppointmentID: a.ID, NewDate: monday, NewStart: domain.MustParseClock("14:30")},
			{BusinessID: biz, AppointmentID: a.ID, NewDate: monday, NewStart: domain.MustParseClock("11:30")},
			{BusinessID: biz, AppointmentID: a.ID, NewDate: sunday, NewStart: domain.MustParseClock("10:00")},
		} {
			if _, err := f.engine.Reschedule(context.Background(), in); err == nil {
				t.Fatalf("Reschedule to %s %s: expected error", domain.FormatDate(in.NewDate), in.NewStart)
			}
		}
		if got := f.get(t, a.ID); got != a {
			t.Fatalf("appointment changed:\n got  %+v\n want %+v", got, a)
		}
	})

	t.Run("cancelled cannot move", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "09:00", 60)
		if _, err := f.engine.Cancel(context.Background(), biz, a.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		_, err := f.engine.Reschedule(context.Background(), RescheduleInput{
			BusinessID: biz, AppointmentID: a.ID, NewDate: monday, NewStart: domain.MustParseClock("15:00"),
		})
		if !errors.Is(err, ErrAlreadyTerminal) {
			t.Fatalf("err = %v, want %v", err, ErrAlreadyTerminal)
		}
	})

	t.Run("unknown id", func(t *testing.T) {
		f := newFixture(t)
		_, err := f.engine.Reschedule(context.Background(), RescheduleInput{
			BusinessID: biz, AppointmentID: uuid.New(), NewDate: monday, NewStart: domain.MustParseClock("15:00"),
		})
		if !errors.Is(err, ErrNotFound) {
			t.Fatalf("err = %v, want %v", err, ErrNotFound)
		}
	})
}

func TestSwap_FailsWhenLongerAppointmentHitsThirdParty(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "09:00", 30)
	b := f.book(t, monday, "10:00", 90)
	c := f.book(t, monday, "09:45", 15)

	_, _, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: b.ID})
	if !errors.Is(err, ErrSlotConflict) {
		t.Fatalf("err = %v, want %v", err, ErrSlotConflict)
	}
	var cErr *ConflictError
	if !errors.As(err, &cErr) || cErr.ConflictingID != c.ID {
		t.Fatalf("conflict = %v, want conflict with %s", err, c.ID)
	}

	if got := f.get(t, a.ID); got != a {
		t.Fatalf("A changed: %+v", got)
	}
	if got := f.get(t, b.ID); got != b {
		t.Fatalf("B changed: %+v", got)
	}
}

func TestSwap(t *testing.T) {
	t.Run("exchanges slots keeping durations", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "09:00", 30)
		b := f.book(t, tuesday, "14:00", 60)

		gotA, gotB, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: b.ID})
		if err != nil {
			t.Fatalf("Swap: %v", err)
		}
		if !gotA.Date.Equal(tuesday) || gotA.StartTime != b.StartTime || gotA.DurationMinutes != 30 {
			t.Fatalf("A = %s %s (%d)", domain.FormatDate(gotA.Date), gotA.StartTime, gotA.DurationMinutes)
		}
		if !gotB.Date.Equal(monday) || gotB.StartTime != a.StartTime || gotB.DurationMinutes != 60 {
			t.Fatalf("B = %s %s (%d)", domain.FormatDate(gotB.Date), gotB.StartTime, gotB.DurationMinutes)
		}
		f.settle(t)
		if n := len(f.notifier.types()); n != 4 {
			t.Fatalf("events = %d, want 2 created + 2 rescheduled", n)
		}
	})

	t.Run("new spans on the same day must not overlap each other", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "09:00", 30)
		b := f.book(t, monday, "09:30", 60)

		_, _, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: b.ID})
		if !errors.Is(err, ErrSlotConflict) {
			t.Fatalf("err = %v, want %v", err, ErrSlotConflict)
		}
		if got := f.get(t, a.ID); got != a {
			t.Fatalf("A changed")
		}
	})

	t.Run("checks working hours in both directions", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "17:30", 30)
		b := f.book(t, monday, "09:00", 120)

		_, _, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: b.ID})
		if !errors.Is(err, ErrOutsideHours) {
			t.Fatalf("err = %v, want %v", err, ErrOutsideHours)
		}
	})

	t.Run("rejects self and terminal appointments", func(t *testing.T) {
		f := newFixture(t)
		a := f.book(t, monday, "09:00", 30)
		b := f.book(t, monday, "14:00", 30)

		if _, _, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: a.ID}); !errors.Is(err, ErrInvalidInput) {
			t.Fatalf("self swap err = %v, want %v", err, ErrInvalidInput)
		}
		if _, err := f.engine.Cancel(context.Background(), biz, b.ID); err != nil {
			t.Fatalf("Cancel: %v", err)
		}
		if _, _, err := f.engine.Swap(context.Background(), SwapInput{BusinessID: biz, FirstID: a.ID, SecondID: b.ID}); !errors.Is(err, ErrAlreadyTerminal) {
			t.Fatalf("err = %v, want %v", err, ErrAlreadyTerminal)
		}
	})
}

func TestCancel_FreesSlotAndIsTerminal(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)

	slots, _ := f.engine.AvailableSlots(context.Background(), biz, monday, 60)
	if slices.Contains(slots, domain.MustParseClock("10:00")) {
		t.Fatalf("10:00 offered while booked")
	}

	cancelled, err := f.engine.Cancel(context.Background(), biz, a.ID)
	if err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if cancelled.LifecycleStatus != domain.LifecycleCancelled || cancelled.CancelledAt == nil {
		t.Fatalf("got lifecycle=%s cancelledAt=%v", cancelled.LifecycleStatus, cancelled.CancelledAt)
	}
	if _, err := f.engine.Cancel(context.Background(), biz, a.ID); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("second cancel err = %v, want %v", err, ErrAlreadyTerminal)
	}

	slots, _ = f.engine.AvailableSlots(context.Background(), biz, monday, 60)
	if !slices.Contains(slots, domain.MustParseClock("10:00")) {
		t.Fatalf("10:00 not offered after cancel: %v", slots)
	}
	f.book(t, monday, "10:00", 60)

	rows, _ := f.engine.ListDay(context.Background(), biz, monday)
	if len(rows) != 2 {
		t.Fatalf("history lost: %d rows, want 2", len(rows))
	}
}

func TestDelete(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)
	if err := f.engine.Delete(context.Background(), biz, a.ID); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := f.engine.Get(context.Background(), biz, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}
	if err := f.engine.Delete(context.Background(), biz, a.ID); !errors.Is(err, ErrNotFound) {
		t.Fatalf("err = %v, want %v", err, ErrNotFound)
	}
}

func TestRegisterPayment_SettlesAndCreditsOnce(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)
	ctx := context.Background()

	partial, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 2000, Method: "cash"})
	if err != nil {
		t.Fatalf("RegisterPayment: %v", err)
	}
	if partial.PaymentStatus != domain.PaymentPartial || partial.LifecycleStatus != domain.LifecycleScheduled || partial.AmountDue != 3000 {
		t.Fatalf("partial = %s/%s due %d", partial.PaymentStatus, partial.LifecycleStatus, partial.AmountDue)
	}

	paid, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 3000, Method: "card"})
	if err != nil {
		t.Fatalf("RegisterPayment: %v", err)
	}
	if paid.PaymentStatus != domain.PaymentPaid || paid.LifecycleStatus != domain.LifecycleCompleted || paid.AmountDue != 0 {
		t.Fatalf("paid = %s/%s due %d", paid.PaymentStatus, paid.LifecycleStatus, paid.AmountDue)
	}
	if paid.PaymentMethod != "card" {
		t.Fatalf("method = %q, want card", paid.PaymentMethod)
	}

	if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 5000}); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("repeat payment err = %v, want %v", err, ErrAlreadyTerminal)
	}

	f.settle(t)
	if f.credits.calls != 1 {
		t.Fatalf("loyalty calls = %d, want 1", f.credits.calls)
	}
	if bal, _ := f.credits.inner.Balance(ctx, biz, "c1"); bal != 50 {
		t.Fatalf("balance = %d, want 50", bal)
	}
	if got := f.notifier.types(); !slices.Contains(got, notify.EventPaymentCompleted) {
		t.Fatalf("events = %v, want payment_completed", got)
	}
}

func TestRegisterPayment_ZeroAmountChangesNothing(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)
	ctx := context.Background()

	for _, status := range []domain.PaymentStatus{domain.PaymentOpen, domain.PaymentPartial} {
		if status == domain.PaymentPartial {
			if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 100}); err != nil {
				t.Fatalf("RegisterPayment: %v", err)
			}
		}
		before := f.get(t, a.ID)
		got, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 0, Method: "card"})
		if err != nil {
			t.Fatalf("RegisterPayment(0): %v", err)
		}
		if got.PaymentStatus != status || f.get(t, a.ID) != before {
			t.Fatalf("zero payment changed %s appointment", status)
		}
	}
}

func TestRegisterPayment_RejectsBadAmounts(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)
	ctx := context.Background()

	if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: -5}); !errors.Is(err, ErrInvalidAmount) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidAmount)
	}
	if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 5001}); !errors.Is(err, ErrOverpayment) {
		t.Fatalf("err = %v, want %v", err, ErrOverpayment)
	}
	if got := f.get(t, a.ID); got != a {
		t.Fatalf("rejected payment changed appointment")
	}
	if _, err := f.engine.Cancel(ctx, biz, a.ID); err != nil {
		t.Fatalf("Cancel: %v", err)
	}
	if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID, Amount: 100}); !errors.Is(err, ErrAlreadyTerminal) {
		t.Fatalf("err = %v, want %v", err, ErrAlreadyTerminal)
	}
}

func TestAvailableSlots(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	empty, err := f.engine.AvailableSlots(ctx, biz, sunday, 30)
	if err != nil || len(empty) != 0 {
		t.Fatalf("sunday slots = %v, err = %v", empty, err)
	}

	f.book(t, monday, "09:00", 60)
	slots, err := f.engine.AvailableSlots(ctx, biz, monday, 60)
	if err != nil {
		t.Fatalf("AvailableSlots: %v", err)
	}
	for _, taken := range []string{"08:30", "09:00", "09:30"} {
		if slices.Contains(slots, domain.MustParseClock(taken)) {
			t.Fatalf("%s offered while it overlaps the 09:00 booking", taken)
		}
	}
	for _, free := range []string{"08:00", "10:00", "13:00", "17:00"} {
		if !slices.Contains(slots, domain.MustParseClock(free)) {
			t.Fatalf("%s missing from %v", free, slots)
		}
	}

	if _, err := f.engine.AvailableSlots(ctx, biz, monday, 0); !errors.Is(err, ErrInvalidDuration) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidDuration)
	}
}

func TestSideEffectFailuresDoNotFailBooking(t *testing.T) {
	f := newFixture(t)
	f.notifier.err = errors.New("broker down")

	a := f.book(t, monday, "10:00", 60)
	f.settle(t)
	if _, err := f.engine.Get(context.Background(), biz, a.ID); err != nil {
		t.Fatalf("booking lost after notifier failure: %v", err)
	}
}

type failingRepo struct {
	*memory.Store
	err error
}

func (r failingRepo) InDayTransaction(ctx context.Context, businessID string, dates []time.Time, fn func(ctx context.Context, tx store.DayTx) error) error {
	return r.err
}

func TestStoreFailureAbortsOperation(t *testing.T) {
	f := newFixture(t)
	boom := errors.New("connection refused")
	e := NewEngine(failingRepo{Store: f.store, err: boom}, Options{Notifier: f.notifier, Logger: quietLogger()})

	_, err := e.Create(context.Background(), CreateInput{
		BusinessID: biz, ClientID: "c1", ServiceID: "s1", Date: monday,
		StartTime: domain.MustParseClock("10:00"), DurationMinutes: 30,
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want %v", err, boom)
	}
	_ = e.Close(context.Background())
	if n := len(f.notifier.types()); n != 0 {
		t.Fatalf("notifications after failed commit: %d", n)
	}
}

// driftingRepo reports every appointment a week away from where it is, so
// the locked dates never match the re-read ones.
type driftingRepo struct {
	*memory.Store
}

func (r driftingRepo) GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	a, err := r.Store.GetAppointment(ctx, businessID, id)
	a.Date = a.Date.AddDate(0, 0, 7)
	return a, err
}

func TestLockRetryGivesUpWhenAppointmentKeepsMoving(t *testing.T) {
	f := newFixture(t)
	a := f.book(t, monday, "10:00", 60)

	e := NewEngine(driftingRepo{Store: f.store}, Options{Logger: quietLogger()})
	if _, err := e.Cancel(context.Background(), biz, a.ID); !errors.Is(err, ErrBusy) {
		t.Fatalf("err = %v, want %v", err, ErrBusy)
	}
	if got := f.get(t, a.ID); got.LifecycleStatus != domain.LifecycleScheduled {
		t.Fatalf("appointment modified without its date lock")
	}
}

func TestBookTemplate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	// 2026-03-09 is taken, so that occurrence is skipped.
	f.book(t, domain.NewDate(2026, 3, 9), "10:00", 60)

	tpl := domain.AppointmentTemplate{
		ID:              uuid.MustParse("00000000-0000-0000-0000-00000000aaaa"),
		BusinessID:      biz,
		ClientID:        "c9",
		ServiceID:       "s1",
		StartTime:       domain.MustParseClock("10:00"),
		DurationMinutes: 60,
		AmountTotal:     4000,
		Weekdays:        []time.Weekday{time.Monday, time.Sunday},
		IntervalWeeks:   1,
		From:            monday,
	}
	windowEnd := domain.NewDate(2026, 3, 23)

	res, err := f.engine.BookTemplate(ctx, tpl, monday, windowEnd)
	if err != nil {
		t.Fatalf("BookTemplate: %v", err)
	}
	// Mondays 2, 9, 16 and Sundays 8, 15, 22: two Mondays book, the rest skip.
	if len(res.Booked) != 2 || len(res.Skipped) != 4 {
		t.Fatalf("booked=%d skipped=%d, want 2 and 4", len(res.Booked), len(res.Skipped))
	}
	for _, a := range res.Booked {
		if a.Origin != domain.OriginTemplate || a.TemplateID == nil || *a.TemplateID != tpl.ID {
			t.Fatalf("booked occurrence not tagged with template: %+v", a)
		}
	}
	for _, s := range res.Skipped {
		if s.Date.Weekday() == time.Monday && !errors.Is(s.Reason, ErrSlotConflict) {
			t.Fatalf("monday skip reason = %v, want conflict", s.Reason)
		}
		if s.Date.Weekday() == time.Sunday && !errors.Is(s.Reason, ErrInactiveDay) {
			t.Fatalf("sunday skip reason = %v, want inactive day", s.Reason)
		}
	}

	again, err := f.engine.BookTemplate(ctx, tpl, monday, windowEnd)
	if err != nil {
		t.Fatalf("BookTemplate rerun: %v", err)
	}
	if len(again.Booked) != 2 {
		t.Fatalf("rerun booked = %d, want the same 2", len(again.Booked))
	}
	rows, _ := f.engine.ListDay(ctx, biz, domain.NewDate(2026, 3, 16))
	if len(rows) != 1 {
		t.Fatalf("rerun double-booked: %d rows", len(rows))
	}

	bad := tpl
	bad.Weekdays = nil
	if _, err := f.engine.BookTemplate(ctx, bad, monday, windowEnd); !errors.Is(err, ErrInvalidInput) {
		t.Fatalf("err = %v, want %v", err, ErrInvalidInput)
	}
}

func TestRegisterPayment_ZeroAmountSettlesPrepaidAppointment(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	a, err := f.engine.Create(ctx, CreateInput{
		BusinessID:      biz,
		ClientID:        "c1",
		ServiceID:       "s1",
		Date:            monday,
		StartTime:       domain.MustParseClock("10:00"),
		DurationMinutes: 60,
		AmountTotal:     5000,
		AmountPaid:      5000,
	})
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if a.PaymentStatus != domain.PaymentPaid || a.LifecycleStatus != domain.LifecycleScheduled {
		t.Fatalf("created = %s/%s, want paid/scheduled", a.PaymentStatus, a.LifecycleStatus)
	}

	got, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID})
	if err != nil {
		t.Fatalf("RegisterPayment(0): %v", err)
	}
	if got.LifecycleStatus != domain.LifecycleCompleted || got.AmountPaid != 5000 {
		t.Fatalf("settled = %s paid %d, want completed paid 5000", got.LifecycleStatus, got.AmountPaid)
	}
	if _, err := f.engine.RegisterPayment(ctx, PaymentInput{BusinessID: biz, AppointmentID: a.ID}); err != nil {
		t.Fatalf("repeat RegisterPayment(0): %v", err)
	}

	f.settle(t)
	if f.credits.calls != 1 {
		t.Fatalf("loyalty calls = %d, want 1", f.credits.calls)
	}
	if got := f.notifier.types(); !slices.Contains(got, notify.EventPaymentCompleted) {
		t.Fatalf("events = %v, want payment_completed", got)
	}
}

func TestSideEffectsKeepRequestTrace(t *testing.T) {
	f := newFixture(t)
	sc := trace.NewSpanContext(trace.SpanContextConfig{
		TraceID:    trace.TraceID{0x4d, 0x31, 0xc1, 0xca, 7},
		SpanID:     trace.SpanID{0x01, 7},
		TraceFlags: trace.FlagsSampled,
	})
	ctx := trace.ContextWithSpanContext(context.Background(), sc)

	if _, err := f.engine.Create(ctx, CreateInput{
		BusinessID: biz, ClientID: "c1", ServiceID: "s1", Date: monday,
		StartTime: domain.MustParseClock("10:00"), DurationMinutes: 30,
	}); err != nil {
		t.Fatalf("Create: %v", err)
	}
	f.settle(t)

	f.notifier.mu.Lock()
	defer f.notifier.mu.Unlock()
	if len(f.notifier.spans) != 1 || f.notifier.spans[0].TraceID() != sc.TraceID() {
		t.Fatalf("notifier spans = %v, want trace %s", f.notifier.spans, sc.TraceID())
	}
}

func TestClose_SkipsSideEffectsOfLaterOperations(t *testing.T) {
	f := newFixture(t)
	f.book(t, monday, "09:00", 30)
	f.settle(t)

	// Operations still succeed after Close, without starting new side effects.
	f.book(t, monday, "10:00", 30)
	if err := f.engine.Close(context.Background()); err != nil {
		t.Fatalf("second Close: %v", err)
	}
	if got := f.notifier.types(); len(got) != 1 {
		t.Fatalf("events = %v, want only the one published before Close", got)
	}
}

func TestClose_ConcurrentWithBookings(t *testing.T) {
	f := newFixture(t)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = f.engine.Create(context.Background(), CreateInput{
				BusinessID: biz, ClientID: "c1", ServiceID: "s1", Date: monday,
				StartTime: domain.NewClock(8+i, 0), DurationMinutes: 30,
			})
		}(i)
	}
	f.settle(t)
	wg.Wait()

	if err := f.engine.Close(context.Background()); err != nil {
		t.Fatalf("Close: %v", err)
	}
}
