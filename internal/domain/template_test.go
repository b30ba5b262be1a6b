package domain

import (
	"testing"
	"time"

	"github.com/google/uuid"
)

func TestTemplateDates_Validation(t *testing.T) {
	base := AppointmentTemplate{
		ID:              uuid.MustParse("00000000-0000-0000-0000-000000000001"),
		ClientID:        "c1",
		ServiceID:       "s1",
		StartTime:       MustParseClock("09:00"),
		DurationMinutes: 60,
		Weekdays:        []time.Weekday{time.Monday},
		IntervalWeeks:   1,
		From:            NewDate(2026, 1, 5),
	}

	windowStart := base.From
	windowEnd := windowStart.AddDate(0, 0, 7)

	tests := []struct {
		name     string
		template func() AppointmentTemplate
		wantErr  string
	}{
		{
			name: "invalid duration",
			template: func() AppointmentTemplate {
				tpl := base
				tpl.DurationMinutes = 0
				return tpl
			},
			wantErr: "invalid duration",
		},
		{
			name: "missing from",
			template: func() AppointmentTemplate {
				tpl := base
				tpl.From = time.Time{}
				return tpl
			},
			wantErr: "from is required",
		},
		{
			name: "invalid weekday",
			template: func() AppointmentTemplate {
				tpl := base
				tpl.Weekdays = []time.Weekday{9}
				return tpl
			},
			wantErr: "invalid weekday",
		},
		{
			name: "empty weekday set",
			template: func() AppointmentTemplate {
				tpl := base
				tpl.Weekdays = nil
				return tpl
			},
			wantErr: "at least one weekday is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := TemplateDates(tt.template(), windowStart, windowEnd)
			if err == nil {
				t.Fatalf("expected error")
			}
			if err.Error() != tt.wantErr {
				t.Fatalf("error = %q, want %q", err.Error(), tt.wantErr)
			}
		})
	}
}

func TestTemplateDates_NormalizesIntervalAndWeekdays(t *testing.T) {
	tpl := AppointmentTemplate{
		DurationMinutes: 60,
		Weekdays:        []time.Weekday{time.Wednesday, time.Monday, time.Wednesday},
		IntervalWeeks:   0,
		From:            NewDate(2026, 1, 5),
	}

	dates, err := TemplateDates(tpl, NewDate(2026, 1, 5), NewDate(2026, 1, 19))
	if err != nil {
		t.Fatalf("TemplateDates error: %v", err)
	}
	want := []time.Time{NewDate(2026, 1, 5), NewDate(2026, 1, 7), NewDate(2026, 1, 12), NewDate(2026, 1, 14)}
	if len(dates) != len(want) {
		t.Fatalf("len(dates) = %d, want %d (%v)", len(dates), len(want), dates)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("dates[%d] = %s, want %s", i, FormatDate(dates[i]), FormatDate(want[i]))
		}
	}
}

func TestTemplateDates_EveryOtherWeek(t *testing.T) {
	tpl := AppointmentTemplate{
		DurationMinutes: 30,
		Weekdays:        []time.Weekday{time.Tuesday},
		IntervalWeeks:   2,
		From:            NewDate(2026, 1, 6),
	}

	dates, err := TemplateDates(tpl, NewDate(2026, 1, 1), NewDate(2026, 2, 1))
	if err != nil {
		t.Fatalf("TemplateDates error: %v", err)
	}
	want := []time.Time{NewDate(2026, 1, 6), NewDate(2026, 1, 20)}
	if len(dates) != len(want) {
		t.Fatalf("dates = %v, want %v", dates, want)
	}
	for i := range want {
		if !dates[i].Equal(want[i]) {
			t.Fatalf("dates[%d] = %s, want %s", i, FormatDate(dates[i]), FormatDate(want[i]))
		}
	}
}

func TestTemplateDates_RespectsUntilAndCount(t *testing.T) {
	until := NewDate(2026, 1, 20)
	count := 2

	tpl := AppointmentTemplate{
		DurationMinutes: 60,
		Weekdays:        []time.Weekday{time.Monday},
		IntervalWeeks:   1,
		From:            NewDate(2026, 1, 5),
		Until:           &until,
		Count:           &count,
	}

	dates, err := TemplateDates(tpl, tpl.From, NewDate(2026, 3, 1))
	if err != nil {
		t.Fatalf("TemplateDates error: %v", err)
	}
	if len(dates) != 2 {
		t.Fatalf("len(dates) = %d, want 2", len(dates))
	}

	// Count is consumed from the first occurrence even when the window starts later.
	dates, err = TemplateDates(tpl, NewDate(2026, 1, 10), NewDate(2026, 3, 1))
	if err != nil {
		t.Fatalf("TemplateDates error: %v", err)
	}
	if len(dates) != 1 || !dates[0].Equal(NewDate(2026, 1, 12)) {
		t.Fatalf("dates = %v, want [2026-01-12]", dates)
	}
}
