package domain

import (
	"slices"
	"testing"
	"time"
)

func clockPtr(s string) *Clock {
	c := MustParseClock(s)
	return &c
}

func mondayWithBreak(t *testing.T) *WorkingHours {
	t.Helper()
	h, err := NewWorkingHours(WeekdayConfig{
		Weekday:    time.Monday,
		Active:     true,
		OpenTime:   MustParseClock("08:00"),
		CloseTime:  MustParseClock("18:00"),
		BreakStart: clockPtr("12:00"),
		BreakEnd:   clockPtr("13:00"),
	})
	if err != nil {
		t.Fatalf("NewWorkingHours error: %v", err)
	}
	return h
}

func TestGenerateSlots_SkipsSpansTouchingBreak(t *testing.T) {
	h := mondayWithBreak(t)

	got := slices.Collect(GenerateSlots(h, time.Monday, 60, 30))

	var want []Clock
	for _, s := range []string{
		"08:00", "08:30", "09:00", "09:30", "10:00", "10:30", "11:00",
		"13:00", "13:30", "14:00", "14:30", "15:00", "15:30", "16:00", "16:30", "17:00",
	} {
		want = append(want, MustParseClock(s))
	}
	if !slices.Equal(got, want) {
		t.Fatalf("slots = %v, want %v", got, want)
	}
	for _, excluded := range []string{"11:30", "12:00", "12:30"} {
		if slices.Contains(got, MustParseClock(excluded)) {
			t.Fatalf("slot %s must be excluded", excluded)
		}
	}
}

func TestGenerateSlots_AllSlotsRespectCloseAndBreak(t *testing.T) {
	h := mondayWithBreak(t)
	cfg, _ := h.Config(time.Monday)

	for _, duration := range []int{15, 30, 45, 60, 90, 120, 240} {
		for s := range GenerateSlots(h, time.Monday, duration, 15) {
			end := s.Add(duration)
			if end > cfg.CloseTime {
				t.Fatalf("duration %d: slot %s ends %s after close", duration, s, end)
			}
			if SpansOverlap(s, end, *cfg.BreakStart, *cfg.BreakEnd) {
				t.Fatalf("duration %d: slot %s-%s intersects break", duration, s, end)
			}
		}
	}
}

func TestGenerateSlots_ClosedDaysAreEmpty(t *testing.T) {
	h, err := NewWorkingHours(WeekdayConfig{
		Weekday:   time.Tuesday,
		Active:    false,
		OpenTime:  MustParseClock("09:00"),
		CloseTime: MustParseClock("17:00"),
	})
	if err != nil {
		t.Fatalf("NewWorkingHours error: %v", err)
	}

	for wd := time.Sunday; wd <= time.Saturday; wd++ {
		if n := len(slices.Collect(GenerateSlots(h, wd, 30, 30))); n != 0 {
			t.Fatalf("%s: len(slots) = %d, want 0", wd, n)
		}
	}
	if n := len(slices.Collect(GenerateSlots(nil, time.Monday, 30, 30))); n != 0 {
		t.Fatalf("nil calendar: len(slots) = %d, want 0", n)
	}
}

func TestGenerateSlots_NothingFits(t *testing.T) {
	h, err := NewWorkingHours(WeekdayConfig{
		Weekday:   time.Friday,
		Active:    true,
		OpenTime:  MustParseClock("09:00"),
		CloseTime: MustParseClock("10:00"),
	})
	if err != nil {
		t.Fatalf("NewWorkingHours error: %v", err)
	}
	if n := len(slices.Collect(GenerateSlots(h, time.Friday, 90, 30))); n != 0 {
		t.Fatalf("len(slots) = %d, want 0", n)
	}
	if n := len(slices.Collect(GenerateSlots(h, time.Friday, 0, 30))); n != 0 {
		t.Fatalf("zero duration: len(slots) = %d, want 0", n)
	}
}

func TestGenerateSlots_Restartable(t *testing.T) {
	h := mondayWithBreak(t)
	seq := GenerateSlots(h, time.Monday, 30, 30)

	first := slices.Collect(seq)
	second := slices.Collect(seq)
	if !slices.Equal(first, second) {
		t.Fatalf("second pass = %v, want %v", second, first)
	}

	var early []Clock
	for s := range seq {
		early = append(early, s)
		if len(early) == 2 {
			break
		}
	}
	if !slices.Equal(early, first[:2]) {
		t.Fatalf("early stop = %v, want %v", early, first[:2])
	}
}
