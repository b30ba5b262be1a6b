package domain

import (
	"errors"
	"slices"
	"time"

	"github.com/google/uuid"
)

// TemplateLookahead bounds how far a template may be expanded in one call.
const TemplateLookahead = 180 * 24 * time.Hour

// AppointmentTemplate is a simple weekly pattern of bookings for one client,
// e.g. "every other Tuesday at 10:00". Occurrences are booked as ordinary
// appointments with origin=template.
type AppointmentTemplate struct {
	ID              uuid.UUID
	BusinessID      string
	ClientID        string
	ServiceID       string
	StartTime       Clock
	DurationMinutes int
	AmountTotal     int64
	PaymentMethod   string
	Notes           string
	Weekdays        []time.Weekday
	IntervalWeeks   int
	From            time.Time
	Until           *time.Time
	Count           *int
}

// TemplateDates expands a template into the occurrence dates that fall in
// [windowStart, windowEnd). Count is applied from the template's first
// occurrence, not from the window start.
func TemplateDates(t AppointmentTemplate, windowStart, windowEnd time.Time) ([]time.Time, error) {
	if t.DurationMinutes <= 0 {
		return nil, errors.New("invalid duration")
	}
	if t.From.IsZero() {
		return nil, errors.New("from is required")
	}

	weekdays := make([]time.Weekday, 0, len(t.Weekdays))
	for _, wd := range t.Weekdays {
		if wd < time.Sunday || wd > time.Saturday {
			return nil, errors.New("invalid weekday")
		}
		if !slices.Contains(weekdays, wd) {
			weekdays = append(weekdays, wd)
		}
	}
	if len(weekdays) == 0 {
		return nil, errors.New("at least one weekday is required")
	}

	interval := t.IntervalWeeks
	if interval < 1 {
		interval = 1
	}

	from := DateOf(t.From)
	windowStart = DateOf(windowStart)
	windowEnd = DateOf(windowEnd)
	if !windowEnd.After(windowStart) {
		return nil, nil
	}
	last := windowEnd.AddDate(0, 0, -1)
	if t.Until != nil && DateOf(*t.Until).Before(last) {
		last = DateOf(*t.Until)
	}
	if limit := from.Add(TemplateLookahead); limit.Before(last) {
		last = limit
	}

	anchor := mondayOf(from)
	produced := 0
	var out []time.Time
	for d := from; !d.After(last); d = d.AddDate(0, 0, 1) {
		if !slices.Contains(weekdays, d.Weekday()) {
			continue
		}
		week := int(d.Sub(anchor)/(24*time.Hour)) / 7
		if week%interval != 0 {
			continue
		}
		if t.Count != nil && produced >= *t.Count {
			break
		}
		produced++
		if d.Before(windowStart) {
			continue
		}
		out = append(out, d)
	}
	return out, nil
}

func mondayOf(d time.Time) time.Time {
	offset := int(d.Weekday()) - 1
	if d.Weekday() == time.Sunday {
		offset = 6
	}
	return d.AddDate(0, 0, -offset)
}
