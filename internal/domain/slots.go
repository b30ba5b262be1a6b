package domain

import (
	"iter"
	"time"
)

// DefaultSlotStep is the spacing between candidate start times.
const DefaultSlotStep = 30

// GenerateSlots yields the bookable start times of a weekday for a service of
// the given duration, stepping from the opening time. A candidate is kept
// only when its whole span fits the opening hours and stays clear of the
// break. The sequence is finite and can be ranged over any number of times.
func GenerateSlots(hours *WorkingHours, weekday time.Weekday, durationMinutes, stepMinutes int) iter.Seq[Clock] {
	return func(yield func(Clock) bool) {
		if durationMinutes <= 0 || stepMinutes <= 0 {
			return
		}
		cfg, ok := hours.Config(weekday)
		if !ok || !cfg.Active {
			return
		}
		for start := cfg.OpenTime; start.Add(durationMinutes) <= cfg.CloseTime; start = start.Add(stepMinutes) {
			if !hours.SpanFits(weekday, start, durationMinutes) {
				continue
			}
			if !yield(start) {
				return
			}
		}
	}
}
