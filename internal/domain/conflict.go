package domain

import (
	"time"

	"github.com/google/uuid"
)

// Candidate is a proposed placement checked against existing bookings.
type Candidate struct {
	Date            time.Time
	Start           Clock
	DurationMinutes int
	// Exclude lists appointment ids left out of the comparison, so that an
	// appointment being moved does not collide with its own prior instance.
	Exclude []uuid.UUID
}

func (c Candidate) End() Clock {
	return c.Start.Add(c.DurationMinutes)
}

func (c Candidate) excludes(id uuid.UUID) bool {
	for _, ex := range c.Exclude {
		if ex == id {
			return true
		}
	}
	return false
}

// ConflictDetector finds an existing appointment that a candidate would
// overlap. Implementations must be pure: same inputs, same answer, no side
// effects.
type ConflictDetector interface {
	FindConflict(c Candidate, existing []Appointment) (Appointment, bool)
}

// LinearDetector scans the day's appointments one by one. Days hold few
// bookings, so no index is kept.
type LinearDetector struct{}

func (LinearDetector) FindConflict(c Candidate, existing []Appointment) (Appointment, bool) {
	day := DateOf(c.Date)
	for _, e := range existing {
		if !e.Blocking() || c.excludes(e.ID) || !DateOf(e.Date).Equal(day) {
			continue
		}
		if SpansOverlap(c.Start, c.End(), e.StartTime, e.EndTime()) {
			return e, true
		}
	}
	return Appointment{}, false
}

// Overlaps is the boolean form of LinearDetector.FindConflict.
func Overlaps(c Candidate, existing []Appointment) bool {
	_, ok := LinearDetector{}.FindConflict(c, existing)
	return ok
}

// SpansOverlap reports whether half-open spans [s1,e1) and [s2,e2) intersect.
func SpansOverlap(s1, e1, s2, e2 Clock) bool {
	return s1 < e2 && e1 > s2
}
