// Package notify delivers appointment events to an external channel after a
// booking commits. Delivery is best effort.
package notify

import (
	"time"

	"github.com/google/uuid"

	"apptbook/internal/domain"
)

type EventType string

const (
	EventCreated          EventType = "appointment.created"
	EventRescheduled      EventType = "appointment.rescheduled"
	EventCancelled        EventType = "appointment.cancelled"
	EventPaymentCompleted EventType = "appointment.payment_completed"
)

type Event struct {
	ID            uuid.UUID     `json:"event_id"`
	Type          EventType     `json:"type"`
	AppointmentID uuid.UUID     `json:"appointment_id"`
	BusinessID    string        `json:"business_id"`
	ClientID      string        `json:"client_id"`
	Date          string        `json:"date"`
	StartTime     domain.Clock  `json:"start_time"`
	NewTime       *domain.Clock `json:"new_time,omitempty"`
	OccurredAt    time.Time     `json:"occurred_at"`
}

// NewEvent builds an event describing appt as it was committed. Rescheduled
// events carry the new start time in NewTime.
func NewEvent(typ EventType, appt domain.Appointment, at time.Time) Event {
	e := Event{
		ID:            uuid.New(),
		Type:          typ,
		AppointmentID: appt.ID,
		BusinessID:    appt.BusinessID,
		ClientID:      appt.ClientID,
		Date:          domain.FormatDate(appt.Date),
		StartTime:     appt.StartTime,
		OccurredAt:    at.UTC(),
	}
	if typ == EventRescheduled {
		t := appt.StartTime
		e.NewTime = &t
	}
	return e
}
