package domain

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

type PaymentStatus string

const (
	PaymentOpen    PaymentStatus = "open"
	PaymentPartial PaymentStatus = "partial"
	PaymentPaid    PaymentStatus = "paid"
)

type LifecycleStatus string

const (
	LifecycleScheduled LifecycleStatus = "scheduled"
	LifecycleCompleted LifecycleStatus = "completed"
	LifecycleCancelled LifecycleStatus = "cancelled"
)

// Terminal reports whether no further transition may leave s.
func (s LifecycleStatus) Terminal() bool {
	return s == LifecycleCompleted || s == LifecycleCancelled
}

type Origin string

const (
	OriginManual   Origin = "manual"
	OriginTemplate Origin = "template"
	OriginOnline   Origin = "online"
)

func (o Origin) Valid() bool {
	switch o {
	case OriginManual, OriginTemplate, OriginOnline:
		return true
	}
	return false
}

type Appointment struct {
	bun.BaseModel `bun:"table:appointments"`

	ID              uuid.UUID       `bun:"id,pk,type:uuid"`
	BusinessID      string          `bun:"business_id,notnull"`
	ClientID        string          `bun:"client_id,notnull"`
	ServiceID       string          `bun:"service_id,notnull"`
	Date            time.Time       `bun:"date,notnull,type:date"`
	StartTime       Clock           `bun:"start_minute,notnull"`
	DurationMinutes int             `bun:"duration_minutes,notnull"`
	AmountTotal     int64           `bun:"amount_total,notnull"`
	AmountPaid      int64           `bun:"amount_paid,notnull"`
	AmountDue       int64           `bun:"amount_due,notnull"`
	PaymentMethod   string          `bun:"payment_method,notnull"`
	PaymentStatus   PaymentStatus   `bun:"payment_status,notnull"`
	LifecycleStatus LifecycleStatus `bun:"lifecycle_status,notnull"`
	Origin          Origin          `bun:"origin,notnull"`
	TemplateID      *uuid.UUID      `bun:"template_id,type:uuid"`
	Notes           string          `bun:"notes,notnull"`
	CancelledAt     *time.Time      `bun:"cancelled_at"`
	CreatedAt       time.Time       `bun:"created_at,notnull"`
	UpdatedAt       time.Time       `bun:"updated_at,notnull"`
}

func (a *Appointment) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	now := time.Now().UTC()
	switch query.(type) {
	case *bun.InsertQuery:
		if a.ID == uuid.Nil {
			id, err := uuid.NewV7()
			if err != nil {
				return err
			}
			a.ID = id
		}
		if a.CreatedAt.IsZero() {
			a.CreatedAt = now
		}
		if a.UpdatedAt.IsZero() {
			a.UpdatedAt = now
		}
	case *bun.UpdateQuery:
		a.UpdatedAt = now
	}
	return nil
}

func (a Appointment) EndTime() Clock {
	return a.StartTime.Add(a.DurationMinutes)
}

// Blocking reports whether the appointment occupies its slot. Cancelled
// appointments stay in history but never block.
func (a Appointment) Blocking() bool {
	return a.LifecycleStatus != LifecycleCancelled
}

// SameBooking compares the client-supplied fields of two appointments. It is
// used to tell an idempotent replay from a reused key.
func (a Appointment) SameBooking(b Appointment) bool {
	return a.BusinessID == b.BusinessID &&
		a.ClientID == b.ClientID &&
		a.ServiceID == b.ServiceID &&
		a.Date.Equal(b.Date) &&
		a.StartTime == b.StartTime &&
		a.DurationMinutes == b.DurationMinutes &&
		a.AmountTotal == b.AmountTotal &&
		a.Origin == b.Origin
}
