// Package loyalty credits client points for settled appointments. Crediting
// is idempotent per appointment id.
package loyalty

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/google/uuid"
)

type Credit struct {
	BusinessID    string
	ClientID      string
	AppointmentID uuid.UUID
	AmountPaid    int64
}

// Ledger records credits. Apply returns false when the appointment was
// already credited, in which case the balance is unchanged.
type Ledger interface {
	Apply(ctx context.Context, c Credit, points int64) (bool, error)
	Balance(ctx context.Context, businessID, clientID string) (int64, error)
}

var ErrInvalidCredit = errors.New("invalid credit")

// Crediter converts paid amounts to points at a fixed rate.
type Crediter struct {
	ledger        Ledger
	centsPerPoint int64
	log           *slog.Logger
}

func NewCrediter(ledger Ledger, centsPerPoint int64, log *slog.Logger) *Crediter {
	if centsPerPoint <= 0 {
		centsPerPoint = 100
	}
	if log == nil {
		log = slog.Default()
	}
	return &Crediter{ledger: ledger, centsPerPoint: centsPerPoint, log: log.With(slog.String("component", "loyalty"))}
}

func (c *Crediter) Points(amountPaid int64) int64 {
	return amountPaid / c.centsPerPoint
}

func (c *Crediter) Credit(ctx context.Context, cr Credit) error {
	if cr.BusinessID == "" || cr.ClientID == "" || cr.AppointmentID == uuid.Nil || cr.AmountPaid < 0 {
		return ErrInvalidCredit
	}
	points := c.Points(cr.AmountPaid)
	applied, err := c.ledger.Apply(ctx, cr, points)
	if err != nil {
		return err
	}
	if !applied {
		c.log.DebugContext(ctx, "appointment already credited", slog.String("appointment_id", cr.AppointmentID.String()))
		return nil
	}
	c.log.InfoContext(ctx, "loyalty credited",
		slog.String("business_id", cr.BusinessID),
		slog.String("client_id", cr.ClientID),
		slog.String("appointment_id", cr.AppointmentID.String()),
		slog.Int64("points", points),
	)
	return nil
}

func (c *Crediter) Balance(ctx context.Context, businessID, clientID string) (int64, error) {
	return c.ledger.Balance(ctx, businessID, clientID)
}

type MemoryLedger struct {
	mu       sync.Mutex
	credited map[uuid.UUID]struct{}
	balances map[string]int64
}

func NewMemoryLedger() *MemoryLedger {
	return &MemoryLedger{
		credited: make(map[uuid.UUID]struct{}),
		balances: make(map[string]int64),
	}
}

func (l *MemoryLedger) Apply(ctx context.Context, c Credit, points int64) (bool, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.credited[c.AppointmentID]; ok {
		return false, nil
	}
	l.credited[c.AppointmentID] = struct{}{}
	l.balances[c.BusinessID+"|"+c.ClientID] += points
	return true, nil
}

func (l *MemoryLedger) Balance(ctx context.Context, businessID, clientID string) (int64, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.balances[businessID+"|"+clientID], nil
}
