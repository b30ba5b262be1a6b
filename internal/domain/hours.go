package domain

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/uptrace/bun"
)

// WeekdayConfig holds the opening hours of one weekday for a business.
type WeekdayConfig struct {
	bun.BaseModel `bun:"table:weekday_configs"`

	BusinessID string       `bun:"business_id,pk"`
	Weekday    time.Weekday `bun:"weekday,pk"`
	Active     bool         `bun:"active,notnull"`
	OpenTime   Clock        `bun:"open_minute,notnull"`
	CloseTime  Clock        `bun:"close_minute,notnull"`
	BreakStart *Clock       `bun:"break_start_minute"`
	BreakEnd   *Clock       `bun:"break_end_minute"`
	UpdatedAt  time.Time    `bun:"updated_at,notnull"`
}

func (c *WeekdayConfig) BeforeAppendModel(ctx context.Context, query bun.Query) error {
	switch query.(type) {
	case *bun.InsertQuery, *bun.UpdateQuery:
		c.UpdatedAt = time.Now().UTC()
	}
	return nil
}

func (c WeekdayConfig) HasBreak() bool {
	return c.BreakStart != nil && c.BreakEnd != nil
}

// Validate checks the opening-hours invariants. An inactive day still has to
// carry a well-formed interval so that reactivating it is a single flag flip.
func (c WeekdayConfig) Validate() error {
	if c.Weekday < time.Sunday || c.Weekday > time.Saturday {
		return fmt.Errorf("weekday %d out of range", c.Weekday)
	}
	if !c.OpenTime.Valid() || !c.CloseTime.Valid() {
		return errors.New("open and close times must be within 00:00-24:00")
	}
	if c.OpenTime >= c.CloseTime {
		return fmt.Errorf("open time %s must be before close time %s", c.OpenTime, c.CloseTime)
	}
	if (c.BreakStart == nil) != (c.BreakEnd == nil) {
		return errors.New("break start and break end must be set together")
	}
	if c.HasBreak() {
		bs, be := *c.BreakStart, *c.BreakEnd
		if bs >= be {
			return fmt.Errorf("break start %s must be before break end %s", bs, be)
		}
		if bs < c.OpenTime || be > c.CloseTime {
			return fmt.Errorf("break %s-%s must lie within %s-%s", bs, be, c.OpenTime, c.CloseTime)
		}
	}
	return nil
}

// WorkingHours is the per-weekday calendar of a business. A weekday without a
// config is closed.
type WorkingHours struct {
	days [7]*WeekdayConfig
}

func NewWorkingHours(configs ...WeekdayConfig) (*WorkingHours, error) {
	h := &WorkingHours{}
	for _, cfg := range configs {
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("%s: %w", cfg.Weekday, err)
		}
		if h.days[cfg.Weekday] != nil {
			return nil, fmt.Errorf("%s: duplicate config", cfg.Weekday)
		}
		c := cfg
		h.days[cfg.Weekday] = &c
	}
	return h, nil
}

func (h *WorkingHours) Config(weekday time.Weekday) (WeekdayConfig, bool) {
	if h == nil || weekday < time.Sunday || weekday > time.Saturday {
		return WeekdayConfig{}, false
	}
	c := h.days[weekday]
	if c == nil {
		return WeekdayConfig{}, false
	}
	return *c, true
}

func (h *WorkingHours) Configs() []WeekdayConfig {
	out := make([]WeekdayConfig, 0, 7)
	if h == nil {
		return out
	}
	for _, c := range h.days {
		if c != nil {
			out = append(out, *c)
		}
	}
	return out
}

func (h *WorkingHours) IsActive(weekday time.Weekday) bool {
	c, ok := h.Config(weekday)
	return ok && c.Active
}

// IsWithinHours reports whether t is an open minute: open <= t < close and
// not inside [breakStart, breakEnd).
func (h *WorkingHours) IsWithinHours(weekday time.Weekday, t Clock) bool {
	c, ok := h.Config(weekday)
	if !ok || !c.Active {
		return false
	}
	if t < c.OpenTime || t >= c.CloseTime {
		return false
	}
	if c.HasBreak() && t >= *c.BreakStart && t < *c.BreakEnd {
		return false
	}
	return true
}

// SpanFits reports whether the whole span [start, start+duration) is open.
func (h *WorkingHours) SpanFits(weekday time.Weekday, start Clock, durationMinutes int) bool {
	return h.checkSpan(weekday, start, durationMinutes) == nil
}

var (
	errDayClosed  = errors.New("day closed")
	errBeforeOpen = errors.New("before opening")
	errAfterClose = errors.New("after closing")
	errInBreak    = errors.New("overlaps break")
)

func (h *WorkingHours) checkSpan(weekday time.Weekday, start Clock, durationMinutes int) error {
	c, ok := h.Config(weekday)
	if !ok || !c.Active {
		return errDayClosed
	}
	end := start.Add(durationMinutes)
	if start < c.OpenTime {
		return errBeforeOpen
	}
	if end > c.CloseTime {
		return errAfterClose
	}
	if c.HasBreak() && start < *c.BreakEnd && end > *c.BreakStart {
		return errInBreak
	}
	return nil
}

// ExplainSpan describes why a span does not fit, or returns "" when it does.
func (h *WorkingHours) ExplainSpan(weekday time.Weekday, start Clock, durationMinutes int) string {
	err := h.checkSpan(weekday, start, durationMinutes)
	if err == nil {
		return ""
	}
	c, _ := h.Config(weekday)
	end := start.Add(durationMinutes)
	switch {
	case errors.Is(err, errBeforeOpen):
		return fmt.Sprintf("%s-%s starts before opening at %s", start, end, c.OpenTime)
	case errors.Is(err, errAfterClose):
		return fmt.Sprintf("%s-%s ends after closing at %s", start, end, c.CloseTime)
	case errors.Is(err, errInBreak):
		return fmt.Sprintf("%s-%s overlaps break %s-%s", start, end, *c.BreakStart, *c.BreakEnd)
	default:
		return fmt.Sprintf("%s is closed", weekday)
	}
}
