// Package memory is an in-process store.Repository used when no database is
// configured and in tests.
package memory

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"

	"apptbook/internal/domain"
	"apptbook/internal/store"
)

type Store struct {
	mu    sync.RWMutex
	appts map[uuid.UUID]domain.Appointment
	hours map[string]map[time.Weekday]domain.WeekdayConfig

	locksMu    sync.Mutex
	locks      map[string]*sync.Mutex
	hoursLocks map[string]*sync.RWMutex

	now func() time.Time
}

func New() *Store {
	return &Store{
		appts:      make(map[uuid.UUID]domain.Appointment),
		hours:      make(map[string]map[time.Weekday]domain.WeekdayConfig),
		locks:      make(map[string]*sync.Mutex),
		hoursLocks: make(map[string]*sync.RWMutex),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

var _ store.Repository = (*Store)(nil)

func (s *Store) dayLock(key string) *sync.Mutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.locks[key]
	if !ok {
		m = &sync.Mutex{}
		s.locks[key] = m
	}
	return m
}

func (s *Store) hoursLock(businessID string) *sync.RWMutex {
	s.locksMu.Lock()
	defer s.locksMu.Unlock()
	m, ok := s.hoursLocks[businessID]
	if !ok {
		m = &sync.RWMutex{}
		s.hoursLocks[businessID] = m
	}
	return m
}

func (s *Store) InDayTransaction(ctx context.Context, businessID string, dates []time.Time, fn func(ctx context.Context, tx store.DayTx) error) error {
	hl := s.hoursLock(businessID)
	hl.RLock()
	defer hl.RUnlock()
	for _, d := range store.LockOrder(dates) {
		m := s.dayLock(store.LockKey(businessID, d))
		m.Lock()
		defer m.Unlock()
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	tx := &dayTx{s: s, staged: make(map[uuid.UUID]*domain.Appointment)}
	if err := fn(ctx, tx); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for id, a := range tx.staged {
		if a == nil {
			delete(s.appts, id)
			continue
		}
		s.appts[id] = *a
	}
	return nil
}

func (s *Store) GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	a, ok := s.appts[id]
	if !ok || a.BusinessID != businessID {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (s *Store) ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	day := domain.DateOf(date)
	var out []domain.Appointment
	for _, a := range s.appts {
		if a.BusinessID == businessID && a.Date.Equal(day) {
			out = append(out, a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (s *Store) Calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error) {
	configs, err := s.ListWeekdayConfigs(ctx, businessID)
	if err != nil {
		return nil, err
	}
	return domain.NewWorkingHours(configs...)
}

func (s *Store) UpsertWeekdayConfig(ctx context.Context, cfg domain.WeekdayConfig) (domain.WeekdayConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.WeekdayConfig{}, err
	}
	hl := s.hoursLock(cfg.BusinessID)
	hl.Lock()
	defer hl.Unlock()

	s.mu.Lock()
	defer s.mu.Unlock()
	days, ok := s.hours[cfg.BusinessID]
	if !ok {
		days = make(map[time.Weekday]domain.WeekdayConfig)
		s.hours[cfg.BusinessID] = days
	}
	cfg.UpdatedAt = s.now()
	days[cfg.Weekday] = cfg
	return cfg, nil
}

func (s *Store) ListWeekdayConfigs(ctx context.Context, businessID string) ([]domain.WeekdayConfig, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.WeekdayConfig, 0, len(s.hours[businessID]))
	for _, c := range s.hours[businessID] {
		out = append(out, c)
	}
	slices.SortFunc(out, func(a, b domain.WeekdayConfig) int { return int(a.Weekday) - int(b.Weekday) })
	return out, nil
}

// dayTx stages writes in a private overlay. A nil entry marks a deletion.
type dayTx struct {
	s      *Store
	staged map[uuid.UUID]*domain.Appointment
}

func (t *dayTx) Calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error) {
	return t.s.Calendar(ctx, businessID)
}

func (t *dayTx) lookup(id uuid.UUID) (domain.Appointment, bool) {
	if a, ok := t.staged[id]; ok {
		if a == nil {
			return domain.Appointment{}, false
		}
		return *a, true
	}
	t.s.mu.RLock()
	defer t.s.mu.RUnlock()
	a, ok := t.s.appts[id]
	return a, ok
}

func (t *dayTx) GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	a, ok := t.lookup(id)
	if !ok || a.BusinessID != businessID {
		return domain.Appointment{}, store.ErrNotFound
	}
	return a, nil
}

func (t *dayTx) ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error) {
	day := domain.DateOf(date)
	match := func(a domain.Appointment) bool {
		return a.BusinessID == businessID && a.Date.Equal(day)
	}

	var out []domain.Appointment
	t.s.mu.RLock()
	for id, a := range t.s.appts {
		if _, shadowed := t.staged[id]; shadowed {
			continue
		}
		if match(a) {
			out = append(out, a)
		}
	}
	t.s.mu.RUnlock()
	for _, a := range t.staged {
		if a != nil && match(*a) {
			out = append(out, *a)
		}
	}
	sortByStart(out)
	return out, nil
}

func (t *dayTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	if appt.ID != uuid.Nil {
		if existing, ok := t.lookup(appt.ID); ok {
			if !existing.SameBooking(appt) {
				return domain.Appointment{}, store.ErrIdempotencyConflict
			}
			return existing, nil
		}
	} else {
		id, err := uuid.NewV7()
		if err != nil {
			return domain.Appointment{}, err
		}
		appt.ID = id
	}
	appt.Date = domain.DateOf(appt.Date)
	now := t.s.now()
	appt.CreatedAt = now
	appt.UpdatedAt = now
	t.staged[appt.ID] = &appt
	return appt, nil
}

func (t *dayTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	existing, ok := t.lookup(appt.ID)
	if !ok || existing.BusinessID != appt.BusinessID {
		return domain.Appointment{}, store.ErrNotFound
	}
	appt.Date = domain.DateOf(appt.Date)
	appt.CreatedAt = existing.CreatedAt
	appt.UpdatedAt = t.s.now()
	t.staged[appt.ID] = &appt
	return appt, nil
}

func (t *dayTx) DeleteAppointment(ctx context.Context, businessID string, id uuid.UUID) error {
	existing, ok := t.lookup(id)
	if !ok || existing.BusinessID != businessID {
		return store.ErrNotFound
	}
	t.staged[id] = nil
	return nil
}

func sortByStart(appts []domain.Appointment) {
	slices.SortFunc(appts, func(a, b domain.Appointment) int {
		if c := a.Date.Compare(b.Date); c != 0 {
			return c
		}
		if a.StartTime != b.StartTime {
			return int(a.StartTime) - int(b.StartTime)
		}
		return a.CreatedAt.Compare(b.CreatedAt)
	})
}
