package postgres

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/uptrace/bun"

	"apptbook/internal/domain"
	"apptbook/internal/store"
)

const uniqueViolation = "23505"

type Repo struct {
	db *bun.DB
}

func NewRepo(db *bun.DB) *Repo {
	return &Repo{db: db}
}

var _ store.Repository = (*Repo)(nil)

type dayTx struct {
	tx bun.Tx
}

func (r *Repo) InDayTransaction(ctx context.Context, businessID string, dates []time.Time, fn func(ctx context.Context, tx store.DayTx) error) error {
	return r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock_shared(hashtext(?))", store.HoursLockKey(businessID)).Exec(ctx); err != nil {
			return err
		}
		for _, d := range store.LockOrder(dates) {
			if err := lockDay(ctx, tx, businessID, d); err != nil {
				return err
			}
		}
		return fn(ctx, dayTx{tx: tx})
	})
}

func lockDay(ctx context.Context, tx bun.Tx, businessID string, date time.Time) error {
	_, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", store.LockKey(businessID, date)).Exec(ctx)
	return err
}

func (r *Repo) GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, r.db, businessID, id)
}

func (r *Repo) ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error) {
	return listAppointments(ctx, r.db, businessID, date)
}

func (r *Repo) Calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error) {
	return calendar(ctx, r.db, businessID)
}

func calendar(ctx context.Context, db bun.IDB, businessID string) (*domain.WorkingHours, error) {
	configs, err := listWeekdayConfigs(ctx, db, businessID)
	if err != nil {
		return nil, err
	}
	return domain.NewWorkingHours(configs...)
}

func (r *Repo) UpsertWeekdayConfig(ctx context.Context, cfg domain.WeekdayConfig) (domain.WeekdayConfig, error) {
	if err := cfg.Validate(); err != nil {
		return domain.WeekdayConfig{}, err
	}
	err := r.db.RunInTx(ctx, nil, func(ctx context.Context, tx bun.Tx) error {
		if _, err := tx.NewRaw("SELECT pg_advisory_xact_lock(hashtext(?))", store.HoursLockKey(cfg.BusinessID)).Exec(ctx); err != nil {
			return err
		}
		_, err := tx.NewInsert().
			Model(&cfg).
			On("CONFLICT (business_id, weekday) DO UPDATE").
			Set("active = EXCLUDED.active").
			Set("open_minute = EXCLUDED.open_minute").
			Set("close_minute = EXCLUDED.close_minute").
			Set("break_start_minute = EXCLUDED.break_start_minute").
			Set("break_end_minute = EXCLUDED.break_end_minute").
			Set("updated_at = EXCLUDED.updated_at").
			Exec(ctx)
		return err
	})
	if err != nil {
		return domain.WeekdayConfig{}, err
	}
	return cfg, nil
}

func (r *Repo) ListWeekdayConfigs(ctx context.Context, businessID string) ([]domain.WeekdayConfig, error) {
	return listWeekdayConfigs(ctx, r.db, businessID)
}

func listWeekdayConfigs(ctx context.Context, db bun.IDB, businessID string) ([]domain.WeekdayConfig, error) {
	var rows []domain.WeekdayConfig
	err := db.NewSelect().
		Model(&rows).
		Where("business_id = ?", businessID).
		OrderExpr("weekday ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (t dayTx) Calendar(ctx context.Context, businessID string) (*domain.WorkingHours, error) {
	return calendar(ctx, t.tx, businessID)
}

func (t dayTx) GetAppointment(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error) {
	return getAppointment(ctx, t.tx, businessID, id)
}

func (t dayTx) ListAppointments(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error) {
	return listAppointments(ctx, t.tx, businessID, date)
}

func (t dayTx) InsertAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	appt.Date = domain.DateOf(appt.Date)

	// A savepoint keeps the outer transaction usable after a unique violation.
	err := t.tx.RunInTx(ctx, nil, func(ctx context.Context, sp bun.Tx) error {
		_, err := sp.NewInsert().Model(&appt).Exec(ctx)
		return err
	})
	if err == nil {
		return appt, nil
	}

	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != uniqueViolation {
		return domain.Appointment{}, err
	}
	existing, selectErr := getAppointment(ctx, t.tx, appt.BusinessID, appt.ID)
	if selectErr != nil {
		if errors.Is(selectErr, store.ErrNotFound) {
			// Same id under another business.
			return domain.Appointment{}, store.ErrIdempotencyConflict
		}
		return domain.Appointment{}, err
	}
	if !existing.SameBooking(appt) {
		return domain.Appointment{}, store.ErrIdempotencyConflict
	}
	return existing, nil
}

func (t dayTx) UpdateAppointment(ctx context.Context, appt domain.Appointment) (domain.Appointment, error) {
	appt.Date = domain.DateOf(appt.Date)
	res, err := t.tx.NewUpdate().
		Model(&appt).
		ExcludeColumn("id", "business_id", "created_at").
		Where("id = ?", appt.ID).
		Where("business_id = ?", appt.BusinessID).
		Exec(ctx)
	if err != nil {
		return domain.Appointment{}, err
	}
	if err := expectOneRow(res); err != nil {
		return domain.Appointment{}, err
	}
	return appt, nil
}

func (t dayTx) DeleteAppointment(ctx context.Context, businessID string, id uuid.UUID) error {
	res, err := t.tx.NewDelete().
		Model((*domain.Appointment)(nil)).
		Where("business_id = ?", businessID).
		Where("id = ?", id).
		Exec(ctx)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

func getAppointment(ctx context.Context, db bun.IDB, businessID string, id uuid.UUID) (domain.Appointment, error) {
	var out domain.Appointment
	err := db.NewSelect().
		Model(&out).
		Where("business_id = ?", businessID).
		Where("id = ?", id).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.Appointment{}, store.ErrNotFound
		}
		return domain.Appointment{}, err
	}
	out.Date = domain.DateOf(out.Date)
	return out, nil
}

func listAppointments(ctx context.Context, db bun.IDB, businessID string, date time.Time) ([]domain.Appointment, error) {
	var rows []domain.Appointment
	err := db.NewSelect().
		Model(&rows).
		Where("business_id = ?", businessID).
		Where("date = ?::date", domain.FormatDate(date)).
		OrderExpr("start_minute ASC, created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, err
	}
	for i := range rows {
		rows[i].Date = domain.DateOf(rows[i].Date)
	}
	return rows, nil
}

func expectOneRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}
