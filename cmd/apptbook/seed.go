package main

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/brianvoe/gofakeit/v7"
	"github.com/spf13/cobra"

	"apptbook/internal/domain"
	"apptbook/internal/service/booking"
)

type seedOptions struct {
	businesses int
	days       int
	perDay     int
	seed       uint64
}

func seedCmd() *cobra.Command {
	var opts seedOptions
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Fill the store with fake businesses and appointments",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := loadConfig("seed")
			if err != nil {
				return err
			}
			if opts.businesses <= 0 || opts.days <= 0 || opts.perDay < 0 {
				return errors.New("--businesses and --days must be positive, --per-day non-negative")
			}
			if cfg.DatabaseURL == "" {
				log.Warn("database.url not set; seeded data will be lost on exit")
			}

			a, err := buildApp(cmd.Context(), cfg, log)
			if err != nil {
				return err
			}
			defer func() {
				ctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
				defer cancel()
				a.close(ctx)
			}()

			return seed(cmd.Context(), a.engine, log, opts)
		},
	}

	cmd.Flags().IntVar(&opts.businesses, "businesses", 3, "number of businesses to create")
	cmd.Flags().IntVar(&opts.days, "days", 14, "number of days from today to fill")
	cmd.Flags().IntVar(&opts.perDay, "per-day", 6, "appointments to attempt per open day")
	cmd.Flags().Uint64Var(&opts.seed, "seed", 0, "faker seed (0 picks a random one)")
	return cmd
}

var (
	seedServices  = []string{"haircut", "colour", "beard-trim", "consultation", "massage", "manicure"}
	seedMethods   = []string{"cash", "card", "transfer"}
	seedDurations = []int{30, 45, 60, 90}
)

func seed(ctx context.Context, engine *booking.Engine, log *slog.Logger, opts seedOptions) error {
	f := gofakeit.New(opts.seed)
	today := time.Now().UTC().Truncate(24 * time.Hour)

	for b := 0; b < opts.businesses; b++ {
		businessID := f.UUID()
		log := log.With(slog.String("business_id", businessID), slog.String("business", f.Company()))

		if err := seedHours(ctx, engine, businessID); err != nil {
			return err
		}

		booked := 0
		for d := 0; d < opts.days; d++ {
			date := today.AddDate(0, 0, d)
			for i := 0; i < opts.perDay; i++ {
				duration := seedDurations[f.Number(0, len(seedDurations)-1)]
				slots, err := engine.AvailableSlots(ctx, businessID, date, duration)
				if err != nil {
					return err
				}
				if len(slots) == 0 {
					break
				}

				total := int64(f.Number(20, 150)) * 100
				var paid int64
				if f.Bool() {
					paid = total / 2
				}
				_, err = engine.Create(ctx, booking.CreateInput{
					BusinessID:      businessID,
					ClientID:        f.Name(),
					ServiceID:       f.RandomString(seedServices),
					Date:            date,
					StartTime:       slots[f.Number(0, len(slots)-1)],
					DurationMinutes: duration,
					AmountTotal:     total,
					AmountPaid:      paid,
					PaymentMethod:   f.RandomString(seedMethods),
					Origin:          domain.OriginManual,
				})
				if err != nil {
					return err
				}
				booked++
			}
		}
		log.Info("seeded business", slog.Int("appointments", booked), slog.Int("days", opts.days))
	}
	return nil
}

// seedHours opens Monday to Friday 09:00-18:00 with a lunch break and
// Saturday mornings.
func seedHours(ctx context.Context, engine *booking.Engine, businessID string) error {
	breakStart, breakEnd := domain.NewClock(13, 0), domain.NewClock(14, 0)
	for wd := time.Monday; wd <= time.Saturday; wd++ {
		cfg := domain.WeekdayConfig{
			BusinessID: businessID,
			Weekday:    wd,
			Active:     true,
			OpenTime:   domain.NewClock(9, 0),
			CloseTime:  domain.NewClock(18, 0),
			BreakStart: &breakStart,
			BreakEnd:   &breakEnd,
		}
		if wd == time.Saturday {
			cfg.CloseTime = domain.NewClock(13, 0)
			cfg.BreakStart, cfg.BreakEnd = nil, nil
		}
		if _, err := engine.SetWeekday(ctx, cfg); err != nil {
			return err
		}
	}
	return nil
}
