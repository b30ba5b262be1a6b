package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
	"github.com/uptrace/bun"

	"apptbook/internal/config"
	"apptbook/internal/loyalty"
	"apptbook/internal/notify"
	"apptbook/internal/redisclient"
	"apptbook/internal/service/booking"
	"apptbook/internal/store"
	"apptbook/internal/store/memory"
	"apptbook/internal/store/postgres"
	"apptbook/internal/transport/rest"
)

// app holds the long-lived components shared by serve and seed, along with
// what it takes to shut them down in reverse order.
type app struct {
	cfg    config.Config
	log    *slog.Logger
	db     *bun.DB
	rdb    *redis.Client
	repo   store.Repository
	events *notify.Dispatcher
	engine *booking.Engine
	deps   []rest.Dependency
}

func buildApp(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{cfg: cfg, log: log}

	if err := a.openStore(ctx); err != nil {
		a.close(ctx)
		return nil, err
	}
	if cfg.RedisAddr != "" {
		rdb, err := redisclient.New(ctx, redisclient.Options{
			Addr:     cfg.RedisAddr,
			Username: cfg.RedisUsername,
			Password: cfg.RedisPassword,
			DB:       cfg.RedisDB,
		})
		if err != nil {
			a.close(ctx)
			return nil, err
		}
		a.rdb = rdb
		a.deps = append(a.deps, rest.Dependency{
			Name: "redis",
			Ping: func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
		})
		log.Info("connected to redis", slog.String("redis_addr", cfg.RedisAddr))
	}

	sink, err := a.eventSink()
	if err != nil {
		a.close(ctx)
		return nil, err
	}
	a.events = notify.NewDispatcher(sink, notify.Options{
		Buffer:      cfg.NotifyBuffer,
		Workers:     cfg.NotifyWorkers,
		SendTimeout: cfg.NotifySendTimeout,
		Logger:      log,
	})

	var ledger loyalty.Ledger = loyalty.NewMemoryLedger()
	if cfg.LoyaltyStore == config.LoyaltyRedis {
		ledger = loyalty.NewRedisLedger(a.rdb, "")
	}

	a.engine = booking.NewEngine(a.repo, booking.Options{
		SlotStep:          cfg.SlotStepMinutes,
		Notifier:          a.events,
		Loyalty:           loyalty.NewCrediter(ledger, cfg.LoyaltyCentsPerPoint, log),
		SideEffectTimeout: cfg.SideEffectTimeout,
		Logger:            log,
	})
	return a, nil
}

func (a *app) openStore(ctx context.Context) error {
	if a.cfg.DatabaseURL == "" {
		a.log.Warn("database.url not set; using in-memory store")
		a.repo = memory.New()
		return nil
	}

	a.log.Info("connecting to database", databaseLogArgs(a.cfg.DatabaseURL)...)
	db, err := postgres.Open(ctx, a.cfg.DatabaseURL, postgres.PoolConfig{
		MaxOpenConns:    a.cfg.DBMaxOpenConns,
		MaxIdleConns:    a.cfg.DBMaxIdleConns,
		ConnMaxLifetime: a.cfg.DBConnMaxLifetime,
		ConnMaxIdleTime: a.cfg.DBConnMaxIdleTime,
	})
	if err != nil {
		args := append([]any{slog.Any("err", err)}, databaseLogArgs(a.cfg.DatabaseURL)...)
		a.log.Error("database connection failed", args...)
		return err
	}
	a.db = db

	if a.cfg.DBAutoMigrate {
		if err := postgres.RunMigrations(db.DB, postgres.MigrateUp, a.log); err != nil {
			return err
		}
	}

	a.repo = postgres.NewRepo(db)
	a.deps = append(a.deps, rest.Dependency{Name: "postgres", Critical: true, Ping: db.PingContext})
	return nil
}

func (a *app) eventSink() (notify.Sink, error) {
	switch a.cfg.NotifySink {
	case config.SinkLog:
		return notify.NewLogSink(a.log), nil
	case config.SinkRedis:
		if a.rdb == nil {
			return nil, errors.New("redis event sink needs a redis connection")
		}
		return notify.NewRedisSink(a.rdb, a.cfg.NotifyChannel), nil
	case config.SinkKafka:
		return notify.NewKafkaSink(a.cfg.KafkaBrokers, a.cfg.KafkaTopic), nil
	default:
		return nil, fmt.Errorf("unknown event sink %q", a.cfg.NotifySink)
	}
}

// close drains side effects before closing the connections they use.
func (a *app) close(ctx context.Context) {
	if a.engine != nil {
		if err := a.engine.Close(ctx); err != nil {
			a.log.Warn("side effects did not drain", slog.Any("err", err))
		}
	}
	if a.events != nil {
		if err := a.events.Close(ctx); err != nil {
			a.log.Warn("event dispatcher close failed", slog.Any("err", err))
		}
	}
	if a.rdb != nil {
		if err := a.rdb.Close(); err != nil {
			a.log.Warn("redis close failed", slog.Any("err", err))
		}
	}
	if a.db != nil {
		if err := postgres.Close(a.db); err != nil {
			a.log.Warn("database close failed", slog.Any("err", err))
		}
	}
}
