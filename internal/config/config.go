package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

type Config struct {
	Env                string
	GRPCAddr           string
	HTTPAddr           string
	GRPCRequestTimeout time.Duration
	HTTPRequestTimeout time.Duration
	ShutdownTimeout    time.Duration
	LogLevel           string

	// DatabaseURL selects the Postgres store. Empty means in-memory.
	DatabaseURL       string
	DBMaxOpenConns    int
	DBMaxIdleConns    int
	DBConnMaxLifetime time.Duration
	DBConnMaxIdleTime time.Duration
	DBAutoMigrate     bool

	RedisAddr     string
	RedisUsername string
	RedisPassword string
	RedisDB       int

	KafkaBrokers []string
	KafkaTopic   string

	NotifySink        string
	NotifyBuffer      int
	NotifyWorkers     int
	NotifySendTimeout time.Duration
	NotifyChannel     string

	LoyaltyStore         string
	LoyaltyCentsPerPoint int64

	SlotStepMinutes   int
	SideEffectTimeout time.Duration

	OTelEnabled     bool
	OTelEndpoint    string
	OTelSampleRatio float64
}

const (
	SinkLog   = "log"
	SinkRedis = "redis"
	SinkKafka = "kafka"

	LoyaltyMemory = "memory"
	LoyaltyRedis  = "redis"
)

// Load reads configuration from the environment (APPTBOOK_ prefix), after
// loading a .env file from the working directory if one exists.
func Load() (Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetEnvPrefix("APPTBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("env", "development")
	v.SetDefault("grpc.addr", "0.0.0.0:50051")
	v.SetDefault("grpc.request_timeout", "10s")
	v.SetDefault("http.addr", "0.0.0.0:8080")
	v.SetDefault("http.request_timeout", "10s")
	v.SetDefault("database.url", "")
	v.SetDefault("database.max_open_conns", 20)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.auto_migrate", false)
	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.username", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "apptbook.appointments")
	v.SetDefault("notify.sink", SinkLog)
	v.SetDefault("notify.buffer", 1024)
	v.SetDefault("notify.workers", 2)
	v.SetDefault("notify.send_timeout", "5s")
	v.SetDefault("notify.channel", "apptbook:events")
	v.SetDefault("loyalty.store", LoyaltyMemory)
	v.SetDefault("loyalty.cents_per_point", 100)
	v.SetDefault("booking.slot_step_minutes", 30)
	v.SetDefault("booking.side_effect_timeout", "10s")
	v.SetDefault("otel.enabled", false)
	v.SetDefault("otel.endpoint", "localhost:4317")
	v.SetDefault("otel.sample_ratio", 1.0)
	v.SetDefault("shutdown.timeout", "10s")
	v.SetDefault("log.level", "info")

	_ = v.BindEnv("grpc.addr", "APPTBOOK_GRPC_ADDR", "GRPC_ADDR")
	_ = v.BindEnv("http.addr", "APPTBOOK_HTTP_ADDR", "HTTP_ADDR")
	_ = v.BindEnv("database.url", "APPTBOOK_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("redis.addr", "APPTBOOK_REDIS_ADDR", "REDIS_ADDR")
	_ = v.BindEnv("kafka.brokers", "APPTBOOK_KAFKA_BROKERS", "KAFKA_BROKERS")
	_ = v.BindEnv("otel.enabled", "APPTBOOK_OTEL_ENABLED", "OTEL_ENABLED")
	_ = v.BindEnv("otel.endpoint", "APPTBOOK_OTEL_ENDPOINT", "OTEL_EXPORTER_OTLP_ENDPOINT")
	_ = v.BindEnv("otel.sample_ratio", "APPTBOOK_OTEL_SAMPLE_RATIO", "OTEL_SAMPLING_RATIO")
	_ = v.BindEnv("shutdown.timeout", "APPTBOOK_SHUTDOWN_TIMEOUT", "SHUTDOWN_TIMEOUT")
	_ = v.BindEnv("log.level", "APPTBOOK_LOG_LEVEL", "LOG_LEVEL")

	cfg := Config{
		Env:                  v.GetString("env"),
		GRPCAddr:             strings.TrimSpace(v.GetString("grpc.addr")),
		HTTPAddr:             strings.TrimSpace(v.GetString("http.addr")),
		LogLevel:             v.GetString("log.level"),
		DatabaseURL:          strings.TrimSpace(v.GetString("database.url")),
		DBMaxOpenConns:       v.GetInt("database.max_open_conns"),
		DBMaxIdleConns:       v.GetInt("database.max_idle_conns"),
		DBAutoMigrate:        v.GetBool("database.auto_migrate"),
		RedisAddr:            strings.TrimSpace(v.GetString("redis.addr")),
		RedisUsername:        v.GetString("redis.username"),
		RedisPassword:        v.GetString("redis.password"),
		RedisDB:              v.GetInt("redis.db"),
		KafkaBrokers:         splitList(v.GetString("kafka.brokers")),
		KafkaTopic:           strings.TrimSpace(v.GetString("kafka.topic")),
		NotifySink:           strings.ToLower(strings.TrimSpace(v.GetString("notify.sink"))),
		NotifyBuffer:         v.GetInt("notify.buffer"),
		NotifyWorkers:        v.GetInt("notify.workers"),
		NotifyChannel:        v.GetString("notify.channel"),
		LoyaltyStore:         strings.ToLower(strings.TrimSpace(v.GetString("loyalty.store"))),
		LoyaltyCentsPerPoint: v.GetInt64("loyalty.cents_per_point"),
		SlotStepMinutes:      v.GetInt("booking.slot_step_minutes"),
		OTelEnabled:          v.GetBool("otel.enabled"),
		OTelEndpoint:         strings.TrimSpace(v.GetString("otel.endpoint")),
		OTelSampleRatio:      v.GetFloat64("otel.sample_ratio"),
	}
	durations := map[string]*time.Duration{
		"grpc.request_timeout":        &cfg.GRPCRequestTimeout,
		"http.request_timeout":        &cfg.HTTPRequestTimeout,
		"shutdown.timeout":            &cfg.ShutdownTimeout,
		"database.conn_max_lifetime":  &cfg.DBConnMaxLifetime,
		"database.conn_max_idle_time": &cfg.DBConnMaxIdleTime,
		"notify.send_timeout":         &cfg.NotifySendTimeout,
		"booking.side_effect_timeout": &cfg.SideEffectTimeout,
	}
	for key, dst := range durations {
		d, err := time.ParseDuration(v.GetString(key))
		if err != nil {
			return Config{}, fmt.Errorf("config %s: %w", key, err)
		}
		*dst = d
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c Config) validate() error {
	switch c.NotifySink {
	case SinkLog:
	case SinkRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config notify.sink=redis requires redis.addr")
		}
	case SinkKafka:
		if len(c.KafkaBrokers) == 0 {
			return fmt.Errorf("config notify.sink=kafka requires kafka.brokers")
		}
		if c.KafkaTopic == "" {
			return fmt.Errorf("config notify.sink=kafka requires kafka.topic")
		}
	default:
		return fmt.Errorf("config notify.sink: unknown sink %q", c.NotifySink)
	}

	switch c.LoyaltyStore {
	case LoyaltyMemory:
	case LoyaltyRedis:
		if c.RedisAddr == "" {
			return fmt.Errorf("config loyalty.store=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("config loyalty.store: unknown store %q", c.LoyaltyStore)
	}

	if c.LoyaltyCentsPerPoint <= 0 {
		return fmt.Errorf("config loyalty.cents_per_point must be positive")
	}
	if c.SlotStepMinutes <= 0 {
		return fmt.Errorf("config booking.slot_step_minutes must be positive")
	}
	if c.OTelSampleRatio < 0 || c.OTelSampleRatio > 1 {
		return fmt.Errorf("config otel.sample_ratio must be within [0,1]")
	}
	return nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
