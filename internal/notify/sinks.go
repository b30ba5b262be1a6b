package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
)

// LogSink writes events to a structured logger. It is the default when no
// broker is configured.
type LogSink struct {
	log *slog.Logger
}

func NewLogSink(log *slog.Logger) *LogSink {
	return &LogSink{log: log.With(slog.String("sink", "log"))}
}

func (s *LogSink) Send(ctx context.Context, e Event) error {
	attrs := []any{
		slog.String("event_id", e.ID.String()),
		slog.String("type", string(e.Type)),
		slog.String("appointment_id", e.AppointmentID.String()),
		slog.String("business_id", e.BusinessID),
		slog.String("client_id", e.ClientID),
		slog.String("date", e.Date),
		slog.String("start_time", e.StartTime.String()),
	}
	if e.NewTime != nil {
		attrs = append(attrs, slog.String("new_time", e.NewTime.String()))
	}
	s.log.InfoContext(ctx, "appointment event", attrs...)
	return nil
}

func (s *LogSink) Close() error { return nil }

// RedisSink publishes events as JSON on a per-business channel
// "<prefix>:<business_id>", for live-update subscribers.
type RedisSink struct {
	rdb    redis.UniversalClient
	prefix string
}

func NewRedisSink(rdb redis.UniversalClient, prefix string) *RedisSink {
	if prefix == "" {
		prefix = "apptbook:events"
	}
	return &RedisSink{rdb: rdb, prefix: prefix}
}

func (s *RedisSink) Channel(businessID string) string {
	return s.prefix + ":" + businessID
}

func (s *RedisSink) Send(ctx context.Context, e Event) error {
	payload, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, s.Channel(e.BusinessID), payload).Err()
}

// Close is a no-op; the client is owned by the caller.
func (s *RedisSink) Close() error { return nil }

// KafkaSink writes events to a topic keyed by appointment id, so that events
// of one appointment stay ordered within a partition.
type KafkaSink struct {
	w *kafka.Writer
}

func NewKafkaSink(brokers []string, topic string) *KafkaSink {
	return &KafkaSink{w: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.Hash{},
		RequiredAcks: kafka.RequireAll,
		BatchTimeout: 50 * time.Millisecond,
	}}
}

func (s *KafkaSink) Send(ctx context.Context, e Event) error {
	msg, err := kafkaMessage(ctx, e)
	if err != nil {
		return err
	}
	return s.w.WriteMessages(ctx, msg)
}

func (s *KafkaSink) Close() error {
	return s.w.Close()
}

func kafkaMessage(ctx context.Context, e Event) (kafka.Message, error) {
	payload, err := json.Marshal(e)
	if err != nil {
		return kafka.Message{}, err
	}
	headers := []kafka.Header{
		{Key: "event_id", Value: []byte(e.ID.String())},
		{Key: "event_type", Value: []byte(e.Type)},
	}
	carrier := headerCarrier{headers: &headers}
	otel.GetTextMapPropagator().Inject(ctx, carrier)
	return kafka.Message{
		Key:     []byte(e.AppointmentID.String()),
		Value:   payload,
		Headers: headers,
		Time:    e.OccurredAt,
	}, nil
}

type headerCarrier struct {
	headers *[]kafka.Header
}

func (c headerCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c headerCarrier) Keys() []string {
	keys := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		keys = append(keys, h.Key)
	}
	return keys
}

func (c headerCarrier) Set(key, value string) {
	for i := range *c.headers {
		if (*c.headers)[i].Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafka.Header{Key: key, Value: []byte(value)})
}

var _ propagation.TextMapCarrier = headerCarrier{}
