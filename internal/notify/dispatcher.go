package notify

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/trace"
)

// Sink delivers a single event. Implementations must be safe for concurrent
// use by the dispatcher's workers.
type Sink interface {
	Send(ctx context.Context, e Event) error
	Close() error
}

type Options struct {
	Buffer      int
	Workers     int
	SendTimeout time.Duration
	Logger      *slog.Logger
}

// Dispatcher queues events and hands them to a Sink on background workers.
// Publish never blocks: when the queue is full the event is dropped and
// logged.
type Dispatcher struct {
	sink    Sink
	log     *slog.Logger
	timeout time.Duration

	mu     sync.RWMutex
	closed bool
	queue  chan queued
	wg     sync.WaitGroup
}

// queued pairs an event with the span context it was published under.
type queued struct {
	event Event
	span  trace.SpanContext
}

func NewDispatcher(sink Sink, opts Options) *Dispatcher {
	if opts.Buffer <= 0 {
		opts.Buffer = 256
	}
	if opts.Workers <= 0 {
		opts.Workers = 2
	}
	if opts.SendTimeout <= 0 {
		opts.SendTimeout = 5 * time.Second
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}

	d := &Dispatcher{
		sink:    sink,
		log:     opts.Logger.With(slog.String("component", "notify")),
		timeout: opts.SendTimeout,
		queue:   make(chan queued, opts.Buffer),
	}
	for i := 0; i < opts.Workers; i++ {
		d.wg.Add(1)
		go d.run()
	}
	return d
}

var ErrClosed = errors.New("dispatcher closed")

func (d *Dispatcher) Publish(ctx context.Context, e Event) error {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		return ErrClosed
	}
	select {
	case d.queue <- queued{event: e, span: trace.SpanContextFromContext(ctx)}:
		return nil
	default:
		d.log.Warn("notification dropped, queue full",
			slog.String("type", string(e.Type)),
			slog.String("appointment_id", e.AppointmentID.String()),
		)
		return nil
	}
}

func (d *Dispatcher) run() {
	defer d.wg.Done()
	for q := range d.queue {
		e := q.event
		ctx, cancel := context.WithTimeout(trace.ContextWithSpanContext(context.Background(), q.span), d.timeout)
		err := d.sink.Send(ctx, e)
		cancel()
		if err != nil {
			d.log.Error("notification delivery failed",
				slog.String("type", string(e.Type)),
				slog.String("appointment_id", e.AppointmentID.String()),
				slog.Any("err", err),
			)
		}
	}
}

// Close stops accepting events, waits for queued events to be delivered or
// for ctx to expire, then closes the sink.
func (d *Dispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		return ctx.Err()
	}
	return d.sink.Close()
}
