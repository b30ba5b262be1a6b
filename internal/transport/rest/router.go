// Package rest exposes the booking engine over JSON/HTTP.
package rest

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"apptbook/internal/domain"
	"apptbook/internal/service/booking"
)

type bookingService interface {
	AvailableSlots(ctx context.Context, businessID string, date time.Time, durationMinutes int) ([]domain.Clock, error)
	Create(ctx context.Context, in booking.CreateInput) (domain.Appointment, error)
	Get(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error)
	ListDay(ctx context.Context, businessID string, date time.Time) ([]domain.Appointment, error)
	Reschedule(ctx context.Context, in booking.RescheduleInput) (domain.Appointment, error)
	Swap(ctx context.Context, in booking.SwapInput) (domain.Appointment, domain.Appointment, error)
	Cancel(ctx context.Context, businessID string, id uuid.UUID) (domain.Appointment, error)
	Delete(ctx context.Context, businessID string, id uuid.UUID) error
	RegisterPayment(ctx context.Context, in booking.PaymentInput) (domain.Appointment, error)
	BookTemplate(ctx context.Context, tpl domain.AppointmentTemplate, windowStart, windowEnd time.Time) (booking.TemplateResult, error)
	WorkingHours(ctx context.Context, businessID string) ([]domain.WeekdayConfig, error)
	SetWeekday(ctx context.Context, cfg domain.WeekdayConfig) (domain.WeekdayConfig, error)
}

type RouterConfig struct {
	Service        bookingService
	Dependencies   []Dependency
	Logger         *slog.Logger
	RequestTimeout time.Duration
	Env            string
	Version        string
}

func NewRouter(cfg RouterConfig) http.Handler {
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	log = log.With(slog.String("component", "http"))

	r := chi.NewRouter()

	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware(log))
	r.Use(middleware.Recoverer)

	health := NewHealthHandler(cfg.Dependencies, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	h := &handlers{svc: cfg.Service, log: log}
	r.Route("/v1/businesses/{business}", func(r chi.Router) {
		if cfg.RequestTimeout > 0 {
			r.Use(middleware.Timeout(cfg.RequestTimeout))
		}

		r.Get("/slots", h.availableSlots)

		r.Get("/appointments", h.listAppointments)
		r.Post("/appointments", h.createAppointment)
		r.Post("/appointments/swap", h.swapAppointments)
		r.Get("/appointments/{id}", h.getAppointment)
		r.Delete("/appointments/{id}", h.deleteAppointment)
		r.Post("/appointments/{id}/reschedule", h.rescheduleAppointment)
		r.Post("/appointments/{id}/cancel", h.cancelAppointment)
		r.Post("/appointments/{id}/payments", h.registerPayment)

		r.Post("/templates/book", h.bookTemplate)

		r.Get("/working-hours", h.workingHours)
		r.Put("/working-hours", h.setWorkingDay)
	})

	return r
}
