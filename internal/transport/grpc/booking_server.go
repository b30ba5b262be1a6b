package grpc

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/timestamppb"

	"apptbook/internal/domain"
	"apptbook/internal/service/booking"
)

type BookingServer struct {
	svc bookingService
	log *slog.Logger
}

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

var _ BookingServiceServer = (*BookingServer)(nil)

func NewBookingServer(svc bookingService, log *slog.Logger) *BookingServer {
	if log == nil {
		log = slog.Default()
	}
	return &BookingServer{
		svc: svc,
		log: log.With(slog.String("component", "grpc.booking")),
	}
}

func (s *BookingServer) GetAvailableSlots(ctx context.Context, req *GetAvailableSlotsRequest) (*GetAvailableSlotsResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAvailableSlots"))

	if req == nil {
		return nil, nilRequest(log)
	}
	date, err := parseDate(log, "date", req.Date)
	if err != nil {
		return nil, err
	}

	slots, err := s.svc.AvailableSlots(ctx, req.BusinessId, date, int(req.DurationMinutes))
	if err != nil {
		return nil, statusError(log, "available slots lookup failed", err, slog.String("business_id", req.BusinessId))
	}

	out := make([]string, 0, len(slots))
	for _, c := range slots {
		out = append(out, c.String())
	}
	log.Debug("available slots listed", slog.String("business_id", req.BusinessId), slog.String("date", req.Date), slog.Int("count", len(out)))
	return &GetAvailableSlotsResponse{Slots: out}, nil
}

func (s *BookingServer) CreateAppointment(ctx context.Context, req *CreateAppointmentRequest) (*CreateAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CreateAppointment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	date, err := parseDate(log, "date", req.Date)
	if err != nil {
		return nil, err
	}
	start, err := parseClock(log, "start_time", req.StartTime)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Create(ctx, booking.CreateInput{
		BusinessID:      req.BusinessId,
		ClientID:        req.ClientId,
		ServiceID:       req.ServiceId,
		Date:            date,
		StartTime:       start,
		DurationMinutes: int(req.DurationMinutes),
		AmountTotal:     req.AmountTotal,
		AmountPaid:      req.AmountPaid,
		PaymentMethod:   req.PaymentMethod,
		Origin:          domain.Origin(req.Origin),
		Notes:           req.Notes,
		IdempotencyKey:  idempotencyKey(ctx),
	})
	if err != nil {
		return nil, statusError(log, "appointment create failed", err,
			slog.String("business_id", req.BusinessId),
			slog.String("date", req.Date),
			slog.String("start_time", req.StartTime),
		)
	}

	log.Info(
		"appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("business_id", appt.BusinessID),
		slog.String("date", domain.FormatDate(appt.Date)),
		slog.String("start_time", appt.StartTime.String()),
	)
	return &CreateAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func idempotencyKey(ctx context.Context) string {
	md, ok := metadata.FromIncomingContext(ctx)
	if !ok {
		return ""
	}
	values := md.Get("idempotency-key")
	if len(values) == 0 {
		values = md.Get("x-idempotency-key")
	}
	if len(values) == 0 {
		return ""
	}
	return strings.TrimSpace(values[0])
}

func (s *BookingServer) GetAppointment(ctx context.Context, req *GetAppointmentRequest) (*GetAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "GetAppointment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentId)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Get(ctx, req.BusinessId, id)
	if err != nil {
		return nil, statusError(log, "appointment get failed", err, slog.String("appointment_id", req.AppointmentId))
	}
	return &GetAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *BookingServer) ListAppointments(ctx context.Context, req *ListAppointmentsRequest) (*ListAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "ListAppointments"))

	if req == nil {
		return nil, nilRequest(log)
	}
	date, err := parseDate(log, "date", req.Date)
	if err != nil {
		return nil, err
	}

	appts, err := s.svc.ListDay(ctx, req.BusinessId, date)
	if err != nil {
		return nil, statusError(log, "appointments list failed", err, slog.String("business_id", req.BusinessId))
	}

	out := make([]*Appointment, 0, len(appts))
	for _, a := range appts {
		out = append(out, toWireAppointment(a))
	}
	log.Debug("appointments listed", slog.String("business_id", req.BusinessId), slog.String("date", req.Date), slog.Int("count", len(out)))
	return &ListAppointmentsResponse{Appointments: out}, nil
}

func (s *BookingServer) RescheduleAppointment(ctx context.Context, req *RescheduleAppointmentRequest) (*RescheduleAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "RescheduleAppointment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentId)
	if err != nil {
		return nil, err
	}
	date, err := parseDate(log, "new_date", req.NewDate)
	if err != nil {
		return nil, err
	}
	start, err := parseClock(log, "new_start_time", req.NewStartTime)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Reschedule(ctx, booking.RescheduleInput{
		BusinessID:    req.BusinessId,
		AppointmentID: id,
		NewDate:       date,
		NewStart:      start,
	})
	if err != nil {
		return nil, statusError(log, "appointment reschedule failed", err,
			slog.String("appointment_id", req.AppointmentId),
			slog.String("new_date", req.NewDate),
			slog.String("new_start_time", req.NewStartTime),
		)
	}

	log.Info("appointment rescheduled",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("date", domain.FormatDate(appt.Date)),
		slog.String("start_time", appt.StartTime.String()),
	)
	return &RescheduleAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *BookingServer) SwapAppointments(ctx context.Context, req *SwapAppointmentsRequest) (*SwapAppointmentsResponse, error) {
	log := s.log.With(slog.String("rpc", "SwapAppointments"))

	if req == nil {
		return nil, nilRequest(log)
	}
	first, err := parseID(log, "first_id", req.FirstId)
	if err != nil {
		return nil, err
	}
	second, err := parseID(log, "second_id", req.SecondId)
	if err != nil {
		return nil, err
	}

	a, b, err := s.svc.Swap(ctx, booking.SwapInput{BusinessID: req.BusinessId, FirstID: first, SecondID: second})
	if err != nil {
		return nil, statusError(log, "appointment swap failed", err,
			slog.String("first_id", req.FirstId),
			slog.String("second_id", req.SecondId),
		)
	}

	log.Info("appointments swapped", slog.String("first_id", a.ID.String()), slog.String("second_id", b.ID.String()))
	return &SwapAppointmentsResponse{First: toWireAppointment(a), Second: toWireAppointment(b)}, nil
}

func (s *BookingServer) CancelAppointment(ctx context.Context, req *CancelAppointmentRequest) (*CancelAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "CancelAppointment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentId)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.Cancel(ctx, req.BusinessId, id)
	if err != nil {
		return nil, statusError(log, "appointment cancel failed", err, slog.String("appointment_id", req.AppointmentId))
	}

	log.Info("appointment cancelled", slog.String("appointment_id", appt.ID.String()))
	return &CancelAppointmentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *BookingServer) DeleteAppointment(ctx context.Context, req *DeleteAppointmentRequest) (*DeleteAppointmentResponse, error) {
	log := s.log.With(slog.String("rpc", "DeleteAppointment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentId)
	if err != nil {
		return nil, err
	}

	if err := s.svc.Delete(ctx, req.BusinessId, id); err != nil {
		return nil, statusError(log, "appointment delete failed", err, slog.String("appointment_id", req.AppointmentId))
	}

	log.Info("appointment deleted", slog.String("appointment_id", id.String()), slog.String("business_id", req.BusinessId))
	return &DeleteAppointmentResponse{}, nil
}

func (s *BookingServer) RegisterPayment(ctx context.Context, req *RegisterPaymentRequest) (*RegisterPaymentResponse, error) {
	log := s.log.With(slog.String("rpc", "RegisterPayment"))

	if req == nil {
		return nil, nilRequest(log)
	}
	id, err := parseID(log, "appointment_id", req.AppointmentId)
	if err != nil {
		return nil, err
	}

	appt, err := s.svc.RegisterPayment(ctx, booking.PaymentInput{
		BusinessID:    req.BusinessId,
		AppointmentID: id,
		Amount:        req.Amount,
		Method:        req.Method,
	})
	if err != nil {
		return nil, statusError(log, "payment registration failed", err,
			slog.String("appointment_id", req.AppointmentId),
			slog.Int64("amount", req.Amount),
		)
	}

	log.Info("payment registered",
		slog.String("appointment_id", appt.ID.String()),
		slog.Int64("amount", req.Amount),
		slog.String("payment_status", string(appt.PaymentStatus)),
		slog.String("lifecycle_status", string(appt.LifecycleStatus)),
	)
	return &RegisterPaymentResponse{Appointment: toWireAppointment(appt)}, nil
}

func (s *BookingServer) BookTemplate(ctx context.Context, req *BookTemplateRequest) (*BookTemplateResponse, error) {
	log := s.log.With(slog.String("rpc", "BookTemplate"))

	if req == nil {
		return nil, nilRequest(log)
	}
	if req.Template == nil {
		log.Warn("invalid request", slog.String("reason", "missing_template"), slog.String("business_id", req.BusinessId))
		return nil, status.Error(codes.InvalidArgument, "template is required")
	}
	tpl, err := fromWireTemplate(log, req.BusinessId, req.Template)
	if err != nil {
		return nil, err
	}
	windowStart, err := parseDate(log, "window_start", req.WindowStart)
	if err != nil {
		return nil, err
	}
	windowEnd, err := parseDate(log, "window_end", req.WindowEnd)
	if err != nil {
		return nil, err
	}

	res, err := s.svc.BookTemplate(ctx, tpl, windowStart, windowEnd)
	if err != nil {
		return nil, statusError(log, "template booking failed", err, slog.String("business_id", req.BusinessId))
	}

	out := &BookTemplateResponse{
		Booked:  make([]*Appointment, 0, len(res.Booked)),
		Skipped: make([]SkippedOccurrence, 0, len(res.Skipped)),
	}
	for _, a := range res.Booked {
		out.Booked = append(out.Booked, toWireAppointment(a))
	}
	for _, sk := range res.Skipped {
		out.Skipped = append(out.Skipped, SkippedOccurrence{Date: domain.FormatDate(sk.Date), Reason: sk.Reason.Error()})
	}

	log.Info("template booked",
		slog.String("business_id", req.BusinessId),
		slog.Int("booked", len(out.Booked)),
		slog.Int("skipped", len(out.Skipped)),
	)
	return out, nil
}

func (s *BookingServer) SetWorkingHours(ctx context.Context, req *SetWorkingHoursRequest) (*SetWorkingHoursResponse, error) {
	log := s.log.With(slog.String("rpc", "SetWorkingHours"))

	if req == nil {
		return nil, nilRequest(log)
	}
	if req.Day == nil {
		log.Warn("invalid request", slog.String("reason", "missing_day"), slog.String("business_id", req.BusinessId))
		return nil, status.Error(codes.InvalidArgument, "day is required")
	}
	cfg, err := fromWireDay(log, req.BusinessId, req.Day)
	if err != nil {
		return nil, err
	}

	saved, err := s.svc.SetWeekday(ctx, cfg)
	if err != nil {
		return nil, statusError(log, "working hours update failed", err, slog.String("business_id", req.BusinessId))
	}

	log.Info("working hours updated", slog.String("business_id", req.BusinessId), slog.String("weekday", saved.Weekday.String()))
	return &SetWorkingHoursResponse{Day: toWireDay(saved)}, nil
}

func (s *BookingServer) GetWorkingHours(ctx context.Context, req *GetWorkingHoursRequest) (*GetWorkingHoursResponse, error) {
	log := s.log.With(slog.String("rpc", "GetWorkingHours"))

	if req == nil {
		return nil, nilRequest(log)
	}

	cfgs, err := s.svc.WorkingHours(ctx, req.BusinessId)
	if err != nil {
		return nil, statusError(log, "working hours lookup failed", err, slog.String("business_id", req.BusinessId))
	}

	days := make([]*WorkingDay, 0, len(cfgs))
	for _, c := range cfgs {
		days = append(days, toWireDay(c))
	}
	return &GetWorkingHoursResponse{Days: days}, nil
}

// statusError maps engine errors onto gRPC codes. Anything unrecognised is
// logged in full and surfaced as Internal without detail.
func statusError(log *slog.Logger, msg string, err error, attrs ...any) error {
	args := append([]any{slog.Any("err", err)}, attrs...)

	var conflict *booking.ConflictError
	var vErr *booking.ValidationError
	switch {
	case errors.As(err, &conflict):
		log.Info(msg, append(args, slog.String("conflicting_id", conflict.ConflictingID.String()))...)
		return status.Error(codes.FailedPrecondition, conflict.Error())
	case errors.Is(err, booking.ErrAlreadyTerminal):
		log.Info(msg, args...)
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, booking.ErrIdempotencyConflict):
		log.Info(msg, args...)
		return status.Error(codes.FailedPrecondition, "This request key was already used for a different appointment. Use a new key.")
	case errors.Is(err, booking.ErrNotFound):
		log.Info(msg, args...)
		return status.Error(codes.NotFound, "appointment not found")
	case errors.As(err, &vErr):
		log.Warn("invalid request", args...)
		return status.Error(codes.InvalidArgument, vErr.Error())
	case errors.Is(err, booking.ErrBusy):
		log.Warn(msg, args...)
		return status.Error(codes.Aborted, err.Error())
	case errors.Is(err, context.DeadlineExceeded):
		log.Warn(msg, args...)
		return status.Error(codes.DeadlineExceeded, "deadline exceeded")
	case errors.Is(err, context.Canceled):
		log.Info(msg, args...)
		return status.Error(codes.Canceled, "request cancelled")
	default:
		log.Error(msg, args...)
		return status.Error(codes.Internal, "internal error")
	}
}

func nilRequest(log *slog.Logger) error {
	log.Warn("invalid request", slog.String("reason", "nil_request"))
	return status.Error(codes.InvalidArgument, "request is required")
}

func parseDate(log *slog.Logger, field, v string) (time.Time, error) {
	d, err := domain.ParseDate(strings.TrimSpace(v))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_date"), slog.String("field", field))
		return time.Time{}, status.Errorf(codes.InvalidArgument, "%s must be a date in YYYY-MM-DD form", field)
	}
	return d, nil
}

func parseClock(log *slog.Logger, field, v string) (domain.Clock, error) {
	c, err := domain.ParseClock(strings.TrimSpace(v))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_time"), slog.String("field", field))
		return 0, status.Errorf(codes.InvalidArgument, "%s must be a time in HH:MM form", field)
	}
	return c, nil
}

func parseOptionalClock(log *slog.Logger, field, v string) (*domain.Clock, error) {
	if strings.TrimSpace(v) == "" {
		return nil, nil
	}
	c, err := parseClock(log, field, v)
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func parseID(log *slog.Logger, field, v string) (uuid.UUID, error) {
	id, err := uuid.Parse(strings.TrimSpace(v))
	if err != nil {
		log.Warn("invalid request", slog.String("reason", "invalid_uuid"), slog.String("field", field))
		return uuid.Nil, status.Errorf(codes.InvalidArgument, "%s must be a UUID", field)
	}
	return id, nil
}

func fromWireTemplate(log *slog.Logger, businessID string, t *Template) (domain.AppointmentTemplate, error) {
	tpl := domain.AppointmentTemplate{
		BusinessID:      businessID,
		ClientID:        t.ClientId,
		ServiceID:       t.ServiceId,
		DurationMinutes: int(t.DurationMinutes),
		AmountTotal:     t.AmountTotal,
		PaymentMethod:   t.PaymentMethod,
		Notes:           t.Notes,
		IntervalWeeks:   int(t.IntervalWeeks),
	}
	if strings.TrimSpace(t.Id) != "" {
		id, err := parseID(log, "template.id", t.Id)
		if err != nil {
			return domain.AppointmentTemplate{}, err
		}
		tpl.ID = id
	}
	start, err := parseClock(log, "template.start_time", t.StartTime)
	if err != nil {
		return domain.AppointmentTemplate{}, err
	}
	tpl.StartTime = start
	from, err := parseDate(log, "template.from", t.From)
	if err != nil {
		return domain.AppointmentTemplate{}, err
	}
	tpl.From = from
	if strings.TrimSpace(t.Until) != "" {
		until, err := parseDate(log, "template.until", t.Until)
		if err != nil {
			return domain.AppointmentTemplate{}, err
		}
		tpl.Until = &until
	}
	if t.Count > 0 {
		count := int(t.Count)
		tpl.Count = &count
	}
	for _, wd := range t.Weekdays {
		tpl.Weekdays = append(tpl.Weekdays, time.Weekday(wd))
	}
	return tpl, nil
}

func fromWireDay(log *slog.Logger, businessID string, d *WorkingDay) (domain.WeekdayConfig, error) {
	open, err := parseClock(log, "day.open_time", d.OpenTime)
	if err != nil {
		return domain.WeekdayConfig{}, err
	}
	closing, err := parseClock(log, "day.close_time", d.CloseTime)
	if err != nil {
		return domain.WeekdayConfig{}, err
	}
	breakStart, err := parseOptionalClock(log, "day.break_start", d.BreakStart)
	if err != nil {
		return domain.WeekdayConfig{}, err
	}
	breakEnd, err := parseOptionalClock(log, "day.break_end", d.BreakEnd)
	if err != nil {
		return domain.WeekdayConfig{}, err
	}
	return domain.WeekdayConfig{
		BusinessID: businessID,
		Weekday:    time.Weekday(d.Weekday),
		Active:     d.Active,
		OpenTime:   open,
		CloseTime:  closing,
		BreakStart: breakStart,
		BreakEnd:   breakEnd,
	}, nil
}

func toWireDay(c domain.WeekdayConfig) *WorkingDay {
	d := &WorkingDay{
		Weekday:   int32(c.Weekday),
		Active:    c.Active,
		OpenTime:  c.OpenTime.String(),
		CloseTime: c.CloseTime.String(),
	}
	if c.BreakStart != nil {
		d.BreakStart = c.BreakStart.String()
	}
	if c.BreakEnd != nil {
		d.BreakEnd = c.BreakEnd.String()
	}
	return d
}

func toWireAppointment(a domain.Appointment) *Appointment {
	out := &Appointment{
		Id:              a.ID.String(),
		BusinessId:      a.BusinessID,
		ClientId:        a.ClientID,
		ServiceId:       a.ServiceID,
		Date:            domain.FormatDate(a.Date),
		StartTime:       a.StartTime.String(),
		EndTime:         a.EndTime().String(),
		DurationMinutes: int32(a.DurationMinutes),
		AmountTotal:     a.AmountTotal,
		AmountPaid:      a.AmountPaid,
		AmountDue:       a.AmountDue,
		PaymentMethod:   a.PaymentMethod,
		PaymentStatus:   string(a.PaymentStatus),
		LifecycleStatus: string(a.LifecycleStatus),
		Origin:          string(a.Origin),
		Notes:           a.Notes,
		CreatedAt:       timestamppb.New(a.CreatedAt),
		UpdatedAt:       timestamppb.New(a.UpdatedAt),
	}
	if a.TemplateID != nil {
		out.TemplateId = a.TemplateID.String()
	}
	if a.CancelledAt != nil {
		out.CancelledAt = timestamppb.New(*a.CancelledAt)
	}
	return out
}
