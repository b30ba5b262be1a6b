package rest

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"apptbook/internal/domain"
	"apptbook/internal/service/booking"
)

type handlers struct {
	svc bookingService
	log *slog.Logger
}

func businessID(r *http.Request) string {
	return chi.URLParam(r, "business")
}

func (h *handlers) availableSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, ok := parseDate(w, "date", q.Get("date"))
	if !ok {
		return
	}
	duration, err := strconv.Atoi(q.Get("duration"))
	if err != nil {
		badRequest(w, "invalid_duration", "duration must be a whole number of minutes")
		return
	}

	slots, err := h.svc.AvailableSlots(r.Context(), businessID(r), date, duration)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.String())
	}
	writeJSON(w, http.StatusOK, SlotsResponse{Date: domain.FormatDate(date), DurationMinutes: duration, Slots: out})
}

func (h *handlers) listAppointments(w http.ResponseWriter, r *http.Request) {
	date, ok := parseDate(w, "date", r.URL.Query().Get("date"))
	if !ok {
		return
	}

	appts, err := h.svc.ListDay(r.Context(), businessID(r), date)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
}

func (h *handlers) createAppointment(w http.ResponseWriter, r *http.Request) {
	var req CreateAppointmentRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, ok := parseDate(w, "date", req.Date)
	if !ok {
		return
	}
	start, ok := parseClock(w, "start_time", req.StartTime)
	if !ok {
		return
	}

	appt, err := h.svc.Create(r.Context(), booking.CreateInput{
		BusinessID:      businessID(r),
		ClientID:        req.ClientID,
		ServiceID:       req.ServiceID,
		Date:            date,
		StartTime:       start,
		DurationMinutes: req.DurationMinutes,
		AmountTotal:     req.AmountTotal,
		AmountPaid:      req.AmountPaid,
		PaymentMethod:   req.PaymentMethod,
		Origin:          domain.Origin(req.Origin),
		Notes:           req.Notes,
		IdempotencyKey:  strings.TrimSpace(r.Header.Get("Idempotency-Key")),
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	h.log.Info("appointment created",
		slog.String("appointment_id", appt.ID.String()),
		slog.String("business_id", appt.BusinessID),
		slog.String("request_id", GetRequestID(r.Context())),
	)
	writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
}

func (h *handlers) getAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, "appointment_id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	appt, err := h.svc.Get(r.Context(), businessID(r), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) deleteAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, "appointment_id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	if err := h.svc.Delete(r.Context(), businessID(r), id); err != nil {
		handleError(w, r, h.log, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *handlers) rescheduleAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, "appointment_id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req RescheduleRequest
	if !decodeBody(w, r, &req) {
		return
	}
	date, ok := parseDate(w, "date", req.Date)
	if !ok {
		return
	}
	start, ok := parseClock(w, "start_time", req.StartTime)
	if !ok {
		return
	}

	appt, err := h.svc.Reschedule(r.Context(), booking.RescheduleInput{
		BusinessID:    businessID(r),
		AppointmentID: id,
		NewDate:       date,
		NewStart:      start,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) swapAppointments(w http.ResponseWriter, r *http.Request) {
	var req SwapRequest
	if !decodeBody(w, r, &req) {
		return
	}
	first, ok := parseID(w, "first_id", req.FirstID)
	if !ok {
		return
	}
	second, ok := parseID(w, "second_id", req.SecondID)
	if !ok {
		return
	}

	a, b, err := h.svc.Swap(r.Context(), booking.SwapInput{BusinessID: businessID(r), FirstID: first, SecondID: second})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, SwapResponse{First: toAppointmentResponse(a), Second: toAppointmentResponse(b)})
}

func (h *handlers) cancelAppointment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, "appointment_id", chi.URLParam(r, "id"))
	if !ok {
		return
	}

	appt, err := h.svc.Cancel(r.Context(), businessID(r), id)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) registerPayment(w http.ResponseWriter, r *http.Request) {
	id, ok := parseID(w, "appointment_id", chi.URLParam(r, "id"))
	if !ok {
		return
	}
	var req PaymentRequest
	if !decodeBody(w, r, &req) {
		return
	}

	appt, err := h.svc.RegisterPayment(r.Context(), booking.PaymentInput{
		BusinessID:    businessID(r),
		AppointmentID: id,
		Amount:        req.Amount,
		Method:        req.Method,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentResponse(appt))
}

func (h *handlers) bookTemplate(w http.ResponseWriter, r *http.Request) {
	var req TemplateRequest
	if !decodeBody(w, r, &req) {
		return
	}

	tpl := domain.AppointmentTemplate{
		BusinessID:      businessID(r),
		ClientID:        req.ClientID,
		ServiceID:       req.ServiceID,
		DurationMinutes: req.DurationMinutes,
		AmountTotal:     req.AmountTotal,
		PaymentMethod:   req.PaymentMethod,
		Notes:           req.Notes,
		Weekdays:        req.Weekdays,
		IntervalWeeks:   req.IntervalWeeks,
	}
	if req.ID != "" {
		id, ok := parseID(w, "id", req.ID)
		if !ok {
			return
		}
		tpl.ID = id
	}
	var ok bool
	if tpl.StartTime, ok = parseClock(w, "start_time", req.StartTime); !ok {
		return
	}
	if tpl.From, ok = parseDate(w, "from", req.From); !ok {
		return
	}
	if req.Until != "" {
		until, ok := parseDate(w, "until", req.Until)
		if !ok {
			return
		}
		tpl.Until = &until
	}
	if req.Count > 0 {
		count := req.Count
		tpl.Count = &count
	}
	windowStart, ok := parseDate(w, "window_start", req.WindowStart)
	if !ok {
		return
	}
	windowEnd, ok := parseDate(w, "window_end", req.WindowEnd)
	if !ok {
		return
	}

	res, err := h.svc.BookTemplate(r.Context(), tpl, windowStart, windowEnd)
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}

	out := TemplateResponse{
		Booked:  toAppointmentResponses(res.Booked),
		Skipped: make([]SkippedOccurrence, 0, len(res.Skipped)),
	}
	for _, s := range res.Skipped {
		out.Skipped = append(out.Skipped, SkippedOccurrence{Date: domain.FormatDate(s.Date), Reason: s.Reason.Error()})
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) workingHours(w http.ResponseWriter, r *http.Request) {
	cfgs, err := h.svc.WorkingHours(r.Context(), businessID(r))
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	out := make([]WorkingDay, 0, len(cfgs))
	for _, c := range cfgs {
		out = append(out, toWorkingDay(c))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *handlers) setWorkingDay(w http.ResponseWriter, r *http.Request) {
	var req WorkingDay
	if !decodeBody(w, r, &req) {
		return
	}

	saved, err := h.svc.SetWeekday(r.Context(), domain.WeekdayConfig{
		BusinessID: businessID(r),
		Weekday:    req.Weekday,
		Active:     req.Active,
		OpenTime:   req.OpenTime,
		CloseTime:  req.CloseTime,
		BreakStart: req.BreakStart,
		BreakEnd:   req.BreakEnd,
	})
	if err != nil {
		handleError(w, r, h.log, err)
		return
	}
	writeJSON(w, http.StatusOK, toWorkingDay(saved))
}
