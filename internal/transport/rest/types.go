package rest

import (
	"time"

	"apptbook/internal/domain"
)

type CreateAppointmentRequest struct {
	ClientID        string `json:"client_id"`
	ServiceID       string `json:"service_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int    `json:"duration_minutes"`
	AmountTotal     int64  `json:"amount_total"`
	AmountPaid      int64  `json:"amount_paid"`
	PaymentMethod   string `json:"payment_method"`
	Origin          string `json:"origin"`
	Notes           string `json:"notes"`
}

type RescheduleRequest struct {
	Date      string `json:"date"`
	StartTime string `json:"start_time"`
}

type SwapRequest struct {
	FirstID  string `json:"first_id"`
	SecondID string `json:"second_id"`
}

type PaymentRequest struct {
	Amount int64  `json:"amount"`
	Method string `json:"method"`
}

type TemplateRequest struct {
	ID              string         `json:"id"`
	ClientID        string         `json:"client_id"`
	ServiceID       string         `json:"service_id"`
	StartTime       string         `json:"start_time"`
	DurationMinutes int            `json:"duration_minutes"`
	AmountTotal     int64          `json:"amount_total"`
	PaymentMethod   string         `json:"payment_method"`
	Notes           string         `json:"notes"`
	Weekdays        []time.Weekday `json:"weekdays"`
	IntervalWeeks   int            `json:"interval_weeks"`
	From            string         `json:"from"`
	Until           string         `json:"until"`
	Count           int            `json:"count"`
	WindowStart     string         `json:"window_start"`
	WindowEnd       string         `json:"window_end"`
}

type WorkingDay struct {
	Weekday    time.Weekday  `json:"weekday"`
	Active     bool          `json:"active"`
	OpenTime   domain.Clock  `json:"open_time"`
	CloseTime  domain.Clock  `json:"close_time"`
	BreakStart *domain.Clock `json:"break_start,omitempty"`
	BreakEnd   *domain.Clock `json:"break_end,omitempty"`
}

type AppointmentResponse struct {
	ID              string     `json:"id"`
	BusinessID      string     `json:"business_id"`
	ClientID        string     `json:"client_id"`
	ServiceID       string     `json:"service_id"`
	Date            string     `json:"date"`
	StartTime       string     `json:"start_time"`
	EndTime         string     `json:"end_time"`
	DurationMinutes int        `json:"duration_minutes"`
	AmountTotal     int64      `json:"amount_total"`
	AmountPaid      int64      `json:"amount_paid"`
	AmountDue       int64      `json:"amount_due"`
	PaymentMethod   string     `json:"payment_method,omitempty"`
	PaymentStatus   string     `json:"payment_status"`
	LifecycleStatus string     `json:"lifecycle_status"`
	Origin          string     `json:"origin"`
	TemplateID      string     `json:"template_id,omitempty"`
	Notes           string     `json:"notes,omitempty"`
	CancelledAt     *time.Time `json:"cancelled_at,omitempty"`
	CreatedAt       time.Time  `json:"created_at"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

type SwapResponse struct {
	First  AppointmentResponse `json:"first"`
	Second AppointmentResponse `json:"second"`
}

type SlotsResponse struct {
	Date            string   `json:"date"`
	DurationMinutes int      `json:"duration_minutes"`
	Slots           []string `json:"slots"`
}

type SkippedOccurrence struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type TemplateResponse struct {
	Booked  []AppointmentResponse `json:"booked"`
	Skipped []SkippedOccurrence   `json:"skipped"`
}

type ConflictDetail struct {
	AppointmentID string `json:"appointment_id"`
	Date          string `json:"date"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
}

type ErrorResponse struct {
	Error    string          `json:"error"`
	Details  string          `json:"details,omitempty"`
	Conflict *ConflictDetail `json:"conflict,omitempty"`
}

func toAppointmentResponse(a domain.Appointment) AppointmentResponse {
	resp := AppointmentResponse{
		ID:              a.ID.String(),
		BusinessID:      a.BusinessID,
		ClientID:        a.ClientID,
		ServiceID:       a.ServiceID,
		Date:            domain.FormatDate(a.Date),
		StartTime:       a.StartTime.String(),
		EndTime:         a.EndTime().String(),
		DurationMinutes: a.DurationMinutes,
		AmountTotal:     a.AmountTotal,
		AmountPaid:      a.AmountPaid,
		AmountDue:       a.AmountDue,
		PaymentMethod:   a.PaymentMethod,
		PaymentStatus:   string(a.PaymentStatus),
		LifecycleStatus: string(a.LifecycleStatus),
		Origin:          string(a.Origin),
		Notes:           a.Notes,
		CancelledAt:     a.CancelledAt,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.TemplateID != nil {
		resp.TemplateID = a.TemplateID.String()
	}
	return resp
}

func toAppointmentResponses(appts []domain.Appointment) []AppointmentResponse {
	out := make([]AppointmentResponse, 0, len(appts))
	for _, a := range appts {
		out = append(out, toAppointmentResponse(a))
	}
	return out
}

func toWorkingDay(c domain.WeekdayConfig) WorkingDay {
	return WorkingDay{
		Weekday:    c.Weekday,
		Active:     c.Active,
		OpenTime:   c.OpenTime,
		CloseTime:  c.CloseTime,
		BreakStart: c.BreakStart,
		BreakEnd:   c.BreakEnd,
	}
}
