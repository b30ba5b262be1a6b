package grpc

import (
	"google.golang.org/protobuf/types/known/timestamppb"
)

// Dates travel as "YYYY-MM-DD" and times of day as "HH:MM". Amounts are in
// minor currency units.

type Appointment struct {
	Id              string                 `json:"id"`
	BusinessId      string                 `json:"business_id"`
	ClientId        string                 `json:"client_id"`
	ServiceId       string                 `json:"service_id"`
	Date            string                 `json:"date"`
	StartTime       string                 `json:"start_time"`
	EndTime         string                 `json:"end_time"`
	DurationMinutes int32                  `json:"duration_minutes"`
	AmountTotal     int64                  `json:"amount_total"`
	AmountPaid      int64                  `json:"amount_paid"`
	AmountDue       int64                  `json:"amount_due"`
	PaymentMethod   string                 `json:"payment_method,omitempty"`
	PaymentStatus   string                 `json:"payment_status"`
	LifecycleStatus string                 `json:"lifecycle_status"`
	Origin          string                 `json:"origin"`
	TemplateId      string                 `json:"template_id,omitempty"`
	Notes           string                 `json:"notes,omitempty"`
	CancelledAt     *timestamppb.Timestamp `json:"cancelled_at,omitempty"`
	CreatedAt       *timestamppb.Timestamp `json:"created_at,omitempty"`
	UpdatedAt       *timestamppb.Timestamp `json:"updated_at,omitempty"`
}

type WorkingDay struct {
	Weekday    int32  `json:"weekday"`
	Active     bool   `json:"active"`
	OpenTime   string `json:"open_time"`
	CloseTime  string `json:"close_time"`
	BreakStart string `json:"break_start,omitempty"`
	BreakEnd   string `json:"break_end,omitempty"`
}

type Template struct {
	Id              string  `json:"id,omitempty"`
	ClientId        string  `json:"client_id"`
	ServiceId       string  `json:"service_id"`
	StartTime       string  `json:"start_time"`
	DurationMinutes int32   `json:"duration_minutes"`
	AmountTotal     int64   `json:"amount_total"`
	PaymentMethod   string  `json:"payment_method,omitempty"`
	Notes           string  `json:"notes,omitempty"`
	Weekdays        []int32 `json:"weekdays"`
	IntervalWeeks   int32   `json:"interval_weeks,omitempty"`
	From            string  `json:"from"`
	Until           string  `json:"until,omitempty"`
	Count           int32   `json:"count,omitempty"`
}

type SkippedOccurrence struct {
	Date   string `json:"date"`
	Reason string `json:"reason"`
}

type GetAvailableSlotsRequest struct {
	BusinessId      string `json:"business_id"`
	Date            string `json:"date"`
	DurationMinutes int32  `json:"duration_minutes"`
}

type GetAvailableSlotsResponse struct {
	Slots []string `json:"slots"`
}

type CreateAppointmentRequest struct {
	BusinessId      string `json:"business_id"`
	ClientId        string `json:"client_id"`
	ServiceId       string `json:"service_id"`
	Date            string `json:"date"`
	StartTime       string `json:"start_time"`
	DurationMinutes int32  `json:"duration_minutes"`
	AmountTotal     int64  `json:"amount_total"`
	AmountPaid      int64  `json:"amount_paid"`
	PaymentMethod   string `json:"payment_method,omitempty"`
	Origin          string `json:"origin,omitempty"`
	Notes           string `json:"notes,omitempty"`
}

type CreateAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type GetAppointmentRequest struct {
	BusinessId    string `json:"business_id"`
	AppointmentId string `json:"appointment_id"`
}

type GetAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type ListAppointmentsRequest struct {
	BusinessId string `json:"business_id"`
	Date       string `json:"date"`
}

type ListAppointmentsResponse struct {
	Appointments []*Appointment `json:"appointments"`
}

type RescheduleAppointmentRequest struct {
	BusinessId    string `json:"business_id"`
	AppointmentId string `json:"appointment_id"`
	NewDate       string `json:"new_date"`
	NewStartTime  string `json:"new_start_time"`
}

type RescheduleAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type SwapAppointmentsRequest struct {
	BusinessId string `json:"business_id"`
	FirstId    string `json:"first_id"`
	SecondId   string `json:"second_id"`
}

type SwapAppointmentsResponse struct {
	First  *Appointment `json:"first"`
	Second *Appointment `json:"second"`
}

type CancelAppointmentRequest struct {
	BusinessId    string `json:"business_id"`
	AppointmentId string `json:"appointment_id"`
}

type CancelAppointmentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type DeleteAppointmentRequest struct {
	BusinessId    string `json:"business_id"`
	AppointmentId string `json:"appointment_id"`
}

type DeleteAppointmentResponse struct{}

type RegisterPaymentRequest struct {
	BusinessId    string `json:"business_id"`
	AppointmentId string `json:"appointment_id"`
	Amount        int64  `json:"amount"`
	Method        string `json:"method,omitempty"`
}

type RegisterPaymentResponse struct {
	Appointment *Appointment `json:"appointment"`
}

type BookTemplateRequest struct {
	BusinessId  string    `json:"business_id"`
	Template    *Template `json:"template"`
	WindowStart string    `json:"window_start"`
	WindowEnd   string    `json:"window_end"`
}

type BookTemplateResponse struct {
	Booked  []*Appointment      `json:"booked"`
	Skipped []SkippedOccurrence `json:"skipped"`
}

type SetWorkingHoursRequest struct {
	BusinessId string      `json:"business_id"`
	Day        *WorkingDay `json:"day"`
}

type SetWorkingHoursResponse struct {
	Day *WorkingDay `json:"day"`
}

type GetWorkingHoursRequest struct {
	BusinessId string `json:"business_id"`
}

type GetWorkingHoursResponse struct {
	Days []*WorkingDay `json:"days"`
}
