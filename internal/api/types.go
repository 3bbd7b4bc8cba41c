package api

import (
	"time"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
)

type ProviderResponse struct {
	ID   uuid.UUID `json:"id"`
	Name string    `json:"name"`
}

type CreateAppointmentRequest struct {
	ProviderID    string `json:"providerId"`
	ProviderName  string `json:"providerName,omitempty"`
	ScheduledDate string `json:"scheduledDate"`
	Duration      int    `json:"duration,omitempty"`
	Type          string `json:"type"`
	Notes         string `json:"notes,omitempty"`
}

type AppointmentResponse struct {
	ID            uuid.UUID  `json:"id"`
	PatientID     uuid.UUID  `json:"patientId"`
	ProviderID    uuid.UUID  `json:"providerId"`
	ProviderName  string     `json:"providerName,omitempty"`
	ScheduledDate time.Time  `json:"scheduledDate"`
	Duration      int        `json:"duration"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
	OrderID       *string    `json:"orderId,omitempty"`
	PaymentID     *string    `json:"paymentId,omitempty"`
	Notes         string     `json:"notes,omitempty"`
	CreatedAt     time.Time  `json:"createdAt"`
	UpdatedAt     time.Time  `json:"updatedAt"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

type CreateOrderRequest struct {
	AppointmentID string `json:"appointmentId"`
}

type OrderResponse struct {
	OrderID  string `json:"orderId"`
	KeyID    string `json:"keyId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type VerifyPaymentRequest struct {
	AppointmentID     string `json:"appointmentId"`
	RazorpayPaymentID string `json:"razorpay_payment_id"`
	RazorpayOrderID   string `json:"razorpay_order_id"`
	RazorpaySignature string `json:"razorpay_signature"`
}

type VerifyPaymentResponse struct {
	Status      string              `json:"status"`
	Appointment AppointmentResponse `json:"appointment"`
}

type IncomeResponse struct {
	Date         string `json:"date"`
	Appointments int    `json:"appointments"`
	Income       int64  `json:"income"`
}

type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

func toAppointmentResponse(a *booking.Appointment) AppointmentResponse {
	return AppointmentResponse{
		ID:            a.ID,
		PatientID:     a.PatientID,
		ProviderID:    a.ProviderID,
		ProviderName:  a.ProviderName,
		ScheduledDate: a.ScheduledDate,
		Duration:      a.Duration,
		Type:          a.Type,
		Status:        string(a.Status),
		PaymentStatus: string(a.PaymentStatus),
		OrderID:       a.OrderID,
		PaymentID:     a.PaymentID,
		Notes:         a.Notes,
		CreatedAt:     a.CreatedAt,
		UpdatedAt:     a.UpdatedAt,
		ExpiresAt:     a.ExpiresAt,
	}
}
