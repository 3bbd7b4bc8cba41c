package booking

import (
	"time"

	"github.com/google/uuid"
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusConfirmed Status = "confirmed"
	StatusFailed    Status = "failed"
)

type PaymentStatus string

const (
	PaymentUnpaid  PaymentStatus = "unpaid"
	PaymentPending PaymentStatus = "pending"
	PaymentPaid    PaymentStatus = "paid"
	PaymentFailed  PaymentStatus = "failed"
)

const (
	TypeGeneralConsultation = "General Consultation"
	TypeFollowUp            = "Follow-up"
	TypePhysicalExam        = "Physical Exam"
)

type Provider struct {
	ID        uuid.UUID
	Name      string
	Specialty *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

type Patient struct {
	ID        uuid.UUID
	Name      string
	Email     *string
	CreatedAt time.Time
	UpdatedAt time.Time
}

// Draft is the client-proposed appointment before the backend assigns an id.
// ProviderName is denormalized for display only and never trusted for lookups.
type Draft struct {
	ProviderID    uuid.UUID `validate:"required"`
	ProviderName  string
	ScheduledDate time.Time `validate:"required"`
	Duration      int       `validate:"min=0,max=240"`
	Type          string    `validate:"required,oneof='General Consultation' 'Follow-up' 'Physical Exam'"`
	Notes         string    `validate:"max=1000"`
}

type Appointment struct {
	ID             uuid.UUID
	PatientID      uuid.UUID
	ProviderID     uuid.UUID
	ProviderName   string
	ScheduledDate  time.Time
	Duration       int
	Type           string
	Status         Status
	PaymentStatus  PaymentStatus
	OrderID        *string
	PaymentID      *string
	IdempotencyKey *string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
	ExpiresAt      *time.Time
}

// PaymentOrder carries the short-lived gateway credentials for one payment
// attempt. OrderID and KeyID must not be reused across attempts.
type PaymentOrder struct {
	AppointmentID uuid.UUID
	OrderID       string
	KeyID         string
	Amount        int64 // minor currency units (paise)
	Currency      string
}

// Capture is the signed response the payment widget returns after a
// successful charge, forwarded verbatim for server-side verification.
type Capture struct {
	PaymentID string
	OrderID   string
	Signature string
}

// Income summarizes a provider's earnings for a day (or all time).
type Income struct {
	Date         string
	Appointments int
	Income       int64
}

type EventLog struct {
	ID            int64
	EventType     string
	AppointmentID *uuid.UUID
	Payload       []byte
	CreatedAt     time.Time
}
