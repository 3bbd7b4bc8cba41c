package booking

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
)

var (
	ErrPatientNotFound     = errors.New("patient not found")
	ErrProviderNotFound    = errors.New("provider not found")
	ErrAppointmentNotFound = errors.New("appointment not found")
)

// Repository contains all DB interactions needed by the service.
type Repository interface {
	GetPatientByID(ctx context.Context, id uuid.UUID) (*Patient, error)
	GetProviderByID(ctx context.Context, id uuid.UUID) (*Provider, error)
	ListProviders(ctx context.Context) ([]Provider, error)

	GetAppointmentByID(ctx context.Context, id uuid.UUID) (*Appointment, error)
	// For idempotent replay of a booking attempt
	GetAppointmentByIdempotencyKey(ctx context.Context, patientID uuid.UUID, key string) (*Appointment, error)

	// Creation and updates
	CreatePendingAppointment(ctx context.Context, patientID uuid.UUID, draft Draft, idemKey string, expiresAt time.Time) (*Appointment, error)
	SetPaymentOrder(ctx context.Context, id uuid.UUID, orderID string) (*Appointment, error)
	MarkPaid(ctx context.Context, id uuid.UUID, paymentID string) (*Appointment, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, from, to Status) (*Appointment, error)

	// Dashboards
	ListAppointmentsByPatient(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error)
	ListAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error)
	CountAppointmentsByProvider(ctx context.Context, providerID uuid.UUID, date string) (int, error)

	// Expiry worker
	FindExpiredPending(ctx context.Context, now time.Time) ([]Appointment, error)

	// Event logging
	InsertEvent(ctx context.Context, ev EventLog) error
}
