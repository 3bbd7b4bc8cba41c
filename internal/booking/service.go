package booking

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/payment"
	redisclient "github.com/carebook/appointment-booking/internal/redis"
)

const (
	EventBookingCreated       = "BOOKING_CREATED"
	EventPaymentOrderCreated  = "PAYMENT_ORDER_CREATED"
	EventAppointmentConfirmed = "APPOINTMENT_CONFIRMED"
	EventPaymentRejected      = "PAYMENT_REJECTED"
	EventAppointmentExpired   = "APPOINTMENT_EXPIRED"
)

var (
	ErrValidation        = errors.New("invalid booking draft")
	ErrBookingInProgress = errors.New("booking attempt already in progress, please retry")
	ErrNotOwner          = errors.New("appointment belongs to a different patient")
	ErrNotPending        = errors.New("appointment is not pending")
	ErrNoOrder           = errors.New("no payment order exists for appointment")
	ErrOrderMismatch     = errors.New("capture order id does not match the current payment order")
	ErrInvalidSignature  = errors.New("payment signature verification failed")
)

type Service struct {
	repo     Repository
	locker   redisclient.Locker
	gateway  payment.Gateway
	validate *validator.Validate
	cfg      config.Config
}

func NewService(repo Repository, locker redisclient.Locker, gateway payment.Gateway, cfg config.Config) *Service {
	return &Service{
		repo:     repo,
		locker:   locker,
		gateway:  gateway,
		validate: validator.New(validator.WithRequiredStructEnabled()),
		cfg:      cfg,
	}
}

// SubmitBooking creates a pending appointment for the draft. When idemKey is
// non-empty the call is idempotent: a replay with the same key returns the
// appointment created by the first call instead of a duplicate.
func (s *Service) SubmitBooking(ctx context.Context, patientID uuid.UUID, draft Draft, idemKey string) (*Appointment, error) {
	if draft.Duration == 0 {
		draft.Duration = 30
	}

	if err := s.validate.Struct(draft); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	if draft.ScheduledDate.Before(time.Now()) {
		return nil, fmt.Errorf("%w: scheduled date cannot be in the past", ErrValidation)
	}

	if _, err := s.repo.GetPatientByID(ctx, patientID); err != nil {
		if errors.Is(err, ErrPatientNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load patient: %w", err)
	}

	provider, err := s.repo.GetProviderByID(ctx, draft.ProviderID)
	if err != nil {
		if errors.Is(err, ErrProviderNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load provider: %w", err)
	}
	if draft.ProviderName == "" {
		draft.ProviderName = provider.Name
	}

	if idemKey != "" {
		if existing, err := s.repo.GetAppointmentByIdempotencyKey(ctx, patientID, idemKey); err == nil {
			return existing, nil
		} else if !errors.Is(err, ErrAppointmentNotFound) {
			return nil, fmt.Errorf("idempotency lookup: %w", err)
		}
	}

	lockKey := idemKey
	if lockKey == "" {
		lockKey = uuid.NewString()
	}

	var created *Appointment

	err = s.locker.WithBookingLock(ctx, patientID, lockKey, func(lockCtx context.Context) error {
		// Re-check inside the critical section so two racing submissions
		// with one key cannot both insert.
		if idemKey != "" {
			existing, err := s.repo.GetAppointmentByIdempotencyKey(lockCtx, patientID, idemKey)
			if err != nil && !errors.Is(err, ErrAppointmentNotFound) {
				return fmt.Errorf("idempotency lookup: %w", err)
			}
			if existing != nil {
				created = existing
				return nil
			}
		}

		expiresAt := time.Now().Add(s.cfg.AppointmentTTL)
		appt, err := s.repo.CreatePendingAppointment(lockCtx, patientID, draft, idemKey, expiresAt)
		if err != nil {
			return fmt.Errorf("create pending appointment: %w", err)
		}

		created = appt

		s.logEvent(lockCtx, appt.ID, EventBookingCreated, map[string]any{
			"provider_id": draft.ProviderID.String(),
			"patient_id":  patientID.String(),
			"type":        draft.Type,
			"expires_at":  expiresAt,
		})

		return nil
	})

	if err != nil {
		if errors.Is(err, redisclient.ErrLockNotAcquired) {
			return nil, ErrBookingInProgress
		}
		return nil, err
	}

	return created, nil
}

// CreatePaymentOrder opens gateway credentials for one payment attempt on a
// pending appointment. Calling it again replaces the stored order id, so
// stale credentials can never confirm the booking.
func (s *Service) CreatePaymentOrder(ctx context.Context, patientID, appointmentID uuid.UUID) (*PaymentOrder, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.PatientID != patientID {
		return nil, ErrNotOwner
	}
	if appt.Status != StatusPending {
		return nil, ErrNotPending
	}

	amount := s.cfg.ConsultationFee * 100 // major units -> paise

	order, err := s.gateway.CreateOrder(ctx, appt.ID.String(), amount, s.cfg.Currency)
	if err != nil {
		return nil, fmt.Errorf("create gateway order: %w", err)
	}

	if _, err := s.repo.SetPaymentOrder(ctx, appt.ID, order.OrderID); err != nil {
		return nil, fmt.Errorf("store payment order: %w", err)
	}

	s.logEvent(ctx, appt.ID, EventPaymentOrderCreated, map[string]any{
		"order_id": order.OrderID,
		"amount":   amount,
		"currency": s.cfg.Currency,
	})

	return &PaymentOrder{
		AppointmentID: appt.ID,
		OrderID:       order.OrderID,
		KeyID:         order.KeyID,
		Amount:        amount,
		Currency:      s.cfg.Currency,
	}, nil
}

// VerifyPayment checks the capture's signature against the stored order and
// confirms the appointment. On any failure the appointment stays pending.
func (s *Service) VerifyPayment(ctx context.Context, patientID, appointmentID uuid.UUID, capture Capture) (*Appointment, error) {
	appt, err := s.repo.GetAppointmentByID(ctx, appointmentID)
	if err != nil {
		if errors.Is(err, ErrAppointmentNotFound) {
			return nil, err
		}
		return nil, fmt.Errorf("load appointment: %w", err)
	}
	if appt.PatientID != patientID {
		return nil, ErrNotOwner
	}

	// A repeated verify of the same capture is tolerated.
	if appt.Status == StatusConfirmed && appt.PaymentID != nil && *appt.PaymentID == capture.PaymentID {
		return appt, nil
	}
	if appt.Status != StatusPending {
		return nil, ErrNotPending
	}
	if appt.OrderID == nil {
		return nil, ErrNoOrder
	}
	if capture.OrderID != *appt.OrderID {
		return nil, ErrOrderMismatch
	}

	if !s.gateway.VerifySignature(capture.OrderID, capture.PaymentID, capture.Signature) {
		s.logEvent(ctx, appt.ID, EventPaymentRejected, map[string]any{
			"order_id":   capture.OrderID,
			"payment_id": capture.PaymentID,
		})
		return nil, ErrInvalidSignature
	}

	updated, err := s.repo.MarkPaid(ctx, appt.ID, capture.PaymentID)
	if err != nil {
		return nil, fmt.Errorf("confirm appointment: %w", err)
	}

	s.logEvent(ctx, updated.ID, EventAppointmentConfirmed, map[string]any{
		"order_id":   capture.OrderID,
		"payment_id": capture.PaymentID,
	})

	return updated, nil
}

// ListPatientAppointments retrieves appointments for the calling patient
func (s *Service) ListPatientAppointments(ctx context.Context, patientID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)

	appointments, err := s.repo.ListAppointmentsByPatient(ctx, patientID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by patient: %w", err)
	}
	return appointments, nil
}

// ListProviderAppointments retrieves appointments booked with the calling provider
func (s *Service) ListProviderAppointments(ctx context.Context, providerID uuid.UUID, limit, offset int) ([]Appointment, error) {
	limit, offset = clampPage(limit, offset)

	appointments, err := s.repo.ListAppointmentsByProvider(ctx, providerID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("list appointments by provider: %w", err)
	}
	return appointments, nil
}

// ProviderIncome reports appointment count and earnings for a provider,
// optionally filtered to one day (YYYY-MM-DD).
func (s *Service) ProviderIncome(ctx context.Context, providerID uuid.UUID, date string) (*Income, error) {
	if date != "" {
		if _, err := time.Parse("2006-01-02", date); err != nil {
			return nil, fmt.Errorf("%w: date must be YYYY-MM-DD", ErrValidation)
		}
	}

	count, err := s.repo.CountAppointmentsByProvider(ctx, providerID, date)
	if err != nil {
		return nil, fmt.Errorf("count appointments by provider: %w", err)
	}

	label := date
	if label == "" {
		label = "all"
	}

	return &Income{
		Date:         label,
		Appointments: count,
		Income:       int64(count) * s.cfg.ConsultationFee,
	}, nil
}

// ExpireAbandonedBookings is intended to be called by the worker
// periodically. Pending appointments left behind by abandoned or failed
// payment flows are moved to failed.
func (s *Service) ExpireAbandonedBookings(ctx context.Context) error {
	now := time.Now()
	candidates, err := s.repo.FindExpiredPending(ctx, now)
	if err != nil {
		return fmt.Errorf("find expired pending appointments: %w", err)
	}

	for _, appt := range candidates {
		if _, err := s.repo.UpdateStatus(ctx, appt.ID, StatusPending, StatusFailed); err != nil {
			// A guarded update that finds no row means the appointment got
			// paid between the sweep query and the update. Leave it alone.
			if !errors.Is(err, ErrAppointmentNotFound) {
				log.Printf("failed to expire appointment %s: %v", appt.ID, err)
			}
			continue
		}
		s.logEvent(ctx, appt.ID, EventAppointmentExpired, map[string]any{
			"reason": "worker",
		})
	}

	return nil
}

func (s *Service) logEvent(ctx context.Context, appointmentID uuid.UUID, eventType string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("failed to marshal event payload for %s: %v", eventType, err)
		data = nil
	}

	apptID := appointmentID

	ev := EventLog{
		EventType:     eventType,
		AppointmentID: &apptID,
		Payload:       data,
		CreatedAt:     time.Now(),
	}

	if err := s.repo.InsertEvent(ctx, ev); err != nil {
		log.Printf("failed to insert event log %s for appointment %s: %v", eventType, appointmentID, err)
	}
}

func clampPage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = 20 // default
	}
	if limit > 100 {
		limit = 100 // max
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
