package checkout

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation        = errors.New("draft is incomplete")
	ErrOrderCreation     = errors.New("payment order creation failed")
	ErrWidgetUnavailable = errors.New("payment widget failed to load")
	ErrWidgetFailure     = errors.New("payment widget reported an error")
	ErrCancelled         = errors.New("payment cancelled by user")
	ErrTimedOut          = errors.New("payment widget timed out")
	ErrVerification      = errors.New("payment verification rejected")
)

const defaultWidgetTimeout = 2 * time.Minute

type Orchestrator struct {
	api           *Client
	widget        Widget
	widgetTimeout time.Duration
	displayName   string
}

func NewOrchestrator(api *Client, widget Widget, widgetTimeout time.Duration) *Orchestrator {
	if widgetTimeout <= 0 {
		widgetTimeout = defaultWidgetTimeout
	}
	return &Orchestrator{
		api:           api,
		widget:        widget,
		widgetTimeout: widgetTimeout,
		displayName:   "Healthcare Appointment",
	}
}

// Receipt is the terminal outcome of a successful booking.
type Receipt struct {
	Appointment    Appointment
	Order          Order
	Capture        Capture
	IdempotencyKey string
}

// Book runs the full sequence with a fresh idempotency key. The key is
// returned in the receipt so an interrupted attempt can be resumed with
// BookWith without creating a duplicate appointment.
func (o *Orchestrator) Book(ctx context.Context, draft Draft) (*Receipt, error) {
	return o.BookWith(ctx, draft, uuid.NewString())
}

// BookWith runs the sequence under the caller's idempotency key.
func (o *Orchestrator) BookWith(ctx context.Context, draft Draft, idemKey string) (*Receipt, error) {
	if err := checkDraft(draft); err != nil {
		return nil, err
	}

	appt, err := o.api.SubmitBooking(ctx, draft, idemKey)
	if err != nil {
		return nil, fmt.Errorf("submit booking: %w", err)
	}

	order, err := o.api.CreateOrder(ctx, appt.ID)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("%w: %v", ErrOrderCreation, apiErr)
		}
		return nil, fmt.Errorf("create order: %w", err)
	}

	if err := o.widget.Load(ctx); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrWidgetUnavailable, err)
	}

	// The widget is a suspension point. The original flow waited on it
	// forever; here the wait is bounded and expiry is a distinct outcome.
	widgetCtx, cancel := context.WithTimeout(ctx, o.widgetTimeout)
	defer cancel()

	result := o.widget.Collect(widgetCtx, CheckoutOrder{
		Key:      order.KeyID,
		OrderID:  order.OrderID,
		Amount:   order.Amount,
		Currency: order.Currency,
		Name:     o.displayName,
	})

	switch result.Outcome {
	case OutcomeCompleted:
		// proceed to verification
	case OutcomeCancelled:
		return nil, ErrCancelled
	case OutcomeFailed:
		if errors.Is(widgetCtx.Err(), context.DeadlineExceeded) || errors.Is(result.Err, context.DeadlineExceeded) {
			return nil, ErrTimedOut
		}
		if result.Err != nil {
			return nil, fmt.Errorf("%w: %v", ErrWidgetFailure, result.Err)
		}
		return nil, ErrWidgetFailure
	default:
		return nil, fmt.Errorf("%w: unknown outcome %d", ErrWidgetFailure, result.Outcome)
	}

	confirmed, err := o.api.VerifyPayment(ctx, appt.ID, result.Capture)
	if err != nil {
		var apiErr *APIError
		if errors.As(err, &apiErr) && apiErr.Code == "invalid_signature" {
			return nil, fmt.Errorf("%w: %v", ErrVerification, apiErr)
		}
		return nil, fmt.Errorf("verify payment: %w", err)
	}

	return &Receipt{
		Appointment:    *confirmed,
		Order:          *order,
		Capture:        result.Capture,
		IdempotencyKey: idemKey,
	}, nil
}

// checkDraft mirrors the presence checks the booking form performs before
// any network call is made.
func checkDraft(draft Draft) error {
	switch {
	case draft.ProviderID == "":
		return fmt.Errorf("%w: provider is required", ErrValidation)
	case draft.ScheduledDate.IsZero():
		return fmt.Errorf("%w: date and time are required", ErrValidation)
	case draft.Type == "":
		return fmt.Errorf("%w: appointment type is required", ErrValidation)
	}
	return nil
}
