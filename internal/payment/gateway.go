package payment

import (
	"context"
	"errors"
)

var (
	ErrOrderCreateFailed = errors.New("gateway order creation failed")
)

// GatewayOrder is the short-lived credential pair the checkout widget needs
// to collect one payment.
type GatewayOrder struct {
	OrderID string
	KeyID   string
}

// Gateway abstracts the payment provider so the booking service can be
// tested without network calls. Verification authority stays on this side;
// the client never interprets capture fields itself.
type Gateway interface {
	CreateOrder(ctx context.Context, appointmentID string, amount int64, currency string) (*GatewayOrder, error)
	VerifySignature(orderID, paymentID, signature string) bool
}
