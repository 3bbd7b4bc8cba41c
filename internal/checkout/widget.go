package checkout

import "context"

type Outcome int

const (
	// OutcomeCompleted means the user finished payment and the widget
	// produced a signed capture.
	OutcomeCompleted Outcome = iota
	// OutcomeCancelled means the user dismissed the widget without paying.
	OutcomeCancelled
	// OutcomeFailed means the widget itself reported an error.
	OutcomeFailed
)

// CheckoutOrder is what the widget needs to collect one payment.
type CheckoutOrder struct {
	Key      string
	OrderID  string
	Amount   int64
	Currency string
	Name     string
}

// WidgetResult is the explicit three-outcome result of one widget
// interaction, replacing the success-only callback of a browser checkout.
type WidgetResult struct {
	Outcome Outcome
	Capture Capture
	Err     error
}

// Widget is the opaque third-party payment surface. Load must be checked
// before Collect; an unloadable widget aborts the flow before any capture
// is attempted. Collect blocks until the user acts or ctx expires.
type Widget interface {
	Load(ctx context.Context) error
	Collect(ctx context.Context, order CheckoutOrder) WidgetResult
}
