// Package checkout drives the four-step booking sequence against the
// booking API: submit draft, create payment order, collect a capture from
// the payment widget, verify. The sequence is strictly sequential and
// aborts on the first failure; an idempotency key minted per attempt makes
// retrying the whole sequence safe.
package checkout

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"
)

// TokenSource supplies a bearer token for one request. Tokens are obtained
// fresh per request and never cached by the client; renewal belongs to the
// identity provider.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// TokenSourceFunc adapts a function to the TokenSource interface.
type TokenSourceFunc func(ctx context.Context) (string, error)

func (f TokenSourceFunc) Token(ctx context.Context) (string, error) {
	return f(ctx)
}

// APIError is a non-2xx response from the booking API.
type APIError struct {
	Status  int
	Code    string
	Details string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error: status=%d code=%s details=%s", e.Status, e.Code, e.Details)
}

type Provider struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// Draft is the candidate appointment the patient composed.
type Draft struct {
	ProviderID    string
	ProviderName  string
	ScheduledDate time.Time
	Duration      int
	Type          string
	Notes         string
}

type Appointment struct {
	ID            string     `json:"id"`
	ProviderID    string     `json:"providerId"`
	ProviderName  string     `json:"providerName"`
	ScheduledDate time.Time  `json:"scheduledDate"`
	Duration      int        `json:"duration"`
	Type          string     `json:"type"`
	Status        string     `json:"status"`
	PaymentStatus string     `json:"paymentStatus"`
	OrderID       *string    `json:"orderId,omitempty"`
	ExpiresAt     *time.Time `json:"expiresAt,omitempty"`
}

// Order carries the short-lived gateway credentials for one payment
// attempt. Never reuse an order across attempts.
type Order struct {
	OrderID  string `json:"orderId"`
	KeyID    string `json:"keyId"`
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

// Capture is the widget's signed success response, forwarded verbatim to
// the backend. The client never interprets these fields.
type Capture struct {
	PaymentID string `json:"razorpay_payment_id"`
	OrderID   string `json:"razorpay_order_id"`
	Signature string `json:"razorpay_signature"`
}

type Client struct {
	baseURL string
	httpc   *http.Client
	tokens  TokenSource
}

func NewClient(baseURL string, tokens TokenSource) *Client {
	return &Client{
		baseURL: baseURL,
		httpc:   &http.Client{Timeout: 15 * time.Second},
		tokens:  tokens,
	}
}

func (c *Client) Providers(ctx context.Context) ([]Provider, error) {
	var out []Provider
	if err := c.do(ctx, http.MethodGet, "/providers", "", nil, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *Client) SubmitBooking(ctx context.Context, draft Draft, idemKey string) (*Appointment, error) {
	body := map[string]any{
		"providerId":    draft.ProviderID,
		"providerName":  draft.ProviderName,
		"scheduledDate": draft.ScheduledDate.Format(time.RFC3339),
		"duration":      draft.Duration,
		"type":          draft.Type,
		"notes":         draft.Notes,
	}

	var out Appointment
	if err := c.do(ctx, http.MethodPost, "/appointments", idemKey, body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) CreateOrder(ctx context.Context, appointmentID string) (*Order, error) {
	body := map[string]any{"appointmentId": appointmentID}

	var out Order
	if err := c.do(ctx, http.MethodPost, "/payments/order", "", body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) VerifyPayment(ctx context.Context, appointmentID string, capture Capture) (*Appointment, error) {
	body := map[string]any{
		"appointmentId":       appointmentID,
		"razorpay_payment_id": capture.PaymentID,
		"razorpay_order_id":   capture.OrderID,
		"razorpay_signature":  capture.Signature,
	}

	var out struct {
		Status      string      `json:"status"`
		Appointment Appointment `json:"appointment"`
	}
	if err := c.do(ctx, http.MethodPost, "/payments/verify", "", body, &out); err != nil {
		return nil, err
	}
	return &out.Appointment, nil
}

func (c *Client) do(ctx context.Context, method, path, idemKey string, body, out any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if idemKey != "" {
		req.Header.Set("Idempotency-Key", idemKey)
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return fmt.Errorf("obtain token: %w", err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		apiErr := &APIError{Status: resp.StatusCode}
		var e struct {
			Error   string `json:"error"`
			Details string `json:"details"`
		}
		if decodeErr := json.NewDecoder(resp.Body).Decode(&e); decodeErr == nil {
			apiErr.Code = e.Error
			apiErr.Details = e.Details
		}
		return apiErr
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}

	return nil
}
