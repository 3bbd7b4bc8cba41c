package checkout

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

const testSecret = "test_key_secret"

func signCapture(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}

// bookingBackend is a minimal in-memory stand-in for the api-server,
// implementing the four endpoints the orchestrator touches.
type bookingBackend struct {
	mu           sync.Mutex
	nextID       int
	appointments map[string]*backendAppointment
	byIdemKey    map[string]string
	requests     []string
}

type backendAppointment struct {
	ID      string
	Status  string
	OrderID string
}

func newBookingBackend() *bookingBackend {
	return &bookingBackend{
		appointments: map[string]*backendAppointment{},
		byIdemKey:    map[string]string{},
	}
}

func (b *bookingBackend) handler(t *testing.T) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST /appointments", func(w http.ResponseWriter, r *http.Request) {
		b.observe(r)

		var req struct {
			ProviderID string `json:"providerId"`
			Type       string `json:"type"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()

		if key := r.Header.Get("Idempotency-Key"); key != "" {
			if id, ok := b.byIdemKey[key]; ok {
				writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": b.appointments[id].Status})
				return
			}
		}

		b.nextID++
		id := fmt.Sprintf("A%d", b.nextID)
		b.appointments[id] = &backendAppointment{ID: id, Status: "pending"}
		if key := r.Header.Get("Idempotency-Key"); key != "" {
			b.byIdemKey[key] = id
		}

		writeJSON(w, http.StatusCreated, map[string]any{"id": id, "status": "pending"})
	})

	mux.HandleFunc("POST /payments/order", func(w http.ResponseWriter, r *http.Request) {
		b.observe(r)

		var req struct {
			AppointmentID string `json:"appointmentId"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()

		appt, ok := b.appointments[req.AppointmentID]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment_not_found"})
			return
		}
		if appt.Status != "pending" {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "appointment_not_pending"})
			return
		}

		appt.OrderID = "order_" + appt.ID
		writeJSON(w, http.StatusOK, map[string]any{
			"orderId":  appt.OrderID,
			"keyId":    "rzp_test_key",
			"amount":   50000,
			"currency": "INR",
		})
	})

	mux.HandleFunc("POST /payments/verify", func(w http.ResponseWriter, r *http.Request) {
		b.observe(r)

		var req struct {
			AppointmentID string `json:"appointmentId"`
			PaymentID     string `json:"razorpay_payment_id"`
			OrderID       string `json:"razorpay_order_id"`
			Signature     string `json:"razorpay_signature"`
		}
		_ = json.NewDecoder(r.Body).Decode(&req)

		b.mu.Lock()
		defer b.mu.Unlock()

		appt, ok := b.appointments[req.AppointmentID]
		if !ok {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "appointment_not_found"})
			return
		}
		if req.OrderID != appt.OrderID {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "order_mismatch"})
			return
		}
		want := signCapture(req.OrderID, req.PaymentID, testSecret)
		if !hmac.Equal([]byte(want), []byte(req.Signature)) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_signature"})
			return
		}

		appt.Status = "confirmed"
		writeJSON(w, http.StatusOK, map[string]any{
			"status":      "success",
			"appointment": map[string]any{"id": appt.ID, "status": "confirmed"},
		})
	})

	return mux
}

func (b *bookingBackend) observe(r *http.Request) {
	b.mu.Lock()
	defer b.mu.Unlock()
	auth := r.Header.Get("Authorization")
	b.requests = append(b.requests, r.URL.Path+" "+auth)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// scriptedWidget returns a preconfigured outcome, signing captures with the
// given secret.
type scriptedWidget struct {
	loadErr error
	outcome Outcome
	secret  string
	block   bool
}

func (w *scriptedWidget) Load(ctx context.Context) error {
	return w.loadErr
}

func (w *scriptedWidget) Collect(ctx context.Context, order CheckoutOrder) WidgetResult {
	if w.block {
		<-ctx.Done()
		return WidgetResult{Outcome: OutcomeFailed, Err: ctx.Err()}
	}
	if w.outcome != OutcomeCompleted {
		return WidgetResult{Outcome: w.outcome}
	}
	paymentID := "pay_test"
	return WidgetResult{
		Outcome: OutcomeCompleted,
		Capture: Capture{
			PaymentID: paymentID,
			OrderID:   order.OrderID,
			Signature: signCapture(order.OrderID, paymentID, w.secret),
		},
	}
}

func testDraft() Draft {
	return Draft{
		ProviderID:    "P1",
		ScheduledDate: time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC),
		Duration:      30,
		Type:          "Follow-up",
	}
}

func newTestOrchestrator(t *testing.T, backend *bookingBackend, widget Widget, tokenCalls *int) *Orchestrator {
	t.Helper()

	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	tokens := TokenSourceFunc(func(ctx context.Context) (string, error) {
		if tokenCalls != nil {
			*tokenCalls++
		}
		return "tok", nil
	})

	return NewOrchestrator(NewClient(srv.URL, tokens), widget, time.Second)
}

func TestBookHappyPath(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{outcome: OutcomeCompleted, secret: testSecret}
	tokenCalls := 0

	orch := newTestOrchestrator(t, backend, widget, &tokenCalls)

	receipt, err := orch.Book(context.Background(), testDraft())
	if err != nil {
		t.Fatalf("Book: %v", err)
	}

	if receipt.Appointment.Status != "confirmed" {
		t.Errorf("status = %s, want confirmed", receipt.Appointment.Status)
	}
	if backend.appointments[receipt.Appointment.ID].Status != "confirmed" {
		t.Errorf("backend status not confirmed")
	}
	if receipt.Capture.OrderID != receipt.Order.OrderID {
		t.Errorf("capture order %s != order %s", receipt.Capture.OrderID, receipt.Order.OrderID)
	}
	if receipt.IdempotencyKey == "" {
		t.Errorf("receipt missing idempotency key")
	}

	// submit, order, verify: one fresh token per request.
	if tokenCalls != 3 {
		t.Errorf("token calls = %d, want 3", tokenCalls)
	}
}

func TestBookInvalidSignature(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{outcome: OutcomeCompleted, secret: "wrong-secret"}

	orch := newTestOrchestrator(t, backend, widget, nil)

	_, err := orch.Book(context.Background(), testDraft())
	if !errors.Is(err, ErrVerification) {
		t.Fatalf("err = %v, want ErrVerification", err)
	}

	// The draft appointment stays pending on the backend.
	for _, appt := range backend.appointments {
		if appt.Status != "pending" {
			t.Errorf("appointment %s status = %s, want pending", appt.ID, appt.Status)
		}
	}
}

func TestBookUserCancels(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{outcome: OutcomeCancelled}

	orch := newTestOrchestrator(t, backend, widget, nil)

	_, err := orch.Book(context.Background(), testDraft())
	if !errors.Is(err, ErrCancelled) {
		t.Fatalf("err = %v, want ErrCancelled", err)
	}
}

func TestBookWidgetUnavailable(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{loadErr: errors.New("script load failed")}

	orch := newTestOrchestrator(t, backend, widget, nil)

	_, err := orch.Book(context.Background(), testDraft())
	if !errors.Is(err, ErrWidgetUnavailable) {
		t.Fatalf("err = %v, want ErrWidgetUnavailable", err)
	}
}

func TestBookWidgetTimesOut(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{block: true}

	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)

	tokens := TokenSourceFunc(func(ctx context.Context) (string, error) { return "tok", nil })
	orch := NewOrchestrator(NewClient(srv.URL, tokens), widget, 50*time.Millisecond)

	start := time.Now()
	_, err := orch.Book(context.Background(), testDraft())
	if !errors.Is(err, ErrTimedOut) {
		t.Fatalf("err = %v, want ErrTimedOut", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("bounded wait took %s", elapsed)
	}
}

func TestBookDraftPresenceChecks(t *testing.T) {
	backend := newBookingBackend()
	widget := &scriptedWidget{outcome: OutcomeCompleted, secret: testSecret}

	orch := newTestOrchestrator(t, backend, widget, nil)

	tests := []struct {
		name   string
		mutate func(*Draft)
	}{
		{"no provider", func(d *Draft) { d.ProviderID = "" }},
		{"no date", func(d *Draft) { d.ScheduledDate = time.Time{} }},
		{"no type", func(d *Draft) { d.Type = "" }},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			draft := testDraft()
			tc.mutate(&draft)

			_, err := orch.Book(context.Background(), draft)
			if !errors.Is(err, ErrValidation) {
				t.Fatalf("err = %v, want ErrValidation", err)
			}
		})
	}

	if len(backend.requests) != 0 {
		t.Errorf("incomplete drafts reached the network: %v", backend.requests)
	}
}

func TestBookWithRetrySameKey(t *testing.T) {
	backend := newBookingBackend()
	key := "attempt-1"

	// First attempt dies at the widget.
	failing := &scriptedWidget{loadErr: errors.New("offline")}
	orch := newTestOrchestrator(t, backend, failing, nil)
	if _, err := orch.BookWith(context.Background(), testDraft(), key); !errors.Is(err, ErrWidgetUnavailable) {
		t.Fatalf("first attempt err = %v", err)
	}

	// Retry with the same key completes against the same appointment.
	srv := httptest.NewServer(backend.handler(t))
	t.Cleanup(srv.Close)
	tokens := TokenSourceFunc(func(ctx context.Context) (string, error) { return "tok", nil })
	retry := NewOrchestrator(NewClient(srv.URL, tokens), &scriptedWidget{outcome: OutcomeCompleted, secret: testSecret}, time.Second)

	receipt, err := retry.BookWith(context.Background(), testDraft(), key)
	if err != nil {
		t.Fatalf("retry err = %v", err)
	}
	if len(backend.appointments) != 1 {
		t.Errorf("retry created %d appointments, want 1", len(backend.appointments))
	}
	if receipt.Appointment.ID != backend.byIdemKey[key] {
		t.Errorf("retry confirmed a different appointment")
	}
}

func TestBookOrderCreationFailure(t *testing.T) {
	// Backend that accepts the draft but refuses the order.
	mux := http.NewServeMux()
	mux.HandleFunc("POST /appointments", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusCreated, map[string]any{"id": "A1", "status": "pending"})
	})
	mux.HandleFunc("POST /payments/order", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "appointment_not_pending"})
	})

	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)

	tokens := TokenSourceFunc(func(ctx context.Context) (string, error) { return "tok", nil })
	orch := NewOrchestrator(NewClient(srv.URL, tokens), &scriptedWidget{outcome: OutcomeCompleted, secret: testSecret}, time.Second)

	_, err := orch.Book(context.Background(), testDraft())
	if !errors.Is(err, ErrOrderCreation) {
		t.Fatalf("err = %v, want ErrOrderCreation", err)
	}
}
