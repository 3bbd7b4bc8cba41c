// simulate exercises the full booking flow against a running api-server:
// it picks real patients and providers from the database, mints short-lived
// tokens for them, and drives the checkout orchestrator with a widget stub
// that signs captures the same way the gateway does. Useful for smoke
// testing a deployment end to end without a browser.
package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/carebook/appointment-booking/internal/auth"
	"github.com/carebook/appointment-booking/internal/checkout"
	"github.com/carebook/appointment-booking/internal/config"
	"github.com/carebook/appointment-booking/internal/db"
)

var appointmentTypes = []string{
	"General Consultation",
	"Follow-up",
	"Physical Exam",
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lshortfile)

	baseURL := flag.String("base", "http://127.0.0.1:8080", "api-server base URL")
	bookings := flag.Int("bookings", 20, "number of bookings to attempt")
	cancelRate := flag.Float64("cancel-rate", 0.1, "fraction of widget interactions the user cancels")
	badSigRate := flag.Float64("bad-sig-rate", 0.1, "fraction of captures signed incorrectly")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	if cfg.RazorpayKeySecret == "" {
		log.Fatal("RAZORPAY_KEY_SECRET is required to sign simulated captures")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	pool, err := db.ConnectPostgres(ctx, cfg.PostgresDSN)
	cancel()
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	patients, err := sampleIDs(pool, "patients", 100)
	if err != nil {
		log.Fatalf("load patients: %v", err)
	}
	providers, err := sampleIDs(pool, "providers", 100)
	if err != nil {
		log.Fatalf("load providers: %v", err)
	}
	if len(patients) == 0 || len(providers) == 0 {
		log.Fatal("no patients or providers found, run cmd/seed first")
	}

	rng := rand.New(rand.NewSource(time.Now().UnixNano()))
	stats := map[string]int{}

	for i := 0; i < *bookings; i++ {
		patientID := patients[rng.Intn(len(patients))]
		providerID := providers[rng.Intn(len(providers))]

		tokens := checkout.TokenSourceFunc(func(ctx context.Context) (string, error) {
			// Fresh token per request, matching production behavior.
			return auth.GenerateToken(cfg.JWTSecret, patientID, auth.RolePatient, 5*time.Minute)
		})

		widget := &simWidget{
			secret:     cfg.RazorpayKeySecret,
			rng:        rng,
			cancelRate: *cancelRate,
			badSigRate: *badSigRate,
		}

		orch := checkout.NewOrchestrator(checkout.NewClient(*baseURL, tokens), widget, cfg.WidgetTimeout)

		draft := checkout.Draft{
			ProviderID:    providerID.String(),
			ScheduledDate: time.Now().Add(time.Duration(1+rng.Intn(240)) * time.Hour),
			Duration:      30,
			Type:          appointmentTypes[rng.Intn(len(appointmentTypes))],
		}

		runCtx, cancelRun := context.WithTimeout(context.Background(), 30*time.Second)
		receipt, err := orch.Book(runCtx, draft)
		cancelRun()

		switch {
		case err == nil:
			stats["confirmed"]++
			log.Printf("booking %d confirmed appointment=%s order=%s", i, receipt.Appointment.ID, receipt.Order.OrderID)
		case errors.Is(err, checkout.ErrCancelled):
			stats["cancelled"]++
		case errors.Is(err, checkout.ErrVerification):
			stats["rejected"]++
			log.Printf("booking %d rejected: %v", i, err)
		case errors.Is(err, checkout.ErrTimedOut):
			stats["timed_out"]++
		default:
			stats["error"]++
			log.Printf("booking %d failed: %v", i, err)
		}
	}

	fmt.Println("simulation complete:")
	for outcome, n := range stats {
		fmt.Printf("  %-12s %d\n", outcome, n)
	}
	if stats["error"] > 0 {
		os.Exit(1)
	}
}

func sampleIDs(pool *pgxpool.Pool, table string, limit int) ([]uuid.UUID, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	rows, err := pool.Query(ctx, "SELECT id FROM "+table+" ORDER BY random() LIMIT $1", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var ids []uuid.UUID
	for rows.Next() {
		var id uuid.UUID
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	return ids, rows.Err()
}

// simWidget stands in for the browser checkout: it immediately produces a
// capture signed with the gateway secret, or cancels / corrupts the
// signature at the configured rates.
type simWidget struct {
	secret     string
	rng        *rand.Rand
	cancelRate float64
	badSigRate float64
}

func (w *simWidget) Load(ctx context.Context) error {
	return nil
}

func (w *simWidget) Collect(ctx context.Context, order checkout.CheckoutOrder) checkout.WidgetResult {
	if w.rng.Float64() < w.cancelRate {
		return checkout.WidgetResult{Outcome: checkout.OutcomeCancelled}
	}

	paymentID := "pay_" + uuid.NewString()
	signature := signCapture(order.OrderID, paymentID, w.secret)
	if w.rng.Float64() < w.badSigRate {
		signature = signCapture(order.OrderID, paymentID, w.secret+"-tampered")
	}

	return checkout.WidgetResult{
		Outcome: checkout.OutcomeCompleted,
		Capture: checkout.Capture{
			PaymentID: paymentID,
			OrderID:   order.OrderID,
			Signature: signature,
		},
	}
}

// signCapture computes the gateway's documented capture signature:
// HMAC-SHA256 over "order_id|payment_id" with the key secret, hex encoded.
func signCapture(orderID, paymentID, secret string) string {
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(orderID + "|" + paymentID))
	return hex.EncodeToString(mac.Sum(nil))
}
