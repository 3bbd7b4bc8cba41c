package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/redis/go-redis/v9"

	"github.com/carebook/appointment-booking/internal/auth"
	"github.com/carebook/appointment-booking/internal/booking"
	"github.com/carebook/appointment-booking/internal/directory"
)

type RouterConfig struct {
	Service   *booking.Service
	Directory *directory.Loader
	PgPool    *pgxpool.Pool
	Redis     *redis.Client
	JWTSecret string
	Env       string
	Version   string
}

func NewRouter(cfg RouterConfig) http.Handler {
	r := chi.NewRouter()

	// Apply middleware
	r.Use(RequestIDMiddleware)
	r.Use(LoggingMiddleware)

	// Health endpoints
	health := NewHealthHandler(cfg.PgPool, cfg.Redis, cfg.Env, cfg.Version)
	r.Get("/health/live", health.Liveness)
	r.Get("/health/ready", health.Readiness)

	// Provider directory is readable without a token.
	r.Get("/providers", listProvidersHandler(cfg.Directory))

	// Everything else requires a bearer token, verified per request.
	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.JWTSecret))

		r.Post("/appointments", createAppointmentHandler(cfg.Service))
		r.Get("/appointments", listAppointmentsHandler(cfg.Service))

		r.Post("/payments/order", createOrderHandler(cfg.Service))
		r.Post("/payments/verify", verifyPaymentHandler(cfg.Service))

		r.Group(func(r chi.Router) {
			r.Use(RequireRole(auth.RoleProvider))
			r.Get("/provider/appointments", providerAppointmentsHandler(cfg.Service))
			r.Get("/provider/income", providerIncomeHandler(cfg.Service))
		})
	})

	return r
}
