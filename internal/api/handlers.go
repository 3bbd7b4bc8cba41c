package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/google/uuid"

	"github.com/carebook/appointment-booking/internal/booking"
	"github.com/carebook/appointment-booking/internal/directory"
)

func listProvidersHandler(loader *directory.Loader) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		providers, err := loader.Providers(r.Context())
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		resp := make([]ProviderResponse, 0, len(providers))
		for _, p := range providers {
			resp = append(resp, ProviderResponse{ID: p.ID, Name: p.Name})
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func createAppointmentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateAppointmentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		providerID, err := uuid.Parse(req.ProviderID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_provider_id", "providerId must be a valid UUID")
			return
		}

		scheduledDate, err := time.Parse(time.RFC3339, req.ScheduledDate)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_scheduled_date", "scheduledDate must be an ISO-8601 timestamp")
			return
		}

		draft := booking.Draft{
			ProviderID:    providerID,
			ProviderName:  req.ProviderName,
			ScheduledDate: scheduledDate,
			Duration:      req.Duration,
			Type:          req.Type,
			Notes:         req.Notes,
		}

		idemKey := r.Header.Get("Idempotency-Key")

		appt, err := svc.SubmitBooking(r.Context(), GetUserID(r.Context()), draft, idemKey)
		if err != nil {
			handleBookingError(w, err)
			return
		}

		writeJSON(w, http.StatusCreated, toAppointmentResponse(appt))
	}
}

func listAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)

		appts, err := svc.ListPatientAppointments(r.Context(), GetUserID(r.Context()), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func createOrderHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req CreateOrderRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentId must be a valid UUID")
			return
		}

		order, err := svc.CreatePaymentOrder(r.Context(), GetUserID(r.Context()), appointmentID)
		if err != nil {
			handleOrderError(w, err)
			return
		}

		resp := OrderResponse{
			OrderID:  order.OrderID,
			KeyID:    order.KeyID,
			Amount:   order.Amount,
			Currency: order.Currency,
		}

		writeJSON(w, http.StatusOK, resp)
	}
}

func verifyPaymentHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req VerifyPaymentRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid_request_body", "could not parse JSON")
			return
		}

		if req.AppointmentID == "" || req.RazorpayPaymentID == "" ||
			req.RazorpayOrderID == "" || req.RazorpaySignature == "" {
			writeError(w, http.StatusBadRequest, "missing_fields", "appointmentId and razorpay capture fields are required")
			return
		}

		appointmentID, err := uuid.Parse(req.AppointmentID)
		if err != nil {
			writeError(w, http.StatusBadRequest, "invalid_appointment_id", "appointmentId must be a valid UUID")
			return
		}

		capture := booking.Capture{
			PaymentID: req.RazorpayPaymentID,
			OrderID:   req.RazorpayOrderID,
			Signature: req.RazorpaySignature,
		}

		appt, err := svc.VerifyPayment(r.Context(), GetUserID(r.Context()), appointmentID, capture)
		if err != nil {
			handleVerifyError(w, err)
			return
		}

		writeJSON(w, http.StatusOK, VerifyPaymentResponse{
			Status:      "success",
			Appointment: toAppointmentResponse(appt),
		})
	}
}

func providerAppointmentsHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit, offset := pageParams(r)

		appts, err := svc.ListProviderAppointments(r.Context(), GetUserID(r.Context()), limit, offset)
		if err != nil {
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, toAppointmentResponses(appts))
	}
}

func providerIncomeHandler(svc *booking.Service) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		income, err := svc.ProviderIncome(r.Context(), GetUserID(r.Context()), r.URL.Query().Get("date"))
		if err != nil {
			if errors.Is(err, booking.ErrValidation) {
				writeError(w, http.StatusBadRequest, "invalid_date", err.Error())
				return
			}
			writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
			return
		}

		writeJSON(w, http.StatusOK, IncomeResponse{
			Date:         income.Date,
			Appointments: income.Appointments,
			Income:       income.Income,
		})
	}
}

func handleBookingError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrValidation):
		writeError(w, http.StatusBadRequest, "invalid_draft", err.Error())
	case errors.Is(err, booking.ErrPatientNotFound):
		writeError(w, http.StatusNotFound, "patient_not_found", err.Error())
	case errors.Is(err, booking.ErrProviderNotFound):
		writeError(w, http.StatusNotFound, "provider_not_found", err.Error())
	case errors.Is(err, booking.ErrBookingInProgress):
		writeError(w, http.StatusConflict, "booking_in_progress", "booking attempt is already being processed, please retry shortly")
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func handleOrderError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, booking.ErrNotPending):
		writeError(w, http.StatusConflict, "appointment_not_pending", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "order_creation_failed", err.Error())
	}
}

func handleVerifyError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, booking.ErrAppointmentNotFound):
		writeError(w, http.StatusNotFound, "appointment_not_found", err.Error())
	case errors.Is(err, booking.ErrNotOwner):
		writeError(w, http.StatusForbidden, "not_owner", err.Error())
	case errors.Is(err, booking.ErrNotPending):
		writeError(w, http.StatusConflict, "appointment_not_pending", err.Error())
	case errors.Is(err, booking.ErrNoOrder):
		writeError(w, http.StatusConflict, "no_payment_order", err.Error())
	case errors.Is(err, booking.ErrOrderMismatch):
		writeError(w, http.StatusConflict, "order_mismatch", err.Error())
	case errors.Is(err, booking.ErrInvalidSignature):
		writeError(w, http.StatusBadRequest, "invalid_signature", err.Error())
	default:
		writeError(w, http.StatusInternalServerError, "internal_error", err.Error())
	}
}

func toAppointmentResponses(appts []booking.Appointment) []AppointmentResponse {
	resp := make([]AppointmentResponse, 0, len(appts))
	for i := range appts {
		resp = append(resp, toAppointmentResponse(&appts[i]))
	}
	return resp
}

func pageParams(r *http.Request) (limit, offset int) {
	if v := r.URL.Query().Get("limit"); v != "" {
		limit, _ = strconv.Atoi(v)
	}
	if v := r.URL.Query().Get("offset"); v != "" {
		offset, _ = strconv.Atoi(v)
	}
	return limit, offset
}
