package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/bookwell/bookwell/internal/booking"
	"github.com/bookwell/bookwell/internal/identity"
	"github.com/bookwell/bookwell/internal/lifecycle"
	"github.com/bookwell/bookwell/internal/model"
	"github.com/bookwell/bookwell/internal/storage"
	"github.com/bookwell/bookwell/libs/auth"
)

type SlotLister interface {
	ListSlots(ctx context.Context, businessID, serviceID, staffID string, day time.Time) ([]time.Time, error)
}

type Booker interface {
	Book(ctx context.Context, req booking.BookRequest) (model.Appointment, error)
}

type Lifecycle interface {
	Cancel(ctx context.Context, businessID, appointmentID, reason string) (model.Appointment, error)
	Confirm(ctx context.Context, businessID, appointmentID string) (model.Appointment, error)
}

type AppointmentReader interface {
	Get(ctx context.Context, businessID, appointmentID string) (model.Appointment, error)
	ListByBusiness(ctx context.Context, businessID string, limit int) ([]model.Appointment, error)
	ListByCustomer(ctx context.Context, businessID, customerID string, limit int) ([]model.Appointment, error)
}

type BookingHandler struct {
	slots     SlotLister
	manager   Booker
	machine   Lifecycle
	ledger    AppointmentReader
	customers identity.Resolver
	logger    *slog.Logger
}

func NewBookingHandler(slots SlotLister, manager Booker, machine Lifecycle, ledger AppointmentReader, customers identity.Resolver, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{
		slots:     slots,
		manager:   manager,
		machine:   machine,
		ledger:    ledger,
		customers: customers,
		logger:    logger,
	}
}

type appointmentItem struct {
	AppointmentID string `json:"appointment_id"`
	StaffID       string `json:"staff_id"`
	ServiceID     string `json:"service_id"`
	StartTime     string `json:"start_time"`
	EndTime       string `json:"end_time"`
	Status        string `json:"status"`
	PaymentStatus string `json:"payment_status"`
	ReminderSent  bool   `json:"reminder_sent"`
	Notes         string `json:"notes,omitempty"`
	CancelledAt   string `json:"cancelled_at,omitempty"`
	CancelReason  string `json:"cancellation_reason,omitempty"`
	CreatedAt     string `json:"created_at"`
}

func toAppointmentItem(appt model.Appointment) appointmentItem {
	item := appointmentItem{
		AppointmentID: appt.ID,
		StaffID:       appt.StaffID,
		ServiceID:     appt.ServiceID,
		StartTime:     appt.StartTime.UTC().Format(time.RFC3339),
		EndTime:       appt.EndTime().UTC().Format(time.RFC3339),
		Status:        string(appt.Status),
		PaymentStatus: string(appt.PaymentStatus),
		ReminderSent:  appt.ReminderSent,
		Notes:         appt.Notes,
		CancelReason:  appt.CancelReason,
		CreatedAt:     appt.CreatedAt.UTC().Format(time.RFC3339),
	}
	if appt.CancelledAt != nil {
		item.CancelledAt = appt.CancelledAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Slots serves GET /api/v1/public/slots. Public: slot availability is not a
// secret, and the booking path re-checks everything anyway.
func (h *BookingHandler) Slots(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	q := r.URL.Query()
	businessID := strings.TrimSpace(q.Get("business_id"))
	serviceID := strings.TrimSpace(q.Get("service_id"))
	staffID := strings.TrimSpace(q.Get("staff_id"))
	dateStr := strings.TrimSpace(q.Get("date"))
	if businessID == "" || serviceID == "" || staffID == "" || dateStr == "" {
		writeError(w, http.StatusBadRequest, "business_id, service_id, staff_id, and date are required")
		return
	}

	day, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid date, want YYYY-MM-DD")
		return
	}

	slots, err := h.slots.ListSlots(r.Context(), businessID, serviceID, staffID, day)
	if err != nil {
		if errors.Is(err, booking.ErrServiceNotFound) || errors.Is(err, booking.ErrStaffNotFound) {
			writeError(w, http.StatusNotFound, err.Error())
			return
		}
		if storage.IsUnavailable(err) {
			writeError(w, http.StatusServiceUnavailable, "store unavailable, retry")
			return
		}
		h.logger.Error("slot resolution failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve slots")
		return
	}

	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.UTC().Format(time.RFC3339))
	}
	writeJSON(w, http.StatusOK, map[string]any{"date": dateStr, "slots": out})
}

type bookRequest struct {
	BusinessID string `json:"business_id"`
	ServiceID  string `json:"service_id"`
	StaffID    string `json:"staff_id"`
	StartTime  string `json:"start_time"`
	Notes      string `json:"notes"`
}

// Book serves POST /api/v1/public/book. Auth is the customer access token.
func (h *BookingHandler) Book(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	customer, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	var req bookRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.BusinessID = strings.TrimSpace(req.BusinessID)
	req.ServiceID = strings.TrimSpace(req.ServiceID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	if req.BusinessID == "" || req.ServiceID == "" || req.StaffID == "" {
		writeError(w, http.StatusBadRequest, "business_id, service_id, and staff_id are required")
		return
	}
	start, err := time.Parse(time.RFC3339, req.StartTime)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid start_time")
		return
	}

	appt, err := h.manager.Book(r.Context(), booking.BookRequest{
		BusinessID: req.BusinessID,
		ServiceID:  req.ServiceID,
		StaffID:    req.StaffID,
		Start:      start,
		Notes:      strings.TrimSpace(req.Notes),
		Customer:   customer,
	})
	if err != nil {
		switch {
		case errors.Is(err, booking.ErrSlotUnavailable):
			writeError(w, http.StatusConflict, "requested slot is not available")
		case errors.Is(err, booking.ErrServiceNotFound), errors.Is(err, booking.ErrStaffNotFound):
			writeError(w, http.StatusNotFound, err.Error())
		case errors.Is(err, booking.ErrCustomerRequired):
			writeError(w, http.StatusForbidden, "token not valid for this business")
		case errors.Is(err, booking.ErrInvalidDuration):
			writeError(w, http.StatusBadRequest, err.Error())
		case storage.IsUnavailable(err):
			writeError(w, http.StatusServiceUnavailable, "store unavailable, retry")
		default:
			h.logger.Error("booking failed", "err", err)
			writeError(w, http.StatusInternalServerError, "failed to book appointment")
		}
		return
	}
	writeJSON(w, http.StatusCreated, toAppointmentItem(appt))
}

type cancelRequest struct {
	BusinessID    string `json:"business_id"`
	AppointmentID string `json:"appointment_id"`
	Reason        string `json:"reason"`
}

// CustomerCancel serves POST /api/v1/public/cancel. Customers can only
// cancel their own appointments; anything else reads as not found.
func (h *BookingHandler) CustomerCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	customer, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	appt, err := h.ledger.Get(r.Context(), customer.BusinessID, req.AppointmentID)
	switch {
	case err == nil && appt.CustomerID == customer.ID:
		// Owner confirmed.
	case err == nil || storage.IsNotFound(err):
		// A foreign appointment reads the same as a missing one.
		writeError(w, http.StatusNotFound, "appointment not found")
		return
	case storage.IsUnavailable(err):
		writeError(w, http.StatusServiceUnavailable, "store unavailable, retry")
		return
	default:
		h.logger.Error("appointment lookup failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to load appointment")
		return
	}

	h.cancel(w, r, customer.BusinessID, req.AppointmentID, strings.TrimSpace(req.Reason))
}

// CustomerAppointments serves GET /api/v1/public/appointments.
func (h *BookingHandler) CustomerAppointments(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	customer, ok := h.resolveCustomer(w, r)
	if !ok {
		return
	}

	appts, err := h.ledger.ListByCustomer(r.Context(), customer.BusinessID, customer.ID, parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItems(appts))
}

// List serves GET /api/v1/appointments for the authenticated business.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}

	appts, err := h.ledger.ListByBusiness(r.Context(), claims.BusinessID, parseLimit(r))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "failed to list appointments")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItems(appts))
}

// Cancel serves POST /api/v1/appointments/cancel for the business.
func (h *BookingHandler) Cancel(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}

	var req cancelRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id required")
		return
	}
	h.cancel(w, r, claims.BusinessID, req.AppointmentID, strings.TrimSpace(req.Reason))
}

type confirmRequest struct {
	AppointmentID string `json:"appointment_id"`
}

// Confirm serves POST /api/v1/appointments/confirm for the business.
func (h *BookingHandler) Confirm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	claims, ok := BusinessClaims(r.Context())
	if !ok {
		writeError(w, http.StatusUnauthorized, "missing business scope")
		return
	}

	var req confirmRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json body")
		return
	}
	req.AppointmentID = strings.TrimSpace(req.AppointmentID)
	if req.AppointmentID == "" {
		writeError(w, http.StatusBadRequest, "appointment_id required")
		return
	}

	appt, err := h.machine.Confirm(r.Context(), claims.BusinessID, req.AppointmentID)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to confirm appointment")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) cancel(w http.ResponseWriter, r *http.Request, businessID, appointmentID, reason string) {
	appt, err := h.machine.Cancel(r.Context(), businessID, appointmentID, reason)
	if err != nil {
		h.writeLifecycleError(w, err, "failed to cancel appointment")
		return
	}
	writeJSON(w, http.StatusOK, toAppointmentItem(appt))
}

func (h *BookingHandler) writeLifecycleError(w http.ResponseWriter, err error, fallback string) {
	switch {
	case errors.Is(err, lifecycle.ErrNotFound):
		writeError(w, http.StatusNotFound, "appointment not found")
	case errors.Is(err, lifecycle.ErrAlreadyCanceled):
		writeError(w, http.StatusConflict, "appointment already canceled")
	case errors.Is(err, lifecycle.ErrInvalidTransition):
		writeError(w, http.StatusConflict, err.Error())
	default:
		h.logger.Error(fallback, "err", err)
		writeError(w, http.StatusInternalServerError, fallback)
	}
}

func (h *BookingHandler) resolveCustomer(w http.ResponseWriter, r *http.Request) (identity.Customer, bool) {
	token := auth.BearerToken(r.Header.Get("Authorization"))
	customer, err := h.customers.ResolveToken(r.Context(), token)
	if err != nil {
		if errors.Is(err, identity.ErrTokenInvalid) {
			writeError(w, http.StatusUnauthorized, "invalid access token")
			return identity.Customer{}, false
		}
		h.logger.Error("token resolution failed", "err", err)
		writeError(w, http.StatusInternalServerError, "failed to resolve token")
		return identity.Customer{}, false
	}
	return customer, true
}

func toAppointmentItems(appts []model.Appointment) []appointmentItem {
	items := make([]appointmentItem, 0, len(appts))
	for _, appt := range appts {
		items = append(items, toAppointmentItem(appt))
	}
	return items
}

func parseLimit(r *http.Request) int {
	limit := 50
	if raw := strings.TrimSpace(r.URL.Query().Get("limit")); raw != "" {
		if n, err := strconv.Atoi(raw); err == nil && n > 0 && n <= 200 {
			limit = n
		}
	}
	return limit
}
