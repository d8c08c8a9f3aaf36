package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/md-rashed-zaman/salonbook/libs/auth"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/bookings"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

type BookingService interface {
	Create(ctx context.Context, req bookings.CreateRequest) (model.Booking, error)
	UpdateStatus(ctx context.Context, merchantID, bookingID, status string) (model.Booking, error)
	List(ctx context.Context, merchantID string, date time.Time) ([]model.Booking, error)
}

type BookingHandler struct {
	bookings BookingService
	logger   *slog.Logger
}

func NewBookingHandler(svc BookingService, logger *slog.Logger) *BookingHandler {
	return &BookingHandler{bookings: svc, logger: logger}
}

type createBookingRequest struct {
	MerchantID      string   `json:"merchant_id"`
	StaffID         string   `json:"staff_id"`
	ServiceIDs      []string `json:"service_ids"`
	BookingDate     string   `json:"booking_date"`
	TimeSlot        string   `json:"time_slot"`
	DurationMinutes int      `json:"duration_minutes"`
	CustomerName    string   `json:"customer_name"`
	CustomerPhone   string   `json:"customer_phone"`
	CustomerEmail   string   `json:"customer_email"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type bookingItem struct {
	BookingID       string   `json:"booking_id"`
	MerchantID      string   `json:"merchant_id"`
	StaffID         string   `json:"staff_id"`
	ServiceIDs      []string `json:"service_ids"`
	BookingDate     string   `json:"booking_date"`
	TimeSlot        string   `json:"time_slot"`
	DurationMinutes int      `json:"duration_minutes"`
	Status          string   `json:"status"`
	CustomerName    string   `json:"customer_name"`
	CustomerPhone   string   `json:"customer_phone"`
	CustomerEmail   string   `json:"customer_email,omitempty"`
	CreatedAt       string   `json:"created_at,omitempty"`
}

func toItem(b model.Booking) bookingItem {
	item := bookingItem{
		BookingID:       b.ID,
		MerchantID:      b.MerchantID,
		StaffID:         b.StaffID,
		ServiceIDs:      b.ServiceIDs,
		BookingDate:     availability.FormatDate(b.BookingDate),
		TimeSlot:        b.TimeSlot,
		DurationMinutes: b.DurationMinutes,
		Status:          b.Status,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		CustomerEmail:   b.CustomerEmail,
	}
	if !b.CreatedAt.IsZero() {
		item.CreatedAt = b.CreatedAt.UTC().Format(time.RFC3339)
	}
	return item
}

// Create is the public booking endpoint.
func (h *BookingHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createBookingRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}
	date, err := availability.ParseDate(strings.TrimSpace(req.BookingDate))
	if err != nil {
		http.Error(w, "invalid booking_date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.Create(r.Context(), bookings.CreateRequest{
		MerchantID:      req.MerchantID,
		StaffID:         req.StaffID,
		ServiceIDs:      req.ServiceIDs,
		Date:            date,
		TimeSlot:        strings.TrimSpace(req.TimeSlot),
		DurationMinutes: req.DurationMinutes,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
	})
	switch {
	case errors.Is(err, bookings.ErrInvalidRequest):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case errors.Is(err, bookings.ErrSlotUnavailable):
		http.Error(w, "time slot is no longer available", http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("create booking failed", "err", err)
		http.Error(w, "failed to create booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, toItem(b))
}

// List returns the authenticated merchant's bookings for ?date=.
func (h *BookingHandler) List(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	date, err := availability.ParseDate(strings.TrimSpace(r.URL.Query().Get("date")))
	if err != nil {
		http.Error(w, "invalid date (want YYYY-MM-DD)", http.StatusBadRequest)
		return
	}

	list, err := h.bookings.List(r.Context(), claims.MerchantID, date)
	if err != nil {
		h.logger.Error("list bookings failed", "err", err, "merchant_id", claims.MerchantID)
		http.Error(w, "failed to list bookings", http.StatusInternalServerError)
		return
	}
	items := make([]bookingItem, 0, len(list))
	for _, b := range list {
		items = append(items, toItem(b))
	}
	writeJSON(w, http.StatusOK, items)
}

func (h *BookingHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims, ok := auth.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid json body", http.StatusBadRequest)
		return
	}

	b, err := h.bookings.UpdateStatus(r.Context(), claims.MerchantID, chi.URLParam(r, "bookingID"), req.Status)
	switch {
	case errors.Is(err, bookings.ErrInvalidStatus), errors.Is(err, bookings.ErrInvalidBookingID):
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	case storage.IsNotFound(err):
		http.Error(w, "booking not found", http.StatusNotFound)
		return
	case errors.Is(err, storage.ErrStatusRejected):
		http.Error(w, err.Error(), http.StatusConflict)
		return
	case err != nil:
		h.logger.Error("update booking status failed", "err", err, "merchant_id", claims.MerchantID)
		http.Error(w, "failed to update booking", http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, toItem(b))
}
