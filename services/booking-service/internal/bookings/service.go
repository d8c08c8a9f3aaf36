package bookings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/metrics"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
)

var (
	ErrInvalidRequest   = errors.New("invalid booking request")
	ErrInvalidStatus    = errors.New("invalid booking status")
	ErrInvalidBookingID = errors.New("invalid booking id")
	// ErrSlotUnavailable means the start is no longer bookable, either by the
	// fresh slot list or by the database constraint.
	ErrSlotUnavailable = errors.New("slot unavailable")
)

const (
	opCreate       = "create"
	opUpdateStatus = "update_status"
)

type SlotService interface {
	Resolve(ctx context.Context, q slots.Query) (model.SlotQuery, error)
	Verify(ctx context.Context, sq model.SlotQuery, staffID, timeSlot string) (bool, error)
	Invalidate(ctx context.Context, merchantID string) error
}

type Repository interface {
	Create(ctx context.Context, tx pgx.Tx, b *model.Booking) error
	GetForUpdate(ctx context.Context, tx pgx.Tx, merchantID, bookingID string) (model.Booking, error)
	UpdateStatus(ctx context.Context, tx pgx.Tx, merchantID, bookingID, status string) error
	ListByMerchantDate(ctx context.Context, merchantID string, date time.Time, limit int) ([]model.Booking, error)
}

type EventWriter interface {
	Insert(ctx context.Context, tx pgx.Tx, evt outbox.Event) error
}

type CreateRequest struct {
	MerchantID      string
	StaffID         string
	ServiceIDs      []string
	Date            time.Time
	TimeSlot        string
	DurationMinutes int
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
}

type Service struct {
	db      db.Querier
	repo    Repository
	events  EventWriter
	slots   SlotService
	metrics *metrics.Metrics
	logger  *slog.Logger
	now     func() time.Time
}

func NewService(q db.Querier, repo Repository, events EventWriter, slotSvc SlotService, m *metrics.Metrics, logger *slog.Logger) *Service {
	return &Service{
		db:      q,
		repo:    repo,
		events:  events,
		slots:   slotSvc,
		metrics: m,
		logger:  logger,
		now:     time.Now,
	}
}

// Create books req after re-checking the start against a fresh slot list. The
// insert and its booking.created event commit together.
func (s *Service) Create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	b, err := s.create(ctx, req)
	s.metrics.ObserveBookingWrite(opCreate, outcome(err))
	return b, err
}

func (s *Service) create(ctx context.Context, req CreateRequest) (model.Booking, error) {
	req.MerchantID = strings.TrimSpace(req.MerchantID)
	req.StaffID = strings.TrimSpace(req.StaffID)
	req.CustomerName = strings.TrimSpace(req.CustomerName)
	req.CustomerPhone = strings.TrimSpace(req.CustomerPhone)
	req.CustomerEmail = strings.TrimSpace(req.CustomerEmail)
	if req.MerchantID == "" || req.StaffID == "" || req.CustomerName == "" || req.CustomerPhone == "" {
		return model.Booking{}, fmt.Errorf("%w: merchant_id, staff_id, customer_name and customer_phone are required", ErrInvalidRequest)
	}
	minute, err := availability.ParseTimeSlot(req.TimeSlot)
	if err != nil {
		return model.Booking{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if minute%availability.GridMinutes != 0 {
		return model.Booking{}, fmt.Errorf("%w: time_slot %s is off the %d minute grid", ErrInvalidRequest, req.TimeSlot, availability.GridMinutes)
	}

	sq, err := s.slots.Resolve(ctx, slots.Query{
		MerchantID:      req.MerchantID,
		StaffID:         req.StaffID,
		Date:            req.Date,
		ServiceIDs:      req.ServiceIDs,
		DurationMinutes: req.DurationMinutes,
	})
	switch {
	case errors.Is(err, slots.ErrInvalidQuery):
		return model.Booking{}, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	case storage.IsNotFound(err):
		return model.Booking{}, fmt.Errorf("%w: unknown service", ErrInvalidRequest)
	case err != nil:
		return model.Booking{}, err
	}
	if sq.DurationMinutes <= 0 {
		return model.Booking{}, fmt.Errorf("%w: duration_minutes or service_ids required", ErrInvalidRequest)
	}

	ok, err := s.slots.Verify(ctx, sq, req.StaffID, req.TimeSlot)
	if err != nil {
		return model.Booking{}, fmt.Errorf("verify slot: %w", err)
	}
	if !ok {
		return model.Booking{}, ErrSlotUnavailable
	}

	b := model.Booking{
		ID:              uuid.NewString(),
		MerchantID:      sq.MerchantID,
		StaffID:         req.StaffID,
		ServiceIDs:      req.ServiceIDs,
		CustomerName:    req.CustomerName,
		CustomerPhone:   req.CustomerPhone,
		CustomerEmail:   req.CustomerEmail,
		BookingDate:     sq.Date,
		TimeSlot:        req.TimeSlot,
		DurationMinutes: sq.DurationMinutes,
		Status:          model.StatusPending,
	}
	if b.ServiceIDs == nil {
		b.ServiceIDs = []string{}
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	if err := s.repo.Create(ctx, tx, &b); err != nil {
		if storage.IsConflict(err) {
			return model.Booking{}, ErrSlotUnavailable
		}
		return model.Booking{}, err
	}

	evt, err := outbox.NewBookingEvent(outbox.EventBookingCreated, b.ID, outbox.BookingCreated{
		BookingID:       b.ID,
		MerchantID:      b.MerchantID,
		StaffID:         b.StaffID,
		ServiceIDs:      b.ServiceIDs,
		BookingDate:     availability.FormatDate(b.BookingDate),
		TimeSlot:        b.TimeSlot,
		DurationMinutes: b.DurationMinutes,
		CustomerName:    b.CustomerName,
		CustomerPhone:   b.CustomerPhone,
		CreatedAt:       b.CreatedAt,
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}

	s.invalidate(ctx, b.MerchantID)
	s.logger.Info("booking created", "booking_id", b.ID, "merchant_id", b.MerchantID, "staff_id", b.StaffID, "time_slot", b.TimeSlot)
	return b, nil
}

// UpdateStatus moves a booking to status. Repeating the current status is a
// no-op that returns the booking unchanged.
func (s *Service) UpdateStatus(ctx context.Context, merchantID, bookingID, status string) (model.Booking, error) {
	b, err := s.updateStatus(ctx, merchantID, bookingID, status)
	s.metrics.ObserveBookingWrite(opUpdateStatus, outcome(err))
	return b, err
}

func (s *Service) updateStatus(ctx context.Context, merchantID, bookingID, status string) (model.Booking, error) {
	status = strings.TrimSpace(status)
	if !model.ValidStatus(status) {
		return model.Booking{}, fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := uuid.Parse(bookingID); err != nil {
		return model.Booking{}, ErrInvalidBookingID
	}

	tx, err := s.db.Begin(ctx)
	if err != nil {
		return model.Booking{}, err
	}
	defer func() { _ = tx.Rollback(ctx) }()

	b, err := s.repo.GetForUpdate(ctx, tx, merchantID, bookingID)
	if err != nil {
		return model.Booking{}, err
	}
	if b.Status == status {
		return b, nil
	}

	if err := s.repo.UpdateStatus(ctx, tx, merchantID, bookingID, status); err != nil {
		return model.Booking{}, err
	}

	evt, err := outbox.NewBookingEvent(outbox.EventBookingStatusChanged, b.ID, outbox.BookingStatusChanged{
		BookingID:   b.ID,
		MerchantID:  b.MerchantID,
		StaffID:     b.StaffID,
		BookingDate: availability.FormatDate(b.BookingDate),
		TimeSlot:    b.TimeSlot,
		OldStatus:   b.Status,
		NewStatus:   status,
		ChangedAt:   s.now().UTC(),
	})
	if err != nil {
		return model.Booking{}, err
	}
	if err := s.events.Insert(ctx, tx, evt); err != nil {
		return model.Booking{}, err
	}
	if err := tx.Commit(ctx); err != nil {
		return model.Booking{}, err
	}

	s.invalidate(ctx, b.MerchantID)
	s.logger.Info("booking status changed", "booking_id", b.ID, "from", b.Status, "to", status)
	b.Status = status
	return b, nil
}

func (s *Service) List(ctx context.Context, merchantID string, date time.Time) ([]model.Booking, error) {
	return s.repo.ListByMerchantDate(ctx, merchantID, date, 0)
}

// invalidate is best effort; stale entries expire with the cache TTL.
func (s *Service) invalidate(ctx context.Context, merchantID string) {
	if err := s.slots.Invalidate(ctx, merchantID); err != nil {
		s.logger.Warn("slot cache invalidate failed", "err", err, "merchant_id", merchantID)
	}
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrSlotUnavailable):
		return "conflict"
	case errors.Is(err, storage.ErrStatusRejected):
		return "rejected"
	case errors.Is(err, ErrInvalidRequest), errors.Is(err, ErrInvalidStatus), errors.Is(err, ErrInvalidBookingID):
		return "invalid"
	case storage.IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}
