package bookings

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/outbox"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/slots"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/storage"
	pgxmock "github.com/pashagolub/pgxmock/v4"
)

type fakeSlots struct {
	duration    int
	resolveErr  error
	bookable    bool
	verified    []string
	invalidated []string
}

func (f *fakeSlots) Resolve(_ context.Context, q slots.Query) (model.SlotQuery, error) {
	if f.resolveErr != nil {
		return model.SlotQuery{}, f.resolveErr
	}
	d := q.DurationMinutes
	if len(q.ServiceIDs) > 0 {
		d = f.duration
	}
	return model.SlotQuery{MerchantID: q.MerchantID, StaffID: q.StaffID, Date: q.Date, DurationMinutes: d}, nil
}

func (f *fakeSlots) Verify(_ context.Context, _ model.SlotQuery, staffID, timeSlot string) (bool, error) {
	f.verified = append(f.verified, staffID+"@"+timeSlot)
	return f.bookable, nil
}

func (f *fakeSlots) Invalidate(_ context.Context, merchantID string) error {
	f.invalidated = append(f.invalidated, merchantID)
	return nil
}

const bookingID = "8b0c4f5e-2f4e-4b8e-9a51-0d1c7a1b2c3d"

var bookingDate = time.Date(2026, 10, 20, 0, 0, 0, 0, availability.IST)

func setup(t *testing.T, fs *fakeSlots) (*Service, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool()
	if err != nil {
		t.Fatalf("pgxmock: %v", err)
	}
	t.Cleanup(mock.Close)
	svc := NewService(mock, storage.NewBookingRepository(mock), outbox.NewRepository(), fs, nil, slog.New(slog.NewTextHandler(io.Discard, nil)))
	return svc, mock
}

func validRequest() CreateRequest {
	return CreateRequest{
		MerchantID:    "merchant-1",
		StaffID:       "staff-1",
		ServiceIDs:    []string{"svc-a"},
		Date:          bookingDate,
		TimeSlot:      "09:00",
		CustomerName:  " Priya ",
		CustomerPhone: "+919800000000",
	}
}

func outboxArgs(eventType string) []any {
	return []any{pgxmock.AnyArg(), outbox.AggregateBooking, pgxmock.AnyArg(), eventType, pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()}
}

func TestCreate(t *testing.T) {
	fs := &fakeSlots{duration: 45, bookable: true}
	svc, mock := setup(t, fs)
	created := time.Date(2026, 10, 14, 4, 0, 0, 0, time.UTC)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(pgxmock.AnyArg(), "merchant-1", "staff-1", []string{"svc-a"}, "Priya", "+919800000000", nil,
			"2026-10-20", "09:00", 45, model.StatusPending).
		WillReturnRows(pgxmock.NewRows([]string{"created_at"}).AddRow(created))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outboxArgs(outbox.EventBookingCreated)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	b, err := svc.Create(context.Background(), validRequest())
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	if b.ID == "" || b.Status != model.StatusPending || b.DurationMinutes != 45 || !b.CreatedAt.Equal(created) {
		t.Fatalf("unexpected booking: %+v", b)
	}
	if len(fs.verified) != 1 || fs.verified[0] != "staff-1@09:00" {
		t.Fatalf("expected one verification, got %v", fs.verified)
	}
	if len(fs.invalidated) != 1 || fs.invalidated[0] != "merchant-1" {
		t.Fatalf("expected cache invalidation, got %v", fs.invalidated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_NotBookable(t *testing.T) {
	fs := &fakeSlots{duration: 30, bookable: false}
	svc, mock := setup(t, fs)

	_, err := svc.Create(context.Background(), validRequest())
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no db calls expected: %v", err)
	}
}

func TestCreate_ConstraintConflict(t *testing.T) {
	fs := &fakeSlots{duration: 30, bookable: true}
	svc, mock := setup(t, fs)

	mock.ExpectBegin()
	mock.ExpectQuery("INSERT INTO bookings").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnError(&pgconn.PgError{Code: "23P01"})
	mock.ExpectRollback()

	_, err := svc.Create(context.Background(), validRequest())
	if !errors.Is(err, ErrSlotUnavailable) {
		t.Fatalf("expected ErrSlotUnavailable, got %v", err)
	}
	if len(fs.invalidated) != 0 {
		t.Fatalf("nothing committed, nothing to invalidate: %v", fs.invalidated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestCreate_Validation(t *testing.T) {
	svc, _ := setup(t, &fakeSlots{duration: 30, bookable: true})
	cases := map[string]func(*CreateRequest){
		"missing merchant": func(r *CreateRequest) { r.MerchantID = "" },
		"missing phone":    func(r *CreateRequest) { r.CustomerPhone = " " },
		"bad time":         func(r *CreateRequest) { r.TimeSlot = "9:00" },
		"off grid":         func(r *CreateRequest) { r.TimeSlot = "09:05" },
		"no duration":      func(r *CreateRequest) { r.ServiceIDs = nil },
	}
	for name, mutate := range cases {
		req := validRequest()
		mutate(&req)
		if _, err := svc.Create(context.Background(), req); !errors.Is(err, ErrInvalidRequest) {
			t.Fatalf("%s: expected ErrInvalidRequest, got %v", name, err)
		}
	}
}

func TestCreate_UnknownService(t *testing.T) {
	svc, _ := setup(t, &fakeSlots{resolveErr: storage.ErrNotFound})
	if _, err := svc.Create(context.Background(), validRequest()); !errors.Is(err, ErrInvalidRequest) {
		t.Fatalf("expected ErrInvalidRequest, got %v", err)
	}
}

var bookingCols = []string{
	"id", "merchant_id", "staff_id", "service_ids", "customer_name", "customer_phone",
	"customer_email", "booking_date", "time_slot", "duration_minutes", "status", "created_at",
}

func bookingRow(status string) *pgxmock.Rows {
	return pgxmock.NewRows(bookingCols).AddRow(bookingID, "merchant-1", "staff-1", []string{"svc-a"}, "Priya",
		"+919800000000", "", bookingDate, "09:00", 30, status, time.Now())
}

func TestUpdateStatus(t *testing.T) {
	fs := &fakeSlots{}
	svc, mock := setup(t, fs)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID, "merchant-1").
		WillReturnRows(bookingRow(model.StatusPending))
	mock.ExpectQuery("FROM update_booking_status_with_slot_management").
		WithArgs(bookingID, model.StatusCancelled, "merchant-1").
		WillReturnRows(pgxmock.NewRows([]string{"success", "message"}).AddRow(true, ""))
	mock.ExpectExec("INSERT INTO outbox_events").
		WithArgs(outboxArgs(outbox.EventBookingStatusChanged)...).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))
	mock.ExpectCommit()

	b, err := svc.UpdateStatus(context.Background(), "merchant-1", bookingID, model.StatusCancelled)
	if err != nil {
		t.Fatalf("UpdateStatus: %v", err)
	}
	if b.Status != model.StatusCancelled {
		t.Fatalf("expected cancelled, got %s", b.Status)
	}
	if len(fs.invalidated) != 1 {
		t.Fatalf("expected cache invalidation, got %v", fs.invalidated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatus_SameStatusIsNoop(t *testing.T) {
	fs := &fakeSlots{}
	svc, mock := setup(t, fs)

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings").
		WithArgs(bookingID, "merchant-1").
		WillReturnRows(bookingRow(model.StatusConfirmed))
	mock.ExpectRollback()

	b, err := svc.UpdateStatus(context.Background(), "merchant-1", bookingID, model.StatusConfirmed)
	if err != nil || b.Status != model.StatusConfirmed {
		t.Fatalf("expected no-op, got %+v %v", b, err)
	}
	if len(fs.invalidated) != 0 {
		t.Fatalf("no change, no invalidation: %v", fs.invalidated)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestUpdateStatus_Rejected(t *testing.T) {
	svc, mock := setup(t, &fakeSlots{})

	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings").WithArgs(bookingID, "merchant-1").WillReturnRows(bookingRow(model.StatusCancelled))
	mock.ExpectQuery("FROM update_booking_status_with_slot_management").
		WithArgs(bookingID, model.StatusCompleted, "merchant-1").
		WillReturnRows(pgxmock.NewRows([]string{"success", "message"}).AddRow(false, "booking is cancelled"))
	mock.ExpectRollback()

	_, err := svc.UpdateStatus(context.Background(), "merchant-1", bookingID, model.StatusCompleted)
	if !errors.Is(err, storage.ErrStatusRejected) {
		t.Fatalf("expected ErrStatusRejected, got %v", err)
	}
}

func TestUpdateStatus_Validation(t *testing.T) {
	svc, mock := setup(t, &fakeSlots{})
	if _, err := svc.UpdateStatus(context.Background(), "merchant-1", bookingID, "archived"); !errors.Is(err, ErrInvalidStatus) {
		t.Fatalf("expected ErrInvalidStatus, got %v", err)
	}
	if _, err := svc.UpdateStatus(context.Background(), "merchant-1", "not-a-uuid", model.StatusConfirmed); !errors.Is(err, ErrInvalidBookingID) {
		t.Fatalf("expected ErrInvalidBookingID, got %v", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("no db calls expected: %v", err)
	}
}

func TestUpdateStatus_NotFound(t *testing.T) {
	svc, mock := setup(t, &fakeSlots{})
	mock.ExpectBegin()
	mock.ExpectQuery("FROM bookings").WithArgs(bookingID, "merchant-2").WillReturnRows(pgxmock.NewRows(bookingCols))
	mock.ExpectRollback()

	if _, err := svc.UpdateStatus(context.Background(), "merchant-2", bookingID, model.StatusConfirmed); !storage.IsNotFound(err) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":        nil,
		"conflict":  ErrSlotUnavailable,
		"rejected":  storage.ErrStatusRejected,
		"invalid":   ErrInvalidStatus,
		"not_found": storage.ErrNotFound,
		"error":     errors.New("boom"),
	}
	for want, err := range cases {
		if got := outcome(err); got != want {
			t.Fatalf("outcome(%v) = %s, want %s", err, got, want)
		}
	}
}
