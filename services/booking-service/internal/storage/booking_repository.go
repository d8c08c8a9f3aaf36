package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

type BookingRepository struct {
	db db.Querier
}

func NewBookingRepository(q db.Querier) *BookingRepository {
	return &BookingRepository{db: q}
}

const bookingColumns = `id::text, merchant_id::text, staff_id::text, service_ids, customer_name,
	customer_phone, COALESCE(customer_email, ''), booking_date, left(time_slot::text, 5),
	duration_minutes, status, created_at`

// Create inserts a pending booking. The table carries an exclusion constraint
// over (staff_id, booking time range); an overlapping insert fails with
// SQLSTATE 23P01, see IsConflict.
func (r *BookingRepository) Create(ctx context.Context, tx pgx.Tx, b *model.Booking) error {
	err := tx.QueryRow(ctx, `
		INSERT INTO bookings
			(id, merchant_id, staff_id, service_ids, customer_name, customer_phone, customer_email,
			booking_date, time_slot, duration_minutes, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8::date, $9::time, $10, $11)
		RETURNING created_at
	`, b.ID, b.MerchantID, b.StaffID, b.ServiceIDs, b.CustomerName, b.CustomerPhone, nullIfEmpty(b.CustomerEmail),
		availability.FormatDate(b.BookingDate), b.TimeSlot, b.DurationMinutes, b.Status).Scan(&b.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert booking: %w", err)
	}
	return nil
}

func (r *BookingRepository) GetForUpdate(ctx context.Context, tx pgx.Tx, merchantID, bookingID string) (model.Booking, error) {
	b, err := scanBooking(tx.QueryRow(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE id = $1 AND merchant_id = $2
		FOR UPDATE
	`, bookingID, merchantID))
	if errors.Is(err, pgx.ErrNoRows) {
		return model.Booking{}, ErrNotFound
	}
	return b, err
}

// UpdateStatus runs the status procedure, which also frees or re-reserves the
// booking's slots. A procedure refusal is returned as ErrStatusRejected.
func (r *BookingRepository) UpdateStatus(ctx context.Context, tx pgx.Tx, merchantID, bookingID, status string) error {
	var ok bool
	var message string
	err := tx.QueryRow(ctx, `
		SELECT success, COALESCE(message, '')
		FROM update_booking_status_with_slot_management($1, $2, $3)
	`, bookingID, status, merchantID).Scan(&ok, &message)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("update booking status: %w", err)
	}
	if !ok {
		if message == "" {
			return ErrStatusRejected
		}
		return fmt.Errorf("%w: %s", ErrStatusRejected, message)
	}
	return nil
}

func (r *BookingRepository) ListByMerchantDate(ctx context.Context, merchantID string, date time.Time, limit int) ([]model.Booking, error) {
	if limit <= 0 {
		limit = 200
	}
	rows, err := r.db.Query(ctx, `
		SELECT `+bookingColumns+`
		FROM bookings
		WHERE merchant_id = $1 AND booking_date = $2::date
		ORDER BY time_slot ASC, staff_id ASC
		LIMIT $3
	`, merchantID, availability.FormatDate(date), limit)
	if err != nil {
		return nil, fmt.Errorf("list bookings: %w", err)
	}
	defer rows.Close()

	var out []model.Booking
	for rows.Next() {
		b, err := scanBooking(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, b)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("list bookings: %w", rows.Err())
	}
	return out, nil
}

func scanBooking(row pgx.Row) (model.Booking, error) {
	var b model.Booking
	err := row.Scan(
		&b.ID,
		&b.MerchantID,
		&b.StaffID,
		&b.ServiceIDs,
		&b.CustomerName,
		&b.CustomerPhone,
		&b.CustomerEmail,
		&b.BookingDate,
		&b.TimeSlot,
		&b.DurationMinutes,
		&b.Status,
		&b.CreatedAt,
	)
	if err != nil {
		return model.Booking{}, err
	}
	return b, nil
}
