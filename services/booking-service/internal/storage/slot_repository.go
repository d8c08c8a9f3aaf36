package storage

import (
	"context"
	"fmt"

	"github.com/md-rashed-zaman/salonbook/libs/db"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/availability"
	"github.com/md-rashed-zaman/salonbook/services/booking-service/internal/model"
)

// SlotRepository reads the per-staff slot grid that the database computes
// from operating hours, staff schedules and existing bookings.
type SlotRepository struct {
	db db.Querier
}

func NewSlotRepository(q db.Querier) *SlotRepository {
	return &SlotRepository{db: q}
}

// FetchSlots returns the raw slot list for one merchant day. Time slots are
// normalised to "HH:MM" whether the procedure returns text or time values.
func (r *SlotRepository) FetchSlots(ctx context.Context, q model.SlotQuery) ([]availability.Slot, error) {
	rows, err := r.db.Query(ctx, `
		SELECT staff_id::text,
			COALESCE(staff_name, ''),
			left(time_slot::text, 5),
			is_available,
			COALESCE(conflict_reason, '')
		FROM get_available_slots_with_ist_buffer($1, $2::date, $3, $4)
	`, q.MerchantID, availability.FormatDate(q.Date), nullIfEmpty(q.StaffID), q.DurationMinutes)
	if err != nil {
		return nil, fmt.Errorf("fetch slots: %w", err)
	}
	defer rows.Close()

	var slots []availability.Slot
	for rows.Next() {
		var s availability.Slot
		if err := rows.Scan(&s.StaffID, &s.StaffName, &s.TimeSlot, &s.IsAvailable, &s.ConflictReason); err != nil {
			return nil, fmt.Errorf("scan slot: %w", err)
		}
		slots = append(slots, s)
	}
	if rows.Err() != nil {
		return nil, fmt.Errorf("fetch slots: %w", rows.Err())
	}
	return slots, nil
}

// ServiceDuration sums the durations of the given services. Every id must
// belong to the merchant, otherwise ErrNotFound is returned.
func (r *SlotRepository) ServiceDuration(ctx context.Context, merchantID string, serviceIDs []string) (int, error) {
	ids := uniqueNonEmpty(serviceIDs)
	if len(ids) == 0 {
		return 0, nil
	}

	var total, found int
	err := r.db.QueryRow(ctx, `
		SELECT COALESCE(SUM(duration_minutes), 0)::int, COUNT(*)::int
		FROM services
		WHERE merchant_id = $1 AND id::text = ANY($2)
	`, merchantID, ids).Scan(&total, &found)
	if err != nil {
		return 0, fmt.Errorf("service duration: %w", err)
	}
	if found != len(ids) {
		return 0, fmt.Errorf("service duration: %d of %d services: %w", found, len(ids), ErrNotFound)
	}
	return total, nil
}

func nullIfEmpty(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func uniqueNonEmpty(in []string) []string {
	seen := make(map[string]struct{}, len(in))
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s == "" {
			continue
		}
		if _, ok := seen[s]; ok {
			continue
		}
		seen[s] = struct{}{}
		out = append(out, s)
	}
	return out
}
