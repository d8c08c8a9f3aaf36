package outbox

import (
	"encoding/json"
	"fmt"
	"time"
)

const (
	AggregateBooking = "booking"

	// Topics equal the event type.
	EventBookingCreated       = "booking.created.v1"
	EventBookingStatusChanged = "booking.status_changed.v1"
)

// Event is the envelope written to the outbox table. An empty EventID is
// filled in on insert.
type Event struct {
	EventID       string
	AggregateType string
	AggregateID   string
	EventType     string
	Payload       []byte
}

type BookingCreated struct {
	BookingID       string    `json:"booking_id"`
	MerchantID      string    `json:"merchant_id"`
	StaffID         string    `json:"staff_id"`
	ServiceIDs      []string  `json:"service_ids"`
	BookingDate     string    `json:"booking_date"`
	TimeSlot        string    `json:"time_slot"`
	DurationMinutes int       `json:"duration_minutes"`
	CustomerName    string    `json:"customer_name"`
	CustomerPhone   string    `json:"customer_phone"`
	CreatedAt       time.Time `json:"created_at"`
}

type BookingStatusChanged struct {
	BookingID   string    `json:"booking_id"`
	MerchantID  string    `json:"merchant_id"`
	StaffID     string    `json:"staff_id"`
	BookingDate string    `json:"booking_date"`
	TimeSlot    string    `json:"time_slot"`
	OldStatus   string    `json:"old_status"`
	NewStatus   string    `json:"new_status"`
	ChangedAt   time.Time `json:"changed_at"`
}

// NewBookingEvent marshals payload into a booking aggregate event.
func NewBookingEvent(eventType, bookingID string, payload any) (Event, error) {
	raw, err := json.Marshal(payload)
	if err != nil {
		return Event{}, fmt.Errorf("marshal %s: %w", eventType, err)
	}
	return Event{
		AggregateType: AggregateBooking,
		AggregateID:   bookingID,
		EventType:     eventType,
		Payload:       raw,
	}, nil
}
