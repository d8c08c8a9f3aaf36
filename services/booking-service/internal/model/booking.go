package model

import "time"

// Booking statuses. Transitions are arbitrated by the database.
const (
	StatusPending   = "pending"
	StatusConfirmed = "confirmed"
	StatusCompleted = "completed"
	StatusCancelled = "cancelled"
	StatusRejected  = "rejected"
	StatusNoShow    = "no_show"
)

var validStatuses = map[string]struct{}{
	StatusPending:   {},
	StatusConfirmed: {},
	StatusCompleted: {},
	StatusCancelled: {},
	StatusRejected:  {},
	StatusNoShow:    {},
}

func ValidStatus(s string) bool {
	_, ok := validStatuses[s]
	return ok
}

type Booking struct {
	ID              string
	MerchantID      string
	StaffID         string
	ServiceIDs      []string
	CustomerName    string
	CustomerPhone   string
	CustomerEmail   string
	BookingDate     time.Time
	TimeSlot        string
	DurationMinutes int
	Status          string
	CreatedAt       time.Time
}

// SlotQuery selects one day of slots from the slot source. An empty StaffID
// means every staff member of the merchant.
type SlotQuery struct {
	MerchantID      string
	StaffID         string
	Date            time.Time
	DurationMinutes int
}
