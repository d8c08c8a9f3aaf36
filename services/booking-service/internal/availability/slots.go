package availability

import (
	"errors"
	"fmt"
	"strconv"
)

// GridMinutes is the width of every slot. The slot source generates one record
// per staff member per interval of this size.
const GridMinutes = 10

const minutesPerDay = 24 * 60

var ErrMalformedTimeSlot = errors.New("malformed time slot")

// Slot is one staff member's interval as reported by the slot source.
//
// A record is identified by (StaffID, TimeSlot). When a list carries the same
// pair more than once, the record that appears last wins.
type Slot struct {
	StaffID        string `json:"staff_id"`
	StaffName      string `json:"staff_name"`
	TimeSlot       string `json:"time_slot"`
	IsAvailable    bool   `json:"is_available"`
	ConflictReason string `json:"conflict_reason,omitempty"`
}

// ParseTimeSlot returns the minute of day for a zero-padded 24h "HH:MM" string.
func ParseTimeSlot(s string) (int, error) {
	if len(s) != 5 || s[2] != ':' || !digits(s[:2]) || !digits(s[3:]) {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimeSlot, s)
	}
	h, _ := strconv.Atoi(s[:2])
	m, _ := strconv.Atoi(s[3:])
	if h > 23 || m > 59 {
		return 0, fmt.Errorf("%w: %q", ErrMalformedTimeSlot, s)
	}
	return h*60 + m, nil
}

// FormatTimeSlot renders a minute of day as "HH:MM", wrapping on a 24h clock.
func FormatTimeSlot(minute int) string {
	minute = ((minute % minutesPerDay) + minutesPerDay) % minutesPerDay
	return fmt.Sprintf("%02d:%02d", minute/60, minute%60)
}

// AddMinutes shifts a "HH:MM" string by delta minutes on a 24h clock, so
// "23:50" + 10 is "00:00".
func AddMinutes(slot string, delta int) (string, error) {
	minute, err := ParseTimeSlot(slot)
	if err != nil {
		return "", err
	}
	return FormatTimeSlot(minute + delta), nil
}

// EndTime is the clock time durationMinutes after slot on the same day. A
// booking that runs to midnight ends at "24:00" rather than wrapping.
func EndTime(slot string, durationMinutes int) (string, error) {
	minute, err := ParseTimeSlot(slot)
	if err != nil {
		return "", err
	}
	end := minute + durationMinutes
	if end >= minutesPerDay {
		return "24:00", nil
	}
	return FormatTimeSlot(end), nil
}

// SlotsNeeded is the number of consecutive grid cells a booking of
// durationMinutes occupies. Durations that do not fill a whole cell round up.
func SlotsNeeded(durationMinutes int) int {
	if durationMinutes <= GridMinutes {
		return 1
	}
	return (durationMinutes + GridMinutes - 1) / GridMinutes
}

func digits(s string) bool {
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return false
		}
	}
	return true
}
