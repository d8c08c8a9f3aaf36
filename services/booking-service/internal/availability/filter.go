package availability

import (
	"log/slog"
	"sort"
	"strings"
	"time"
)

type Reason string

const (
	ReasonUnavailable      Reason = "unavailable"
	ReasonInsufficientTime Reason = "insufficient_time"
	ReasonLeadTime         Reason = "lead_time"
)

// Evaluation is a slot together with the verdict on starting a booking there.
// Reason is empty when Bookable is true.
type Evaluation struct {
	Slot
	Bookable bool
	Reason   Reason
}

type Report struct {
	SlotsNeeded int
	// Evaluations holds every well-formed record after deduplication, in
	// ascending time order with ties broken by staff id.
	Evaluations []Evaluation
	// Skipped counts malformed records that were dropped.
	Skipped int
}

// Bookable returns the slots that can start a booking, in report order.
func (r Report) Bookable() []Slot {
	out := make([]Slot, 0, len(r.Evaluations))
	for _, e := range r.Evaluations {
		if e.Bookable {
			out = append(out, e.Slot)
		}
	}
	return out
}

// Filter turns a raw availability list into bookable start times. It keeps no
// state between calls and never modifies its input.
type Filter struct {
	clock  Clock
	logger *slog.Logger
}

func NewFilter(clock Clock, logger *slog.Logger) *Filter {
	if clock == nil {
		clock = SystemClock{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Filter{clock: clock, logger: logger}
}

// FilterBookableStarts returns the slots where a booking of durationMinutes can
// start: the slot and the following cells up to the duration are all present
// and available for the same staff member. When selectedDate is today in IST,
// starts earlier than now plus leadTimeMinutesForToday (rounded up to the grid)
// are dropped.
//
// A duration of at most one grid cell, including zero or negative values,
// requires no consecutive run, so every available slot qualifies.
func (f *Filter) FilterBookableStarts(slots []Slot, durationMinutes int, selectedDate time.Time, leadTimeMinutesForToday int) []Slot {
	return f.Evaluate(slots, durationMinutes, selectedDate, leadTimeMinutesForToday).Bookable()
}

// Evaluate is FilterBookableStarts but keeps the rejected slots along with the
// reason they cannot start a booking.
func (f *Filter) Evaluate(slots []Slot, durationMinutes int, selectedDate time.Time, leadTimeMinutesForToday int) Report {
	needed := SlotsNeeded(durationMinutes)

	type entry struct {
		slot   Slot
		minute int
	}

	entries := make([]entry, 0, len(slots))
	index := make(map[string]map[int]int)
	skipped := 0
	for i, s := range slots {
		if strings.TrimSpace(s.StaffID) == "" {
			f.logger.Warn("skipping slot record without staff id", "index", i, "time_slot", s.TimeSlot)
			skipped++
			continue
		}
		minute, err := ParseTimeSlot(s.TimeSlot)
		if err != nil {
			f.logger.Warn("skipping malformed slot record", "index", i, "staff_id", s.StaffID, "err", err)
			skipped++
			continue
		}
		cells := index[s.StaffID]
		if cells == nil {
			cells = make(map[int]int)
			index[s.StaffID] = cells
		}
		if at, dup := cells[minute]; dup {
			entries[at] = entry{slot: s, minute: minute}
			continue
		}
		cells[minute] = len(entries)
		entries = append(entries, entry{slot: s, minute: minute})
	}

	free := make(map[string]map[int]bool, len(index))
	for _, e := range entries {
		grid := free[e.slot.StaffID]
		if grid == nil {
			grid = make(map[int]bool)
			free[e.slot.StaffID] = grid
		}
		grid[e.minute] = e.slot.IsAvailable
	}

	sort.SliceStable(entries, func(a, b int) bool {
		if entries[a].minute != entries[b].minute {
			return entries[a].minute < entries[b].minute
		}
		return entries[a].slot.StaffID < entries[b].slot.StaffID
	})

	cutoff := -1
	if now := f.clock.Now(); IsToday(selectedDate, now) {
		cutoff = leadTimeCutoff(now, leadTimeMinutesForToday)
	}

	evals := make([]Evaluation, 0, len(entries))
	for _, e := range entries {
		ev := Evaluation{Slot: e.slot}
		switch {
		case !e.slot.IsAvailable:
			ev.Reason = ReasonUnavailable
		case !runIsFree(free[e.slot.StaffID], e.minute, needed):
			ev.Reason = ReasonInsufficientTime
		case cutoff >= 0 && e.minute < cutoff:
			ev.Reason = ReasonLeadTime
		default:
			ev.Bookable = true
		}
		evals = append(evals, ev)
	}

	return Report{SlotsNeeded: needed, Evaluations: evals, Skipped: skipped}
}

// runIsFree reports whether needed cells starting at start are all present and
// available. Cells past the end of the day count as absent.
func runIsFree(grid map[int]bool, start, needed int) bool {
	for i := 0; i < needed; i++ {
		m := start + i*GridMinutes
		if m >= minutesPerDay || !grid[m] {
			return false
		}
	}
	return true
}
