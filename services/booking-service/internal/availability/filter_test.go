package availability

import (
	"bytes"
	"log/slog"
	"reflect"
	"strings"
	"testing"
	"time"
)

var (
	today  = time.Date(2026, 10, 14, 0, 0, 0, 0, IST)
	future = time.Date(2026, 10, 20, 0, 0, 0, 0, IST)
)

func fixedFilter(now time.Time) *Filter {
	return NewFilter(ClockFunc(func() time.Time { return now }), slog.New(slog.NewTextHandler(&bytes.Buffer{}, nil)))
}

func startsOf(slots []Slot) []string {
	out := make([]string, 0, len(slots))
	for _, s := range slots {
		out = append(out, s.StaffID+"@"+s.TimeSlot)
	}
	return out
}

func grid(staff string, free map[string]bool) []Slot {
	var out []Slot
	for ts, ok := range free {
		out = append(out, Slot{StaffID: staff, StaffName: "Name " + staff, TimeSlot: ts, IsAvailable: ok})
	}
	return out
}

func TestFilterBookableStarts_MorningGrid(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:20", IsAvailable: false, ConflictReason: "booked"},
		{StaffID: "S1", TimeSlot: "09:30", IsAvailable: true},
	}

	got := f.FilterBookableStarts(slots, 20, future, 40)
	if len(got) != 1 {
		t.Fatalf("expected 1 start, got %v", startsOf(got))
	}
	if got[0].StaffID != "S1" || got[0].TimeSlot != "09:00" {
		t.Fatalf("expected S1@09:00, got %v", startsOf(got))
	}
}

func TestFilterBookableStarts_DegenerateDuration(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S2", TimeSlot: "09:30", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: false},
		{StaffID: "S1", TimeSlot: "09:40", IsAvailable: true},
	}
	want := []string{"S1@09:00", "S2@09:30", "S1@09:40"}

	for _, d := range []int{-5, 0, 1, 10} {
		got := startsOf(f.FilterBookableStarts(slots, d, future, 0))
		if !reflect.DeepEqual(got, want) {
			t.Fatalf("duration %d: expected %v, got %v", d, want, got)
		}
	}
}

func TestFilterBookableStarts_Consecutiveness(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := grid("S1", map[string]bool{"09:00": true, "09:10": true, "09:20": true, "09:30": false})

	got := startsOf(f.FilterBookableStarts(slots, 30, future, 0))
	if !reflect.DeepEqual(got, []string{"S1@09:00"}) {
		t.Fatalf("30 min: expected [S1@09:00], got %v", got)
	}
	if got := f.FilterBookableStarts(slots, 40, future, 0); len(got) != 0 {
		t.Fatalf("40 min: expected no starts, got %v", startsOf(got))
	}
}

func TestFilterBookableStarts_GapEqualsUnavailable(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	missing := grid("S1", map[string]bool{"09:00": true, "09:20": true})
	blocked := grid("S1", map[string]bool{"09:00": true, "09:10": false, "09:20": true})

	a := startsOf(f.FilterBookableStarts(missing, 30, future, 0))
	b := startsOf(f.FilterBookableStarts(blocked, 30, future, 0))
	if len(a) != 0 || len(b) != 0 {
		t.Fatalf("expected both rejected, got missing=%v blocked=%v", a, b)
	}
}

func TestFilterBookableStarts_NoDayWrap(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "00:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "23:50", IsAvailable: true},
	}

	got := startsOf(f.FilterBookableStarts(slots, 20, future, 0))
	if len(got) != 0 {
		t.Fatalf("expected 23:50 rejected for 20 min, got %v", got)
	}
}

func TestFilterBookableStarts_PerStaffPartition(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S2", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S2", TimeSlot: "09:00", IsAvailable: true},
	}

	got := startsOf(f.FilterBookableStarts(slots, 20, future, 0))
	if !reflect.DeepEqual(got, []string{"S2@09:00"}) {
		t.Fatalf("expected only S2@09:00, got %v", got)
	}
}

func TestFilterBookableStarts_RoundsDurationUp(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := grid("S1", map[string]bool{"09:00": true, "09:10": true, "09:20": true})

	got := startsOf(f.FilterBookableStarts(slots, 25, future, 0))
	if !reflect.DeepEqual(got, []string{"S1@09:00"}) {
		t.Fatalf("expected [S1@09:00], got %v", got)
	}
	if got := f.FilterBookableStarts(slots[:0], 25, future, 0); len(got) != 0 {
		t.Fatalf("expected empty result for empty input, got %v", got)
	}
}

func TestFilterBookableStarts_LeadTimeToday(t *testing.T) {
	now := today.Add(10*time.Hour + 5*time.Minute)
	f := fixedFilter(now)
	slots := grid("S1", map[string]bool{
		"10:30": true, "10:40": true, "10:50": true, "11:00": true, "11:10": true,
	})

	got := startsOf(f.FilterBookableStarts(slots, 10, today, 40))
	want := []string{"S1@10:50", "S1@11:00", "S1@11:10"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("today: expected %v, got %v", want, got)
	}

	got = startsOf(f.FilterBookableStarts(slots, 10, future, 40))
	if len(got) != 5 {
		t.Fatalf("future date: expected all 5 starts, got %v", got)
	}
}

func TestFilterBookableStarts_LeadTimePastMidnight(t *testing.T) {
	f := fixedFilter(today.Add(23*time.Hour + 30*time.Minute))
	slots := grid("S1", map[string]bool{"23:40": true, "23:50": true})

	if got := f.FilterBookableStarts(slots, 10, today, 40); len(got) != 0 {
		t.Fatalf("expected nothing bookable, got %v", startsOf(got))
	}
}

func TestFilterBookableStarts_TodayUsesISTCalendar(t *testing.T) {
	// 20:00 UTC on Oct 13 is 01:30 IST on Oct 14.
	f := fixedFilter(time.Date(2026, 10, 13, 20, 0, 0, 0, time.UTC))
	slots := grid("S1", map[string]bool{"01:00": true, "03:00": true})

	got := startsOf(f.FilterBookableStarts(slots, 10, today, 30))
	if !reflect.DeepEqual(got, []string{"S1@03:00"}) {
		t.Fatalf("expected [S1@03:00], got %v", got)
	}
}

func TestFilterBookableStarts_Idempotent(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S2", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S2", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S3", TimeSlot: "bad", IsAvailable: true},
	}
	before := append([]Slot(nil), slots...)

	first := f.FilterBookableStarts(slots, 10, future, 0)
	second := f.FilterBookableStarts(slots, 10, future, 0)
	if !reflect.DeepEqual(first, second) {
		t.Fatalf("expected identical output, got %v vs %v", startsOf(first), startsOf(second))
	}
	want := []string{"S1@09:00", "S2@09:00", "S1@09:10", "S2@09:10"}
	if got := startsOf(first); !reflect.DeepEqual(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if !reflect.DeepEqual(slots, before) {
		t.Fatalf("input was modified")
	}
}

func TestFilterBookableStarts_DuplicatesLastWins(t *testing.T) {
	f := fixedFilter(today.Add(8 * time.Hour))
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: false, ConflictReason: "booked"},
	}

	if got := f.FilterBookableStarts(slots, 20, future, 0); len(got) != 0 {
		t.Fatalf("expected last duplicate to block 09:00, got %v", startsOf(got))
	}

	slots[1], slots[2] = slots[2], slots[1]
	got := startsOf(f.FilterBookableStarts(slots, 20, future, 0))
	if !reflect.DeepEqual(got, []string{"S1@09:00"}) {
		t.Fatalf("expected [S1@09:00], got %v", got)
	}
}

func TestEvaluate_SkipsMalformedAndLogs(t *testing.T) {
	var buf bytes.Buffer
	f := NewFilter(ClockFunc(func() time.Time { return today.Add(8 * time.Hour) }), slog.New(slog.NewTextHandler(&buf, nil)))
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "9:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "25:00", IsAvailable: true},
		{StaffID: "", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: true},
	}

	rep := f.Evaluate(slots, 10, future, 0)
	if rep.Skipped != 3 {
		t.Fatalf("expected 3 skipped, got %d", rep.Skipped)
	}
	if len(rep.Evaluations) != 1 || !rep.Evaluations[0].Bookable {
		t.Fatalf("expected the single valid record to be bookable, got %+v", rep.Evaluations)
	}
	if !strings.Contains(buf.String(), "level=WARN") {
		t.Fatalf("expected warning log, got %q", buf.String())
	}
}

func TestEvaluate_Reasons(t *testing.T) {
	now := today.Add(9 * time.Hour)
	f := fixedFilter(now)
	slots := []Slot{
		{StaffID: "S1", TimeSlot: "09:00", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:10", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:20", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:30", IsAvailable: false, ConflictReason: "booked"},
		{StaffID: "S1", TimeSlot: "09:40", IsAvailable: true},
		{StaffID: "S1", TimeSlot: "09:50", IsAvailable: true},
	}

	rep := f.Evaluate(slots, 20, today, 10)
	if rep.SlotsNeeded != 2 {
		t.Fatalf("expected 2 slots needed, got %d", rep.SlotsNeeded)
	}
	want := map[string]Reason{
		"09:00": ReasonLeadTime,
		"09:10": "",
		"09:20": ReasonInsufficientTime,
		"09:30": ReasonUnavailable,
		"09:40": "",
		"09:50": ReasonInsufficientTime,
	}
	for _, ev := range rep.Evaluations {
		if ev.Reason != want[ev.TimeSlot] {
			t.Fatalf("%s: expected reason %q, got %q", ev.TimeSlot, want[ev.TimeSlot], ev.Reason)
		}
		if ev.Bookable != (ev.Reason == "") {
			t.Fatalf("%s: bookable=%v disagrees with reason %q", ev.TimeSlot, ev.Bookable, ev.Reason)
		}
	}
	if rep.Evaluations[3].ConflictReason != "booked" {
		t.Fatalf("expected conflict reason passed through, got %q", rep.Evaluations[3].ConflictReason)
	}
}
