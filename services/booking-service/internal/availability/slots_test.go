package availability

import (
	"errors"
	"testing"
	"time"
)

func TestParseTimeSlot(t *testing.T) {
	cases := []struct {
		in   string
		want int
		ok   bool
	}{
		{"00:00", 0, true},
		{"09:10", 550, true},
		{"23:50", 1430, true},
		{"9:10", 0, false},
		{"24:00", 0, false},
		{"12:60", 0, false},
		{"+1:00", 0, false},
		{"09-10", 0, false},
		{"", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseTimeSlot(tc.in)
		if tc.ok {
			if err != nil || got != tc.want {
				t.Fatalf("ParseTimeSlot(%q) = %d, %v; want %d", tc.in, got, err, tc.want)
			}
			continue
		}
		if !errors.Is(err, ErrMalformedTimeSlot) {
			t.Fatalf("ParseTimeSlot(%q): expected ErrMalformedTimeSlot, got %v", tc.in, err)
		}
	}
}

func TestAddMinutesWrapsClock(t *testing.T) {
	got, err := AddMinutes("23:50", 10)
	if err != nil || got != "00:00" {
		t.Fatalf("expected 00:00, got %q (%v)", got, err)
	}
	got, err = AddMinutes("09:55", 10)
	if err != nil || got != "10:05" {
		t.Fatalf("expected 10:05, got %q (%v)", got, err)
	}
}

func TestEndTimeStopsAtMidnight(t *testing.T) {
	cases := []struct {
		start    string
		duration int
		want     string
	}{
		{"10:00", 30, "10:30"},
		{"23:40", 10, "23:50"},
		{"23:50", 10, "24:00"},
		{"23:30", 60, "24:00"},
	}
	for _, tc := range cases {
		got, err := EndTime(tc.start, tc.duration)
		if err != nil || got != tc.want {
			t.Fatalf("EndTime(%q, %d) = %q (%v), want %q", tc.start, tc.duration, got, err, tc.want)
		}
	}
	if _, err := EndTime("24:00", 10); !errors.Is(err, ErrMalformedTimeSlot) {
		t.Fatalf("expected ErrMalformedTimeSlot, got %v", err)
	}
}

func TestSlotsNeeded(t *testing.T) {
	cases := map[int]int{-1: 1, 0: 1, 10: 1, 11: 2, 20: 2, 25: 3, 90: 9}
	for in, want := range cases {
		if got := SlotsNeeded(in); got != want {
			t.Fatalf("SlotsNeeded(%d) = %d, want %d", in, got, want)
		}
	}
}

func TestLeadTimeCutoff(t *testing.T) {
	day := time.Date(2026, 10, 14, 0, 0, 0, 0, IST)
	cases := []struct {
		now  time.Time
		lead int
		want int
	}{
		{day.Add(10*time.Hour + 5*time.Minute), 40, 10*60 + 50},
		{day.Add(10 * time.Hour), 40, 10*60 + 40},
		{day.Add(10*time.Hour + 30*time.Second), 40, 10*60 + 50},
		{day.Add(10 * time.Hour), -15, 10 * 60},
	}
	for _, tc := range cases {
		if got := leadTimeCutoff(tc.now, tc.lead); got != tc.want {
			t.Fatalf("leadTimeCutoff(%s, %d) = %d, want %d", tc.now.Format("15:04:05"), tc.lead, got, tc.want)
		}
	}
}

func TestIsToday(t *testing.T) {
	now := time.Date(2026, 10, 13, 20, 0, 0, 0, time.UTC) // 01:30 IST on the 14th
	if !IsToday(time.Date(2026, 10, 14, 0, 0, 0, 0, IST), now) {
		t.Fatal("expected Oct 14 to be today in IST")
	}
	if IsToday(time.Date(2026, 10, 13, 0, 0, 0, 0, IST), now) {
		t.Fatal("did not expect Oct 13 to be today in IST")
	}
	d, err := ParseDate("2026-10-14")
	if err != nil || FormatDate(d) != "2026-10-14" {
		t.Fatalf("unexpected date round trip: %v %v", d, err)
	}
}
