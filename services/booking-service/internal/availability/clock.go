package availability

import "time"

// IST is the merchant civil timezone. Business rules never use any other zone.
var IST = time.FixedZone("IST", 5*60*60+30*60)

const dateLayout = "2006-01-02"

type Clock interface {
	Now() time.Time
}

type SystemClock struct{}

func (SystemClock) Now() time.Time { return time.Now().In(IST) }

// ClockFunc adapts a plain function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// ParseDate parses a "YYYY-MM-DD" calendar date in IST.
func ParseDate(s string) (time.Time, error) {
	return time.ParseInLocation(dateLayout, s, IST)
}

// FormatDate renders the calendar date of d as "YYYY-MM-DD". The components are
// taken as-is; d is not converted to IST first.
func FormatDate(d time.Time) string {
	return d.Format(dateLayout)
}

// IsToday reports whether the calendar date of date matches now's date in IST.
func IsToday(date, now time.Time) bool {
	y, m, d := date.Date()
	ny, nm, nd := now.In(IST).Date()
	return y == ny && m == nm && d == nd
}

// leadTimeCutoff returns the earliest bookable minute of day for today: now in
// IST plus the lead time, rounded up to the next grid boundary. The result can
// exceed the length of a day, which excludes every slot.
func leadTimeCutoff(now time.Time, leadMinutes int) int {
	if leadMinutes < 0 {
		leadMinutes = 0
	}
	local := now.In(IST)
	secs := local.Hour()*3600 + local.Minute()*60 + local.Second()
	if local.Nanosecond() > 0 {
		secs++
	}
	secs += leadMinutes * 60

	step := GridMinutes * 60
	secs = (secs + step - 1) / step * step
	return secs / 60
}
