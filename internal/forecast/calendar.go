package forecast

import "time"

// DayName returns the English weekday name, e.g. "Monday".
func DayName(t time.Time) string {
	return t.Weekday().String()
}

// IsWeekend is true on Saturday and Sunday. Display only; it never affects the math.
func IsWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}
