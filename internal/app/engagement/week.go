package engagement

import (
	"fmt"
	"strconv"
	"time"
)

// dayLayout is the calendar-date format used for streak day keys.
const dayLayout = "2006-01-02"

// Week boundaries are Monday 00:00 local. Time zones are fixed offsets in
// minutes east of UTC, never IANA names, so there is no DST arithmetic.

// localFrame shifts t into the local wall-clock frame, expressed in UTC.
func localFrame(t time.Time, tzOffsetMinutes int) time.Time {
	return t.UTC().Add(time.Duration(tzOffsetMinutes) * time.Minute)
}

// WeekIdentifier returns the ISO-8601 week label "YYYY-Www" of t in the
// given offset. The ISO year is the year of that week's Thursday.
func WeekIdentifier(t time.Time, tzOffsetMinutes int) string {
	year, week := localFrame(t, tzOffsetMinutes).ISOWeek()
	return fmt.Sprintf("%04d-W%02d", year, week)
}

// ValidWeekIdentifier reports whether s is a canonical "YYYY-Www" label of a
// week that exists, so "2025-W53" is rejected while "2026-W53" is accepted.
func ValidWeekIdentifier(s string) bool {
	if len(s) != 8 || s[4:6] != "-W" {
		return false
	}
	year, err := strconv.Atoi(s[:4])
	if err != nil || year < 1 {
		return false
	}
	week, err := strconv.Atoi(s[6:])
	if err != nil || week < 1 || week > 53 {
		return false
	}
	// January 4th always falls in ISO week 1.
	jan4 := time.Date(year, time.January, 4, 0, 0, 0, 0, time.UTC)
	monday := jan4.AddDate(0, 0, -((int(jan4.Weekday())+6)%7))
	return WeekIdentifier(monday.AddDate(0, 0, 7*(week-1)), 0) == s
}

// WeekRange returns [Monday 00:00 local, next Monday 00:00 local) for the week
// containing t, as absolute instants.
func WeekRange(t time.Time, tzOffsetMinutes int) (start, end time.Time) {
	local := localFrame(t, tzOffsetMinutes)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, time.UTC)
	sinceMonday := (int(midnight.Weekday()) + 6) % 7
	startLocal := midnight.AddDate(0, 0, -sinceMonday)

	start = startLocal.Add(-time.Duration(tzOffsetMinutes) * time.Minute)
	return start, start.Add(7 * 24 * time.Hour)
}

// PreviousWeekIdentifier returns the label of the week before the one
// containing t.
func PreviousWeekIdentifier(t time.Time, tzOffsetMinutes int) string {
	start, _ := WeekRange(t, tzOffsetMinutes)
	return WeekIdentifier(start.Add(-24*time.Hour), tzOffsetMinutes)
}

// DayKey returns the local calendar date of t.
func DayKey(t time.Time, tzOffsetMinutes int) string {
	return localFrame(t, tzOffsetMinutes).Format(dayLayout)
}

// previousDay returns the day key before day. Malformed keys yield "".
func previousDay(day string) string {
	d, err := time.Parse(dayLayout, day)
	if err != nil {
		return ""
	}
	return d.AddDate(0, 0, -1).Format(dayLayout)
}
