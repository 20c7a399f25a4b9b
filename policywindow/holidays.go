package policywindow

import "time"

// usFederalHolidays is the configurable data table of observed US
// federal holidays this tracker advances through, per spec.md §4.A's
// "configurable data, not code" directive. Extend this table yearly;
// business-day arithmetic never hard-codes a holiday rule in code.
var usFederalHolidays = map[string]bool{
	"2025-01-01": true, // New Year's Day
	"2025-01-20": true, // MLK Day
	"2025-02-17": true, // Washington's Birthday
	"2025-05-26": true, // Memorial Day
	"2025-06-19": true, // Juneteenth
	"2025-07-04": true, // Independence Day
	"2025-09-01": true, // Labor Day
	"2025-10-13": true, // Columbus Day
	"2025-11-11": true, // Veterans Day
	"2025-11-27": true, // Thanksgiving
	"2025-12-25": true, // Christmas

	"2026-01-01": true,
	"2026-01-19": true,
	"2026-02-16": true,
	"2026-05-25": true,
	"2026-06-19": true,
	"2026-07-03": true, // observed (July 4 falls on Saturday)
	"2026-09-07": true,
	"2026-10-12": true,
	"2026-11-11": true,
	"2026-11-26": true,
	"2026-12-25": true,

	"2027-01-01": true,
	"2027-01-18": true,
	"2027-02-15": true,
	"2027-05-31": true,
	"2027-06-18": true, // observed (June 19 falls on Saturday)
	"2027-07-05": true, // observed (July 4 falls on Sunday)
	"2027-09-06": true,
	"2027-10-11": true,
	"2027-11-11": true,
	"2027-11-25": true,
	"2027-12-24": true, // observed (Dec 25 falls on Saturday)
}

func isUSFederalHoliday(t time.Time) bool {
	return usFederalHolidays[t.Format("2006-01-02")]
}

func isWeekend(t time.Time) bool {
	wd := t.Weekday()
	return wd == time.Saturday || wd == time.Sunday
}

func isBusinessDay(t time.Time) bool {
	return !isWeekend(t) && !isUSFederalHoliday(t)
}

// addBusinessDays advances from start by n business days (weekends
// and US federal holidays excluded), walking a day at a time. n is
// always small in practice (policy windows top out around a year),
// so the naive walk stays well under any performance concern.
func addBusinessDays(start time.Time, n int) time.Time {
	d := start
	remaining := n
	for remaining > 0 {
		d = d.AddDate(0, 0, 1)
		if isBusinessDay(d) {
			remaining--
		}
	}
	return d
}

// businessDaysBetween counts business days strictly between from
// (exclusive) and to (inclusive when to is itself a business day),
// used to compute business_days_remaining.
func businessDaysBetween(from, to time.Time) int {
	if !to.After(from) {
		return 0
	}
	count := 0
	d := from
	for d.Before(to) {
		d = d.AddDate(0, 0, 1)
		if isBusinessDay(d) {
			count++
		}
	}
	return count
}
