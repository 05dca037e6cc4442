// Package birthday computes upcoming-birthday windows.
//
// A birthday is compared by calendar month and day only: someone born on
// 1987-12-30 has a birthday on every Dec 30. A window is the inclusive range
// [from, from+days]. It may cross the end of the year (Dec 28 + 7 days runs
// into Jan 4), which is why the comparison is expressed as a set of
// "MM-DD" keys rather than a lower/upper bound on month and day.
//
// Both SQL stores use Keys to build an IN / ANY filter, and the in-memory
// fakes used in tests call Matches, so there is exactly one definition of
// the window.
package birthday

import (
	"time"

	"github.com/sakif/contacts-api/internal/model"
)

// DefaultWindow is the number of days after today that count as upcoming.
const DefaultWindow = 7

// leapDay is the month/day key of Feb 29.
const leapDay = "02-29"

// Keys returns the "MM-DD" keys of every day in [from, from+days].
//
// In a non-leap year, people born on Feb 29 celebrate on Feb 28, so when the
// window contains Feb 28 of a non-leap year "02-29" is included as well.
// A negative days is treated as 0.
func Keys(from model.Date, days int) []string {
	if days < 0 {
		days = 0
	}

	keys := make([]string, 0, days+2)
	for i := 0; i <= days; i++ {
		d := from.AddDays(i)
		keys = append(keys, d.MonthDay())
		if d.Month() == time.February && d.Day() == 28 && !isLeap(d.Year()) {
			keys = append(keys, leapDay)
		}
	}
	return keys
}

// Matches reports whether birth falls in the window [from, from+days].
func Matches(birth, from model.Date, days int) bool {
	if birth.IsZero() {
		return false
	}
	key := birth.MonthDay()
	for _, k := range Keys(from, days) {
		if k == key {
			return true
		}
	}
	return false
}

func isLeap(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}
