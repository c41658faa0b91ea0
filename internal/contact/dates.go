package contact

import (
	"strings"
	"time"

	"github.com/jgoulah/contactenergy/pkg/models"
)

const dateLayout = "2006-01-02"

// LastDayOfMonth returns midnight on the last calendar day of t's month.
// It rolls to day 1 of the next month and steps back one day, so December
// lands on the 31st and February follows leap years.
func LastDayOfMonth(t time.Time) time.Time {
	firstOfNext := time.Date(t.Year(), t.Month()+1, 1, 0, 0, 0, 0, t.Location())
	return firstOfNext.AddDate(0, 0, -1)
}

// MonthRange returns the first and last day of t's month
func MonthRange(t time.Time) (start, end time.Time) {
	start = time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, t.Location())
	return start, LastDayOfMonth(t)
}

// truncateDay drops the clock part of t while keeping its location
func truncateDay(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// ParseInterval converts a user-supplied interval name
func ParseInterval(s string) (models.Interval, error) {
	i := models.Interval(strings.ToLower(strings.TrimSpace(s)))
	if !i.Valid() {
		return "", newError(ErrInvalidRange, "parse interval", "unknown interval %q (available: monthly, daily, hourly)", s)
	}
	return i, nil
}
