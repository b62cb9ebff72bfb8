package utils

import (
	"time"

	"github.com/tugsousa/fundfolio/src/models"
)

// BusinessLocation is the fixed business timezone (UTC+8). Settlement cutoff
// comparisons are pinned to it, never to client-local time.
var BusinessLocation = time.FixedZone("UTC+8", 8*60*60)

// ParseDay parses a date-only string (YYYY-MM-DD).
func ParseDay(s string) (time.Time, error) {
	return time.Parse(models.DateFormat, s)
}

// FormatDay formats t as a date-only string.
func FormatDay(t time.Time) string {
	return t.Format(models.DateFormat)
}

// Midnight drops the time-of-day component, keeping the date in t's location.
func Midnight(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, t.Location())
}

// DaysBetween returns the whole calendar days from a to b (b after a gives a
// positive count).
func DaysBetween(a, b time.Time) int {
	return int(Midnight(b).Sub(Midnight(a)).Hours() / 24)
}
