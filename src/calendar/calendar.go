// Package calendar resolves workday/holiday status and settlement dates
// against an override table of calendar exceptions. Dates without an
// override follow the weekday default: Mon-Fri are workdays.
package calendar

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/utils"
)

// OverrideStore supplies calendar overrides. LoadRange returns every
// override with from <= date <= to, keyed by YYYY-MM-DD, so a scan touches
// the store once instead of once per day.
type OverrideStore interface {
	LoadRange(from, to time.Time) (map[string]string, error)
}

type Calendar struct {
	store OverrideStore

	// scanLimitDays bounds every forward scan. Running past it means the
	// override data is nonsense (no workday in a month), which is a logic
	// error worth failing loudly on.
	scanLimitDays int
}

func New(store OverrideStore, scanLimitDays int) *Calendar {
	if scanLimitDays <= 0 {
		scanLimitDays = 30
	}
	return &Calendar{store: store, scanLimitDays: scanLimitDays}
}

func isWeekdayDefault(date time.Time) bool {
	wd := date.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func workdayFromOverrides(date time.Time, overrides map[string]string) bool {
	if typ, ok := overrides[utils.FormatDay(date)]; ok {
		return typ == models.HolidayTypeWorkday
	}
	return isWeekdayDefault(date)
}

// IsWorkday reports whether date is a trading day. An override wins;
// otherwise Mon-Fri is a workday.
func (c *Calendar) IsWorkday(date time.Time) (bool, error) {
	overrides, err := c.store.LoadRange(date, date)
	if err != nil {
		return false, fmt.Errorf("calendar: loading overrides: %w", err)
	}
	return workdayFromOverrides(date, overrides), nil
}

// NextWorkday returns the first workday strictly after date.
func (c *Calendar) NextWorkday(date time.Time) (time.Time, error) {
	from := utils.Midnight(date).AddDate(0, 0, 1)
	to := from.AddDate(0, 0, c.scanLimitDays)
	overrides, err := c.store.LoadRange(from, to)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: loading overrides: %w", err)
	}
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if workdayFromOverrides(d, overrides) {
			return d, nil
		}
	}
	return time.Time{}, fmt.Errorf("calendar: no workday within %d days after %s", c.scanLimitDays, utils.FormatDay(date))
}

// ConfirmDate advances from applyDate consuming n workdays and returns the
// date on which the nth workday falls (the T+N settlement date). n <= 0
// returns applyDate unchanged.
func (c *Calendar) ConfirmDate(applyDate time.Time, n int) (time.Time, error) {
	start := utils.Midnight(applyDate)
	if n <= 0 {
		return start, nil
	}
	maxScan := c.scanLimitDays + 7*n
	from := start.AddDate(0, 0, 1)
	to := start.AddDate(0, 0, maxScan)
	overrides, err := c.store.LoadRange(from, to)
	if err != nil {
		return time.Time{}, fmt.Errorf("calendar: loading overrides: %w", err)
	}
	remaining := n
	for d := from; !d.After(to); d = d.AddDate(0, 0, 1) {
		if workdayFromOverrides(d, overrides) {
			remaining--
			if remaining == 0 {
				return d, nil
			}
		}
	}
	return time.Time{}, fmt.Errorf("calendar: could not consume %d workdays within %d days after %s",
		n, maxScan, utils.FormatDay(applyDate))
}

// SQLStore reads overrides from the holidays table.
type SQLStore struct {
	DB *sql.DB
}

func (s *SQLStore) LoadRange(from, to time.Time) (map[string]string, error) {
	rows, err := s.DB.Query(
		`SELECT date, type FROM holidays WHERE date >= ? AND date <= ?`,
		utils.FormatDay(from), utils.FormatDay(to))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	overrides := make(map[string]string)
	for rows.Next() {
		var date, typ string
		if err := rows.Scan(&date, &typ); err != nil {
			return nil, err
		}
		overrides[date] = typ
	}
	return overrides, rows.Err()
}
