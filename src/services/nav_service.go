package services

import (
	"sort"
	"time"

	"github.com/tugsousa/fundfolio/src/logger"
	"github.com/tugsousa/fundfolio/src/utils"
)

// navServiceImpl resolves date-targeted NAVs from provider history.
type navServiceImpl struct {
	quote QuoteService

	// History window bounds and the maximum staleness a nearest match may
	// silently substitute for the requested date.
	historyMin int
	historyMax int
	maxLagDays int

	now func() time.Time
}

func NewNavService(quote QuoteService, historyMin, historyMax, maxLagDays int) NavResolver {
	return &navServiceImpl{
		quote:      quote,
		historyMin: historyMin,
		historyMax: historyMax,
		maxLagDays: maxLagDays,
		now:        time.Now,
	}
}

// GetNetWorth returns the NAV for code on date, or nil when no acceptable
// quote exists. Provider failures resolve to nil as well: the caller treats
// them identically to missing data and must never substitute zero.
func (s *navServiceImpl) GetNetWorth(code string, date time.Time) (*NetWorthResult, error) {
	if code == "" {
		return nil, nil
	}
	target := utils.FormatDay(date)

	// Size the window from how far back the target lies, with slack for
	// non-trading days, clamped to the provider's practical limits.
	window := utils.DaysBetween(date, s.now()) + 10
	if window < s.historyMin {
		window = s.historyMin
	}
	if window > s.historyMax {
		window = s.historyMax
	}

	history, err := s.quote.FetchNetWorthHistory(code, window)
	if err != nil {
		logger.L.Warn("NAV history unavailable", "code", code, "date", target, "error", err)
		return nil, nil
	}
	if len(history) == 0 {
		return nil, nil
	}

	for _, entry := range history {
		if entry.Date == target {
			return &NetWorthResult{Date: entry.Date, NetWorth: entry.NetWorth, Match: MatchExact}, nil
		}
	}

	// No exact match: take the most recent entry at or before the target,
	// as long as it is not too stale to stand in for it.
	sorted := make([]NetWorthEntry, len(history))
	copy(sorted, history)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Date > sorted[j].Date })

	oldestAcceptable := utils.FormatDay(date.AddDate(0, 0, -s.maxLagDays))
	for _, entry := range sorted {
		if entry.Date > target {
			continue
		}
		if entry.Date < oldestAcceptable {
			break
		}
		return &NetWorthResult{Date: entry.Date, NetWorth: entry.NetWorth, Match: MatchNearest}, nil
	}
	return nil, nil
}

// nearestInHistory picks the exact or nearest-earlier entry for a day from a
// pre-fetched history slice. Used by the backfill, which must not re-fetch
// per day. Returns nil when the history has nothing usable for that day.
func nearestInHistory(history []NetWorthEntry, day string) *NetWorthEntry {
	var best *NetWorthEntry
	for i := range history {
		entry := &history[i]
		if entry.Date > day {
			continue
		}
		if entry.Date == day {
			return entry
		}
		if best == nil || entry.Date > best.Date {
			best = entry
		}
	}
	return best
}
