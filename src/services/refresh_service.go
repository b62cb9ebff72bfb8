package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/tugsousa/fundfolio/src/logger"
)

// RefreshResult summarizes a batch NAV refresh run.
type RefreshResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Skipped int      `json:"skipped"`
	Errors  []string `json:"errors"`
}

// RefreshService updates every fund's cached latest NAV from the provider.
// Callers must serialize runs (single active cron invocation); the sweep
// performs read-modify-write without row locking.
type RefreshService struct {
	db    *sql.DB
	quote QuoteService

	// fetchDelay is a fixed pause between per-fund provider calls, a
	// cooperative throttle against the upstream rate limits.
	fetchDelay time.Duration
	sleep      func(time.Duration)
}

func NewRefreshService(db *sql.DB, quote QuoteService, fetchDelay time.Duration) *RefreshService {
	return &RefreshService{
		db:         db,
		quote:      quote,
		fetchDelay: fetchDelay,
		sleep:      time.Sleep,
	}
}

// RefreshAll fetches the latest NAV for every fund with a quote code. One
// fund's failure never aborts the rest.
func (s *RefreshService) RefreshAll() (*RefreshResult, error) {
	funds, err := ListAllFunds(s.db)
	if err != nil {
		return nil, fmt.Errorf("nav refresh: listing funds: %w", err)
	}

	result := &RefreshResult{Errors: []string{}}
	for i, fund := range funds {
		if fund.Code == "" {
			result.Skipped++
			continue
		}
		if i > 0 {
			s.sleep(s.fetchDelay)
		}

		entry, err := s.quote.FetchCurrentNetWorth(fund.Code)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("fund %d (%s): %v", fund.ID, fund.Code, err))
			logger.L.Warn("NAV refresh failed", "fundId", fund.ID, "code", fund.Code, "error", err)
			continue
		}

		_, err = s.db.Exec(`UPDATE funds SET latest_net_worth = ?, latest_net_worth_date = ?, net_worth_updated_at = ?
			WHERE id = ?`, entry.NetWorth, entry.Date, time.Now().UTC().Format(time.RFC3339), fund.ID)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("fund %d (%s): %v", fund.ID, fund.Code, err))
			continue
		}
		result.Success++
	}
	return result, nil
}
