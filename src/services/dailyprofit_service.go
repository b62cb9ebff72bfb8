package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/logger"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/processors"
	"github.com/tugsousa/fundfolio/src/utils"
)

// BackfillResult summarizes a historical backfill run.
type BackfillResult struct {
	Success int      `json:"success"`
	Failed  int      `json:"failed"`
	Errors  []string `json:"errors"`
}

// DailyProfitService maintains the direction_daily_profits snapshot table.
// Rows are a derived cache: a day's record depends only on transactions
// dated on/before that day and the NAV in effect that day, so recomputing a
// range with unchanged inputs reproduces identical rows.
type DailyProfitService struct {
	db         *sql.DB
	quote      QuoteService
	historyMax int
	now        func() time.Time
}

func NewDailyProfitService(db *sql.DB, quote QuoteService, historyMax int) *DailyProfitService {
	return &DailyProfitService{
		db:         db,
		quote:      quote,
		historyMax: historyMax,
		now:        time.Now,
	}
}

// dayMetrics is one computed day before the day-over-day delta is applied.
type dayMetrics struct {
	cumulativeProfit decimal.Decimal
	currentValue     decimal.Decimal
	totalInvested    decimal.Decimal
	rateDenominator  decimal.Decimal
}

func (m dayMetrics) rate() decimal.Decimal {
	if !m.rateDenominator.IsPositive() {
		return decimal.Zero
	}
	return m.cumulativeProfit.Div(m.rateDenominator).Mul(hundred)
}

// computeDay folds every account up to day, valuing each fund with priceFor.
func computeDay(accounts []processors.FundAccount, day string,
	priceFor func(fund models.Fund, state processors.PositionState, day string) decimal.Decimal) (dayMetrics, error) {

	m := dayMetrics{
		cumulativeProfit: decimal.Zero,
		currentValue:     decimal.Zero,
		totalInvested:    decimal.Zero,
		rateDenominator:  decimal.Zero,
	}
	for _, account := range accounts {
		state, err := processors.ReplayUntil(account.Transactions, day)
		if err != nil {
			return m, err
		}
		v := state.Valuate(priceFor(account.Fund, state, day))
		m.cumulativeProfit = m.cumulativeProfit.Add(v.TotalProfit)
		m.currentValue = m.currentValue.Add(v.HoldingValue)
		// The invested figure freezes to buys dated on/before the day;
		// later buys never retroactively change earlier days.
		m.totalInvested = m.totalInvested.Add(processors.GrossBuyTotal(account.Transactions, day))
		m.rateDenominator = m.rateDenominator.Add(v.TotalInvested)
	}
	return m, nil
}

// cachedPrice values a fund at its latest cached NAV, or at average cost
// (profit-neutral) when no quote was ever fetched.
func cachedPrice(fund models.Fund, state processors.PositionState, _ string) decimal.Decimal {
	if fund.LatestNetWorth.Valid {
		return fund.LatestNetWorth.Decimal
	}
	return state.AvgCostPrice()
}

// SaveDirectionDailyProfit computes and upserts today's snapshot using each
// fund's latest cached NAV. The delta is taken against the most recent
// persisted day before today (zero when none exists).
func (s *DailyProfitService) SaveDirectionDailyProfit(directionID int64) error {
	accounts, err := LoadFundAccounts(s.db, directionID)
	if err != nil {
		return fmt.Errorf("daily profit: loading funds for direction %d: %w", directionID, err)
	}
	today := utils.FormatDay(s.now().In(utils.BusinessLocation))

	m, err := computeDay(accounts, today, cachedPrice)
	if err != nil {
		return fmt.Errorf("daily profit: direction %d: %w", directionID, err)
	}

	prev, err := s.previousCumulative(directionID, today)
	if err != nil {
		return err
	}
	return s.upsert(directionID, today, m, m.cumulativeProfit.Sub(prev))
}

// SaveDirectionDailyProfitRange backfills the last `days` days. Each fund's
// NAV history is fetched once up front; per day the replay uses the day's
// NAV, falling back to the nearest earlier entry in the fetched history,
// else the fund's cached latest. Deltas chain against the previously
// computed day inside the run, not the persisted table.
func (s *DailyProfitService) SaveDirectionDailyProfitRange(directionID int64, days int) (*BackfillResult, error) {
	if days <= 0 {
		return nil, fmt.Errorf("daily profit: days must be positive, got %d", days)
	}
	accounts, err := LoadFundAccounts(s.db, directionID)
	if err != nil {
		return nil, fmt.Errorf("daily profit: loading funds for direction %d: %w", directionID, err)
	}

	window := days + 15
	if window > s.historyMax {
		window = s.historyMax
	}
	histories := make(map[int64][]NetWorthEntry, len(accounts))
	for _, account := range accounts {
		if account.Fund.Code == "" {
			continue
		}
		history, err := s.quote.FetchNetWorthHistory(account.Fund.Code, window)
		if err != nil {
			logger.L.Warn("Backfill: NAV history unavailable, using cached NAV",
				"fundId", account.Fund.ID, "code", account.Fund.Code, "error", err)
			continue
		}
		histories[account.Fund.ID] = history
	}

	priceFor := func(fund models.Fund, state processors.PositionState, day string) decimal.Decimal {
		if entry := nearestInHistory(histories[fund.ID], day); entry != nil {
			return entry.NetWorth
		}
		return cachedPrice(fund, state, day)
	}

	today := utils.Midnight(s.now().In(utils.BusinessLocation))
	start := today.AddDate(0, 0, -(days - 1))

	prevCum, err := s.previousCumulative(directionID, utils.FormatDay(start))
	if err != nil {
		return nil, err
	}

	result := &BackfillResult{Errors: []string{}}
	for d := start; !d.After(today); d = d.AddDate(0, 0, 1) {
		day := utils.FormatDay(d)
		m, err := computeDay(accounts, day, priceFor)
		if err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", day, err))
			continue
		}
		if err := s.upsert(directionID, day, m, m.cumulativeProfit.Sub(prevCum)); err != nil {
			result.Failed++
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", day, err))
			continue
		}
		prevCum = m.cumulativeProfit
		result.Success++
	}
	return result, nil
}

// previousCumulative returns the cumulative profit of the most recent
// persisted day strictly before day, or zero when none exists.
func (s *DailyProfitService) previousCumulative(directionID int64, day string) (decimal.Decimal, error) {
	var cum decimal.Decimal
	err := s.db.QueryRow(`SELECT cumulative_profit FROM direction_daily_profits
		WHERE direction_id = ? AND date < ? ORDER BY date DESC LIMIT 1`, directionID, day).Scan(&cum)
	if err == sql.ErrNoRows {
		return decimal.Zero, nil
	}
	if err != nil {
		return decimal.Zero, fmt.Errorf("daily profit: loading previous day for direction %d: %w", directionID, err)
	}
	return cum, nil
}

func (s *DailyProfitService) upsert(directionID int64, day string, m dayMetrics, dailyProfit decimal.Decimal) error {
	_, err := s.db.Exec(`INSERT INTO direction_daily_profits
		(direction_id, date, daily_profit, cumulative_profit, cumulative_profit_rate, total_invested, current_value)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(direction_id, date) DO UPDATE SET
			daily_profit = excluded.daily_profit,
			cumulative_profit = excluded.cumulative_profit,
			cumulative_profit_rate = excluded.cumulative_profit_rate,
			total_invested = excluded.total_invested,
			current_value = excluded.current_value`,
		directionID, day, dailyProfit, m.cumulativeProfit, m.rate(), m.totalInvested, m.currentValue)
	if err != nil {
		return fmt.Errorf("daily profit: upserting %s for direction %d: %w", day, directionID, err)
	}
	return nil
}

// ListDailyProfits returns a direction's snapshot rows ordered by date.
func ListDailyProfits(q Queryer, directionID int64) ([]models.DirectionDailyProfit, error) {
	rows, err := q.Query(`SELECT id, direction_id, date, daily_profit, cumulative_profit,
		cumulative_profit_rate, total_invested, current_value
		FROM direction_daily_profits WHERE direction_id = ? ORDER BY date`, directionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var profits []models.DirectionDailyProfit
	for rows.Next() {
		var p models.DirectionDailyProfit
		if err := rows.Scan(&p.ID, &p.DirectionID, &p.Date, &p.DailyProfit, &p.CumulativeProfit,
			&p.CumulativeProfitRate, &p.TotalInvested, &p.CurrentValue); err != nil {
			return nil, err
		}
		profits = append(profits, p)
	}
	return profits, rows.Err()
}
