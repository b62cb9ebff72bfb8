package processors

import (
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/models"
)

// UncategorizedBucket collects funds with no category label.
const UncategorizedBucket = "uncategorized"

// Alert types emitted by the aggregation engine. Alerts are derived on read
// and never persisted.
const (
	AlertOverweight = "OVERWEIGHT"
	AlertOverdue    = "OVERDUE"
	AlertPriceDrop  = "PRICE_DROP"
	AlertPriceRise  = "PRICE_RISE"
)

type Alert struct {
	Type     string          `json:"type"`
	Category string          `json:"category"`
	FundID   int64           `json:"fundId,omitempty"`
	FundName string          `json:"fundName,omitempty"`
	Value    decimal.Decimal `json:"value"`
}

// FundAccount pairs a fund with its full ledger, the aggregation input unit.
type FundAccount struct {
	Fund         models.Fund
	Transactions []models.Transaction
}

// FundSummary is one fund's accounting state valued at its latest cached NAV
// (falling back to the average cost price when no quote was ever fetched).
type FundSummary struct {
	Fund         models.Fund     `json:"fund"`
	Valuation    Valuation       `json:"valuation"`
	GrossBuy     decimal.Decimal `json:"grossBuy"`
	LastBuyDate  string          `json:"lastBuyDate"`
	LastBuyPrice decimal.Decimal `json:"lastBuyPrice"`
	Liquidated   bool            `json:"liquidated"`
}

type CategorySummary struct {
	Category      string          `json:"category"`
	HoldingCost   decimal.Decimal `json:"holdingCost"`
	CurrentValue  decimal.Decimal `json:"currentValue"`
	TargetPercent decimal.Decimal `json:"targetPercent"`
	TargetAmount  decimal.Decimal `json:"targetAmount"`
	Funds         []FundSummary   `json:"funds"`
}

type DirectionSummary struct {
	Direction models.InvestmentDirection `json:"direction"`

	// TotalInvested is the historical gross BUY total, liquidated funds
	// included. The direction's cached actualAmount is the narrower
	// net-of-sells figure; the two are different metrics on purpose.
	TotalInvested   decimal.Decimal   `json:"totalInvested"`
	CurrentValue    decimal.Decimal   `json:"currentValue"`
	HoldingCost     decimal.Decimal   `json:"holdingCost"`
	SellProfit      decimal.Decimal   `json:"sellProfit"`
	TotalProfit     decimal.Decimal   `json:"totalProfit"`
	TotalProfitRate decimal.Decimal   `json:"totalProfitRate"`
	Categories      []CategorySummary `json:"categories"`
	Alerts          []Alert           `json:"alerts"`
}

// AggregationOptions carries the caller-surface thresholds. StaleBuyDays
// differs between the dashboard (45) and the detail page (30); callers pick
// the one matching their surface.
type AggregationOptions struct {
	Today        time.Time
	StaleBuyDays int
	DropPct      decimal.Decimal
	RisePct      decimal.Decimal
}

// SummarizeFund replays one fund's ledger and values it at the latest cached
// NAV. The error propagates ledger invariant violations untouched.
func SummarizeFund(account FundAccount) (FundSummary, error) {
	state, err := Replay(account.Transactions)
	if err != nil {
		return FundSummary{}, err
	}

	price := state.AvgCostPrice()
	if account.Fund.LatestNetWorth.Valid {
		price = account.Fund.LatestNetWorth.Decimal
	}

	summary := FundSummary{
		Fund:       account.Fund,
		Valuation:  state.Valuate(price),
		GrossBuy:   GrossBuyTotal(account.Transactions, ""),
		Liquidated: state.IsLiquidated(),
	}
	for _, tx := range sortLedger(account.Transactions) {
		if tx.Type == models.TxBuy {
			summary.LastBuyDate = tx.Date
			summary.LastBuyPrice = tx.Price
		}
	}
	return summary, nil
}

// AggregateDirection rolls per-fund accounting up to category and direction
// level and derives the alert set.
func AggregateDirection(direction models.InvestmentDirection, accounts []FundAccount,
	targets []models.CategoryTarget, opts AggregationOptions) (DirectionSummary, error) {

	result := DirectionSummary{
		Direction:       direction,
		TotalInvested:   decimal.Zero,
		CurrentValue:    decimal.Zero,
		HoldingCost:     decimal.Zero,
		SellProfit:      decimal.Zero,
		TotalProfit:     decimal.Zero,
		TotalProfitRate: decimal.Zero,
		Alerts:          []Alert{},
	}

	targetByCategory := make(map[string]decimal.Decimal)
	for _, t := range targets {
		targetByCategory[normalizeCategory(t.Category)] = t.TargetPercent
	}

	byCategory := make(map[string]*CategorySummary)
	totalInvestedDenominator := decimal.Zero

	for _, account := range accounts {
		summary, err := SummarizeFund(account)
		if err != nil {
			return result, err
		}

		result.TotalInvested = result.TotalInvested.Add(summary.GrossBuy)
		result.CurrentValue = result.CurrentValue.Add(summary.Valuation.HoldingValue)
		result.HoldingCost = result.HoldingCost.Add(summary.Valuation.Cost)
		result.SellProfit = result.SellProfit.Add(summary.Valuation.SellProfit)
		result.TotalProfit = result.TotalProfit.Add(summary.Valuation.TotalProfit)
		totalInvestedDenominator = totalInvestedDenominator.Add(summary.Valuation.TotalInvested)

		cat := normalizeCategory(account.Fund.Category)
		cs, ok := byCategory[cat]
		if !ok {
			percent := targetByCategory[cat]
			cs = &CategorySummary{
				Category:      cat,
				HoldingCost:   decimal.Zero,
				CurrentValue:  decimal.Zero,
				TargetPercent: percent,
				TargetAmount:  direction.ExpectedAmount.Mul(percent).Div(hundred),
			}
			byCategory[cat] = cs
		}
		cs.HoldingCost = cs.HoldingCost.Add(summary.Valuation.Cost)
		cs.CurrentValue = cs.CurrentValue.Add(summary.Valuation.HoldingValue)
		cs.Funds = append(cs.Funds, summary)
	}

	if totalInvestedDenominator.IsPositive() {
		result.TotalProfitRate = result.TotalProfit.Div(totalInvestedDenominator).Mul(hundred)
	}

	categories := make([]CategorySummary, 0, len(byCategory))
	for _, cs := range byCategory {
		categories = append(categories, *cs)
	}
	sort.Slice(categories, func(i, j int) bool { return categories[i].Category < categories[j].Category })
	result.Categories = categories

	for _, cs := range categories {
		result.Alerts = append(result.Alerts, categoryAlerts(cs, opts)...)
	}
	return result, nil
}

func normalizeCategory(category string) string {
	category = strings.TrimSpace(category)
	if category == "" {
		return UncategorizedBucket
	}
	return category
}

func categoryAlerts(cs CategorySummary, opts AggregationOptions) []Alert {
	var alerts []Alert

	// Overweight: holding cost past the category target, one alert per
	// non-liquidated fund.
	if cs.TargetAmount.IsPositive() && cs.HoldingCost.GreaterThan(cs.TargetAmount) {
		overPct := cs.HoldingCost.Sub(cs.TargetAmount).Div(cs.TargetAmount).Mul(hundred)
		for _, fs := range cs.Funds {
			if fs.Liquidated {
				continue
			}
			alerts = append(alerts, Alert{
				Type:     AlertOverweight,
				Category: cs.Category,
				FundID:   fs.Fund.ID,
				FundName: fs.Fund.Name,
				Value:    overPct,
			})
		}
	}

	// Overdue: no BUY in any live fund of the category within the threshold.
	lastBuy := ""
	hasLive := false
	for _, fs := range cs.Funds {
		if fs.Liquidated {
			continue
		}
		hasLive = true
		if fs.LastBuyDate > lastBuy {
			lastBuy = fs.LastBuyDate
		}
	}
	if hasLive && lastBuy != "" {
		if buyDay, err := time.Parse(models.DateFormat, lastBuy); err == nil {
			// Both sides date-only in the same location, so the count is a
			// whole number of days regardless of Today's time zone.
			today, _ := time.Parse(models.DateFormat, opts.Today.Format(models.DateFormat))
			staleDays := int(today.Sub(buyDay).Hours() / 24)
			if staleDays > opts.StaleBuyDays {
				alerts = append(alerts, Alert{
					Type:     AlertOverdue,
					Category: cs.Category,
					Value:    decimal.NewFromInt(int64(staleDays)),
				})
			}
		}
	}

	// Price band alerts: latest cached NAV vs. the most recent BUY price.
	for _, fs := range cs.Funds {
		if fs.Liquidated || !fs.Fund.LatestNetWorth.Valid || !fs.LastBuyPrice.IsPositive() {
			continue
		}
		changePct := fs.Fund.LatestNetWorth.Decimal.Sub(fs.LastBuyPrice).Div(fs.LastBuyPrice).Mul(hundred)
		switch {
		case changePct.LessThanOrEqual(opts.DropPct):
			alerts = append(alerts, Alert{
				Type:     AlertPriceDrop,
				Category: cs.Category,
				FundID:   fs.Fund.ID,
				FundName: fs.Fund.Name,
				Value:    changePct,
			})
		case changePct.GreaterThanOrEqual(opts.RisePct):
			alerts = append(alerts, Alert{
				Type:     AlertPriceRise,
				Category: cs.Category,
				FundID:   fs.Fund.ID,
				FundName: fs.Fund.Name,
				Value:    changePct,
			})
		}
	}
	return alerts
}
