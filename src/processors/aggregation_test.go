package processors

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tugsousa/fundfolio/src/models"
)

func navFund(id int64, category string, nav string) models.Fund {
	f := models.Fund{
		ID:          id,
		DirectionID: 1,
		Code:        "000001",
		Name:        "fund",
		Category:    category,
	}
	if nav != "" {
		f.LatestNetWorth = decimal.NullDecimal{Decimal: dec(nav), Valid: true}
		f.LatestNetWorthDate = "2024-03-01"
	}
	return f
}

func simpleBuy(fundID int64, amount, shares, price, date string) models.Transaction {
	tx := models.NewBuy(fundID, dec(amount), dec(shares), dec(price), decimal.Zero, date)
	tx.ID = fundID * 100
	return tx
}

func defaultOpts(today string) AggregationOptions {
	day, _ := time.Parse(models.DateFormat, today)
	return AggregationOptions{
		Today:        day,
		StaleBuyDays: 45,
		DropPct:      dec("-5"),
		RisePct:      dec("8"),
	}
}

func TestAggregateDirectionTotals(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, Name: "steady", ExpectedAmount: dec("20000")}
	accounts := []FundAccount{
		{
			Fund:         navFund(1, "bond", "1.1"),
			Transactions: []models.Transaction{simpleBuy(1, "1000", "1000", "1", "2024-02-20")},
		},
		{
			Fund:         navFund(2, "equity", "2.2"),
			Transactions: []models.Transaction{simpleBuy(2, "4000", "2000", "2", "2024-02-25")},
		},
	}

	summary, err := AggregateDirection(direction, accounts, nil, defaultOpts("2024-03-01"))
	require.NoError(t, err)

	assertDecEqual(t, "5000", summary.TotalInvested, 2)
	assertDecEqual(t, "5500", summary.CurrentValue, 2) // 1000*1.1 + 2000*2.2
	assertDecEqual(t, "5000", summary.HoldingCost, 2)
	assertDecEqual(t, "500", summary.TotalProfit, 2)
	assertDecEqual(t, "10", summary.TotalProfitRate, 2)
	assert.Len(t, summary.Categories, 2)
}

func TestAggregateGroupsEmptyCategoryAsUncategorized(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, ExpectedAmount: dec("1000")}
	accounts := []FundAccount{
		{
			Fund:         navFund(1, "  ", "1"),
			Transactions: []models.Transaction{simpleBuy(1, "100", "100", "1", "2024-02-20")},
		},
	}

	summary, err := AggregateDirection(direction, accounts, nil, defaultOpts("2024-03-01"))
	require.NoError(t, err)

	require.Len(t, summary.Categories, 1)
	assert.Equal(t, UncategorizedBucket, summary.Categories[0].Category)
}

func TestOverweightAlertPerLiveFund(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, ExpectedAmount: dec("10000")}
	targets := []models.CategoryTarget{
		{DirectionID: 1, Category: "bond", TargetPercent: dec("10")}, // 1000 absolute
	}
	liquidated := FundAccount{
		Fund: navFund(2, "bond", "1"),
		Transactions: func() []models.Transaction {
			buy := simpleBuy(2, "500", "500", "1", "2024-01-05")
			sell := models.NewSell(2, dec("500"), dec("500"), dec("1"), decimal.Zero, "2024-01-20")
			sell.ID = 201
			return []models.Transaction{buy, sell}
		}(),
	}
	accounts := []FundAccount{
		{
			Fund:         navFund(1, "bond", "1"),
			Transactions: []models.Transaction{simpleBuy(1, "1500", "1500", "1", "2024-02-20")},
		},
		liquidated,
	}

	summary, err := AggregateDirection(direction, accounts, targets, defaultOpts("2024-03-01"))
	require.NoError(t, err)

	var overweight []Alert
	for _, a := range summary.Alerts {
		if a.Type == AlertOverweight {
			overweight = append(overweight, a)
		}
	}
	require.Len(t, overweight, 1, "liquidated funds are excluded from alerts")
	assert.Equal(t, int64(1), overweight[0].FundID)
	assertDecEqual(t, "50", overweight[0].Value, 2) // (1500-1000)/1000
}

func TestOverdueAlertRespectsThreshold(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, ExpectedAmount: dec("1000")}
	accounts := []FundAccount{
		{
			Fund:         navFund(1, "bond", "1"),
			Transactions: []models.Transaction{simpleBuy(1, "100", "100", "1", "2024-01-01")},
		},
	}

	// 40 days stale: fires at the 30-day detail threshold, not the 45-day
	// dashboard one.
	optsDetail := defaultOpts("2024-02-10")
	optsDetail.StaleBuyDays = 30
	summary, err := AggregateDirection(direction, accounts, nil, optsDetail)
	require.NoError(t, err)
	assert.True(t, hasAlert(summary.Alerts, AlertOverdue))

	optsDashboard := defaultOpts("2024-02-10")
	optsDashboard.StaleBuyDays = 45
	summary, err = AggregateDirection(direction, accounts, nil, optsDashboard)
	require.NoError(t, err)
	assert.False(t, hasAlert(summary.Alerts, AlertOverdue))
}

func TestOverdueCountsWholeDaysAcrossTimezones(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, ExpectedAmount: dec("1000")}
	accounts := []FundAccount{
		{
			Fund:         navFund(1, "bond", "1"),
			Transactions: []models.Transaction{simpleBuy(1, "100", "100", "1", "2024-01-01")},
		},
	}

	// 31 days stale. Today carries a UTC+8 wall-clock time shortly after
	// midnight; the day count must not lose a day to the zone offset.
	opts := defaultOpts("2024-02-01")
	opts.Today = time.Date(2024, 2, 1, 0, 30, 0, 0, time.FixedZone("UTC+8", 8*60*60))
	opts.StaleBuyDays = 30
	summary, err := AggregateDirection(direction, accounts, nil, opts)
	require.NoError(t, err)
	assert.True(t, hasAlert(summary.Alerts, AlertOverdue))

	// Exactly at the threshold: not overdue yet.
	opts.Today = time.Date(2024, 1, 31, 23, 30, 0, 0, time.FixedZone("UTC+8", 8*60*60))
	summary, err = AggregateDirection(direction, accounts, nil, opts)
	require.NoError(t, err)
	assert.False(t, hasAlert(summary.Alerts, AlertOverdue))
}

func TestPriceBandAlerts(t *testing.T) {
	direction := models.InvestmentDirection{ID: 1, ExpectedAmount: dec("1000")}

	dropped := FundAccount{
		Fund:         navFund(1, "equity", "0.90"), // -10% vs buy at 1.0
		Transactions: []models.Transaction{simpleBuy(1, "100", "100", "1.0", "2024-02-25")},
	}
	risen := FundAccount{
		Fund:         navFund(2, "equity", "1.10"), // +10%
		Transactions: []models.Transaction{simpleBuy(2, "100", "100", "1.0", "2024-02-25")},
	}
	flat := FundAccount{
		Fund:         navFund(3, "equity", "1.02"), // +2%, inside the bands
		Transactions: []models.Transaction{simpleBuy(3, "100", "100", "1.0", "2024-02-25")},
	}

	summary, err := AggregateDirection(direction, []FundAccount{dropped, risen, flat}, nil, defaultOpts("2024-03-01"))
	require.NoError(t, err)

	assert.True(t, hasAlertForFund(summary.Alerts, AlertPriceDrop, 1))
	assert.True(t, hasAlertForFund(summary.Alerts, AlertPriceRise, 2))
	assert.False(t, hasAlertForFund(summary.Alerts, AlertPriceDrop, 3))
	assert.False(t, hasAlertForFund(summary.Alerts, AlertPriceRise, 3))
}

func hasAlert(alerts []Alert, typ string) bool {
	for _, a := range alerts {
		if a.Type == typ {
			return true
		}
	}
	return false
}

func hasAlertForFund(alerts []Alert, typ string, fundID int64) bool {
	for _, a := range alerts {
		if a.Type == typ && a.FundID == fundID {
			return true
		}
	}
	return false
}
