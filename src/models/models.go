package models

import (
	"github.com/shopspring/decimal"
)

// DateFormat is the layout of day-keyed values (holidays, daily profits,
// transaction dates). Date-only strings sort and compare lexicographically.
// Request timestamps use RFC3339 and keep their time of day.
const DateFormat = "2006-01-02"

// InvestmentDirection is a top-level portfolio. ActualAmount is a derived
// cache (buys minus sell proceeds plus reinvested dividends across owned
// funds), recomputed after every transaction mutation.
type InvestmentDirection struct {
	ID             int64           `json:"id"`
	Name           string          `json:"name"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
	ActualAmount   decimal.Decimal `json:"actualAmount"`
}

// Fund is a single holding owned by exactly one direction. The latest NAV is
// cached on the row together with its date and refresh timestamp; an empty
// LatestNetWorthDate means no quote has ever been fetched.
type Fund struct {
	ID          int64  `json:"id"`
	DirectionID int64  `json:"directionId"`
	Code        string `json:"code"`
	Name        string `json:"name"`
	Category    string `json:"category"`
	ConfirmDays int    `json:"confirmDays"`

	// Fee rates as percentages, e.g. 0.15 means 0.15%.
	BuyFeeRate  decimal.Decimal `json:"buyFeeRate"`
	SellFeeRate decimal.Decimal `json:"sellFeeRate"`

	LatestNetWorth     decimal.NullDecimal `json:"latestNetWorth"`
	LatestNetWorthDate string              `json:"latestNetWorthDate"`
	NetWorthUpdatedAt  string              `json:"netWorthUpdatedAt"`
}

// HasNetWorth reports whether a cached NAV is available.
func (f *Fund) HasNetWorth() bool {
	return f.LatestNetWorth.Valid && f.LatestNetWorthDate != ""
}

// PendingTransaction statuses. WAITING rows are swept by the settlement job;
// CONFIRMED is terminal and never revisited.
const (
	PendingWaiting   = "WAITING"
	PendingConfirmed = "CONFIRMED"
)

// PendingTransaction is a buy/sell request recorded before its settlement
// NAV is known. ApplyAmount is set for BUY, ApplyShares for SELL.
type PendingTransaction struct {
	ID          int64           `json:"id"`
	FundID      int64           `json:"fundId"`
	Type        TxType          `json:"type"`
	ApplyDate   string          `json:"applyDate"` // RFC3339, time of day matters for the cutoff
	ApplyAmount decimal.Decimal `json:"applyAmount"`
	ApplyShares decimal.Decimal `json:"applyShares"`
	Status      string          `json:"status"`
}

// PlannedPurchase statuses.
const (
	PlannedPending   = "PENDING"
	PlannedCompleted = "COMPLETED"
)

// PlannedPurchase is a manually tracked buy intention. Completion is a
// one-way manual step that creates a BUY transaction.
type PlannedPurchase struct {
	ID            int64           `json:"id"`
	FundID        int64           `json:"fundId"`
	PlannedAmount decimal.Decimal `json:"plannedAmount"`
	Status        string          `json:"status"`
	CreatedAt     string          `json:"createdAt"`
	PurchasedAt   string          `json:"purchasedAt"`
}

// CategoryTarget allocates a percentage of a direction's expected amount to
// one category. Unique per (direction, category).
type CategoryTarget struct {
	ID            int64           `json:"id"`
	DirectionID   int64           `json:"directionId"`
	Category      string          `json:"category"`
	TargetPercent decimal.Decimal `json:"targetPercent"`
}

// DirectionDailyProfit is one derived snapshot row per (direction, day).
// It depends only on transactions dated on/before the day and the NAV in
// effect that day, so it is idempotently recomputable.
type DirectionDailyProfit struct {
	ID                   int64           `json:"id"`
	DirectionID          int64           `json:"directionId"`
	Date                 string          `json:"date"`
	DailyProfit          decimal.Decimal `json:"dailyProfit"`
	CumulativeProfit     decimal.Decimal `json:"cumulativeProfit"`
	CumulativeProfitRate decimal.Decimal `json:"cumulativeProfitRate"`
	TotalInvested        decimal.Decimal `json:"totalInvested"`
	CurrentValue         decimal.Decimal `json:"currentValue"`
}

// Holiday override types. Absence of a row means the weekday default applies.
const (
	HolidayTypeHoliday = "HOLIDAY"
	HolidayTypeWorkday = "WORKDAY"
)

// Holiday is a trading-calendar override for a single date.
type Holiday struct {
	ID     int64  `json:"id"`
	Date   string `json:"date"`
	Type   string `json:"type"`
	Remark string `json:"remark"`
}
