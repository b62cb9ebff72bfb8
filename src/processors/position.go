package processors

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/models"
)

// ShareEpsilon is the residual-dust threshold: after a SELL, a share balance
// with absolute value below it is treated as exactly zero, and the leftover
// cost is cleared with it so no micro-cost strands from rounding.
var ShareEpsilon = decimal.NewFromFloat(0.01)

var hundred = decimal.NewFromInt(100)

// PositionState is the running accounting state of one fund, produced by
// folding its transaction ledger in date order. Average-cost accounting:
// every sell draws from the blended cost basis at the moment of sale.
type PositionState struct {
	Shares           decimal.Decimal `json:"shares"`
	Cost             decimal.Decimal `json:"cost"`
	SellProfit       decimal.Decimal `json:"sellProfit"`
	DividendCash     decimal.Decimal `json:"dividendCash"`
	DividendReinvest decimal.Decimal `json:"dividendReinvest"`
}

// IsLiquidated reports whether the position holds no shares (within epsilon).
func (s *PositionState) IsLiquidated() bool {
	return s.Shares.Abs().LessThan(ShareEpsilon)
}

// AvgCostPrice is the blended per-share cost basis, zero for an empty position.
func (s *PositionState) AvgCostPrice() decimal.Decimal {
	if s.Shares.IsZero() || s.Cost.IsZero() {
		return decimal.Zero
	}
	return s.Cost.Div(s.Shares)
}

// Valuation is the point-in-time view of a position given a current price.
type Valuation struct {
	PositionState
	HoldingValue      decimal.Decimal `json:"holdingValue"`
	HoldingProfit     decimal.Decimal `json:"holdingProfit"`
	HoldingProfitRate decimal.Decimal `json:"holdingProfitRate"`
	TotalProfit       decimal.Decimal `json:"totalProfit"`
	// TotalInvested is the total-return-rate denominator:
	// cost + sellProfit + dividendReinvest. It deliberately nets out
	// already-realized gains rather than using gross cash invested; the
	// gross alternative was considered and not adopted, to keep the rate
	// semantics of the original system.
	TotalInvested   decimal.Decimal `json:"totalInvested"`
	TotalProfitRate decimal.Decimal `json:"totalProfitRate"`
}

// Valuate derives holding value and profit metrics at currentPrice.
func (s *PositionState) Valuate(currentPrice decimal.Decimal) Valuation {
	v := Valuation{PositionState: *s}
	v.HoldingValue = s.Shares.Mul(currentPrice)
	v.HoldingProfit = v.HoldingValue.Sub(s.Cost)
	if s.Cost.IsPositive() {
		v.HoldingProfitRate = v.HoldingProfit.Div(s.Cost).Mul(hundred)
	}
	v.TotalProfit = v.HoldingProfit.Add(s.SellProfit).Add(s.DividendCash).Add(s.DividendReinvest)
	v.TotalInvested = s.Cost.Add(s.SellProfit).Add(s.DividendReinvest)
	if v.TotalInvested.IsPositive() {
		v.TotalProfitRate = v.TotalProfit.Div(v.TotalInvested).Mul(hundred)
	}
	return v
}

// sortLedger orders transactions by date ascending, ties broken by id
// (insertion order).
func sortLedger(transactions []models.Transaction) []models.Transaction {
	sorted := make([]models.Transaction, len(transactions))
	copy(sorted, transactions)
	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Date != sorted[j].Date {
			return sorted[i].Date < sorted[j].Date
		}
		return sorted[i].ID < sorted[j].ID
	})
	return sorted
}

// Replay folds a fund's full ledger into its position state. A transaction
// that fails validation, or a sell that would push shares below -epsilon,
// aborts the replay: those are data-entry errors to surface, not correct.
func Replay(transactions []models.Transaction) (PositionState, error) {
	return ReplayUntil(transactions, "")
}

// ReplayUntil folds only transactions dated on or before cutoffDay
// (inclusive, YYYY-MM-DD). An empty cutoff replays everything.
func ReplayUntil(transactions []models.Transaction, cutoffDay string) (PositionState, error) {
	state := PositionState{
		Shares:           decimal.Zero,
		Cost:             decimal.Zero,
		SellProfit:       decimal.Zero,
		DividendCash:     decimal.Zero,
		DividendReinvest: decimal.Zero,
	}
	for _, tx := range sortLedger(transactions) {
		if cutoffDay != "" && tx.Date > cutoffDay {
			break
		}
		if err := state.apply(tx); err != nil {
			return state, err
		}
	}
	return state, nil
}

func (s *PositionState) apply(tx models.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	switch tx.Type {
	case models.TxBuy:
		s.Shares = s.Shares.Add(tx.Shares)
		s.Cost = s.Cost.Add(tx.Amount)
	case models.TxSell:
		sellShares := tx.Shares.Abs()
		avgCost := s.AvgCostPrice()
		costOfSold := avgCost.Mul(sellShares)
		sellRevenue := sellShares.Mul(tx.Price).Sub(tx.Fee)
		s.Shares = s.Shares.Sub(sellShares)
		if s.Shares.LessThan(ShareEpsilon.Neg()) {
			return fmt.Errorf("position: transaction %d on %s sells %s shares but only %s held",
				tx.ID, tx.Date, sellShares.String(), s.Shares.Add(sellShares).String())
		}
		s.Cost = s.Cost.Sub(costOfSold)
		s.SellProfit = s.SellProfit.Add(sellRevenue.Sub(costOfSold))
		if s.Shares.Abs().LessThan(ShareEpsilon) {
			s.Shares = decimal.Zero
			s.Cost = decimal.Zero
		}
	case models.TxDividend:
		if tx.DividendReinvest {
			s.Shares = s.Shares.Add(tx.Shares)
			s.DividendReinvest = s.DividendReinvest.Add(tx.Amount)
		} else {
			s.DividendCash = s.DividendCash.Add(tx.Amount)
		}
	}
	return nil
}

// GrossBuyTotal sums the gross BUY amounts of transactions dated on or
// before cutoffDay (all of them when cutoff is empty). This is the
// historical invested figure, distinct from a direction's net actualAmount.
func GrossBuyTotal(transactions []models.Transaction, cutoffDay string) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		if cutoffDay != "" && tx.Date > cutoffDay {
			continue
		}
		if tx.Type == models.TxBuy {
			total = total.Add(tx.Amount)
		}
	}
	return total
}

// NetInvested is the derived actualAmount of a ledger: BUY amounts minus
// SELL proceeds plus reinvested dividends.
func NetInvested(transactions []models.Transaction) decimal.Decimal {
	total := decimal.Zero
	for _, tx := range transactions {
		switch tx.Type {
		case models.TxBuy:
			total = total.Add(tx.Amount)
		case models.TxSell:
			total = total.Sub(tx.Amount)
		case models.TxDividend:
			if tx.DividendReinvest {
				total = total.Add(tx.Amount)
			}
		}
	}
	return total
}
