package models

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// TxType tags the transaction variant. Each variant has its own required
// fields, enforced by the constructors and Validate.
type TxType string

const (
	TxBuy      TxType = "BUY"
	TxSell     TxType = "SELL"
	TxDividend TxType = "DIVIDEND"
)

// Transaction is an immutable ledger entry belonging to one fund. Rows are
// never mutated in place; an edit is a full replace. For SELL the persisted
// Shares value is negative, matching what the accounting replay expects.
type Transaction struct {
	ID               int64           `json:"id"`
	FundID           int64           `json:"fundId"`
	Type             TxType          `json:"type"`
	Amount           decimal.Decimal `json:"amount"`
	Shares           decimal.Decimal `json:"shares"`
	Price            decimal.Decimal `json:"price"`
	Fee              decimal.Decimal `json:"fee"`
	Date             string          `json:"date"` // date-only, YYYY-MM-DD
	DividendReinvest bool            `json:"dividendReinvest"`
	Remark           string          `json:"remark"`
}

// NewBuy builds a BUY entry. Amount is the gross amount spent including fee.
func NewBuy(fundID int64, amount, shares, price, fee decimal.Decimal, date string) Transaction {
	return Transaction{
		FundID: fundID,
		Type:   TxBuy,
		Amount: amount,
		Shares: shares,
		Price:  price,
		Fee:    fee,
		Date:   date,
	}
}

// NewSell builds a SELL entry. Amount is the net proceeds; shares is the
// positive quantity sold and is stored negated.
func NewSell(fundID int64, netAmount, soldShares, price, fee decimal.Decimal, date string) Transaction {
	return Transaction{
		FundID: fundID,
		Type:   TxSell,
		Amount: netAmount,
		Shares: soldShares.Abs().Neg(),
		Price:  price,
		Fee:    fee,
		Date:   date,
	}
}

// NewDividend builds a DIVIDEND entry. When reinvest is true, shares carries
// the reinvested share count; for a cash dividend it must be zero.
func NewDividend(fundID int64, amount, shares, price decimal.Decimal, date string, reinvest bool) Transaction {
	return Transaction{
		FundID:           fundID,
		Type:             TxDividend,
		Amount:           amount,
		Shares:           shares,
		Price:            price,
		Date:             date,
		DividendReinvest: reinvest,
	}
}

// Validate checks the per-variant required fields. A failure is a data-entry
// error on this one transaction and must reject it, never partially apply.
func (t *Transaction) Validate() error {
	if t.FundID <= 0 {
		return fmt.Errorf("transaction: fund id is required")
	}
	if _, err := time.Parse(DateFormat, t.Date); err != nil {
		return fmt.Errorf("transaction: invalid date %q: %w", t.Date, err)
	}
	if t.Fee.IsNegative() {
		return fmt.Errorf("transaction: fee must not be negative")
	}
	switch t.Type {
	case TxBuy:
		if !t.Amount.IsPositive() {
			return fmt.Errorf("transaction: BUY requires a positive amount")
		}
		if !t.Shares.IsPositive() {
			return fmt.Errorf("transaction: BUY requires positive shares")
		}
	case TxSell:
		if !t.Shares.IsNegative() {
			return fmt.Errorf("transaction: SELL requires negative shares")
		}
		if t.Price.IsZero() || t.Price.IsNegative() {
			return fmt.Errorf("transaction: SELL requires a positive price")
		}
	case TxDividend:
		if !t.Amount.IsPositive() {
			return fmt.Errorf("transaction: DIVIDEND requires a positive amount")
		}
		if t.DividendReinvest && !t.Shares.IsPositive() {
			return fmt.Errorf("transaction: reinvested DIVIDEND requires positive shares")
		}
		if !t.DividendReinvest && !t.Shares.IsZero() {
			return fmt.Errorf("transaction: cash DIVIDEND must not carry shares")
		}
	default:
		return fmt.Errorf("transaction: unknown type %q", t.Type)
	}
	return nil
}
