package services

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/calendar"
	"github.com/tugsousa/fundfolio/src/logger"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/utils"
)

var (
	one     = decimal.NewFromInt(1)
	hundred = decimal.NewFromInt(100)
)

// SettlementOutcome is one row's result from a sweep.
type SettlementOutcome struct {
	PendingID   int64  `json:"pendingId"`
	FundCode    string `json:"fundCode"`
	Status      string `json:"status"` // confirmed | skipped
	Reason      string `json:"reason,omitempty"`
	ConfirmDate string `json:"confirmDate,omitempty"`
}

type SweepResult struct {
	Confirmed int                 `json:"confirmed"`
	Skipped   int                 `json:"skipped"`
	Outcomes  []SettlementOutcome `json:"outcomes"`
}

// SettlementService converts WAITING pending transactions into finalized
// ledger entries once a NAV for the correct settlement date is available.
// Sweeps are idempotent per row: the WAITING->CONFIRMED transition happens
// exactly once, atomically with the transaction insert.
type SettlementService struct {
	db         *sql.DB
	cal        *calendar.Calendar
	nav        NavResolver
	cutoffHour int
	now        func() time.Time
}

func NewSettlementService(db *sql.DB, cal *calendar.Calendar, nav NavResolver, cutoffHour int) *SettlementService {
	return &SettlementService{
		db:         db,
		cal:        cal,
		nav:        nav,
		cutoffHour: cutoffHour,
		now:        time.Now,
	}
}

// ConfirmPending sweeps every WAITING row. One row's failure never aborts
// the rest; each row reports confirmed or skipped-with-reason.
func (s *SettlementService) ConfirmPending() (*SweepResult, error) {
	rows, err := s.db.Query(`SELECT id, fund_id, type, apply_date, apply_amount, apply_shares, status
		FROM pending_transactions WHERE status = ? ORDER BY id`, models.PendingWaiting)
	if err != nil {
		return nil, fmt.Errorf("settlement: listing pending rows: %w", err)
	}
	var pendings []models.PendingTransaction
	for rows.Next() {
		var p models.PendingTransaction
		if err := rows.Scan(&p.ID, &p.FundID, &p.Type, &p.ApplyDate, &p.ApplyAmount, &p.ApplyShares, &p.Status); err != nil {
			rows.Close()
			return nil, err
		}
		pendings = append(pendings, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	result := &SweepResult{Outcomes: []SettlementOutcome{}}
	for _, p := range pendings {
		outcome := s.settleRow(p)
		if outcome.Status == "confirmed" {
			result.Confirmed++
		} else {
			result.Skipped++
		}
		result.Outcomes = append(result.Outcomes, outcome)
		logger.L.Info("Settlement sweep row", "pendingId", p.ID, "status", outcome.Status, "reason", outcome.Reason)
	}
	return result, nil
}

func (s *SettlementService) settleRow(p models.PendingTransaction) SettlementOutcome {
	skip := func(reason string) SettlementOutcome {
		return SettlementOutcome{PendingID: p.ID, Status: "skipped", Reason: reason}
	}

	fund, err := GetFund(s.db, p.FundID)
	if err != nil {
		return skip(err.Error())
	}
	if fund.Code == "" {
		return skip("fund has no quote code")
	}

	applyTime, err := time.Parse(time.RFC3339, p.ApplyDate)
	if err != nil {
		return skip(fmt.Sprintf("invalid apply date %q", p.ApplyDate))
	}
	// The cutoff is pinned to the business timezone, never client-local.
	applyTime = applyTime.In(utils.BusinessLocation)
	effectiveDay := utils.Midnight(applyTime)

	isWorkday, err := s.cal.IsWorkday(effectiveDay)
	if err != nil {
		return skip(err.Error())
	}
	if !isWorkday || applyTime.Hour() >= s.cutoffHour {
		effectiveDay, err = s.cal.NextWorkday(effectiveDay)
		if err != nil {
			return skip(err.Error())
		}
	}
	requiredDay := utils.FormatDay(effectiveDay)

	confirmDay, err := s.cal.ConfirmDate(effectiveDay, fund.ConfirmDays)
	if err != nil {
		return skip(err.Error())
	}

	navValue, ok, reason := s.resolveSettleNav(fund, effectiveDay, requiredDay)
	if !ok {
		return skip(reason)
	}

	remark := fmt.Sprintf("auto settled, applied %s, confirm date %s", requiredDay, utils.FormatDay(confirmDay))
	var tx models.Transaction
	switch p.Type {
	case models.TxBuy:
		// The apply amount is gross; back out the fee at the buy rate.
		rate := fund.BuyFeeRate.Div(hundred)
		netAmount := p.ApplyAmount.Div(one.Add(rate))
		fee := p.ApplyAmount.Sub(netAmount)
		shares := netAmount.Div(navValue)
		tx = models.NewBuy(fund.ID, p.ApplyAmount, shares, navValue, fee, requiredDay)
	case models.TxSell:
		rate := fund.SellFeeRate.Div(hundred)
		gross := p.ApplyShares.Mul(navValue)
		fee := gross.Mul(rate)
		net := gross.Sub(fee)
		tx = models.NewSell(fund.ID, net, p.ApplyShares, navValue, fee, requiredDay)
	default:
		return skip(fmt.Sprintf("unsupported pending type %q", p.Type))
	}
	tx.Remark = remark

	if err := s.confirm(p.ID, fund.DirectionID, &tx); err != nil {
		return skip(err.Error())
	}
	return SettlementOutcome{
		PendingID:   p.ID,
		FundCode:    fund.Code,
		Status:      "confirmed",
		ConfirmDate: utils.FormatDay(confirmDay),
	}
}

// resolveSettleNav finds the NAV for the required settlement day. Only an
// exact match (or a cached NAV already on that day) is usable; a nearest
// match earlier than required means the day's NAV is not yet published and
// the row retries on a later sweep. A non-positive NAV can never settle a
// row: it would divide shares by zero downstream, so it skips like no data.
func (s *SettlementService) resolveSettleNav(fund *models.Fund, effectiveDay time.Time, requiredDay string) (decimal.Decimal, bool, string) {
	if fund.HasNetWorth() && fund.LatestNetWorthDate == requiredDay && fund.LatestNetWorth.Decimal.IsPositive() {
		return fund.LatestNetWorth.Decimal, true, ""
	}
	res, err := s.nav.GetNetWorth(fund.Code, effectiveDay)
	if err != nil {
		return decimal.Zero, false, fmt.Sprintf("NAV lookup failed: %v", err)
	}
	if res == nil {
		return decimal.Zero, false, "NAV unavailable"
	}
	if res.Date < requiredDay {
		return decimal.Zero, false, fmt.Sprintf("NAV for %s not yet published (latest %s)", requiredDay, res.Date)
	}
	if !res.NetWorth.IsPositive() {
		return decimal.Zero, false, fmt.Sprintf("NAV for %s is not positive (%s)", requiredDay, res.NetWorth.String())
	}
	return res.NetWorth, true, ""
}

// confirm inserts the transaction and flips the pending row in one database
// transaction. The status guard makes a concurrent or repeated confirm a
// clean no-op rather than a double insert.
func (s *SettlementService) confirm(pendingID, directionID int64, tx *models.Transaction) error {
	dbTx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("settlement: begin: %w", err)
	}
	defer dbTx.Rollback()

	res, err := dbTx.Exec(`UPDATE pending_transactions SET status = ? WHERE id = ? AND status = ?`,
		models.PendingConfirmed, pendingID, models.PendingWaiting)
	if err != nil {
		return fmt.Errorf("settlement: flipping status: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return fmt.Errorf("pending %d no longer WAITING", pendingID)
	}

	if err := InsertTransaction(dbTx, tx); err != nil {
		return err
	}
	if err := RecomputeDirectionActual(dbTx, directionID); err != nil {
		return err
	}
	return dbTx.Commit()
}
