package services

import (
	"database/sql"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tugsousa/fundfolio/src/calendar"
	"github.com/tugsousa/fundfolio/src/models"
)

func newSettlementForTest(db *sql.DB, nav NavResolver) *SettlementService {
	cal := calendar.New(&calendar.SQLStore{DB: db}, 30)
	return NewSettlementService(db, cal, nav, 15)
}

func pendingStatus(t *testing.T, db *sql.DB, id int64) string {
	t.Helper()
	var status string
	require.NoError(t, db.QueryRow(`SELECT status FROM pending_transactions WHERE id = ?`, id).Scan(&status))
	return status
}

func TestSweepFridayAfterCutoffSettlesMonday(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	// Friday 2024-01-05 at 16:00 business time is past the cutoff.
	pendingID := seedPending(t, db, fundID, "BUY", "2024-01-05T16:00:00+08:00", "10000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-08", NetWorth: dec("1.25"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	assert.Equal(t, 0, result.Skipped)
	require.Len(t, result.Outcomes, 1)
	assert.Equal(t, "confirmed", result.Outcomes[0].Status)
	assert.Equal(t, "2024-01-09", result.Outcomes[0].ConfirmDate)

	// The NAV lookup targets the shifted settlement day, not the apply day.
	require.Len(t, nav.dates, 1)
	assert.Equal(t, "2024-01-08", nav.dates[0])

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assert.Equal(t, models.TxBuy, txs[0].Type)
	assert.Equal(t, "2024-01-08", txs[0].Date)
	assertDecEqual(t, "10000", txs[0].Amount, 2)
	assertDecEqual(t, "8000", txs[0].Shares, 4)
	assertDecEqual(t, "0", txs[0].Fee, 2)
	assert.Contains(t, txs[0].Remark, "confirm date 2024-01-09")

	assert.Equal(t, models.PendingConfirmed, pendingStatus(t, db, pendingID))

	dir, err := GetDirection(db, dirID)
	require.NoError(t, err)
	assertDecEqual(t, "10000", dir.ActualAmount, 2)
}

func TestSweepBeforeCutoffKeepsApplyDay(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	// Wednesday morning, well before 15:00.
	seedPending(t, db, fundID, "BUY", "2024-01-10T10:30:00+08:00", "1000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("2"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	require.Len(t, nav.dates, 1)
	assert.Equal(t, "2024-01-10", nav.dates[0])
}

func TestSweepWeekendApplyShiftsToMonday(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	// Saturday morning: not a workday regardless of the cutoff.
	seedPending(t, db, fundID, "BUY", "2024-01-06T09:00:00+08:00", "1000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-08", NetWorth: dec("2"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	require.Len(t, nav.dates, 1)
	assert.Equal(t, "2024-01-08", nav.dates[0])
}

func TestSweepSkipsUntilNavPublished(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	pendingID := seedPending(t, db, fundID, "BUY", "2024-01-08T10:00:00+08:00", "1000", "0")

	// The provider still only has Friday's NAV: a nearest match earlier than
	// the settlement day means the day's NAV is not out yet.
	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-05", NetWorth: dec("1.10"), Match: MatchNearest}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Confirmed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Reason, "not yet published")
	assert.Equal(t, models.PendingWaiting, pendingStatus(t, db, pendingID))

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	assert.Empty(t, txs)

	// The NAV shows up: the same row confirms on the next sweep.
	nav.res = &NetWorthResult{Date: "2024-01-08", NetWorth: dec("1.15"), Match: MatchExact}
	result, err = svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	assert.Equal(t, models.PendingConfirmed, pendingStatus(t, db, pendingID))
}

func TestSweepBuyBacksOutFeeFromGrossAmount(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "1.5", "0")
	seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "10000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("2"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	require.Equal(t, 1, result.Confirmed)

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]

	// net = 10000 / 1.015, fee = 10000 - net, shares = net / 2.
	assertDecEqual(t, "10000", tx.Amount, 2)
	assertDecEqual(t, "147.78", tx.Fee, 2)
	assertDecEqual(t, "4926.1084", tx.Shares, 4)
	assertDecEqual(t, "2", tx.Price, 4)
	// The fee and the net amount reassemble the gross apply amount.
	assertDecEqual(t, "10000", tx.Fee.Add(tx.Amount.Sub(tx.Fee)), 2)
}

func TestSweepSellComputesFeeFromGrossProceeds(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0.5")
	seedPending(t, db, fundID, "SELL", "2024-01-10T10:00:00+08:00", "0", "1000")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("2"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	require.Equal(t, 1, result.Confirmed)

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	tx := txs[0]

	// gross = 1000 * 2 = 2000, fee = 2000 * 0.5% = 10, net = 1990.
	assert.Equal(t, models.TxSell, tx.Type)
	assertDecEqual(t, "1990", tx.Amount, 2)
	assertDecEqual(t, "10", tx.Fee, 2)
	assertDecEqual(t, "-1000", tx.Shares, 4)
	assertDecEqual(t, "2", tx.Price, 4)
}

func TestSweepUsesCachedNavForSettlementDay(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	_, err := db.Exec(`UPDATE funds SET latest_net_worth = '1.5', latest_net_worth_date = '2024-01-10' WHERE id = ?`, fundID)
	require.NoError(t, err)
	seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "1500", "0")

	// The resolver is down; the cached NAV already covers the settlement day.
	nav := &fakeNav{err: errors.New("provider down")}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	assert.Empty(t, nav.dates)

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assertDecEqual(t, "1.5", txs[0].Price, 4)
	assertDecEqual(t, "1000", txs[0].Shares, 4)
}

func TestSweepRepeatIsNoOp(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "1000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("2"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	require.Equal(t, 1, result.Confirmed)

	result, err = svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Confirmed)
	assert.Equal(t, 0, result.Skipped)

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestSweepSkipsZeroNav(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	pendingID := seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "1000", "0")

	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("0"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 0, result.Confirmed)
	assert.Equal(t, 1, result.Skipped)
	require.Len(t, result.Outcomes, 1)
	assert.Contains(t, result.Outcomes[0].Reason, "not positive")
	assert.Equal(t, models.PendingWaiting, pendingStatus(t, db, pendingID))

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	assert.Empty(t, txs)
}

func TestSweepIgnoresZeroCachedNav(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "000001", 1, "0", "0")
	_, err := db.Exec(`UPDATE funds SET latest_net_worth = '0', latest_net_worth_date = '2024-01-10' WHERE id = ?`, fundID)
	require.NoError(t, err)
	seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "1500", "0")

	// The cached NAV is unusable; the resolver answers instead.
	nav := &fakeNav{res: &NetWorthResult{Date: "2024-01-10", NetWorth: dec("1.5"), Match: MatchExact}}
	svc := newSettlementForTest(db, nav)

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Confirmed)
	require.Len(t, nav.dates, 1)

	txs, err := ListTransactionsByFund(db, fundID)
	require.NoError(t, err)
	require.Len(t, txs, 1)
	assertDecEqual(t, "1000", txs[0].Shares, 4)
}

func TestSweepSkipsFundWithoutQuoteCode(t *testing.T) {
	db := newTestDB(t)
	dirID := seedDirection(t, db, "pension")
	fundID := seedFund(t, db, dirID, "", 1, "0", "0")
	pendingID := seedPending(t, db, fundID, "BUY", "2024-01-10T10:00:00+08:00", "1000", "0")

	svc := newSettlementForTest(db, &fakeNav{})

	result, err := svc.ConfirmPending()
	require.NoError(t, err)
	assert.Equal(t, 1, result.Skipped)
	assert.Contains(t, result.Outcomes[0].Reason, "no quote code")
	assert.Equal(t, models.PendingWaiting, pendingStatus(t, db, pendingID))
}
