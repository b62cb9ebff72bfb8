package services

import (
	"database/sql"
	"fmt"

	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/processors"
)

// Queryer is satisfied by both *sql.DB and *sql.Tx, so the same loading
// helpers serve plain reads and multi-step transactional mutations.
type Queryer interface {
	Query(query string, args ...any) (*sql.Rows, error)
	QueryRow(query string, args ...any) *sql.Row
	Exec(query string, args ...any) (sql.Result, error)
}

const fundColumns = `id, direction_id, code, name, category, confirm_days,
	buy_fee_rate, sell_fee_rate, latest_net_worth, latest_net_worth_date, net_worth_updated_at`

func scanFund(row interface{ Scan(...any) error }) (models.Fund, error) {
	var f models.Fund
	var navDate, updatedAt sql.NullString
	err := row.Scan(&f.ID, &f.DirectionID, &f.Code, &f.Name, &f.Category, &f.ConfirmDays,
		&f.BuyFeeRate, &f.SellFeeRate, &f.LatestNetWorth, &navDate, &updatedAt)
	if err != nil {
		return f, err
	}
	f.LatestNetWorthDate = navDate.String
	f.NetWorthUpdatedAt = updatedAt.String
	return f, nil
}

func GetFund(q Queryer, id int64) (*models.Fund, error) {
	row := q.QueryRow(`SELECT `+fundColumns+` FROM funds WHERE id = ?`, id)
	f, err := scanFund(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("fund %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading fund %d: %w", id, err)
	}
	return &f, nil
}

func ListFundsByDirection(q Queryer, directionID int64) ([]models.Fund, error) {
	rows, err := q.Query(`SELECT `+fundColumns+` FROM funds WHERE direction_id = ? ORDER BY id`, directionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

func ListAllFunds(q Queryer) ([]models.Fund, error) {
	rows, err := q.Query(`SELECT ` + fundColumns + ` FROM funds ORDER BY id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var funds []models.Fund
	for rows.Next() {
		f, err := scanFund(rows)
		if err != nil {
			return nil, err
		}
		funds = append(funds, f)
	}
	return funds, rows.Err()
}

const txColumns = `id, fund_id, type, amount, shares, price, fee, date, dividend_reinvest, remark`

func scanTransactions(rows *sql.Rows) ([]models.Transaction, error) {
	defer rows.Close()
	var txs []models.Transaction
	for rows.Next() {
		var tx models.Transaction
		if err := rows.Scan(&tx.ID, &tx.FundID, &tx.Type, &tx.Amount, &tx.Shares,
			&tx.Price, &tx.Fee, &tx.Date, &tx.DividendReinvest, &tx.Remark); err != nil {
			return nil, err
		}
		txs = append(txs, tx)
	}
	return txs, rows.Err()
}

func ListTransactionsByFund(q Queryer, fundID int64) ([]models.Transaction, error) {
	rows, err := q.Query(`SELECT `+txColumns+` FROM transactions WHERE fund_id = ? ORDER BY date, id`, fundID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func ListTransactionsByDirection(q Queryer, directionID int64) ([]models.Transaction, error) {
	rows, err := q.Query(`SELECT t.id, t.fund_id, t.type, t.amount, t.shares, t.price, t.fee,
		t.date, t.dividend_reinvest, t.remark
		FROM transactions t JOIN funds f ON f.id = t.fund_id
		WHERE f.direction_id = ? ORDER BY t.date, t.id`, directionID)
	if err != nil {
		return nil, err
	}
	return scanTransactions(rows)
}

func InsertTransaction(q Queryer, tx *models.Transaction) error {
	if err := tx.Validate(); err != nil {
		return err
	}
	res, err := q.Exec(`INSERT INTO transactions
		(fund_id, type, amount, shares, price, fee, date, dividend_reinvest, remark)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		tx.FundID, tx.Type, tx.Amount, tx.Shares, tx.Price, tx.Fee, tx.Date, tx.DividendReinvest, tx.Remark)
	if err != nil {
		return fmt.Errorf("inserting transaction: %w", err)
	}
	tx.ID, err = res.LastInsertId()
	return err
}

// RecomputeDirectionActual refreshes a direction's cached actualAmount from
// its full ledger. Called after every transaction mutation; recompute over
// incremental patching, trading CPU for correctness.
func RecomputeDirectionActual(q Queryer, directionID int64) error {
	txs, err := ListTransactionsByDirection(q, directionID)
	if err != nil {
		return fmt.Errorf("recomputing actual amount for direction %d: %w", directionID, err)
	}
	actual := processors.NetInvested(txs)
	if _, err := q.Exec(`UPDATE directions SET actual_amount = ? WHERE id = ?`, actual, directionID); err != nil {
		return fmt.Errorf("updating actual amount for direction %d: %w", directionID, err)
	}
	return nil
}

// LoadFundAccounts assembles the aggregation input for one direction.
func LoadFundAccounts(q Queryer, directionID int64) ([]processors.FundAccount, error) {
	funds, err := ListFundsByDirection(q, directionID)
	if err != nil {
		return nil, err
	}
	accounts := make([]processors.FundAccount, 0, len(funds))
	for _, f := range funds {
		txs, err := ListTransactionsByFund(q, f.ID)
		if err != nil {
			return nil, err
		}
		accounts = append(accounts, processors.FundAccount{Fund: f, Transactions: txs})
	}
	return accounts, nil
}

func GetDirection(q Queryer, id int64) (*models.InvestmentDirection, error) {
	var d models.InvestmentDirection
	err := q.QueryRow(`SELECT id, name, expected_amount, actual_amount FROM directions WHERE id = ?`, id).
		Scan(&d.ID, &d.Name, &d.ExpectedAmount, &d.ActualAmount)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("direction %d not found", id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading direction %d: %w", id, err)
	}
	return &d, nil
}

func ListCategoryTargets(q Queryer, directionID int64) ([]models.CategoryTarget, error) {
	rows, err := q.Query(`SELECT id, direction_id, category, target_percent
		FROM category_targets WHERE direction_id = ? ORDER BY category`, directionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var targets []models.CategoryTarget
	for rows.Next() {
		var t models.CategoryTarget
		if err := rows.Scan(&t.ID, &t.DirectionID, &t.Category, &t.TargetPercent); err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}
