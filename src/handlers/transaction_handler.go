package handlers

import (
	"fmt"
	"net/http"

	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/services"
	"github.com/tugsousa/fundfolio/src/utils"
)

type TransactionHandler struct {
}

func NewTransactionHandler() *TransactionHandler {
	return &TransactionHandler{}
}

func (h *TransactionHandler) HandleListTransactions(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	txs, err := services.ListTransactionsByFund(database.DB, fundID)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying transactions for fund %d: %v", fundID, err), http.StatusInternalServerError)
		return
	}
	if txs == nil {
		txs = []models.Transaction{}
	}
	utils.SendJSON(w, txs, http.StatusOK)
}

func (h *TransactionHandler) HandleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fund, err := services.GetFund(database.DB, fundID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	var tx models.Transaction
	if err := decodeJSONBody(r, &tx); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx.ID = 0
	tx.FundID = fundID
	if err := tx.Validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	if err := services.InsertTransaction(database.DB, &tx); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error inserting transaction: %v", err), http.StatusInternalServerError)
		return
	}
	if err := services.RecomputeDirectionActual(database.DB, fund.DirectionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, tx, http.StatusCreated)
}

// HandleReplaceTransaction is the ledger edit: a full replace of one row,
// never a partial patch.
func (h *TransactionHandler) HandleReplaceTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fundID int64
	if err := database.DB.QueryRow(`SELECT fund_id FROM transactions WHERE id = ?`, id).Scan(&fundID); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("transaction %d not found", id), http.StatusNotFound)
		return
	}
	fund, err := services.GetFund(database.DB, fundID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	var tx models.Transaction
	if err := decodeJSONBody(r, &tx); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	tx.ID = id
	tx.FundID = fundID
	if err := tx.Validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	_, err = database.DB.Exec(`UPDATE transactions SET type = ?, amount = ?, shares = ?, price = ?,
		fee = ?, date = ?, dividend_reinvest = ?, remark = ? WHERE id = ?`,
		tx.Type, tx.Amount, tx.Shares, tx.Price, tx.Fee, tx.Date, tx.DividendReinvest, tx.Remark, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error updating transaction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if err := services.RecomputeDirectionActual(database.DB, fund.DirectionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, tx, http.StatusOK)
}

func (h *TransactionHandler) HandleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var fundID int64
	if err := database.DB.QueryRow(`SELECT fund_id FROM transactions WHERE id = ?`, id).Scan(&fundID); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("transaction %d not found", id), http.StatusNotFound)
		return
	}
	fund, err := services.GetFund(database.DB, fundID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	if _, err := database.DB.Exec(`DELETE FROM transactions WHERE id = ?`, id); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting transaction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if err := services.RecomputeDirectionActual(database.DB, fund.DirectionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
