package handlers

import (
	"database/sql"
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/services"
	"github.com/tugsousa/fundfolio/src/utils"
)

type PlannedHandler struct {
}

func NewPlannedHandler() *PlannedHandler {
	return &PlannedHandler{}
}

func (h *PlannedHandler) HandleCreatePlanned(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := services.GetFund(database.DB, fundID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	var payload struct {
		PlannedAmount decimal.Decimal `json:"plannedAmount"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if !payload.PlannedAmount.IsPositive() {
		utils.SendJSONError(w, "plannedAmount must be positive", http.StatusBadRequest)
		return
	}

	createdAt := time.Now().In(utils.BusinessLocation).Format(time.RFC3339)
	res, err := database.DB.Exec(`INSERT INTO planned_purchases (fund_id, planned_amount, status, created_at)
		VALUES (?, ?, ?, ?)`, fundID, payload.PlannedAmount, models.PlannedPending, createdAt)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error creating planned purchase: %v", err), http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()
	utils.SendJSON(w, models.PlannedPurchase{
		ID:            id,
		FundID:        fundID,
		PlannedAmount: payload.PlannedAmount,
		Status:        models.PlannedPending,
		CreatedAt:     createdAt,
	}, http.StatusCreated)
}

// HandleCompletePlanned executes a planned purchase: a one-way manual step
// that records the actual BUY transaction and marks the plan COMPLETED.
func (h *PlannedHandler) HandleCompletePlanned(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var tx models.Transaction
	if err := decodeJSONBody(r, &tx); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	var planned models.PlannedPurchase
	err = database.DB.QueryRow(`SELECT id, fund_id, planned_amount, status FROM planned_purchases WHERE id = ?`, id).
		Scan(&planned.ID, &planned.FundID, &planned.PlannedAmount, &planned.Status)
	if err == sql.ErrNoRows {
		utils.SendJSONError(w, fmt.Sprintf("planned purchase %d not found", id), http.StatusNotFound)
		return
	}
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error loading planned purchase %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if planned.Status != models.PlannedPending {
		utils.SendJSONError(w, fmt.Sprintf("planned purchase %d already completed", id), http.StatusConflict)
		return
	}
	fund, err := services.GetFund(database.DB, planned.FundID)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	tx.ID = 0
	tx.FundID = planned.FundID
	tx.Type = models.TxBuy
	if err := tx.Validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusUnprocessableEntity)
		return
	}

	dbTx, err := database.DB.Begin()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error starting transaction: %v", err), http.StatusInternalServerError)
		return
	}
	defer dbTx.Rollback()

	purchasedAt := time.Now().In(utils.BusinessLocation).Format(time.RFC3339)
	res, err := dbTx.Exec(`UPDATE planned_purchases SET status = ?, purchased_at = ? WHERE id = ? AND status = ?`,
		models.PlannedCompleted, purchasedAt, id, models.PlannedPending)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error completing planned purchase %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("planned purchase %d already completed", id), http.StatusConflict)
		return
	}
	if err := services.InsertTransaction(dbTx, &tx); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error recording purchase transaction: %v", err), http.StatusInternalServerError)
		return
	}
	if err := services.RecomputeDirectionActual(dbTx, fund.DirectionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	if err := dbTx.Commit(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error committing planned completion: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, tx, http.StatusCreated)
}
