package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/services"
	"github.com/tugsousa/fundfolio/src/utils"
)

type PendingHandler struct {
	settlementService *services.SettlementService
}

func NewPendingHandler(settlementService *services.SettlementService) *PendingHandler {
	return &PendingHandler{settlementService: settlementService}
}

type pendingPayload struct {
	Type        models.TxType   `json:"type"`
	ApplyDate   string          `json:"applyDate"` // RFC3339; defaults to now
	ApplyAmount decimal.Decimal `json:"applyAmount"`
	ApplyShares decimal.Decimal `json:"applyShares"`
}

func (h *PendingHandler) HandleCreatePending(w http.ResponseWriter, r *http.Request) {
	fundID, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := services.GetFund(database.DB, fundID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	var payload pendingPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	switch payload.Type {
	case models.TxBuy:
		if !payload.ApplyAmount.IsPositive() {
			utils.SendJSONError(w, "pending BUY requires a positive applyAmount", http.StatusBadRequest)
			return
		}
	case models.TxSell:
		if !payload.ApplyShares.IsPositive() {
			utils.SendJSONError(w, "pending SELL requires positive applyShares", http.StatusBadRequest)
			return
		}
	default:
		utils.SendJSONError(w, fmt.Sprintf("pending type must be BUY or SELL, got %q", payload.Type), http.StatusBadRequest)
		return
	}

	applyDate := payload.ApplyDate
	if applyDate == "" {
		applyDate = time.Now().In(utils.BusinessLocation).Format(time.RFC3339)
	} else if _, err := time.Parse(time.RFC3339, applyDate); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("invalid applyDate %q", applyDate), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`INSERT INTO pending_transactions
		(fund_id, type, apply_date, apply_amount, apply_shares, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		fundID, payload.Type, applyDate, payload.ApplyAmount, payload.ApplyShares, models.PendingWaiting)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error creating pending transaction: %v", err), http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()
	utils.SendJSON(w, models.PendingTransaction{
		ID:          id,
		FundID:      fundID,
		Type:        payload.Type,
		ApplyDate:   applyDate,
		ApplyAmount: payload.ApplyAmount,
		ApplyShares: payload.ApplyShares,
		Status:      models.PendingWaiting,
	}, http.StatusCreated)
}

// HandleCancelPending deletes a pending row. Cancellation is only valid
// while the row is still WAITING; a CONFIRMED row is part of the ledger.
func (h *PendingHandler) HandleCancelPending(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := database.DB.Exec(`DELETE FROM pending_transactions WHERE id = ? AND status = ?`,
		id, models.PendingWaiting)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error cancelling pending %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("pending %d not found or already confirmed", id), http.StatusConflict)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleConfirmPending runs the settlement sweep and returns the per-row
// outcome log.
func (h *PendingHandler) HandleConfirmPending(w http.ResponseWriter, r *http.Request) {
	result, err := h.settlementService.ConfirmPending()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error running settlement sweep: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}
