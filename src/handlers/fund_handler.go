package handlers

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/services"
	"github.com/tugsousa/fundfolio/src/utils"
)

type FundHandler struct {
	refreshService *services.RefreshService
}

func NewFundHandler(refreshService *services.RefreshService) *FundHandler {
	return &FundHandler{refreshService: refreshService}
}

type fundPayload struct {
	Code        string          `json:"code"`
	Name        string          `json:"name"`
	Category    string          `json:"category"`
	ConfirmDays int             `json:"confirmDays"`
	BuyFeeRate  decimal.Decimal `json:"buyFeeRate"`
	SellFeeRate decimal.Decimal `json:"sellFeeRate"`
}

func (p *fundPayload) validate() error {
	if strings.TrimSpace(p.Name) == "" {
		return fmt.Errorf("fund name is required")
	}
	if p.ConfirmDays < 0 {
		return fmt.Errorf("confirmDays must not be negative")
	}
	if p.BuyFeeRate.IsNegative() || p.SellFeeRate.IsNegative() {
		return fmt.Errorf("fee rates must not be negative")
	}
	return nil
}

func (h *FundHandler) HandleCreateFund(w http.ResponseWriter, r *http.Request) {
	directionID, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload fundPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := payload.validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := services.GetDirection(database.DB, directionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	res, err := database.DB.Exec(`INSERT INTO funds
		(direction_id, code, name, category, confirm_days, buy_fee_rate, sell_fee_rate)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		directionID, payload.Code, payload.Name, strings.TrimSpace(payload.Category),
		payload.ConfirmDays, payload.BuyFeeRate, payload.SellFeeRate)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error creating fund: %v", err), http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()
	fund, err := services.GetFund(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, fund, http.StatusCreated)
}

func (h *FundHandler) HandleUpdateFund(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload fundPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if err := payload.validate(); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`UPDATE funds SET code = ?, name = ?, category = ?,
		confirm_days = ?, buy_fee_rate = ?, sell_fee_rate = ? WHERE id = ?`,
		payload.Code, payload.Name, strings.TrimSpace(payload.Category),
		payload.ConfirmDays, payload.BuyFeeRate, payload.SellFeeRate, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error updating fund %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("fund %d not found", id), http.StatusNotFound)
		return
	}
	fund, err := services.GetFund(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, fund, http.StatusOK)
}

// HandleDeleteFund removes a fund; transactions, planned purchases and
// pending transactions cascade with it, and the owning direction's cached
// actual amount is recomputed.
func (h *FundHandler) HandleDeleteFund(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	fund, err := services.GetFund(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	if _, err := database.DB.Exec(`DELETE FROM funds WHERE id = ?`, id); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting fund %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if err := services.RecomputeDirectionActual(database.DB, fund.DirectionID); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *FundHandler) HandleRefreshNavs(w http.ResponseWriter, r *http.Request) {
	result, err := h.refreshService.RefreshAll()
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error refreshing NAVs: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}
