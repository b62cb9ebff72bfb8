package handlers

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"github.com/tugsousa/fundfolio/src/config"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/processors"
	"github.com/tugsousa/fundfolio/src/services"
	"github.com/tugsousa/fundfolio/src/utils"
)

type DirectionHandler struct {
	dailyProfitService *services.DailyProfitService
}

func NewDirectionHandler(dailyProfitService *services.DailyProfitService) *DirectionHandler {
	return &DirectionHandler{dailyProfitService: dailyProfitService}
}

func (h *DirectionHandler) HandleListDirections(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`SELECT id, name, expected_amount, actual_amount FROM directions ORDER BY id`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying directions: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	directions := []models.InvestmentDirection{}
	for rows.Next() {
		var d models.InvestmentDirection
		if err := rows.Scan(&d.ID, &d.Name, &d.ExpectedAmount, &d.ActualAmount); err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning direction: %v", err), http.StatusInternalServerError)
			return
		}
		directions = append(directions, d)
	}
	if err := rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating directions: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, directions, http.StatusOK)
}

type directionPayload struct {
	Name           string          `json:"name"`
	ExpectedAmount decimal.Decimal `json:"expectedAmount"`
}

func (h *DirectionHandler) HandleCreateDirection(w http.ResponseWriter, r *http.Request) {
	var payload directionPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if strings.TrimSpace(payload.Name) == "" {
		utils.SendJSONError(w, "direction name is required", http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`INSERT INTO directions (name, expected_amount, actual_amount) VALUES (?, ?, '0')`,
		payload.Name, payload.ExpectedAmount)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error creating direction: %v", err), http.StatusInternalServerError)
		return
	}
	id, _ := res.LastInsertId()
	direction, err := services.GetDirection(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, direction, http.StatusCreated)
}

func (h *DirectionHandler) HandleUpdateDirection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload directionPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`UPDATE directions SET name = ?, expected_amount = ? WHERE id = ?`,
		payload.Name, payload.ExpectedAmount, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error updating direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("direction %d not found", id), http.StatusNotFound)
		return
	}
	direction, err := services.GetDirection(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, direction, http.StatusOK)
}

func (h *DirectionHandler) HandleDeleteDirection(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := database.DB.Exec(`DELETE FROM directions WHERE id = ?`, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("direction %d not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// HandleGetDirectionSummary is the dashboard rollup; overdue alerts use the
// dashboard staleness threshold.
func (h *DirectionHandler) HandleGetDirectionSummary(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, config.Cfg.StaleBuyDaysDashboard)
}

// HandleGetDirectionDetail is the detail-page rollup; it intentionally uses
// the shorter staleness threshold.
func (h *DirectionHandler) HandleGetDirectionDetail(w http.ResponseWriter, r *http.Request) {
	h.summarize(w, r, config.Cfg.StaleBuyDaysDetail)
}

func (h *DirectionHandler) summarize(w http.ResponseWriter, r *http.Request, staleBuyDays int) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	direction, err := services.GetDirection(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}
	accounts, err := services.LoadFundAccounts(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error loading funds for direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	targets, err := services.ListCategoryTargets(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error loading targets for direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}

	summary, err := processors.AggregateDirection(*direction, accounts, targets, processors.AggregationOptions{
		Today:        time.Now().In(utils.BusinessLocation),
		StaleBuyDays: staleBuyDays,
		DropPct:      decimal.NewFromFloat(config.Cfg.PriceDropAlertPct),
		RisePct:      decimal.NewFromFloat(config.Cfg.PriceRiseAlertPct),
	})
	if err != nil {
		// Replay failures are ledger invariant violations; surface them.
		utils.SendJSONError(w, fmt.Sprintf("Error aggregating direction %d: %v", id, err), http.StatusUnprocessableEntity)
		return
	}
	utils.SendJSON(w, summary, http.StatusOK)
}

func (h *DirectionHandler) HandleListDailyProfits(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	profits, err := services.ListDailyProfits(database.DB, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error loading daily profits for direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if profits == nil {
		profits = []models.DirectionDailyProfit{}
	}
	utils.SendJSON(w, profits, http.StatusOK)
}

func (h *DirectionHandler) HandleBackfillDailyProfits(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload struct {
		Days int `json:"days"`
	}
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	result, err := h.dailyProfitService.SaveDirectionDailyProfitRange(id, payload.Days)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error backfilling direction %d: %v", id, err), http.StatusBadRequest)
		return
	}
	utils.SendJSON(w, result, http.StatusOK)
}

type categoryTargetPayload struct {
	Category      string          `json:"category"`
	TargetPercent decimal.Decimal `json:"targetPercent"`
}

func (h *DirectionHandler) HandleUpsertCategoryTarget(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	var payload categoryTargetPayload
	if err := decodeJSONBody(r, &payload); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	payload.Category = strings.TrimSpace(payload.Category)
	if payload.Category == "" {
		utils.SendJSONError(w, "category is required", http.StatusBadRequest)
		return
	}
	if payload.TargetPercent.IsNegative() || payload.TargetPercent.GreaterThan(decimal.NewFromInt(100)) {
		utils.SendJSONError(w, "targetPercent must be between 0 and 100", http.StatusBadRequest)
		return
	}
	if _, err := services.GetDirection(database.DB, id); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusNotFound)
		return
	}

	_, err = database.DB.Exec(`INSERT INTO category_targets (direction_id, category, target_percent)
		VALUES (?, ?, ?)
		ON CONFLICT(direction_id, category) DO UPDATE SET target_percent = excluded.target_percent`,
		id, payload.Category, payload.TargetPercent)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error saving target for direction %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, map[string]string{"status": "ok"}, http.StatusOK)
}
