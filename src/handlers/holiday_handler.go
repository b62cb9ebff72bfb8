package handlers

import (
	"fmt"
	"net/http"
	"time"

	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/models"
	"github.com/tugsousa/fundfolio/src/utils"
)

type HolidayHandler struct {
}

func NewHolidayHandler() *HolidayHandler {
	return &HolidayHandler{}
}

func (h *HolidayHandler) HandleListHolidays(w http.ResponseWriter, r *http.Request) {
	rows, err := database.DB.Query(`SELECT id, date, type, remark FROM holidays ORDER BY date`)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error querying holidays: %v", err), http.StatusInternalServerError)
		return
	}
	defer rows.Close()

	holidays := []models.Holiday{}
	for rows.Next() {
		var holiday models.Holiday
		if err := rows.Scan(&holiday.ID, &holiday.Date, &holiday.Type, &holiday.Remark); err != nil {
			utils.SendJSONError(w, fmt.Sprintf("Error scanning holiday: %v", err), http.StatusInternalServerError)
			return
		}
		holidays = append(holidays, holiday)
	}
	if err := rows.Err(); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error iterating holidays: %v", err), http.StatusInternalServerError)
		return
	}
	utils.SendJSON(w, holidays, http.StatusOK)
}

func (h *HolidayHandler) HandleCreateHoliday(w http.ResponseWriter, r *http.Request) {
	var holiday models.Holiday
	if err := decodeJSONBody(r, &holiday); err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	if _, err := time.Parse(models.DateFormat, holiday.Date); err != nil {
		utils.SendJSONError(w, fmt.Sprintf("invalid date %q, expected YYYY-MM-DD", holiday.Date), http.StatusBadRequest)
		return
	}
	if holiday.Type != models.HolidayTypeHoliday && holiday.Type != models.HolidayTypeWorkday {
		utils.SendJSONError(w, fmt.Sprintf("type must be HOLIDAY or WORKDAY, got %q", holiday.Type), http.StatusBadRequest)
		return
	}

	res, err := database.DB.Exec(`INSERT INTO holidays (date, type, remark) VALUES (?, ?, ?)
		ON CONFLICT(date) DO UPDATE SET type = excluded.type, remark = excluded.remark`,
		holiday.Date, holiday.Type, holiday.Remark)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error saving holiday: %v", err), http.StatusInternalServerError)
		return
	}
	holiday.ID, _ = res.LastInsertId()
	utils.SendJSON(w, holiday, http.StatusCreated)
}

func (h *HolidayHandler) HandleDeleteHoliday(w http.ResponseWriter, r *http.Request) {
	id, err := parseIDParam(r, "id")
	if err != nil {
		utils.SendJSONError(w, err.Error(), http.StatusBadRequest)
		return
	}
	res, err := database.DB.Exec(`DELETE FROM holidays WHERE id = ?`, id)
	if err != nil {
		utils.SendJSONError(w, fmt.Sprintf("Error deleting holiday %d: %v", id, err), http.StatusInternalServerError)
		return
	}
	if affected, _ := res.RowsAffected(); affected == 0 {
		utils.SendJSONError(w, fmt.Sprintf("holiday %d not found", id), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
