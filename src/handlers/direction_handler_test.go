package handlers

import (
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tugsousa/fundfolio/src/database"
	"github.com/tugsousa/fundfolio/src/logger"
)

func TestMain(m *testing.M) {
	logger.InitLogger("error")
	os.Exit(m.Run())
}

func initTestDB(t *testing.T) {
	t.Helper()
	database.InitDB(filepath.Join(t.TempDir(), "fundfolio_test.db"))
}

func postTarget(h *DirectionHandler, directionID, body string) *httptest.ResponseRecorder {
	r := httptest.NewRequest(http.MethodPost, "/api/directions/"+directionID+"/targets", strings.NewReader(body))
	r.SetPathValue("id", directionID)
	w := httptest.NewRecorder()
	h.HandleUpsertCategoryTarget(w, r)
	return w
}

func TestUpsertCategoryTargetUnknownDirection(t *testing.T) {
	initTestDB(t)
	h := NewDirectionHandler(nil)

	w := postTarget(h, "99", `{"category":"bond","targetPercent":10}`)
	assert.Equal(t, http.StatusNotFound, w.Code)

	var count int
	require.NoError(t, database.DB.QueryRow(`SELECT COUNT(*) FROM category_targets`).Scan(&count))
	assert.Equal(t, 0, count)
}

func TestUpsertCategoryTargetWritesAndReplaces(t *testing.T) {
	initTestDB(t)
	res, err := database.DB.Exec(`INSERT INTO directions (name, expected_amount) VALUES ('pension', '10000')`)
	require.NoError(t, err)
	dirID, err := res.LastInsertId()
	require.NoError(t, err)
	h := NewDirectionHandler(nil)

	w := postTarget(h, "1", `{"category":"bond","targetPercent":10}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postTarget(h, "1", `{"category":"bond","targetPercent":25}`)
	require.Equal(t, http.StatusOK, w.Code)

	var percent string
	require.NoError(t, database.DB.QueryRow(
		`SELECT target_percent FROM category_targets WHERE direction_id = ? AND category = 'bond'`, dirID).
		Scan(&percent))
	assert.Equal(t, "25", percent)

	var count int
	require.NoError(t, database.DB.QueryRow(`SELECT COUNT(*) FROM category_targets`).Scan(&count))
	assert.Equal(t, 1, count)
}
