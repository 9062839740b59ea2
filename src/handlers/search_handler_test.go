package handlers

import (
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	_ "modernc.org/sqlite"

	"github.com/username/isincheck/backend/src/database"
	"github.com/username/isincheck/backend/src/model"
)

const assetSchema = `
CREATE TABLE categorized_assets (
    isin TEXT PRIMARY KEY,
    name TEXT,
    wkn TEXT,
    category TEXT NOT NULL,
    subcategory_type TEXT,
    commodity_type TEXT,
    commodity_kind TEXT,
    direction TEXT,
    leverage TEXT,
    sub_category TEXT,
    status TEXT NOT NULL,
    notes TEXT,
    original_row_data TEXT,
    created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
    updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
);`

func useTestDatabase(t *testing.T) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	require.NoError(t, err)
	db.SetMaxOpenConns(1)
	_, err = db.Exec(assetSchema)
	require.NoError(t, err)

	prev := database.DB
	database.DB = db
	t.Cleanup(func() {
		database.DB = prev
		db.Close()
	})
}

func seedAsset(t *testing.T) {
	t.Helper()
	require.NoError(t, model.UpsertAssets(database.DB, []model.CategorizedAsset{{
		ISIN:            "US0378331005",
		Name:            sql.NullString{String: "Apple Inc", Valid: true},
		WKN:             sql.NullString{String: "865985", Valid: true},
		Category:        "Equity",
		SubCategoryType: sql.NullString{String: "Plain", Valid: true},
		Status:          "success",
		OriginalRowData: sql.NullString{String: `{"Mnemonic":"AAPL"}`, Valid: true},
	}}))
}

func postSearch(t *testing.T, body string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, "/api/isin-search", strings.NewReader(body))
	NewSearchHandler().HandleSearch(rec, req)
	return rec
}

func decodeSearch(t *testing.T, rec *httptest.ResponseRecorder) searchResponse {
	t.Helper()
	var resp searchResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return resp
}

func TestHandleSearchByISIN(t *testing.T) {
	useTestDatabase(t)
	seedAsset(t)

	rec := postSearch(t, `{"isin":"us0378331005"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSearch(t, rec)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "US0378331005", resp.Data.ISIN)
	assert.Equal(t, "Apple Inc", resp.Data.Name)
}

func TestHandleSearchByWKN(t *testing.T) {
	useTestDatabase(t)
	seedAsset(t)

	rec := postSearch(t, `{"wkn":"865985"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSearch(t, rec)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "865985", resp.Data.WKN)
}

func TestHandleSearchByMnemonic(t *testing.T) {
	useTestDatabase(t)
	seedAsset(t)

	rec := postSearch(t, `{"mnemonic":"aapl"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSearch(t, rec)
	assert.True(t, resp.Found)
	require.NotNil(t, resp.Data)
	assert.Equal(t, "US0378331005", resp.Data.ISIN)
}

func TestHandleSearchNotFound(t *testing.T) {
	useTestDatabase(t)

	rec := postSearch(t, `{"isin":"GB00B15KXQ89"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decodeSearch(t, rec)
	assert.False(t, resp.Found)
	assert.Nil(t, resp.Data)
}

func TestHandleSearchValidation(t *testing.T) {
	useTestDatabase(t)

	// Too-short identifiers are rejected before any lookup.
	assert.Equal(t, http.StatusBadRequest, postSearch(t, `{"isin":"US037833"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postSearch(t, `{"wkn":"8659"}`).Code)
	assert.Equal(t, http.StatusBadRequest, postSearch(t, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, postSearch(t, `{broken`).Code)
}
