package model

import (
	"database/sql"
	"encoding/json"
	"strings"

	"github.com/username/isincheck/backend/src/utils"
)

const assetColumns = `isin, name, wkn, category, subcategory_type, commodity_type, commodity_kind,
	direction, leverage, sub_category, status, notes, original_row_data, created_at, updated_at`

// GetAssetByISIN looks a single asset up by its normalized ISIN.
// Returns (nil, nil) when no row matches.
func GetAssetByISIN(db *sql.DB, isin string) (*CategorizedAsset, error) {
	return getAssetBy(db, "isin", utils.NormalizeISIN(isin))
}

// GetAssetByWKN looks a single asset up by its WKN.
// Returns (nil, nil) when no row matches.
func GetAssetByWKN(db *sql.DB, wkn string) (*CategorizedAsset, error) {
	return getAssetBy(db, "wkn", strings.ToUpper(strings.TrimSpace(wkn)))
}

func getAssetBy(db *sql.DB, column, value string) (*CategorizedAsset, error) {
	row := db.QueryRow(`SELECT `+assetColumns+` FROM categorized_assets WHERE `+column+` = ?`, value)
	var a CategorizedAsset
	err := row.Scan(
		&a.ISIN, &a.Name, &a.WKN, &a.Category, &a.SubCategoryType, &a.CommodityType,
		&a.CommodityKind, &a.Direction, &a.Leverage, &a.SubCategory, &a.Status,
		&a.Notes, &a.OriginalRowData, &a.CreatedAt, &a.UpdatedAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindAssetByMnemonic scans the preserved original row data for a matching
// "Mnemonic" column. The LIKE clause prefilters candidates; the exact match
// happens on the parsed JSON because the mnemonic may appear quoted or with
// surrounding text in other columns.
func FindAssetByMnemonic(db *sql.DB, mnemonic string) (*CategorizedAsset, error) {
	wanted := strings.ToUpper(strings.TrimSpace(mnemonic))
	if wanted == "" {
		return nil, nil
	}

	rows, err := db.Query(`SELECT `+assetColumns+` FROM categorized_assets
		WHERE original_row_data LIKE ?`, "%"+wanted+"%")
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	for rows.Next() {
		var a CategorizedAsset
		if err := rows.Scan(
			&a.ISIN, &a.Name, &a.WKN, &a.Category, &a.SubCategoryType, &a.CommodityType,
			&a.CommodityKind, &a.Direction, &a.Leverage, &a.SubCategory, &a.Status,
			&a.Notes, &a.OriginalRowData, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, err
		}
		if strings.EqualFold(a.Mnemonic(), wanted) {
			asset := a
			return &asset, rows.Err()
		}
	}
	return nil, rows.Err()
}

// Mnemonic extracts the "Mnemonic" column from the preserved original row
// data, matching the key case-insensitively and stripping stray quotes.
func (a *CategorizedAsset) Mnemonic() string {
	if !a.OriginalRowData.Valid || a.OriginalRowData.String == "" {
		return ""
	}
	var data map[string]string
	if err := json.Unmarshal([]byte(a.OriginalRowData.String), &data); err != nil {
		return ""
	}
	for key, value := range data {
		if strings.EqualFold(key, "mnemonic") {
			return strings.TrimSpace(strings.Trim(strings.TrimSpace(value), `"'`))
		}
	}
	return ""
}
