package model

import (
	"database/sql"
	"strings"
)

// AssetFilter narrows asset listings. Zero values mean "no filter".
type AssetFilter struct {
	Category        string `json:"category,omitempty"`
	SubCategoryType string `json:"subCategoryType,omitempty"`
	CommodityType   string `json:"commodityType,omitempty"`
	CommodityKind   string `json:"commodityKind,omitempty"`
	Direction       string `json:"direction,omitempty"`
	Leverage        string `json:"leverage,omitempty"`
	Limit           int    `json:"limit,omitempty"`
	Offset          int    `json:"offset,omitempty"`
}

func (f AssetFilter) whereClause() (string, []interface{}) {
	var conds []string
	var args []interface{}
	add := func(column, value string) {
		if value != "" {
			conds = append(conds, column+" = ?")
			args = append(args, value)
		}
	}
	add("category", f.Category)
	add("subcategory_type", f.SubCategoryType)
	add("commodity_type", f.CommodityType)
	add("commodity_kind", f.CommodityKind)
	add("direction", f.Direction)
	add("leverage", f.Leverage)
	if len(conds) == 0 {
		return "", args
	}
	return " WHERE " + strings.Join(conds, " AND "), args
}

// ListAssets returns stored assets matching the filter, plus the total count
// before pagination.
func ListAssets(db *sql.DB, filter AssetFilter) ([]CategorizedAsset, int, error) {
	where, args := filter.whereClause()

	var total int
	if err := db.QueryRow("SELECT COUNT(*) FROM categorized_assets"+where, args...).Scan(&total); err != nil {
		return nil, 0, err
	}

	query := `SELECT isin, name, wkn, category, subcategory_type, commodity_type, commodity_kind,
		direction, leverage, sub_category, status, notes, original_row_data, created_at, updated_at
		FROM categorized_assets` + where + ` ORDER BY isin`
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
		if filter.Offset > 0 {
			query += " OFFSET ?"
			args = append(args, filter.Offset)
		}
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var assets []CategorizedAsset
	for rows.Next() {
		var a CategorizedAsset
		if err := rows.Scan(
			&a.ISIN, &a.Name, &a.WKN, &a.Category, &a.SubCategoryType, &a.CommodityType,
			&a.CommodityKind, &a.Direction, &a.Leverage, &a.SubCategory, &a.Status,
			&a.Notes, &a.OriginalRowData, &a.CreatedAt, &a.UpdatedAt,
		); err != nil {
			return nil, 0, err
		}
		assets = append(assets, a)
	}
	return assets, total, rows.Err()
}

// AssetStat is a per-combination count over the stored assets.
type AssetStat struct {
	Category        string `json:"category"`
	SubCategoryType string `json:"subCategoryType,omitempty"`
	CommodityType   string `json:"commodityType,omitempty"`
	CommodityKind   string `json:"commodityKind,omitempty"`
	Direction       string `json:"direction,omitempty"`
	Leverage        string `json:"leverage,omitempty"`
	Count           int    `json:"count"`
}

// GetAssetStats aggregates stored assets by their full classification tuple.
func GetAssetStats(db *sql.DB) ([]AssetStat, error) {
	rows, err := db.Query(`
		SELECT category,
			COALESCE(subcategory_type, ''),
			COALESCE(commodity_type, ''),
			COALESCE(commodity_kind, ''),
			COALESCE(direction, ''),
			COALESCE(leverage, ''),
			COUNT(*)
		FROM categorized_assets
		GROUP BY category, subcategory_type, commodity_type, commodity_kind, direction, leverage
		ORDER BY COUNT(*) DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var stats []AssetStat
	for rows.Next() {
		var s AssetStat
		if err := rows.Scan(&s.Category, &s.SubCategoryType, &s.CommodityType, &s.CommodityKind, &s.Direction, &s.Leverage, &s.Count); err != nil {
			return nil, err
		}
		stats = append(stats, s)
	}
	return stats, rows.Err()
}
