package model

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/utils"
)

// MaxISINsPerQuery caps the size of a single IN (...) lookup. The backing
// store rejects unbounded IN lists, so batch lookups are chunked.
const MaxISINsPerQuery = 100

// CategorizedAsset represents a row in the categorized_assets table.
type CategorizedAsset struct {
	ISIN            string
	Name            sql.NullString
	WKN             sql.NullString
	Category        string
	SubCategoryType sql.NullString // "Leveraged" or "Plain"
	CommodityType   sql.NullString // "Commodity" or "NonCommodity"
	CommodityKind   sql.NullString
	Direction       sql.NullString
	Leverage        sql.NullString
	SubCategory     sql.NullString // legacy combined field
	Status          string
	Notes           sql.NullString
	OriginalRowData sql.NullString // serialized JSON
	CreatedAt       time.Time
	UpdatedAt       time.Time
}

// GetAssetsByISINs retrieves previously categorized assets in bulk.
// The input is chunked to respect MaxISINsPerQuery; ISIN comparison is
// normalized but the returned map is keyed by the requested casing. A chunk
// failure is logged and its ISINs treated as absent. The map carries an entry
// (possibly nil) for every requested ISIN.
func GetAssetsByISINs(db *sql.DB, isins []string) (map[string]*CategorizedAsset, error) {
	assets := make(map[string]*CategorizedAsset, len(isins))
	for _, isin := range isins {
		assets[isin] = nil
	}
	if len(isins) == 0 {
		return assets, nil
	}

	byNormalized := make(map[string]*CategorizedAsset)
	for chunkIdx, chunk := range chunkISINs(isins) {
		query := `SELECT isin, name, wkn, category, subcategory_type, commodity_type, commodity_kind,
			direction, leverage, sub_category, status, notes, original_row_data, created_at, updated_at
			FROM categorized_assets WHERE isin IN (?` + strings.Repeat(",?", len(chunk)-1) + `)`
		args := make([]interface{}, len(chunk))
		for i, isin := range chunk {
			args[i] = utils.NormalizeISIN(isin)
		}

		rows, err := db.Query(query, args...)
		if err != nil {
			// Conservative: the chunk's ISINs stay absent and get re-resolved upstream.
			logger.L.Error("Asset lookup chunk failed, treating ISINs as absent", "chunk", chunkIdx, "chunkSize", len(chunk), "error", err)
			continue
		}
		if err := scanAssets(rows, byNormalized); err != nil {
			logger.L.Error("Asset lookup chunk scan failed, treating ISINs as absent", "chunk", chunkIdx, "error", err)
			continue
		}
	}

	for _, requested := range isins {
		if asset, ok := byNormalized[utils.NormalizeISIN(requested)]; ok {
			assets[requested] = asset
		}
	}
	return assets, nil
}

// chunkISINs splits the input into at most MaxISINsPerQuery-sized slices;
// each slice becomes one IN (...) query.
func chunkISINs(isins []string) [][]string {
	var chunks [][]string
	for start := 0; start < len(isins); start += MaxISINsPerQuery {
		end := min(start+MaxISINsPerQuery, len(isins))
		chunks = append(chunks, isins[start:end])
	}
	return chunks
}

func scanAssets(rows *sql.Rows, out map[string]*CategorizedAsset) error {
	defer rows.Close()
	for rows.Next() {
		var a CategorizedAsset
		if err := rows.Scan(
			&a.ISIN,
			&a.Name,
			&a.WKN,
			&a.Category,
			&a.SubCategoryType,
			&a.CommodityType,
			&a.CommodityKind,
			&a.Direction,
			&a.Leverage,
			&a.SubCategory,
			&a.Status,
			&a.Notes,
			&a.OriginalRowData,
			&a.CreatedAt,
			&a.UpdatedAt,
		); err != nil {
			return err
		}
		asset := a
		out[utils.NormalizeISIN(asset.ISIN)] = &asset
	}
	return rows.Err()
}

// UpsertAssets writes categorized assets, updating existing rows on ISIN conflict.
func UpsertAssets(db *sql.DB, assets []CategorizedAsset) error {
	if len(assets) == 0 {
		return nil
	}
	tx, err := db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stmt, err := tx.Prepare(`
		INSERT INTO categorized_assets
			(isin, name, wkn, category, subcategory_type, commodity_type, commodity_kind,
			 direction, leverage, sub_category, status, notes, original_row_data, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(isin) DO UPDATE SET
			name = excluded.name,
			wkn = excluded.wkn,
			category = excluded.category,
			subcategory_type = excluded.subcategory_type,
			commodity_type = excluded.commodity_type,
			commodity_kind = excluded.commodity_kind,
			direction = excluded.direction,
			leverage = excluded.leverage,
			sub_category = excluded.sub_category,
			status = excluded.status,
			notes = excluded.notes,
			original_row_data = excluded.original_row_data,
			updated_at = excluded.updated_at;
	`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	now := time.Now()
	for _, a := range assets {
		if _, err := stmt.Exec(
			utils.NormalizeISIN(a.ISIN),
			a.Name,
			a.WKN,
			a.Category,
			a.SubCategoryType,
			a.CommodityType,
			a.CommodityKind,
			a.Direction,
			a.Leverage,
			a.SubCategory,
			a.Status,
			a.Notes,
			a.OriginalRowData,
			now,
			now,
		); err != nil {
			return err
		}
	}
	return tx.Commit()
}

// ToResolveResult adapts a stored asset to a resolution result, so rows found
// in the store never hit the external API. Structured fields take precedence;
// the legacy sub_category field is the fallback for rows written before the
// structured columns existed.
func (a *CategorizedAsset) ToResolveResult() models.ResolveResult {
	var sub models.SubCategory
	if a.CommodityType.Valid && a.CommodityType.String == "Commodity" && a.CommodityKind.Valid {
		sub = models.CommoditySubCategory(models.CommodityKind(a.CommodityKind.String))
	} else if a.SubCategoryType.Valid {
		sub = models.SubCategory(a.SubCategoryType.String)
	} else if a.SubCategory.Valid {
		sub = models.SubCategory(a.SubCategory.String)
	}

	notes := "Loaded from database"
	if a.Notes.Valid && a.Notes.String != "" {
		notes = a.Notes.String + " (from database)"
	}

	return models.ResolveResult{
		Categorization: models.Categorization{
			Category:    models.Category(a.Category),
			SubCategory: sub,
			Direction:   models.Direction(a.Direction.String),
			Leverage:    models.Leverage(a.Leverage.String),
		},
		Status:       models.Status(a.Status),
		Notes:        notes,
		FromDatabase: true,
	}
}

// AssetFromCheckedRow maps a successfully classified row to its stored form.
func AssetFromCheckedRow(row models.CheckedRow) CategorizedAsset {
	subType := "Plain"
	if row.Leverage != "" {
		subType = "Leveraged"
	}
	commodityType := "NonCommodity"
	var commodityKind sql.NullString
	if row.SubCategory.IsCommodity() {
		commodityType = "Commodity"
		commodityKind = sql.NullString{String: string(row.SubCategory.CommodityKind()), Valid: true}
	}

	var originalData sql.NullString
	if len(row.OriginalRowData) > 0 {
		if raw, err := json.Marshal(row.OriginalRowData); err == nil {
			originalData = sql.NullString{String: string(raw), Valid: true}
		}
	}

	return CategorizedAsset{
		ISIN:            row.ISIN,
		Name:            sql.NullString{String: row.Name, Valid: row.Name != ""},
		WKN:             sql.NullString{String: row.WKN, Valid: row.WKN != ""},
		Category:        string(row.Category),
		SubCategoryType: sql.NullString{String: subType, Valid: true},
		CommodityType:   sql.NullString{String: commodityType, Valid: true},
		CommodityKind:   commodityKind,
		Direction:       sql.NullString{String: string(row.Direction), Valid: row.Direction != ""},
		Leverage:        sql.NullString{String: string(row.Leverage), Valid: row.Leverage != ""},
		SubCategory:     sql.NullString{String: string(row.SubCategory), Valid: row.SubCategory != ""},
		Status:          string(row.Status),
		Notes:           sql.NullString{String: row.Notes, Valid: row.Notes != ""},
		OriginalRowData: originalData,
	}
}
