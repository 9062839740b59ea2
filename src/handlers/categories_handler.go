// backend/src/handlers/categories_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/username/isincheck/backend/src/database"
	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/model"
	"github.com/username/isincheck/backend/src/utils"
)

type CategoriesHandler struct{}

func NewCategoriesHandler() *CategoriesHandler {
	return &CategoriesHandler{}
}

// assetView is the JSON shape of a stored asset.
type assetView struct {
	ISIN            string            `json:"isin"`
	Name            string            `json:"name,omitempty"`
	WKN             string            `json:"wkn,omitempty"`
	Category        string            `json:"category"`
	SubCategoryType string            `json:"subCategoryType,omitempty"`
	CommodityType   string            `json:"commodityType,omitempty"`
	CommodityKind   string            `json:"commodityKind,omitempty"`
	Direction       string            `json:"direction,omitempty"`
	Leverage        string            `json:"leverage,omitempty"`
	SubCategory     string            `json:"subCategory,omitempty"`
	Status          string            `json:"status"`
	Notes           string            `json:"notes,omitempty"`
	OriginalRowData map[string]string `json:"originalRowData,omitempty"`
	CreatedAt       time.Time         `json:"createdAt"`
	UpdatedAt       time.Time         `json:"updatedAt"`
}

type listCategoriesResponse struct {
	Data   []assetView       `json:"data"`
	Count  int               `json:"count"`
	Filter model.AssetFilter `json:"filter"`
}

// HandleListCategories returns stored assets matching the query filters,
// with pagination via limit/offset.
func (h *CategoriesHandler) HandleListCategories(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())
	q := r.URL.Query()

	filter := model.AssetFilter{
		Category:        q.Get("category"),
		SubCategoryType: q.Get("subcategory_type"),
		CommodityType:   q.Get("commodity_type"),
		CommodityKind:   q.Get("commodity_kind"),
		Direction:       q.Get("direction"),
		Leverage:        q.Get("leverage"),
		Limit:           queryInt(q.Get("limit")),
		Offset:          queryInt(q.Get("offset")),
	}

	assets, total, err := model.ListAssets(database.DB, filter)
	if err != nil {
		ctxLogger.Error("Failed to list categorized assets", "error", err)
		utils.SendJSONError(w, "failed to load categorized assets", http.StatusInternalServerError)
		return
	}

	views := make([]assetView, 0, len(assets))
	for _, a := range assets {
		views = append(views, toAssetView(a))
	}
	utils.SendJSON(w, listCategoriesResponse{Data: views, Count: total, Filter: filter}, http.StatusOK)
}

// HandleCategoryStats returns per-combination counts over all stored assets.
func (h *CategoriesHandler) HandleCategoryStats(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	stats, err := model.GetAssetStats(database.DB)
	if err != nil {
		ctxLogger.Error("Failed to load category stats", "error", err)
		utils.SendJSONError(w, "failed to load category stats", http.StatusInternalServerError)
		return
	}
	if stats == nil {
		stats = []model.AssetStat{}
	}
	utils.SendJSON(w, map[string]interface{}{"stats": stats}, http.StatusOK)
}

func toAssetView(a model.CategorizedAsset) assetView {
	view := assetView{
		ISIN:            a.ISIN,
		Name:            a.Name.String,
		WKN:             a.WKN.String,
		Category:        a.Category,
		SubCategoryType: a.SubCategoryType.String,
		CommodityType:   a.CommodityType.String,
		CommodityKind:   a.CommodityKind.String,
		Direction:       a.Direction.String,
		Leverage:        a.Leverage.String,
		SubCategory:     a.SubCategory.String,
		Status:          a.Status,
		Notes:           a.Notes.String,
		CreatedAt:       a.CreatedAt,
		UpdatedAt:       a.UpdatedAt,
	}
	if a.OriginalRowData.Valid && a.OriginalRowData.String != "" {
		var original map[string]string
		if err := json.Unmarshal([]byte(a.OriginalRowData.String), &original); err == nil {
			view.OriginalRowData = original
		}
	}
	return view
}

func queryInt(raw string) int {
	if raw == "" {
		return 0
	}
	v, err := strconv.Atoi(raw)
	if err != nil || v < 0 {
		return 0
	}
	return v
}
