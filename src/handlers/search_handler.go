// backend/src/handlers/search_handler.go
package handlers

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/username/isincheck/backend/src/database"
	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/model"
	"github.com/username/isincheck/backend/src/utils"
)

type SearchHandler struct{}

func NewSearchHandler() *SearchHandler {
	return &SearchHandler{}
}

type searchRequest struct {
	ISIN     string `json:"isin"`
	WKN      string `json:"wkn"`
	Mnemonic string `json:"mnemonic"`
}

type searchResponse struct {
	Found bool       `json:"found"`
	Data  *assetView `json:"data,omitempty"`
}

// HandleSearch looks a single stored asset up by ISIN, WKN or mnemonic.
// Exactly one identifier is required per request; the first non-empty one
// wins in that order.
func (h *SearchHandler) HandleSearch(w http.ResponseWriter, r *http.Request) {
	ctxLogger := logger.FromContext(r.Context())

	var req searchRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		utils.SendJSONError(w, "invalid JSON body", http.StatusBadRequest)
		return
	}

	var (
		asset *model.CategorizedAsset
		err   error
	)
	switch {
	case strings.TrimSpace(req.ISIN) != "":
		isin := strings.TrimSpace(req.ISIN)
		if len(isin) < 12 {
			utils.SendJSONError(w, "isin must be at least 12 characters", http.StatusBadRequest)
			return
		}
		asset, err = model.GetAssetByISIN(database.DB, isin)
	case strings.TrimSpace(req.WKN) != "":
		wkn := strings.TrimSpace(req.WKN)
		if len(wkn) < 6 {
			utils.SendJSONError(w, "wkn must be at least 6 characters", http.StatusBadRequest)
			return
		}
		asset, err = model.GetAssetByWKN(database.DB, wkn)
	case strings.TrimSpace(req.Mnemonic) != "":
		asset, err = model.FindAssetByMnemonic(database.DB, strings.TrimSpace(req.Mnemonic))
	default:
		utils.SendJSONError(w, "provide one of: isin, wkn, mnemonic", http.StatusBadRequest)
		return
	}

	if err != nil {
		ctxLogger.Error("Asset search failed", "error", err)
		utils.SendJSONError(w, "asset search failed", http.StatusInternalServerError)
		return
	}
	if asset == nil {
		utils.SendJSON(w, searchResponse{Found: false}, http.StatusOK)
		return
	}

	view := toAssetView(*asset)
	utils.SendJSON(w, searchResponse{Found: true, Data: &view}, http.StatusOK)
}
