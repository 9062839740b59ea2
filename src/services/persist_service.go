// backend/src/services/persist_service.go
package services

import (
	"database/sql"

	"github.com/username/isincheck/backend/src/logger"
	"github.com/username/isincheck/backend/src/model"
	"github.com/username/isincheck/backend/src/models"
	"github.com/username/isincheck/backend/src/utils"
)

// PersistService writes successfully categorized rows to the asset store.
type PersistService struct {
	db *sql.DB
}

func NewPersistService(db *sql.DB) *PersistService {
	return &PersistService{db: db}
}

// SaveCategorized upserts one asset per unique ISIN from the given rows.
func (s *PersistService) SaveCategorized(rows []models.CheckedRow) error {
	assets := dedupeByISIN(rows)
	if len(assets) == 0 {
		return nil
	}
	return model.UpsertAssets(s.db, assets)
}

// SaveCategorizedAsync persists in the background so the check response is
// not blocked on the write. Failures are logged and dropped; the rows will
// simply be re-resolved on the next run.
func (s *PersistService) SaveCategorizedAsync(rows []models.CheckedRow) {
	if len(rows) == 0 {
		return
	}
	go func() {
		if err := s.SaveCategorized(rows); err != nil {
			logger.L.Error("Failed to persist categorized assets", "count", len(rows), "error", err)
			return
		}
		logger.L.Info("Persisted categorized assets", "count", len(rows))
	}()
}

func dedupeByISIN(rows []models.CheckedRow) []model.CategorizedAsset {
	seen := make(map[string]bool, len(rows))
	assets := make([]model.CategorizedAsset, 0, len(rows))
	for _, row := range rows {
		key := utils.NormalizeISIN(row.ISIN)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		assets = append(assets, model.AssetFromCheckedRow(row))
	}
	return assets
}
